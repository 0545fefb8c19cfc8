package upload

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"biolink/internal/apiclient"
	"biolink/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUploadAPI struct {
	mock.Mock
}

func (m *mockUploadAPI) UploadAsset(ctx context.Context, assetType, fileName, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, assetType, fileName, contentType, data)
	return args.String(0), args.Error(1)
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) SetField(key string, value any) error {
	return m.Called(key, value).Error(0)
}

func (m *mockSink) PersistAudio(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func TestUploadRejectsOversizedAudio(t *testing.T) {
	api := &mockUploadAPI{}
	sink := &mockSink{}
	g := NewGateway(api, sink)

	f := File{Name: "song.mp3", ContentType: "audio/mpeg", Data: bytes.Repeat([]byte{0}, 11<<20)}
	_, err := g.Upload(context.Background(), models.AssetAudio, f)

	var upErr *Error
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, TooLarge, upErr.Kind)
	assert.Equal(t, "File is too large (max 10 MB)", upErr.Message)
	api.AssertNotCalled(t, "UploadAsset", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	sink.AssertNotCalled(t, "SetField", mock.Anything, mock.Anything)
	assert.Equal(t, StatusIdle, g.Status(models.AssetAudio))
}

func TestUploadSizeLimitsPerType(t *testing.T) {
	g := NewGateway(&mockUploadAPI{}, &mockSink{})

	_, err := g.Check(models.AssetAvatar, File{Name: "a.png", Data: bytes.Repeat([]byte{0}, 6<<20)})
	var upErr *Error
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, TooLarge, upErr.Kind)

	ct, err := g.Check(models.AssetAudio, File{Name: "a.mp3", Data: bytes.Repeat([]byte{0}, 6<<20)})
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", ct)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	tests := []struct {
		name      string
		assetType models.AssetType
		file      File
	}{
		{"text as avatar", models.AssetAvatar, File{Name: "notes.txt", Data: []byte("hello")}},
		{"jpeg as cursor", models.AssetCursor, File{Name: "c.jpg", ContentType: "image/jpeg", Data: []byte{0xff}}},
		{"png as audio", models.AssetAudio, File{Name: "x", Data: pngHeader}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockUploadAPI{}
			g := NewGateway(api, &mockSink{})

			_, err := g.Upload(context.Background(), tt.assetType, tt.file)
			var upErr *Error
			require.ErrorAs(t, err, &upErr)
			assert.Equal(t, UnsupportedType, upErr.Kind)
			api.AssertNotCalled(t, "UploadAsset", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestUploadUnknownAssetType(t *testing.T) {
	g := NewGateway(&mockUploadAPI{}, &mockSink{})
	_, err := g.Upload(context.Background(), "banner", File{Name: "a.png", Data: pngHeader})
	assert.ErrorIs(t, err, ErrUnknownAssetType)
}

func TestUploadImageSetsDraftWithoutAutosave(t *testing.T) {
	api := &mockUploadAPI{}
	sink := &mockSink{}
	g := NewGateway(api, sink)
	ctx := context.Background()

	api.On("UploadAsset", ctx, "avatar", "me", "image/png", pngHeader).Return("https://cdn.example.com/me.png", nil)
	sink.On("SetField", "avatarUrl", "https://cdn.example.com/me.png").Return(nil)

	url, err := g.Upload(ctx, models.AssetAvatar, File{Name: "me", Data: pngHeader})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/me.png", url)
	assert.Equal(t, StatusSuccess, g.Status(models.AssetAvatar))
	api.AssertExpectations(t)
	sink.AssertExpectations(t)
	sink.AssertNotCalled(t, "PersistAudio", mock.Anything)
}

func TestUploadAudioAutosaves(t *testing.T) {
	api := &mockUploadAPI{}
	sink := &mockSink{}
	g := NewGateway(api, sink)
	ctx := context.Background()
	data := []byte("ID3 audio")

	api.On("UploadAsset", ctx, "audio", "song.mp3", "audio/mpeg", data).Return("https://cdn.example.com/song.mp3", nil)
	sink.On("SetField", "audioUrl", "https://cdn.example.com/song.mp3").Return(nil)
	sink.On("PersistAudio", ctx).Return(nil).Once()

	url, err := g.Upload(ctx, models.AssetAudio, File{Name: "song.mp3", Data: data})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/song.mp3", url)
	sink.AssertExpectations(t)
}

func TestUploadAudioAutosaveFailure(t *testing.T) {
	api := &mockUploadAPI{}
	sink := &mockSink{}
	g := NewGateway(api, sink)
	ctx := context.Background()
	saveErr := errors.New("offline")

	api.On("UploadAsset", ctx, "audio", "song.ogg", "audio/ogg", mock.Anything).Return("https://cdn.example.com/song.ogg", nil)
	sink.On("SetField", "audioUrl", "https://cdn.example.com/song.ogg").Return(nil)
	sink.On("PersistAudio", ctx).Return(saveErr)

	url, err := g.Upload(ctx, models.AssetAudio, File{Name: "song.ogg", Data: []byte("OggS")})
	assert.Equal(t, "https://cdn.example.com/song.ogg", url)

	var autoErr *AutosaveError
	require.ErrorAs(t, err, &autoErr)
	assert.ErrorIs(t, err, saveErr)
	assert.Equal(t, url, autoErr.URL)
}

func TestUploadFailureLeavesDraft(t *testing.T) {
	api := &mockUploadAPI{}
	sink := &mockSink{}
	g := NewGateway(api, sink)
	ctx := context.Background()

	api.On("UploadAsset", ctx, "backgroundImage", "bg.webp", "image/webp", mock.Anything).
		Return("", &apiclient.Error{Kind: apiclient.KindRejected, Status: 413, Message: "Payload too large"})

	_, err := g.Upload(ctx, models.AssetBackgroundImage, File{Name: "bg.webp", Data: []byte("RIFF")})
	var upErr *Error
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, UploadFailed, upErr.Kind)
	assert.Equal(t, "Payload too large", upErr.Message)
	assert.Equal(t, StatusError, g.Status(models.AssetBackgroundImage))
	sink.AssertNotCalled(t, "SetField", mock.Anything, mock.Anything)
}

func TestUploadInProgressPerType(t *testing.T) {
	api := &mockUploadAPI{}
	sink := &mockSink{}
	g := NewGateway(api, sink)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	api.On("UploadAsset", ctx, "avatar", "a.png", "image/png", mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return("https://cdn.example.com/a.png", nil)
	api.On("UploadAsset", ctx, "cursor", "c.png", "image/png", mock.Anything).Return("https://cdn.example.com/c.png", nil)
	sink.On("SetField", mock.Anything, mock.Anything).Return(nil)

	done := make(chan error, 1)
	go func() {
		_, err := g.Upload(ctx, models.AssetAvatar, File{Name: "a.png", Data: pngHeader})
		done <- err
	}()
	<-entered
	assert.Equal(t, StatusUploading, g.Status(models.AssetAvatar))

	_, err := g.Upload(ctx, models.AssetAvatar, File{Name: "a.png", Data: pngHeader})
	assert.ErrorIs(t, err, ErrUploadInProgress)

	_, err = g.Upload(ctx, models.AssetCursor, File{Name: "c.png", Data: pngHeader})
	assert.NoError(t, err, "other asset types are independent")

	close(release)
	require.NoError(t, <-done)
}

func TestRemoveAudioAutosaves(t *testing.T) {
	sink := &mockSink{}
	g := NewGateway(&mockUploadAPI{}, sink)
	ctx := context.Background()

	sink.On("SetField", "audioUrl", "").Return(nil)
	sink.On("PersistAudio", ctx).Return(nil)
	require.NoError(t, g.Remove(ctx, models.AssetAudio))

	sink.On("SetField", "cursorUrl", "").Return(nil)
	require.NoError(t, g.Remove(ctx, models.AssetCursor))

	sink.AssertNumberOfCalls(t, "PersistAudio", 1)
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "audio/m4a", DetectContentType("", "Track.M4A", nil))
	assert.Equal(t, "image/gif", DetectContentType("image/gif", "x.png", nil))
	assert.Equal(t, "image/png", DetectContentType("application/octet-stream", "blob", pngHeader))
	assert.Equal(t, "image/x-icon", DetectContentTypeFromExtension("pointer.cur"))
	assert.Equal(t, "application/octet-stream", DetectContentTypeFromExtension("noext"))
}
