package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"biolink/internal/auth"
	"biolink/internal/eventlog"
	"biolink/models"
	"biolink/tests/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type testEnv struct {
	svc    *AssetService
	dir    string
	userID string
}

func newTestEnv(t *testing.T) *testEnv {
	factory, cleanup := testutils.SetupTestRepositoryFactory(t)
	t.Cleanup(cleanup)

	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://cdn.test/")
	require.NoError(t, err)

	dbManager := testutils.SetupTestDBManager(t)
	user := testutils.CreateTestUser(t, factory.NewUserRepository(), "alice")
	events := eventlog.NewEventLogService(factory.NewEventLogRepository(), dbManager)

	return &testEnv{
		svc:    NewAssetService(factory.NewAssetRepository(), dbManager, store, events),
		dir:    dir,
		userID: user.ID,
	}
}

func TestSaveStoresFileAndRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	asset, err := env.svc.Save(ctx, env.userID, models.AssetAvatar, "me.png", "image/png", pngHeader)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(asset.URL, "http://cdn.test/uploads/"))
	assert.True(t, strings.HasSuffix(asset.StorageKey, ".png"))
	assert.Equal(t, "image/png", asset.ContentType)
	assert.Equal(t, int64(len(pngHeader)), asset.Size)

	onDisk, err := os.ReadFile(filepath.Join(env.dir, asset.StorageKey))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, onDisk)

	list, err := env.svc.ListByUser(ctx, env.userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, asset.ID, list[0].ID)
}

func TestSaveRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		assetType models.AssetType
		fileName  string
		declared  string
		data      []byte
		want      error
	}{
		{"unknown type", models.AssetType("banner"), "a.png", "image/png", pngHeader, ErrUnknownAssetType},
		{"audio over 10 MB", models.AssetAudio, "song.mp3", "audio/mpeg", make([]byte, 11<<20), ErrTooLarge},
		{"image over 5 MB", models.AssetAvatar, "big.png", "image/png", make([]byte, 5<<20+1), ErrTooLarge},
		{"text as avatar", models.AssetAvatar, "notes.txt", "text/plain", []byte("hello"), ErrUnsupportedType},
		{"jpeg as cursor", models.AssetCursor, "c.jpg", "image/jpeg", []byte("x"), ErrUnsupportedType},
		{"sniffed png as audio", models.AssetAudio, "blob", "", pngHeader, ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Save(ctx, env.userID, tt.assetType, tt.fileName, tt.declared, tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	entries, err := os.ReadDir(env.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalStoreRejectsPathKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost")
	require.NoError(t, err)

	for _, key := range []string{"../escape.png", "a/b.png", ".."} {
		_, err := store.Put(context.Background(), key, "image/png", pngHeader)
		assert.Error(t, err, key)
	}
}

func TestStorageExt(t *testing.T) {
	assert.Equal(t, ".jpeg", storageExt("photo.JPEG", "image/jpeg"))
	assert.Equal(t, ".png", storageExt("upload", "image/png"))
	assert.Equal(t, ".mp3", storageExt("track.bin", "audio/mpeg"))
	assert.Equal(t, ".cur", storageExt("cursor.cur", "image/x-icon"))
	assert.Equal(t, ".ico", storageExt("cursor", "image/vnd.microsoft.icon"))
}

func multipartBody(t *testing.T, assetType, fileName, contentType string, data []byte) (*bytes.Buffer, string) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("type", assetType))

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func TestUploadHandler(t *testing.T) {
	env := newTestEnv(t)
	h := NewAssetHandlers(env.svc)

	post := func(assetType, fileName, contentType string, data []byte) *httptest.ResponseRecorder {
		body, ct := multipartBody(t, assetType, fileName, contentType, data)
		req := httptest.NewRequest(http.MethodPost, "/upload/asset", body)
		req.Header.Set("Content-Type", ct)
		req = req.WithContext(auth.WithUserID(req.Context(), env.userID))
		rec := httptest.NewRecorder()
		h.Upload(rec, req)
		return rec
	}

	rec := post("backgroundImage", "bg.png", "image/png", pngHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	var ok struct {
		Success bool `json:"success"`
		Data    struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ok))
	assert.True(t, ok.Success)
	assert.Contains(t, ok.Data.URL, "/uploads/")

	rec = post("avatar", "a.png", "image/png", make([]byte, 6<<20))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "max 5 MB")

	rec = post("audio", "a.txt", "text/plain", []byte("nope"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post("banner", "a.png", "image/png", pngHeader)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadHandlerRequiresUser(t *testing.T) {
	env := newTestEnv(t)
	body, ct := multipartBody(t, "avatar", "a.png", "image/png", pngHeader)
	req := httptest.NewRequest(http.MethodPost, "/upload/asset", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	NewAssetHandlers(env.svc).Upload(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
