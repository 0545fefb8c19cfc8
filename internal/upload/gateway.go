package upload

import (
	"context"
	"fmt"
	"log"
	"sync"

	"biolink/internal/apiclient"
	"biolink/models"
)

// UploadAPI is implemented by *apiclient.Client.
type UploadAPI interface {
	UploadAsset(ctx context.Context, assetType, fileName, contentType string, data []byte) (string, error)
}

// DraftSink receives the uploaded URL. *settingssync.Engine implements it.
type DraftSink interface {
	SetField(key string, value any) error
	PersistAudio(ctx context.Context) error
}

type Status string

const (
	StatusIdle      Status = "idle"
	StatusUploading Status = "uploading"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// File is a user-selected file. ContentType may be empty.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type Gateway struct {
	api   UploadAPI
	sink  DraftSink
	rules map[models.AssetType]models.AssetRule

	mu     sync.Mutex
	status map[models.AssetType]Status
}

type Option func(*Gateway)

// WithRules replaces the per-type size and MIME rules.
func WithRules(rules map[models.AssetType]models.AssetRule) Option {
	return func(g *Gateway) { g.rules = rules }
}

func NewGateway(api UploadAPI, sink DraftSink, opts ...Option) *Gateway {
	g := &Gateway{
		api:    api,
		sink:   sink,
		rules:  models.AssetRules,
		status: make(map[models.AssetType]Status),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check runs the size and type checks without any network call and returns
// the resolved content type.
func (g *Gateway) Check(assetType models.AssetType, f File) (string, error) {
	rule, ok := g.rules[assetType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAssetType, assetType)
	}
	if int64(len(f.Data)) > rule.MaxBytes {
		return "", &Error{
			Kind:      TooLarge,
			AssetType: assetType,
			Message:   fmt.Sprintf("File is too large (max %d MB)", rule.MaxBytes>>20),
		}
	}
	ct := DetectContentType(f.ContentType, f.Name, f.Data)
	if !rule.Allows(ct) {
		return "", &Error{
			Kind:      UnsupportedType,
			AssetType: assetType,
			Message:   fmt.Sprintf("Unsupported file type %s", ct),
		}
	}
	return ct, nil
}

// Upload validates f, sends it and writes the returned URL into the draft.
// Audio uploads are persisted right away; if that fails the URL is returned
// with an *AutosaveError.
func (g *Gateway) Upload(ctx context.Context, assetType models.AssetType, f File) (string, error) {
	ct, err := g.Check(assetType, f)
	if err != nil {
		return "", err
	}
	if !g.begin(assetType) {
		return "", ErrUploadInProgress
	}

	url, err := g.api.UploadAsset(ctx, string(assetType), f.Name, ct, f.Data)
	if err != nil {
		log.Printf("Failed to upload %s %q: %v", assetType, f.Name, err)
		g.finish(assetType, StatusError)
		msg := apiclient.MessageOf(err)
		if msg == "" {
			msg = uploadFallbackMessage
		}
		return "", &Error{Kind: UploadFailed, AssetType: assetType, Message: msg, Err: err}
	}

	err = g.apply(ctx, assetType, url)
	g.finish(assetType, StatusSuccess)
	return url, err
}

// Remove clears the asset URL from the draft. Removing audio is persisted
// immediately.
func (g *Gateway) Remove(ctx context.Context, assetType models.AssetType) error {
	if _, ok := g.rules[assetType]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAssetType, assetType)
	}
	if !g.begin(assetType) {
		return ErrUploadInProgress
	}
	defer g.finish(assetType, StatusIdle)
	return g.apply(ctx, assetType, "")
}

func (g *Gateway) apply(ctx context.Context, assetType models.AssetType, url string) error {
	rule := g.rules[assetType]
	if err := g.sink.SetField(rule.URLKey, url); err != nil {
		return err
	}
	if assetType != models.AssetAudio {
		return nil
	}
	if err := g.sink.PersistAudio(ctx); err != nil {
		log.Printf("Audio settings were not saved after %s change: %v", assetType, err)
		return &AutosaveError{URL: url, Err: err}
	}
	return nil
}

func (g *Gateway) begin(assetType models.AssetType) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status[assetType] == StatusUploading {
		return false
	}
	g.status[assetType] = StatusUploading
	return true
}

func (g *Gateway) finish(assetType models.AssetType, s Status) {
	g.mu.Lock()
	g.status[assetType] = s
	g.mu.Unlock()
}

func (g *Gateway) Status(assetType models.AssetType) Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.status[assetType]; ok {
		return s
	}
	return StatusIdle
}
