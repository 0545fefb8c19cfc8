package assets

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"biolink/internal/config"
)

// PublicPrefix is the route under which LocalStore files are served.
const PublicPrefix = "/uploads/"

// Store persists asset bytes and returns a public URL for them.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// LocalStore writes assets into a directory served by the API itself.
type LocalStore struct {
	Dir     string
	BaseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := filepath.Base(key)
	if name != key || name == "." || name == ".." {
		return "", fmt.Errorf("invalid asset key %q", key)
	}

	tmp, err := os.CreateTemp(s.Dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create asset file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := bytes.NewReader(data).WriteTo(tmp); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write asset: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.Dir, name)); err != nil {
		return "", fmt.Errorf("failed to store asset: %w", err)
	}
	return s.BaseURL + PublicPrefix + name, nil
}

// NewStore picks the backend named by cfg.AssetStorage.
func NewStore(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.AssetStorage {
	case config.S3Storage:
		return NewS3Store(ctx, cfg.S3)
	default:
		return NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL)
	}
}
