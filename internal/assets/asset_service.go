package assets

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"biolink/db"
	"biolink/internal/upload"
	"biolink/models"

	"github.com/google/uuid"
)

var (
	ErrUnknownAssetType = errors.New("unknown asset type")
	ErrTooLarge         = errors.New("file too large")
	ErrUnsupportedType  = errors.New("unsupported file type")
)

// EventRecorder stores account events.
type EventRecorder interface {
	CreateWithDescription(ctx context.Context, eventType models.EEventLogType, userID, description string) error
}

type AssetService struct {
	repo      db.AssetRepository
	dbManager *db.DBManager
	store     Store
	events    EventRecorder
}

func NewAssetService(repo db.AssetRepository, dbManager *db.DBManager, store Store, events EventRecorder) *AssetService {
	return &AssetService{
		repo:      repo,
		dbManager: dbManager,
		store:     store,
		events:    events,
	}
}

// Rule returns the upload limits for assetType.
func Rule(assetType models.AssetType) (models.AssetRule, error) {
	rule, ok := models.AssetRules[assetType]
	if !ok {
		return models.AssetRule{}, ErrUnknownAssetType
	}
	return rule, nil
}

// Save checks the file against its asset type, stores it and records it.
func (s *AssetService) Save(ctx context.Context, userID string, assetType models.AssetType, fileName, declaredType string, data []byte) (*models.Asset, error) {
	rule, err := Rule(assetType)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > rule.MaxBytes {
		return nil, fmt.Errorf("%w (max %d MB)", ErrTooLarge, rule.MaxBytes>>20)
	}
	contentType := upload.DetectContentType(declaredType, fileName, data)
	if !rule.Allows(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	key := uuid.New().String() + storageExt(fileName, contentType)
	url, err := s.store.Put(ctx, key, contentType, data)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	asset := &models.Asset{
		ID:          db.GenerateID(),
		UserID:      userID,
		Type:        assetType,
		FileName:    fileName,
		ContentType: contentType,
		Size:        int64(len(data)),
		StorageKey:  key,
		URL:         url,
		CreatedAt:   &now,
	}
	if err := s.dbManager.CreateAsset(s.repo, ctx, asset); err != nil {
		return nil, err
	}

	if s.events != nil {
		desc := fmt.Sprintf("Uploaded %s %s", assetType, fileName)
		if err := s.events.CreateWithDescription(ctx, models.AssetUploaded, userID, desc); err != nil {
			log.Printf("Error recording asset upload: %v", err)
		}
	}
	return asset, nil
}

func (s *AssetService) ListByUser(ctx context.Context, userID string) ([]*models.Asset, error) {
	return s.repo.FindByUserID(ctx, userID)
}

var typeExtensions = map[string]string{
	"image/jpeg":               ".jpg",
	"image/jpg":                ".jpg",
	"image/png":                ".png",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"image/x-icon":             ".ico",
	"image/vnd.microsoft.icon": ".ico",
	"image/svg+xml":            ".svg",
	"audio/mpeg":               ".mp3",
	"audio/mp3":                ".mp3",
	"audio/wav":                ".wav",
	"audio/ogg":                ".ogg",
	"audio/m4a":                ".m4a",
}

// storageExt keeps the original extension when it agrees with the content type.
func storageExt(fileName, contentType string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext != "" && upload.DetectContentTypeFromExtension(fileName) == contentType {
		return ext
	}
	ct := contentType
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return typeExtensions[strings.ToLower(ct)]
}
