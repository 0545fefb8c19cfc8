package settings

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"biolink/db"
	"biolink/internal/validation"
	"biolink/models"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
)

const twoFactorKey = "twoFactorEnabled"

// ErrInvalidSettings is returned with a non-empty ValidationErrors.
var ErrInvalidSettings = errors.New("invalid settings")

// EventRecorder stores account events.
type EventRecorder interface {
	CreateOne(ctx context.Context, eventType models.EEventLogType, userID string) error
}

// SettingsService handles settings operations
type SettingsService struct {
	repo      db.SettingsRepository
	dbManager *db.DBManager
	cache     *lru.Cache
	events    EventRecorder
}

// NewSettingsService creates a new settings service. cacheSize <= 0 disables
// the read cache.
func NewSettingsService(repo db.SettingsRepository, dbManager *db.DBManager, cacheSize int, events EventRecorder) (*SettingsService, error) {
	s := &SettingsService{
		repo:      repo,
		dbManager: dbManager,
		events:    events,
	}
	if cacheSize > 0 {
		cache, err := lru.New(cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create settings cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// GetUserSettings retrieves settings for a specific user
func (s *SettingsService) GetUserSettings(ctx context.Context, userID string) (*models.Settings, error) {
	if cached, ok := s.cached(userID); ok {
		return cached, nil
	}

	settings, err := s.repo.FindByUserID(ctx, userID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	// If no settings exist for user, create default settings
	if settings == nil {
		now := time.Now()
		settings = &models.Settings{
			ID:        uuid.New().String(),
			UserID:    userID,
			Values:    models.DefaultSettings(),
			CreatedAt: &now,
			UpdatedAt: &now,
		}

		if err := s.dbManager.CreateSettings(s.repo, ctx, settings); err != nil {
			log.Printf("Error creating default settings for user %s: %v", userID, err)
			return copySettings(settings), nil // Return defaults even if save fails
		}
		s.record(ctx, models.SettingsCreated, userID)
	}

	s.store(settings)
	return copySettings(settings), nil
}

// UpdateUserSettings replaces the user's settings with a complete wire-form
// object. Unknown keys and invalid values are reported per field and nothing
// is written. twoFactorEnabled is owned by the two-factor service and is
// ignored here.
func (s *SettingsService) UpdateUserSettings(ctx context.Context, userID string, wire map[string]interface{}) (*models.Settings, models.ValidationErrors, error) {
	current, err := s.GetUserSettings(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	next := current.Values.Clone()
	errs := models.ValidationErrors{}
	for name, raw := range wire {
		f, ok := models.LookupWireField(name)
		if !ok {
			errs[name] = "Unknown setting"
			continue
		}
		if f.Key == twoFactorKey || raw == nil {
			continue
		}
		v, err := models.NormalizeValue(f, raw)
		if err != nil {
			errs[f.Key] = fmt.Sprintf("Invalid value for %s", f.Key)
			continue
		}
		next[f.Key] = v
	}
	for key, msg := range validation.Validate(next) {
		if _, seen := errs[key]; !seen {
			errs[key] = msg
		}
	}
	if len(errs) > 0 {
		return nil, errs, ErrInvalidSettings
	}

	now := time.Now()
	updated := &models.Settings{
		ID:        current.ID,
		UserID:    userID,
		Values:    next,
		CreatedAt: current.CreatedAt,
		UpdatedAt: &now,
	}
	if err := s.persist(ctx, updated); err != nil {
		return nil, nil, err
	}
	s.record(ctx, models.SettingsUpdated, userID)

	return copySettings(updated), nil, nil
}

// SetTwoFactorEnabled stores the 2FA flag after the security service changed it.
func (s *SettingsService) SetTwoFactorEnabled(ctx context.Context, userID string, enabled bool) error {
	current, err := s.GetUserSettings(ctx, userID)
	if err != nil {
		return err
	}
	if current.Values[twoFactorKey] == enabled {
		return nil
	}

	now := time.Now()
	current.Values[twoFactorKey] = enabled
	current.UpdatedAt = &now
	return s.persist(ctx, current)
}

func (s *SettingsService) persist(ctx context.Context, settings *models.Settings) error {
	if s.cache != nil {
		s.cache.Remove(settings.UserID)
	}
	if err := s.dbManager.UpdateSettings(s.repo, ctx, settings); err != nil {
		return err
	}
	s.store(settings)
	return nil
}

func (s *SettingsService) cached(userID string) (*models.Settings, bool) {
	if s.cache == nil {
		return nil, false
	}
	v, ok := s.cache.Get(userID)
	if !ok {
		return nil, false
	}
	return copySettings(v.(*models.Settings)), true
}

func (s *SettingsService) store(settings *models.Settings) {
	if s.cache != nil {
		s.cache.Add(settings.UserID, copySettings(settings))
	}
}

func (s *SettingsService) record(ctx context.Context, eventType models.EEventLogType, userID string) {
	if s.events == nil {
		return
	}
	if err := s.events.CreateOne(ctx, eventType, userID); err != nil {
		log.Printf("Error recording %s for user %s: %v", eventType, userID, err)
	}
}

func copySettings(in *models.Settings) *models.Settings {
	out := *in
	out.Values = in.Values.Clone()
	return &out
}
