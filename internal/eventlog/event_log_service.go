package eventlog

import (
	"context"
	"log"

	"biolink/db"
	"biolink/models"
)

const DefaultLimit = 20

type EventLogService struct {
	repo      db.EventLogRepository
	dbManager *db.DBManager
}

func NewEventLogService(repo db.EventLogRepository, dbManager *db.DBManager) *EventLogService {
	return &EventLogService{
		repo:      repo,
		dbManager: dbManager,
	}
}

// CreateOne records an event. userID may be empty for events not tied to an
// account.
func (s *EventLogService) CreateOne(ctx context.Context, eventType models.EEventLogType, userID string) error {
	return s.CreateWithDescription(ctx, eventType, userID, generateDescription(eventType))
}

func (s *EventLogService) CreateWithDescription(ctx context.Context, eventType models.EEventLogType, userID, description string) error {
	eventLog := &models.EventLog{
		Type:        eventType,
		Description: description,
	}
	if userID != "" {
		eventLog.UserID = &userID
	}

	if s.dbManager != nil {
		return s.dbManager.CreateEventLog(s.repo, ctx, eventLog)
	}
	return s.repo.Create(ctx, eventLog)
}

func (s *EventLogService) GetAll(ctx context.Context, limit int) ([]*models.EventLog, error) {
	return s.repo.FindLatest(ctx, normalizeLimit(limit))
}

func (s *EventLogService) GetAllByUserID(ctx context.Context, userID string, limit int) ([]*models.EventLog, error) {
	logs, err := s.repo.FindAllByUserID(ctx, userID, normalizeLimit(limit))
	if err != nil {
		log.Printf("Error fetching event logs for user %s: %v", userID, err)
		return nil, err
	}
	return logs, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return DefaultLimit
	}
	return limit
}

func generateDescription(eventType models.EEventLogType) string {
	switch eventType {
	case models.LoginSucceeded:
		return "Signed in"
	case models.LoginFailed:
		return "Failed sign-in attempt"
	case models.SettingsCreated:
		return "Default settings created"
	case models.SettingsUpdated:
		return "Profile settings saved"
	case models.TwoFactorSecretIssued:
		return "New authenticator secret issued"
	case models.TwoFactorEnabled:
		return "Two-factor authentication enabled"
	case models.TwoFactorDisabled:
		return "Two-factor authentication disabled"
	case models.BackupCodeUsed:
		return "Signed in with a backup code"
	case models.AssetUploaded:
		return "Asset uploaded"
	case models.PendingSecretsPurged:
		return "Expired authenticator secrets removed"
	case models.Warning:
		return "Warning event occurred"
	default:
		return "Event occurred"
	}
}
