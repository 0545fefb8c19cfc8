package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"biolink/models"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repository defines a common interface for all repositories
type Repository interface {
	Close() error
}

// UserRepository defines the interface for user operations
type UserRepository interface {
	Repository
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// SettingsRepository stores one settings document per user
type SettingsRepository interface {
	Repository
	FindByUserID(ctx context.Context, userID string) (*models.Settings, error)
	Create(ctx context.Context, settings *models.Settings) error
	Update(ctx context.Context, settings *models.Settings) error
}

// TwoFactorRepository defines the interface for TOTP and backup code storage
type TwoFactorRepository interface {
	Repository
	FindByUserID(ctx context.Context, userID string) (*models.TwoFactor, error)
	Save(ctx context.Context, tf *models.TwoFactor) error
	ReplaceBackupCodes(ctx context.Context, userID string, hashes []string) error
	FindUnusedBackupCodes(ctx context.Context, userID string) ([]*models.BackupCode, error)
	MarkBackupCodeUsed(ctx context.Context, id int64, usedAt time.Time) error
	ClearPendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AssetRepository defines the interface for uploaded asset records
type AssetRepository interface {
	Repository
	Create(ctx context.Context, asset *models.Asset) error
	FindByStorageKey(ctx context.Context, key string) (*models.Asset, error)
	FindByUserID(ctx context.Context, userID string) ([]*models.Asset, error)
}

// EventLogRepository defines the interface for event log operations
type EventLogRepository interface {
	Repository
	Create(ctx context.Context, eventLog *models.EventLog) error
	FindLatest(ctx context.Context, limit int) ([]*models.EventLog, error)
	FindAllByUserID(ctx context.Context, userID string, limit int) ([]*models.EventLog, error)
}

// RepositoryFactory creates repositories based on the database type
type RepositoryFactory struct {
	SQLiteDB *sql.DB
	DBName   string
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(sqliteDB *sql.DB, dbName string) *RepositoryFactory {
	return &RepositoryFactory{
		SQLiteDB: sqliteDB,
		DBName:   dbName,
	}
}

func (f *RepositoryFactory) NewUserRepository() UserRepository {
	return NewSQLiteUserRepository(f.SQLiteDB)
}

func (f *RepositoryFactory) NewSettingsRepository() SettingsRepository {
	return NewSQLiteSettingsRepository(f.SQLiteDB)
}

func (f *RepositoryFactory) NewTwoFactorRepository() TwoFactorRepository {
	return NewSQLiteTwoFactorRepository(f.SQLiteDB)
}

func (f *RepositoryFactory) NewAssetRepository() AssetRepository {
	return NewSQLiteAssetRepository(f.SQLiteDB)
}

// NewEventLogRepository creates a new event log repository
func (f *RepositoryFactory) NewEventLogRepository() EventLogRepository {
	return NewSQLiteEventLogRepository(f.SQLiteDB)
}

// GenerateID generates a unique ID for a record
func GenerateID() string {
	return uuid.New().String()
}
