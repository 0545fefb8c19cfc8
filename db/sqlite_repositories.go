package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"biolink/models"
)

// SQLiteUserRepository implements the UserRepository interface for SQLite
type SQLiteUserRepository struct {
	db *sql.DB
}

func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

// Close closes the database connection
func (r *SQLiteUserRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, username, password_hash, created_at FROM users WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT id, username, password_hash, created_at FROM users WHERE username = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, username))
}

func (r *SQLiteUserRepository) scanOne(row *sql.Row) (*models.User, error) {
	var user models.User
	var createdAt sql.NullTime

	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error scanning user: %w", err)
	}
	if createdAt.Valid {
		user.CreatedAt = &createdAt.Time
	}
	return &user, nil
}

func (r *SQLiteUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = GenerateID()
	}
	if user.CreatedAt == nil {
		now := time.Now()
		user.CreatedAt = &now
	}

	query := `INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.PasswordHash, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}

// SQLiteSettingsRepository implements the SettingsRepository interface for SQLite
type SQLiteSettingsRepository struct {
	db *sql.DB
}

// NewSQLiteSettingsRepository creates a new SQLiteSettingsRepository
func NewSQLiteSettingsRepository(db *sql.DB) *SQLiteSettingsRepository {
	return &SQLiteSettingsRepository{db: db}
}

// Close closes the database connection
func (r *SQLiteSettingsRepository) Close() error {
	return r.db.Close()
}

// FindByUserID finds settings by user ID. The stored document is merged over
// the defaults so fields added later always have a value.
func (r *SQLiteSettingsRepository) FindByUserID(ctx context.Context, userID string) (*models.Settings, error) {
	query := `SELECT id, user_id, data, created_at, updated_at FROM settings WHERE user_id = ?`
	row := r.db.QueryRowContext(ctx, query, userID)

	var settings models.Settings
	var data string
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(&settings.ID, &settings.UserID, &data, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error scanning settings: %w", err)
	}

	var wire map[string]any
	if err := json.Unmarshal([]byte(data), &wire); err != nil {
		return nil, fmt.Errorf("error decoding settings data: %w", err)
	}
	settings.Values, err = models.FromWire(wire)
	if err != nil {
		return nil, err
	}

	if createdAt.Valid {
		settings.CreatedAt = &createdAt.Time
	}
	if updatedAt.Valid {
		settings.UpdatedAt = &updatedAt.Time
	}

	return &settings, nil
}

// Create creates new settings
func (r *SQLiteSettingsRepository) Create(ctx context.Context, settings *models.Settings) error {
	data, err := json.Marshal(settings.Values.ToWire())
	if err != nil {
		return fmt.Errorf("error encoding settings data: %w", err)
	}

	query := `INSERT INTO settings (id, user_id, data, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query, settings.ID, settings.UserID, string(data),
		settings.CreatedAt, settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating settings: %w", err)
	}

	return nil
}

// Update updates existing settings
func (r *SQLiteSettingsRepository) Update(ctx context.Context, settings *models.Settings) error {
	data, err := json.Marshal(settings.Values.ToWire())
	if err != nil {
		return fmt.Errorf("error encoding settings data: %w", err)
	}

	query := `UPDATE settings SET data = ?, updated_at = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, string(data), settings.UpdatedAt, settings.ID)
	if err != nil {
		return fmt.Errorf("error updating settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return nil
}

// SQLiteTwoFactorRepository implements the TwoFactorRepository interface for SQLite
type SQLiteTwoFactorRepository struct {
	db *sql.DB
}

func NewSQLiteTwoFactorRepository(db *sql.DB) *SQLiteTwoFactorRepository {
	return &SQLiteTwoFactorRepository{db: db}
}

// Close closes the database connection
func (r *SQLiteTwoFactorRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteTwoFactorRepository) FindByUserID(ctx context.Context, userID string) (*models.TwoFactor, error) {
	query := `SELECT user_id, secret, enabled, pending_secret, pending_backup_codes, pending_issued_at, enabled_at, updated_at
			  FROM two_factor WHERE user_id = ?`
	row := r.db.QueryRowContext(ctx, query, userID)

	var tf models.TwoFactor
	var secret, pendingSecret, pendingCodes sql.NullString
	var pendingIssuedAt, enabledAt, updatedAt sql.NullTime

	err := row.Scan(&tf.UserID, &secret, &tf.Enabled, &pendingSecret, &pendingCodes, &pendingIssuedAt, &enabledAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error scanning two factor: %w", err)
	}

	tf.Secret = secret.String
	tf.PendingSecret = pendingSecret.String
	if pendingCodes.Valid && pendingCodes.String != "" {
		if err := json.Unmarshal([]byte(pendingCodes.String), &tf.PendingBackupCodes); err != nil {
			return nil, fmt.Errorf("error decoding pending backup codes: %w", err)
		}
	}
	if pendingIssuedAt.Valid {
		tf.PendingIssuedAt = &pendingIssuedAt.Time
	}
	if enabledAt.Valid {
		tf.EnabledAt = &enabledAt.Time
	}
	if updatedAt.Valid {
		tf.UpdatedAt = &updatedAt.Time
	}
	return &tf, nil
}

// Save inserts or replaces the user's two factor row
func (r *SQLiteTwoFactorRepository) Save(ctx context.Context, tf *models.TwoFactor) error {
	now := time.Now()
	tf.UpdatedAt = &now

	var pendingCodes sql.NullString
	if len(tf.PendingBackupCodes) > 0 {
		raw, err := json.Marshal(tf.PendingBackupCodes)
		if err != nil {
			return fmt.Errorf("error encoding pending backup codes: %w", err)
		}
		pendingCodes = sql.NullString{String: string(raw), Valid: true}
	}

	query := `INSERT INTO two_factor (user_id, secret, enabled, pending_secret, pending_backup_codes, pending_issued_at, enabled_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(user_id) DO UPDATE SET
				secret = excluded.secret,
				enabled = excluded.enabled,
				pending_secret = excluded.pending_secret,
				pending_backup_codes = excluded.pending_backup_codes,
				pending_issued_at = excluded.pending_issued_at,
				enabled_at = excluded.enabled_at,
				updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		tf.UserID, nullableString(&tf.Secret), tf.Enabled, nullableString(&tf.PendingSecret), pendingCodes,
		nullableTime(tf.PendingIssuedAt), nullableTime(tf.EnabledAt), tf.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving two factor: %w", err)
	}
	return nil
}

// ReplaceBackupCodes drops every backup code of the user and stores hashes
// in a single transaction
func (r *SQLiteTwoFactorRepository) ReplaceBackupCodes(ctx context.Context, userID string, hashes []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM backup_codes WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("error deleting backup codes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO backup_codes (user_id, code_hash, created_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing backup code insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, h := range hashes {
		if _, err := stmt.ExecContext(ctx, userID, h, now); err != nil {
			return fmt.Errorf("error inserting backup code: %w", err)
		}
	}

	return tx.Commit()
}

func (r *SQLiteTwoFactorRepository) FindUnusedBackupCodes(ctx context.Context, userID string) ([]*models.BackupCode, error) {
	query := `SELECT id, user_id, code_hash, created_at FROM backup_codes
			  WHERE user_id = ? AND used_at IS NULL ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying backup codes: %w", err)
	}
	defer rows.Close()

	var codes []*models.BackupCode
	for rows.Next() {
		var code models.BackupCode
		if err := rows.Scan(&code.ID, &code.UserID, &code.CodeHash, &code.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning backup code: %w", err)
		}
		codes = append(codes, &code)
	}
	return codes, rows.Err()
}

func (r *SQLiteTwoFactorRepository) MarkBackupCodeUsed(ctx context.Context, id int64, usedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE backup_codes SET used_at = ? WHERE id = ? AND used_at IS NULL`, usedAt, id)
	if err != nil {
		return fmt.Errorf("error marking backup code used: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearPendingBefore drops pending secrets issued before cutoff and returns
// how many rows were touched
func (r *SQLiteTwoFactorRepository) ClearPendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `UPDATE two_factor
			  SET pending_secret = NULL, pending_backup_codes = NULL, pending_issued_at = NULL, updated_at = ?
			  WHERE pending_secret IS NOT NULL AND pending_issued_at < ?`

	res, err := r.db.ExecContext(ctx, query, time.Now(), cutoff)
	if err != nil {
		return 0, fmt.Errorf("error clearing pending secrets: %w", err)
	}
	return res.RowsAffected()
}

// SQLiteAssetRepository implements the AssetRepository interface for SQLite
type SQLiteAssetRepository struct {
	db *sql.DB
}

func NewSQLiteAssetRepository(db *sql.DB) *SQLiteAssetRepository {
	return &SQLiteAssetRepository{db: db}
}

// Close closes the database connection
func (r *SQLiteAssetRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteAssetRepository) Create(ctx context.Context, asset *models.Asset) error {
	if asset.ID == "" {
		asset.ID = GenerateID()
	}
	if asset.CreatedAt == nil {
		now := time.Now()
		asset.CreatedAt = &now
	}

	query := `INSERT INTO assets (id, user_id, type, file_name, content_type, size, storage_key, url, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		asset.ID, asset.UserID, string(asset.Type), asset.FileName, asset.ContentType,
		asset.Size, asset.StorageKey, asset.URL, asset.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting asset: %w", err)
	}
	return nil
}

func (r *SQLiteAssetRepository) FindByStorageKey(ctx context.Context, key string) (*models.Asset, error) {
	query := `SELECT id, user_id, type, file_name, content_type, size, storage_key, url, created_at
			  FROM assets WHERE storage_key = ?`
	rows, err := r.db.QueryContext(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("error querying asset: %w", err)
	}
	assets, err := scanAssets(rows)
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, ErrNotFound
	}
	return assets[0], nil
}

func (r *SQLiteAssetRepository) FindByUserID(ctx context.Context, userID string) ([]*models.Asset, error) {
	query := `SELECT id, user_id, type, file_name, content_type, size, storage_key, url, created_at
			  FROM assets WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying assets: %w", err)
	}
	return scanAssets(rows)
}

func scanAssets(rows *sql.Rows) ([]*models.Asset, error) {
	defer rows.Close()

	var assets []*models.Asset
	for rows.Next() {
		var a models.Asset
		var assetType string
		var createdAt sql.NullTime
		err := rows.Scan(&a.ID, &a.UserID, &assetType, &a.FileName, &a.ContentType, &a.Size, &a.StorageKey, &a.URL, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning asset: %w", err)
		}
		a.Type = models.AssetType(assetType)
		if createdAt.Valid {
			a.CreatedAt = &createdAt.Time
		}
		assets = append(assets, &a)
	}
	return assets, rows.Err()
}

// SQLiteEventLogRepository implements the EventLogRepository interface for SQLite
type SQLiteEventLogRepository struct {
	db *sql.DB
}

// NewSQLiteEventLogRepository creates a new SQLiteEventLogRepository
func NewSQLiteEventLogRepository(db *sql.DB) *SQLiteEventLogRepository {
	return &SQLiteEventLogRepository{db: db}
}

// Close closes the database connection
func (r *SQLiteEventLogRepository) Close() error {
	return r.db.Close()
}

// Create creates a new event log
func (r *SQLiteEventLogRepository) Create(ctx context.Context, eventLog *models.EventLog) error {
	now := time.Now()
	if eventLog.CreatedAt == nil {
		eventLog.CreatedAt = &now
	}

	query := `INSERT INTO event_logs (type, description, user_id, created_at)
			  VALUES (?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query,
		string(eventLog.Type), eventLog.Description, nullableString(eventLog.UserID), eventLog.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting event log: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		eventLog.ID = id
	}

	return nil
}

// FindLatest finds the latest event logs
func (r *SQLiteEventLogRepository) FindLatest(ctx context.Context, limit int) ([]*models.EventLog, error) {
	query := `SELECT id, type, description, user_id, created_at
			  FROM event_logs ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying event logs: %w", err)
	}
	return scanEventLogs(rows)
}

// FindAllByUserID finds the latest event logs of a user
func (r *SQLiteEventLogRepository) FindAllByUserID(ctx context.Context, userID string, limit int) ([]*models.EventLog, error) {
	query := `SELECT id, type, description, user_id, created_at
			  FROM event_logs WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying user event logs: %w", err)
	}
	return scanEventLogs(rows)
}

func scanEventLogs(rows *sql.Rows) ([]*models.EventLog, error) {
	defer rows.Close()

	var logs []*models.EventLog
	for rows.Next() {
		var log models.EventLog
		var eventType string
		var userID sql.NullString
		var createdAt sql.NullTime

		if err := rows.Scan(&log.ID, &eventType, &log.Description, &userID, &createdAt); err != nil {
			return nil, fmt.Errorf("error scanning event log: %w", err)
		}

		log.Type = models.EEventLogType(eventType)
		if userID.Valid {
			log.UserID = &userID.String
		}
		if createdAt.Valid {
			log.CreatedAt = &createdAt.Time
		}

		logs = append(logs, &log)
	}

	return logs, rows.Err()
}

// Helper functions for handling nullable values
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
