package models

import "time"

// TwoFactor is a user's TOTP configuration. A pending secret is issued by
// generate and only becomes the active secret once a code is verified.
type TwoFactor struct {
	UserID             string     `json:"user_id" db:"user_id"`
	Secret             string     `json:"-" db:"secret"`
	Enabled            bool       `json:"enabled" db:"enabled"`
	PendingSecret      string     `json:"-" db:"pending_secret"`
	PendingBackupCodes []string   `json:"-" db:"pending_backup_codes"`
	PendingIssuedAt    *time.Time `json:"-" db:"pending_issued_at"`
	EnabledAt          *time.Time `json:"enabled_at,omitempty" db:"enabled_at"`
	UpdatedAt          *time.Time `json:"updated_at" db:"updated_at"`
}

// BackupCode is a single-use recovery code, stored hashed.
type BackupCode struct {
	ID        int64      `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"`
	CodeHash  string     `json:"-" db:"code_hash"`
	UsedAt    *time.Time `json:"used_at,omitempty" db:"used_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
