package models

import (
	"time"
)

// EventLog represents an account event
type EventLog struct {
	ID          int64         `json:"id" db:"id"`
	Type        EEventLogType `json:"type" db:"type"`
	Description string        `json:"description" db:"description"`
	UserID      *string       `json:"user_id,omitempty" db:"user_id"`
	CreatedAt   *time.Time    `json:"created_at,omitempty" db:"created_at"`
}
