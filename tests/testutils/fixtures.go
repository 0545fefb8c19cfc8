package testutils

import (
	"context"
	"testing"
	"time"

	"biolink/db"
	"biolink/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const TestPassword = "correct horse"

// CreateTestUser stores a user whose password is TestPassword.
func CreateTestUser(t *testing.T, users db.UserRepository, username string) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)

	now := time.Now()
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    &now,
	}
	require.NoError(t, users.Create(context.Background(), user))
	return user
}

func CreateTestSettings(userID string) *models.Settings {
	now := time.Now()
	values := models.DefaultSettings()
	values["displayName"] = "Test User"
	values["bio"] = "hello"

	return &models.Settings{
		ID:        uuid.New().String(),
		UserID:    userID,
		Values:    values,
		CreatedAt: &now,
		UpdatedAt: &now,
	}
}

func CreateTestEventLog(userID string) *models.EventLog {
	now := time.Now()
	return &models.EventLog{
		Type:        models.SettingsUpdated,
		Description: "Test event message",
		UserID:      &userID,
		CreatedAt:   &now,
	}
}
