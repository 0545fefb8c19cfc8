package testutils

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"biolink/db"
	"biolink/internal/config"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func SetupTestDatabase(t *testing.T) (*sql.DB, func()) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	testDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_timeout=10000&_foreign_keys=on")
	require.NoError(t, err)

	err = db.InitializeSchema(testDB)
	require.NoError(t, err)

	cleanup := func() {
		testDB.Close()
		os.RemoveAll(tempDir)
	}

	return testDB, cleanup
}

func SetupTestRepositoryFactory(t *testing.T) (*db.RepositoryFactory, func()) {
	testDB, cleanup := SetupTestDatabase(t)
	factory := db.NewRepositoryFactory(testDB, "biolink_test")
	return factory, cleanup
}

// SetupTestDBManager starts a DBManager that is stopped with the test.
func SetupTestDBManager(t *testing.T) *db.DBManager {
	m := db.NewDBManager()
	t.Cleanup(m.Stop)
	return m
}

func GetTestConfig(t *testing.T) *config.Config {
	return &config.Config{
		Port:              "0",
		SQLitePath:        ":memory:",
		DatabaseName:      "biolink_test",
		JwtKey:            []byte("test_jwt_secret_key_for_testing_only"),
		SessionSecret:     []byte("test_session_secret_for_testing_only"),
		Username:          "test_admin",
		Password:          "test_password",
		AssetStorage:      config.LocalStorage,
		UploadDir:         t.TempDir(),
		PublicBaseURL:     "http://localhost",
		TOTPIssuer:        "biolink-test",
		PendingSecretTTL:  time.Hour,
		SweepSchedule:     "@every 1h",
		SettingsCacheSize: 16,
	}
}
