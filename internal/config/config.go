package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AssetStorageType string

const (
	LocalStorage AssetStorageType = "local"
	S3Storage    AssetStorageType = "s3"
)

type Config struct {
	Port          string
	JwtKey        []byte
	SessionSecret []byte
	// SQLite config
	SQLitePath   string
	DatabaseName string
	// Bootstrap account
	Username string
	Password string
	// Assets
	AssetStorage  AssetStorageType
	UploadDir     string
	PublicBaseURL string
	S3            S3Config
	// Two-factor
	TOTPIssuer        string
	PendingSecretTTL  time.Duration
	SweepSchedule     string
	SettingsCacheSize int
}

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	PublicURL string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	databaseName := os.Getenv("DATABASE_NAME")
	if databaseName == "" {
		return nil, fmt.Errorf("DATABASE_NAME is not set in .env file")
	}

	username := os.Getenv("LOGIN_USERNAME")
	password := os.Getenv("LOGIN_PASSWORD")
	if username == "" || password == "" {
		return nil, fmt.Errorf("LOGIN_USERNAME or LOGIN_PASSWORD is not set in .env file")
	}

	jwtSecret := os.Getenv("JWT_SECRET_KEY")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY is not set in .env file")
	}

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		sessionSecret = jwtSecret
	}

	port := envOr("PORT", "3008")

	config := &Config{
		Port:              port,
		JwtKey:            []byte(jwtSecret),
		SessionSecret:     []byte(sessionSecret),
		DatabaseName:      databaseName,
		Username:          username,
		Password:          password,
		AssetStorage:      AssetStorageType(envOr("ASSET_STORAGE", string(LocalStorage))),
		UploadDir:         envOr("UPLOAD_DIR", filepath.Join("data", "uploads")),
		PublicBaseURL:     strings.TrimRight(envOr("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		TOTPIssuer:        envOr("TOTP_ISSUER", "biolink"),
		SweepSchedule:     envOr("PENDING_SECRET_SWEEP", "@every 10m"),
		SettingsCacheSize: 256,
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		// Default to a data directory in the current directory
		sqlitePath = filepath.Join("data", fmt.Sprintf("%s.db", databaseName))
	}
	config.SQLitePath = sqlitePath

	ttl, err := time.ParseDuration(envOr("PENDING_SECRET_TTL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid PENDING_SECRET_TTL: %w", err)
	}
	config.PendingSecretTTL = ttl

	if size := os.Getenv("SETTINGS_CACHE_SIZE"); size != "" {
		n, err := strconv.Atoi(size)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid SETTINGS_CACHE_SIZE: %q", size)
		}
		config.SettingsCacheSize = n
	}

	switch config.AssetStorage {
	case LocalStorage:
	case S3Storage:
		config.S3 = S3Config{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			Region:    os.Getenv("S3_REGION"),
			Bucket:    os.Getenv("S3_BUCKET"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			UseSSL:    os.Getenv("S3_USE_SSL") != "false",
			PublicURL: strings.TrimRight(os.Getenv("S3_PUBLIC_URL"), "/"),
		}
		if config.S3.Endpoint == "" || config.S3.Bucket == "" {
			return nil, fmt.Errorf("S3_ENDPOINT and S3_BUCKET must be set when ASSET_STORAGE=s3")
		}
	default:
		return nil, fmt.Errorf("unsupported ASSET_STORAGE: %s", config.AssetStorage)
	}

	return config, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
