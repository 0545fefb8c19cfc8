package integration

import (
	"context"
	"testing"
	"time"

	"biolink/db"
	"biolink/internal/assets"
	"biolink/internal/auth"
	"biolink/internal/config"
	"biolink/internal/eventlog"
	"biolink/internal/security"
	"biolink/internal/settings"
	"biolink/internal/web"
	"biolink/middleware"
	"biolink/tests/testutils"

	"github.com/stretchr/testify/require"
)

type backend struct {
	*testutils.TestServer
	Config    *config.Config
	TwoFactor *security.TwoFactorService
	EventLogs db.EventLogRepository
	UserID    string
}

// newBackend wires the real services behind the real router, the same way
// cmd/main.go does, on a temporary database.
func newBackend(t *testing.T) *backend {
	factory, cleanup := testutils.SetupTestRepositoryFactory(t)
	t.Cleanup(cleanup)

	cfg := testutils.GetTestConfig(t)
	dbManager := testutils.SetupTestDBManager(t)
	ctx := context.Background()

	userRepo := factory.NewUserRepository()
	eventLogRepo := factory.NewEventLogRepository()
	user, err := auth.EnsureUser(ctx, userRepo, cfg.Username, cfg.Password)
	require.NoError(t, err)

	store, err := assets.NewStore(ctx, cfg)
	require.NoError(t, err)

	eventLogService := eventlog.NewEventLogService(eventLogRepo, dbManager)
	settingsService, err := settings.NewSettingsService(factory.NewSettingsRepository(), dbManager, cfg.SettingsCacheSize, eventLogService)
	require.NoError(t, err)
	twoFactorService := security.NewTwoFactorService(factory.NewTwoFactorRepository(), userRepo, settingsService, dbManager, eventLogService, cfg.TOTPIssuer, cfg.PendingSecretTTL)
	assetService := assets.NewAssetService(factory.NewAssetRepository(), dbManager, store, eventLogService)

	sessionStore := auth.NewSessionStore(cfg.SessionSecret)
	authHandlers := auth.NewAuthHandlers(cfg, userRepo, sessionStore)
	authHandlers.SecondFactor = twoFactorService
	authHandlers.Events = eventLogService

	webHandler := web.NewWebHandler(
		authHandlers,
		settings.NewSettingsHandlers(settingsService),
		security.NewTwoFactorHandlers(twoFactorService),
		assets.NewAssetHandlers(assetService),
		eventlog.NewEventLogHandlers(eventLogService),
		middleware.NewMiddleware(cfg, sessionStore),
		cfg,
	)

	return &backend{
		TestServer: testutils.NewTestServer(t, webHandler.SetupRoutes()),
		Config:     cfg,
		TwoFactor:  twoFactorService,
		EventLogs:  eventLogRepo,
		UserID:     user.ID,
	}
}

func (b *backend) clientConfig() *config.ClientConfig {
	cfg := config.DefaultClientConfig()
	cfg.APIBaseURL = b.URL
	cfg.ValidationDebounce = config.Duration{Duration: 10 * time.Millisecond}
	return cfg
}
