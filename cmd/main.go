package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
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
)

// Global loggers for different output streams
var (
	infoLogger  = log.New(os.Stdout, "", log.LstdFlags)
	errorLogger = log.New(os.Stderr, "", log.LstdFlags)
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			errorLogger.Printf("FATAL PANIC in main(): %v", r)
			errorLogger.Printf("Stack trace: %s", debug.Stack())
			os.Exit(1)
		}
	}()

	infoLogger.Printf("Starting biolink backend - Process ID: %d", os.Getpid())
	infoLogger.Printf("Runtime: %s/%s, Go version: %s", runtime.GOOS, runtime.GOARCH, runtime.Version())

	cfg, err := config.LoadConfig()
	if err != nil {
		errorLogger.Fatalf("Failed to load configuration: %v", err)
	}

	infoLogger.Println("Using SQLite database")
	sqliteDB, err := db.ConnectToSQLite(cfg.SQLitePath)
	if err != nil {
		errorLogger.Fatalf("Failed to connect to SQLite: %v", err)
	}
	defer sqliteDB.Close()

	if err := db.InitializeSchema(sqliteDB); err != nil {
		errorLogger.Fatalf("Failed to initialize database schema: %v", err)
	}

	repoFactory := db.NewRepositoryFactory(sqliteDB, cfg.DatabaseName)

	// Create repositories
	userRepo := repoFactory.NewUserRepository()
	settingsRepo := repoFactory.NewSettingsRepository()
	twoFactorRepo := repoFactory.NewTwoFactorRepository()
	assetRepo := repoFactory.NewAssetRepository()
	eventLogRepo := repoFactory.NewEventLogRepository()

	// Create database manager for concurrent access control
	dbManager := db.NewDBManager()
	defer dbManager.Stop()

	ctx := context.Background()
	if _, err := auth.EnsureUser(ctx, userRepo, cfg.Username, cfg.Password); err != nil {
		errorLogger.Fatalf("Failed to provision account: %v", err)
	}

	store, err := assets.NewStore(ctx, cfg)
	if err != nil {
		errorLogger.Fatalf("Failed to initialize asset storage: %v", err)
	}
	infoLogger.Printf("Asset storage: %s", cfg.AssetStorage)

	// Initialize services with repositories
	eventLogService := eventlog.NewEventLogService(eventLogRepo, dbManager)
	settingsService, err := settings.NewSettingsService(settingsRepo, dbManager, cfg.SettingsCacheSize, eventLogService)
	if err != nil {
		errorLogger.Fatalf("Failed to initialize settings service: %v", err)
	}
	twoFactorService := security.NewTwoFactorService(twoFactorRepo, userRepo, settingsService, dbManager, eventLogService, cfg.TOTPIssuer, cfg.PendingSecretTTL)
	assetService := assets.NewAssetService(assetRepo, dbManager, store, eventLogService)

	if err := twoFactorService.StartSweeper(cfg.SweepSchedule); err != nil {
		errorLogger.Fatalf("Failed to start pending secret sweep: %v", err)
	}
	defer twoFactorService.StopSweeper()

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

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           webHandler.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		infoLogger.Printf("Server is starting on port %s...", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errorLogger.Fatalf("Server ListenAndServe error: %v", err)
		}
		infoLogger.Println("Server ListenAndServe has exited normally")
	}()

	infoLogger.Println("Backend initialization completed successfully")
	waitForShutdown(server)
}

func waitForShutdown(server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	sig := <-stop
	infoLogger.Printf("Received shutdown signal: %v", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	infoLogger.Println("Shutting down the server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		errorLogger.Printf("Server Shutdown error: %v", err)
	}
	infoLogger.Println("[SUCCESS] Services stopped")
}
