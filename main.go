package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/accounts-be/internal/api"
	"github.com/isdelr/accounts-be/internal/auth"
	"github.com/isdelr/accounts-be/internal/config"
	"github.com/isdelr/accounts-be/internal/database"
	"github.com/isdelr/accounts-be/internal/logger"
	"github.com/isdelr/accounts-be/internal/monitoring"
	"github.com/isdelr/accounts-be/internal/services"
	"github.com/isdelr/accounts-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(cfg.LogLevel, cfg.LogPretty)

	ctx := context.Background()
	dialect := database.Dialect(cfg.DatabaseDriver)

	// Set up database
	db, err := database.New(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, dialect); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	auditSink, closeSink, err := openAuditSink(cfg.AuditLogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.AuditLogPath).Msg("Failed to open audit log")
	}
	defer closeSink()

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	hasher := auth.NewPasswordHasher(cfg.BcryptCost, cfg.HashConcurrency)
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	userService := services.NewUserService(db, dialect, hasher)
	authService := services.NewAuthService(userService, hasher, issuer)
	auditService := services.NewAuditService(auditSink, cfg.AuditBuffer, hub)
	auditService.Start()

	seeder := services.NewSeedService(userService, services.SeedOptions{
		AdminEmail:    cfg.SeedAdminEmail,
		AdminPassword: cfg.SeedAdminPassword,
		DemoUsers:     cfg.SeedDemoUsers,
	})
	if err := seeder.Seed(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed accounts")
	}

	// Set up the inactive account report
	var reporter *monitoring.InactivityReporter
	if cfg.InactiveReportSchedule != "" {
		reporter, err = monitoring.NewInactivityReporter(userService, hub, cfg.InactiveReportSchedule)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to set up inactivity reporter")
		}
		reporter.Start()
	}

	// Set up router
	router := api.NewRouter(api.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		SecureCookies:  cfg.IsProduction(),
	}, db, issuer, authService, userService, auditService, hub)

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("env", cfg.AppEnv).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if reporter != nil {
		reporter.Stop()
	}
	authService.Wait()
	auditService.Stop()
	hub.Stop()

	log.Info().Msg("Server exiting")
}

// openAuditSink returns stderr when path is empty, otherwise an append-only file.
func openAuditSink(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stderr, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
