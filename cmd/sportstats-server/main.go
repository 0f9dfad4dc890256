package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/intermernet/sportstats/internal/api"
	"github.com/intermernet/sportstats/internal/config"
	"github.com/intermernet/sportstats/internal/database"
	"github.com/intermernet/sportstats/internal/email"
	"github.com/intermernet/sportstats/internal/feed"
	"github.com/intermernet/sportstats/internal/realtime"
	"github.com/intermernet/sportstats/internal/stats"
)

// main is the entry point for the sports statistics API server.
func main() {
	// --- 1. Load Configuration ---
	// A .env file is optional; real environment variables always win.
	envErr := godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		slog.Error("failed to load application configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Info("no .env file found, using environment variables from the system")
	}

	// --- 2. Ensure Required Directories Exist ---
	if err := os.MkdirAll(cfg.DataPath, 0o755); err != nil {
		logger.Error("failed to create data directory", "path", cfg.DataPath, "error", err)
		os.Exit(1)
	}

	// --- 3. Initialize Database Service ---
	dbService, err := database.NewService(cfg.StatsDBPath(), cfg.AuthDBPath(), logger)
	if err != nil {
		logger.Error("failed to initialize database service", "error", err)
		os.Exit(1)
	}
	defer dbService.Close()

	// --- 4. Apply Schema Migrations ---
	// Safe on every startup; already-applied versions are skipped.
	if err := dbService.Migrate(); err != nil {
		logger.Error("failed to migrate databases", "error", err)
		os.Exit(1)
	}
	logger.Info("databases ready", "stats", cfg.StatsDBPath(), "auth", cfg.AuthDBPath())

	// --- 5. Supporting Services ---
	queries := stats.NewService(dbService, cfg.QueryTimeout, logger)
	feedClient := feed.NewClient(cfg.FeedBaseURL, cfg.FeedAPIKey, cfg.FeedRequestsPerMinute, logger)
	broker := realtime.NewBroker(logger)

	var mailer api.WelcomeMailer
	if cfg.SMTPEnabled() {
		mailer = email.NewEmailService(email.SMTPServerConfig{
			Host:     cfg.SmtpHost,
			Port:     cfg.SmtpPort,
			Username: cfg.SmtpUser,
			Password: cfg.SmtpPass,
			Sender:   cfg.SmtpSender,
		})
	}
	logger.Info("services initialized",
		"feed", feedClient.Configured(),
		"smtp", cfg.SMTPEnabled(),
		"google_oauth", cfg.GoogleOAuthEnabled())

	// --- 6. Set Up API Server and Routes ---
	serverAPI := api.NewServer(cfg, dbService, queries, feedClient, broker, mailer, logger)
	router := chi.NewRouter()
	serverAPI.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// --- 7. Start the HTTP Server ---
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("sportstats server starting", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("server failed", "error", err)
			dbService.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	// --- 8. Graceful Shutdown ---
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
