// Command sportstats-admin is the offline maintenance CLI.
//
// Usage:
//
//	sportstats-admin migrate
//	sportstats-admin seed-users
//	sportstats-admin set-role admin@sports.com admin
//	sportstats-admin import-matches --dateFrom 2024-05-01 --dateTo 2024-05-07
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/intermernet/sportstats/internal/auth"
	"github.com/intermernet/sportstats/internal/config"
	"github.com/intermernet/sportstats/internal/database"
	"github.com/intermernet/sportstats/internal/feed"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "sportstats-admin",
		Short:        "Sports statistics maintenance CLI",
		SilenceUsage: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(seedUsersCmd())
	root.AddCommand(setRoleCmd())
	root.AddCommand(importMatchesCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to both databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, db *database.Service) error {
				logger.Info("migrations applied", "stats", cfg.StatsDBPath(), "auth", cfg.AuthDBPath())
				return nil
			})
		},
	}
}

// demoUser is an account created by seed-users.
type demoUser struct {
	name, email, password, role string
}

var demoUsers = []demoUser{
	{"Admin User", "admin@sports.com", "admin123", database.RoleAdmin},
	{"Regular User", "user@sports.com", "user123", database.RoleUser},
}

func seedUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-users",
		Short: "Create the demo admin and user accounts if they are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, db *database.Service) error {
				return db.WriteToAuthDB(ctx, func(tx *sql.Tx) error {
					for _, u := range demoUsers {
						hash, err := auth.HashPassword(u.password)
						if err != nil {
							return fmt.Errorf("hash password for %s: %w", u.email, err)
						}
						created, err := db.CreateUserIfAbsent(ctx, tx, u.name, u.email, hash, u.role)
						if err != nil {
							return fmt.Errorf("create %s: %w", u.email, err)
						}
						logger.Info("demo user", "email", u.email, "role", u.role, "created", created)
					}
					return nil
				})
			})
		},
	}
}

func setRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <email> <user|admin>",
		Short: "Change the role of an existing user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			email, role := args[0], args[1]
			return run(func(ctx context.Context, cfg *config.Config, db *database.Service) error {
				err := db.WriteToAuthDB(ctx, func(tx *sql.Tx) error {
					return db.SetUserRole(ctx, tx, email, role)
				})
				if errors.Is(err, database.ErrUserNotFound) {
					return fmt.Errorf("no user with email %s", email)
				}
				if err != nil {
					return err
				}
				logger.Info("role updated", "email", email, "role", role)
				return nil
			})
		},
	}
}

func importMatchesCmd() *cobra.Command {
	var dateFrom, dateTo, status, competitions string
	cmd := &cobra.Command{
		Use:   "import-matches",
		Short: "Fetch matches from the live feed and cache them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, db *database.Service) error {
				client := feed.NewClient(cfg.FeedBaseURL, cfg.FeedAPIKey, cfg.FeedRequestsPerMinute, logger)
				if !client.Configured() {
					return fmt.Errorf("FEED_API_KEY is required")
				}

				query := url.Values{}
				for key, value := range map[string]string{
					"dateFrom":     dateFrom,
					"dateTo":       dateTo,
					"status":       status,
					"competitions": competitions,
				} {
					if value != "" {
						query.Set(key, value)
					}
				}

				payload, err := client.Matches(ctx, query)
				if err != nil {
					return err
				}
				result, err := feed.SaveMatches(ctx, db, payload)
				if err != nil {
					return err
				}
				logger.Info("matches imported", "saved", result.Saved, "total", result.Total)
				for _, e := range result.Errors {
					logger.Error("import error", "error", e)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dateFrom, "dateFrom", "", "First match date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&dateTo, "dateTo", "", "Last match date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&status, "status", "", "Match status filter, e.g. FINISHED")
	cmd.Flags().StringVar(&competitions, "competitions", "", "Comma-separated competition codes")
	return cmd
}

// run opens and migrates both databases, then hands them to fn.
func run(fn func(ctx context.Context, cfg *config.Config, db *database.Service) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Parse()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataPath, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	db, err := database.NewService(cfg.StatsDBPath(), cfg.AuthDBPath(), logger)
	if err != nil {
		return fmt.Errorf("open databases: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return fn(ctx, cfg, db)
}
