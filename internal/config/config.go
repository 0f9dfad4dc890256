package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the application. Values are read from
// environment variables (optionally seeded from a .env file by the caller).
type Config struct {
	// --- Server & Paths ---
	ServerAddr       string   `env:"SERVER_ADDR" envDefault:":3000"`
	DataPath         string   `env:"DATA_PATH" envDefault:"./data"`
	StatsDBFile      string   `env:"STATS_DB_FILE" envDefault:"database.sqlite"`
	AuthDBFile       string   `env:"AUTH_DB_FILE" envDefault:"users_database.sqlite"`
	StaticDir        string   `env:"STATIC_DIR"`
	FrontendURL      string   `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	CORSAllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`

	// --- Security ---
	JwtSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// --- Query Service ---
	// QueryTimeout bounds each branch of a composite (fan-out) query.
	QueryTimeout time.Duration `env:"QUERY_TIMEOUT" envDefault:"5s"`

	// --- Rate limiting ---
	RateLimitEnabled  bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"300"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`

	// --- External match feed ---
	FeedBaseURL           string `env:"FEED_BASE_URL" envDefault:"https://api.football-data.org/v4"`
	FeedAPIKey            string `env:"FEED_API_KEY"`
	FeedRequestsPerMinute int    `env:"FEED_REQUESTS_PER_MINUTE" envDefault:"10"`

	// --- Email (SMTP) ---
	SmtpHost   string `env:"SMTP_HOST"`
	SmtpPort   int    `env:"SMTP_PORT" envDefault:"587"`
	SmtpUser   string `env:"SMTP_USER"`
	SmtpPass   string `env:"SMTP_PASS"`
	SmtpSender string `env:"SMTP_SENDER"`

	// --- Google OAuth 2.0 (optional) ---
	GoogleOauthClientID     string `env:"GOOGLE_OAUTH_CLIENT_ID"`
	GoogleOauthClientSecret string `env:"GOOGLE_OAUTH_CLIENT_SECRET"`
	GoogleOauthRedirectURL  string `env:"GOOGLE_OAUTH_REDIRECT_URL"`

	// --- Logging ---
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// New creates a new Config instance by loading values from environment variables.
// It fails fast when a critical value is missing or malformed.
func New() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}

	if cfg.JwtSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is not set")
	}
	if cfg.QueryTimeout <= 0 {
		return nil, errors.New("QUERY_TIMEOUT must be positive")
	}
	if cfg.RateLimitEnabled && (cfg.RateLimitRequests <= 0 || cfg.RateLimitWindow <= 0) {
		return nil, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
	}

	if _, err := url.Parse(cfg.FrontendURL); err != nil {
		return nil, errors.New("invalid FRONTEND_URL format")
	}

	return cfg, nil
}

// Parse reads the environment without the server's validation. Offline
// tools that never issue tokens use it.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// StatsDBPath is the full path of the statistics database file.
func (c *Config) StatsDBPath() string {
	return filepath.Join(c.DataPath, c.StatsDBFile)
}

// AuthDBPath is the full path of the users database file.
func (c *Config) AuthDBPath() string {
	return filepath.Join(c.DataPath, c.AuthDBFile)
}

// GoogleOAuthEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleOauthClientID != "" && c.GoogleOauthClientSecret != ""
}

// SMTPEnabled reports whether outgoing mail is configured.
func (c *Config) SMTPEnabled() bool {
	return c.SmtpHost != "" && c.SmtpSender != ""
}
