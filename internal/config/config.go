// Package config loads the server configuration from the environment once at
// startup. Components receive the parts they need; nothing reads os.Getenv
// after Load returns.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	FrontendURL string `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`
	// AllowedOrigins are the CORS origins; defaults to the frontend.
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`

	Database Database
	Auth     Auth
	GitHub   GitHub
	Email    Email
}

type Database struct {
	Driver string `envconfig:"DB_DRIVER" default:"sqlite" description:"sqlite or postgres"`
	// DSN is a file path for sqlite or a connection URL for postgres.
	DSN string `envconfig:"DB_DSN" default:"data/opencollab.db"`
}

type Auth struct {
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	// CookieSecure marks the token cookie Secure; enable behind HTTPS.
	CookieSecure bool `envconfig:"COOKIE_SECURE" default:"false"`
}

type GitHub struct {
	ClientID     string `envconfig:"GITHUB_CLIENT_ID"`
	ClientSecret string `envconfig:"GITHUB_CLIENT_SECRET"`
	CallbackURL  string `envconfig:"GITHUB_CALLBACK_URL"`
}

// Enabled reports whether OAuth credentials were supplied.
func (g GitHub) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type Email struct {
	SenderAddress string `envconfig:"EMAIL_SENDER_ADDRESS" default:"no-reply@opencollab.dev"`
	SMTP          SMTP

	QueueSize   int           `envconfig:"EMAIL_QUEUE_SIZE" default:"100"`
	Workers     int           `envconfig:"EMAIL_WORKERS" default:"2"`
	MaxAttempts uint          `envconfig:"EMAIL_MAX_ATTEMPTS" default:"3"`
	RetryDelay  time.Duration `envconfig:"EMAIL_RETRY_DELAY" default:"2s"`
	SendTimeout time.Duration `envconfig:"EMAIL_SEND_TIMEOUT" default:"30s"`
}

type SMTP struct {
	Host     string `envconfig:"EMAIL_SMTP_HOST"`
	Port     string `envconfig:"EMAIL_SMTP_PORT" default:"587"`
	Identity string `envconfig:"EMAIL_SMTP_IDENTITY"`
	Username string `envconfig:"EMAIL_SMTP_USERNAME"`
	Password string `envconfig:"EMAIL_SMTP_PASSWORD"`
}

// Load reads an optional .env file, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{cfg.FrontendURL}
	}
	if cfg.GitHub.CallbackURL == "" {
		cfg.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not one of sqlite, postgres", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("DB_DSN is required"))
	}
	if (c.GitHub.ClientID == "") != (c.GitHub.ClientSecret == "") {
		errs = append(errs, errors.New("GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET must be set together"))
	}
	if c.Email.Workers < 1 || c.Email.QueueSize < 1 {
		errs = append(errs, errors.New("EMAIL_WORKERS and EMAIL_QUEUE_SIZE must be at least 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
