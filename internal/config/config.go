// Package config loads application configuration from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// envPrefix is prepended to every variable name below.
const envPrefix = "ACMROSTER_"

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`

	BaseURL    string `env:"BASE_URL, default=https://services.acm.org" validate:"required,url"`
	LoginPath  string `env:"LOGIN_PATH, default=/public/chapters/login.cfm" validate:"required,startswith=/"`
	ExportPath string `env:"EXPORT_PATH, default=/public/chapters/roster_export.cfm" validate:"required,startswith=/"`

	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT, default=30s" validate:"gt=0"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL, default=0s" validate:"gte=0"`

	ListenAddr  string `env:"LISTEN_ADDR, default=127.0.0.1:8080" validate:"required,hostname_port"`
	JournalPath string `env:"JOURNAL_PATH"`
	LogLevel    string `env:"LOG_LEVEL, default=info" validate:"oneof=debug info warn error"`
}

// HasCredentials returns true when both Username and Password are non-empty.
// The CLI prompts for whatever is missing.
func (c *Config) HasCredentials() bool {
	return c.Username != "" && c.Password != ""
}

// SlogLevel maps LogLevel to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads ACMROSTER_* environment variables and returns a validated Config.
// Credentials (ACMROSTER_USERNAME, ACMROSTER_PASSWORD) are optional. Optional
// variables with defaults: ACMROSTER_BASE_URL (https://services.acm.org),
// ACMROSTER_REQUEST_TIMEOUT (30s), ACMROSTER_REFRESH_INTERVAL (0, disabled),
// ACMROSTER_LISTEN_ADDR (127.0.0.1:8080), ACMROSTER_LOG_LEVEL (info).
// ACMROSTER_JOURNAL_PATH enables the SQLite refresh journal.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper(envPrefix, lookuper),
	}); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, validationError(err)
	}
	return &cfg, nil
}

// validationError flattens validator errors into one message naming the
// offending variables.
func validationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("%s%s failed %q validation", envPrefix, envName(fe.StructField()), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// envName converts a Go field name like RequestTimeout to REQUEST_TIMEOUT.
func envName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := field[i-1]
			if prev < 'A' || prev > 'Z' {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}
