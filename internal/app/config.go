package app

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"github.com/odyssey-erp/odyssey-receivables/internal/analytics"
	"github.com/odyssey-erp/odyssey-receivables/internal/ingest"
)

// Dataset layouts selectable through DATASET_LAYOUT.
const (
	LayoutLedger  = "ledger"
	LayoutCompact = "compact"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development" validate:"oneof=development staging production test"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080" validate:"required"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s" validate:"gt=0"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s" validate:"gt=0"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`
	AppVersion        string        `envconfig:"APP_VERSION" default:"dev"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty" validate:"oneof=pretty text json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	PGDSN      string `envconfig:"PG_DSN"`
	PGSchema   string `envconfig:"PG_SCHEMA" default:"public" validate:"required"`
	PGMaxConns int32  `envconfig:"PG_MAX_CONNS" default:"4" validate:"gte=1"`

	RedisAddr  string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379" validate:"required"`
	DatasetTTL time.Duration `envconfig:"DATASET_TTL" default:"1h" validate:"gte=0"`

	OpenItemsSource string `envconfig:"OPEN_ITEMS_SOURCE" validate:"required"`
	SalesSource     string `envconfig:"SALES_SOURCE" validate:"required"`
	CSVDelimiter    string `envconfig:"CSV_DELIMITER" default:";" validate:"required"`
	DatasetLayout   string `envconfig:"DATASET_LAYOUT" default:"ledger" validate:"oneof=ledger compact"`

	RefreshCron       string `envconfig:"REFRESH_CRON" default:"0 * * * *"`
	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"2" validate:"gte=1"`
	RateLimitPerMin   int    `envconfig:"RATE_LIMIT_PER_MIN" default:"10" validate:"gte=1"`

	GotenbergURL string `envconfig:"GOTENBERG_URL" validate:"omitempty,url"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: missing")
	}
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("config: %s fails %q", fe.StructField(), fe.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	if utf8.RuneCountInString(c.CSVDelimiter) != 1 {
		return fmt.Errorf("config: CSV_DELIMITER must be a single character, got %q", c.CSVDelimiter)
	}
	if c.UsesPostgres() && strings.TrimSpace(c.PGDSN) == "" {
		return errors.New("config: PG_DSN is required when a ledger source is postgres")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// UsesPostgres reports whether either ledger is read from the database.
func (c *Config) UsesPostgres() bool {
	return c != nil && (strings.TrimSpace(c.OpenItemsSource) == ingest.PostgresLocation ||
		strings.TrimSpace(c.SalesSource) == ingest.PostgresLocation)
}

// Delimiter returns the CSV field separator.
func (c *Config) Delimiter() rune {
	if c == nil {
		return ingest.DefaultDelimiter
	}
	r, _ := utf8.DecodeRuneInString(c.CSVDelimiter)
	if r == utf8.RuneError {
		return ingest.DefaultDelimiter
	}
	return r
}

// Schemas resolves the layout of each ledger. Database relations always carry
// the compact layout.
func (c *Config) Schemas() analytics.Schemas {
	schemas := analytics.DefaultSchemas
	if c == nil {
		return schemas
	}
	if c.DatasetLayout == LayoutCompact {
		schemas.OpenItems = analytics.OpenItemsCompactSchema
		schemas.Sales = analytics.SalesCompactSchema
	}
	if strings.TrimSpace(c.OpenItemsSource) == ingest.PostgresLocation {
		schemas.OpenItems = analytics.OpenItemsCompactSchema
	}
	if strings.TrimSpace(c.SalesSource) == ingest.PostgresLocation {
		schemas.Sales = analytics.SalesCompactSchema
	}
	return schemas
}
