package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	// ----------------------------
	// Email providers (first configured wins: Resend, SMTP, console)
	// ----------------------------
	EmailFrom    string `envconfig:"EMAIL_FROM" default:"noreply@pulsetrigger.local"`
	ResendAPIKey string `envconfig:"RESEND_API_KEY" default:""`
	SMTPHost     string `envconfig:"SMTP_HOST" default:""`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUser     string `envconfig:"SMTP_USER" default:""`
	SMTPPassword string `envconfig:"SMTP_PASSWORD" default:""`

	// ----------------------------
	// Dispatch
	// ----------------------------
	DispatchInterval time.Duration `envconfig:"DISPATCH_INTERVAL" default:"30s"`
	RateLimit        int           `envconfig:"RATE_LIMIT" default:"10"`
	RetryAttempts    int           `envconfig:"SEND_RETRY_ATTEMPTS" default:"0"`

	// ----------------------------
	// Templates
	// ----------------------------
	TemplatesFile string `envconfig:"TEMPLATES_FILE" default:""`

	// ----------------------------
	// HTTP API
	// ----------------------------
	APIPort string `envconfig:"API_PORT" default:"8080"`

	// ----------------------------
	// Metrics
	// ----------------------------
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	// ----------------------------
	// Storage
	// ----------------------------
	StoreDriver string `envconfig:"STORE_DRIVER" default:"memory"`
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StorePostgres)
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if c.DispatchInterval <= 0 {
		return fmt.Errorf("DISPATCH_INTERVAL must be positive, got %s", c.DispatchInterval)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("SEND_RETRY_ATTEMPTS must not be negative")
	}
	return nil
}
