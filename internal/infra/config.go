package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const insecureJWTSecret = "change-me-in-production"

// Config holds all application configuration parsed from environment variables.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// Database
	DatabaseURL   string `env:"DATABASE_URL"`
	PGHost        string `env:"PGHOST" envDefault:"localhost"`
	PGPort        int    `env:"PGPORT" envDefault:"5435"`
	PGUser        string `env:"PGUSER" envDefault:"payouts"`
	PGPassword    string `env:"PGPASSWORD" envDefault:"payouts"`
	PGDatabase    string `env:"PGDATABASE" envDefault:"payouts"`
	PGSSLMode     string `env:"PGSSLMODE" envDefault:"disable"`
	DBMaxConns    int32  `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns    int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	MigrationsDir string `env:"MIGRATIONS_DIR"`

	// Redis
	RedisURL       string        `env:"REDIS_URL" envDefault:"redis://localhost:6380"`
	PayoutCacheTTL time.Duration `env:"PAYOUT_CACHE_TTL" envDefault:"5m"`

	// JWT
	JWTSecret      string `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTAdminExpiry string `env:"JWT_ADMIN_EXPIRY" envDefault:"8h"`

	// Server
	APIPort            int    `env:"API_PORT" envDefault:"3100"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`

	// Kafka
	KafkaBrokers       string        `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled       bool          `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaTopicPrefix   string        `env:"KAFKA_TOPIC_PREFIX" envDefault:"payouts"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	// Xendit
	XenditAPIKey        string        `env:"XENDIT_API_KEY"`
	XenditBaseURL       string        `env:"XENDIT_BASE_URL" envDefault:"https://api.xendit.co"`
	XenditCallbackToken string        `env:"XENDIT_CALLBACK_TOKEN"`
	XenditTimeout       time.Duration `env:"XENDIT_TIMEOUT" envDefault:"30s"`

	// Payout pipeline
	PayoutCurrency      string        `env:"PAYOUT_CURRENCY" envDefault:"PHP"`
	DispatchConcurrency int           `env:"DISPATCH_CONCURRENCY" envDefault:"1"`
	ReconcileInterval   time.Duration `env:"RECONCILE_INTERVAL" envDefault:"5m"`
	ReconcileBatchSize  int           `env:"RECONCILE_BATCH_SIZE" envDefault:"100"`
	BreakerFailures     int           `env:"PROVIDER_BREAKER_FAILURES" envDefault:"5"`
	BreakerReset        time.Duration `env:"PROVIDER_BREAKER_RESET" envDefault:"1m"`

	// SendGrid
	SendGridAPIKey    string `env:"SENDGRID_API_KEY"`
	SendGridFromEmail string `env:"SENDGRID_FROM_EMAIL" envDefault:"payouts@example.com"`
	SendGridFromName  string `env:"SENDGRID_FROM_NAME" envDefault:"Affiliate Payouts"`
	SendGridSandbox   bool   `env:"SENDGRID_SANDBOX" envDefault:"false"`

	// First super admin, created at start-up when no account with that email exists
	BootstrapAdminEmail    string `env:"ADMIN_BOOTSTRAP_EMAIL"`
	BootstrapAdminPassword string `env:"ADMIN_BOOTSTRAP_PASSWORD"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	if c.DispatchConcurrency < 1 {
		return fmt.Errorf("DISPATCH_CONCURRENCY must be at least 1, got %d", c.DispatchConcurrency)
	}
	if c.ReconcileBatchSize < 1 {
		return fmt.Errorf("RECONCILE_BATCH_SIZE must be at least 1, got %d", c.ReconcileBatchSize)
	}
	if _, err := time.ParseDuration(c.JWTAdminExpiry); err != nil {
		return fmt.Errorf("JWT_ADMIN_EXPIRY is not a duration: %w", err)
	}
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == insecureJWTSecret {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	if c.XenditAPIKey == "" {
		return fmt.Errorf("XENDIT_API_KEY is required")
	}
	if c.XenditCallbackToken == "" {
		return fmt.Errorf("XENDIT_CALLBACK_TOKEN is required")
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase, c.PGSSLMode)
}

// AdminTokenTTL returns the parsed admin token lifetime.
func (c *Config) AdminTokenTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAdminExpiry)
	if err != nil {
		return 8 * time.Hour
	}
	return d
}
