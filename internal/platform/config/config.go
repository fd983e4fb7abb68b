package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, read once at startup.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      Server
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Automation  AutomationConfig
	Tracing     TracingConfig
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string        `env:"CASEFLOW_ADDR" envDefault:":8080"`
	JWTSigningKey string        `env:"JWT_SIGNING_KEY"`
	JWTIssuer     string        `env:"JWT_ISSUER"`
	ShutdownGrace time.Duration `env:"SHUTDOWN_GRACE" envDefault:"10s"`
}

// DatabaseConfig selects Postgres. An empty URL runs every store in memory.
type DatabaseConfig struct {
	URL          string        `env:"DATABASE_URL"`
	MaxOpenConns int           `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns int           `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	TxTimeout    time.Duration `env:"TX_TIMEOUT" envDefault:"5s"`
	Migrate      bool          `env:"DATABASE_MIGRATE" envDefault:"true"`
}

// RedisConfig selects the shared run lock. An empty URL keeps it in process.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig enables the timeline outbox relay when Brokers is set.
type KafkaConfig struct {
	Brokers       []string      `env:"KAFKA_BROKERS" envSeparator:","`
	TimelineTopic string        `env:"KAFKA_TIMELINE_TOPIC" envDefault:"case.timeline"`
	Partitions    int32         `env:"KAFKA_TIMELINE_PARTITIONS" envDefault:"3"`
	PollInterval  time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"1s"`
	BatchSize     int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
}

type AutomationConfig struct {
	RunLockTTL time.Duration `env:"RUN_LOCK_TTL" envDefault:"2m"`

	// SeedDefaultRule provisions auto_approve_simple_renewals for SeedTenantID at startup.
	SeedDefaultRule bool  `env:"SEED_DEFAULT_RULE" envDefault:"false"`
	SeedTenantID    int64 `env:"SEED_TENANT_ID" envDefault:"1"`
}

// TracingConfig enables OTLP export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"caseflow"`
}

const devSigningKey = "dev-secret-key-change-in-production"

// FromEnv parses Config from the environment and applies cross-field checks.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	if c.Server.JWTSigningKey == "" {
		if c.IsProduction() {
			return errors.New("JWT_SIGNING_KEY is required in production")
		}
		c.Server.JWTSigningKey = devSigningKey
	}
	if c.Kafka.BatchSize < 1 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive, got %d", c.Kafka.BatchSize)
	}
	if c.Automation.RunLockTTL <= 0 {
		return fmt.Errorf("RUN_LOCK_TTL must be positive, got %s", c.Automation.RunLockTTL)
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// OutboxEnabled reports whether timeline events are relayed to Kafka. The
// outbox table only exists with Postgres.
func (c Config) OutboxEnabled() bool {
	return c.Database.URL != "" && len(c.Kafka.Brokers) > 0
}
