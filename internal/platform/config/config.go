// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultTopic is where grunnlag change envelopes are published.
const DefaultTopic = "grunnlag.endret.v1"

// Config is the complete process configuration.
type Config struct {
	Database Database
	Kafka    Kafka
	Redis    RedisConfig
	Outbox   Outbox

	// DispatchQueueLimit bounds the in-process dispatcher. Zero is unbounded.
	DispatchQueueLimit int    `env:"DISPATCH_QUEUE_LIMIT" envDefault:"0"`
	OpsAddr            string `env:"OPS_ADDR" envDefault:":9090"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat          string `env:"LOG_FORMAT" envDefault:"json"`
}

// Database selects the ledger backend. Exactly one of URL and SQLitePath is set.
type Database struct {
	URL             string        `env:"DATABASE_URL"`
	SQLitePath      string        `env:"SQLITE_PATH"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
	TxTimeout       time.Duration `env:"DATABASE_TX_TIMEOUT" envDefault:"5s"`
}

// Postgres reports whether the Postgres ledger is selected.
func (d Database) Postgres() bool { return d.URL != "" }

// Kafka configures publication and ingestion. Without brokers envelopes are
// logged instead and the server accepts no writes.
type Kafka struct {
	Brokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic       string   `env:"GRUNNLAG_TOPIC" envDefault:"grunnlag.endret.v1"`
	CreateTopic bool     `env:"KAFKA_CREATE_TOPIC" envDefault:"false"`
	Partitions  int32    `env:"KAFKA_PARTITIONS" envDefault:"3"`
	Replication int16    `env:"KAFKA_REPLICATION" envDefault:"1"`

	// IngestTopic carries inbound fact batches. Empty disables ingestion.
	IngestTopic string `env:"KAFKA_INGEST_TOPIC"`
	IngestGroup string `env:"KAFKA_INGEST_GROUP" envDefault:"grunnlag-ingest"`
}

// Enabled reports whether a broker is configured.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

// Ingesting reports whether the server consumes fact batches.
func (k Kafka) Ingesting() bool { return k.Enabled() && k.IngestTopic != "" }

// RedisConfig configures the snapshot cache. An empty URL disables it.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
	SnapshotTTL  time.Duration `env:"SNAPSHOT_CACHE_TTL" envDefault:"10m"`
}

// Outbox configures durable publication.
type Outbox struct {
	Enabled      bool          `env:"OUTBOX_ENABLED" envDefault:"false"`
	PollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"1s"`
	BatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`
	MaxAttempts  int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"8"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// FromEnv parses and validates Config.
func FromEnv() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	switch {
	case c.Database.URL == "" && c.Database.SQLitePath == "":
		errs = append(errs, errors.New("one of DATABASE_URL or SQLITE_PATH is required"))
	case c.Database.URL != "" && c.Database.SQLitePath != "":
		errs = append(errs, errors.New("DATABASE_URL and SQLITE_PATH are mutually exclusive"))
	}
	if c.Outbox.Enabled && !c.Database.Postgres() {
		errs = append(errs, errors.New("OUTBOX_ENABLED requires DATABASE_URL"))
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("GRUNNLAG_TOPIC must not be empty"))
	}
	if c.Kafka.IngestTopic != "" {
		switch {
		case !c.Kafka.Enabled():
			errs = append(errs, errors.New("KAFKA_INGEST_TOPIC requires KAFKA_BROKERS"))
		case c.Kafka.IngestTopic == c.Kafka.Topic:
			errs = append(errs, errors.New("KAFKA_INGEST_TOPIC must differ from GRUNNLAG_TOPIC"))
		case c.Kafka.IngestGroup == "":
			errs = append(errs, errors.New("KAFKA_INGEST_GROUP must not be empty"))
		}
	}
	if c.DispatchQueueLimit < 0 {
		errs = append(errs, errors.New("DISPATCH_QUEUE_LIMIT must not be negative"))
	}
	if c.Outbox.BatchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	if c.Outbox.MaxAttempts <= 0 {
		errs = append(errs, errors.New("OUTBOX_MAX_ATTEMPTS must be positive"))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
