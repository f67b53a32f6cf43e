// Package config loads service configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config is the full service configuration.
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Idempotency IdempotencyConfig
	Validation  ValidationConfig
	Notify      NotifyConfig
	Redis       RedisConfig
	Worker      WorkerConfig
	Tracing     TracingConfig
}

type AppConfig struct {
	Env      string
	Port     string
	LogLevel string
}

// IsDevelopment reports whether the service runs in development mode.
func (c AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

type DatabaseConfig struct {
	Driver         string
	URL            string
	MaxConns       int32
	MinConns       int32
	MigrateOnStart bool
}

type IdempotencyConfig struct {
	Enabled bool
	TTL     time.Duration
}

type ValidationConfig struct {
	// BackorderPolicy is "deny", "allow" or a CEL expression.
	BackorderPolicy string
}

type NotifyConfig struct {
	Sink         string
	KafkaBrokers []string
	KafkaTopic   string
	RedisChannel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type WorkerConfig struct {
	OutboxBatchSize    int
	OutboxPollInterval time.Duration
	ReconcileInterval  time.Duration
	// OutboxRetention is how long published outbox rows are kept.
	OutboxRetention time.Duration
	MetricsPort     string
}

type TracingConfig struct {
	Enabled    bool
	Endpoint   string
	SampleRate float64
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("STORAGE_DRIVER", StoragePostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 25)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATE_ON_START", true)

	v.SetDefault("IDEMPOTENCY_ENABLED", false)
	v.SetDefault("IDEMPOTENCY_TTL", "24h")

	v.SetDefault("BACKORDER_POLICY", "deny")

	v.SetDefault("NOTIFY_SINK", "log")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "stockledger.changes")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_CHANNEL", "stockledger.changes")

	v.SetDefault("OUTBOX_BATCH_SIZE", 100)
	v.SetDefault("OUTBOX_POLL_INTERVAL", "1s")
	v.SetDefault("RECONCILE_INTERVAL", "15m")
	v.SetDefault("OUTBOX_RETENTION", "168h")
	v.SetDefault("WORKER_METRICS_PORT", "9091")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_ENDPOINT", "localhost:4318")
	v.SetDefault("OTEL_SAMPLE_RATE", 1.0)
}

// Load reads the environment, overlaying an optional .env file found in
// searchPaths (default: the working directory).
func Load(searchPaths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(".env")
	v.SetConfigType("env")
	if len(searchPaths) == 0 {
		searchPaths = []string{"."}
	}
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("APP_ENV"),
			Port:     v.GetString("APP_PORT"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Driver:         strings.ToLower(v.GetString("STORAGE_DRIVER")),
			URL:            v.GetString("DATABASE_URL"),
			MaxConns:       v.GetInt32("DB_MAX_CONNS"),
			MinConns:       v.GetInt32("DB_MIN_CONNS"),
			MigrateOnStart: v.GetBool("MIGRATE_ON_START"),
		},
		Idempotency: IdempotencyConfig{
			Enabled: v.GetBool("IDEMPOTENCY_ENABLED"),
			TTL:     v.GetDuration("IDEMPOTENCY_TTL"),
		},
		Validation: ValidationConfig{
			BackorderPolicy: v.GetString("BACKORDER_POLICY"),
		},
		Notify: NotifyConfig{
			Sink:         strings.ToLower(v.GetString("NOTIFY_SINK")),
			KafkaBrokers: splitList(v.GetString("KAFKA_BROKERS")),
			KafkaTopic:   v.GetString("KAFKA_TOPIC"),
			RedisChannel: v.GetString("REDIS_CHANNEL"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Worker: WorkerConfig{
			OutboxBatchSize:    v.GetInt("OUTBOX_BATCH_SIZE"),
			OutboxPollInterval: v.GetDuration("OUTBOX_POLL_INTERVAL"),
			ReconcileInterval:  v.GetDuration("RECONCILE_INTERVAL"),
			OutboxRetention:    v.GetDuration("OUTBOX_RETENTION"),
			MetricsPort:        v.GetString("WORKER_METRICS_PORT"),
		},
		Tracing: TracingConfig{
			Enabled:    v.GetBool("OTEL_ENABLED"),
			Endpoint:   v.GetString("OTEL_ENDPOINT"),
			SampleRate: v.GetFloat64("OTEL_SAMPLE_RATE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case StoragePostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be postgres or memory, got %q", c.Database.Driver))
	}

	if c.Database.MaxConns <= 0 || c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, fmt.Errorf("invalid pool size: min %d, max %d", c.Database.MinConns, c.Database.MaxConns))
	}

	switch c.Notify.Sink {
	case "log", "none":
	case "kafka":
		if len(c.Notify.KafkaBrokers) == 0 || c.Notify.KafkaTopic == "" {
			errs = append(errs, errors.New("NOTIFY_SINK=kafka requires KAFKA_BROKERS and KAFKA_TOPIC"))
		}
	case "redis":
		if !c.Redis.Enabled() {
			errs = append(errs, errors.New("NOTIFY_SINK=redis requires REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("NOTIFY_SINK must be log, kafka, redis or none, got %q", c.Notify.Sink))
	}

	if c.Idempotency.Enabled && c.Idempotency.TTL <= 0 {
		errs = append(errs, errors.New("IDEMPOTENCY_TTL must be positive"))
	}

	if c.Worker.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	if c.Worker.OutboxPollInterval <= 0 || c.Worker.ReconcileInterval <= 0 {
		errs = append(errs, errors.New("worker intervals must be positive"))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATE must be within [0, 1], got %v", c.Tracing.SampleRate))
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
