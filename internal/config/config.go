// Package config loads gateway configuration from the environment with
// koanf, applying defaults first and validating the result.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Redis      RedisConfig      `koanf:"redis"`
	Processors ProcessorsConfig `koanf:"processors"`
	Worker     WorkerConfig     `koanf:"worker"`
	Retry      RetryConfig      `koanf:"retry"`
	Health     HealthConfig     `koanf:"health"`
	Audit      AuditConfig      `koanf:"audit"`
	Logger     LoggerConfig     `koanf:"logger"`
}

type ServerConfig struct {
	Port              string        `koanf:"port" validate:"required"`
	RequestTimeout    time.Duration `koanf:"request_timeout" validate:"required"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"required"`
	ReadTimeout       time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout      time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout       time.Duration `koanf:"idle_timeout" validate:"required"`
	MaxBodyBytes      int64         `koanf:"max_body_bytes" validate:"required"`
}

type RedisConfig struct {
	Endpoint string `koanf:"endpoint" validate:"required"`
	PoolSize int    `koanf:"pool_size"`
}

type ProcessorsConfig struct {
	DefaultURL      string        `koanf:"default_url" validate:"required,url"`
	FallbackURL     string        `koanf:"fallback_url" validate:"required,url"`
	ConnTimeout     time.Duration `koanf:"conn_timeout" validate:"required"`
	MaxConnsPerHost int           `koanf:"max_conns_per_host" validate:"required"`
}

type WorkerConfig struct {
	// Count <= 0 means one worker per CPU core.
	Count          int           `koanf:"count"`
	QueueCapacity  int           `koanf:"queue_capacity" validate:"required"`
	ProcessTimeout time.Duration `koanf:"process_timeout" validate:"required"`
	DrainTimeout   time.Duration `koanf:"drain_timeout" validate:"required"`
}

type RetryConfig struct {
	BaseDelay   time.Duration `koanf:"base_delay" validate:"required"`
	MaxAttempts int           `koanf:"max_attempts" validate:"required"`
}

type HealthConfig struct {
	PollInterval time.Duration `koanf:"poll_interval" validate:"required"`
	// MinPollGap is the per-processor floor between probes; the health
	// endpoints reject callers probing more than once every 5 seconds.
	MinPollGap   time.Duration `koanf:"min_poll_gap" validate:"required"`
	ProbeTimeout time.Duration `koanf:"probe_timeout" validate:"required"`
}

type AuditConfig struct {
	// PostgresDSN enables the asynchronous audit trail when non-empty.
	PostgresDSN   string        `koanf:"postgres_dsn"`
	BatchSize     int           `koanf:"batch_size"`
	FlushInterval time.Duration `koanf:"flush_interval"`
	BufferSize    int           `koanf:"buffer_size"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

// NewLogger builds the process-wide JSON logger at the configured level.
func (c LoggerConfig) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}

// envKeys maps the environment variables the deployment contract names to
// config paths. Variables not listed here are ignored.
var envKeys = map[string]string{
	"PORT":                           "server.port",
	"REQUEST_TIMEOUT":                "server.request_timeout",
	"REDIS_ENDPOINT":                 "redis.endpoint",
	"REDIS_POOL_SIZE":                "redis.pool_size",
	"PAYMENT_PROCESSOR_URL_DEFAULT":  "processors.default_url",
	"PAYMENT_PROCESSOR_URL_FALLBACK": "processors.fallback_url",
	"PROCESSOR_CONN_TIMEOUT":         "processors.conn_timeout",
	"PROCESSOR_MAX_CONNS":            "processors.max_conns_per_host",
	"WORKER_COUNT":                   "worker.count",
	"QUEUE_CAPACITY":                 "worker.queue_capacity",
	"PROCESS_TIMEOUT":                "worker.process_timeout",
	"DRAIN_TIMEOUT":                  "worker.drain_timeout",
	"RETRY_BASE_DELAY":               "retry.base_delay",
	"MAX_ATTEMPTS":                   "retry.max_attempts",
	"HEALTH_INTERVAL":                "health.poll_interval",
	"HEALTH_MIN_POLL_GAP":            "health.min_poll_gap",
	"HEALTH_PROBE_TIMEOUT":           "health.probe_timeout",
	"POSTGRES_DSN":                   "audit.postgres_dsn",
	"AUDIT_BATCH_SIZE":               "audit.batch_size",
	"AUDIT_FLUSH_INTERVAL":           "audit.flush_interval",
	"LOG_LEVEL":                      "logger.level",
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.port":                "8080",
		"server.request_timeout":     "2s",
		"server.read_header_timeout": "2s",
		"server.read_timeout":        "5s",
		"server.write_timeout":       "5s",
		"server.idle_timeout":        "2s",
		"server.max_body_bytes":      "65536",

		"redis.endpoint":  "redis:6379",
		"redis.pool_size": "64",

		"processors.conn_timeout":       "30s",
		"processors.max_conns_per_host": "100",

		"worker.count":           "0",
		"worker.queue_capacity":  "1000",
		"worker.process_timeout": "10s",
		"worker.drain_timeout":   "30s",

		"retry.base_delay":   "100ms",
		"retry.max_attempts": "3",

		"health.poll_interval": "6s",
		"health.min_poll_gap":  "5s",
		"health.probe_timeout": "4s",

		"audit.batch_size":     "100",
		"audit.flush_interval": "500ms",
		"audit.buffer_size":    "4096",

		"logger.level": "info",
	}
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		logger.Error("failed to load defaults", "error", err)
		return nil, err
	}

	// An empty mapping makes the env provider skip the variable, so only
	// the variables named in envKeys reach the config tree.
	err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}
