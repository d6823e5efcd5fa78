package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// WorkerConfig drives cmd/worker: pool size, polling, per-job timeout and
// the monitor sweeps.
type WorkerConfig struct {
	MaxWorkers             int           `env:"MAX_WORKERS,default=4"`
	PollInterval           time.Duration `env:"WORKER_POLL_INTERVAL,default=1s"`
	MaxIdleInterval        time.Duration `env:"WORKER_MAX_IDLE_INTERVAL,default=30s"`
	JobTimeout             time.Duration `env:"JOB_TIMEOUT,default=10m"`
	StuckThreshold         time.Duration `env:"STUCK_THRESHOLD,default=30m"`
	StuckSweepInterval     time.Duration `env:"STUCK_SWEEP_INTERVAL,default=1m"`
	ErrorRateWindow        time.Duration `env:"ERROR_RATE_WINDOW,default=15m"`
	ErrorRateThreshold     float64       `env:"ERROR_RATE_THRESHOLD,default=0.25"`
	ErrorRateMinSamples    int           `env:"ERROR_RATE_MIN_SAMPLES,default=10"`
	ErrorRateSweepInterval time.Duration `env:"ERROR_RATE_SWEEP_INTERVAL,default=1m"`
	HeartbeatInterval      time.Duration `env:"HEARTBEAT_INTERVAL,default=10s"`
	HeartbeatTTL           time.Duration `env:"HEARTBEAT_TTL,default=30s"`
	LogLevel               string        `env:"LOG_LEVEL,default=info"`
	LogFormat              string        `env:"LOG_FORMAT,default=text"`
}

type APIConfig struct {
	Addr           string        `env:"API_ADDR,default=:8080"`
	RequestTimeout time.Duration `env:"API_REQUEST_TIMEOUT,default=10s"`
	CORSOrigins    []string      `env:"CORS_ALLOWED_ORIGINS,default=*"`
	GinMode        string        `env:"GIN_MODE,default=release"`
	LogLevel       string        `env:"LOG_LEVEL,default=info"`
	LogFormat      string        `env:"LOG_FORMAT,default=text"`
}

// RedisConfig is optional. An empty Addr disables heartbeats and config
// invalidation broadcasts.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,default=0"`
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// to help with testing
var envProcess = envconfig.Process

func LoadWorkerConfig(ctx context.Context) (*WorkerConfig, error) {
	var cfg WorkerConfig
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := validateWorkerConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func LoadAPIConfig(ctx context.Context) (*APIConfig, error) {
	var cfg APIConfig
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := validateAPIConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func LoadRedisConfig(ctx context.Context) (*RedisConfig, error) {
	var cfg RedisConfig
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if cfg.DB < 0 {
		return nil, fmt.Errorf("config validation failed: REDIS_DB must be non-negative")
	}
	return &cfg, nil
}

func validateWorkerConfig(cfg *WorkerConfig) error {
	var errors []string

	if cfg.MaxWorkers < 1 {
		errors = append(errors, "MAX_WORKERS must be at least 1")
	}
	if cfg.PollInterval <= 0 {
		errors = append(errors, "WORKER_POLL_INTERVAL must be positive")
	}
	if cfg.MaxIdleInterval < cfg.PollInterval {
		errors = append(errors, "WORKER_MAX_IDLE_INTERVAL must not be below WORKER_POLL_INTERVAL")
	}
	if cfg.JobTimeout <= 0 {
		errors = append(errors, "JOB_TIMEOUT must be positive")
	}
	if cfg.StuckThreshold <= 0 {
		errors = append(errors, "STUCK_THRESHOLD must be positive")
	}
	if cfg.StuckSweepInterval <= 0 {
		errors = append(errors, "STUCK_SWEEP_INTERVAL must be positive")
	}
	if cfg.ErrorRateWindow <= 0 {
		errors = append(errors, "ERROR_RATE_WINDOW must be positive")
	}
	if cfg.ErrorRateThreshold <= 0 || cfg.ErrorRateThreshold > 1 {
		errors = append(errors, "ERROR_RATE_THRESHOLD must be in (0, 1]")
	}
	if cfg.ErrorRateMinSamples < 1 {
		errors = append(errors, "ERROR_RATE_MIN_SAMPLES must be at least 1")
	}
	if cfg.ErrorRateSweepInterval <= 0 {
		errors = append(errors, "ERROR_RATE_SWEEP_INTERVAL must be positive")
	}
	if cfg.HeartbeatInterval <= 0 {
		errors = append(errors, "HEARTBEAT_INTERVAL must be positive")
	}
	if cfg.HeartbeatTTL <= cfg.HeartbeatInterval {
		errors = append(errors, "HEARTBEAT_TTL must exceed HEARTBEAT_INTERVAL")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

func validateAPIConfig(cfg *APIConfig) error {
	var errors []string

	if strings.TrimSpace(cfg.Addr) == "" {
		errors = append(errors, "API_ADDR is required")
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, "API_REQUEST_TIMEOUT must be positive")
	}
	if len(cfg.CORSOrigins) == 0 {
		errors = append(errors, "CORS_ALLOWED_ORIGINS must list at least one origin")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}
