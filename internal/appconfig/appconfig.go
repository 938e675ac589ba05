// Package appconfig loads the scheduler's environment-variable
// configuration contract into a single typed struct.
package appconfig

import (
	"time"

	"github.com/nandlabs/jobsched/config"
)

const (
	defaultMaxWorkers             = 20
	defaultWorkerQueueMultiplier  = 4
	defaultRefreshIntervalSeconds = 60
	defaultRequestTimeoutSeconds  = 30
	defaultMaxRetries             = 3
	defaultListenHost             = "0.0.0.0"
	defaultListenPort             = 8080
)

// Config is the fully resolved environment-variable configuration for one
// scheduler process.
type Config struct {
	DatabaseURL string
	LogLevel    string

	ListenHost string
	ListenPort int

	MaxWorkers      int
	WorkerQueueSize int
	RefreshInterval time.Duration
	RequestTimeout  time.Duration
	MaxRetries      int
}

// Load reads the recognized environment variables, applying the wired
// defaults for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: config.GetEnvAsString("DATABASE_URL", ""),
		LogLevel:    config.GetEnvAsString("LOG_LEVEL", "INFO"),
		ListenHost:  config.GetEnvAsString("LISTEN_HOST", defaultListenHost),
	}

	var err error
	if cfg.ListenPort, err = config.GetEnvAsInt("LISTEN_PORT", defaultListenPort); err != nil {
		return nil, err
	}
	if cfg.MaxWorkers, err = config.GetEnvAsInt("MAX_WORKERS", defaultMaxWorkers); err != nil {
		return nil, err
	}
	if cfg.WorkerQueueSize, err = config.GetEnvAsInt("WORKER_QUEUE_SIZE", cfg.MaxWorkers*defaultWorkerQueueMultiplier); err != nil {
		return nil, err
	}

	refreshSeconds, err := config.GetEnvAsInt("REFRESH_INTERVAL_SECONDS", defaultRefreshIntervalSeconds)
	if err != nil {
		return nil, err
	}
	cfg.RefreshInterval = time.Duration(refreshSeconds) * time.Second

	requestTimeoutSeconds, err := config.GetEnvAsInt("REQUEST_TIMEOUT_SECONDS", defaultRequestTimeoutSeconds)
	if err != nil {
		return nil, err
	}
	cfg.RequestTimeout = time.Duration(requestTimeoutSeconds) * time.Second

	if cfg.MaxRetries, err = config.GetEnvAsInt("MAX_RETRIES", defaultMaxRetries); err != nil {
		return nil, err
	}

	return cfg, nil
}
