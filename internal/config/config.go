package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName       = "WalletOps"
	defaultAppEnv        = "development"
	defaultPort          = "8080"
	defaultLogLevel      = "info"
	defaultShutdownDelay = 10 * time.Second
	defaultCacheTTL      = 5 * time.Minute
	defaultPartitions    = 4
	defaultGroup         = "ledger-updater"
	defaultMaxAttempts   = 3
	defaultRetryBackoff  = 100 * time.Millisecond
	defaultReclaimIdle   = 30 * time.Second
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration

	// Fast cache
	CacheTTL time.Duration

	// Event channel
	EventPartitions int
	EventGroup      string

	// Ledger updater
	UpdaterMaxAttempts  int
	UpdaterRetryBackoff time.Duration
	ReclaimIdle         time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:             getEnv("APP_NAME", defaultAppName),
		AppEnv:              getEnv("APP_ENV", defaultAppEnv),
		Port:                getEnv("PORT", defaultPort),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		ShutdownPeriod:      defaultShutdownDelay,
		CacheTTL:            defaultCacheTTL,
		EventPartitions:     defaultPartitions,
		EventGroup:          getEnv("EVENT_GROUP", defaultGroup),
		UpdaterMaxAttempts:  defaultMaxAttempts,
		UpdaterRetryBackoff: defaultRetryBackoff,
		ReclaimIdle:         defaultReclaimIdle,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.CacheTTL, err = durationEnv("CACHE_TTL", cfg.CacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.UpdaterRetryBackoff, err = durationEnv("UPDATER_RETRY_BACKOFF", cfg.UpdaterRetryBackoff); err != nil {
		return Config{}, err
	}
	if cfg.ReclaimIdle, err = durationEnv("EVENT_RECLAIM_IDLE", cfg.ReclaimIdle); err != nil {
		return Config{}, err
	}
	if cfg.EventPartitions, err = intEnv("EVENT_PARTITIONS", cfg.EventPartitions); err != nil {
		return Config{}, err
	}
	if cfg.UpdaterMaxAttempts, err = intEnv("UPDATER_MAX_ATTEMPTS", cfg.UpdaterMaxAttempts); err != nil {
		return Config{}, err
	}

	if cfg.EventPartitions < 1 {
		return Config{}, fmt.Errorf("EVENT_PARTITIONS must be at least 1")
	}
	if cfg.UpdaterMaxAttempts < 1 {
		return Config{}, fmt.Errorf("UPDATER_MAX_ATTEMPTS must be at least 1")
	}

	if !IsDev(cfg.AppEnv) {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the provided environment name denotes local development.
func IsDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	}
	return false
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
