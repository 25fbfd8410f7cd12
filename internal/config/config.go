package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string

	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UseSSL       bool
	S3Region       string
	PayloadsBucket string

	RedisURL    string
	CachePrefix string
	CacheTTL    time.Duration

	WorkerConcurrency int
	PollInterval      time.Duration
	StaleAfter        time.Duration
	HeartbeatInterval time.Duration
	HTTPAddr          string

	HolderSampleSize  int
	HolderConcurrency int

	LogLevel  string
	LogFormat string

	ProvidersFile string
	Providers     Providers
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key, def string) bool {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Load reads the environment. Provider settings come from PROVIDERS_FILE when
// set, compiled-in defaults otherwise.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3AccessKey:       os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:       os.Getenv("S3_SECRET_KEY"),
		S3UseSSL:          getBool("S3_USE_SSL", "false"),
		S3Region:          os.Getenv("S3_REGION"),
		PayloadsBucket:    getEnv("PAYLOADS_BUCKET", "vetting-payloads"),
		RedisURL:          os.Getenv("REDIS_URL"),
		CachePrefix:       getEnv("CACHE_PREFIX", "vetting:"),
		CacheTTL:          getDuration("CACHE_TTL", 7*24*time.Hour),
		WorkerConcurrency: getInt("WORKER_CONCURRENCY", 2),
		PollInterval:      getDuration("POLL_INTERVAL", 2*time.Second),
		StaleAfter:        getDuration("STALE_AFTER", 15*time.Minute),
		HeartbeatInterval: getDuration("HEARTBEAT_INTERVAL", 30*time.Second),
		HTTPAddr:          os.Getenv("HTTP_ADDR"),
		HolderSampleSize:  getInt("HOLDER_SAMPLE_SIZE", 10),
		HolderConcurrency: getInt("HOLDER_CONCURRENCY", 4),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		ProvidersFile:     os.Getenv("PROVIDERS_FILE"),
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}
	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 1
	}

	providers := DefaultProviders()
	if cfg.ProvidersFile != "" {
		p, err := LoadProviders(cfg.ProvidersFile)
		if err != nil {
			return cfg, fmt.Errorf("providers config: %w", err)
		}
		providers = p
	}
	providers.resolveEnv()
	cfg.Providers = providers
	return cfg, nil
}

// ArchiveEnabled reports whether raw payloads should be written to object storage.
func (c Config) ArchiveEnabled() bool {
	return c.S3Endpoint != "" && c.PayloadsBucket != ""
}
