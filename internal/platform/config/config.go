package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr            string
	DatabaseURL     string
	DirectoryURL    string
	Redis           RedisConfig
	CacheTTL        time.Duration
	ShutdownTimeout time.Duration
}

// RedisConfig carries connection settings for the shared resolution cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("EVENTGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	return Server{
		Addr:         addr,
		DatabaseURL:  os.Getenv("EVENTGATE_DATABASE_URL"),
		DirectoryURL: os.Getenv("EVENTGATE_DIRECTORY_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("EVENTGATE_REDIS_URL"),
			PoolSize:     envInt("EVENTGATE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("EVENTGATE_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("EVENTGATE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("EVENTGATE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("EVENTGATE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		CacheTTL:        envDuration("EVENTGATE_CACHE_TTL", 5*time.Minute),
		ShutdownTimeout: envDuration("EVENTGATE_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}
