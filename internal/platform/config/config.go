// Package config builds runtime configuration from the environment so main
// stays lean. Every knob has a development default; production deployments
// override through CIVREG_* variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	strutil "civreg/pkg/platform/strings"
)

// Config is the full runtime configuration for the registry service.
type Config struct {
	Addr            string
	DatabaseURL     string
	JWTSigningKey   string
	JWTIssuer       string
	LogLevel        string
	ShutdownTimeout time.Duration

	Redis RedisConfig
	Kafka KafkaConfig

	// DirectoryCacheTTL bounds how long office hierarchy lookups are cached.
	DirectoryCacheTTL time.Duration

	// NotifyBuffer sizes the in-process event queue between the workflow
	// engine and the notification worker.
	NotifyBuffer int
}

// RedisConfig configures the optional directory cache. An empty URL disables
// caching entirely.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional event broker. No brokers means events
// go to the structured log instead.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:            envOr("CIVREG_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("CIVREG_DATABASE_URL"),
		JWTSigningKey:   envOr("CIVREG_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:       envOr("CIVREG_JWT_ISSUER", "civreg"),
		LogLevel:        envOr("CIVREG_LOG_LEVEL", "info"),
		ShutdownTimeout: envDurationOr("CIVREG_SHUTDOWN_TIMEOUT", 10*time.Second),
		Redis: RedisConfig{
			URL:          os.Getenv("CIVREG_REDIS_URL"),
			PoolSize:     envIntOr("CIVREG_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("CIVREG_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("CIVREG_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("CIVREG_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("CIVREG_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("CIVREG_KAFKA_BROKERS")),
			Topic:   os.Getenv("CIVREG_KAFKA_TOPIC"),
		},
		DirectoryCacheTTL: envDurationOr("CIVREG_DIRECTORY_CACHE_TTL", time.Hour),
		NotifyBuffer:      envIntOr("CIVREG_NOTIFY_BUFFER", 256),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return strutil.DedupeAndTrim(strings.Split(v, ","))
}
