// Package testkit starts the Postgres and Redis dependencies of integration tests,
// either as testcontainers or from externally provided endpoints.
package testkit

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds environment-driven configuration for integration test infrastructure.
type Config struct {
	PGImage        string
	RedisImage     string
	PGDSN          string        // If set, skip the Postgres container.
	RedisAddr      string        // If set, skip the Redis container.
	StartupTimeout time.Duration // Max time to wait for containers to become ready.
	KeepContainers bool
}

// LoadConfig reads RATEBOT_TEST_* settings from the environment.
func LoadConfig() Config {
	return Config{
		PGImage:        env("RATEBOT_TEST_PG_IMAGE", "postgres:18.1-alpine"),
		RedisImage:     env("RATEBOT_TEST_REDIS_IMAGE", "redis:8.4.0-alpine"),
		PGDSN:          os.Getenv("RATEBOT_TEST_PG_DSN"),
		RedisAddr:      os.Getenv("RATEBOT_TEST_REDIS_ADDR"),
		StartupTimeout: envParsed("RATEBOT_TEST_STARTUP_TIMEOUT", 90*time.Second, parseTimeout),
		KeepContainers: envParsed("RATEBOT_TEST_KEEP_CONTAINERS", false, strconv.ParseBool),
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envParsed[T any](key string, def T, parse func(string) (T, error)) T {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	out, err := parse(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "testkit: invalid value %q for %s, using default %v\n", v, key, def)
		return def
	}
	return out
}

// parseTimeout accepts a Go duration or a plain number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}
