package testkit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Endpoint is a running dependency: a container we own, or an external address.
type Endpoint struct {
	container testcontainers.Container
	addr      string
}

// Addr is a Postgres DSN or a Redis host:port.
func (e *Endpoint) Addr() string {
	if e == nil {
		return ""
	}
	return e.addr
}

// Terminate stops the container, if one was started.
func (e *Endpoint) Terminate(ctx context.Context) error {
	if e == nil || e.container == nil {
		return nil
	}
	return e.container.Terminate(ctx)
}

// StartPostgres starts a Postgres container with a random database name, unless cfg.PGDSN is set.
func StartPostgres(ctx context.Context, cfg *Config) (*Endpoint, error) {
	if cfg.PGDSN != "" {
		return &Endpoint{addr: cfg.PGDSN}, nil
	}

	ctr, err := postgres.Run(ctx,
		cfg.PGImage,
		postgres.WithDatabase("ratebot_"+randomSuffix()),
		postgres.WithUsername("ratebot"),
		postgres.WithPassword("ratebot"),
		testcontainers.WithWaitStrategyAndDeadline(cfg.StartupTimeout,
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("postgres connection string: %w", err)
	}
	return &Endpoint{container: ctr, addr: dsn}, nil
}

// StartRedis starts a Redis container, unless cfg.RedisAddr is set.
func StartRedis(ctx context.Context, cfg *Config) (*Endpoint, error) {
	if cfg.RedisAddr != "" {
		return &Endpoint{addr: cfg.RedisAddr}, nil
	}

	ctr, err := tcredis.Run(ctx, cfg.RedisImage)
	if err != nil {
		return nil, fmt.Errorf("start redis container: %w", err)
	}

	connStr, err := ctr.ConnectionString(ctx)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("redis connection string: %w", err)
	}
	// Asynq and go-redis take host:port, not redis:// URLs.
	u, err := url.Parse(connStr)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("parse redis connection string %q: %w", connStr, err)
	}
	return &Endpoint{container: ctr, addr: u.Host}, nil
}

func randomSuffix() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "fallback"
	}
	return hex.EncodeToString(b)
}
