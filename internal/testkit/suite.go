package testkit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"ratebot/internal/config"
)

// Suite owns the Postgres and Redis endpoints shared by one test binary.
type Suite struct {
	mu    sync.Mutex
	cfg   Config
	pg    *Endpoint
	redis *Endpoint
}

var (
	globalSuite *Suite
	globalOnce  sync.Once
)

// Global returns the singleton Suite instance.
func Global() *Suite {
	globalOnce.Do(func() {
		globalSuite = &Suite{cfg: LoadConfig()}
	})
	return globalSuite
}

// Setup starts both dependencies. Calling it twice without Shutdown is an error.
func (s *Suite) Setup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pg != nil || s.redis != nil {
		return errors.New("suite already set up; call Shutdown first")
	}

	pg, err := StartPostgres(ctx, &s.cfg)
	if err != nil {
		return fmt.Errorf("setup postgres: %w", err)
	}
	rdb, err := StartRedis(ctx, &s.cfg)
	if err != nil {
		if !s.cfg.KeepContainers {
			_ = pg.Terminate(ctx)
		}
		return fmt.Errorf("setup redis: %w", err)
	}

	s.pg, s.redis = pg, rdb
	return nil
}

// Shutdown terminates the containers unless KeepContainers is set.
func (s *Suite) Shutdown(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.KeepContainers {
		fmt.Printf("keeping containers: postgres=%q redis=%q\n", s.pg.Addr(), s.redis.Addr())
	} else {
		for name, e := range map[string]*Endpoint{"redis": s.redis, "postgres": s.pg} {
			if err := e.Terminate(ctx); err != nil {
				fmt.Printf("warning: failed to terminate %s container: %v\n", name, err)
			}
		}
	}
	s.pg, s.redis = nil, nil
}

// DatabaseConfig returns a pgx database config pointing at the test Postgres,
// ready for repository.Open and repository.RunMigrations.
func (s *Suite) DatabaseConfig() config.DatabaseConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := config.DatabaseConfig{Driver: config.DriverPostgres, MaxOpenConns: 10, MaxIdleConns: 5}
	if s.pg != nil {
		cfg.DSN = s.pg.Addr()
	}
	return cfg
}

// RedisAddr returns the host:port address of the test Redis.
func (s *Suite) RedisAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.redis == nil {
		return ""
	}
	return s.redis.Addr()
}

// Run sets up the suite, calls the afterSetup callbacks (migrations, shared
// clients), runs the tests and shuts down. Intended for TestMain.
func (s *Suite) Run(m *testing.M, afterSetup ...func() error) {
	ctx := context.Background()

	if err := s.Setup(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "integration test setup failed: %v\n", err)
		os.Exit(1)
	}

	for _, fn := range afterSetup {
		if err := fn(); err != nil {
			fmt.Fprintf(os.Stderr, "afterSetup callback failed: %v\n", err)
			s.Shutdown(ctx)
			os.Exit(1)
		}
	}

	code := m.Run()
	s.Shutdown(ctx)
	os.Exit(code)
}

// Run delegates to Global().Run.
func Run(m *testing.M, afterSetup ...func() error) {
	Global().Run(m, afterSetup...)
}
