//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ratebot/internal/repository"
	"ratebot/internal/testkit"
)

func TestMain(m *testing.M) {
	testkit.Run(m, func() error {
		cfg := testkit.Global().DatabaseConfig()

		var err error
		testDB, err = repository.Open(&cfg)
		if err != nil {
			return err
		}
		if err := repository.RunMigrations(&cfg, zap.NewNop().Sugar()); err != nil {
			return err
		}

		testRDB = redis.NewClient(&redis.Options{
			Addr: testkit.Global().RedisAddr(),
		})
		return testRDB.Ping(context.Background()).Err()
	})
}
