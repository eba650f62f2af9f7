//go:build integration

package integration

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var (
	testDB  *sql.DB
	testRDB *redis.Client
)

// resetTestData truncates every table and flushes the current Redis database.
func resetTestData(t *testing.T) {
	t.Helper()

	_, err := testDB.ExecContext(context.Background(), "TRUNCATE TABLE rates, subscribers, stats RESTART IDENTITY")
	require.NoError(t, err, "truncate tables")
	require.NoError(t, testRDB.FlushDB(context.Background()).Err(), "flush redis")
}

// testContext returns a context with a 30-second deadline tied to the test's cleanup.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
