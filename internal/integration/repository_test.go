//go:build integration

package integration

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratebot/internal/config"
	"ratebot/internal/repository"
)

func TestRates_LatestAndHistory(t *testing.T) {
	resetTestData(t)
	ctx := testContext(t)
	repo := repository.NewSQLRateRepository(testDB, config.DriverPostgres)

	require.NoError(t, repo.Insert(ctx, "2024-05-01", "USD", "NBU", 39.4))
	require.NoError(t, repo.Insert(ctx, "2024-05-02", "USD", "NBU", 39.5))
	require.NoError(t, repo.Insert(ctx, "2024-05-02", "USD", "NBU", 39.6))
	require.NoError(t, repo.Insert(ctx, "2024-05-03", "USD", "Monobank", 41.0))

	latest, err := repo.Latest(ctx, "USD", "NBU")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2024-05-02", latest.Date)
	assert.Equal(t, 39.6, latest.Rate, "same-day rows break ties by insertion order")

	history, err := repo.History(ctx, "USD", "NBU", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 39.5, history[0].Rate)
	assert.Equal(t, 39.6, history[1].Rate)

	missing, err := repo.Latest(ctx, "GBP", "NBU")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSubscribers_Lifecycle(t *testing.T) {
	resetTestData(t)
	ctx := testContext(t)
	repo := repository.NewSQLSubscriberRepository(testDB, config.DriverPostgres)

	require.NoError(t, repo.Register(ctx, 2))
	require.NoError(t, repo.Register(ctx, 1))
	require.NoError(t, repo.Unsubscribe(ctx, 2))
	require.NoError(t, repo.Register(ctx, 2))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, active)

	require.NoError(t, repo.Subscribe(ctx, 2))
	require.NoError(t, repo.Subscribe(ctx, 3))

	active, err = repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, active)

	var rows int
	require.NoError(t, testDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM subscribers").Scan(&rows))
	assert.Equal(t, 3, rows)
}

func TestStats_ConcurrentIncrements(t *testing.T) {
	resetTestData(t)
	ctx := testContext(t)
	repo := repository.NewSQLStatsRepository(testDB, config.DriverPostgres)

	const n = 100
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cmd := "/usd"
			if i%4 == 0 {
				cmd = "/chart"
			}
			assert.NoError(t, repo.Increment(ctx, cmd))
		}()
	}
	wg.Wait()

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"/usd": 75, "/chart": 25}, all)
}
