package repositories

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/prudhvinik1/livesync/internal/database"
)

// getTestRedisClient connects to TEST_REDIS_URL, skipping the test when it
// is unset.
func getTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	client, err := database.NewRedisClient(context.Background(), url, zaptest.NewLogger(t))
	require.NoError(t, err, "failed to connect to test redis")
	t.Cleanup(func() { client.Close() })
	return client
}

// getTestPool connects to TEST_DATABASE_URL and migrates it, skipping the
// test when it is unset.
func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	logger := zaptest.NewLogger(t)
	require.NoError(t, database.Migrate(url, logger))

	pool, err := database.NewPostgresPool(context.Background(), url, logger)
	require.NoError(t, err, "failed to connect to test postgres")
	t.Cleanup(pool.Close)
	return pool
}

func cleanupKeys(t *testing.T, client *redis.Client, patterns ...string) {
	ctx := context.Background()
	for _, pattern := range patterns {
		keys, err := client.Keys(ctx, pattern).Result()
		if err != nil {
			t.Logf("failed to list %s: %v", pattern, err)
			continue
		}
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
	}
}
