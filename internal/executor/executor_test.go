package executor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofikovaleva/risk-scoring-service/internal/cache"
	"github.com/sofikovaleva/risk-scoring-service/internal/models"
)

func setupClient(t *testing.T) *Client {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c := &cache.Cache{Db: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	return New(nil, c)
}

func TestStoreAndAwaitResult(t *testing.T) {
	t.Parallel()

	client := setupClient(t)
	want := &models.ScoringResult{Score: 4.2, Explanation: "Moderate risk"}

	require.NoError(t, client.StoreResult("task-uuid-1", want))

	got, err := client.AwaitResult(context.Background(), "task-uuid-1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestAwaitResultTimeout(t *testing.T) {
	t.Parallel()

	client := setupClient(t)

	got, err := client.AwaitResult(context.Background(), "missing-task", 250*time.Millisecond)
	require.ErrorIs(t, err, models.ErrResultNotReady)
	assert.Nil(t, got)
}

func TestAwaitResultAppearsLater(t *testing.T) {
	t.Parallel()

	client := setupClient(t)
	want := &models.ScoringResult{Score: 1.5, Explanation: "Low risk"}

	go func() {
		time.Sleep(200 * time.Millisecond)
		_ = client.StoreResult("late-task", want)
	}()

	got, err := client.AwaitResult(context.Background(), "late-task", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
