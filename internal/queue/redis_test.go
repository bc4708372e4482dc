package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisQueue_EnqueueDequeue(t *testing.T) {
	client := newTestRedis(t)
	q, err := NewRedisQueue(client, DefaultConfig("audit"))
	require.NoError(t, err)
	defer q.Close()

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, auditRec("shop-a.myshopify.com")))
	require.NoError(t, q.Enqueue(ctx, auditRec("shop-b.myshopify.com")))

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, length)

	recs, err := q.DequeueWithTimeout(ctx, 10, time.Second)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "shop-a.myshopify.com", recs[0].Shop)
	assert.Equal(t, "shop-b.myshopify.com", recs[1].Shop)

	length, err = q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, length)
}

func TestRedisQueue_RoundTripsRecordFields(t *testing.T) {
	client := newTestRedis(t)
	q, err := NewRedisQueue(client, DefaultConfig("audit"))
	require.NoError(t, err)
	defer q.Close()

	ctx := context.Background()
	rec := auditRec("shop.myshopify.com")
	rec.Attempts = 3
	rec.CreditsUsed = 5
	rec.Billable = 3
	require.NoError(t, q.Enqueue(ctx, rec))

	recs, err := q.DequeueWithTimeout(ctx, 1, time.Second)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 3, recs[0].Attempts)
	assert.Equal(t, 5, recs[0].CreditsUsed)
	assert.Equal(t, 3, recs[0].Billable)
	assert.Equal(t, "gemini-2.5-flash", recs[0].ModelName)
}

func TestRedisDeadLetterQueue(t *testing.T) {
	client := newTestRedis(t)
	dlq, err := NewRedisDeadLetterQueue(client, DefaultConfig("audit"))
	require.NoError(t, err)
	defer dlq.Close()

	ctx := context.Background()
	require.NoError(t, dlq.Add(ctx, auditRec("shop.myshopify.com"), errors.New("db down")))

	items, err := dlq.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "db down", items[0].Error)
	assert.Equal(t, "shop.myshopify.com", items[0].Record.Shop)

	require.NoError(t, dlq.Remove(ctx, items[0].ID))
	items, err = dlq.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}
