package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEnqueueLeaseAck(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.Enqueue(ctx, "campaign-control", []byte("body-1"))
	require.NoError(t, err)
	assert.Positive(t, id)

	delivery, err := store.Lease(ctx, "campaign-control", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, delivery)
	assert.Equal(t, []byte("body-1"), delivery.Body)
	assert.Equal(t, 1, delivery.DeliveryCount)
	assert.Equal(t, StateLeased, delivery.State)
	require.NotNil(t, delivery.LeaseExpiresAt)

	// While leased, nothing else is available.
	next, err := store.Lease(ctx, "campaign-control", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, next)

	require.NoError(t, store.Ack(ctx, delivery.ID))
	stats, err := store.QueueStats(ctx, "campaign-control")
	require.NoError(t, err)
	assert.Equal(t, Stats{Done: 1}, stats)
}

func TestLeaseOrdersOldestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Enqueue(ctx, "q-test", []byte("first"))
	require.NoError(t, err)
	_, err = store.Enqueue(ctx, "q-test", []byte("second"))
	require.NoError(t, err)

	delivery, err := store.Lease(ctx, "q-test", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), delivery.Body)
}

func TestLeaseOrderIgnoresTimestampText(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureQueue(ctx, "q-test"))

	// RFC3339Nano trims trailing fractional zeros, so ".15Z" sorts before
	// ".1Z" lexicographically even though it is 50ms later. Claim order must
	// follow the insertion sequence, not the timestamp text.
	insert := func(body, enqueuedAt string) {
		_, err := store.db.ExecContext(ctx,
			`INSERT INTO queue_messages (queue, body, state, delivery_count, enqueued_at, updated_at)
             VALUES ('q-test', ?, ?, 0, ?, ?)`,
			body, StateReady, enqueuedAt, enqueuedAt)
		require.NoError(t, err)
	}
	insert("first", "2025-01-05T12:00:00.1Z")
	insert("second", "2025-01-05T12:00:00.15Z")

	delivery, err := store.Lease(ctx, "q-test", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, delivery)
	assert.Equal(t, []byte("first"), delivery.Body)
}

func TestLeaseEmptyQueue(t *testing.T) {
	store := openTestStore(t)
	delivery, err := store.Lease(context.Background(), "empty-queue", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, delivery)
}

func TestReleaseMakesRedeliverable(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Enqueue(ctx, "q-test", []byte("retry-me"))
	require.NoError(t, err)

	first, err := store.Lease(ctx, "q-test", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, first.ID, "transient failure"))

	second, err := store.Lease(ctx, "q-test", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, []byte("retry-me"), second.Body, "redelivery carries the same bytes")
	assert.Equal(t, 2, second.DeliveryCount)
	assert.Equal(t, "transient failure", second.LastError)
}

func TestBuryStopsDelivery(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Enqueue(ctx, "q-test", []byte("poison"))
	require.NoError(t, err)

	delivery, err := store.Lease(ctx, "q-test", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Bury(ctx, delivery.ID, "validation error"))

	next, err := store.Lease(ctx, "q-test", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, next)

	dead, err := store.Dead(ctx, "q-test")
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "validation error", dead[0].LastError)
}

func TestReclaimExpiredLeases(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Enqueue(ctx, "q-test", []byte("stale"))
	require.NoError(t, err)

	_, err = store.Lease(ctx, "q-test", -time.Second)
	require.NoError(t, err)

	reclaimed, err := store.ReclaimExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, reclaimed)

	redelivered, err := store.Lease(ctx, "q-test", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, redelivered)
	assert.Equal(t, 2, redelivered.DeliveryCount)
}

func TestEnsureQueueIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureQueue(ctx, "campaign-stages"))
	require.NoError(t, store.EnsureQueue(ctx, "campaign-stages"))

	names, err := store.Queues(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"campaign-stages"}, names)
}

func TestPurgeDoneAndClear(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Enqueue(ctx, "q-test", []byte("a"))
	require.NoError(t, err)
	delivery, err := store.Lease(ctx, "q-test", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Ack(ctx, delivery.ID))
	_, err = store.Enqueue(ctx, "q-test", []byte("b"))
	require.NoError(t, err)

	purged, err := store.PurgeDone(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	cleared, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, cleared)
}

func TestUnconfiguredStoreFailsFast(t *testing.T) {
	var store *Store
	_, err := store.Enqueue(context.Background(), "q", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
