package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/pet-feeder/internal/codec"
	"github.com/sweeney/pet-feeder/internal/logic"
	"github.com/sweeney/pet-feeder/internal/store"
)

func event(weight int) logic.StatusEvent {
	return logic.StatusEvent{StockPresent: true, WaterPresent: true, WeightGrams: weight, ObservedAt: logic.Known(int64(1_000_000 + weight))}
}

func persistedCount(t *testing.T, st store.Store) int {
	t.Helper()
	data, err := st.Get(context.Background(), keyCount)
	if errors.Is(err, store.ErrNotFound) {
		return 0
	}
	require.NoError(t, err)
	n, err := codec.DecodeCount(data)
	require.NoError(t, err)
	return n
}

func TestBufferAppendPersists(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	b, dropped, err := Open(ctx, st, Capacity, nil)
	require.NoError(t, err)
	require.Zero(t, dropped)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Append(ctx, event(i)))
		assert.Equal(t, b.Len(), persistedCount(t, st), "memory and persisted count diverged")
	}
	assert.Equal(t, []string{"outbox/count", "outbox/slot/00", "outbox/slot/01", "outbox/slot/02"}, st.Keys())

	got := b.Events()
	for i, ev := range got {
		assert.Equal(t, i, ev.WeightGrams, "insertion order must be delivery order")
	}
}

func TestBufferFullDropsNewest(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	b, _, err := Open(ctx, st, Capacity, nil)
	require.NoError(t, err)

	for i := 0; i < Capacity; i++ {
		require.NoError(t, b.Append(ctx, event(i)))
	}
	require.True(t, b.Full())

	slot0Before, err := st.Get(ctx, slotKey(0))
	require.NoError(t, err)

	err = b.Append(ctx, event(999))
	assert.ErrorIs(t, err, ErrBufferFull)
	assert.Equal(t, Capacity, b.Len())
	assert.Equal(t, Capacity, persistedCount(t, st))

	slot0After, err := st.Get(ctx, slotKey(0))
	require.NoError(t, err)
	assert.Equal(t, slot0Before, slot0After, "slot 0 must never be overwritten")
	assert.Equal(t, 0, b.Events()[0].WeightGrams)
	assert.Equal(t, Capacity-1, b.Events()[Capacity-1].WeightGrams)
}

func TestBufferAppendStoreFailure(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	b, _, err := Open(ctx, st, Capacity, nil)
	require.NoError(t, err)

	st.PutError = errors.New("disk full")
	assert.Error(t, b.Append(ctx, event(1)))
	assert.Zero(t, b.Len())
}

func TestBufferSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	b, _, err := Open(ctx, st, Capacity, nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Append(ctx, event(i)))
	}

	reopened, dropped, err := Open(ctx, st, Capacity, nil)
	require.NoError(t, err)
	assert.Zero(t, dropped)
	assert.Equal(t, b.Events(), reopened.Events())
}

func TestBufferOrphanSlotIgnored(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	b, _, err := Open(ctx, st, Capacity, nil)
	require.NoError(t, err)
	require.NoError(t, b.Append(ctx, event(1)))

	// Simulate power loss after a slot write but before the count update.
	data, err := codec.EncodeEvent(event(2))
	require.NoError(t, err)
	require.NoError(t, st.Put(ctx, slotKey(1), data))

	reopened, _, err := Open(ctx, st, Capacity, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())
}

func TestBufferDropsMalformedSlotsAndCompacts(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	b, _, err := Open(ctx, st, Capacity, nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Append(ctx, event(i)))
	}
	require.NoError(t, st.Put(ctx, slotKey(1), []byte{0xff, 0xff}))

	reopened, dropped, err := Open(ctx, st, Capacity, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	require.Equal(t, 2, reopened.Len())
	assert.Equal(t, 0, reopened.Events()[0].WeightGrams)
	assert.Equal(t, 2, reopened.Events()[1].WeightGrams)
	assert.Equal(t, 2, persistedCount(t, st))

	_, err = st.Get(ctx, slotKey(2))
	assert.ErrorIs(t, err, store.ErrNotFound, "compaction should leave no stale tail slot")
}

func TestBufferClear(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	b, _, err := Open(ctx, st, Capacity, nil)
	require.NoError(t, err)
	require.NoError(t, b.Append(ctx, event(1)))
	require.NoError(t, b.Append(ctx, event(2)))

	require.NoError(t, b.Clear(ctx))
	assert.Zero(t, b.Len())
	assert.Zero(t, persistedCount(t, st))
	assert.Equal(t, []string{"outbox/count"}, st.Keys())

	require.NoError(t, b.Append(ctx, event(3)))
	assert.Equal(t, []string{"outbox/count", "outbox/slot/00"}, st.Keys())
}

func TestBufferCountBeyondCapacityTruncated(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	big, _, err := Open(ctx, st, 10, nil)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, big.Append(ctx, event(i)))
	}

	small, dropped, err := Open(ctx, st, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, dropped)
	assert.Equal(t, 4, small.Len())
	assert.Equal(t, 4, persistedCount(t, st))
}

func TestBufferOutOfRangeCountReset(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	require.NoError(t, st.Put(ctx, keyCount, []byte{0x1b, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}))

	b, _, err := Open(ctx, st, Capacity, nil)
	require.NoError(t, err)
	assert.Zero(t, b.Len())
	assert.Equal(t, 0, persistedCount(t, st), "bad count replaced on disk")
}
