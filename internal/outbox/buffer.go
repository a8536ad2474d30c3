// Package outbox holds status events that could not be delivered and replays
// them when the transport is reachable again.
package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/sweeney/pet-feeder/internal/codec"
	"github.com/sweeney/pet-feeder/internal/logger"
	"github.com/sweeney/pet-feeder/internal/logic"
	"github.com/sweeney/pet-feeder/internal/store"
)

// Capacity is the default maximum number of buffered events.
const Capacity = 50

// Persisted layout.
const (
	keyCount      = "outbox/count"
	keySlotPrefix = "outbox/slot/"
)

func slotKey(i int) string {
	return fmt.Sprintf("%s%02d", keySlotPrefix, i)
}

// Buffer is a bounded FIFO of undelivered status events, mirrored to a Store.
// Insertion order is delivery order. The in-memory length always equals the
// persisted count: a slot is written before the count that exposes it, and the
// count is reset before slots are deleted.
type Buffer struct {
	store    store.Store
	capacity int
	events   []logic.StatusEvent
	log      logger.Logger
}

// Open loads the buffer persisted in st. Slots that cannot be decoded are dropped
// and the remaining events compacted; dropped reports how many were lost.
func Open(ctx context.Context, st store.Store, capacity int, log logger.Logger) (b *Buffer, dropped int, err error) {
	if capacity <= 0 {
		capacity = Capacity
	}
	b = &Buffer{store: st, capacity: capacity, log: logger.OrNop(log)}

	count, err := b.loadCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	if count > capacity {
		b.log.Warn(ctx, "persisted count exceeds capacity, truncating",
			logger.Int("count", count), logger.Int("capacity", capacity))
		dropped += count - capacity
		count = capacity
	}

	for i := 0; i < count; i++ {
		data, err := st.Get(ctx, slotKey(i))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				b.log.Warn(ctx, "missing buffered slot", logger.Int("slot", i))
				dropped++
				continue
			}
			return nil, 0, fmt.Errorf("load slot %d: %w", i, err)
		}
		ev, err := codec.DecodeEvent(data)
		if err != nil {
			b.log.Warn(ctx, "dropping malformed buffered event", logger.Int("slot", i), logger.Error(err))
			dropped++
			continue
		}
		b.events = append(b.events, ev)
	}

	if dropped > 0 {
		if err := b.rewrite(ctx); err != nil {
			return nil, 0, err
		}
	}
	return b, dropped, nil
}

func (b *Buffer) loadCount(ctx context.Context) (int, error) {
	data, err := b.store.Get(ctx, keyCount)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load count: %w", err)
	}
	n, err := codec.DecodeCount(data)
	if err != nil {
		b.log.Warn(ctx, "malformed buffer count, starting empty", logger.Error(err))
		if err := b.putCount(ctx, 0); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return n, nil
}

// rewrite persists the in-memory events as a compact slot range.
func (b *Buffer) rewrite(ctx context.Context) error {
	if err := b.putCount(ctx, 0); err != nil {
		return err
	}
	if err := b.store.Clear(ctx, keySlotPrefix); err != nil {
		return fmt.Errorf("clear slots: %w", err)
	}
	for i, ev := range b.events {
		if err := b.putSlot(ctx, i, ev); err != nil {
			return err
		}
	}
	return b.putCount(ctx, len(b.events))
}

func (b *Buffer) putSlot(ctx context.Context, i int, ev logic.StatusEvent) error {
	data, err := codec.EncodeEvent(ev)
	if err != nil {
		return fmt.Errorf("encode slot %d: %w", i, err)
	}
	if err := b.store.Put(ctx, slotKey(i), data); err != nil {
		return fmt.Errorf("persist slot %d: %w", i, err)
	}
	return nil
}

func (b *Buffer) putCount(ctx context.Context, n int) error {
	data, err := codec.EncodeCount(n)
	if err != nil {
		return err
	}
	if err := b.store.Put(ctx, keyCount, data); err != nil {
		return fmt.Errorf("persist count: %w", err)
	}
	return nil
}

// Append persists ev at the next free slot and then bumps the count.
// Returns ErrBufferFull without touching the buffer when at capacity.
func (b *Buffer) Append(ctx context.Context, ev logic.StatusEvent) error {
	if len(b.events) >= b.capacity {
		return ErrBufferFull
	}
	i := len(b.events)
	if err := b.putSlot(ctx, i, ev); err != nil {
		return err
	}
	if err := b.putCount(ctx, i+1); err != nil {
		return err
	}
	b.events = append(b.events, ev)
	return nil
}

// Clear empties the buffer. The count is reset first so a crash mid-way leaves
// orphan slots that are never read, not a count pointing at deleted slots.
func (b *Buffer) Clear(ctx context.Context) error {
	if err := b.putCount(ctx, 0); err != nil {
		return err
	}
	b.events = nil
	if err := b.store.Clear(ctx, keySlotPrefix); err != nil {
		return fmt.Errorf("clear slots: %w", err)
	}
	return nil
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	return len(b.events)
}

// Capacity returns the configured capacity.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Full reports whether Append would be rejected.
func (b *Buffer) Full() bool {
	return len(b.events) >= b.capacity
}

// Events returns a copy of the buffered events in delivery order.
func (b *Buffer) Events() []logic.StatusEvent {
	out := make([]logic.StatusEvent, len(b.events))
	copy(out, b.events)
	return out
}
