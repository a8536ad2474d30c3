package feeder

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sweeney/pet-feeder/internal/codec"
	"github.com/sweeney/pet-feeder/internal/logic"
	"github.com/sweeney/pet-feeder/internal/store"
)

// Persisted keys owned by the feeder. The offline buffer owns "outbox/".
const (
	KeySchedule  = "schedule"
	KeyClockRef  = "clock/ref"
	KeyDeviceID  = "device/id"
	deviceIDSize = 8
)

// DeviceID returns configured when set. Otherwise it returns the id persisted
// by an earlier boot, generating and persisting a new one on first boot.
func DeviceID(ctx context.Context, st store.Store, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	data, err := st.Get(ctx, KeyDeviceID)
	if err == nil && len(data) > 0 {
		return string(data), nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("load device id: %w", err)
	}
	id := "feeder-" + uuid.NewString()[:deviceIDSize]
	if err := st.Put(ctx, KeyDeviceID, []byte(id)); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return id, nil
}

func (f *Feeder) saveSchedule(ctx context.Context) error {
	data, err := codec.EncodeSchedule(f.table.Entries())
	if err != nil {
		return err
	}
	if err := f.store.Put(ctx, KeySchedule, data); err != nil {
		return fmt.Errorf("persist schedule: %w", err)
	}
	return nil
}

// loadSchedule returns the persisted entries, or nil when none were saved.
func (f *Feeder) loadSchedule(ctx context.Context) ([]logic.Entry, error) {
	data, err := f.store.Get(ctx, KeySchedule)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	return codec.DecodeSchedule(data)
}

func (f *Feeder) saveReference(ctx context.Context, ref logic.Reference) error {
	data, err := codec.EncodeReference(ref)
	if err != nil {
		return err
	}
	if err := f.store.Put(ctx, KeyClockRef, data); err != nil {
		return fmt.Errorf("persist clock reference: %w", err)
	}
	return nil
}

func (f *Feeder) loadReference(ctx context.Context) (logic.Reference, bool, error) {
	data, err := f.store.Get(ctx, KeyClockRef)
	if errors.Is(err, store.ErrNotFound) {
		return logic.Reference{}, false, nil
	}
	if err != nil {
		return logic.Reference{}, false, fmt.Errorf("load clock reference: %w", err)
	}
	ref, err := codec.DecodeReference(data)
	if err != nil {
		return logic.Reference{}, false, err
	}
	return ref, true, nil
}
