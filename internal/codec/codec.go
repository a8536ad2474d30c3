// Package codec encodes the records the feeder persists between boots.
// Records use CBOR with integer keys so slots stay small on flash storage.
package codec

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/sweeney/pet-feeder/internal/logic"
)

// ErrMalformed wraps any decode failure of a persisted record.
var ErrMalformed = errors.New("malformed record")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: create encoder mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: create decoder mode: %v", err))
	}
}

type eventRecord struct {
	Stock   bool  `cbor:"1,keyasint"`
	Water   bool  `cbor:"2,keyasint"`
	Weight  int   `cbor:"3,keyasint"`
	Seconds int64 `cbor:"4,keyasint,omitempty"`
	Known   bool  `cbor:"5,keyasint,omitempty"`
}

type entryRecord struct {
	Hour      int   `cbor:"1,keyasint"`
	Minute    int   `cbor:"2,keyasint"`
	Grams     int   `cbor:"3,keyasint"`
	LastFired int64 `cbor:"4,keyasint"`
}

type scheduleRecord struct {
	Entries []entryRecord `cbor:"1,keyasint"`
}

type referenceRecord struct {
	TickMillis int64 `cbor:"1,keyasint"`
	Seconds    int64 `cbor:"2,keyasint"`
}

// EncodeEvent encodes one buffered status event.
func EncodeEvent(ev logic.StatusEvent) ([]byte, error) {
	return encMode.Marshal(eventRecord{
		Stock:   ev.StockPresent,
		Water:   ev.WaterPresent,
		Weight:  ev.WeightGrams,
		Seconds: ev.ObservedAt.Seconds,
		Known:   ev.ObservedAt.Known,
	})
}

// DecodeEvent decodes a buffered status event.
func DecodeEvent(data []byte) (logic.StatusEvent, error) {
	var r eventRecord
	if err := decMode.Unmarshal(data, &r); err != nil {
		return logic.StatusEvent{}, fmt.Errorf("%w: event: %v", ErrMalformed, err)
	}
	obs := logic.Unknown()
	if r.Known {
		obs = logic.Known(r.Seconds)
	}
	return logic.StatusEvent{
		StockPresent: r.Stock,
		WaterPresent: r.Water,
		WeightGrams:  r.Weight,
		ObservedAt:   obs,
	}, nil
}

// EncodeSchedule encodes the schedule table including fired marks.
func EncodeSchedule(entries []logic.Entry) ([]byte, error) {
	rec := scheduleRecord{Entries: make([]entryRecord, len(entries))}
	for i, e := range entries {
		rec.Entries[i] = entryRecord{Hour: e.Hour, Minute: e.Minute, Grams: e.Grams, LastFired: int64(e.LastFired)}
	}
	return encMode.Marshal(rec)
}

// DecodeSchedule decodes a schedule blob. Range validation is left to the table.
func DecodeSchedule(data []byte) ([]logic.Entry, error) {
	var rec scheduleRecord
	if err := decMode.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: schedule: %v", ErrMalformed, err)
	}
	out := make([]logic.Entry, len(rec.Entries))
	for i, r := range rec.Entries {
		out[i] = logic.Entry{Hour: r.Hour, Minute: r.Minute, Grams: r.Grams, LastFired: logic.DayNumber(r.LastFired)}
	}
	return out, nil
}

// EncodeReference encodes a clock reference.
func EncodeReference(ref logic.Reference) ([]byte, error) {
	return encMode.Marshal(referenceRecord{
		TickMillis: ref.TickAtSync.Milliseconds(),
		Seconds:    ref.SecondsAtSync,
	})
}

// DecodeReference decodes a clock reference.
func DecodeReference(data []byte) (logic.Reference, error) {
	var r referenceRecord
	if err := decMode.Unmarshal(data, &r); err != nil {
		return logic.Reference{}, fmt.Errorf("%w: clock reference: %v", ErrMalformed, err)
	}
	return logic.Reference{
		TickAtSync:    time.Duration(r.TickMillis) * time.Millisecond,
		SecondsAtSync: r.Seconds,
	}, nil
}

// EncodeCount encodes the buffered-event count.
func EncodeCount(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative count %d", n)
	}
	return encMode.Marshal(uint64(n))
}

// DecodeCount decodes the buffered-event count.
func DecodeCount(data []byte) (int, error) {
	var n uint64
	if err := decMode.Unmarshal(data, &n); err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrMalformed, err)
	}
	if n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: count %d out of range", ErrMalformed, n)
	}
	return int(n), nil
}
