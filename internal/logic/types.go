// Package logic contains the pure feeding kernel: clock, schedule table,
// dispense controller, alert pulses and sensor debouncing.
// This package has NO external dependencies (no GPIO, MQTT, storage, or time.Sleep).
// Time is always injected as monotonic uptime (time.Duration since boot).
package logic

import (
	"errors"
	"time"
)

var (
	// ErrBusy is returned by Controller.Start while a session is active.
	ErrBusy = errors.New("dispense already in progress")

	// ErrInvalidTarget is returned by Controller.Start for a non-positive target.
	ErrInvalidTarget = errors.New("target grams must be positive")
)

// Reading is a best-effort absolute time. The zero value is Unknown.
type Reading struct {
	Seconds int64 // Unix seconds; meaningful only when Known
	Known   bool
}

// Unknown is the reading produced before any time reference exists.
func Unknown() Reading { return Reading{} }

// Known wraps an absolute Unix-seconds value.
func Known(seconds int64) Reading { return Reading{Seconds: seconds, Known: true} }

// Time converts the reading to a time.Time. Returns the zero time when unknown.
func (r Reading) Time() time.Time {
	if !r.Known {
		return time.Time{}
	}
	return time.Unix(r.Seconds, 0).UTC()
}

// StatusEvent is one observation of the feeder's sensors. Immutable once created.
type StatusEvent struct {
	StockPresent bool
	WaterPresent bool
	WeightGrams  int
	ObservedAt   Reading
}

// Scale is the weight source used while dispensing.
type Scale interface {
	Tare() error
	Read() (grams int, err error)
}

// Gate is the dispensing actuator.
type Gate interface {
	Open() error
	Close() error
}

// Buzzer drives the audible alert output.
type Buzzer interface {
	Set(on bool) error
}
