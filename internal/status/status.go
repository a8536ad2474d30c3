// Package status provides a thread-safe status tracker for the pet-feeder daemon.
// It is written by the tick loop and read by HTTP handlers. It also stands in
// for the two-line display.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/pet-feeder/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	DeviceID          string
	Broker            string
	HTTPAddr          string
	Timezone          string
	TickMs            int64
	StatusIntervalMs  int64
	DispenseTimeoutMs int64
}

// Dispense is the controller state as seen by readers.
type Dispense struct {
	State  logic.State
	Target int
	Weight int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type; safe to use after the lock is released.
type Snapshot struct {
	Display       [2]string
	Clock         logic.Reading
	ClockSynced   bool // a live source answered since boot
	Schedule      []logic.Entry
	Dispense      Dispense
	Stock         logic.Level
	Water         logic.Level
	BufferDepth   int
	BufferCap     int
	LastEvent     *logic.StatusEvent
	Feeds         int
	LastFeed      *logic.Completion
	MQTTConnected bool
	StartTime     time.Time
	Now           time.Time
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Dispense:  Dispense{State: logic.StateIdle},
		},
	}
}

// Show sets the two display lines.
func (t *Tracker) Show(line1, line2 string) {
	t.mu.Lock()
	t.snap.Display = [2]string{line1, line2}
	t.mu.Unlock()
}

// SetClock sets the current clock reading and whether a live sync happened.
func (t *Tracker) SetClock(r logic.Reading, synced bool) {
	t.mu.Lock()
	t.snap.Clock = r
	t.snap.ClockSynced = synced
	t.mu.Unlock()
}

// SetSchedule replaces the schedule copy.
func (t *Tracker) SetSchedule(entries []logic.Entry) {
	cp := make([]logic.Entry, len(entries))
	copy(cp, entries)
	t.mu.Lock()
	t.snap.Schedule = cp
	t.mu.Unlock()
}

// SetDispense sets the controller state.
func (t *Tracker) SetDispense(d Dispense) {
	t.mu.Lock()
	t.snap.Dispense = d
	t.mu.Unlock()
}

// SetSupplies sets the debounced supply levels.
func (t *Tracker) SetSupplies(stock, water logic.Level) {
	t.mu.Lock()
	t.snap.Stock = stock
	t.snap.Water = water
	t.mu.Unlock()
}

// SetBuffer sets the offline buffer depth and capacity.
func (t *Tracker) SetBuffer(depth, capacity int) {
	t.mu.Lock()
	t.snap.BufferDepth = depth
	t.snap.BufferCap = capacity
	t.mu.Unlock()
}

// RecordEvent stores the most recent status event.
func (t *Tracker) RecordEvent(ev logic.StatusEvent) {
	t.mu.Lock()
	t.snap.LastEvent = &ev
	t.mu.Unlock()
}

// RecordFeed counts a completed session.
func (t *Tracker) RecordFeed(c logic.Completion) {
	t.mu.Lock()
	t.snap.Feeds++
	t.snap.LastFeed = &c
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Schedule = append([]logic.Entry(nil), t.snap.Schedule...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
