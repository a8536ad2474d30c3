package logic

import "time"

// Reference pairs a local uptime with the absolute time observed at that instant.
type Reference struct {
	TickAtSync    time.Duration
	SecondsAtSync int64
}

// Clock extrapolates absolute time from the last reference using elapsed uptime.
// Before the first Sync or Restore it reports Unknown.
type Clock struct {
	ref   Reference
	valid bool
}

// NewClock returns a clock with no reference.
func NewClock() *Clock {
	return &Clock{}
}

// Sync records a fresh reference from a live time source and returns it.
func (c *Clock) Sync(uptime time.Duration, seconds int64) Reference {
	c.ref = Reference{TickAtSync: uptime, SecondsAtSync: seconds}
	c.valid = true
	return c.ref
}

// Restore installs a reference persisted by a previous boot. Uptime counters do not
// survive power loss, so the stored tick is discarded and extrapolation restarts
// from boot (tick zero). Accuracy degrades until the next Sync.
func (c *Clock) Restore(ref Reference) {
	c.ref = Reference{TickAtSync: 0, SecondsAtSync: ref.SecondsAtSync}
	c.valid = true
}

// Now returns the current best-effort time.
func (c *Clock) Now(uptime time.Duration) Reading {
	if !c.valid {
		return Unknown()
	}
	elapsed := uptime - c.ref.TickAtSync
	if elapsed < 0 {
		elapsed = 0
	}
	return Known(c.ref.SecondsAtSync + int64(elapsed/time.Second))
}

// Reference returns the current reference and whether one exists.
func (c *Clock) Reference() (Reference, bool) {
	return c.ref, c.valid
}

// DayNumber counts days since 1970-01-01 in the local calendar.
type DayNumber int64

// NoDay marks an entry that has never fired.
const NoDay DayNumber = -1

// Moment is a reading broken down into the fields the schedule matches on.
type Moment struct {
	Day    DayNumber
	Hour   int
	Minute int
	Known  bool
}

// MomentOf converts a reading into local day/hour/minute. loc nil means UTC.
func MomentOf(r Reading, loc *time.Location) Moment {
	if !r.Known {
		return Moment{}
	}
	if loc == nil {
		loc = time.UTC
	}
	t := time.Unix(r.Seconds, 0).In(loc)
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Moment{
		Day:    DayNumber(midnight.Unix() / 86400),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Known:  true,
	}
}
