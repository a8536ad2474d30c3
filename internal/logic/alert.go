package logic

import "time"

// Default alert timing.
const (
	DefaultAlertInterval = 500 * time.Millisecond
	DefaultAlertPulses   = 3
)

// pulseSequence exists only while the alert is armed.
type pulseSequence struct {
	on         bool
	lastToggle time.Duration
	completed  int
}

// Alert produces a fixed number of audible pulses without blocking the tick loop.
type Alert struct {
	buzzer   Buzzer
	interval time.Duration
	pulses   int
	seq      *pulseSequence
}

// NewAlert creates an alert toggling buzzer every interval for the given number of pulses.
// Non-positive values fall back to the defaults.
func NewAlert(buzzer Buzzer, interval time.Duration, pulses int) *Alert {
	if interval <= 0 {
		interval = DefaultAlertInterval
	}
	if pulses <= 0 {
		pulses = DefaultAlertPulses
	}
	return &Alert{buzzer: buzzer, interval: interval, pulses: pulses}
}

// Request arms a pulse sequence. Returns false (no-op) if one is already running.
func (a *Alert) Request(now time.Duration) bool {
	if a.seq != nil {
		return false
	}
	a.seq = &pulseSequence{lastToggle: now}
	return true
}

// Armed reports whether a sequence is in progress.
func (a *Alert) Armed() bool {
	return a.seq != nil
}

// Due reports whether Service would toggle the output at now.
func (a *Alert) Due(now time.Duration) bool {
	return a.seq != nil && now-a.seq.lastToggle >= a.interval
}

// Service flips the output when due. Every off edge completes one pulse; after the
// configured number of pulses the alert disarms with the output off.
func (a *Alert) Service(now time.Duration) error {
	if !a.Due(now) {
		return nil
	}
	s := a.seq
	next := !s.on
	err := a.buzzer.Set(next)
	s.on = next
	s.lastToggle = now
	if !next {
		s.completed++
		if s.completed >= a.pulses {
			a.seq = nil
		}
	}
	return err
}

// Completed returns the pulses finished in the current sequence (0 when idle).
func (a *Alert) Completed() int {
	if a.seq == nil {
		return 0
	}
	return a.seq.completed
}
