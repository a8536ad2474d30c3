package logic

import (
	"fmt"
	"time"
)

// Default dispense timing.
const (
	DefaultDispenseTimeout = 20 * time.Second
	DefaultDisplayRefresh  = 500 * time.Millisecond
)

// State is the dispense controller state.
type State string

const (
	StateIdle       State = "IDLE"
	StateDispensing State = "DISPENSING"
)

// Session is the live state of one dispense, from gate open to gate close.
type Session struct {
	TargetGrams   int
	StartedAt     time.Duration
	CurrentWeight int
}

// Completion describes a finished session. Reaching the target and hitting the
// timeout are reported identically; the final weight is the only outcome.
type Completion struct {
	TargetGrams int
	FinalWeight int
	Elapsed     time.Duration
}

// Controller drives the gate from weight feedback with a timeout safety bound.
// A nil session means Idle, so a session cannot exist while idle.
type Controller struct {
	scale   Scale
	gate    Gate
	alert   *Alert
	timeout time.Duration
	refresh time.Duration

	session     *Session
	lastRefresh time.Duration
}

// NewController creates an idle controller. alert may be nil.
func NewController(scale Scale, gate Gate, alert *Alert, timeout, refresh time.Duration) *Controller {
	if timeout <= 0 {
		timeout = DefaultDispenseTimeout
	}
	if refresh <= 0 {
		refresh = DefaultDisplayRefresh
	}
	return &Controller{
		scale:   scale,
		gate:    gate,
		alert:   alert,
		timeout: timeout,
		refresh: refresh,
	}
}

// State returns Idle or Dispensing.
func (c *Controller) State() State {
	if c.session == nil {
		return StateIdle
	}
	return StateDispensing
}

// Active reports whether a session is in progress.
func (c *Controller) Active() bool {
	return c.session != nil
}

// Session returns a copy of the live session.
func (c *Controller) Session() (Session, bool) {
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Timeout returns the safety bound applied to every session.
func (c *Controller) Timeout() time.Duration {
	return c.timeout
}

// Start begins a session: tare, open the gate, record the start and request an alert.
// Returns ErrBusy without side effects if a session is already active.
func (c *Controller) Start(now time.Duration, targetGrams int) error {
	if c.session != nil {
		return ErrBusy
	}
	if targetGrams <= 0 {
		return ErrInvalidTarget
	}
	if err := c.scale.Tare(); err != nil {
		return fmt.Errorf("tare: %w", err)
	}
	if err := c.gate.Open(); err != nil {
		// Leave the actuator in a known state.
		_ = c.gate.Close()
		return fmt.Errorf("open gate: %w", err)
	}
	c.session = &Session{TargetGrams: targetGrams, StartedAt: now}
	c.lastRefresh = now
	if c.alert != nil {
		c.alert.Request(now)
	}
	return nil
}

// Advance reads the scale and closes the gate once the target weight is reached
// or the timeout elapses. A failed weight read keeps the previous weight; a failed
// close keeps the session open so the close is retried on the next tick.
func (c *Controller) Advance(now time.Duration) (Completion, bool, error) {
	s := c.session
	if s == nil {
		return Completion{}, false, nil
	}

	var readErr error
	if w, err := c.scale.Read(); err != nil {
		readErr = fmt.Errorf("read scale: %w", err)
	} else {
		s.CurrentWeight = w
	}

	elapsed := now - s.StartedAt
	if s.CurrentWeight < s.TargetGrams && elapsed < c.timeout {
		return Completion{}, false, readErr
	}

	if err := c.gate.Close(); err != nil {
		return Completion{}, false, fmt.Errorf("close gate: %w", err)
	}
	c.session = nil
	return Completion{
		TargetGrams: s.TargetGrams,
		FinalWeight: s.CurrentWeight,
		Elapsed:     elapsed,
	}, true, readErr
}

// RefreshDue reports whether the weight-so-far display should be refreshed at now,
// and if so records the refresh.
func (c *Controller) RefreshDue(now time.Duration) bool {
	if c.session == nil || now-c.lastRefresh < c.refresh {
		return false
	}
	c.lastRefresh = now
	return true
}

// Abort closes the gate and ends any session. Used only on process shutdown.
func (c *Controller) Abort() error {
	if c.session == nil {
		return nil
	}
	c.session = nil
	return c.gate.Close()
}
