package mqtt

import (
	"errors"

	"github.com/sweeney/pet-feeder/internal/logic"
)

var errFakeStatus = errors.New("fake: scripted status failure")

// Message is one payload recorded by FakeTransport.
type Message struct {
	Kind    Kind
	Payload []byte
}

// FakeTransport records published messages for test assertions.
type FakeTransport struct {
	// Connected controls the return value of IsConnected.
	Connected bool

	// Messages contains every successfully published payload.
	Messages []Message

	// Statuses contains the status events that were published.
	Statuses []logic.StatusEvent

	// PublishError, if set, is returned by every Publish.
	PublishError error

	// FailStatusAt, if non-zero, fails the status publish with that 1-indexed
	// attempt number (counted over the fake's lifetime).
	FailStatusAt int

	// StatusAttempts counts PublishStatus calls, including failures.
	StatusAttempts int

	// Closed tracks if Close was called.
	Closed bool

	updates chan []byte
}

// NewFakeTransport creates a connected FakeTransport for testing.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{Connected: true, updates: make(chan []byte, 8)}
}

// IsConnected reports whether the fake transport is "connected".
func (f *FakeTransport) IsConnected() bool {
	return f.Connected
}

// Publish records the payload.
func (f *FakeTransport) Publish(kind Kind, payload []byte) error {
	if !f.Connected {
		return ErrNotConnected
	}
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Messages = append(f.Messages, Message{Kind: kind, Payload: payload})
	return nil
}

// PublishStatus records the status event.
func (f *FakeTransport) PublishStatus(ev logic.StatusEvent) error {
	f.StatusAttempts++
	if f.FailStatusAt != 0 && f.StatusAttempts == f.FailStatusAt {
		return errFakeStatus
	}
	payload, err := FormatStatus(ev)
	if err != nil {
		return err
	}
	if err := f.Publish(KindStatus, payload); err != nil {
		return err
	}
	f.Statuses = append(f.Statuses, ev)
	return nil
}

// Deliver queues a schedule_update payload as if it arrived from the broker.
func (f *FakeTransport) Deliver(payload []byte) {
	f.updates <- payload
}

// ScheduleUpdates returns payloads queued with Deliver.
func (f *FakeTransport) ScheduleUpdates() <-chan []byte {
	return f.updates
}

// Close marks the transport as closed.
func (f *FakeTransport) Close() error {
	f.Closed = true
	f.Connected = false
	return nil
}

// System returns the system messages published so far.
func (f *FakeTransport) System() []string {
	var out []string
	for _, m := range f.Messages {
		if m.Kind == KindSystem {
			out = append(out, string(m.Payload))
		}
	}
	return out
}

// Reset clears recorded messages.
func (f *FakeTransport) Reset() {
	f.Messages = nil
	f.Statuses = nil
	f.StatusAttempts = 0
	f.FailStatusAt = 0
	f.PublishError = nil
	f.Closed = false
}
