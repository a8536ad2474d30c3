package logic

import (
	"testing"
	"time"
)

func TestAlertThreePulses(t *testing.T) {
	b := &fakeBuzzer{}
	a := NewAlert(b, 500*time.Millisecond, 3)

	if !a.Request(0) {
		t.Fatal("first Request should arm")
	}

	for now := time.Duration(0); now <= 5*time.Second; now += 50 * time.Millisecond {
		if err := a.Service(now); err != nil {
			t.Fatalf("Service: %v", err)
		}
	}

	want := []bool{true, false, true, false, true, false}
	if len(b.history) != len(want) {
		t.Fatalf("toggles = %v, want %v", b.history, want)
	}
	for i := range want {
		if b.history[i] != want[i] {
			t.Errorf("toggle %d = %v, want %v", i, b.history[i], want[i])
		}
	}
	if a.Armed() {
		t.Error("alert should disarm after three pulses")
	}
	if b.on {
		t.Error("buzzer must end off")
	}
}

func TestAlertToggleTiming(t *testing.T) {
	b := &fakeBuzzer{}
	a := NewAlert(b, 500*time.Millisecond, 3)
	a.Request(time.Second)

	if a.Due(1400 * time.Millisecond) {
		t.Error("should not be due before the interval elapses")
	}
	if !a.Due(1500 * time.Millisecond) {
		t.Error("should be due once the interval elapses")
	}
	a.Service(1500 * time.Millisecond)
	if !b.on {
		t.Error("first toggle should switch on")
	}
	if a.Completed() != 0 {
		t.Errorf("Completed() = %d, want 0 after on edge", a.Completed())
	}
	a.Service(2000 * time.Millisecond)
	if a.Completed() != 1 {
		t.Errorf("Completed() = %d, want 1 after first off edge", a.Completed())
	}
}

func TestAlertRequestWhileArmedIsNoop(t *testing.T) {
	b := &fakeBuzzer{}
	a := NewAlert(b, 500*time.Millisecond, 3)
	a.Request(0)
	a.Service(500 * time.Millisecond)  // on
	a.Service(1000 * time.Millisecond) // off, pulse 1

	if a.Request(1100 * time.Millisecond) {
		t.Error("Request while armed should be a no-op")
	}
	if a.Completed() != 1 {
		t.Errorf("sequence restarted: Completed() = %d, want 1", a.Completed())
	}

	for now := 1100 * time.Millisecond; now <= 4*time.Second; now += 100 * time.Millisecond {
		a.Service(now)
	}
	if len(b.history) != 6 {
		t.Errorf("toggles = %d, want 6 (requests must not stack)", len(b.history))
	}
}

func TestAlertRearmAfterCompletion(t *testing.T) {
	b := &fakeBuzzer{}
	a := NewAlert(b, 100*time.Millisecond, 1)
	a.Request(0)
	a.Service(100 * time.Millisecond)
	a.Service(200 * time.Millisecond)
	if a.Armed() {
		t.Fatal("single-pulse alert should be done")
	}
	if !a.Request(300 * time.Millisecond) {
		t.Error("Request after completion should arm again")
	}
}

func TestAlertDriverErrorStillProgresses(t *testing.T) {
	b := &fakeBuzzer{err: errHardware}
	a := NewAlert(b, 100*time.Millisecond, 2)
	a.Request(0)
	var errs int
	for now := time.Duration(0); now <= time.Second; now += 100 * time.Millisecond {
		if a.Service(now) != nil {
			errs++
		}
	}
	if a.Armed() {
		t.Error("sequence must terminate even when the driver fails")
	}
	if errs != 4 {
		t.Errorf("errors = %d, want 4", errs)
	}
}

func TestAlertIdleServiceIsNoop(t *testing.T) {
	b := &fakeBuzzer{}
	a := NewAlert(b, 0, 0)
	if err := a.Service(time.Hour); err != nil {
		t.Fatalf("Service: %v", err)
	}
	if len(b.history) != 0 {
		t.Error("idle alert must not drive the buzzer")
	}
}
