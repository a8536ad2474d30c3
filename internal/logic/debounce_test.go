package logic

import (
	"testing"
	"time"
)

func TestDebouncerBaseline(t *testing.T) {
	d := NewDebouncer(250 * time.Millisecond)

	if got := d.Process(SensorInput{Stock: true, Water: false, At: 0}); len(got) != 0 {
		t.Errorf("expected no changes during baseline, got %v", got)
	}
	if d.Baselined() {
		t.Error("should not be baselined after first sample")
	}
	d.Process(SensorInput{Stock: true, Water: false, At: 200 * time.Millisecond})
	if d.Baselined() {
		t.Error("should not be baselined before window elapses")
	}
	if got := d.Process(SensorInput{Stock: true, Water: false, At: 250 * time.Millisecond}); len(got) != 0 {
		t.Errorf("expected no changes at baseline, got %v", got)
	}
	if !d.Baselined() {
		t.Fatal("should be baselined after window")
	}

	stock, water := d.Levels()
	if stock != LevelOK || water != LevelLow {
		t.Errorf("levels = %s/%s, want ok/low", stock, water)
	}
	sp, wp := d.Present()
	if !sp || wp {
		t.Errorf("present = %v/%v, want true/false", sp, wp)
	}
}

func TestDebouncerPresentBeforeBaseline(t *testing.T) {
	d := NewDebouncer(time.Second)
	sp, wp := d.Present()
	if !sp || !wp {
		t.Error("sensors default to present before baseline")
	}
}

func TestDebouncerTransition(t *testing.T) {
	d := NewDebouncer(250 * time.Millisecond)
	at := time.Duration(0)
	step := 100 * time.Millisecond
	for i := 0; i < 4; i++ {
		d.Process(SensorInput{Stock: true, Water: true, At: at})
		at += step
	}
	if !d.Baselined() {
		t.Fatal("expected baseline")
	}

	// Stock runs low; must hold for the window
	var changes []LevelChange
	for i := 0; i < 4; i++ {
		changes = append(changes, d.Process(SensorInput{Stock: false, Water: true, At: at})...)
		at += step
	}
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %v", changes)
	}
	c := changes[0]
	if c.Sensor != SensorStock || c.From != LevelOK || c.To != LevelLow {
		t.Errorf("unexpected change: %+v", c)
	}
}

func TestDebouncerIgnoresGlitch(t *testing.T) {
	d := NewDebouncer(250 * time.Millisecond)
	samples := []SensorInput{
		{Stock: true, Water: true, At: 0},
		{Stock: true, Water: true, At: 300 * time.Millisecond},
		{Stock: true, Water: false, At: 400 * time.Millisecond}, // glitch
		{Stock: true, Water: true, At: 500 * time.Millisecond},
		{Stock: true, Water: true, At: 900 * time.Millisecond},
	}
	for _, s := range samples {
		if got := d.Process(s); len(got) != 0 {
			t.Errorf("glitch produced change at %v: %v", s.At, got)
		}
	}
}

func TestDebouncerSimultaneousOrder(t *testing.T) {
	d := NewDebouncer(100 * time.Millisecond)
	d.Process(SensorInput{Stock: true, Water: true, At: 0})
	d.Process(SensorInput{Stock: true, Water: true, At: 100 * time.Millisecond})

	d.Process(SensorInput{Stock: false, Water: false, At: 200 * time.Millisecond})
	got := d.Process(SensorInput{Stock: false, Water: false, At: 300 * time.Millisecond})
	if len(got) != 2 {
		t.Fatalf("expected 2 changes, got %v", got)
	}
	if got[0].Sensor != SensorStock || got[1].Sensor != SensorWater {
		t.Errorf("order = %s,%s want stock,water", got[0].Sensor, got[1].Sensor)
	}
}
