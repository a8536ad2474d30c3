package gpio

import (
	"errors"
	"testing"
)

func TestFakeReaderRead(t *testing.T) {
	samples := []Sample{
		{Stock: true, Water: false},
		{Stock: false, Water: true},
	}

	f := NewFakeReader(samples)

	stock, water, err := f.Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stock != true || water != false {
		t.Errorf("sample 0: expected (true, false), got (%v, %v)", stock, water)
	}

	stock, water, err = f.Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stock != false || water != true {
		t.Errorf("sample 1: expected (false, true), got (%v, %v)", stock, water)
	}

	// Third read should repeat last sample
	stock, water, _ = f.Read()
	if stock != false || water != true {
		t.Errorf("sample 2 (repeat): expected (false, true), got (%v, %v)", stock, water)
	}

	f.Reset()
	stock, _, _ = f.Read()
	if !stock {
		t.Error("after reset: expected first sample again")
	}
}

func TestFakeReaderNoSamples(t *testing.T) {
	f := NewFakeReader(nil)

	_, _, err := f.Read()
	if err == nil {
		t.Error("expected error with no samples")
	}
}

func TestFakeReaderError(t *testing.T) {
	f := NewFakeReader([]Sample{{Stock: true, Water: true}})
	f.ReadError = errors.New("simulated error")

	_, _, err := f.Read()
	if err == nil || err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakeScaleFlowsOnlyWhileOpen(t *testing.T) {
	board, scale, gate, _, _ := NewFakeBoard(nil, 10)

	if w, _ := board.Scale.Read(); w != 0 {
		t.Errorf("closed gate: expected 0g, got %d", w)
	}

	board.Gate.Open()
	board.Scale.Read()
	w, _ := board.Scale.Read()
	if w != 20 {
		t.Errorf("expected 20g after two reads, got %d", w)
	}

	board.Gate.Close()
	if w, _ := board.Scale.Read(); w != 20 {
		t.Errorf("expected weight to hold at 20g, got %d", w)
	}

	board.Scale.Tare()
	if scale.Tares != 1 || scale.Weight != 0 {
		t.Errorf("tare: tares=%d weight=%d", scale.Tares, scale.Weight)
	}
	if gate.Opens != 1 || gate.Closes != 1 {
		t.Errorf("gate: opens=%d closes=%d", gate.Opens, gate.Closes)
	}
}

func TestFakeGateErrors(t *testing.T) {
	g := &FakeGate{CloseError: errors.New("stuck")}
	g.Open()
	if err := g.Close(); err == nil {
		t.Error("expected close error")
	}
	if !g.IsOpen {
		t.Error("failed close should leave gate open")
	}
}

func TestFakeBoardCloseSafesOutputs(t *testing.T) {
	board, _, gate, buzzer, _ := NewFakeBoard(nil, 0)
	board.Gate.Open()
	board.Buzzer.Set(true)

	if err := board.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gate.IsOpen || buzzer.On {
		t.Error("close should leave gate closed and buzzer off")
	}
	if len(buzzer.History) != 1 || !buzzer.History[0] {
		t.Errorf("unexpected buzzer history: %v", buzzer.History)
	}
}
