package gpio

import "errors"

// FakeReader is a test double that returns scripted sensor values.
type FakeReader struct {
	// Samples contains scripted values to return.
	// Each call to Read() consumes the next sample.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// Sample represents a single sensor reading (true = present).
type Sample struct {
	Stock bool
	Water bool
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (bool, bool, error) {
	if f.ReadError != nil {
		return false, false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample.Stock, sample.Water, nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
}

// FakeScale returns scripted weights. The weight only rises while the gate is
// open when Gate is set, which models food falling into the bowl.
type FakeScale struct {
	// Weight is the current reading in grams.
	Weight int

	// FlowPerRead is added to Weight on each Read while Gate is open.
	FlowPerRead int
	Gate        *FakeGate

	Tares     int
	TareError error
	ReadError error
}

// Tare zeroes the scale.
func (f *FakeScale) Tare() error {
	if f.TareError != nil {
		return f.TareError
	}
	f.Tares++
	f.Weight = 0
	return nil
}

// Read returns the current weight.
func (f *FakeScale) Read() (int, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if f.Gate != nil && f.Gate.IsOpen {
		f.Weight += f.FlowPerRead
	}
	return f.Weight, nil
}

// FakeGate records actuator commands.
type FakeGate struct {
	IsOpen     bool
	Opens      int
	Closes     int
	OpenError  error
	CloseError error
}

// Open opens the gate.
func (f *FakeGate) Open() error {
	if f.OpenError != nil {
		return f.OpenError
	}
	f.Opens++
	f.IsOpen = true
	return nil
}

// Close closes the gate.
func (f *FakeGate) Close() error {
	if f.CloseError != nil {
		return f.CloseError
	}
	f.Closes++
	f.IsOpen = false
	return nil
}

// FakeBuzzer records every output change.
type FakeBuzzer struct {
	On       bool
	History  []bool
	SetError error
}

// Set drives the buzzer.
func (f *FakeBuzzer) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.On = on
	f.History = append(f.History, on)
	return nil
}

// NewFakeBoard wires fakes into a Board. The scale is linked to the gate.
func NewFakeBoard(samples []Sample, flowPerRead int) (*Board, *FakeScale, *FakeGate, *FakeBuzzer, *FakeReader) {
	gate := &FakeGate{}
	scale := &FakeScale{FlowPerRead: flowPerRead, Gate: gate}
	buzzer := &FakeBuzzer{}
	reader := NewFakeReader(samples)
	closed := false
	board := &Board{
		Scale:   scale,
		Gate:    gate,
		Buzzer:  buzzer,
		Sensors: reader,
		closer: func() error {
			if !closed {
				closed = true
				gate.IsOpen = false
				buzzer.On = false
			}
			return nil
		},
	}
	return board, scale, gate, buzzer, reader
}
