package logic

import "errors"

// fakeScale returns scripted weights; the last one repeats.
type fakeScale struct {
	weights []int
	idx     int
	tares   int
	tareErr error
	readErr error
}

func (s *fakeScale) Tare() error {
	s.tares++
	return s.tareErr
}

func (s *fakeScale) Read() (int, error) {
	if s.readErr != nil {
		return 0, s.readErr
	}
	if len(s.weights) == 0 {
		return 0, nil
	}
	w := s.weights[s.idx]
	if s.idx < len(s.weights)-1 {
		s.idx++
	}
	return w, nil
}

type fakeGate struct {
	open     bool
	opens    int
	closes   int
	openErr  error
	closeErr error
}

func (g *fakeGate) Open() error {
	if g.openErr != nil {
		return g.openErr
	}
	g.opens++
	g.open = true
	return nil
}

func (g *fakeGate) Close() error {
	if g.closeErr != nil {
		return g.closeErr
	}
	g.closes++
	g.open = false
	return nil
}

type fakeBuzzer struct {
	on      bool
	history []bool
	err     error
}

func (b *fakeBuzzer) Set(on bool) error {
	b.history = append(b.history, on)
	b.on = on
	return b.err
}

var errHardware = errors.New("hardware fault")
