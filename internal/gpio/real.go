//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// samplePoll is how often the sampler checks for HX711 data ready.
const samplePoll = 10 * time.Millisecond

type realBoard struct {
	chip  *gpiocdev.Chip
	gate  *gpiocdev.Line
	buzz  *gpiocdev.Line
	stock *gpiocdev.Line
	water *gpiocdev.Line
	dt    *gpiocdev.Line
	sck   *gpiocdev.Line

	cell *LoadCell
	stop chan struct{}
	done sync.WaitGroup
}

// NewBoard claims the feeder's lines and starts sampling the load cell in the
// background so Scale reads never wait on the HX711.
func NewBoard(cfg BoardConfig) (*Board, error) {
	if cfg.Chip == "" {
		cfg.Chip = "gpiochip0"
	}
	chip, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	r := &realBoard{chip: chip, cell: NewLoadCell(cfg.Calibration), stop: make(chan struct{})}

	request := func(name string, offset int, opts ...gpiocdev.LineReqOption) (*gpiocdev.Line, error) {
		l, err := chip.RequestLine(offset, opts...)
		if err != nil {
			r.release()
			return nil, fmt.Errorf("request %s pin %d: %w", name, offset, err)
		}
		return l, nil
	}

	if r.gate, err = request("gate", cfg.Pins.Gate, gpiocdev.AsOutput(0)); err != nil {
		return nil, err
	}
	if r.buzz, err = request("buzzer", cfg.Pins.Buzzer, gpiocdev.AsOutput(0)); err != nil {
		return nil, err
	}
	if r.stock, err = request("stock", cfg.Pins.Stock, inputOpts(cfg.StockActiveLow)...); err != nil {
		return nil, err
	}
	if r.water, err = request("water", cfg.Pins.Water, inputOpts(cfg.WaterActiveLow)...); err != nil {
		return nil, err
	}
	if r.dt, err = request("scale DT", cfg.Pins.ScaleDT, gpiocdev.AsInput); err != nil {
		return nil, err
	}
	if r.sck, err = request("scale SCK", cfg.Pins.ScaleSCK, gpiocdev.AsOutput(0)); err != nil {
		return nil, err
	}

	r.done.Add(1)
	go r.sample()

	return &Board{
		Scale:   r.cell,
		Gate:    gateLine{r.gate},
		Buzzer:  buzzerLine{r.buzz},
		Sensors: r,
		closer:  r.Close,
	}, nil
}

func inputOpts(activeLow bool) []gpiocdev.LineReqOption {
	if activeLow {
		return []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow}
	}
	return []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown}
}

// Read returns the logical supply states.
func (r *realBoard) Read() (bool, bool, error) {
	stock, err := r.stock.Value()
	if err != nil {
		return false, false, fmt.Errorf("read stock pin: %w", err)
	}
	water, err := r.water.Value()
	if err != nil {
		return false, false, fmt.Errorf("read water pin: %w", err)
	}
	return stock == 1, water == 1, nil
}

// sample feeds the load cell until Close.
func (r *realBoard) sample() {
	defer r.done.Done()
	t := time.NewTicker(samplePoll)
	defer t.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-t.C:
		}
		if v, err := r.dt.Value(); err != nil || v != 0 {
			continue // not ready
		}
		if raw, err := r.readHX711(); err == nil {
			r.cell.Observe(raw)
		}
	}
}

// readHX711 clocks out one 24-bit conversion and a 25th pulse selecting
// channel A at gain 128 for the next one.
func (r *realBoard) readHX711() (int64, error) {
	var word uint32
	for i := 0; i < 24; i++ {
		if err := r.sck.SetValue(1); err != nil {
			return 0, err
		}
		bit, err := r.dt.Value()
		if err != nil {
			return 0, err
		}
		if err := r.sck.SetValue(0); err != nil {
			return 0, err
		}
		word = word<<1 | uint32(bit&1)
	}
	if err := r.sck.SetValue(1); err != nil {
		return 0, err
	}
	if err := r.sck.SetValue(0); err != nil {
		return 0, err
	}
	return decode24(word), nil
}

// Close stops sampling, drives outputs low and returns every line to an input
// with pull-down, matching Pi boot defaults.
func (r *realBoard) Close() error {
	close(r.stop)
	r.done.Wait()

	var errs []error
	for _, l := range []*gpiocdev.Line{r.gate, r.buzz} {
		if l == nil {
			continue
		}
		if err := l.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("drive line %d low: %w", l.Offset(), err))
		}
	}
	for _, l := range []*gpiocdev.Line{r.gate, r.buzz, r.sck} {
		if l == nil {
			continue
		}
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line %d: %w", l.Offset(), err))
		}
	}
	if err := r.release(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// release closes whatever lines were requested, then the chip.
func (r *realBoard) release() error {
	var errs []error
	for _, l := range []*gpiocdev.Line{r.gate, r.buzz, r.stock, r.water, r.dt, r.sck} {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", l.Offset(), err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("release errors: %v", errs)
	}
	return nil
}

type gateLine struct{ l *gpiocdev.Line }

func (g gateLine) Open() error {
	if err := g.l.SetValue(1); err != nil {
		return fmt.Errorf("open gate: %w", err)
	}
	return nil
}

func (g gateLine) Close() error {
	if err := g.l.SetValue(0); err != nil {
		return fmt.Errorf("close gate: %w", err)
	}
	return nil
}

type buzzerLine struct{ l *gpiocdev.Line }

func (b buzzerLine) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return b.l.SetValue(v)
}
