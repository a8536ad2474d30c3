package gpio

import (
	"math"
	"sync"
)

// Calibration converts raw HX711 counts to grams.
type Calibration struct {
	Factor      float64 // raw counts per gram
	Offset      int64   // raw reading of the empty bowl, used until the first tare
	TareSamples int
	ReadSamples int
}

// Default calibration.
const (
	DefaultTareSamples = 20
	DefaultReadSamples = 5
)

// LoadCell averages raw samples pushed by a sampler and serves non-blocking
// Tare and Read. Safe for concurrent use.
type LoadCell struct {
	mu     sync.Mutex
	cal    Calibration
	window []int64 // ring of recent raw samples
	next   int
	filled int
	zero   int64
}

// NewLoadCell creates a load cell with the given calibration.
func NewLoadCell(cal Calibration) *LoadCell {
	if cal.Factor == 0 {
		cal.Factor = 1
	}
	if cal.TareSamples <= 0 {
		cal.TareSamples = DefaultTareSamples
	}
	if cal.ReadSamples <= 0 {
		cal.ReadSamples = DefaultReadSamples
	}
	size := cal.TareSamples
	if cal.ReadSamples > size {
		size = cal.ReadSamples
	}
	return &LoadCell{cal: cal, window: make([]int64, size), zero: cal.Offset}
}

// Observe records one raw sample.
func (c *LoadCell) Observe(raw int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window[c.next] = raw
	c.next = (c.next + 1) % len(c.window)
	if c.filled < len(c.window) {
		c.filled++
	}
}

// average of the n most recent samples. Caller holds mu.
func (c *LoadCell) average(n int) (int64, bool) {
	if c.filled == 0 {
		return 0, false
	}
	if n > c.filled {
		n = c.filled
	}
	var sum int64
	for i := 1; i <= n; i++ {
		sum += c.window[(c.next-i+len(c.window))%len(c.window)]
	}
	return sum / int64(n), true
}

// Tare makes the current load read as zero.
func (c *LoadCell) Tare() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	avg, ok := c.average(c.cal.TareSamples)
	if !ok {
		return ErrNotReady
	}
	c.zero = avg
	return nil
}

// Read returns the averaged weight in grams relative to the last tare.
func (c *LoadCell) Read() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	avg, ok := c.average(c.cal.ReadSamples)
	if !ok {
		return 0, ErrNotReady
	}
	return int(math.Round(float64(avg-c.zero) / c.cal.Factor)), nil
}

// decode24 sign-extends a 24-bit two's complement HX711 word.
func decode24(word uint32) int64 {
	word &= 0xFFFFFF
	if word&0x800000 != 0 {
		return int64(word) - 0x1000000
	}
	return int64(word)
}
