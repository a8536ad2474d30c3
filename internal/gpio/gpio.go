// Package gpio provides the feeder's hardware collaborators with abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

import (
	"errors"

	"github.com/sweeney/pet-feeder/internal/logic"
)

// ErrNotReady is returned by the scale before any sample has been taken.
var ErrNotReady = errors.New("gpio: scale has no samples yet")

// Reader reads the supply sensors.
type Reader interface {
	// Read returns whether food stock and water are present.
	// Active-low wiring is already resolved: true always means present.
	Read() (stock, water bool, err error)
}

// Pins are BCM line offsets on gpiochip0.
type Pins struct {
	Gate     int
	Buzzer   int
	Stock    int
	Water    int
	ScaleDT  int
	ScaleSCK int
}

// DefaultPins is the reference wiring.
var DefaultPins = Pins{
	Gate:     17,
	Buzzer:   27,
	Stock:    22,
	Water:    23,
	ScaleDT:  5,
	ScaleSCK: 6,
}

// BoardConfig describes the wiring of a real feeder.
type BoardConfig struct {
	Chip           string
	Pins           Pins
	Calibration    Calibration
	StockActiveLow bool
	WaterActiveLow bool
}

// Board bundles every collaborator the feeder drives.
type Board struct {
	Scale   logic.Scale
	Gate    logic.Gate
	Buzzer  logic.Buzzer
	Sensors Reader

	closer func() error
}

// Close puts outputs in a safe state and releases resources.
func (b *Board) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}
