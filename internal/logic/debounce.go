package logic

import "time"

// Level is the debounced state of a binary supply sensor.
type Level string

const (
	LevelOK  Level = "ok"
	LevelLow Level = "low"
)

// Sensor identifies which supply a transition belongs to.
type Sensor string

const (
	SensorStock Sensor = "main_stock"
	SensorWater Sensor = "water_level"
)

// SensorInput is one raw sample of the supply sensors (true = supply present).
type SensorInput struct {
	Stock bool
	Water bool
	At    time.Duration
}

// LevelChange is a debounced transition of one sensor.
type LevelChange struct {
	Sensor Sensor
	From   Level
	To     Level
	At     time.Duration
}

// channel tracks debounce state for a single sensor.
type channel struct {
	stable       Level
	pending      Level
	pendingSince time.Duration
	baselined    bool
}

// Debouncer filters contact bounce on the stock and water sensors.
// No transitions are reported until both sensors hold steady for the debounce window.
type Debouncer struct {
	window    time.Duration
	stock     channel
	water     channel
	baselined bool
}

// NewDebouncer creates a debouncer with the given stability window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Process consumes a sample and returns transitions that completed debouncing.
// Stock is reported before water when both change on the same sample.
func (d *Debouncer) Process(in SensorInput) []LevelChange {
	stockFrom, stockChanged := d.step(&d.stock, levelOf(in.Stock), in.At)
	waterFrom, waterChanged := d.step(&d.water, levelOf(in.Water), in.At)

	if !d.baselined {
		d.baselined = d.stock.baselined && d.water.baselined
		return nil
	}

	var out []LevelChange
	if stockChanged {
		out = append(out, LevelChange{Sensor: SensorStock, From: stockFrom, To: d.stock.stable, At: in.At})
	}
	if waterChanged {
		out = append(out, LevelChange{Sensor: SensorWater, From: waterFrom, To: d.water.stable, At: in.At})
	}
	return out
}

func (d *Debouncer) step(ch *channel, next Level, now time.Duration) (Level, bool) {
	if !ch.baselined {
		if ch.pending != next {
			ch.pending = next
			ch.pendingSince = now
			return "", false
		}
		if now-ch.pendingSince >= d.window {
			ch.stable = next
			ch.baselined = true
			ch.pending = ""
		}
		return "", false
	}

	if next == ch.stable {
		ch.pending = ""
		return "", false
	}
	if ch.pending != next {
		ch.pending = next
		ch.pendingSince = now
		return "", false
	}
	if now-ch.pendingSince >= d.window {
		from := ch.stable
		ch.stable = next
		ch.pending = ""
		return from, true
	}
	return "", false
}

// Baselined reports whether both sensors have an established level.
func (d *Debouncer) Baselined() bool {
	return d.baselined
}

// Levels returns the debounced levels. Before baseline they are empty.
func (d *Debouncer) Levels() (stock, water Level) {
	return d.stock.stable, d.water.stable
}

// Present reports the debounced presence of stock and water.
// Before baseline a sensor is treated as present.
func (d *Debouncer) Present() (stock, water bool) {
	return d.stock.stable != LevelLow, d.water.stable != LevelLow
}

func levelOf(present bool) Level {
	if present {
		return LevelOK
	}
	return LevelLow
}
