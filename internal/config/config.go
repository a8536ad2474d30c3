// Package config defines the feeder's configuration and how it is loaded.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Pins are BCM line offsets for the feeder's hardware.
type Pins struct {
	Gate     int `koanf:"gate"`
	Buzzer   int `koanf:"buzzer"`
	Stock    int `koanf:"stock"`
	Water    int `koanf:"water"`
	ScaleDT  int `koanf:"scale_dt"`
	ScaleSCK int `koanf:"scale_sck"`
}

// Scale calibrates the load cell.
type Scale struct {
	// Factor is raw HX711 counts per gram.
	Factor float64 `koanf:"factor"`

	// Offset is the raw reading of the empty bowl, used until the first tare.
	Offset int64 `koanf:"offset"`

	TareSamples int `koanf:"tare_samples"`
	ReadSamples int `koanf:"read_samples"`
}

// Sensors configures the supply sensors.
type Sensors struct {
	StockActiveLow bool          `koanf:"stock_active_low"`
	WaterActiveLow bool          `koanf:"water_active_low"`
	Debounce       time.Duration `koanf:"debounce"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// DeviceID names the device in MQTT topics. Empty means use the persisted
	// id, generating one on first boot.
	DeviceID string `koanf:"device_id"`

	// Broker is the MQTT broker URL, e.g. "tcp://192.168.1.200:1883".
	Broker   string `koanf:"broker"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`

	// Tick is the cooperative loop period.
	Tick time.Duration `koanf:"tick"`

	// StatusInterval spaces periodic status events.
	StatusInterval time.Duration `koanf:"status_interval"`

	DispenseTimeout time.Duration `koanf:"dispense_timeout"`
	DisplayRefresh  time.Duration `koanf:"display_refresh"`
	AlertInterval   time.Duration `koanf:"alert_interval"`
	AlertPulses     int           `koanf:"alert_pulses"`

	// TimeServer is the NTP server; TimeSyncInterval spaces successful syncs
	// and TimeRetryInterval failed ones.
	TimeServer        string        `koanf:"time_server"`
	TimeSyncInterval  time.Duration `koanf:"time_sync_interval"`
	TimeRetryInterval time.Duration `koanf:"time_retry_interval"`

	// Timezone is the IANA zone schedule times are written in.
	Timezone string `koanf:"timezone"`

	SyncRetryInterval time.Duration `koanf:"sync_retry_interval"`
	PublishTimeout    time.Duration `koanf:"publish_timeout"`

	// HTTP is the status page listen address; empty disables it.
	HTTP string `koanf:"http"`

	// Store is the SQLite file for persisted state; empty keeps state in memory.
	Store string `koanf:"store"`

	Pins    Pins    `koanf:"pins"`
	Scale   Scale   `koanf:"scale"`
	Sensors Sensors `koanf:"sensors"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Broker:            "tcp://localhost:1883",
		Tick:              50 * time.Millisecond,
		StatusInterval:    30 * time.Second,
		DispenseTimeout:   20 * time.Second,
		DisplayRefresh:    500 * time.Millisecond,
		AlertInterval:     500 * time.Millisecond,
		AlertPulses:       3,
		TimeServer:        "pool.ntp.org",
		TimeSyncInterval:  time.Hour,
		TimeRetryInterval: time.Minute,
		Timezone:          "UTC",
		SyncRetryInterval: 30 * time.Second,
		PublishTimeout:    2 * time.Second,
		HTTP:              ":8080",
		Store:             "/var/lib/pet-feeder/state.db",
		Pins: Pins{
			Gate:     17,
			Buzzer:   27,
			Stock:    22,
			Water:    23,
			ScaleDT:  5,
			ScaleSCK: 6,
		},
		Scale: Scale{
			Factor:      420,
			TareSamples: 20,
			ReadSamples: 5,
		},
		Sensors: Sensors{
			Debounce: 250 * time.Millisecond,
		},
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	var problems []string
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		bad("log_level %q", c.LogLevel)
	}
	if c.Broker == "" {
		bad("broker must not be empty")
	}
	if strings.ContainsAny(c.DeviceID, "/+#") {
		bad("device_id %q must not contain MQTT topic characters", c.DeviceID)
	}

	positive := map[string]time.Duration{
		"tick":                c.Tick,
		"status_interval":     c.StatusInterval,
		"dispense_timeout":    c.DispenseTimeout,
		"display_refresh":     c.DisplayRefresh,
		"alert_interval":      c.AlertInterval,
		"time_sync_interval":  c.TimeSyncInterval,
		"time_retry_interval": c.TimeRetryInterval,
		"sync_retry_interval": c.SyncRetryInterval,
		"publish_timeout":     c.PublishTimeout,
	}
	for _, name := range sortedKeys(positive) {
		if positive[name] <= 0 {
			bad("%s must be positive", name)
		}
	}
	if c.Tick > time.Second {
		bad("tick %s is too coarse for the dispense timeout", c.Tick)
	}
	if c.Sensors.Debounce < 0 {
		bad("sensors.debounce must not be negative")
	}
	if c.AlertPulses < 1 {
		bad("alert_pulses must be at least 1")
	}
	if c.TimeServer == "" {
		bad("time_server must not be empty")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		bad("timezone %q", c.Timezone)
	}
	if c.Scale.Factor == 0 {
		bad("scale.factor must not be zero")
	}
	if c.Scale.TareSamples < 1 || c.Scale.ReadSamples < 1 {
		bad("scale sample counts must be at least 1")
	}

	pins := map[string]int{
		"gate":      c.Pins.Gate,
		"buzzer":    c.Pins.Buzzer,
		"stock":     c.Pins.Stock,
		"water":     c.Pins.Water,
		"scale_dt":  c.Pins.ScaleDT,
		"scale_sck": c.Pins.ScaleSCK,
	}
	seen := make(map[int]string, len(pins))
	for _, name := range sortedKeys(pins) {
		p := pins[name]
		if p < 0 {
			bad("pins.%s must not be negative", name)
			continue
		}
		if other, dup := seen[p]; dup {
			bad("pins.%s and pins.%s share line %d", other, name, p)
		}
		seen[p] = name
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
