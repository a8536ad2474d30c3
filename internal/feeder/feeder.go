// Package feeder is the composition root of the feeding kernel. Feeder.Tick
// runs every component once per loop iteration in a fixed order.
package feeder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/pet-feeder/internal/codec"
	"github.com/sweeney/pet-feeder/internal/gpio"
	"github.com/sweeney/pet-feeder/internal/logger"
	"github.com/sweeney/pet-feeder/internal/logic"
	"github.com/sweeney/pet-feeder/internal/metrics"
	"github.com/sweeney/pet-feeder/internal/mqtt"
	"github.com/sweeney/pet-feeder/internal/outbox"
	"github.com/sweeney/pet-feeder/internal/status"
	"github.com/sweeney/pet-feeder/internal/store"
	"github.com/sweeney/pet-feeder/internal/timesync"
)

// Default sampling cadence.
const DefaultStatusInterval = 30 * time.Second

// Config holds the feeder's timing and capacity settings. Zero values fall
// back to the package defaults.
type Config struct {
	Location          *time.Location
	StatusInterval    time.Duration
	DispenseTimeout   time.Duration
	DisplayRefresh    time.Duration
	AlertInterval     time.Duration
	AlertPulses       int
	SyncRetryInterval time.Duration
	Debounce          time.Duration
	BufferCapacity    int
}

// Deps are the collaborators the feeder drives. Time, Display, Tracker and
// Metrics are optional.
type Deps struct {
	Store     store.Store
	Scale     logic.Scale
	Gate      logic.Gate
	Buzzer    logic.Buzzer
	Sensors   gpio.Reader
	Transport mqtt.Transport
	Time      *timesync.Poller
	Display   Display
	Tracker   *status.Tracker
	Metrics   *metrics.Manager
	Log       logger.Logger
}

// Feeder owns every piece of kernel state. It is not safe for concurrent use;
// only the tick loop touches it.
type Feeder struct {
	cfg Config
	loc *time.Location

	clock  *logic.Clock
	table  *logic.Table
	ctrl   *logic.Controller
	alert  *logic.Alert
	sensed *logic.Debouncer
	buf    *outbox.Buffer
	syncer *outbox.Syncer

	store     store.Store
	scale     logic.Scale
	buzzer    logic.Buzzer
	sensors   gpio.Reader
	transport mqtt.Transport
	poller    *timesync.Poller
	display   Display
	tracker   *status.Tracker
	metrics   *metrics.Manager
	log       logger.Logger

	connected   bool
	synced      bool
	nextSample  time.Duration
	lastWeight  int
	sensorFault bool
	lines       [2]string
}

// New builds a feeder and restores the schedule, clock reference and offline
// buffer persisted by a previous boot.
func New(ctx context.Context, cfg Config, deps Deps) (*Feeder, error) {
	if deps.Store == nil || deps.Scale == nil || deps.Gate == nil || deps.Buzzer == nil ||
		deps.Sensors == nil || deps.Transport == nil {
		return nil, errors.New("feeder: store, scale, gate, buzzer, sensors and transport are required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultStatusInterval
	}

	log := logger.OrNop(deps.Log)
	alert := logic.NewAlert(deps.Buzzer, cfg.AlertInterval, cfg.AlertPulses)
	f := &Feeder{
		cfg:       cfg,
		loc:       cfg.Location,
		clock:     logic.NewClock(),
		table:     logic.NewTable(),
		ctrl:      logic.NewController(deps.Scale, deps.Gate, alert, cfg.DispenseTimeout, cfg.DisplayRefresh),
		alert:     alert,
		sensed:    logic.NewDebouncer(cfg.Debounce),
		store:     deps.Store,
		scale:     deps.Scale,
		buzzer:    deps.Buzzer,
		sensors:   deps.Sensors,
		transport: deps.Transport,
		poller:    deps.Time,
		display:   deps.Display,
		tracker:   deps.Tracker,
		metrics:   deps.Metrics,
		log:       log,
	}

	if err := f.restore(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Feeder) restore(ctx context.Context) error {
	entries, err := f.loadSchedule(ctx)
	if err != nil {
		if !errors.Is(err, codec.ErrMalformed) {
			return err
		}
		f.log.Warn(ctx, "discarding malformed persisted schedule", logger.Error(err))
	}
	if entries != nil {
		dropped := f.table.Restore(entries)
		f.log.Info(ctx, "schedule restored",
			logger.Int("entries", f.table.Len()), logger.Int("dropped", dropped))
	}

	ref, ok, err := f.loadReference(ctx)
	if err != nil {
		if !errors.Is(err, codec.ErrMalformed) {
			return err
		}
		f.log.Warn(ctx, "discarding malformed clock reference", logger.Error(err))
	}
	if ok {
		f.clock.Restore(ref)
		f.log.Info(ctx, "clock reference restored",
			logger.String("at_sync", time.Unix(ref.SecondsAtSync, 0).UTC().Format(time.RFC3339)))
	}

	buf, dropped, err := outbox.Open(ctx, f.store, f.cfg.BufferCapacity, f.log.Named("outbox"))
	if err != nil {
		return fmt.Errorf("open offline buffer: %w", err)
	}
	if dropped > 0 {
		f.log.Warn(ctx, "dropped unreadable buffered events", logger.Int("dropped", dropped))
	}
	if buf.Len() > 0 {
		f.log.Info(ctx, "buffered events restored", logger.Int("count", buf.Len()))
	}
	f.buf = buf
	f.syncer = outbox.NewSyncer(buf, f.cfg.SyncRetryInterval)

	f.metrics.SetScheduleEntries(f.table.Len())
	f.metrics.SetBufferDepth(f.buf.Len())
	f.metrics.SetClockSynced(ok)
	if f.tracker != nil {
		f.tracker.SetSchedule(f.table.Entries())
		f.tracker.SetBuffer(f.buf.Len(), f.buf.Capacity())
	}
	return nil
}

// Schedule returns the installed entries.
func (f *Feeder) Schedule() []logic.Entry {
	return f.table.Entries()
}

// State returns the dispense controller state.
func (f *Feeder) State() logic.State {
	return f.ctrl.State()
}

// Buffered returns the number of events waiting in the offline buffer.
func (f *Feeder) Buffered() int {
	return f.buf.Len()
}

// Now returns the clock reading at uptime.
func (f *Feeder) Now(uptime time.Duration) logic.Reading {
	return f.clock.Now(uptime)
}

// Shutdown closes the gate if a session is open, silences the buzzer and
// announces OFFLINE. The caller closes the transport and store afterwards.
func (f *Feeder) Shutdown(ctx context.Context, reason string) error {
	var errs []error
	if f.ctrl.Active() {
		f.log.Warn(ctx, "closing gate mid-session for shutdown", logger.String("reason", reason))
		if err := f.ctrl.Abort(); err != nil {
			errs = append(errs, fmt.Errorf("close gate: %w", err))
		}
	}
	if err := f.buzzer.Set(false); err != nil {
		errs = append(errs, fmt.Errorf("silence buzzer: %w", err))
	}
	if f.transport.IsConnected() {
		if err := f.transport.Publish(mqtt.KindSystem, []byte(mqtt.SystemOffline)); err != nil {
			errs = append(errs, fmt.Errorf("publish offline: %w", err))
		}
	}
	f.log.Info(ctx, "shutdown", logger.String("reason", reason), logger.Int("buffered", f.buf.Len()))
	return errors.Join(errs...)
}
