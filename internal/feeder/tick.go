package feeder

import (
	"context"
	"errors"
	"time"

	"github.com/sweeney/pet-feeder/internal/logger"
	"github.com/sweeney/pet-feeder/internal/logic"
	"github.com/sweeney/pet-feeder/internal/metrics"
	"github.com/sweeney/pet-feeder/internal/mqtt"
	"github.com/sweeney/pet-feeder/internal/outbox"
	"github.com/sweeney/pet-feeder/internal/status"
)

// Tick runs one loop iteration at uptime. The order is fixed: connectivity,
// schedule and sensor evaluation, alert pulses, dispense advance, buffer drain.
// Nothing in a tick blocks on the network and no error stops the loop.
func (f *Feeder) Tick(ctx context.Context, uptime time.Duration) {
	f.maintainConnectivity(ctx, uptime)
	f.evaluate(ctx, uptime)

	if err := f.alert.Service(uptime); err != nil {
		f.log.Warn(ctx, "buzzer output failed", logger.Error(err))
	}

	f.advance(ctx, uptime)
	f.drain(ctx, uptime)
	f.publishState(uptime)
}

func (f *Feeder) maintainConnectivity(ctx context.Context, uptime time.Duration) {
	connected := f.transport.IsConnected()
	if connected != f.connected {
		f.connected = connected
		if connected {
			f.log.Info(ctx, "broker connected", logger.Int("buffered", f.buf.Len()))
		} else {
			f.log.Warn(ctx, "broker connection lost")
		}
		if f.tracker != nil {
			f.tracker.SetMQTTConnected(connected)
		}
	}

	if f.poller != nil {
		if seconds, ok := f.poller.Poll(ctx, uptime); ok {
			ref := f.clock.Sync(uptime, seconds)
			if !f.synced {
				f.log.Info(ctx, "clock synced",
					logger.String("time", time.Unix(seconds, 0).In(f.loc).Format(time.RFC3339)))
			}
			f.synced = true
			f.metrics.SetClockSynced(true)
			if err := f.saveReference(ctx, ref); err != nil {
				f.log.Warn(ctx, "could not persist clock reference", logger.Error(err))
			}
		}
	}

	updates := f.transport.ScheduleUpdates()
	for {
		select {
		case payload := <-updates:
			f.applySchedule(ctx, payload)
		default:
			return
		}
	}
}

// applySchedule swaps the table for a received schedule. A payload that is not
// a schedule at all leaves the table untouched.
func (f *Feeder) applySchedule(ctx context.Context, payload []byte) {
	entries, malformed, err := mqtt.ParseSchedule(payload)
	if err != nil {
		f.log.Warn(ctx, "ignoring schedule update", logger.Error(err))
		return
	}
	res := f.table.Replace(entries)
	f.log.Info(ctx, "schedule replaced",
		logger.Int("installed", res.Installed),
		logger.Int("rejected", res.Rejected()+malformed),
		logger.Int("dropped", res.Dropped))
	if err := f.saveSchedule(ctx); err != nil {
		f.log.Warn(ctx, "could not persist schedule", logger.Error(err))
	}
	f.metrics.SetScheduleEntries(f.table.Len())
	if f.tracker != nil {
		f.tracker.SetSchedule(f.table.Entries())
	}
}

func (f *Feeder) evaluate(ctx context.Context, uptime time.Duration) {
	now := f.clock.Now(uptime)
	m := logic.MomentOf(now, f.loc)

	if !f.ctrl.Active() {
		f.fireDue(ctx, uptime, m)
	}

	f.sampleSensors(ctx, uptime)

	if !f.ctrl.Active() && uptime >= f.nextSample {
		f.nextSample = uptime + f.cfg.StatusInterval
		f.emit(ctx, f.observe(f.idleWeight(ctx), now))
	}

	if s, ok := f.ctrl.Session(); ok {
		if f.ctrl.RefreshDue(uptime) {
			f.show(DispensingLines(s))
		}
		return
	}
	f.show(IdleLines(m, f.table))
}

// fireDue starts a session for the first due entry. Every entry due this minute
// is marked fired and persisted before the gate opens, so one time of day feeds
// at most once per day and a crash mid-session cannot repeat it.
func (f *Feeder) fireDue(ctx context.Context, uptime time.Duration, m logic.Moment) {
	due := f.table.TakeDue(m)
	if len(due) == 0 {
		return
	}
	d := due[0]
	if len(due) > 1 {
		f.log.Warn(ctx, "duplicate feeding times, feeding once",
			logger.Int("hour", d.Entry.Hour),
			logger.Int("minute", d.Entry.Minute),
			logger.Int("skipped", len(due)-1))
	}
	if err := f.saveSchedule(ctx); err != nil {
		f.log.Warn(ctx, "could not persist fired mark", logger.Error(err))
	}
	if f.tracker != nil {
		f.tracker.SetSchedule(f.table.Entries())
	}

	if err := f.ctrl.Start(uptime, d.Entry.Grams); err != nil {
		f.log.Error(ctx, "feeding not started",
			logger.Int("hour", d.Entry.Hour),
			logger.Int("minute", d.Entry.Minute),
			logger.Int("grams", d.Entry.Grams),
			logger.Error(err))
		return
	}
	f.log.Info(ctx, "feeding started",
		logger.Int("hour", d.Entry.Hour),
		logger.Int("minute", d.Entry.Minute),
		logger.Int("grams", d.Entry.Grams))
	if s, ok := f.ctrl.Session(); ok {
		f.show(DispensingLines(s))
	}
}

func (f *Feeder) sampleSensors(ctx context.Context, uptime time.Duration) {
	stock, water, err := f.sensors.Read()
	if err != nil {
		if !f.sensorFault {
			f.log.Warn(ctx, "supply sensors unreadable", logger.Error(err))
		}
		f.sensorFault = true
		return
	}
	if f.sensorFault {
		f.log.Info(ctx, "supply sensors readable again")
		f.sensorFault = false
	}

	wasBaselined := f.sensed.Baselined()
	changes := f.sensed.Process(logic.SensorInput{Stock: stock, Water: water, At: uptime})
	for _, c := range changes {
		f.log.Info(ctx, "supply level changed",
			logger.String("sensor", string(c.Sensor)),
			logger.String("from", string(c.From)),
			logger.String("to", string(c.To)))
	}
	if f.tracker != nil && (len(changes) > 0 || wasBaselined != f.sensed.Baselined()) {
		f.tracker.SetSupplies(f.sensed.Levels())
	}
}

// idleWeight reads the bowl outside a session, falling back to the last known
// weight when the scale fails.
func (f *Feeder) idleWeight(ctx context.Context) int {
	w, err := f.scale.Read()
	if err != nil {
		f.log.Warn(ctx, "scale read failed", logger.Error(err))
		return f.lastWeight
	}
	f.lastWeight = w
	return w
}

func (f *Feeder) observe(weight int, at logic.Reading) logic.StatusEvent {
	stock, water := f.sensed.Present()
	return logic.StatusEvent{
		StockPresent: stock,
		WaterPresent: water,
		WeightGrams:  weight,
		ObservedAt:   at,
	}
}

func (f *Feeder) advance(ctx context.Context, uptime time.Duration) {
	c, done, err := f.ctrl.Advance(uptime)
	if err != nil {
		f.log.Warn(ctx, "dispense step failed", logger.Error(err))
	}
	if !done {
		return
	}

	f.log.Info(ctx, "feeding finished",
		logger.Int("target", c.TargetGrams),
		logger.Int("grams", c.FinalWeight),
		logger.String("elapsed", c.Elapsed.String()))
	f.lastWeight = c.FinalWeight
	f.metrics.RecordFeed(c.FinalWeight)
	if f.tracker != nil {
		f.tracker.RecordFeed(c)
	}
	f.emit(ctx, f.observe(c.FinalWeight, f.clock.Now(uptime)))
}

// emit publishes ev when the broker is reachable and buffers it otherwise.
func (f *Feeder) emit(ctx context.Context, ev logic.StatusEvent) {
	if f.tracker != nil {
		f.tracker.RecordEvent(ev)
	}
	if f.connected {
		err := f.transport.PublishStatus(ev)
		if err == nil {
			f.metrics.RecordPublished(1)
			return
		}
		f.log.Warn(ctx, "publish failed, buffering", logger.Error(err))
	}

	err := f.buf.Append(ctx, ev)
	switch {
	case errors.Is(err, outbox.ErrBufferFull):
		f.metrics.RecordDropped()
		f.log.Warn(ctx, "offline buffer full, event dropped", logger.Int("capacity", f.buf.Capacity()))
	case err != nil:
		f.metrics.RecordDropped()
		f.log.Error(ctx, "could not buffer event", logger.Error(err))
	default:
		f.metrics.RecordBuffered()
		f.log.Debug(ctx, "event buffered", logger.Int("depth", f.buf.Len()))
	}
	f.bufferChanged()
}

// drain replays buffered events. It never runs during a session so the gate
// close is not delayed by broker round trips.
func (f *Feeder) drain(ctx context.Context, uptime time.Duration) {
	if f.ctrl.Active() {
		return
	}
	res, err := f.syncer.Drain(ctx, uptime, f.transport)
	if res.Attempted == 0 && err == nil {
		return
	}
	f.metrics.RecordPublished(res.Published)
	if err != nil {
		f.metrics.RecordSyncPass(metrics.PassFailed)
		f.log.Warn(ctx, "buffer drain incomplete",
			logger.Int("published", res.Published),
			logger.Int("buffered", f.buf.Len()),
			logger.Error(err))
		return
	}
	f.metrics.RecordSyncPass(metrics.PassCleared)
	f.log.Info(ctx, "buffer drained", logger.Int("published", res.Published))
	f.bufferChanged()
}

func (f *Feeder) bufferChanged() {
	f.metrics.SetBufferDepth(f.buf.Len())
	if f.tracker != nil {
		f.tracker.SetBuffer(f.buf.Len(), f.buf.Capacity())
	}
}

// show updates the display only when the text changes.
func (f *Feeder) show(line1, line2 string) {
	lines := [2]string{line1, line2}
	if lines == f.lines {
		return
	}
	f.lines = lines
	if f.display != nil {
		f.display.Show(line1, line2)
	}
}

func (f *Feeder) publishState(uptime time.Duration) {
	if f.tracker == nil {
		return
	}
	f.tracker.SetClock(f.clock.Now(uptime), f.synced)
	d := status.Dispense{State: f.ctrl.State()}
	if s, ok := f.ctrl.Session(); ok {
		d.Target = s.TargetGrams
		d.Weight = s.CurrentWeight
	}
	f.tracker.SetDispense(d)
}
