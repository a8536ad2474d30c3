// Package timesync fetches absolute time from the network without blocking the
// tick loop.
package timesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/beevik/ntp"

	"github.com/sweeney/pet-feeder/internal/logger"
)

// ErrNoResponse is returned when the time server gives no usable answer.
var ErrNoResponse = errors.New("timesync: no response")

// Default timing.
const (
	DefaultServer        = "pool.ntp.org"
	DefaultSyncInterval  = time.Hour
	DefaultRetryInterval = time.Minute
	DefaultQueryTimeout  = 5 * time.Second
)

// Source fetches absolute Unix seconds. Implementations may block; the Poller
// never calls them from the tick loop.
type Source interface {
	Fetch(ctx context.Context) (int64, error)
}

// NTPSource queries an NTP server.
type NTPSource struct {
	Server  string
	Timeout time.Duration
}

// Fetch returns the server's current time in Unix seconds.
func (s NTPSource) Fetch(ctx context.Context) (int64, error) {
	server := s.Server
	if server == "" {
		server = DefaultServer
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}

	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrNoResponse, server, err)
	}
	if err := resp.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrNoResponse, server, err)
	}
	return time.Now().Add(resp.ClockOffset).Unix(), nil
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (int64, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context) (int64, error) { return f(ctx) }

type result struct {
	seconds int64
	err     error
}

// Poller runs Source fetches in the background on a fixed cadence: the sync
// interval after a success, the retry interval after a failure. The tick loop
// calls Poll, which never blocks.
type Poller struct {
	src   Source
	sync  time.Duration
	retry time.Duration
	log   logger.Logger

	mu       sync.Mutex
	inflight bool
	done     chan result
	next     time.Duration // uptime of the next fetch
	failures int
}

// NewPoller creates a Poller. The first fetch starts on the first Poll.
func NewPoller(src Source, syncInterval, retryInterval time.Duration, log logger.Logger) *Poller {
	if syncInterval <= 0 {
		syncInterval = DefaultSyncInterval
	}
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	return &Poller{
		src:   src,
		sync:  syncInterval,
		retry: retryInterval,
		log:   logger.OrNop(log),
		done:  make(chan result, 1),
	}
}

// Poll collects a finished fetch or starts a new one when one is due.
// ok is true only when a fresh value arrived on this call. The value is at most
// one tick old, so callers sync the clock against the current uptime.
func (p *Poller) Poll(ctx context.Context, uptime time.Duration) (seconds int64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inflight {
		select {
		case r := <-p.done:
			p.inflight = false
			if r.err != nil {
				p.failures++
				p.next = uptime + p.retry
				p.log.Warn(ctx, "time sync failed",
					logger.Int("failures", p.failures),
					logger.String("retry_in", p.retry.String()),
					logger.Error(r.err))
				return 0, false
			}
			p.failures = 0
			p.next = uptime + p.sync
			return r.seconds, true
		default:
			return 0, false
		}
	}

	if uptime < p.next {
		return 0, false
	}
	p.inflight = true
	go func() {
		s, err := p.src.Fetch(ctx)
		p.done <- result{seconds: s, err: err}
	}()
	return 0, false
}

// Failures returns the number of consecutive failed fetches.
func (p *Poller) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

// InFlight reports whether a fetch is running.
func (p *Poller) InFlight() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inflight
}
