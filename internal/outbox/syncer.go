package outbox

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/sweeney/pet-feeder/internal/logic"
)

// DefaultRetryInterval spaces drain passes after a failure.
const DefaultRetryInterval = 30 * time.Second

// Publisher delivers one status event.
type Publisher interface {
	IsConnected() bool
	PublishStatus(ev logic.StatusEvent) error
}

// PassResult summarises one drain pass.
type PassResult struct {
	Attempted int
	Published int
	Cleared   bool
}

// Syncer drains the buffer through a Publisher with all-or-nothing-per-pass
// semantics: the buffer is cleared only when every event in the pass was
// published. A failed pass keeps everything, so events delivered before the
// failure are sent again next pass (at-least-once).
type Syncer struct {
	buf   *Buffer
	gate  *rate.Limiter
	epoch time.Time
}

// NewSyncer creates a Syncer that waits retry after a failed pass.
func NewSyncer(buf *Buffer, retry time.Duration) *Syncer {
	if retry <= 0 {
		retry = DefaultRetryInterval
	}
	return &Syncer{
		buf:   buf,
		gate:  rate.NewLimiter(rate.Every(retry), 1),
		epoch: time.Unix(0, 0),
	}
}

// at maps uptime onto the limiter's timeline so passes follow the injected clock.
func (s *Syncer) at(uptime time.Duration) time.Time {
	return s.epoch.Add(uptime)
}

// Ready reports whether a pass would run at uptime: the transport is connected,
// there is something to send, and the retry gate has a token.
func (s *Syncer) Ready(uptime time.Duration, pub Publisher) bool {
	if s.buf.Len() == 0 || !pub.IsConnected() {
		return false
	}
	return s.gate.TokensAt(s.at(uptime)) >= 1
}

// backoff spends the gate's token so the next pass waits a full retry interval.
func (s *Syncer) backoff(uptime time.Duration) {
	s.gate.AllowN(s.at(uptime), 1)
}

// Drain runs one pass if Ready. It stops at the first publish failure. Only a
// failed pass holds the next one back; after a clean pass the gate stays open.
func (s *Syncer) Drain(ctx context.Context, uptime time.Duration, pub Publisher) (PassResult, error) {
	var res PassResult
	if !s.Ready(uptime, pub) {
		return res, nil
	}

	for _, ev := range s.buf.Events() {
		res.Attempted++
		if err := pub.PublishStatus(ev); err != nil {
			s.backoff(uptime)
			return res, fmt.Errorf("publish buffered event %d of %d: %w", res.Attempted, s.buf.Len(), err)
		}
		res.Published++
	}

	if err := s.buf.Clear(ctx); err != nil {
		s.backoff(uptime)
		return res, fmt.Errorf("clear after full pass: %w", err)
	}
	res.Cleared = true
	return res, nil
}
