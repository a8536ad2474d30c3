package web

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/sweeney/pet-feeder/internal/status"
)

// DefaultJSONTTL bounds how stale /index.json may be.
const DefaultJSONTTL = time.Second

const jsonKey = "index.json"

// jsonCache holds the last rendered /index.json body so a burst of pollers
// takes the tracker lock once per TTL.
type jsonCache struct {
	store   *cache.Cache
	tracker *status.Tracker
}

func newJSONCache(tracker *status.Tracker, ttl time.Duration) *jsonCache {
	if ttl <= 0 {
		ttl = DefaultJSONTTL
	}
	return &jsonCache{store: cache.New(ttl, time.Minute), tracker: tracker}
}

func (c *jsonCache) body() []byte {
	if v, found := c.store.Get(jsonKey); found {
		return v.([]byte)
	}
	data := status.FormatJSON(c.tracker.Snapshot())
	c.store.SetDefault(jsonKey, data)
	return data
}
