package dedup

import (
	"sync"
	"time"

	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
)

// Deduper remembers recently seen ids for ttl.
type Deduper struct {
	mu    sync.Mutex
	ttl   time.Duration
	max   int
	clock clock.Clock
	seen  map[string]time.Time
}

func New(ttl time.Duration, max int, c clock.Clock) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	if c == nil {
		c = clock.Real()
	}
	return &Deduper{ttl: ttl, max: max, clock: c, seen: make(map[string]time.Time, max)}
}

// ShouldProcess reports whether id has not been seen within ttl and records it.
// The empty id is always processed.
func (d *Deduper) ShouldProcess(id string) bool {
	if id == "" {
		return true
	}
	now := d.clock.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if exp, ok := d.seen[id]; ok && now.Before(exp) {
		return false
	}
	d.seen[id] = now.Add(d.ttl)
	if len(d.seen) > d.max {
		for k, v := range d.seen {
			if now.After(v) {
				delete(d.seen, k)
			}
			if len(d.seen) <= d.max {
				break
			}
		}
	}
	return true
}

// Len returns the number of remembered ids.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
