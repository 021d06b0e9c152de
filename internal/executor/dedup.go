package executor

import (
	"sync"
	"time"
)

// Dedup suppresses repeated delivery of the same trade signal within a TTL
// window. Strategies may re-emit a signal on every evaluation tick; only the
// first occurrence should reach the engine. Safe for concurrent use.
type Dedup struct {
	mu   sync.Mutex
	seen map[string]time.Time // signal ID -> first seen
	ttl  time.Duration
}

// NewDedup creates a Dedup with the given suppression window.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// Seen reports whether id was already recorded inside the TTL window, and
// records it when not.
func (d *Dedup) Seen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if first, ok := d.seen[id]; ok && now.Sub(first) < d.ttl {
		return true
	}
	d.seen[id] = now
	return false
}

// Cleanup evicts expired entries. Called periodically by the executor loop
// to keep the map bounded.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for id, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, id)
		}
	}
}
