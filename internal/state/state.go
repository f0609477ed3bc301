// Package state tracks the set of containers this daemon currently knows
// about and derives the desired record intents from them.
package state

import (
	"sync"
	"time"

	"github.com/kprice-io/dnssync/internal/intent"
)

// Status is a tracked container's lifecycle state.
type Status string

const (
	// StatusRunning marks a container whose intents are part of the
	// desired set.
	StatusRunning Status = "running"
	// StatusRemoved marks a container that has stopped; its intents are
	// no longer desired, but the entry lingers until RemoveStale sweeps
	// it out, bounding how long a flapping container can thrash the
	// registry.
	StatusRemoved Status = "removed"
)

// containerEntry is the tracked state for a single container.
type containerEntry struct {
	name        string
	created     time.Time
	intents     []intent.Intent
	status      Status
	lastUpdated time.Time
}

// Tracker holds the last-known intents for every container this daemon has
// observed, keyed by container ID. It is safe for concurrent use; every
// method takes the tracker's own lock. In the daemon the sync loop's sync
// thread is the only goroutine that calls it.
type Tracker struct {
	mu         sync.RWMutex
	containers map[string]*containerEntry
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{containers: make(map[string]*containerEntry)}
}

// Upsert records the current intents for a container, replacing whatever
// was previously tracked for it. now stamps last_updated, used by
// RemoveStale.
func (t *Tracker) Upsert(id, name string, created time.Time, intents []intent.Intent, status Status, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.containers[id] = &containerEntry{
		name:        name,
		created:     created,
		intents:     intents,
		status:      status,
		lastUpdated: now,
	}
}

// MarkRemoved flags a container as no longer running and refreshes its
// last_updated timestamp, starting the staleness clock.
func (t *Tracker) MarkRemoved(id string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.containers[id]
	if !ok {
		return
	}
	entry.status = StatusRemoved
	entry.lastUpdated = now
}

// DesiredIntents returns the flattened intents of every entry whose
// status is running.
func (t *Tracker) DesiredIntents() []intent.Intent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []intent.Intent
	for _, entry := range t.containers {
		if entry.status == StatusRunning {
			out = append(out, entry.intents...)
		}
	}
	return out
}

// RemoveStale drops entries whose last_updated is older than ttl as
// measured against now, regardless of status. It returns the number of
// entries evicted.
func (t *Tracker) RemoveStale(now time.Time, ttl time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	evicted := 0
	for id, entry := range t.containers {
		if now.Sub(entry.lastUpdated) > ttl {
			delete(t.containers, id)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of containers currently tracked, running or
// pending removal.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.containers)
}
