// Package reliability wraps encoded frames with delivery-reliability
// metadata: content-hash message ids, a per-channel lamport clock, and
// duplicate suppression with a compact recently-seen summary.
package reliability

import "sync"

// Clock is a per-channel lamport clock. Tick advances it for a local
// send; Observe merges a remote timestamp so later local sends sort
// after everything this node has seen.
type Clock struct {
	mu  sync.Mutex
	now uint64
}

// Tick advances the clock and returns the new timestamp.
func (c *Clock) Tick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now++
	return c.now
}

// Observe merges a remote timestamp into the clock.
func (c *Clock) Observe(ts uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts > c.now {
		c.now = ts
	}
}

// Now returns the current timestamp without advancing.
func (c *Clock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
