package reliability

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/umbra-chat/umbra/pkg/crypto"
	"github.com/umbra-chat/umbra/pkg/wire"
)

// DefaultSeenCacheSize bounds the per-channel receive dedup window.
const DefaultSeenCacheSize = 1024

// Tracker owns the reliability bookkeeping for one channel: it wraps
// outbound frame bytes in ReliableBytes and unwraps inbound ones,
// suppressing duplicates by message id.
type Tracker struct {
	channelID string
	clock     Clock

	mu   sync.Mutex
	seen *lru.Cache // received message ids, dedup window
}

// NewTracker creates a tracker for a channel.
func NewTracker(channelID string, cacheSize int) (*Tracker, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultSeenCacheSize
	}
	seen, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("reliability: seen cache: %w", err)
	}
	return &Tracker{channelID: channelID, seen: seen}, nil
}

// ChannelID returns the channel this tracker serves.
func (t *Tracker) ChannelID() string {
	return t.channelID
}

// Wrap builds the reliability wrapper for an outbound encoded frame.
// The message id is the content hash of the frame bytes, so both ends
// derive the same id without coordination. Causal history is carried
// but left empty: gap detection is not part of this engine.
func (t *Tracker) Wrap(frameBytes []byte) *wire.ReliableBytes {
	t.mu.Lock()
	summary := summarize(t.seenIDsLocked())
	t.mu.Unlock()

	return &wire.ReliableBytes{
		MessageID:        crypto.HashString(frameBytes),
		ChannelID:        t.channelID,
		LamportTimestamp: t.clock.Tick(),
		CausalHistory:    nil,
		DedupSummary:     summary,
		Content:          frameBytes,
	}
}

// Unwrap processes an inbound reliability wrapper. It merges the remote
// lamport timestamp and reports dup=true when the message id was
// already delivered on this channel.
func (t *Tracker) Unwrap(rb *wire.ReliableBytes) (content []byte, dup bool) {
	t.clock.Observe(rb.LamportTimestamp)

	if rb.MessageID != "" {
		t.mu.Lock()
		if t.seen.Contains(rb.MessageID) {
			t.mu.Unlock()
			return nil, true
		}
		t.seen.Add(rb.MessageID, struct{}{})
		t.mu.Unlock()
	}

	return rb.Content, false
}

// Clock exposes the channel clock, mainly for tests and diagnostics.
func (t *Tracker) Clock() *Clock {
	return &t.clock
}

func (t *Tracker) seenIDsLocked() []string {
	keys := t.seen.Keys()
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if id, ok := k.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
