package delivery

import (
	"sync"
	"time"
)

const (
	busQueueDepth   = 256
	busPollInterval = 50 * time.Millisecond
)

// Bus is an in-process broadcast transport. Every endpoint's Send
// fans out to all other endpoints; each endpoint reads its own queue.
// Routing by conversation hint happens above this layer, so endpoints
// receive everything and discard what is not theirs.
type Bus struct {
	mu        sync.RWMutex
	endpoints []*Endpoint
}

func NewBus() *Bus {
	return &Bus{}
}

// Join attaches a new endpoint to the bus.
func (b *Bus) Join() *Endpoint {
	ep := &Endpoint{
		bus:   b,
		inbox: make(chan []byte, busQueueDepth),
	}

	b.mu.Lock()
	b.endpoints = append(b.endpoints, ep)
	b.mu.Unlock()

	return ep
}

func (b *Bus) broadcast(from *Endpoint, message []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ep := range b.endpoints {
		if ep == from {
			continue
		}
		select {
		case ep.inbox <- message:
		default:
			// Queue full: the message is lost for this endpoint.
			// The contract makes no delivery guarantee, so this is
			// loss, not an error.
		}
	}
	return nil
}

// Endpoint is one participant's view of the bus.
type Endpoint struct {
	bus    *Bus
	inbox  chan []byte
	mu     sync.Mutex
	closed bool
}

// Send broadcasts a message to every other endpoint.
func (e *Endpoint) Send(message []byte) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}

	// Copy so the caller may reuse its buffer.
	msg := append([]byte(nil), message...)
	return e.bus.broadcast(e, msg)
}

// Recv returns the next queued message, or (nil, nil) after a short
// wait when none arrived.
func (e *Endpoint) Recv() ([]byte, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	select {
	case msg := <-e.inbox:
		return msg, nil
	case <-time.After(busPollInterval):
		return nil, nil
	}
}

// Close detaches the endpoint. Subsequent Send/Recv return ErrClosed.
func (e *Endpoint) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}
