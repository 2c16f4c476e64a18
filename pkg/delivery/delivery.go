// Package delivery defines the transport contract the conversation
// engine sits on, plus two implementations: an in-process bus and a
// libp2p stream adapter. The engine assumes nothing from a transport
// beyond this contract: no ordering, no retry, no exactly-once.
package delivery

import "errors"

var (
	ErrPublish = errors.New("delivery: publish failed")
	ErrPoll    = errors.New("delivery: poll failed")
	ErrClosed  = errors.New("delivery: transport closed")
)

// Service is the send/receive contract. Send dispatches one opaque
// message. Recv returns the next inbound message; it may block briefly
// and returns (nil, nil) when nothing is available right now, so a
// caller loop can poll its stop signal between calls.
type Service interface {
	Send(message []byte) error
	Recv() ([]byte, error)
}
