package convo

import (
	"github.com/umbra-chat/umbra/pkg/wire"
)

// Conversation is the shared capability set of all conversation
// variants. Send builds, wraps, encrypts and dispatches application
// content, returning the wire bytes it handed to the transport.
// Receive reverses the inbound layers and returns the decoded frame,
// or nil when the message was fully consumed (duplicate, dropped, or
// handled internally).
type Conversation interface {
	ID() string
	Send(tag uint32, payload []byte) ([]byte, error)
	Receive(enc *wire.EncryptedBytes) (*wire.Frame, error)
}
