package convo

import (
	"fmt"
	"log"

	"github.com/umbra-chat/umbra/pkg/crypto"
	"github.com/umbra-chat/umbra/pkg/wire"
)

// Inbox is the self-addressed conversation a client listens on for
// invites. Invites arrive plaintext: the session context they
// establish is what later encryption depends on, so there is no key to
// use yet.
type Inbox struct {
	id     string
	cipher crypto.PlaintextCipher
}

// NewInbox creates the inbox conversation for an address.
func NewInbox(addr string) *Inbox {
	return &Inbox{id: InboxTopic(addr)}
}

func (i *Inbox) ID() string {
	return i.id
}

// Send panics: a client never sends to its own inbox. Reaching this is
// caller misuse, not a runtime condition.
func (i *Inbox) Send(tag uint32, payload []byte) ([]byte, error) {
	panic("convo: send on inbox conversation; clients never invite themselves")
}

// Receive accepts only invite frames. Content on an inbox is a
// protocol violation: logged and dropped, never propagated.
func (i *Inbox) Receive(enc *wire.EncryptedBytes) (*wire.Frame, error) {
	plaintext, err := i.cipher.Decrypt(enc)
	if err != nil {
		return nil, fmt.Errorf("conversation %s: %w", i.id, err)
	}

	frame := &wire.Frame{}
	if err := frame.Decode(plaintext); err != nil {
		return nil, fmt.Errorf("conversation %s: %w", i.id, err)
	}

	switch frame.Type.(type) {
	case *wire.ConversationInvite:
		return frame, nil
	case *wire.ContentFrame:
		log.Printf("Content received on inbox %s - dropping", i.id)
		return nil, nil
	default:
		return nil, fmt.Errorf("conversation %s: frame without type: %w", i.id, wire.ErrDecode)
	}
}
