package convo

import (
	"fmt"
	"log"
	"sync"

	"github.com/umbra-chat/umbra/pkg/crypto"
	"github.com/umbra-chat/umbra/pkg/delivery"
	"github.com/umbra-chat/umbra/pkg/reliability"
	"github.com/umbra-chat/umbra/pkg/wire"
)

// Private is a two-party encrypted conversation. Outbound content goes
// through frame → reliability wrapper → session cipher → envelope →
// tagged payload; inbound mirrors that. Send and Receive on the same
// conversation serialize; different conversations are independent.
type Private struct {
	mu      sync.Mutex
	id      string
	ds      delivery.Service
	cipher  crypto.Cipher
	tracker *reliability.Tracker
}

// NewPrivate creates a private conversation with the given session
// cipher. The id must come from PrivateTopic so both peers agree on it.
func NewPrivate(id string, ds delivery.Service, cipher crypto.Cipher) (*Private, error) {
	tracker, err := reliability.NewTracker(id, 0)
	if err != nil {
		return nil, err
	}
	return &Private{id: id, ds: ds, cipher: cipher, tracker: tracker}, nil
}

func (p *Private) ID() string {
	return p.id
}

// Send wraps application content and dispatches it. The returned bytes
// are exactly what was handed to the delivery service.
func (p *Private) Send(tag uint32, payload []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame := &wire.Frame{
		Type: &wire.ContentFrame{
			Domain: 0,
			Tag:    tag,
			Bytes:  payload,
		},
	}

	rb := p.tracker.Wrap(frame.Encode())

	enc, err := p.cipher.Encrypt(rb.Encode())
	if err != nil {
		return nil, fmt.Errorf("conversation %s: %w", p.id, err)
	}

	env := &wire.Envelope{
		Encrypted:        enc,
		ConversationHint: p.id,
		Salt:             crypto.GenerateSalt(),
	}

	bytes := (&wire.TaggedPayload{
		Protocol: wire.ProtocolUmbraV1,
		Tag:      wire.PayloadTagEnvelope,
		Payload:  env.Encode(),
	}).Encode()

	if err := p.ds.Send(bytes); err != nil {
		return nil, fmt.Errorf("conversation %s: %w: %v", p.id, delivery.ErrPublish, err)
	}

	return bytes, nil
}

// Receive decrypts and unwraps an inbound envelope payload. Duplicates
// are suppressed here and yield (nil, nil).
func (p *Private) Receive(enc *wire.EncryptedBytes) (*wire.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	plaintext, err := p.cipher.Decrypt(enc)
	if err != nil {
		return nil, fmt.Errorf("conversation %s: %w", p.id, err)
	}

	rb := &wire.ReliableBytes{}
	if err := rb.Decode(plaintext); err != nil {
		return nil, fmt.Errorf("conversation %s: %w", p.id, err)
	}

	content, dup := p.tracker.Unwrap(rb)
	if dup {
		log.Printf("Duplicate message %s on %s - discarding", rb.MessageID, p.id)
		return nil, nil
	}

	frame := &wire.Frame{}
	if err := frame.Decode(content); err != nil {
		return nil, fmt.Errorf("conversation %s: %w", p.id, err)
	}
	if frame.Type == nil {
		return nil, fmt.Errorf("conversation %s: frame without type: %w", p.id, wire.ErrDecode)
	}

	// Surface the wrapper metadata inline so callers see the message id
	// and timestamp without re-deriving them.
	frame.Reliability = &wire.ReliabilityInfo{
		MessageID:        rb.MessageID,
		ChannelID:        rb.ChannelID,
		LamportTimestamp: rb.LamportTimestamp,
	}

	return frame, nil
}

// LamportTime returns the conversation clock's current timestamp.
func (p *Private) LamportTime() uint64 {
	return p.tracker.Clock().Now()
}
