// Package client ties the engine together: it owns the conversation
// registry, runs the background receive loop over a delivery service,
// and hands delivered content to application handlers.
package client

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/umbra-chat/umbra/pkg/convo"
	"github.com/umbra-chat/umbra/pkg/crypto"
	"github.com/umbra-chat/umbra/pkg/delivery"
	"github.com/umbra-chat/umbra/pkg/store"
	"github.com/umbra-chat/umbra/pkg/wire"
)

// ContentHandler is called for every piece of content delivered on any
// conversation. Handlers run on the receive goroutine.
type ContentHandler func(conversationID string, frame *wire.ContentFrame)

// CipherFactory picks the cipher for a new private conversation.
type CipherFactory func(conversationID string) crypto.Cipher

// Client is one participant in the protocol. It listens on its own
// inbox conversation for invites and routes inbound envelopes to the
// private conversations it knows about.
type Client struct {
	addr     string
	ds       delivery.Service
	registry *convo.Registry

	cipherFactory CipherFactory

	handlerMu sync.RWMutex
	handlers  []ContentHandler

	// Optional local message persistence
	messageStore *store.MessageStore

	started   atomic.Bool
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewClient creates a client. An empty addr gets a fresh ephemeral
// identity. The default cipher factory uses the placeholder reversed
// cipher so two fresh clients can talk without key agreement.
func NewClient(addr string, ds delivery.Service) *Client {
	if addr == "" {
		addr = uuid.NewString()
	}
	return &Client{
		addr:     addr,
		ds:       ds,
		registry: convo.NewRegistry(),
		cipherFactory: func(string) crypto.Cipher {
			return crypto.ReversedCipher{}
		},
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Address returns the client's identity address.
func (c *Client) Address() string {
	return c.addr
}

// SetCipherFactory replaces the cipher factory. Call before Start.
func (c *Client) SetCipherFactory(f CipherFactory) {
	c.cipherFactory = f
}

// AttachStore attaches a message store for persistence. Call before
// Start; delivered and sent content is then saved automatically.
func (c *Client) AttachStore(ms *store.MessageStore) {
	c.messageStore = ms
}

// AddContentHandler registers a handler for delivered content.
func (c *Client) AddContentHandler(h ContentHandler) {
	c.handlerMu.Lock()
	c.handlers = append(c.handlers, h)
	c.handlerMu.Unlock()
}

// Start registers the client's inbox conversation and launches the
// background receive loop.
func (c *Client) Start() {
	c.registry.Insert(convo.NewInbox(c.addr))
	c.started.Store(true)
	go c.receiveLoop()
}

// Close asks the receive loop to stop and waits for it to exit. It is
// safe to call more than once, and before (or without) Start.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
	})
	if c.started.Load() {
		<-c.done
	}
}

// CreateConversation establishes (or returns) the private conversation
// with remote and sends an invite to the remote's inbox. When the
// conversation already exists no invite is re-sent.
func (c *Client) CreateConversation(remote string) (convo.Conversation, error) {
	id := convo.PrivateTopic(c.addr, remote)

	if existing, ok := c.registry.Get(id); ok {
		return existing, nil
	}

	private, err := convo.NewPrivate(id, c.ds, c.cipherFactory(id))
	if err != nil {
		return nil, err
	}

	conv, inserted := c.registry.Insert(private)
	if !inserted {
		// Lost the race against an inbound invite; the invite side
		// already announced the conversation.
		return conv, nil
	}

	invite := &wire.Frame{
		Type: &wire.ConversationInvite{Participants: []string{c.addr, remote}},
	}
	if err := c.sendPlainFrame(convo.InboxTopic(remote), invite); err != nil {
		// Roll the registration back so a retry re-sends the invite;
		// otherwise the remote could never learn the conversation.
		c.registry.Remove(id)
		return nil, err
	}

	return conv, nil
}

// Conversation looks up a conversation by id.
func (c *Client) Conversation(id string) (convo.Conversation, bool) {
	return c.registry.Get(id)
}

// ConversationIDs lists the ids of all registered conversations.
func (c *Client) ConversationIDs() []string {
	return c.registry.IDs()
}

// SendContent sends content on an existing conversation and persists
// it when a store is attached.
func (c *Client) SendContent(conversationID string, tag uint32, payload []byte) error {
	conv, ok := c.registry.Get(conversationID)
	if !ok {
		return fmt.Errorf("%w: no conversation %s", ErrUnexpected, conversationID)
	}

	if _, err := conv.Send(tag, payload); err != nil {
		return err
	}

	frame := &wire.ContentFrame{Tag: tag, Bytes: payload}
	c.saveContent(conversationID, frame, &wire.ReliabilityInfo{
		MessageID:        crypto.HashString((&wire.Frame{Type: frame}).Encode()),
		ChannelID:        conversationID,
		LamportTimestamp: lamportOf(conv),
	}, true)
	return nil
}

// lamportOf reads the channel clock of conversations that carry one.
func lamportOf(conv convo.Conversation) uint64 {
	if lc, ok := conv.(interface{ LamportTime() uint64 }); ok {
		return lc.LamportTime()
	}
	return 0
}

// sendPlainFrame wraps a frame in a plaintext envelope addressed to the
// given conversation hint and dispatches it.
func (c *Client) sendPlainFrame(hint string, frame *wire.Frame) error {
	enc, err := crypto.PlaintextCipher{}.Encrypt(frame.Encode())
	if err != nil {
		return err
	}

	env := &wire.Envelope{
		Encrypted:        enc,
		ConversationHint: hint,
		Salt:             crypto.GenerateSalt(),
	}
	bytes := (&wire.TaggedPayload{
		Protocol: wire.ProtocolUmbraV1,
		Tag:      wire.PayloadTagEnvelope,
		Payload:  env.Encode(),
	}).Encode()

	if err := c.ds.Send(bytes); err != nil {
		return fmt.Errorf("%w: %v", delivery.ErrPublish, err)
	}
	return nil
}

// receiveLoop polls the delivery service until Close. Inbound decode
// failures are contained here: they are logged and the loop moves on.
func (c *Client) receiveLoop() {
	defer close(c.done)

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		raw, err := c.ds.Recv()
		if err != nil {
			log.Printf("⚠️  Poll failed: %v", fmt.Errorf("%w: %v", delivery.ErrPoll, err))
			continue
		}
		if raw == nil {
			continue
		}

		if err := c.handleInbound(raw); err != nil {
			log.Printf("Dropping inbound message: %v", err)
		}
	}
}

func (c *Client) handleInbound(raw []byte) error {
	tp := &wire.TaggedPayload{}
	if err := tp.Decode(raw); err != nil {
		return err
	}
	if tp.Protocol != wire.ProtocolUmbraV1 {
		// Another protocol sharing the transport; not ours.
		return nil
	}

	switch tp.Tag {
	case wire.PayloadTagEnvelope:
		return c.handleEnvelope(tp.Payload)
	case wire.PayloadTagPublicFrame:
		return fmt.Errorf("%w: public frames", ErrUnimplemented)
	default:
		return nil
	}
}

func (c *Client) handleEnvelope(payload []byte) error {
	env := &wire.Envelope{}
	if err := env.Decode(payload); err != nil {
		return err
	}

	conv, ok := c.registry.Get(env.ConversationHint)
	if !ok {
		// Envelope for a conversation this client is not part of.
		// The bus broadcasts everything; silently skip.
		return nil
	}

	frame, err := conv.Receive(env.Encrypted)
	if err != nil {
		return err
	}
	if frame == nil {
		// Duplicate or dropped inside the conversation.
		return nil
	}

	switch ft := frame.Type.(type) {
	case *wire.ConversationInvite:
		return c.handleInvite(ft)
	case *wire.ContentFrame:
		c.saveContent(conv.ID(), ft, frame.Reliability, false)
		c.dispatchContent(conv.ID(), ft)
		return nil
	default:
		return fmt.Errorf("frame without type: %w", wire.ErrDecode)
	}
}

// handleInvite registers the announced private conversation. Repeated
// invites for the same participants are a no-op.
func (c *Client) handleInvite(invite *wire.ConversationInvite) error {
	if len(invite.Participants) == 0 {
		return fmt.Errorf("invite without participants: %w", wire.ErrDecode)
	}

	id := convo.PrivateTopic(invite.Participants...)

	if _, ok := c.registry.Get(id); ok {
		return nil
	}

	private, err := convo.NewPrivate(id, c.ds, c.cipherFactory(id))
	if err != nil {
		return err
	}
	if _, inserted := c.registry.Insert(private); inserted {
		log.Printf("✅ Joined conversation %s", id)
	}
	return nil
}

func (c *Client) dispatchContent(conversationID string, frame *wire.ContentFrame) {
	c.handlerMu.RLock()
	handlers := append([]ContentHandler(nil), c.handlers...)
	c.handlerMu.RUnlock()

	for _, h := range handlers {
		h(conversationID, frame)
	}
}

func (c *Client) saveContent(conversationID string, frame *wire.ContentFrame, rel *wire.ReliabilityInfo, outgoing bool) {
	if c.messageStore == nil {
		return
	}

	var messageID string
	var lamport uint64
	if rel != nil {
		messageID = rel.MessageID
		lamport = rel.LamportTimestamp
	}
	if messageID == "" {
		messageID = crypto.HashString((&wire.Frame{Type: frame}).Encode())
	}

	err := c.messageStore.SaveMessage(&store.StoredMessage{
		ConversationID:   conversationID,
		MessageID:        messageID,
		Tag:              frame.Tag,
		Content:          frame.Bytes,
		LamportTimestamp: lamport,
		Timestamp:        time.Now().Unix(),
		IsOutgoing:       outgoing,
	})
	if err != nil {
		log.Printf("⚠️  Failed to persist message: %v", err)
	}
}
