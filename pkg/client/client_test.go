package client

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/umbra-chat/umbra/pkg/convo"
	"github.com/umbra-chat/umbra/pkg/delivery"
	"github.com/umbra-chat/umbra/pkg/store"
	"github.com/umbra-chat/umbra/pkg/wire"
)

// collector records dispatched content for assertions.
type collector struct {
	mu     sync.Mutex
	convos []string
	frames []*wire.ContentFrame
}

func (c *collector) handle(conversationID string, frame *wire.ContentFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.convos = append(c.convos, conversationID)
	c.frames = append(c.frames, frame)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestEndToEndOverBus(t *testing.T) {
	bus := delivery.NewBus()

	alice := NewClient("alice", bus.Join())
	bob := NewClient("bob", bus.Join())

	received := &collector{}
	bob.AddContentHandler(received.handle)

	alice.Start()
	bob.Start()
	defer alice.Close()
	defer bob.Close()

	conv, err := alice.CreateConversation("bob")
	require.NoError(t, err)

	id := convo.PrivateTopic("alice", "bob")
	require.Equal(t, id, conv.ID())

	// Bob learns the conversation from the invite.
	waitFor(t, func() bool {
		_, ok := bob.Conversation(id)
		return ok
	})

	require.NoError(t, alice.SendContent(id, 5, []byte("hi")))

	waitFor(t, func() bool { return received.count() == 1 })

	received.mu.Lock()
	defer received.mu.Unlock()
	require.Equal(t, id, received.convos[0])
	require.Equal(t, uint32(5), received.frames[0].Tag)
	require.Equal(t, []byte("hi"), received.frames[0].Bytes)
}

func TestCreateConversationIdempotent(t *testing.T) {
	bus := delivery.NewBus()

	alice := NewClient("alice", bus.Join())
	bob := NewClient("bob", bus.Join())

	alice.Start()
	bob.Start()
	defer alice.Close()
	defer bob.Close()

	first, err := alice.CreateConversation("bob")
	require.NoError(t, err)
	second, err := alice.CreateConversation("bob")
	require.NoError(t, err)
	require.Same(t, first, second)

	// Bob also creates from his side; ids agree, nothing duplicates.
	_, err = bob.CreateConversation("alice")
	require.NoError(t, err)

	id := convo.PrivateTopic("alice", "bob")
	waitFor(t, func() bool {
		_, ok := bob.Conversation(id)
		return ok
	})

	// Inbox plus the one private conversation, on both sides.
	waitFor(t, func() bool { return len(alice.ConversationIDs()) == 2 })
	waitFor(t, func() bool { return len(bob.ConversationIDs()) == 2 })
}

func TestCorruptedPayloadDoesNotStopLoop(t *testing.T) {
	bus := delivery.NewBus()
	intruder := bus.Join()

	alice := NewClient("alice", bus.Join())
	bob := NewClient("bob", bus.Join())

	received := &collector{}
	bob.AddContentHandler(received.handle)

	alice.Start()
	bob.Start()
	defer alice.Close()
	defer bob.Close()

	// Garbage first; the loop must survive it.
	require.NoError(t, intruder.Send([]byte{0xFF, 0xFF, 0xFF, 0x01}))

	_, err := alice.CreateConversation("bob")
	require.NoError(t, err)

	id := convo.PrivateTopic("alice", "bob")
	waitFor(t, func() bool {
		_, ok := bob.Conversation(id)
		return ok
	})

	require.NoError(t, alice.SendContent(id, 1, []byte("still here")))
	waitFor(t, func() bool { return received.count() == 1 })
}

func TestForeignProtocolSkipped(t *testing.T) {
	bus := delivery.NewBus()
	intruder := bus.Join()

	bob := NewClient("bob", bus.Join())
	received := &collector{}
	bob.AddContentHandler(received.handle)
	bob.Start()
	defer bob.Close()

	foreign := (&wire.TaggedPayload{Protocol: 99, Tag: 1, Payload: []byte("not ours")}).Encode()
	require.NoError(t, intruder.Send(foreign))

	time.Sleep(200 * time.Millisecond)
	require.Equal(t, 0, received.count())
}

// flakyService fails sends until recovered, recording what got through.
type flakyService struct {
	mu   sync.Mutex
	fail bool
	sent [][]byte
}

func (s *flakyService) Send(message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("transport down")
	}
	s.sent = append(s.sent, append([]byte(nil), message...))
	return nil
}

func (s *flakyService) Recv() ([]byte, error) {
	time.Sleep(5 * time.Millisecond)
	return nil, nil
}

func (s *flakyService) recover() {
	s.mu.Lock()
	s.fail = false
	s.mu.Unlock()
}

func (s *flakyService) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestCreateConversationRetriesInviteAfterSendFailure(t *testing.T) {
	ds := &flakyService{fail: true}
	alice := NewClient("alice", ds)

	_, err := alice.CreateConversation("bob")
	require.Error(t, err)

	// The failed registration must not linger: a retry has to re-send
	// the invite, not return a conversation the remote never heard of.
	id := convo.PrivateTopic("alice", "bob")
	_, ok := alice.Conversation(id)
	require.False(t, ok)

	ds.recover()

	conv, err := alice.CreateConversation("bob")
	require.NoError(t, err)
	require.Equal(t, id, conv.ID())
	require.Equal(t, 1, ds.sentCount())
}

func TestDuplicateInviteEnvelopeRegistersOnce(t *testing.T) {
	bus := delivery.NewBus()
	tap := bus.Join()

	alice := NewClient("alice", bus.Join())
	bob := NewClient("bob", bus.Join())

	bob.Start()
	defer bob.Close()

	_, err := alice.CreateConversation("bob")
	require.NoError(t, err)

	// Capture the invite envelope off the bus.
	var invite []byte
	waitFor(t, func() bool {
		raw, err := tap.Recv()
		if err != nil || raw == nil {
			return false
		}
		invite = raw
		return true
	})

	id := convo.PrivateTopic("alice", "bob")
	waitFor(t, func() bool {
		_, ok := bob.Conversation(id)
		return ok
	})

	// Replay the identical envelope; bob must not grow a second
	// conversation or reset the one he has.
	existing, _ := bob.Conversation(id)
	require.NoError(t, tap.Send(invite))
	require.NoError(t, tap.Send(invite))

	time.Sleep(200 * time.Millisecond)
	require.Len(t, bob.ConversationIDs(), 2) // inbox + one private

	after, ok := bob.Conversation(id)
	require.True(t, ok)
	require.Same(t, existing, after)
}

func TestCloseIsSafeToMisuse(t *testing.T) {
	bus := delivery.NewBus()

	// Close before Start must return, not block on the loop.
	idle := NewClient("idle", bus.Join())
	closed := make(chan struct{})
	go func() {
		idle.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked without Start")
	}

	// Double Close must not panic.
	running := NewClient("running", bus.Join())
	running.Start()
	running.Close()
	require.NotPanics(t, running.Close)
}

func TestSendContentUnknownConversation(t *testing.T) {
	bus := delivery.NewBus()
	alice := NewClient("alice", bus.Join())

	err := alice.SendContent("/private/alice|nobody", 1, []byte("void"))
	require.ErrorIs(t, err, ErrUnexpected)
}

func TestEphemeralIdentity(t *testing.T) {
	bus := delivery.NewBus()
	a := NewClient("", bus.Join())
	b := NewClient("", bus.Join())
	require.NotEmpty(t, a.Address())
	require.NotEqual(t, a.Address(), b.Address())
}

func TestPersistenceAcrossDelivery(t *testing.T) {
	bus := delivery.NewBus()

	alice := NewClient("alice", bus.Join())
	bob := NewClient("bob", bus.Join())

	bobStore, err := store.NewMessageStore(t.TempDir()+"/bob.db", "hunter2")
	require.NoError(t, err)
	defer bobStore.Close()
	bob.AttachStore(bobStore)

	received := &collector{}
	bob.AddContentHandler(received.handle)

	alice.Start()
	bob.Start()
	defer alice.Close()
	defer bob.Close()

	_, err = alice.CreateConversation("bob")
	require.NoError(t, err)

	id := convo.PrivateTopic("alice", "bob")
	waitFor(t, func() bool {
		_, ok := bob.Conversation(id)
		return ok
	})

	require.NoError(t, alice.SendContent(id, 3, []byte("for the record")))
	waitFor(t, func() bool { return received.count() == 1 })

	msgs, err := bobStore.GetConversationMessages(id, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, []byte("for the record"), msgs[0].Content)
	require.False(t, msgs[0].IsOutgoing)
	// First message on the channel: the sender's clock ticked to 1.
	require.Equal(t, uint64(1), msgs[0].LamportTimestamp)
}
