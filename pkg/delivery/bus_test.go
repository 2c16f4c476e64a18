package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBusBroadcast(t *testing.T) {
	bus := NewBus()
	a := bus.Join()
	b := bus.Join()
	c := bus.Join()

	require.NoError(t, a.Send([]byte("hello")))

	for _, ep := range []*Endpoint{b, c} {
		msg, err := ep.Recv()
		require.NoError(t, err)
		require.Equal(t, []byte("hello"), msg)
	}

	// Sender does not hear its own broadcast.
	msg, err := a.Recv()
	require.NoError(t, err)
	require.Nil(t, msg)
}

func TestBusRecvEmptyReturnsNil(t *testing.T) {
	bus := NewBus()
	ep := bus.Join()

	start := time.Now()
	msg, err := ep.Recv()
	require.NoError(t, err)
	require.Nil(t, msg)
	// Recv waits briefly instead of spinning.
	require.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestBusSendOrderPreservedPerSender(t *testing.T) {
	bus := NewBus()
	a := bus.Join()
	b := bus.Join()

	for i := byte(0); i < 10; i++ {
		require.NoError(t, a.Send([]byte{i}))
	}

	for i := byte(0); i < 10; i++ {
		msg, err := b.Recv()
		require.NoError(t, err)
		require.Equal(t, []byte{i}, msg)
	}
}

func TestBusClosedEndpoint(t *testing.T) {
	bus := NewBus()
	ep := bus.Join()
	ep.Close()

	require.ErrorIs(t, ep.Send([]byte("x")), ErrClosed)

	_, err := ep.Recv()
	require.ErrorIs(t, err, ErrClosed)
}

func TestBusSenderBufferReuse(t *testing.T) {
	bus := NewBus()
	a := bus.Join()
	b := bus.Join()

	buf := []byte("first")
	require.NoError(t, a.Send(buf))
	copy(buf, "XXXXX")

	msg, err := b.Recv()
	require.NoError(t, err)
	require.Equal(t, []byte("first"), msg)
}
