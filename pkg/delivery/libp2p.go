package delivery

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"
)

const (
	// ProtocolID identifies umbra message streams on a libp2p host.
	ProtocolID = protocol.ID("/umbra/1.0.0")

	// MaxMessageSize caps a single wire message (1 MiB).
	MaxMessageSize = 1 << 20

	libp2pQueueDepth   = 256
	libp2pPollInterval = 50 * time.Millisecond
	dialTimeout        = 10 * time.Second
)

// LibP2PTransport carries umbra messages over libp2p streams. Each
// Send opens a short-lived stream to every known peer and writes one
// length-prefixed message. Peers become known either by Connect (we
// dialed them) or by opening a stream to us.
type LibP2PTransport struct {
	host  host.Host
	inbox chan []byte

	mu     sync.RWMutex
	peers  map[peer.ID]struct{}
	closed bool
}

// NewLibP2PTransport creates a host listening on the given multiaddr
// (e.g. "/ip4/0.0.0.0/tcp/9000").
func NewLibP2PTransport(listenAddr string) (*LibP2PTransport, error) {
	h, err := libp2p.New(
		libp2p.ListenAddrStrings(listenAddr),
		libp2p.DefaultTransports,
		libp2p.DefaultMuxers,
		libp2p.DefaultSecurity,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	t := &LibP2PTransport{
		host:  h,
		inbox: make(chan []byte, libp2pQueueDepth),
		peers: make(map[peer.ID]struct{}),
	}
	h.SetStreamHandler(ProtocolID, t.handleStream)

	return t, nil
}

// Addrs returns the host's dialable multiaddrs including the peer id.
func (t *LibP2PTransport) Addrs() []string {
	var addrs []string
	for _, a := range t.host.Addrs() {
		addrs = append(addrs, fmt.Sprintf("%s/p2p/%s", a, t.host.ID()))
	}
	return addrs
}

// Connect dials a peer by full multiaddr and remembers it as a send
// target.
func (t *LibP2PTransport) Connect(ctx context.Context, addr string) error {
	maddr, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return fmt.Errorf("invalid peer address %q: %w", addr, err)
	}

	info, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return fmt.Errorf("invalid peer address %q: %w", addr, err)
	}

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := t.host.Connect(ctx, *info); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", info.ID, err)
	}

	t.mu.Lock()
	t.peers[info.ID] = struct{}{}
	t.mu.Unlock()

	log.Printf("Connected to peer %s", info.ID)
	return nil
}

// Send writes one message to every known peer. It fails only when no
// peer could be reached; partial delivery is fine, the engine assumes
// loss anyway.
func (t *LibP2PTransport) Send(message []byte) error {
	if len(message) > MaxMessageSize {
		return fmt.Errorf("%w: message exceeds %d bytes", ErrPublish, MaxMessageSize)
	}

	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return ErrClosed
	}
	targets := make([]peer.ID, 0, len(t.peers))
	for id := range t.peers {
		targets = append(targets, id)
	}
	t.mu.RUnlock()

	if len(targets) == 0 {
		return fmt.Errorf("%w: no connected peers", ErrPublish)
	}

	delivered := 0
	for _, id := range targets {
		if err := t.sendToPeer(id, message); err != nil {
			log.Printf("Send to %s failed: %v", id, err)
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return fmt.Errorf("%w: all %d peers unreachable", ErrPublish, len(targets))
	}
	return nil
}

func (t *LibP2PTransport) sendToPeer(id peer.ID, message []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	stream, err := t.host.NewStream(ctx, id, ProtocolID)
	if err != nil {
		return err
	}
	defer stream.Close()

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(message)))

	if _, err := stream.Write(length[:]); err != nil {
		return err
	}
	if _, err := stream.Write(message); err != nil {
		return err
	}
	return nil
}

// Recv returns the next inbound message, or (nil, nil) after a short
// wait when none arrived.
func (t *LibP2PTransport) Recv() ([]byte, error) {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	select {
	case msg := <-t.inbox:
		return msg, nil
	case <-time.After(libp2pPollInterval):
		return nil, nil
	}
}

// Close shuts the host down.
func (t *LibP2PTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return t.host.Close()
}

func (t *LibP2PTransport) handleStream(stream network.Stream) {
	defer stream.Close()

	remote := stream.Conn().RemotePeer()

	// A peer that reaches us becomes a send target too.
	t.mu.Lock()
	t.peers[remote] = struct{}{}
	t.mu.Unlock()

	for {
		var length [4]byte
		if _, err := io.ReadFull(stream, length[:]); err != nil {
			if err != io.EOF {
				log.Printf("Read length from %s failed: %v", remote, err)
			}
			return
		}

		size := binary.BigEndian.Uint32(length[:])
		if size > MaxMessageSize {
			log.Printf("Oversized message from %s: %d bytes", remote, size)
			return
		}

		message := make([]byte, size)
		if _, err := io.ReadFull(stream, message); err != nil {
			log.Printf("Read message from %s failed: %v", remote, err)
			return
		}

		select {
		case t.inbox <- message:
		default:
			log.Printf("Inbox full, dropping message from %s", remote)
		}
	}
}
