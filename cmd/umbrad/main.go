package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/umbra-chat/umbra/pkg/api"
	"github.com/umbra-chat/umbra/pkg/client"
	"github.com/umbra-chat/umbra/pkg/content"
	"github.com/umbra-chat/umbra/pkg/delivery"
	"github.com/umbra-chat/umbra/pkg/store"
	"github.com/umbra-chat/umbra/pkg/wire"
)

var (
	addr       = flag.String("addr", "", "Identity address (empty = ephemeral)")
	listenAddr = flag.String("listen", "/ip4/0.0.0.0/tcp/0", "libp2p listen multiaddr")
	peerAddr   = flag.String("peer", "", "Multiaddr of a peer to connect to")
	apiPort    = flag.Int("api-port", 8080, "HTTP API port")
	dbPath     = flag.String("db", "", "Message database path (empty = no persistence)")
	passphrase = flag.String("passphrase", "", "Passphrase for the message database")
	demo       = flag.Bool("demo", false, "Run a two-client in-memory demo and exit")
)

func main() {
	flag.Parse()

	printBanner()

	if *demo {
		runDemo()
		return
	}

	transport, err := delivery.NewLibP2PTransport(*listenAddr)
	if err != nil {
		log.Fatalf("Failed to start transport: %v", err)
	}
	defer transport.Close()

	for _, a := range transport.Addrs() {
		log.Printf("✓ Listening on %s", a)
	}

	if *peerAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := transport.Connect(ctx, *peerAddr); err != nil {
			cancel()
			log.Fatalf("Failed to connect to peer: %v", err)
		}
		cancel()
		log.Printf("✓ Connected to %s", *peerAddr)
	}

	cli := client.NewClient(*addr, transport)
	log.Printf("✓ Client identity: %s", cli.Address())

	var messageStore *store.MessageStore
	if *dbPath != "" {
		messageStore, err = store.NewMessageStore(*dbPath, *passphrase)
		if err != nil {
			log.Fatalf("Failed to open message database: %v", err)
		}
		defer messageStore.Close()
		cli.AttachStore(messageStore)
		log.Printf("📬 Message database at %s", *dbPath)
	}

	cli.AddContentHandler(printContent(cli.Address()))

	cli.Start()
	defer cli.Close()

	apiConfig := api.DefaultConfig()
	apiConfig.Port = *apiPort
	server := api.NewServer(cli, messageStore, apiConfig)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := server.Start(ctx); err != nil {
			log.Printf("API server: %v", err)
		}
	}()

	waitForShutdown(cancel)
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════════╗")
	fmt.Println("║                umbrad — umbra daemon              ║")
	fmt.Println("║      peer-to-peer encrypted conversations         ║")
	fmt.Println("╚═══════════════════════════════════════════════════╝")
	fmt.Println()
}

// printContent returns a handler that decodes known content types and
// logs everything delivered to the named client.
func printContent(who string) client.ContentHandler {
	registry := content.NewRegistry()
	registry.Register(content.TagChatMessage, content.DecodeChatMessage)

	return func(conversationID string, frame *wire.ContentFrame) {
		decoded, ok, err := registry.Decode(frame)
		if err != nil {
			log.Printf("⚠️  %s: bad content on %s: %v", who, conversationID, err)
			return
		}
		if !ok {
			log.Printf("💬 %s got [%s] tag=%d %d bytes", who, conversationID, frame.Tag, len(frame.Bytes))
			return
		}
		if chat, isChat := decoded.(content.ChatMessage); isChat {
			log.Printf("💬 %s got [%s] %q", who, conversationID, chat.Text)
		}
	}
}

func sendChat(cli *client.Client, conversationID, text string) error {
	frame, err := content.Wrap(content.ChatMessage{Text: text})
	if err != nil {
		return err
	}
	return cli.SendContent(conversationID, frame.Tag, frame.Bytes)
}

// runDemo wires two clients over an in-process bus and exchanges a few
// messages, printing everything that happens.
func runDemo() {
	bus := delivery.NewBus()

	alice := client.NewClient("alice", bus.Join())
	bob := client.NewClient("bob", bus.Join())

	alice.AddContentHandler(printContent("alice"))
	bob.AddContentHandler(printContent("bob"))

	alice.Start()
	bob.Start()
	defer alice.Close()
	defer bob.Close()

	conv, err := alice.CreateConversation("bob")
	if err != nil {
		log.Fatalf("Failed to create conversation: %v", err)
	}
	log.Printf("✓ Conversation %s", conv.ID())

	// Give bob's receive loop a moment to register the invite.
	time.Sleep(200 * time.Millisecond)

	if err := sendChat(alice, conv.ID(), "hello bob"); err != nil {
		log.Fatalf("Send failed: %v", err)
	}
	if err := sendChat(bob, conv.ID(), "hello alice"); err != nil {
		log.Fatalf("Send failed: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	log.Println("✓ Demo complete")
}

func waitForShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan

	fmt.Println()
	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	log.Println("Goodbye! 👋")
}
