// Package api exposes a local HTTP control surface for a running
// client: conversation management, sending, and message history.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/umbra-chat/umbra/pkg/client"
	"github.com/umbra-chat/umbra/pkg/store"
)

// Server is the HTTP API server wrapping one client.
type Server struct {
	client     *client.Client
	store      *store.MessageStore
	router     *gin.Engine
	port       int
	httpServer *http.Server
}

// Config holds server configuration
type Config struct {
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// NewServer creates the API server. The message store is optional;
// without it the history endpoint reports that persistence is off.
func NewServer(cli *client.Client, ms *store.MessageStore, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	if config.EnableCORS {
		router.Use(CORSMiddleware())
	}

	server := &Server{
		client: cli,
		store:  ms,
		router: router,
		port:   config.Port,
	}
	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/client/info", s.handleClientInfo)

		conversations := v1.Group("/conversations")
		{
			conversations.GET("", s.handleListConversations)
			conversations.POST("", s.handleCreateConversation)
			conversations.POST("/send", s.handleSendMessage)
			conversations.GET("/messages", s.handleMessages)
		}
	}

	s.router.GET("/health", s.handleHealth)
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		fmt.Printf("🌐 HTTP API server starting on port %d...\n", s.port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("❌ Server error: %v\n", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Stop shuts the HTTP server down.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
