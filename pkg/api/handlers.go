package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ClientInfoResponse describes the running client.
type ClientInfoResponse struct {
	Address       string   `json:"address"`
	Conversations []string `json:"conversations"`
}

// CreateConversationRequest asks to establish a conversation.
type CreateConversationRequest struct {
	Remote string `json:"remote" binding:"required"`
}

// SendMessageRequest sends content on an existing conversation.
type SendMessageRequest struct {
	ConversationID string `json:"conversationId" binding:"required"`
	Tag            uint32 `json:"tag"`
	Payload        string `json:"payload" binding:"required"`
}

// MessageResponse is one stored message.
type MessageResponse struct {
	MessageID        string    `json:"messageId"`
	ConversationID   string    `json:"conversationId"`
	Tag              uint32    `json:"tag"`
	Payload          string    `json:"payload"`
	LamportTimestamp uint64    `json:"lamportTimestamp"`
	Timestamp        time.Time `json:"timestamp"`
	IsOutgoing       bool      `json:"isOutgoing"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleClientInfo(c *gin.Context) {
	c.JSON(http.StatusOK, ClientInfoResponse{
		Address:       s.client.Address(),
		Conversations: s.client.ConversationIDs(),
	})
}

func (s *Server) handleListConversations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"conversations": s.client.ConversationIDs()})
}

func (s *Server) handleCreateConversation(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	conv, err := s.client.CreateConversation(req.Remote)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to create conversation",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversationId": conv.ID()})
}

func (s *Server) handleSendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	if err := s.client.SendContent(req.ConversationID, req.Tag, []byte(req.Payload)); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to send message",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleMessages(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{
			Error:   "Persistence disabled",
			Message: "The client was started without a message store",
		})
		return
	}

	conversationID := c.Query("id")
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Missing conversation id",
		})
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "Invalid limit",
				Message: "Limit must be a positive number",
			})
			return
		}
		limit = parsed
	}

	offset := 0
	if v := c.Query("offset"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "Invalid offset",
				Message: "Offset must be zero or a positive number",
			})
			return
		}
		offset = parsed
	}

	msgs, err := s.store.GetConversationMessages(conversationID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to load messages",
			Message: err.Error(),
		})
		return
	}

	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageResponse{
			MessageID:        m.MessageID,
			ConversationID:   m.ConversationID,
			Tag:              m.Tag,
			Payload:          string(m.Content),
			LamportTimestamp: m.LamportTimestamp,
			Timestamp:        time.Unix(m.Timestamp, 0),
			IsOutgoing:       m.IsOutgoing,
		})
	}

	c.JSON(http.StatusOK, gin.H{"messages": out})
}
