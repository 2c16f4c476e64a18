package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/umbra-chat/umbra/pkg/client"
	"github.com/umbra-chat/umbra/pkg/convo"
	"github.com/umbra-chat/umbra/pkg/delivery"
	"github.com/umbra-chat/umbra/pkg/store"
)

type apiFixture struct {
	server *Server
	alice  *client.Client
	bob    *client.Client
	store  *store.MessageStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	bus := delivery.NewBus()
	alice := client.NewClient("alice", bus.Join())
	bob := client.NewClient("bob", bus.Join())

	ms, err := store.NewMessageStore(filepath.Join(t.TempDir(), "alice.db"), "s3cret")
	require.NoError(t, err)
	alice.AttachStore(ms)

	alice.Start()
	bob.Start()
	t.Cleanup(func() {
		alice.Close()
		bob.Close()
		ms.Close()
	})

	return &apiFixture{
		server: NewServer(alice, ms, nil),
		alice:  alice,
		bob:    bob,
		store:  ms,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestClientInfo(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/client/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var info ClientInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.Equal(t, "alice", info.Address)
	require.Contains(t, info.Conversations, convo.InboxTopic("alice"))
}

func TestCreateAndSendOverAPI(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/conversations", CreateConversationRequest{Remote: "bob"})
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		ConversationID string `json:"conversationId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, convo.PrivateTopic("alice", "bob"), created.ConversationID)

	// Wait for bob to pick the invite up before sending.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := f.bob.Conversation(created.ConversationID); ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/conversations/send", SendMessageRequest{
		ConversationID: created.ConversationID,
		Tag:            1,
		Payload:        "hello over http",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/conversations/messages?id="+created.ConversationID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var history struct {
		Messages []MessageResponse `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Messages, 1)
	require.Equal(t, "hello over http", history.Messages[0].Payload)
	require.True(t, history.Messages[0].IsOutgoing)
}

func TestMessageHistoryPagination(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/conversations", CreateConversationRequest{Remote: "bob"})
	require.Equal(t, http.StatusOK, rec.Code)

	id := convo.PrivateTopic("alice", "bob")
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := f.bob.Conversation(id); ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	for _, text := range []string{"first", "second"} {
		rec = f.do(t, http.MethodPost, "/api/v1/conversations/send", SendMessageRequest{
			ConversationID: id,
			Tag:            1,
			Payload:        text,
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	var history struct {
		Messages []MessageResponse `json:"messages"`
	}

	rec = f.do(t, http.MethodGet, "/api/v1/conversations/messages?id="+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Messages, 2)
	for _, m := range history.Messages {
		require.NotZero(t, m.LamportTimestamp)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/conversations/messages?id="+id+"&limit=10&offset=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history.Messages = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Messages, 1)

	rec = f.do(t, http.MethodGet, "/api/v1/conversations/messages?id="+id+"&offset=-1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateConversationBadRequest(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/conversations", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendToUnknownConversation(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/conversations/send", SendMessageRequest{
		ConversationID: "/private/alice|stranger",
		Tag:            1,
		Payload:        "void",
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMessagesWithoutStore(t *testing.T) {
	bus := delivery.NewBus()
	cli := client.NewClient("carol", bus.Join())
	cli.Start()
	t.Cleanup(cli.Close)

	server := NewServer(cli, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/messages?id=x", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}
