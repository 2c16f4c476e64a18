package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *MessageStore {
	t.Helper()

	ms, err := NewMessageStore(filepath.Join(t.TempDir(), "messages.db"), "correct horse battery staple")
	require.NoError(t, err)
	t.Cleanup(func() { ms.Close() })

	return ms
}

func TestSaveAndGetMessage(t *testing.T) {
	ms := openTestStore(t)

	msg := &StoredMessage{
		ConversationID:   "/private/alice|bob",
		MessageID:        "abc123",
		Tag:              1,
		Content:          []byte("hello there"),
		LamportTimestamp: 4,
		Timestamp:        time.Now().Unix(),
		IsOutgoing:       true,
	}
	require.NoError(t, ms.SaveMessage(msg))
	require.NotZero(t, msg.ID)

	got, err := ms.GetMessage("abc123")
	require.NoError(t, err)
	require.Equal(t, msg.ConversationID, got.ConversationID)
	require.Equal(t, []byte("hello there"), got.Content)
	require.Equal(t, uint64(4), got.LamportTimestamp)
	require.True(t, got.IsOutgoing)
}

func TestGetMessageNotFound(t *testing.T) {
	ms := openTestStore(t)

	_, err := ms.GetMessage("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSaveMessageIdempotent(t *testing.T) {
	ms := openTestStore(t)

	msg := &StoredMessage{
		ConversationID: "/private/alice|bob",
		MessageID:      "dup",
		Content:        []byte("once"),
		Timestamp:      1,
	}
	require.NoError(t, ms.SaveMessage(msg))
	require.NoError(t, ms.SaveMessage(msg))

	msgs, err := ms.GetConversationMessages("/private/alice|bob", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestConversationMessagesNewestFirst(t *testing.T) {
	ms := openTestStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, ms.SaveMessage(&StoredMessage{
			ConversationID: "/private/alice|bob",
			MessageID:      string(rune('a' + i)),
			Content:        []byte{byte(i)},
			Timestamp:      int64(i),
		}))
	}

	msgs, err := ms.GetConversationMessages("/private/alice|bob", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, []byte{2}, msgs[0].Content)
	require.Equal(t, []byte{0}, msgs[2].Content)
}

func TestContentEncryptedAtRest(t *testing.T) {
	ms := openTestStore(t)

	require.NoError(t, ms.SaveMessage(&StoredMessage{
		ConversationID: "/inbox/alice",
		MessageID:      "m1",
		Content:        []byte("visible to nobody"),
		Timestamp:      1,
	}))

	var raw []byte
	err := ms.db.QueryRow(`SELECT content FROM messages WHERE message_id = ?`, "m1").Scan(&raw)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "visible to nobody")
}

func TestConversationIDsAndDelete(t *testing.T) {
	ms := openTestStore(t)

	require.NoError(t, ms.SaveMessage(&StoredMessage{
		ConversationID: "/inbox/alice", MessageID: "m1", Content: []byte("a"), Timestamp: 1,
	}))
	require.NoError(t, ms.SaveMessage(&StoredMessage{
		ConversationID: "/private/alice|bob", MessageID: "m2", Content: []byte("b"), Timestamp: 2,
	}))

	ids, err := ms.ConversationIDs()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"/inbox/alice", "/private/alice|bob"}, ids)

	require.NoError(t, ms.DeleteConversation("/inbox/alice"))

	ids, err = ms.ConversationIDs()
	require.NoError(t, err)
	require.Equal(t, []string{"/private/alice|bob"}, ids)
}
