// Package store persists delivered conversation content in a local
// sqlite database. Content is encrypted at rest with a key derived from
// the owner's passphrase; everything else is queryable metadata.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/umbra-chat/umbra/pkg/crypto"
	"github.com/umbra-chat/umbra/pkg/wire"
)

var ErrNotFound = errors.New("not found")

// StoredMessage is one delivered (or sent) content item.
type StoredMessage struct {
	ID               int64
	ConversationID   string
	MessageID        string
	Tag              uint32
	Content          []byte
	LamportTimestamp uint64
	Timestamp        int64
	IsOutgoing       bool
}

// MessageStore manages the encrypted local message database.
type MessageStore struct {
	db     *sql.DB
	cipher *crypto.SessionCipher
}

// NewMessageStore opens (creating if needed) the database at dbPath.
// The at-rest key is derived from the passphrase.
func NewMessageStore(dbPath string, passphrase string) (*MessageStore, error) {
	key := crypto.Hash([]byte(passphrase))

	cipher, err := crypto.NewSessionCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to derive storage key: %v", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %v", err)
	}

	ms := &MessageStore{db: db, cipher: cipher}
	if err := ms.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return ms, nil
}

func (s *MessageStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		message_id TEXT UNIQUE NOT NULL,
		tag INTEGER NOT NULL,
		content BLOB NOT NULL,
		lamport_timestamp INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		is_outgoing INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, timestamp DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %v", err)
	}
	return nil
}

// SaveMessage encrypts the content and inserts the record. Saving the
// same message id twice is a no-op, matching receive-side dedup.
func (s *MessageStore) SaveMessage(msg *StoredMessage) error {
	enc, err := s.cipher.Encrypt(msg.Content)
	if err != nil {
		return fmt.Errorf("failed to encrypt content: %v", err)
	}

	query := `
		INSERT OR IGNORE INTO messages (
			conversation_id, message_id, tag, content,
			lamport_timestamp, timestamp, is_outgoing
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		msg.ConversationID,
		msg.MessageID,
		msg.Tag,
		enc.Encode(),
		msg.LamportTimestamp,
		msg.Timestamp,
		boolToInt(msg.IsOutgoing),
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	msg.ID = id

	return nil
}

// GetMessage retrieves a message by its message id.
func (s *MessageStore) GetMessage(messageID string) (*StoredMessage, error) {
	query := `
		SELECT id, conversation_id, message_id, tag, content,
		       lamport_timestamp, timestamp, is_outgoing
		FROM messages WHERE message_id = ?
	`

	msg, err := s.scanMessage(s.db.QueryRow(query, messageID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return msg, err
}

// GetConversationMessages retrieves stored messages for a conversation,
// newest first.
func (s *MessageStore) GetConversationMessages(conversationID string, limit, offset int) ([]*StoredMessage, error) {
	query := `
		SELECT id, conversation_id, message_id, tag, content,
		       lamport_timestamp, timestamp, is_outgoing
		FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.Query(query, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*StoredMessage
	for rows.Next() {
		msg, err := s.scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// ConversationIDs lists the distinct conversations with stored messages.
func (s *MessageStore) ConversationIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT conversation_id FROM messages ORDER BY conversation_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// DeleteConversation removes every stored message of a conversation.
func (s *MessageStore) DeleteConversation(conversationID string) error {
	_, err := s.db.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID)
	return err
}

// Close closes the database connection.
func (s *MessageStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *MessageStore) scanMessage(row rowScanner) (*StoredMessage, error) {
	var msg StoredMessage
	var encrypted []byte
	var isOutgoing int

	err := row.Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.MessageID,
		&msg.Tag,
		&encrypted,
		&msg.LamportTimestamp,
		&msg.Timestamp,
		&isOutgoing,
	)
	if err != nil {
		return nil, err
	}

	msg.IsOutgoing = intToBool(isOutgoing)

	enc := &wire.EncryptedBytes{}
	if err := enc.Decode(encrypted); err != nil {
		return nil, fmt.Errorf("failed to decode stored content: %v", err)
	}
	msg.Content, err = s.cipher.Decrypt(enc)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt content: %v", err)
	}

	return &msg, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}
