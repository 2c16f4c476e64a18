// Package wire defines the Umbra wire types and their binary codecs.
//
// The encoding is standard protobuf wire format with fixed field numbers,
// written and read by hand via protowire. Field numbers are part of the
// protocol and must never be reassigned:
//
//	TaggedPayload      1:protocol 2:tag 3:payload
//	Envelope           1:encrypted_bytes 2:conversation_hint 3:salt
//	EncryptedBytes     oneof { 1:plaintext 2:reversed 3:chacha20poly1305 }
//	ReliableBytes      1:message_id 2:channel_id 3:lamport_timestamp
//	                   4:causal_history 5:dedup_summary 6:content
//	Frame              1:reliability_info oneof { 2:content 3:conversation_invite }
//	ReliabilityInfo    1:message_id 2:channel_id 3:lamport_timestamp
//	ContentFrame       1:domain 2:tag 3:bytes
//	ConversationInvite 1:participants
package wire

import "errors"

// Protocol identifiers carried in TaggedPayload.Protocol
const (
	ProtocolUmbraV1 uint32 = 1
)

// Payload tags carried in TaggedPayload.Tag
const (
	PayloadTagUnknown     uint32 = 0
	PayloadTagEnvelope    uint32 = 1
	PayloadTagPublicFrame uint32 = 2 // reserved, not yet implemented
)

var (
	ErrEncode = errors.New("wire: encode failed")
	ErrDecode = errors.New("wire: decode failed")
)

// TaggedPayload is the top-level multiplex wrapper. The tag selects how
// the payload bytes are interpreted; only PayloadTagEnvelope is live.
type TaggedPayload struct {
	Protocol uint32
	Tag      uint32
	Payload  []byte
}

// Envelope is the outer routed wrapper: encrypted bytes plus the
// conversation hint used to route it, and a per-message salt.
type Envelope struct {
	Encrypted        *EncryptedBytes
	ConversationHint string
	Salt             uint64
}

// EncryptedBytes holds one variant of the closed encryption set.
// A nil Encryption field is a decode error, as is an unknown variant.
type EncryptedBytes struct {
	Encryption Encryption
}

// Encryption is the closed variant set for EncryptedBytes.
type Encryption interface {
	encryptionVariant()
}

// Plaintext carries unencrypted frame bytes. Used only for inbox
// invites, where no session key exists yet.
type Plaintext struct {
	Payload []byte
}

// Reversed is the placeholder cipher variant: payload bytes reversed.
// It provides no confidentiality and exists to exercise the variant
// machinery until a session key is wired in.
type Reversed struct {
	Payload []byte
}

// ChaCha20Poly1305 carries an authenticated ciphertext and its nonce.
type ChaCha20Poly1305 struct {
	Nonce   []byte
	Payload []byte
}

func (*Plaintext) encryptionVariant()        {}
func (*Reversed) encryptionVariant()         {}
func (*ChaCha20Poly1305) encryptionVariant() {}

// ReliableBytes wraps an encoded Frame with delivery-reliability
// metadata before encryption.
type ReliableBytes struct {
	MessageID        string   // content hash of the wrapped frame
	ChannelID        string   // conversation id the message belongs to
	LamportTimestamp uint64   // per-channel logical clock
	CausalHistory    []string // immediate causal predecessor ids
	DedupSummary     []byte   // compact recently-seen-ids hint
	Content          []byte   // encoded Frame
}

// Frame is a self-describing application-level frame.
type Frame struct {
	Reliability *ReliabilityInfo
	Type        FrameType
}

// FrameType is the closed variant set for Frame.
type FrameType interface {
	frameVariant()
}

// ReliabilityInfo mirrors the ReliableBytes metadata when carried
// inline on a Frame. Optional; nil in the common case.
type ReliabilityInfo struct {
	MessageID        string
	ChannelID        string
	LamportTimestamp uint64
}

// ContentFrame carries opaque application content selected by tag.
// Domain is reserved for future tag namespacing and is always 0.
type ContentFrame struct {
	Domain uint32
	Tag    uint32
	Bytes  []byte
}

// ConversationInvite announces a new conversation to its participants.
type ConversationInvite struct {
	Participants []string
}

func (*ContentFrame) frameVariant()       {}
func (*ConversationInvite) frameVariant() {}
