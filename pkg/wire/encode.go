package wire

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Encoding follows proto3 semantics: zero-valued scalar fields are
// omitted, message fields are length-delimited, field order is fixed.
// Every Encode is deterministic: equal values produce equal bytes.

// Encode encodes the tagged payload to bytes.
func (p *TaggedPayload) Encode() []byte {
	var buf []byte

	if p.Protocol != 0 {
		buf = protowire.AppendTag(buf, 1, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(p.Protocol))
	}
	if p.Tag != 0 {
		buf = protowire.AppendTag(buf, 2, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(p.Tag))
	}
	if len(p.Payload) > 0 {
		buf = protowire.AppendTag(buf, 3, protowire.BytesType)
		buf = protowire.AppendBytes(buf, p.Payload)
	}

	return buf
}

// Encode encodes the envelope to bytes.
func (e *Envelope) Encode() []byte {
	var buf []byte

	if e.Encrypted != nil {
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, e.Encrypted.Encode())
	}
	if e.ConversationHint != "" {
		buf = protowire.AppendTag(buf, 2, protowire.BytesType)
		buf = protowire.AppendString(buf, e.ConversationHint)
	}
	if e.Salt != 0 {
		buf = protowire.AppendTag(buf, 3, protowire.VarintType)
		buf = protowire.AppendVarint(buf, e.Salt)
	}

	return buf
}

// Encode encodes the encrypted bytes to bytes. The oneof variant
// selects the field number.
func (e *EncryptedBytes) Encode() []byte {
	var buf []byte

	switch v := e.Encryption.(type) {
	case *Plaintext:
		var inner []byte
		if len(v.Payload) > 0 {
			inner = protowire.AppendTag(inner, 1, protowire.BytesType)
			inner = protowire.AppendBytes(inner, v.Payload)
		}
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, inner)

	case *Reversed:
		var inner []byte
		if len(v.Payload) > 0 {
			inner = protowire.AppendTag(inner, 1, protowire.BytesType)
			inner = protowire.AppendBytes(inner, v.Payload)
		}
		buf = protowire.AppendTag(buf, 2, protowire.BytesType)
		buf = protowire.AppendBytes(buf, inner)

	case *ChaCha20Poly1305:
		var inner []byte
		if len(v.Nonce) > 0 {
			inner = protowire.AppendTag(inner, 1, protowire.BytesType)
			inner = protowire.AppendBytes(inner, v.Nonce)
		}
		if len(v.Payload) > 0 {
			inner = protowire.AppendTag(inner, 2, protowire.BytesType)
			inner = protowire.AppendBytes(inner, v.Payload)
		}
		buf = protowire.AppendTag(buf, 3, protowire.BytesType)
		buf = protowire.AppendBytes(buf, inner)
	}

	return buf
}

// Encode encodes the reliability wrapper to bytes.
func (r *ReliableBytes) Encode() []byte {
	var buf []byte

	if r.MessageID != "" {
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendString(buf, r.MessageID)
	}
	if r.ChannelID != "" {
		buf = protowire.AppendTag(buf, 2, protowire.BytesType)
		buf = protowire.AppendString(buf, r.ChannelID)
	}
	if r.LamportTimestamp != 0 {
		buf = protowire.AppendTag(buf, 3, protowire.VarintType)
		buf = protowire.AppendVarint(buf, r.LamportTimestamp)
	}
	for _, id := range r.CausalHistory {
		buf = protowire.AppendTag(buf, 4, protowire.BytesType)
		buf = protowire.AppendString(buf, id)
	}
	if len(r.DedupSummary) > 0 {
		buf = protowire.AppendTag(buf, 5, protowire.BytesType)
		buf = protowire.AppendBytes(buf, r.DedupSummary)
	}
	if len(r.Content) > 0 {
		buf = protowire.AppendTag(buf, 6, protowire.BytesType)
		buf = protowire.AppendBytes(buf, r.Content)
	}

	return buf
}

// Encode encodes the frame to bytes.
func (f *Frame) Encode() []byte {
	var buf []byte

	if f.Reliability != nil {
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, f.Reliability.Encode())
	}

	switch v := f.Type.(type) {
	case *ContentFrame:
		buf = protowire.AppendTag(buf, 2, protowire.BytesType)
		buf = protowire.AppendBytes(buf, v.Encode())
	case *ConversationInvite:
		buf = protowire.AppendTag(buf, 3, protowire.BytesType)
		buf = protowire.AppendBytes(buf, v.Encode())
	}

	return buf
}

// Encode encodes the reliability info to bytes.
func (r *ReliabilityInfo) Encode() []byte {
	var buf []byte

	if r.MessageID != "" {
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendString(buf, r.MessageID)
	}
	if r.ChannelID != "" {
		buf = protowire.AppendTag(buf, 2, protowire.BytesType)
		buf = protowire.AppendString(buf, r.ChannelID)
	}
	if r.LamportTimestamp != 0 {
		buf = protowire.AppendTag(buf, 3, protowire.VarintType)
		buf = protowire.AppendVarint(buf, r.LamportTimestamp)
	}

	return buf
}

// Encode encodes the content frame to bytes.
func (c *ContentFrame) Encode() []byte {
	var buf []byte

	if c.Domain != 0 {
		buf = protowire.AppendTag(buf, 1, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(c.Domain))
	}
	if c.Tag != 0 {
		buf = protowire.AppendTag(buf, 2, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(c.Tag))
	}
	if len(c.Bytes) > 0 {
		buf = protowire.AppendTag(buf, 3, protowire.BytesType)
		buf = protowire.AppendBytes(buf, c.Bytes)
	}

	return buf
}

// Encode encodes the invite to bytes.
func (i *ConversationInvite) Encode() []byte {
	var buf []byte

	for _, p := range i.Participants {
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendString(buf, p)
	}

	return buf
}
