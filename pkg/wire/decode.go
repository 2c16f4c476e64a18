package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Decoding tolerates unknown fields (they are skipped) and any field
// order, with one exception: EncryptedBytes is a closed variant set,
// so an unrecognized variant field is rejected.

// Decode decodes a tagged payload from bytes.
func (p *TaggedPayload) Decode(buf []byte) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("%w: tagged payload: %v", ErrDecode, protowire.ParseError(n))
		}
		buf = buf[n:]

		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return fmt.Errorf("%w: tagged payload protocol", ErrDecode)
			}
			p.Protocol = uint32(v)
			buf = buf[n:]

		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return fmt.Errorf("%w: tagged payload tag", ErrDecode)
			}
			p.Tag = uint32(v)
			buf = buf[n:]

		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return fmt.Errorf("%w: tagged payload bytes", ErrDecode)
			}
			p.Payload = append([]byte(nil), v...)
			buf = buf[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return fmt.Errorf("%w: tagged payload field %d", ErrDecode, num)
			}
			buf = buf[n:]
		}
	}

	return nil
}

// Decode decodes an envelope from bytes.
func (e *Envelope) Decode(buf []byte) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("%w: envelope: %v", ErrDecode, protowire.ParseError(n))
		}
		buf = buf[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return fmt.Errorf("%w: envelope encrypted bytes", ErrDecode)
			}
			enc := &EncryptedBytes{}
			if err := enc.Decode(v); err != nil {
				return err
			}
			e.Encrypted = enc
			buf = buf[n:]

		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(buf)
			if n < 0 {
				return fmt.Errorf("%w: envelope hint", ErrDecode)
			}
			e.ConversationHint = v
			buf = buf[n:]

		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return fmt.Errorf("%w: envelope salt", ErrDecode)
			}
			e.Salt = v
			buf = buf[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return fmt.Errorf("%w: envelope field %d", ErrDecode, num)
			}
			buf = buf[n:]
		}
	}

	return nil
}

// Decode decodes encrypted bytes. Unknown variant fields are rejected:
// the encryption set is closed and a peer speaking a newer variant
// cannot be decrypted here anyway.
func (e *EncryptedBytes) Decode(buf []byte) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("%w: encrypted bytes: %v", ErrDecode, protowire.ParseError(n))
		}
		buf = buf[n:]

		if typ != protowire.BytesType {
			return fmt.Errorf("%w: encrypted bytes field %d: unexpected wire type", ErrDecode, num)
		}

		v, n := protowire.ConsumeBytes(buf)
		if n < 0 {
			return fmt.Errorf("%w: encrypted bytes variant", ErrDecode)
		}
		buf = buf[n:]

		switch num {
		case 1:
			p := &Plaintext{}
			if err := decodeSinglePayload(v, &p.Payload, "plaintext"); err != nil {
				return err
			}
			e.Encryption = p
		case 2:
			r := &Reversed{}
			if err := decodeSinglePayload(v, &r.Payload, "reversed"); err != nil {
				return err
			}
			e.Encryption = r
		case 3:
			c := &ChaCha20Poly1305{}
			if err := c.decode(v); err != nil {
				return err
			}
			e.Encryption = c
		default:
			return fmt.Errorf("%w: unknown encryption variant %d", ErrDecode, num)
		}
	}

	return nil
}

// decodeSinglePayload decodes a message that holds a single bytes
// payload at field 1 (Plaintext, Reversed).
func decodeSinglePayload(buf []byte, out *[]byte, what string) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("%w: %s: %v", ErrDecode, what, protowire.ParseError(n))
		}
		buf = buf[n:]

		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return fmt.Errorf("%w: %s payload", ErrDecode, what)
			}
			*out = append([]byte(nil), v...)
			buf = buf[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, buf)
		if n < 0 {
			return fmt.Errorf("%w: %s field %d", ErrDecode, what, num)
		}
		buf = buf[n:]
	}

	return nil
}

func (c *ChaCha20Poly1305) decode(buf []byte) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("%w: chacha20poly1305: %v", ErrDecode, protowire.ParseError(n))
		}
		buf = buf[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return fmt.Errorf("%w: chacha20poly1305 nonce", ErrDecode)
			}
			c.Nonce = append([]byte(nil), v...)
			buf = buf[n:]

		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return fmt.Errorf("%w: chacha20poly1305 payload", ErrDecode)
			}
			c.Payload = append([]byte(nil), v...)
			buf = buf[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return fmt.Errorf("%w: chacha20poly1305 field %d", ErrDecode, num)
			}
			buf = buf[n:]
		}
	}

	return nil
}

// Decode decodes a reliability wrapper from bytes.
func (r *ReliableBytes) Decode(buf []byte) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("%w: reliable bytes: %v", ErrDecode, protowire.ParseError(n))
		}
		buf = buf[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(buf)
			if n < 0 {
				return fmt.Errorf("%w: reliable bytes message id", ErrDecode)
			}
			r.MessageID = v
			buf = buf[n:]

		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(buf)
			if n < 0 {
				return fmt.Errorf("%w: reliable bytes channel id", ErrDecode)
			}
			r.ChannelID = v
			buf = buf[n:]

		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return fmt.Errorf("%w: reliable bytes lamport", ErrDecode)
			}
			r.LamportTimestamp = v
			buf = buf[n:]

		case num == 4 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(buf)
			if n < 0 {
				return fmt.Errorf("%w: reliable bytes causal history", ErrDecode)
			}
			r.CausalHistory = append(r.CausalHistory, v)
			buf = buf[n:]

		case num == 5 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return fmt.Errorf("%w: reliable bytes dedup summary", ErrDecode)
			}
			r.DedupSummary = append([]byte(nil), v...)
			buf = buf[n:]

		case num == 6 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return fmt.Errorf("%w: reliable bytes content", ErrDecode)
			}
			r.Content = append([]byte(nil), v...)
			buf = buf[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return fmt.Errorf("%w: reliable bytes field %d", ErrDecode, num)
			}
			buf = buf[n:]
		}
	}

	return nil
}

// Decode decodes a frame from bytes. A frame with no recognized
// frame_type decodes with Type == nil; callers treat that as a
// malformed packet.
func (f *Frame) Decode(buf []byte) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("%w: frame: %v", ErrDecode, protowire.ParseError(n))
		}
		buf = buf[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return fmt.Errorf("%w: frame reliability info", ErrDecode)
			}
			info := &ReliabilityInfo{}
			if err := info.Decode(v); err != nil {
				return err
			}
			f.Reliability = info
			buf = buf[n:]

		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return fmt.Errorf("%w: frame content", ErrDecode)
			}
			cf := &ContentFrame{}
			if err := cf.Decode(v); err != nil {
				return err
			}
			f.Type = cf
			buf = buf[n:]

		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return fmt.Errorf("%w: frame invite", ErrDecode)
			}
			inv := &ConversationInvite{}
			if err := inv.Decode(v); err != nil {
				return err
			}
			f.Type = inv
			buf = buf[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return fmt.Errorf("%w: frame field %d", ErrDecode, num)
			}
			buf = buf[n:]
		}
	}

	return nil
}

// Decode decodes reliability info from bytes.
func (r *ReliabilityInfo) Decode(buf []byte) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("%w: reliability info: %v", ErrDecode, protowire.ParseError(n))
		}
		buf = buf[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(buf)
			if n < 0 {
				return fmt.Errorf("%w: reliability info message id", ErrDecode)
			}
			r.MessageID = v
			buf = buf[n:]

		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(buf)
			if n < 0 {
				return fmt.Errorf("%w: reliability info channel id", ErrDecode)
			}
			r.ChannelID = v
			buf = buf[n:]

		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return fmt.Errorf("%w: reliability info lamport", ErrDecode)
			}
			r.LamportTimestamp = v
			buf = buf[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return fmt.Errorf("%w: reliability info field %d", ErrDecode, num)
			}
			buf = buf[n:]
		}
	}

	return nil
}

// Decode decodes a content frame from bytes.
func (c *ContentFrame) Decode(buf []byte) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("%w: content frame: %v", ErrDecode, protowire.ParseError(n))
		}
		buf = buf[n:]

		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return fmt.Errorf("%w: content frame domain", ErrDecode)
			}
			c.Domain = uint32(v)
			buf = buf[n:]

		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return fmt.Errorf("%w: content frame tag", ErrDecode)
			}
			c.Tag = uint32(v)
			buf = buf[n:]

		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return fmt.Errorf("%w: content frame bytes", ErrDecode)
			}
			c.Bytes = append([]byte(nil), v...)
			buf = buf[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return fmt.Errorf("%w: content frame field %d", ErrDecode, num)
			}
			buf = buf[n:]
		}
	}

	return nil
}

// Decode decodes an invite from bytes.
func (i *ConversationInvite) Decode(buf []byte) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("%w: invite: %v", ErrDecode, protowire.ParseError(n))
		}
		buf = buf[n:]

		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(buf)
			if n < 0 {
				return fmt.Errorf("%w: invite participant", ErrDecode)
			}
			i.Participants = append(i.Participants, v)
			buf = buf[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, buf)
		if n < 0 {
			return fmt.Errorf("%w: invite field %d", ErrDecode, num)
		}
		buf = buf[n:]
	}

	return nil
}
