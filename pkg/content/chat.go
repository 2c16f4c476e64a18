package content

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/umbra-chat/umbra/pkg/wire"
)

// TagChatMessage is the content tag for ChatMessage.
const TagChatMessage uint32 = 1

// ChatMessage is the reference content type: a plain text message.
type ChatMessage struct {
	Text string
}

func (ChatMessage) ContentTag() uint32 { return TagChatMessage }

// MarshalContent encodes the message (field 1: text).
func (m ChatMessage) MarshalContent() ([]byte, error) {
	var buf []byte
	if m.Text != "" {
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendString(buf, m.Text)
	}
	return buf, nil
}

// DecodeChatMessage is the registry decoder for TagChatMessage.
func DecodeChatMessage(data []byte) (Content, error) {
	var m ChatMessage

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("chat message: %w", wire.ErrDecode)
		}
		data = data[n:]

		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("chat message text: %w", wire.ErrDecode)
			}
			m.Text = v
			data = data[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return nil, fmt.Errorf("chat message field %d: %w", num, wire.ErrDecode)
		}
		data = data[n:]
	}

	return m, nil
}
