// Package content maps application content types to numeric tags and
// back. Wrapping lifts a typed value into a wire.ContentFrame; decoding
// is receiver-driven: the recipient looks the tag up in its registry
// and an unrecognized tag is a skip outcome, never an error.
package content

import (
	"fmt"
	"sync"

	"github.com/umbra-chat/umbra/pkg/wire"
)

// Domain 0 is the only content domain in use; the field exists for
// future tag namespacing.
const DomainDefault uint32 = 0

// Content is any application value that declares a fixed tag and can
// serialize itself.
type Content interface {
	ContentTag() uint32
	MarshalContent() ([]byte, error)
}

// DecoderFunc decodes content bytes for one tag.
type DecoderFunc func(data []byte) (Content, error)

// Wrap serializes a content value into a content frame.
func Wrap(c Content) (*wire.ContentFrame, error) {
	data, err := c.MarshalContent()
	if err != nil {
		return nil, fmt.Errorf("content tag %d: %w: %v", c.ContentTag(), wire.ErrEncode, err)
	}

	return &wire.ContentFrame{
		Domain: DomainDefault,
		Tag:    c.ContentTag(),
		Bytes:  data,
	}, nil
}

// Registry associates content tags with decoders. Tag uniqueness is the
// caller's responsibility; a duplicate Register overwrites.
type Registry struct {
	mu       sync.RWMutex
	decoders map[uint32]DecoderFunc
}

func NewRegistry() *Registry {
	return &Registry{decoders: make(map[uint32]DecoderFunc)}
}

// Register installs a decoder for a tag.
func (r *Registry) Register(tag uint32, fn DecoderFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[tag] = fn
}

// Decode decodes a content frame with the decoder registered for its
// tag. ok is false when the tag is unknown; that is not an error, the
// caller decides whether to skip or stash the raw frame.
func (r *Registry) Decode(frame *wire.ContentFrame) (c Content, ok bool, err error) {
	r.mu.RLock()
	fn, known := r.decoders[frame.Tag]
	r.mu.RUnlock()

	if !known {
		return nil, false, nil
	}

	c, err = fn(frame.Bytes)
	if err != nil {
		return nil, true, fmt.Errorf("content tag %d: %w: %v", frame.Tag, wire.ErrDecode, err)
	}
	return c, true, nil
}
