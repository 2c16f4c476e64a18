package reliability

import (
	"encoding/binary"

	"github.com/umbra-chat/umbra/pkg/crypto"
)

const (
	// SummarySize is the dedup summary filter size in bytes.
	SummarySize = 32

	summaryProbes = 3
)

// summarize builds a small bloom filter over message ids. It is a
// best-effort hint for peers, not a dedup authority: false positives
// are expected at this size.
func summarize(ids []string) []byte {
	filter := make([]byte, SummarySize)
	for _, id := range ids {
		h := crypto.Hash([]byte(id))
		for i := 0; i < summaryProbes; i++ {
			bit := binary.BigEndian.Uint32(h[i*4:]) % (SummarySize * 8)
			filter[bit/8] |= 1 << (bit % 8)
		}
	}
	return filter
}

// SummaryContains reports whether the filter may contain the id.
func SummaryContains(filter []byte, id string) bool {
	if len(filter) != SummarySize {
		return false
	}
	h := crypto.Hash([]byte(id))
	for i := 0; i < summaryProbes; i++ {
		bit := binary.BigEndian.Uint32(h[i*4:]) % (SummarySize * 8)
		if filter[bit/8]&(1<<(bit%8)) == 0 {
			return false
		}
	}
	return true
}
