// Package crypto provides hashing and the pluggable payload encryption
// strategies used by conversations.
package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Hash generates a BLAKE2b-256 hash
func Hash(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

// HashString generates a BLAKE2b-256 hash and returns it hex encoded.
// Message ids are derived this way: equal frames hash to equal ids.
func HashString(data []byte) string {
	return hex.EncodeToString(Hash(data))
}

// GenerateSalt generates a random 64-bit envelope salt
func GenerateSalt() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// The salt carries no secrecy; never fail the send path for it.
		return 0
	}
	return binary.BigEndian.Uint64(buf[:])
}

// GenerateNonce generates a random nonce of the given size
func GenerateNonce(size int) ([]byte, error) {
	nonce := make([]byte, size)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return nonce, nil
}
