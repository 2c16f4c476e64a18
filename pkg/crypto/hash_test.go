package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestHash(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string // BLAKE2b-256 hash in hex
	}{
		{
			name:     "empty input",
			input:    []byte{},
			expected: "0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8",
		},
		{
			name:     "simple string",
			input:    []byte("hello world"),
			expected: "256c83b297114d201b30179f3f0ef0cace9783622da5974326b436178aeef610",
		},
		{
			name:  "arbitrary data",
			input: []byte("The quick brown fox jumps over the lazy dog"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash := Hash(tt.input)

			if len(hash) != 32 {
				t.Errorf("Hash() length = %d, want 32", len(hash))
			}

			if tt.expected != "" && hex.EncodeToString(hash) != tt.expected {
				t.Errorf("Hash() = %x, want %s", hash, tt.expected)
			}

			// Deterministic
			if !bytes.Equal(hash, Hash(tt.input)) {
				t.Error("Hash() not deterministic")
			}
		})
	}
}

func TestHashString(t *testing.T) {
	id := HashString([]byte("frame bytes"))

	if len(id) != 64 {
		t.Errorf("HashString() length = %d, want 64", len(id))
	}
	if id != HashString([]byte("frame bytes")) {
		t.Error("HashString() not deterministic")
	}
	if id == HashString([]byte("other frame bytes")) {
		t.Error("HashString() collided on different input")
	}
}

func TestGenerateSalt(t *testing.T) {
	a := GenerateSalt()
	b := GenerateSalt()

	// Two random 64-bit values colliding means the RNG is broken.
	if a == b {
		t.Errorf("GenerateSalt() returned %d twice", a)
	}
}

func TestGenerateNonce(t *testing.T) {
	nonce, err := GenerateNonce(12)
	if err != nil {
		t.Fatalf("GenerateNonce() error = %v", err)
	}
	if len(nonce) != 12 {
		t.Errorf("GenerateNonce() length = %d, want 12", len(nonce))
	}

	other, err := GenerateNonce(12)
	if err != nil {
		t.Fatalf("GenerateNonce() error = %v", err)
	}
	if bytes.Equal(nonce, other) {
		t.Error("GenerateNonce() returned identical nonces")
	}
}
