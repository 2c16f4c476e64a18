package crypto

import (
	stdcipher "crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/umbra-chat/umbra/pkg/wire"
)

// Cipher encrypts frame bytes into an algorithm-tagged EncryptedBytes
// variant and decrypts the matching variant back. Which cipher a
// conversation uses is dictated by its kind: private conversations hold
// a session cipher slot, inbox invites are plaintext because no shared
// session key exists yet.
//
// Decrypt fails with a wire.ErrDecode-wrapped error when the encryption
// field is absent or the variant does not match what the cipher expects.
type Cipher interface {
	Encrypt(plaintext []byte) (*wire.EncryptedBytes, error)
	Decrypt(enc *wire.EncryptedBytes) ([]byte, error)
}

var (
	ErrNoEncryption   = fmt.Errorf("crypto: missing encryption field: %w", wire.ErrDecode)
	ErrCipherMismatch = fmt.Errorf("crypto: encryption variant mismatch: %w", wire.ErrDecode)
	ErrDecryptFailed  = fmt.Errorf("crypto: decryption failed: %w", wire.ErrDecode)
)

// PlaintextCipher passes bytes through untouched. Inbox conversations
// use it for invite frames.
type PlaintextCipher struct{}

func (PlaintextCipher) Encrypt(plaintext []byte) (*wire.EncryptedBytes, error) {
	return &wire.EncryptedBytes{
		Encryption: &wire.Plaintext{Payload: append([]byte(nil), plaintext...)},
	}, nil
}

func (PlaintextCipher) Decrypt(enc *wire.EncryptedBytes) ([]byte, error) {
	if enc == nil || enc.Encryption == nil {
		return nil, ErrNoEncryption
	}
	pt, ok := enc.Encryption.(*wire.Plaintext)
	if !ok {
		return nil, ErrCipherMismatch
	}
	return pt.Payload, nil
}

// ReversedCipher is the placeholder session cipher: it reverses the
// byte order. It provides no confidentiality. Replace with
// SessionCipher once a session secret is available.
type ReversedCipher struct{}

func (ReversedCipher) Encrypt(plaintext []byte) (*wire.EncryptedBytes, error) {
	return &wire.EncryptedBytes{
		Encryption: &wire.Reversed{Payload: reverse(plaintext)},
	}, nil
}

func (ReversedCipher) Decrypt(enc *wire.EncryptedBytes) ([]byte, error) {
	if enc == nil || enc.Encryption == nil {
		return nil, ErrNoEncryption
	}
	r, ok := enc.Encryption.(*wire.Reversed)
	if !ok {
		return nil, ErrCipherMismatch
	}
	return reverse(r.Payload), nil
}

func reverse(in []byte) []byte {
	out := make([]byte, len(in))
	for i, b := range in {
		out[len(in)-1-i] = b
	}
	return out
}

// SessionCipher is the authenticated session cipher:
// ChaCha20-Poly1305 keyed from a 32-byte session secret. How the
// secret is agreed is out of scope; the cipher only consumes it.
type SessionCipher struct {
	aead stdcipher.AEAD
}

// NewSessionCipher creates a session cipher from a 32-byte secret.
func NewSessionCipher(key []byte) (*SessionCipher, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: session key: %w", err)
	}
	return &SessionCipher{aead: aead}, nil
}

func (c *SessionCipher) Encrypt(plaintext []byte) (*wire.EncryptedBytes, error) {
	nonce, err := GenerateNonce(chacha20poly1305.NonceSize)
	if err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}

	return &wire.EncryptedBytes{
		Encryption: &wire.ChaCha20Poly1305{
			Nonce:   nonce,
			Payload: c.aead.Seal(nil, nonce, plaintext, nil),
		},
	}, nil
}

func (c *SessionCipher) Decrypt(enc *wire.EncryptedBytes) ([]byte, error) {
	if enc == nil || enc.Encryption == nil {
		return nil, ErrNoEncryption
	}
	cc, ok := enc.Encryption.(*wire.ChaCha20Poly1305)
	if !ok {
		return nil, ErrCipherMismatch
	}
	if len(cc.Nonce) != chacha20poly1305.NonceSize {
		return nil, ErrDecryptFailed
	}

	plaintext, err := c.aead.Open(nil, cc.Nonce, cc.Payload, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
