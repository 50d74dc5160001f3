// Package crypto provides the symmetric cipher abstraction used for
// sensitive property values and the local secret store.
package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher seals and opens opaque byte payloads. Implementations are
// algorithm-pluggable; the sealed form is implementation-defined.
type Cipher interface {
	Encrypt(plain []byte) ([]byte, error)
	Decrypt(sealed []byte) ([]byte, error)
}

// XChaCha implements Cipher with XChaCha20-Poly1305. The random nonce is
// prefixed to the ciphertext.
type XChaCha struct {
	aead aeadSuite
}

type aeadSuite interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
}

// KeySize is the required key length in bytes.
const KeySize = chacha20poly1305.KeySize

// NewXChaCha builds a cipher from a raw key.
func NewXChaCha(key []byte) (*XChaCha, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("crypto: key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &XChaCha{aead: aead}, nil
}

func (c *XChaCha) Encrypt(plain []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plain, nil), nil
}

func (c *XChaCha) Decrypt(sealed []byte) ([]byte, error) {
	size := c.aead.NonceSize()
	if len(sealed) < size {
		return nil, fmt.Errorf("crypto: sealed payload too short")
	}
	plain, err := c.aead.Open(nil, sealed[:size], sealed[size:], nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt: %w", err)
	}
	return plain, nil
}
