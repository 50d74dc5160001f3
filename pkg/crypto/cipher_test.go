package crypto

import (
	"bytes"
	"testing"
)

func TestXChaChaRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, KeySize)
	c, err := NewXChaCha(key)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	plain := []byte("client-secret-value")
	sealed, err := c.Encrypt(plain)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(sealed, plain) {
		t.Fatal("sealed payload leaks plaintext")
	}
	got, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestXChaChaRejectsBadKeyAndPayload(t *testing.T) {
	if _, err := NewXChaCha([]byte("short")); err == nil {
		t.Fatal("expected key-size error")
	}
	c, err := NewXChaCha(bytes.Repeat([]byte{0x01}, KeySize))
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	if _, err := c.Decrypt([]byte("tiny")); err == nil {
		t.Fatal("expected error on truncated payload")
	}
	other, _ := NewXChaCha(bytes.Repeat([]byte{0x02}, KeySize))
	sealed, _ := other.Encrypt([]byte("value"))
	if _, err := c.Decrypt(sealed); err == nil {
		t.Fatal("expected error decrypting with wrong key")
	}
}
