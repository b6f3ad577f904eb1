package codec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

var (
	encryptionMagic = []byte("ENC1")

	ErrEncryptionKey = errors.New("codec: encryption key must be 16, 24, or 32 bytes")
	ErrDecryptFailed = errors.New("codec: decrypt failed")
)

// Encrypted seals the output of an inner codec with AES-GCM. Build it with
// NewEncrypted; the zero value reports ErrEncryptionKey.
type Encrypted[V any] struct {
	inner Codec[V]
	aead  cipher.AEAD
}

// NewEncrypted wraps inner with AES-GCM using key (16, 24 or 32 bytes).
func NewEncrypted[V any](inner Codec[V], key []byte) (Encrypted[V], error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return Encrypted[V]{}, ErrEncryptionKey
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return Encrypted[V]{}, err
	}
	return Encrypted[V]{inner: inner, aead: aead}, nil
}

func (c Encrypted[V]) Encode(v V) ([]byte, error) {
	if c.aead == nil {
		return nil, ErrEncryptionKey
	}
	plain, err := c.inner.Encode(v)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ct := c.aead.Seal(nil, nonce, plain, nil)
	buf := make([]byte, 0, len(encryptionMagic)+1+len(nonce)+len(ct))
	buf = append(buf, encryptionMagic...)
	buf = append(buf, byte(len(nonce)))
	buf = append(buf, nonce...)
	buf = append(buf, ct...)
	return buf, nil
}

// Decode rejects payloads that were not sealed by Encode.
func (c Encrypted[V]) Decode(b []byte) (V, error) {
	var zero V
	if c.aead == nil {
		return zero, ErrEncryptionKey
	}
	if !bytes.HasPrefix(b, encryptionMagic) || len(b) < len(encryptionMagic)+1 {
		return zero, ErrDecryptFailed
	}
	nonceLen := int(b[len(encryptionMagic)])
	offset := len(encryptionMagic) + 1
	if len(b) < offset+nonceLen {
		return zero, ErrDecryptFailed
	}
	plain, err := c.aead.Open(nil, b[offset:offset+nonceLen], b[offset+nonceLen:], nil)
	if err != nil {
		return zero, ErrDecryptFailed
	}
	return c.inner.Decode(plain)
}
