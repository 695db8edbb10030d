// Package pickle protects serialized crypto sessions at rest.
//
// The crypto layer pickles its session objects and passes the bytes through
// a Sealer before they reach the cache, so the cache only ever stores
// ciphertext.
package pickle

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// KeyLen is the size of the derived sealing key.
const KeyLen = chacha20poly1305.KeySize

var hkdfInfo = []byte("mxcache/pickle/v1")

// ErrShort is returned when a sealed blob is shorter than a nonce.
var ErrShort = errors.New("sealed pickle too short")

// Sealer encrypts pickles with XChaCha20-Poly1305 under a key derived from a
// caller secret.
type Sealer struct {
	key []byte
}

// NewSealer derives the sealing key from secret with HKDF-SHA256.
func NewSealer(secret []byte) (*Sealer, error) {
	if len(secret) == 0 {
		return nil, errors.New("pickle secret is empty")
	}
	r := hkdf.New(sha256.New, secret, nil, hkdfInfo)
	key := make([]byte, KeyLen)
	if _, err := r.Read(key); err != nil {
		return nil, fmt.Errorf("derive pickle key: %w", err)
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts plaintext. aad binds the blob to its storage slot (for
// example a session id) and must be given again to Open.
func (s *Sealer) Seal(plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, aad), nil
}

// Open decrypts a blob produced by Seal.
func (s *Sealer) Open(sealed, aad []byte) ([]byte, error) {
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return nil, ErrShort
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := sealed[:chacha20poly1305.NonceSizeX]
	return aead.Open(nil, nonce, sealed[chacha20poly1305.NonceSizeX:], aad)
}
