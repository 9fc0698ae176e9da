package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
)

const nonceSize = 12

var (
	ErrInvalidKey          = errors.New("crypto: key must be 32 bytes hex encoded")
	ErrMalformedCiphertext = errors.New("crypto: ciphertext shorter than nonce")
)

// HashScheme selects how lookup hashes are derived. Every writer of
// recipients.phone_hash must use the same scheme as this process.
type HashScheme string

const (
	// HashSHA256 is plain SHA-256 of the normalised value, the scheme the
	// recipient upload pipeline writes.
	HashSHA256 HashScheme = "sha256"
	// HashKeyed is BLAKE2b-256 keyed with a key derived from the master key.
	HashKeyed HashScheme = "keyed"
)

// ParseHashScheme accepts "sha256" and "keyed".
func ParseHashScheme(s string) (HashScheme, error) {
	switch HashScheme(s) {
	case HashSHA256, HashKeyed:
		return HashScheme(s), nil
	}
	return "", fmt.Errorf("crypto: unknown hash scheme %q", s)
}

// Envelope encrypts recipient PII at rest and derives lookup hashes.
// Ciphertext layout is nonce(12) || AES-256-GCM sealed box.
type Envelope struct {
	aead    cipher.AEAD
	hashKey []byte
	scheme  HashScheme
	rand    io.Reader
}

type Option func(*Envelope)

// WithHashScheme overrides the default keyed hash.
func WithHashScheme(scheme HashScheme) Option {
	return func(e *Envelope) { e.scheme = scheme }
}

// NewEnvelope builds an Envelope from a 64 character hex key.
func NewEnvelope(hexKey string, opts ...Option) (*Envelope, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidKey
	}
	e, err := newEnvelope(key, rand.Reader)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func newEnvelope(key []byte, r io.Reader) (*Envelope, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm: %w", err)
	}

	hashKey := make([]byte, 32)
	kdf := hkdf.New(sha256.New, key, nil, []byte("recipient-lookup-hash"))
	if _, err := io.ReadFull(kdf, hashKey); err != nil {
		return nil, fmt.Errorf("crypto: derive hash key: %w", err)
	}

	return &Envelope{aead: aead, hashKey: hashKey, scheme: HashKeyed, rand: r}, nil
}

// Encrypt returns nil for an empty value.
func (e *Envelope) Encrypt(plaintext string) ([]byte, error) {
	if plaintext == "" {
		return nil, nil
	}
	nonce := make([]byte, nonceSize, nonceSize+len(plaintext)+e.aead.Overhead())
	if _, err := io.ReadFull(e.rand, nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}
	return e.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt returns "" for an empty blob.
func (e *Envelope) Decrypt(blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}
	if len(blob) < nonceSize {
		return "", ErrMalformedCiphertext
	}
	plain, err := e.aead.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("crypto: open: %w", err)
	}
	return string(plain), nil
}

// Hash is deterministic for a given key and only used for equality lookups.
func (e *Envelope) Hash(plaintext string) []byte {
	if e.scheme == HashSHA256 {
		sum := sha256.Sum256([]byte(plaintext))
		return sum[:]
	}
	h, _ := blake2b.New256(e.hashKey)
	h.Write([]byte(plaintext))
	return h.Sum(nil)
}
