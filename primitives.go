package securearc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// aeadEngine seals and opens AEAD regions: key slots, the central
// directory, and per-file payload regions all go through the same
// interface, selected once per archive by its AEADID.
type aeadEngine interface {
	Seal(nonce, plaintext, aad []byte) []byte
	Open(nonce, ciphertext, aad []byte) ([]byte, error)
	NonceSize() int
	Overhead() int
}

type stdAEADEngine struct {
	aead cipher.AEAD
}

func (e *stdAEADEngine) Seal(nonce, plaintext, aad []byte) []byte {
	return e.aead.Seal(nil, nonce, plaintext, aad)
}

func (e *stdAEADEngine) Open(nonce, ciphertext, aad []byte) ([]byte, error) {
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrIntegrityCheckFailed
	}
	return plaintext, nil
}

func (e *stdAEADEngine) NonceSize() int { return e.aead.NonceSize() }
func (e *stdAEADEngine) Overhead() int  { return e.aead.Overhead() }

// newAEADEngine builds the AEAD implementation for id, keyed with key.
// id is a closed, on-disk enumeration (spec.md's Polymorphism design
// note), so this dispatch table is the only place that grows when a new
// algorithm is added.
func newAEADEngine(id AEADID, key []byte) (aeadEngine, error) {
	switch id {
	case AEADAES256GCM:
		if len(key) != 32 {
			return nil, fmt.Errorf("AES-256-GCM requires a 32-byte key, got %d", len(key))
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("create AES cipher: %w", err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("create GCM: %w", err)
		}
		return &stdAEADEngine{aead: aead}, nil
	case AEADChaCha20Poly1305:
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("ChaCha20-Poly1305 requires a %d-byte key, got %d",
				chacha20poly1305.KeySize, len(key))
		}
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("create ChaCha20-Poly1305: %w", err)
		}
		return &stdAEADEngine{aead: aead}, nil
	default:
		return nil, fmt.Errorf("unsupported AEAD id %d", id)
	}
}

// randomBytes draws n bytes of CSPRNG output, used for salts, nonces, and
// the destruction overwrite.
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return b, nil
}

// newNonce draws a fresh 12-byte nonce. Every AEAD region in the archive
// uses its own nonce drawn from the CSPRNG, never a counter, matching
// invariant 6 (nonces unique within one archive).
func newNonce() ([NonceSize]byte, error) {
	var n [NonceSize]byte
	b, err := randomBytes(NonceSize)
	if err != nil {
		return n, err
	}
	copy(n[:], b)
	return n, nil
}

// constantTimeEqual compares two byte slices in constant time, required
// everywhere a MAC or tag is verified.
func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
