package securearc

import (
	"bytes"
	"testing"
)

func TestAEADEngineRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		id   AEADID
	}{
		{"aes-256-gcm", AEADAES256GCM},
		{"chacha20-poly1305", AEADChaCha20Poly1305},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := randomBytes(MasterKeySize)
			if err != nil {
				t.Fatalf("randomBytes: %v", err)
			}
			engine, err := newAEADEngine(tt.id, key)
			if err != nil {
				t.Fatalf("newAEADEngine: %v", err)
			}
			nonce, err := newNonce()
			if err != nil {
				t.Fatalf("newNonce: %v", err)
			}
			plaintext := []byte("the quick brown fox jumps over the lazy dog")
			aad := []byte("aad-binding")

			ciphertext := engine.Seal(nonce[:], plaintext, aad)
			got, err := engine.Open(nonce[:], ciphertext, aad)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if !bytes.Equal(got, plaintext) {
				t.Errorf("round trip mismatch: got %q, want %q", got, plaintext)
			}
		})
	}
}

func TestAEADEngineRejectsTamperedCiphertext(t *testing.T) {
	key, _ := randomBytes(MasterKeySize)
	engine, err := newAEADEngine(AEADAES256GCM, key)
	if err != nil {
		t.Fatalf("newAEADEngine: %v", err)
	}
	nonce, _ := newNonce()
	ciphertext := engine.Seal(nonce[:], []byte("payload"), nil)
	ciphertext[0] ^= 0xFF

	if _, err := engine.Open(nonce[:], ciphertext, nil); err == nil {
		t.Error("expected Open to reject a tampered ciphertext")
	}
}

func TestAEADEngineRejectsWrongAAD(t *testing.T) {
	key, _ := randomBytes(MasterKeySize)
	engine, err := newAEADEngine(AEADChaCha20Poly1305, key)
	if err != nil {
		t.Fatalf("newAEADEngine: %v", err)
	}
	nonce, _ := newNonce()
	ciphertext := engine.Seal(nonce[:], []byte("payload"), []byte("slot:0"))

	if _, err := engine.Open(nonce[:], ciphertext, []byte("slot:1")); err == nil {
		t.Error("expected Open to reject a mismatched AAD")
	}
}

func TestNewAEADEngineRejectsUnknownID(t *testing.T) {
	key, _ := randomBytes(MasterKeySize)
	if _, err := newAEADEngine(AEADID(99), key); err == nil {
		t.Error("expected an error for an unknown AEAD id")
	}
}

func TestConstantTimeEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b []byte
		want bool
	}{
		{"equal", []byte("abc"), []byte("abc"), true},
		{"different length", []byte("abc"), []byte("ab"), false},
		{"different content", []byte("abc"), []byte("abd"), false},
		{"both empty", nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := constantTimeEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("constantTimeEqual() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewNonceUnique(t *testing.T) {
	a, err := newNonce()
	if err != nil {
		t.Fatalf("newNonce: %v", err)
	}
	b, err := newNonce()
	if err != nil {
		t.Fatalf("newNonce: %v", err)
	}
	if a == b {
		t.Error("two successive nonces must not collide")
	}
}
