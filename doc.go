// Package securearc implements the SecureArc archive format: an encrypted,
// compressed container with a self-destruct property. After a configurable
// number of failed password-unlock attempts, the archive overwrites its own
// key material so that no later unlock, even with the right password, can
// recover the contents.
//
// # Overview
//
// An archive is a single file: a security header, a table of key slots, an
// encrypted central directory, and a payload region of per-file ciphertext.
// The header carries the attempt counter and destroyed flag, so the whole
// policy lives inside the file - there is no external database and no
// trusted clock.
//
// # Basic usage
//
//	cfg := securearc.Config{
//	    AEAD:        securearc.AEADAES256GCM,
//	    Compression: securearc.CompressionZstd,
//	    KDF:         securearc.KDFArgon2id,
//	    MaxAttempts: 5,
//	}
//	err := securearc.Create(cfg, inputs, []byte("correct horse"), nil, "out.sarc", nil, nil)
//
//	h, err := securearc.Open("out.sarc")
//	err = h.Unlock([]byte("correct horse"))
//	entries, err := h.List()
//	err = h.Extract(entries[0], sink, nil)
//
// # Security model
//
// Protected against:
//   - Unauthorized access to the archive at rest (AEAD over directory and
//     payload, memory-hard password KDF).
//   - Unbounded password guessing against the archive itself (self-destruct
//     after MaxAttempts failures).
//   - Accidental tampering with the security header (HMAC check on open).
//
// Not protected against:
//   - Offline brute force against a copy of the archive file made before an
//     attempt - this is mitigated only by password strength and the KDF
//     cost, not solved.
//   - Secure deletion of the original plaintext outside the archive.
//   - Forward secrecy across repeated unlocks of the same archive.
//
// # File format
//
//	offset  size     field
//	0       8        magic "SECARC01"
//	8       varlen   security header (u32 length prefix)
//	...     varlen   slot table (u16 count, then slots)
//	...     varlen   encrypted directory (u64 length, ciphertext||tag, 12-byte nonce)
//	...     rest     payload region (AEAD regions addressed by directory offsets)
package securearc
