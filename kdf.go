package securearc

import (
	"crypto/sha256"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// deriveKEK turns a password and salt into a 32-byte key-encryption key,
// per the KDF identified by id. Generalized from the teacher's
// PasswordKeyProvider.DeriveKey: there the KDF choice and parameters live
// on a long-lived provider object; here they live in the archive's
// security header, since a reopened handle has no object to hold them in
// between process runs.
func deriveKEK(id KDFID, password, salt []byte, argon2p Argon2Params, pbkdf2p PBKDF2Params) ([]byte, error) {
	switch id {
	case KDFArgon2id:
		if err := validateArgon2Params(argon2p); err != nil {
			return nil, err
		}
		return argon2.IDKey(password, salt, argon2p.Time, argon2p.MemoryKiB, argon2p.Parallelism, MasterKeySize), nil
	case KDFPBKDF2SHA256:
		if err := validatePBKDF2Params(pbkdf2p); err != nil {
			return nil, err
		}
		return pbkdf2.Key(password, salt, int(pbkdf2p.Iterations), MasterKeySize, sha256.New), nil
	default:
		return nil, newFormatError("unlock", "", "unknown KDF identifier in header", nil)
	}
}

// validateArgon2Params enforces floors on header-supplied KDF parameters
// before Argon2id is invoked at all, capping the DoS a malicious archive
// could impose on an unlock attempt (spec.md §4.2).
func validateArgon2Params(p Argon2Params) error {
	if p.MemoryKiB < MinArgon2Memory {
		return newFormatError("unlock", "", "argon2 memory cost below accepted minimum", nil)
	}
	if p.Time < MinArgon2Time {
		return newFormatError("unlock", "", "argon2 time cost below accepted minimum", nil)
	}
	if p.Parallelism == 0 {
		return newFormatError("unlock", "", "argon2 parallelism must be at least 1", nil)
	}
	return nil
}

// validatePBKDF2Params rejects pathological iteration counts, including
// zero, before the KDF runs.
func validatePBKDF2Params(p PBKDF2Params) error {
	if p.Iterations < MinPBKDF2Iterations {
		return newFormatError("unlock", "", "pbkdf2 iteration count below accepted minimum", nil)
	}
	return nil
}
