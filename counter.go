package securearc

// counter.go implements the attempt-counter state machine: Active(n) on a
// wrong password moves to Active(n+1), or to Destroyed when n+1 reaches
// MaxAttempts; a right password resets to Active(0). Destruction is
// irreversible and overwrites the key-slot region and KDF parameter bytes
// with fresh CSPRNG output, the same "don't just flip a flag, scrub the
// recoverable bytes" approach the teacher's key rotation takes to retiring
// an old key (key_rotation.go).

// recordSuccess resets the attempt counter after a correct password and
// re-signs the header. Callers must persist the header to disk before
// returning control to the caller of Unlock (spec.md §5's
// persist-before-return discipline).
func recordSuccess(h *securityHeader) error {
	h.CurrentAttempts = 0
	return h.sign()
}

// recordFailure advances the attempt counter after a wrong password. When
// the new count reaches MaxAttempts it destroys the archive in place and
// reports destroyed=true; otherwise it just re-signs the header with the
// incremented count. Either way, the caller must persist before returning.
func recordFailure(h *securityHeader, slots []*keySlot) (destroyed bool, err error) {
	if h.Destroyed {
		return true, nil
	}
	h.CurrentAttempts++
	if h.CurrentAttempts >= h.MaxAttempts {
		if err := destroyArchive(h, slots); err != nil {
			return false, err
		}
		return true, nil
	}
	if err := h.sign(); err != nil {
		return false, err
	}
	return false, nil
}

// destroyArchive makes the archive permanently unrecoverable: every slot's
// nonce and ciphertext bytes are replaced with random data of the same
// length (so no prior key-recovery attempt can be distinguished from any
// other), the KDF parameter fields are randomized so even a memorized
// password can no longer reproduce the original KEK derivation, and the
// header is marked destroyed and re-signed. CurrentAttempts is pinned to
// MaxAttempts so a partially-applied destruction still reads as destroyed.
func destroyArchive(h *securityHeader, slots []*keySlot) error {
	for _, s := range slots {
		randNonce, err := newNonce()
		if err != nil {
			return err
		}
		s.Nonce = randNonce
		junk, err := randomBytes(len(s.Ciphertext))
		if err != nil {
			return err
		}
		s.Ciphertext = junk
		s.Active = false
	}

	junkMem, err := randomUint32()
	if err != nil {
		return err
	}
	junkTime, err := randomUint32()
	if err != nil {
		return err
	}
	junkIter, err := randomUint32()
	if err != nil {
		return err
	}
	h.Argon2 = Argon2Params{MemoryKiB: junkMem, Time: junkTime, Parallelism: 0}
	h.PBKDF2 = PBKDF2Params{Iterations: junkIter}

	h.Destroyed = true
	h.CurrentAttempts = h.MaxAttempts
	return h.sign()
}

// randomUint32 returns a CSPRNG-derived uint32, used to scrub KDF parameter
// fields on destruction without leaving a recognizable pattern (e.g. all
// zero) behind.
func randomUint32() (uint32, error) {
	b, err := randomBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// remainingAttempts reports attempts left before destruction, for
// PublicInfo and for error messages.
func remainingAttempts(h *securityHeader) uint8 {
	if h.Destroyed || h.CurrentAttempts >= h.MaxAttempts {
		return 0
	}
	return h.MaxAttempts - h.CurrentAttempts
}
