package securearc

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
)

// Magic identifies a SecureArc archive. It is the first 8 bytes of the file.
var Magic = [8]byte{'S', 'E', 'C', 'A', 'R', 'C', '0', '1'}

// FormatVersion is the current on-disk format version.
const FormatVersion uint16 = 1

// securityHeader is the small, fixed-schema record near the start of an
// archive: format version, KDF identity and parameters, salt, AEAD and
// compression ids, the attempt counter and destroyed flag, an optional
// public file-count hint, and a header MAC. Binary layout and the
// WriteTo/ReadFrom idiom are grounded on the teacher's FileHeader
// (file_format.go): binary.Write into a bytes.Buffer, little-endian,
// one Write call out.
type securityHeader struct {
	FormatVersion   uint16
	KDF             KDFID
	Argon2          Argon2Params
	PBKDF2          PBKDF2Params
	AEAD            AEADID
	Compression     CompressionID
	MaxAttempts     uint8
	CurrentAttempts uint8
	Destroyed       bool
	Salt            [SaltSize]byte
	HasFileCount    bool
	FileCount       uint32
	MAC             [32]byte
}

// encodeBody writes every field except MAC, in wire order. Used both to
// produce the bytes that get MAC-covered and to serialize the header.
func (h *securityHeader) encodeBody(w io.Writer) error {
	fields := []any{
		h.FormatVersion,
		uint8(h.KDF),
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}

	// KDF parameters: Argon2id's three costs, or PBKDF2's iteration count,
	// always written as the same three u32 slots so the header has a fixed
	// shape regardless of which KDF a given archive uses.
	var memOrIter, timeOrZero, parallelism uint32
	switch h.KDF {
	case KDFArgon2id:
		memOrIter = h.Argon2.MemoryKiB
		timeOrZero = h.Argon2.Time
		parallelism = uint32(h.Argon2.Parallelism)
	case KDFPBKDF2SHA256:
		memOrIter = h.PBKDF2.Iterations
	}
	for _, f := range []uint32{memOrIter, timeOrZero, parallelism} {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}

	for _, f := range []uint8{uint8(h.AEAD), uint8(h.Compression), h.MaxAttempts, h.CurrentAttempts, boolToByte(h.Destroyed)} {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}

	if _, err := w.Write(h.Salt[:]); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, boolToByte(h.HasFileCount)); err != nil {
		return err
	}
	if h.HasFileCount {
		if err := binary.Write(w, binary.LittleEndian, h.FileCount); err != nil {
			return err
		}
	}
	return nil
}

// WriteTo serializes the header, including the trailing MAC, to w.
func (h *securityHeader) WriteTo(w io.Writer) (int64, error) {
	buf := new(bytes.Buffer)
	if err := h.encodeBody(buf); err != nil {
		return 0, fmt.Errorf("encode security header: %w", err)
	}
	if _, err := buf.Write(h.MAC[:]); err != nil {
		return 0, err
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// bodyBytes returns the MAC-covered portion of the header, used both to
// compute and to verify the MAC.
func (h *securityHeader) bodyBytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := h.encodeBody(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// headerMACKey derives the header MAC key from the salt alone. Per
// spec.md §4.3, this key is reconstructible from public fields, so the
// MAC authenticates against accidental tampering and naive rollback, not
// against an attacker with write access to the file.
func headerMACKey(salt [SaltSize]byte) []byte {
	mac := hmac.New(sha256.New, []byte(headerMACDomain))
	mac.Write(salt[:])
	return mac.Sum(nil)
}

// computeMAC recomputes the header MAC over the current field values.
func (h *securityHeader) computeMAC() ([32]byte, error) {
	var out [32]byte
	body, err := h.bodyBytes()
	if err != nil {
		return out, err
	}
	mac := hmac.New(sha256.New, headerMACKey(h.Salt))
	mac.Write(body)
	copy(out[:], mac.Sum(nil))
	return out, nil
}

// sign recomputes and stores the header MAC, called after every mutation
// (initial creation, counter increment, reset on success, destruction).
func (h *securityHeader) sign() error {
	mac, err := h.computeMAC()
	if err != nil {
		return err
	}
	h.MAC = mac
	return nil
}

// verify checks the stored MAC against a freshly computed one in constant
// time. A mismatch means HeaderCorrupted, not InvalidPassword - the KDF
// must not run when this fails (spec.md §4.8).
func (h *securityHeader) verify() error {
	want, err := h.computeMAC()
	if err != nil {
		return err
	}
	if !constantTimeEqual(want[:], h.MAC[:]) {
		return newHeaderCorruptedError("open", "", "header MAC mismatch", nil)
	}
	return nil
}

// readSecurityHeader parses a header (without verifying the MAC - callers
// decide when to verify so Inspect can read fields while still checking
// integrity separately).
func readSecurityHeader(r io.Reader) (*securityHeader, error) {
	h := &securityHeader{}

	if err := binary.Read(r, binary.LittleEndian, &h.FormatVersion); err != nil {
		return nil, newFormatError("open", "", "truncated security header", err)
	}
	if h.FormatVersion != FormatVersion {
		return nil, newFormatError("open", "", fmt.Sprintf("unsupported format version %d", h.FormatVersion), nil)
	}

	var kdfID uint8
	if err := binary.Read(r, binary.LittleEndian, &kdfID); err != nil {
		return nil, newFormatError("open", "", "truncated security header", err)
	}
	h.KDF = KDFID(kdfID)
	if h.KDF != KDFArgon2id && h.KDF != KDFPBKDF2SHA256 {
		return nil, newFormatError("open", "", "unknown KDF identifier", nil)
	}

	var memOrIter, timeOrZero, parallelism uint32
	for _, f := range []*uint32{&memOrIter, &timeOrZero, &parallelism} {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return nil, newFormatError("open", "", "truncated security header", err)
		}
	}
	switch h.KDF {
	case KDFArgon2id:
		h.Argon2 = Argon2Params{MemoryKiB: memOrIter, Time: timeOrZero, Parallelism: uint8(parallelism)}
	case KDFPBKDF2SHA256:
		h.PBKDF2 = PBKDF2Params{Iterations: memOrIter}
	}

	var aeadID, compID, maxAttempts, curAttempts, destroyed uint8
	for _, f := range []*uint8{&aeadID, &compID, &maxAttempts, &curAttempts, &destroyed} {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return nil, newFormatError("open", "", "truncated security header", err)
		}
	}
	h.AEAD = AEADID(aeadID)
	if h.AEAD != AEADAES256GCM && h.AEAD != AEADChaCha20Poly1305 {
		return nil, newFormatError("open", "", "unknown AEAD identifier", nil)
	}
	h.Compression = CompressionID(compID)
	if h.Compression > CompressionBrotli {
		return nil, newFormatError("open", "", "unknown compression identifier", nil)
	}
	h.MaxAttempts = maxAttempts
	h.CurrentAttempts = curAttempts
	h.Destroyed = destroyed != 0

	if _, err := io.ReadFull(r, h.Salt[:]); err != nil {
		return nil, newFormatError("open", "", "truncated security header", err)
	}

	var hasCount uint8
	if err := binary.Read(r, binary.LittleEndian, &hasCount); err != nil {
		return nil, newFormatError("open", "", "truncated security header", err)
	}
	h.HasFileCount = hasCount != 0
	if h.HasFileCount {
		if err := binary.Read(r, binary.LittleEndian, &h.FileCount); err != nil {
			return nil, newFormatError("open", "", "truncated security header", err)
		}
	}

	if _, err := io.ReadFull(r, h.MAC[:]); err != nil {
		return nil, newFormatError("open", "", "truncated security header", err)
	}

	if h.MaxAttempts < MinMaxAttempts || h.MaxAttempts > MaxMaxAttempts {
		return nil, newFormatError("open", "", "max_attempts out of bounds", nil)
	}
	if h.CurrentAttempts > h.MaxAttempts {
		return nil, newFormatError("open", "", "current_attempts exceeds max_attempts", nil)
	}

	return h, nil
}

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
