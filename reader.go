package securearc

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kharonsec/securearc/codec"
	"github.com/kharonsec/securearc/internal/wipe"
)

// archiveLayout records the byte offsets of each region in the file, so a
// counter update can be written back without re-serializing the whole
// archive.
type archiveLayout struct {
	headerLenOffset int64 // offset of the u32 header-length prefix
	headerOffset    int64 // offset of the header body itself
	slotTableOffset int64
	payloadOffset   int64 // start of the payload region, for Entry.Offset math
}

// Handle is an open archive. Its zero value is not usable; obtain one via
// Open. A Handle is not safe for concurrent use (spec.md §7) - callers
// needing concurrent access must open independent handles, which will
// serialize against each other through the advisory file lock.
type Handle struct {
	path   string
	file   *os.File
	header *securityHeader
	slots  []*keySlot
	layout archiveLayout

	dirCiphertext []byte
	dirNonce      [NonceSize]byte

	masterKey []byte // nil until Unlock succeeds
	entries   []Entry
	destroyed bool
}

// Open parses magic, the security header, and the slot table (without
// decrypting anything) and verifies the header MAC. It returns a handle in
// the Locked state, or in the Destroyed state if the header already says
// so; it never touches the KDF. Grounded on the teacher's streaming.go
// load path, which likewise parses a fixed header before any decryption.
func Open(path string) (*Handle, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, newIOError("open", path, err)
	}
	h := &Handle{path: path, file: f}

	r := bufio.NewReader(f)
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		f.Close()
		return nil, newFormatError("open", path, "truncated file", err)
	}
	if magic != Magic {
		f.Close()
		return nil, newFormatError("open", path, "bad magic", nil)
	}
	h.layout.headerLenOffset = 8

	var headerLen uint32
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		f.Close()
		return nil, newFormatError("open", path, "truncated security header length", err)
	}
	h.layout.headerOffset = h.layout.headerLenOffset + 4

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		f.Close()
		return nil, newFormatError("open", path, "truncated security header", err)
	}
	header, err := readSecurityHeader(bytes.NewReader(headerBytes))
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := header.verify(); err != nil {
		f.Close()
		return nil, err
	}
	h.header = header
	h.destroyed = header.Destroyed
	h.layout.slotTableOffset = h.layout.headerOffset + int64(headerLen)

	slots, err := readSlotTable(r)
	if err != nil {
		f.Close()
		return nil, err
	}
	h.slots = slots

	pos := h.layout.slotTableOffset + slotTableSize(slots)

	var dirLen uint64
	if err := binary.Read(r, binary.LittleEndian, &dirLen); err != nil {
		f.Close()
		return nil, newFormatError("open", path, "truncated directory length", err)
	}
	dirCiphertext := make([]byte, dirLen)
	if _, err := io.ReadFull(r, dirCiphertext); err != nil {
		f.Close()
		return nil, newFormatError("open", path, "truncated directory", err)
	}
	var dirNonce [NonceSize]byte
	if _, err := io.ReadFull(r, dirNonce[:]); err != nil {
		f.Close()
		return nil, newFormatError("open", path, "truncated directory nonce", err)
	}
	h.dirCiphertext = dirCiphertext
	h.dirNonce = dirNonce
	h.layout.payloadOffset = pos + 8 + int64(dirLen) + NonceSize

	return h, nil
}

// slotTableSize returns the on-disk size of a slot table, for locating the
// directory length field without re-reading.
func slotTableSize(slots []*keySlot) int64 {
	var n int64 = 2 // u16 count
	for _, s := range slots {
		n += 1 + 1 + NonceSize + 2 + int64(len(s.Ciphertext))
	}
	return n
}

// Unlock tries password against every active key slot. A match decrypts
// the central directory, resets the attempt counter, and persists the
// header before returning; any mismatch increments the counter (possibly
// triggering destruction) and persists before returning the error. Both
// paths write before returning per spec.md §5's persist-before-return
// discipline. An error that is not a password mismatch (e.g. a FormatError
// for out-of-bounds KDF parameters) is returned without touching the counter.
func (h *Handle) Unlock(password []byte) error {
	if h.destroyed {
		return newArchiveDestroyedError("unlock", h.path)
	}

	lock, err := acquire(h.path)
	if err != nil {
		return err
	}
	defer lock.release()

	masterKey, err := tryUnlockSlots(h.header, h.slots, password)
	if err != nil {
		if !errors.Is(err, ErrInvalidPassword) {
			return err
		}
		destroyed, rerr := recordFailure(h.header, h.slots)
		if rerr != nil {
			return rerr
		}
		if werr := h.persistHeaderAndSlots(); werr != nil {
			return werr
		}
		if destroyed {
			h.destroyed = true
			return newMaxAttemptsExceededError("unlock", h.path)
		}
		return newInvalidPasswordError("unlock", h.path)
	}

	entries, err := openDirectory(h.header.AEAD, masterKey, h.dirCiphertext, h.dirNonce)
	if err != nil {
		wipe.Bytes(masterKey)
		return err
	}

	if err := recordSuccess(h.header); err != nil {
		wipe.Bytes(masterKey)
		return err
	}
	if err := h.persistHeaderAndSlots(); err != nil {
		wipe.Bytes(masterKey)
		return err
	}

	h.masterKey = masterKey
	h.entries = entries
	return nil
}

// tryUnlockSlots derives one KEK from password and the archive's shared
// salt, then attempts to open every active slot with it, returning the
// first recovered master key. All
// slots must be tried (not short-circuited on the first active one) since
// password may only match a recovery slot.
func tryUnlockSlots(header *securityHeader, slots []*keySlot, password []byte) ([]byte, error) {
	kek, err := deriveKEK(header.KDF, password, header.Salt[:], header.Argon2, header.PBKDF2)
	if err != nil {
		return nil, err
	}
	defer wipe.Bytes(kek)
	engine, err := newAEADEngine(header.AEAD, kek)
	if err != nil {
		return nil, err
	}
	for _, s := range slots {
		if !s.Active {
			continue
		}
		if mk, err := openSlot(engine, s); err == nil {
			return mk, nil
		}
	}
	return nil, ErrInvalidPassword
}

// persistHeaderAndSlots rewrites the header and slot-table regions in
// place, at their fixed offsets recorded in h.layout. Both regions are
// fixed-size once written (destruction replaces slot bytes rather than
// changing the slot table's length), so this never needs to shift the
// directory or payload that follow.
func (h *Handle) persistHeaderAndSlots() error {
	headerBytes := new(bytes.Buffer)
	if _, err := h.header.WriteTo(headerBytes); err != nil {
		return err
	}
	if _, err := h.file.WriteAt(headerBytes.Bytes(), h.layout.headerOffset); err != nil {
		return newIOError("unlock", h.path, fmt.Errorf("persist header: %w", err))
	}

	slotBytes := new(bytes.Buffer)
	if err := writeSlotTable(slotBytes, h.slots); err != nil {
		return err
	}
	if _, err := h.file.WriteAt(slotBytes.Bytes(), h.layout.slotTableOffset); err != nil {
		return newIOError("unlock", h.path, fmt.Errorf("persist slot table: %w", err))
	}
	return h.file.Sync()
}

// List returns the decrypted central directory. Unlock must have
// succeeded first.
func (h *Handle) List() ([]Entry, error) {
	if h.masterKey == nil {
		return nil, newErr(KindInvalidConfig, "list", h.path, "", nil, "archive is locked", nil)
	}
	return h.entries, nil
}

// Extract decompresses and writes one entry's plaintext to dst. Unlock
// must have succeeded first. An AEAD failure here is IntegrityCheckFailed,
// never InvalidPassword - the slot already authenticated (spec.md §4.8).
func (h *Handle) Extract(entry Entry, dst io.Writer, progress ProgressFunc) error {
	if h.masterKey == nil {
		return newErr(KindInvalidConfig, "extract", h.path, "", nil, "archive is locked", nil)
	}

	pk, err := payloadSubkey(h.masterKey)
	if err != nil {
		return err
	}
	defer wipe.Bytes(pk)
	engine, err := newAEADEngine(h.header.AEAD, pk)
	if err != nil {
		return err
	}

	ciphertext := make([]byte, entry.CompressedSize)
	absOffset := h.layout.payloadOffset + entry.Offset
	if _, err := h.file.ReadAt(ciphertext, absOffset); err != nil {
		return newIOError("extract", entry.Path, err)
	}

	emit(progress, 0, 1, entry.Path, PhaseExtracting)
	plaintext, err := engine.Open(entry.Nonce[:], ciphertext, []byte(entry.Path))
	if err != nil {
		return newIntegrityError("extract", entry.Path, err)
	}

	cr, err := codec.NewReader(codec.ID(h.header.Compression), bytes.NewReader(plaintext))
	if err != nil {
		return err
	}
	defer cr.Close()
	if _, err := io.Copy(dst, cr); err != nil {
		return newIOError("extract", entry.Path, err)
	}
	emit(progress, 1, 1, entry.Path, PhaseDone)
	return nil
}

// Close releases the handle's open file and wipes the master key from
// memory. Safe to call on an already-locked (never-unlocked) handle.
func (h *Handle) Close() error {
	wipe.Bytes(h.masterKey)
	h.masterKey = nil
	return h.file.Close()
}

// Inspect returns h's stateless, password-free public info.
func (h *Handle) Inspect() PublicInfo {
	info := PublicInfo{
		MaxAttempts:     h.header.MaxAttempts,
		CurrentAttempts: h.header.CurrentAttempts,
		Remaining:       remainingAttempts(h.header),
		Destroyed:       h.header.Destroyed,
	}
	if h.header.HasFileCount {
		n := int(h.header.FileCount)
		info.FileCount = &n
	}
	return info
}
