package securearc

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// subkey derives a 32-byte subkey from the master key, domain-separated
// by tag, per spec.md §3's "HKDF-style domain separation" requirement.
func subkey(masterKey []byte, tag string) ([]byte, error) {
	out := make([]byte, MasterKeySize)
	kdf := hkdf.New(sha256.New, masterKey, nil, []byte(tag))
	if _, err := io.ReadFull(kdf, out); err != nil {
		return nil, fmt.Errorf("derive %s subkey: %w", tag, err)
	}
	return out, nil
}

func directorySubkey(masterKey []byte) ([]byte, error) { return subkey(masterKey, dirSubkeyDomain) }
func payloadSubkey(masterKey []byte) ([]byte, error)   { return subkey(masterKey, payloadSubkeyDomain) }

// encodeEntry writes one directory entry: path, sizes, mtime, attrs,
// offset, nonce. Path is length-prefixed since it's the only variable-size
// field, the same shape as the teacher's FileHeader salt/nonce fields.
func encodeEntry(w io.Writer, e Entry) error {
	pathBytes := []byte(e.Path)
	if len(pathBytes) > 0xFFFF {
		return fmt.Errorf("entry path too long: %d bytes", len(pathBytes))
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(pathBytes))); err != nil {
		return err
	}
	if _, err := w.Write(pathBytes); err != nil {
		return err
	}
	fields := []any{
		e.OriginalSize,
		e.CompressedSize,
		e.ModTime,
		e.Attrs,
		e.Offset,
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	_, err := w.Write(e.Nonce[:])
	return err
}

func decodeEntry(r io.Reader) (Entry, error) {
	var e Entry
	var pathLen uint16
	if err := binary.Read(r, binary.LittleEndian, &pathLen); err != nil {
		return e, err
	}
	pathBytes := make([]byte, pathLen)
	if _, err := io.ReadFull(r, pathBytes); err != nil {
		return e, err
	}
	e.Path = string(pathBytes)

	fields := []any{&e.OriginalSize, &e.CompressedSize, &e.ModTime, &e.Attrs, &e.Offset}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return e, err
		}
	}
	if _, err := io.ReadFull(r, e.Nonce[:]); err != nil {
		return e, err
	}
	return e, nil
}

// encodeDirectory serializes the full entry list: u32 count, then entries.
func encodeDirectory(entries []Entry) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(entries))); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := encodeEntry(buf, e); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeDirectory(data []byte) ([]Entry, error) {
	r := bytes.NewReader(data)
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, newFormatError("unlock", "", "truncated directory", err)
	}
	entries := make([]Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		e, err := decodeEntry(r)
		if err != nil {
			return nil, newFormatError("unlock", "", "truncated directory entry", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// sealDirectory encrypts the serialized entry list as one AEAD ciphertext
// under the directory subkey, with a fresh nonce.
func sealDirectory(aeadID AEADID, masterKey []byte, entries []Entry) (ciphertext []byte, nonce [NonceSize]byte, err error) {
	dk, err := directorySubkey(masterKey)
	if err != nil {
		return nil, nonce, err
	}
	engine, err := newAEADEngine(aeadID, dk)
	if err != nil {
		return nil, nonce, err
	}
	plaintext, err := encodeDirectory(entries)
	if err != nil {
		return nil, nonce, err
	}
	nonce, err = newNonce()
	if err != nil {
		return nil, nonce, err
	}
	ct := engine.Seal(nonce[:], plaintext, nil)
	return ct, nonce, nil
}

// openDirectory decrypts and decodes the central directory. AEAD failure
// here means IntegrityCheckFailed, not InvalidPassword: the slot already
// authenticated the password (spec.md §4.8).
func openDirectory(aeadID AEADID, masterKey []byte, ciphertext []byte, nonce [NonceSize]byte) ([]Entry, error) {
	dk, err := directorySubkey(masterKey)
	if err != nil {
		return nil, err
	}
	engine, err := newAEADEngine(aeadID, dk)
	if err != nil {
		return nil, err
	}
	plaintext, err := engine.Open(nonce[:], ciphertext, nil)
	if err != nil {
		return nil, newIntegrityError("unlock", "", err)
	}
	return decodeDirectory(plaintext)
}
