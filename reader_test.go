package securearc

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
)

// createTestArchive builds an archive from (name -> content) pairs and
// returns its path.
func createTestArchive(t *testing.T, cfg Config, contents map[string][]byte, password []byte, recoveryPasswords [][]byte) string {
	t.Helper()
	dir := t.TempDir()
	inputs := make([]InputFile, 0, len(contents))
	for name, content := range contents {
		p := writeTempFile(t, dir, filepath.Base(name), content)
		inputs = append(inputs, InputFile{SourcePath: p, ArchivePath: name})
	}
	out := filepath.Join(dir, "archive.sarc")
	if err := Create(cfg, inputs, password, recoveryPasswords, out, nil, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return out
}

func TestRoundTripAcrossAEADAndCompression(t *testing.T) {
	aeads := []AEADID{AEADAES256GCM, AEADChaCha20Poly1305}
	compressions := []CompressionID{CompressionNone, CompressionLZMA2, CompressionZstd, CompressionBrotli}
	maxAttemptsValues := []uint8{3, 5, 99}

	bigRandom := make([]byte, 1024) // scaled down from 10 MiB for fast tests; same code path
	if _, err := rand.Read(bigRandom); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}

	contentSets := []map[string][]byte{
		{"empty.bin": {}},
		{"one-byte.bin": {0x42}},
		{"random.bin": bigRandom},
		{"a/b/nested.txt": []byte("nested"), "top.txt": []byte("top"), "c/deep/file.txt": []byte("deep")},
		{"compressible.txt": bytes.Repeat([]byte("aaaaaaaaaa"), 200)},
	}

	for _, aead := range aeads {
		for _, compression := range compressions {
			for _, maxAttempts := range maxAttemptsValues {
				for _, contents := range contentSets {
					cfg := Config{AEAD: aead, Compression: compression, MaxAttempts: maxAttempts}
					path := createTestArchive(t, cfg, contents, []byte("correct horse"), nil)

					h, err := Open(path)
					if err != nil {
						t.Fatalf("Open: %v", err)
					}
					if err := h.Unlock([]byte("correct horse")); err != nil {
						t.Fatalf("Unlock: %v", err)
					}
					entries, err := h.List()
					if err != nil {
						t.Fatalf("List: %v", err)
					}
					if len(entries) != len(contents) {
						t.Fatalf("len(entries) = %d, want %d", len(entries), len(contents))
					}
					for _, e := range entries {
						var buf bytes.Buffer
						if err := h.Extract(e, &buf, nil); err != nil {
							t.Fatalf("Extract(%s): %v", e.Path, err)
						}
						want, ok := contents[e.Path]
						if !ok {
							t.Fatalf("unexpected entry path %q", e.Path)
						}
						if !bytes.Equal(buf.Bytes(), want) {
							t.Errorf("extracted content for %q does not match original", e.Path)
						}
					}
					h.Close()
				}
			}
		}
	}
}

func TestPasswordAuthorityAndSelfDestruct(t *testing.T) {
	const maxAttempts = 3
	path := createTestArchive(t, Config{MaxAttempts: maxAttempts}, map[string][]byte{"hello.txt": []byte("hi\n")}, []byte("correct horse"), nil)

	for i := 1; i < maxAttempts; i++ {
		h, err := Open(path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		err = h.Unlock([]byte("wrong"))
		if Kind(err) != KindInvalidPassword {
			t.Fatalf("attempt %d: Kind(err) = %v, want KindInvalidPassword", i, Kind(err))
		}
		info := h.Inspect()
		if int(info.CurrentAttempts) != i {
			t.Errorf("attempt %d: CurrentAttempts = %d, want %d", i, info.CurrentAttempts, i)
		}
		h.Close()
	}

	h, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	err = h.Unlock([]byte("wrong"))
	if Kind(err) != KindMaxAttemptsExceeded {
		t.Fatalf("final attempt: Kind(err) = %v, want KindMaxAttemptsExceeded", Kind(err))
	}
	if !h.Inspect().Destroyed {
		t.Error("expected archive to be marked destroyed")
	}
	h.Close()

	h2, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h2.Close()
	if !h2.Inspect().Destroyed {
		t.Error("destroyed flag must persist across a fresh Open")
	}
	err = h2.Unlock([]byte("correct horse"))
	if Kind(err) != KindArchiveDestroyed {
		t.Errorf("Kind(err) = %v, want KindArchiveDestroyed", Kind(err))
	}
}

func TestCounterPersistsAcrossFreshHandles(t *testing.T) {
	path := createTestArchive(t, Config{MaxAttempts: 5}, map[string][]byte{"a.txt": []byte("x")}, []byte("correct horse"), nil)

	for i := 1; i <= 2; i++ {
		h, err := Open(path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if err := h.Unlock([]byte("wrong")); Kind(err) != KindInvalidPassword {
			t.Fatalf("Unlock: %v", err)
		}
		h.Close()

		fresh, err := Open(path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if int(fresh.Inspect().CurrentAttempts) != i {
			t.Errorf("after %d failures, CurrentAttempts = %d", i, fresh.Inspect().CurrentAttempts)
		}
		fresh.Close()
	}
}

func TestSuccessfulUnlockResetsCounterRegardlessOfPriorFailures(t *testing.T) {
	path := createTestArchive(t, Config{AEAD: AEADAES256GCM, Compression: CompressionLZMA2, MaxAttempts: 5}, map[string][]byte{"a.txt": []byte("x")}, []byte("correct horse"), nil)

	h, _ := Open(path)
	h.Unlock([]byte("wrong"))
	h.Close()
	h, _ = Open(path)
	h.Unlock([]byte("wrong"))
	h.Close()

	h, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := h.Unlock([]byte("correct horse")); err != nil {
		t.Fatalf("Unlock with correct password: %v", err)
	}
	if h.Inspect().CurrentAttempts != 0 {
		t.Errorf("CurrentAttempts = %d, want 0", h.Inspect().CurrentAttempts)
	}
	h.Close()
}

func TestRecoveryPasswordUnlocksAndPrimaryStillWorks(t *testing.T) {
	path := createTestArchive(t, Config{MaxAttempts: 5}, map[string][]byte{"a.txt": []byte("x")}, []byte("correct horse"), [][]byte{[]byte("aunt-may")})

	h, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := h.Unlock([]byte("aunt-may")); err != nil {
		t.Fatalf("Unlock with recovery password: %v", err)
	}
	h.Close()

	h2, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h2.Close()
	if err := h2.Unlock([]byte("correct horse")); err != nil {
		t.Fatalf("Unlock with primary password after recovery unlock: %v", err)
	}
}

func TestOpenRejectsTruncatedFile(t *testing.T) {
	path := createTestArchive(t, Config{MaxAttempts: 5}, map[string][]byte{"a.txt": []byte("x")}, []byte("pw"), nil)
	if err := os.Truncate(path, 7); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	_, err := Open(path)
	if Kind(err) != KindFormatError {
		t.Errorf("Kind(err) = %v, want KindFormatError", Kind(err))
	}
}

func TestOpenRejectsTamperedHeaderByte(t *testing.T) {
	path := createTestArchive(t, Config{MaxAttempts: 5}, map[string][]byte{"a.txt": []byte("x")}, []byte("pw"), nil)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// Flip a byte inside the security header body, well clear of the magic
	// and the length prefix, and far enough in to avoid the KDF id field
	// (which would instead surface as FormatError at parse time).
	data[20] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = Open(path)
	if err == nil {
		t.Fatal("expected an error opening a tampered archive")
	}
	if Kind(err) != KindHeaderCorrupted && Kind(err) != KindFormatError {
		t.Errorf("Kind(err) = %v, want KindHeaderCorrupted or KindFormatError", Kind(err))
	}
}

func TestExtractRejectsTamperedPayloadByte(t *testing.T) {
	path := createTestArchive(t, Config{MaxAttempts: 5}, map[string][]byte{"a.txt": []byte("hello world this is payload data")}, []byte("pw"), nil)

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	info, err := f.Stat()
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	// Flip the last byte of the file, inside the payload region.
	if _, err := f.WriteAt([]byte{0xFF}, info.Size()-1); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	f.Close()

	h, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close()
	if err := h.Unlock([]byte("pw")); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	entries, err := h.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var buf bytes.Buffer
	err = h.Extract(entries[0], &buf, nil)
	if Kind(err) != KindIntegrityCheckFailed {
		t.Errorf("Kind(err) = %v, want KindIntegrityCheckFailed", Kind(err))
	}
}
