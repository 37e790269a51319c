package securearc

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/kharonsec/securearc/codec"
	"github.com/kharonsec/securearc/internal/wipe"
)

// CancelFunc is polled between file boundaries during Create, before each
// input is sealed. Returning true aborts Create with an IoError before the
// output file is written. Setting one disables the parallel worker pool.
type CancelFunc func() bool

// Create assembles a new archive at outputPath containing inputs, sealed
// under primaryPassword with zero or more recoveryPasswords in additional
// key slots. Grounded on the teacher's streaming.go read-compress-seal
// loop. Each input is compressed into memory and sealed as one AEAD region,
// and every sealed region is held in memory until all inputs are done.
// Because the central directory precedes the payload on disk and the
// directory can't be known until every file's offset and size are fixed,
// sealed ciphertext is first written to a scratch file (spec.md §4.6's
// "writing ciphertext to a scratch region") and only copied into the final
// file once the directory is ready.
func Create(cfg Config, inputs []InputFile, primaryPassword []byte, recoveryPasswords [][]byte, outputPath string, progress ProgressFunc, cancel CancelFunc) (err error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(inputs) == 0 {
		return newConfigError("inputs", 0, "archive must contain at least one file")
	}
	inputs, err = validateInputs(inputs)
	if err != nil {
		return err
	}

	salt, err := randomBytes(SaltSize)
	if err != nil {
		return newIOError("create", outputPath, err)
	}
	masterKey, err := randomBytes(MasterKeySize)
	if err != nil {
		return newIOError("create", outputPath, err)
	}
	defer wipe.Bytes(masterKey)

	slots, err := sealAllSlots(cfg, salt, masterKey, primaryPassword, recoveryPasswords)
	if err != nil {
		return err
	}

	scratch, err := os.CreateTemp("", "securearc-*.scratch")
	if err != nil {
		return newIOError("create", outputPath, fmt.Errorf("open scratch file: %w", err))
	}
	scratchPath := scratch.Name()
	defer os.Remove(scratchPath)
	defer scratch.Close()

	pk, err := payloadSubkey(masterKey)
	if err != nil {
		return err
	}
	defer wipe.Bytes(pk)
	engine, err := newAEADEngine(cfg.AEAD, pk)
	if err != nil {
		return err
	}

	entries, err := sealInputs(cfg.Parallel, engine, cfg.Compression, inputs, scratch, progress, cancel)
	if err != nil {
		os.Remove(outputPath)
		return err
	}

	dirCiphertext, dirNonce, err := sealDirectory(cfg.AEAD, masterKey, entries)
	if err != nil {
		return err
	}

	header := &securityHeader{
		FormatVersion:   FormatVersion,
		KDF:             cfg.KDF,
		Argon2:          cfg.Argon2,
		PBKDF2:          cfg.PBKDF2,
		AEAD:            cfg.AEAD,
		Compression:     cfg.Compression,
		MaxAttempts:     cfg.MaxAttempts,
		CurrentAttempts: 0,
		Destroyed:       false,
	}
	copy(header.Salt[:], salt)
	if cfg.StoreFileCountHint {
		header.HasFileCount = true
		header.FileCount = uint32(len(entries))
	}
	if err := header.sign(); err != nil {
		return err
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return newIOError("create", outputPath, err)
	}
	defer func() {
		closeErr := out.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(outputPath)
		}
	}()

	w := bufio.NewWriter(out)
	if err := assembleArchive(w, header, slots, dirCiphertext, dirNonce, scratch); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return newIOError("create", outputPath, err)
	}
	return nil
}

// sealAllSlots seals the master key once per password: slot 0 for
// primaryPassword, then one slot per entry in recoveryPasswords.
func sealAllSlots(cfg Config, salt, masterKey, primaryPassword []byte, recoveryPasswords [][]byte) ([]*keySlot, error) {
	slots := make([]*keySlot, 0, 1+len(recoveryPasswords))

	s0, err := sealOneSlot(cfg, salt, masterKey, primaryPassword, 0)
	if err != nil {
		return nil, err
	}
	slots = append(slots, s0)

	for i, pw := range recoveryPasswords {
		s, err := sealOneSlot(cfg, salt, masterKey, pw, uint8(i+1))
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, nil
}

func sealOneSlot(cfg Config, salt, masterKey, password []byte, slotID uint8) (*keySlot, error) {
	kek, err := deriveKEK(cfg.KDF, password, salt, cfg.Argon2, cfg.PBKDF2)
	if err != nil {
		return nil, err
	}
	defer wipe.Bytes(kek)
	engine, err := newAEADEngine(cfg.AEAD, kek)
	if err != nil {
		return nil, err
	}
	return sealSlot(engine, slotID, true, masterKey)
}

// errCreateCancelled is returned (wrapped in an IOError) when cancel()
// reports true between file boundaries.
var errCreateCancelled = fmt.Errorf("create cancelled")

// sealInputs compresses and seals each input file, then appends its
// ciphertext to scratch and records one Entry with its offset into the
// eventual payload region. Large input sets use a worker pool (see
// parallel.go) when parallelCfg.Enabled; regardless of path, ciphertext is
// written to scratch in input order so offsets stay deterministic and
// reproducible.
func sealInputs(parallelCfg ParallelConfig, engine aeadEngine, compression CompressionID, inputs []InputFile, scratch *os.File, progress ProgressFunc, cancel CancelFunc) ([]Entry, error) {
	if cancel != nil && cancel() {
		return nil, newIOError("create", "", errCreateCancelled)
	}

	useParallel := parallelCfg.Enabled && cancel == nil && len(inputs) >= parallelCfg.MinFilesForParallel

	var sealed []sealedFile
	var err error
	if useParallel {
		sealed, err = sealFilesParallel(parallelCfg, engine, compression, inputs)
	} else {
		sealed, err = sealFilesSequential(engine, compression, inputs, progress, cancel)
	}
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(sealed))
	var offset int64
	for i, sf := range sealed {
		if useParallel {
			emit(progress, i, len(inputs), inputs[i].ArchivePath, PhaseWriting)
		}
		if _, err := scratch.Write(sf.ciphertext); err != nil {
			return nil, newIOError("create", inputs[i].SourcePath, err)
		}
		sf.entry.Offset = offset
		sf.entry.CompressedSize = int64(len(sf.ciphertext))
		offset += int64(len(sf.ciphertext))
		entries = append(entries, sf.entry)
	}
	return entries, nil
}

// compressFile reads all of src's content through the configured codec and
// returns the compressed plaintext as a single buffer, ready to be sealed
// as one AEAD region.
func compressFile(compression CompressionID, src io.Reader) ([]byte, error) {
	buf := new(bytes.Buffer)
	cw, err := codec.NewWriter(codec.ID(compression), buf)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(cw, src); err != nil {
		return nil, err
	}
	if err := cw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// assembleArchive writes the final container: magic, length-prefixed
// security header, slot table, length-prefixed encrypted directory, and
// the scratch-buffered payload, in the order fixed by spec.md §6.1.
func assembleArchive(w io.Writer, header *securityHeader, slots []*keySlot, dirCiphertext []byte, dirNonce [NonceSize]byte, scratch *os.File) error {
	if _, err := w.Write(Magic[:]); err != nil {
		return newIOError("create", "", err)
	}

	headerBytes := new(bytes.Buffer)
	if _, err := header.WriteTo(headerBytes); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(headerBytes.Len())); err != nil {
		return newIOError("create", "", err)
	}
	if _, err := w.Write(headerBytes.Bytes()); err != nil {
		return newIOError("create", "", err)
	}

	if err := writeSlotTable(w, slots); err != nil {
		return newIOError("create", "", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(dirCiphertext))); err != nil {
		return newIOError("create", "", err)
	}
	if _, err := w.Write(dirCiphertext); err != nil {
		return newIOError("create", "", err)
	}
	if _, err := w.Write(dirNonce[:]); err != nil {
		return newIOError("create", "", err)
	}

	if _, err := scratch.Seek(0, io.SeekStart); err != nil {
		return newIOError("create", "", err)
	}
	if _, err := io.Copy(w, scratch); err != nil {
		return newIOError("create", "", err)
	}
	return nil
}

func emit(progress ProgressFunc, current, total int, filename string, phase Phase) {
	if progress == nil {
		return
	}
	progress(ProgressEvent{Current: current + 1, Total: total, Filename: filename, Phase: phase})
}

