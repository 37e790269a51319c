package securearc

import "fmt"

// AEADID identifies the authenticated-encryption algorithm used for key
// slots, the central directory, and the payload. Algorithm ids are part of
// the on-disk format and must stay stable.
type AEADID uint8

const (
	// AEADAES256GCM uses AES-256 in Galois/Counter Mode.
	AEADAES256GCM AEADID = 1
	// AEADChaCha20Poly1305 uses ChaCha20 with a Poly1305 MAC.
	AEADChaCha20Poly1305 AEADID = 2
)

// String returns the wire name of the AEAD algorithm.
func (a AEADID) String() string {
	switch a {
	case AEADAES256GCM:
		return "aes-256-gcm"
	case AEADChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return "unknown"
	}
}

// CompressionID identifies the codec applied to each file's plaintext
// before it is sealed.
type CompressionID uint8

const (
	// CompressionNone stores plaintext uncompressed.
	CompressionNone CompressionID = 0
	// CompressionLZMA2 uses the LZMA2 codec (xz container - the AEAD tag
	// already authenticates the stream, so the container checksum is
	// redundant but kept for interoperability).
	CompressionLZMA2 CompressionID = 1
	// CompressionZstd uses Zstandard.
	CompressionZstd CompressionID = 2
	// CompressionBrotli uses Brotli.
	CompressionBrotli CompressionID = 3
)

// String returns the wire name of the compression codec.
func (c CompressionID) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZMA2:
		return "lzma2"
	case CompressionZstd:
		return "zstd"
	case CompressionBrotli:
		return "brotli"
	default:
		return "unknown"
	}
}

// KDFID identifies the password-to-key derivation function.
type KDFID uint8

const (
	// KDFArgon2id is the default, memory-hard KDF.
	KDFArgon2id KDFID = 1
	// KDFPBKDF2SHA256 is the legacy PBKDF2 path. The library accepts it at
	// both Create and Open; only the CLI's create command requires an
	// explicit --allow-legacy-kdf flag to select it.
	KDFPBKDF2SHA256 KDFID = 2
)

// String returns the wire name of the KDF.
func (k KDFID) String() string {
	switch k {
	case KDFArgon2id:
		return "argon2id"
	case KDFPBKDF2SHA256:
		return "pbkdf2-sha256"
	default:
		return "unknown"
	}
}

// Default and bound constants for the archive's tunables.
const (
	MinMaxAttempts = 3
	MaxMaxAttempts = 99

	DefaultArgon2Memory      uint32 = 64 * 1024 // KiB
	DefaultArgon2Time        uint32 = 3
	DefaultArgon2Parallelism uint8  = 4

	// MinArgon2Memory/MinArgon2Time are floors the reader enforces on a
	// header's KDF parameters before invoking Argon2id, capping the DoS an
	// attacker-supplied archive could otherwise impose on an unlock attempt.
	MinArgon2Memory uint32 = 8 * 1024
	MinArgon2Time   uint32 = 1

	// MinPBKDF2Iterations is the floor documented for the legacy path. It
	// is below modern guidance by design - see KDFPBKDF2SHA256.
	MinPBKDF2Iterations uint32 = 10000

	SaltSize      = 32
	NonceSize     = 12
	TagSize       = 16
	MasterKeySize = 32

	headerMACDomain     = "sarc:hdr-mac:v1"
	dirSubkeyDomain     = "sarc:dir:v1"
	payloadSubkeyDomain = "sarc:payload:v1"
)

// Argon2Params holds the three Argon2id cost parameters stored in the
// security header.
type Argon2Params struct {
	MemoryKiB   uint32
	Time        uint32
	Parallelism uint8
}

// PBKDF2Params holds the iteration count for the legacy PBKDF2-SHA256 path.
type PBKDF2Params struct {
	Iterations uint32
}

// Config configures a new archive at Create time.
type Config struct {
	AEAD        AEADID
	Compression CompressionID
	KDF         KDFID
	Argon2      Argon2Params
	PBKDF2      PBKDF2Params
	MaxAttempts uint8

	// StoreFileCountHint writes the public, unauthenticated-beyond-the-MAC
	// file_count_hint field so Inspect can report a file count without a
	// password. Leave false to keep the count from unauthenticated readers.
	StoreFileCountHint bool

	// Parallel controls whether Create's per-file compress-and-seal step
	// uses a worker pool. Zero value is sequential.
	Parallel ParallelConfig
}

// withDefaults fills in zero-valued fields with package defaults, the same
// way the teacher's NewPasswordKeyProvider / NewPasswordKeyProviderPBKDF2
// fill in zero-valued Argon2idParams / PBKDF2Params fields.
func (c Config) withDefaults() Config {
	if c.AEAD == 0 {
		c.AEAD = AEADAES256GCM
	}
	if c.KDF == 0 {
		c.KDF = KDFArgon2id
	}
	if c.Argon2.MemoryKiB == 0 {
		c.Argon2.MemoryKiB = DefaultArgon2Memory
	}
	if c.Argon2.Time == 0 {
		c.Argon2.Time = DefaultArgon2Time
	}
	if c.Argon2.Parallelism == 0 {
		c.Argon2.Parallelism = DefaultArgon2Parallelism
	}
	if c.PBKDF2.Iterations == 0 {
		c.PBKDF2.Iterations = MinPBKDF2Iterations
	}
	return c
}

// Validate checks the configuration against spec bounds, returning an
// InvalidConfig error on any violation.
func (c Config) Validate() error {
	if c.AEAD != AEADAES256GCM && c.AEAD != AEADChaCha20Poly1305 {
		return newConfigError("aead", c.AEAD, "unsupported AEAD algorithm")
	}
	if c.Compression > CompressionBrotli {
		return newConfigError("compression", c.Compression, "unsupported compression codec")
	}
	if c.KDF != KDFArgon2id && c.KDF != KDFPBKDF2SHA256 {
		return newConfigError("kdf", c.KDF, "unsupported KDF")
	}
	if c.MaxAttempts < MinMaxAttempts || c.MaxAttempts > MaxMaxAttempts {
		return newConfigError("max_attempts", c.MaxAttempts,
			fmt.Sprintf("must be within [%d, %d]", MinMaxAttempts, MaxMaxAttempts))
	}
	if err := c.Parallel.Validate(); err != nil {
		return err
	}
	return nil
}

// InputFile names one file to stage into the archive at create time.
type InputFile struct {
	// SourcePath is where the writer reads plaintext bytes from.
	SourcePath string
	// ArchivePath is the logical, forward-slash-normalized path recorded in
	// the central directory.
	ArchivePath string
}

// Phase names a stage of writer or reader progress.
type Phase string

const (
	PhaseStarting    Phase = "starting"
	PhaseCompressing Phase = "compressing"
	PhaseEncrypting  Phase = "encrypting"
	PhaseWriting     Phase = "writing"
	PhaseExtracting  Phase = "extracting"
	PhaseDone        Phase = "done"
)

// ProgressEvent is the value passed to a ProgressFunc. Only copies of small
// value types are carried, never references into secret memory.
type ProgressEvent struct {
	Current  int
	Total    int
	Filename string
	Phase    Phase
}

// ProgressFunc is invoked synchronously as each input or output file moves
// through a phase. Implementations must not block indefinitely.
type ProgressFunc func(ProgressEvent)

// Entry describes one file recorded in the central directory.
type Entry struct {
	Path           string
	OriginalSize   int64
	CompressedSize int64
	ModTime        int64 // seconds since Unix epoch
	Attrs          uint32
	Offset         int64 // into the payload region
	Nonce          [NonceSize]byte
}

// PublicInfo is the stateless, password-free view of an archive's header.
// It MUST NOT expose logical paths.
type PublicInfo struct {
	MaxAttempts     uint8
	CurrentAttempts uint8
	Remaining       uint8
	Destroyed       bool
	FileCount       *int // nil unless the writer stored the public hint
}
