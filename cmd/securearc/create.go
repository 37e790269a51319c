package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kharonsec/securearc"
)

var (
	createOutput       string
	createPassword     string
	createRecovery     []string
	createMaxAttempts  uint8
	createAEAD         string
	createCompression  string
	createKDF          string
	createStoreCount   bool
	createLegacyPBKDF2 bool
)

var createCmd = &cobra.Command{
	Use:   "create <output.sarc> <file>...",
	Short: "Create a new archive from one or more files",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputPath := args[0]
		sources := args[1:]

		aead, err := parseAEAD(createAEAD)
		if err != nil {
			return err
		}
		compression, err := parseCompression(createCompression)
		if err != nil {
			return err
		}
		kdf, err := parseKDF(createKDF, createLegacyPBKDF2)
		if err != nil {
			return err
		}

		cfg := securearc.Config{
			AEAD:               aead,
			Compression:        compression,
			KDF:                kdf,
			MaxAttempts:        createMaxAttempts,
			StoreFileCountHint: createStoreCount,
		}

		inputs := make([]securearc.InputFile, len(sources))
		for i, src := range sources {
			inputs[i] = securearc.InputFile{
				SourcePath:  src,
				ArchivePath: filepath.Base(src),
			}
		}

		var recoveryPasswords [][]byte
		for _, r := range createRecovery {
			recoveryPasswords = append(recoveryPasswords, []byte(r))
		}

		return securearc.Create(cfg, inputs, []byte(createPassword), recoveryPasswords, outputPath, progressLogger(), nil)
	},
}

func init() {
	createCmd.Flags().StringVar(&createPassword, "password", "", "primary unlock password (required)")
	createCmd.Flags().StringArrayVar(&createRecovery, "recovery-password", nil, "additional recovery password (repeatable)")
	createCmd.Flags().Uint8Var(&createMaxAttempts, "max-attempts", 5, "failed unlock attempts before self-destruct")
	createCmd.Flags().StringVar(&createAEAD, "aead", "aes-256-gcm", "aes-256-gcm or chacha20-poly1305")
	createCmd.Flags().StringVar(&createCompression, "compression", "zstd", "none, lzma2, zstd, or brotli")
	createCmd.Flags().StringVar(&createKDF, "kdf", "argon2id", "argon2id or pbkdf2-sha256")
	createCmd.Flags().BoolVar(&createStoreCount, "store-file-count", false, "expose file count to unauthenticated inspect")
	createCmd.Flags().BoolVar(&createLegacyPBKDF2, "allow-legacy-kdf", false, "acknowledge PBKDF2-SHA256 is accepted despite being legacy")
	createCmd.MarkFlagRequired("password")
}

func parseAEAD(s string) (securearc.AEADID, error) {
	switch s {
	case "aes-256-gcm":
		return securearc.AEADAES256GCM, nil
	case "chacha20-poly1305":
		return securearc.AEADChaCha20Poly1305, nil
	default:
		return 0, cmdError("aead", s)
	}
}

func parseCompression(s string) (securearc.CompressionID, error) {
	switch s {
	case "none":
		return securearc.CompressionNone, nil
	case "lzma2":
		return securearc.CompressionLZMA2, nil
	case "zstd":
		return securearc.CompressionZstd, nil
	case "brotli":
		return securearc.CompressionBrotli, nil
	default:
		return 0, cmdError("compression", s)
	}
}

func parseKDF(s string, allowLegacy bool) (securearc.KDFID, error) {
	switch s {
	case "argon2id":
		return securearc.KDFArgon2id, nil
	case "pbkdf2-sha256":
		if !allowLegacy {
			return 0, cmdError("kdf", "pbkdf2-sha256 requires --allow-legacy-kdf")
		}
		return securearc.KDFPBKDF2SHA256, nil
	default:
		return 0, cmdError("kdf", s)
	}
}

func cmdError(field, value string) error {
	return fmt.Errorf("invalid --%s value %q", field, value)
}
