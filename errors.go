package securearc

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable, user-visible taxonomy every library error maps
// to. The CLI uses it to choose an exit code without string-matching.
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	// KindInvalidPassword: a full unlock attempt failed and the counter was
	// successfully incremented; the handle is still Active.
	KindInvalidPassword
	// KindMaxAttemptsExceeded: this attempt triggered destruction.
	KindMaxAttemptsExceeded
	// KindArchiveDestroyed: the archive was already destroyed before this call.
	KindArchiveDestroyed
	// KindHeaderCorrupted: header MAC failed or the header parsed in a way
	// that suggests tampering. No counter effect.
	KindHeaderCorrupted
	// KindIntegrityCheckFailed: slot unlock succeeded but the directory or a
	// payload region failed AEAD verification.
	KindIntegrityCheckFailed
	// KindFormatError: bad magic, unknown version/algorithm id, or
	// out-of-bounds KDF parameters.
	KindFormatError
	// KindInvalidConfig: Create was called with parameters outside the
	// accepted ranges.
	KindInvalidConfig
	// KindIoError: underlying storage failure, including failure to persist
	// a counter update.
	KindIoError
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidPassword:
		return "InvalidPassword"
	case KindMaxAttemptsExceeded:
		return "MaxAttemptsExceeded"
	case KindArchiveDestroyed:
		return "ArchiveDestroyed"
	case KindHeaderCorrupted:
		return "HeaderCorrupted"
	case KindIntegrityCheckFailed:
		return "IntegrityCheckFailed"
	case KindFormatError:
		return "FormatError"
	case KindInvalidConfig:
		return "InvalidConfig"
	case KindIoError:
		return "IoError"
	default:
		return "Unknown"
	}
}

// ArchiveError is the single structured error type every public operation
// returns. It carries a stable Kind plus the teacher's Field/Path/Message/
// Err shape (ValidationError, IOError, ...) collapsed into one struct
// because spec.md's error taxonomy is a flat enum, not a type hierarchy.
type ArchiveError struct {
	Kind    ErrorKind
	Op      string // operation that failed: "open", "unlock", "extract", ...
	Path    string // file path, if applicable
	Field   string // config/header field, if applicable
	Value   any    // offending value, if applicable
	Message string
	Err     error

	sentinel bool
}

func (e *ArchiveError) Error() string {
	switch {
	case e.Path != "" && e.Field != "":
		return fmt.Sprintf("%s: %s: %s (%s): %s", e.Kind, e.Op, e.Path, e.Field, e.Message)
	case e.Path != "":
		return fmt.Sprintf("%s: %s: %s: %s", e.Kind, e.Op, e.Path, e.Message)
	case e.Field != "":
		return fmt.Sprintf("%s: %s: %s: %s", e.Kind, e.Op, e.Field, e.Message)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Message)
	}
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, securearc.ErrInvalidPassword) style checks by
// comparing Kind against the sentinel errors below.
func (e *ArchiveError) Is(target error) bool {
	se, ok := target.(*ArchiveError)
	if !ok {
		return false
	}
	return se.Kind == e.Kind && se.sentinel
}

// Kind reports the ErrorKind of err if it is (or wraps) an *ArchiveError.
func Kind(err error) ErrorKind {
	var ae *ArchiveError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// Sentinel errors for errors.Is(err, securearc.ErrXxx) checks. Each wraps
// a zero-value ArchiveError of the matching Kind with sentinel=true.
var (
	ErrInvalidPassword      = &ArchiveError{Kind: KindInvalidPassword, sentinel: true}
	ErrMaxAttemptsExceeded  = &ArchiveError{Kind: KindMaxAttemptsExceeded, sentinel: true}
	ErrArchiveDestroyed     = &ArchiveError{Kind: KindArchiveDestroyed, sentinel: true}
	ErrHeaderCorrupted      = &ArchiveError{Kind: KindHeaderCorrupted, sentinel: true}
	ErrIntegrityCheckFailed = &ArchiveError{Kind: KindIntegrityCheckFailed, sentinel: true}
	ErrFormatError          = &ArchiveError{Kind: KindFormatError, sentinel: true}
	ErrInvalidConfig        = &ArchiveError{Kind: KindInvalidConfig, sentinel: true}
	ErrIoError              = &ArchiveError{Kind: KindIoError, sentinel: true}
)

func newErr(kind ErrorKind, op, path, field string, value any, message string, err error) *ArchiveError {
	return &ArchiveError{
		Kind:    kind,
		Op:      op,
		Path:    path,
		Field:   field,
		Value:   value,
		Message: message,
		Err:     err,
	}
}

func newInvalidPasswordError(op, path string) error {
	return newErr(KindInvalidPassword, op, path, "", nil, "password did not unlock any key slot", nil)
}

func newMaxAttemptsExceededError(op, path string) error {
	return newErr(KindMaxAttemptsExceeded, op, path, "", nil, "maximum unlock attempts reached; archive destroyed", nil)
}

func newArchiveDestroyedError(op, path string) error {
	return newErr(KindArchiveDestroyed, op, path, "", nil, "archive was already destroyed", nil)
}

func newHeaderCorruptedError(op, path, message string, err error) error {
	return newErr(KindHeaderCorrupted, op, path, "", nil, message, err)
}

func newIntegrityError(op, path string, err error) error {
	return newErr(KindIntegrityCheckFailed, op, path, "", nil, "authentication failed - data may be corrupted or tampered", err)
}

func newFormatError(op, path, message string, err error) error {
	return newErr(KindFormatError, op, path, "", nil, message, err)
}

func newConfigError(field string, value any, message string) error {
	return newErr(KindInvalidConfig, "create", "", field, value, message, nil)
}

func newIOError(op, path string, err error) error {
	return newErr(KindIoError, op, path, "", nil, err.Error(), err)
}
