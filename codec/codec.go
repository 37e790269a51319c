// Package codec wraps the compression libraries SecureArc payloads may be
// encoded with before encryption: none, LZMA2, Zstd, and Brotli. Keeping
// this behind a small Writer/Reader pair lets the archive engine treat
// compression as one interchangeable stage in the per-file pipeline,
// mirroring how the teacher's cipher.go isolates AEAD behind one
// constructor per suite.
package codec

import (
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// ID mirrors securearc.CompressionID without importing the root package,
// which would create an import cycle (the root package imports codec).
type ID uint8

const (
	None ID = iota
	LZMA2
	Zstd
	Brotli
)

// WriteCloser is satisfied by every compressor: Write streams plaintext in,
// Close flushes and finalizes the compressed trailer.
type WriteCloser interface {
	io.WriteCloser
}

// NewWriter returns a compressing writer over dst for the given algorithm.
// Callers must Close it to flush trailing compressor state before treating
// dst's contents as complete.
func NewWriter(id ID, dst io.Writer) (WriteCloser, error) {
	switch id {
	case None:
		return nopWriteCloser{dst}, nil
	case LZMA2:
		w, err := xz.NewWriter(dst)
		if err != nil {
			return nil, fmt.Errorf("codec: open xz writer: %w", err)
		}
		return w, nil
	case Zstd:
		w, err := zstd.NewWriter(dst)
		if err != nil {
			return nil, fmt.Errorf("codec: open zstd writer: %w", err)
		}
		return w, nil
	case Brotli:
		return brotli.NewWriter(dst), nil
	default:
		return nil, fmt.Errorf("codec: unknown compression id %d", id)
	}
}

// NewReader returns a decompressing reader over src. Some implementations
// (zstd) hold background goroutines or buffers that must be released; the
// returned value implements io.Closer when that's needed, otherwise Close
// is a no-op.
func NewReader(id ID, src io.Reader) (io.ReadCloser, error) {
	switch id {
	case None:
		return io.NopCloser(src), nil
	case LZMA2:
		r, err := xz.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("codec: open xz reader: %w", err)
		}
		return io.NopCloser(r), nil
	case Zstd:
		r, err := zstd.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("codec: open zstd reader: %w", err)
		}
		return &zstdReadCloser{r}, nil
	case Brotli:
		return io.NopCloser(brotli.NewReader(src)), nil
	default:
		return nil, fmt.Errorf("codec: unknown compression id %d", id)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// zstdReadCloser adapts *zstd.Decoder's Close (no error return) to
// io.Closer's signature.
type zstdReadCloser struct{ d *zstd.Decoder }

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.d.Read(p) }
func (z *zstdReadCloser) Close() error                { z.d.Close(); return nil }
