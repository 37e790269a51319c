package codec

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		id   ID
	}{
		{"none", None},
		{"lzma2", LZMA2},
		{"zstd", Zstd},
		{"brotli", Brotli},
	}
	inputs := []string{
		"",
		"a",
		strings.Repeat("compress me please ", 500),
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, in := range inputs {
				buf := new(bytes.Buffer)
				w, err := NewWriter(tt.id, buf)
				if err != nil {
					t.Fatalf("NewWriter: %v", err)
				}
				if _, err := w.Write([]byte(in)); err != nil {
					t.Fatalf("Write: %v", err)
				}
				if err := w.Close(); err != nil {
					t.Fatalf("Close: %v", err)
				}

				r, err := NewReader(tt.id, bytes.NewReader(buf.Bytes()))
				if err != nil {
					t.Fatalf("NewReader: %v", err)
				}
				got, err := io.ReadAll(r)
				if err != nil {
					t.Fatalf("ReadAll: %v", err)
				}
				r.Close()

				if string(got) != in {
					t.Errorf("round trip mismatch for input len %d", len(in))
				}
			}
		})
	}
}

func TestNewWriterRejectsUnknownID(t *testing.T) {
	if _, err := NewWriter(ID(99), new(bytes.Buffer)); err == nil {
		t.Error("expected an error for an unknown compression id")
	}
}

func TestNewReaderRejectsUnknownID(t *testing.T) {
	if _, err := NewReader(ID(99), bytes.NewReader(nil)); err == nil {
		t.Error("expected an error for an unknown compression id")
	}
}
