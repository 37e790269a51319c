// Package wipe zeroes secret buffers on drop: passwords, derived keys, the
// master key, and plaintext held only for extraction. Split out of the
// main package so every caller (kdf, reader, writer, cmd) can depend on it
// without pulling in the rest of the archive engine.
package wipe

// Bytes overwrites b with zeros in place. It is safe to call on a nil or
// empty slice.
func Bytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
