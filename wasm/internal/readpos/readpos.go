// Package readpos wraps an io.Reader with a running byte offset, so the
// section decoder can record where each section started and ended without
// every call site threading its own counter.
package readpos

import "io"

// ReadPos is an io.Reader that tracks how many bytes have been read from R.
type ReadPos struct {
	R      io.Reader
	CurPos int64
}

func (r *ReadPos) Read(p []byte) (int, error) {
	n, err := r.R.Read(p)
	r.CurPos += int64(n)
	return n, err
}

// ReadByte lets ReadPos serve as an io.ByteReader, since the section
// decoder reads a section's leading ID byte one at a time.
func (r *ReadPos) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}
