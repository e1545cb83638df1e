// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package leb128 implements the variable-length integer encoding used
// throughout the WASM binary format.
package leb128

import "io"

// ReadVarUint32 decodes an unsigned LEB128 value into a uint32.
func ReadVarUint32(r io.Reader) (uint32, error) {
	var result uint32
	var shift uint
	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, err
		}
		b := buf[0]
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// WriteVarUint32 encodes v as unsigned LEB128, returning the byte count.
func WriteVarUint32(w io.Writer, v uint32) (int, error) {
	n := 0
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		if _, err := w.Write([]byte{b}); err != nil {
			return n, err
		}
		n++
		if v == 0 {
			return n, nil
		}
	}
}

// ReadVarUint64 decodes an unsigned LEB128 value into a uint64.
func ReadVarUint64(r io.Reader) (uint64, error) {
	var result uint64
	var shift uint
	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, err
		}
		b := buf[0]
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// WriteVarUint64 encodes v as unsigned LEB128, returning the byte count.
func WriteVarUint64(w io.Writer, v uint64) (int, error) {
	n := 0
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		if _, err := w.Write([]byte{b}); err != nil {
			return n, err
		}
		n++
		if v == 0 {
			return n, nil
		}
	}
}

// GetVarUint32 decodes an unsigned LEB128 value from the start of buf,
// returning the value and the number of bytes consumed.
func GetVarUint32(buf []byte) (uint32, int, error) {
	var result uint32
	var shift uint
	for i, b := range buf {
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, io.ErrUnexpectedEOF
}

// ReadVarint32 decodes a signed LEB128 value into an int32.
func ReadVarint32(r io.Reader) (int32, error) {
	v, _, err := readVarint(r, 32)
	return int32(v), err
}

// WriteVarint32 encodes v as signed LEB128, returning the byte count.
func WriteVarint32(w io.Writer, v int32) (int, error) {
	return writeVarint(w, int64(v))
}

// GetVarint32 decodes a signed LEB128 value from the start of buf.
func GetVarint32(buf []byte) (int32, int, error) {
	v, n, err := getVarint(buf, 32)
	return int32(v), n, err
}

// ReadVarint64 decodes a signed LEB128 value into an int64.
func ReadVarint64(r io.Reader) (int64, error) {
	v, _, err := readVarint(r, 64)
	return v, err
}

// WriteVarint64 encodes v as signed LEB128, returning the byte count.
func WriteVarint64(w io.Writer, v int64) (int, error) {
	return writeVarint(w, v)
}

// GetVarint64 decodes a signed LEB128 value from the start of buf.
func GetVarint64(buf []byte) (int64, int, error) {
	return getVarint(buf, 64)
}

func readVarint(r io.Reader, size uint) (int64, uint, error) {
	var result int64
	var shift uint
	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, shift, err
		}
		b := buf[0]
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < size && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, shift, nil
		}
	}
}

func getVarint(buf []byte, size uint) (int64, int, error) {
	var result int64
	var shift uint
	for i, b := range buf {
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < size && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, i + 1, nil
		}
	}
	return 0, 0, io.ErrUnexpectedEOF
}

func writeVarint(w io.Writer, v int64) (int, error) {
	n := 0
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			if _, err := w.Write([]byte{b}); err != nil {
				return n, err
			}
			return n + 1, nil
		}
		b |= 0x80
		if _, err := w.Write([]byte{b}); err != nil {
			return n, err
		}
		n++
	}
}
