// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"

	"github.com/wasmkit/asm2wasm/wasm/leb128"
)

// logger is used for verbose decode tracing. It is silent by default;
// tools that want decode diagnostics can point it at os.Stderr.
var logger = log.New(ioutil.Discard, "wasm: ", 0)

// SetLogOutput redirects the package's trace logger.
func SetLogOutput(w io.Writer) {
	logger.SetOutput(w)
}

// getInitialCap bounds a slice preallocation by a declared element count,
// avoiding a huge alloc from a corrupt or adversarial length prefix.
func getInitialCap(count uint32) uint32 {
	const max = 4096
	if count > max {
		return max
	}
	return count
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24, nil
}

// readInitExpr reads a constant initializer expression, stopping after the
// terminating "end" (0x0b) opcode. The raw encoded bytes (including the
// terminator) are returned for later decoding via wasm/code.
func readInitExpr(r io.Reader) ([]byte, error) {
	var buf []byte
	var depth int
	for {
		var op [1]byte
		if _, err := io.ReadFull(r, op[:]); err != nil {
			return nil, err
		}
		buf = append(buf, op[0])
		switch op[0] {
		case 0x02, 0x03, 0x04: // block, loop, if
			depth++
		case 0x0b: // end
			if depth == 0 {
				return buf, nil
			}
			depth--
		}
		if n := immediateLen(op[0]); n > 0 {
			imm := make([]byte, n)
			if _, err := io.ReadFull(r, imm); err != nil {
				return nil, err
			}
			buf = append(buf, imm...)
		} else if isVarintOp(op[0]) {
			rest, err := readLEBTail(r)
			if err != nil {
				return nil, err
			}
			buf = append(buf, rest...)
		}
	}
}

// immediateLen returns the number of fixed-size immediate bytes following an
// opcode in an init expression, or 0 if the opcode carries none or a LEB128
// immediate (handled by isVarintOp/readLEBTail instead).
func immediateLen(op byte) int {
	switch op {
	case 0x44: // f64.const
		return 8
	case 0x43: // f32.const
		return 4
	default:
		return 0
	}
}

func isVarintOp(op byte) bool {
	switch op {
	case 0x41, 0x42, // i32.const, i64.const
		0x23, 0x24: // global.get, global.set
		return true
	default:
		return false
	}
}

// readLEBTail consumes one LEB128-encoded immediate, returning its raw bytes.
func readLEBTail(r io.Reader) ([]byte, error) {
	var buf []byte
	for {
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		buf = append(buf, b[0])
		if b[0]&0x80 == 0 {
			return buf, nil
		}
	}
}

// ValidationError reports a WASM module or code body that fails to satisfy
// the validation rules in the core specification.
type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

// Marshaler is implemented by WASM binary-format structures that can encode
// and decode themselves without a surrounding length prefix.
type Marshaler interface {
	MarshalWASM(w io.Writer) error
}

// Unmarshaler is implemented by WASM binary-format structures that can decode
// themselves without a surrounding length prefix.
type Unmarshaler interface {
	UnmarshalWASM(r io.Reader) error
}

// ValueType is a WASM value type, encoded as a single signed LEB128 byte.
type ValueType int8

const (
	ValueTypeI32 ValueType = -0x01
	ValueTypeI64 ValueType = -0x02
	ValueTypeF32 ValueType = -0x03
	ValueTypeF64 ValueType = -0x04

	// ValueTypeT is a sentinel "unknown/any" type used by type-checking code
	// to represent a polymorphic stack value (e.g. in unreachable code).
	ValueTypeT ValueType = 0x00
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	default:
		return fmt.Sprintf("invalid(%d)", int8(t))
	}
}

func (t *ValueType) UnmarshalWASM(r io.Reader) error {
	v, err := leb128.ReadVarint32(r)
	if err != nil {
		return err
	}
	*t = ValueType(v)
	return nil
}

func (t ValueType) MarshalWASM(w io.Writer) error {
	_, err := leb128.WriteVarint32(w, int32(t))
	return err
}

// blockType mirrors ValueType's encoding but additionally allows -0x40 (empty).
type blockType = ValueType

const blockTypeEmpty blockType = -0x40

// FunctionSig is an entry in the type section: a function signature.
type FunctionSig struct {
	Form        byte // always 0x60 ("func") in the MVP binary format
	ParamTypes  []ValueType
	ReturnTypes []ValueType
}

func (s *FunctionSig) UnmarshalWASM(r io.Reader) error {
	form, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	if form != 0x60 {
		return fmt.Errorf("wasm: invalid function signature form %#x", form)
	}
	s.Form = 0x60

	paramCount, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	s.ParamTypes = make([]ValueType, paramCount)
	for i := range s.ParamTypes {
		if err := s.ParamTypes[i].UnmarshalWASM(r); err != nil {
			return err
		}
	}

	retCount, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	s.ReturnTypes = make([]ValueType, retCount)
	for i := range s.ReturnTypes {
		if err := s.ReturnTypes[i].UnmarshalWASM(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *FunctionSig) MarshalWASM(w io.Writer) error {
	if _, err := leb128.WriteVarUint32(w, 0x60); err != nil {
		return err
	}
	if _, err := leb128.WriteVarUint32(w, uint32(len(s.ParamTypes))); err != nil {
		return err
	}
	for _, t := range s.ParamTypes {
		if err := t.MarshalWASM(w); err != nil {
			return err
		}
	}
	if _, err := leb128.WriteVarUint32(w, uint32(len(s.ReturnTypes))); err != nil {
		return err
	}
	for _, t := range s.ReturnTypes {
		if err := t.MarshalWASM(w); err != nil {
			return err
		}
	}
	return nil
}

// External identifies the kind of an import or export entry.
type External uint8

const (
	ExternalFunction External = 0x00
	ExternalTable    External = 0x01
	ExternalMemory   External = 0x02
	ExternalGlobal   External = 0x03
)

func (e External) String() string {
	switch e {
	case ExternalFunction:
		return "func"
	case ExternalTable:
		return "table"
	case ExternalMemory:
		return "memory"
	case ExternalGlobal:
		return "global"
	default:
		return "unknown"
	}
}

func (e *External) UnmarshalWASM(r io.Reader) error {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return err
	}
	kind := External(b[0])
	switch kind {
	case ExternalFunction, ExternalTable, ExternalMemory, ExternalGlobal:
		*e = kind
		return nil
	default:
		return InvalidExternalError(b[0])
	}
}

func (e External) MarshalWASM(w io.Writer) error {
	_, err := w.Write([]byte{byte(e)})
	return err
}

// ResizableLimits describes the size bounds of a table or linear memory, in
// units of pages (memory) or elements (table).
type ResizableLimits struct {
	Flags   uint32 // bit 0 set iff Maximum is present
	Initial uint32
	Maximum uint32
}

func (l *ResizableLimits) UnmarshalWASM(r io.Reader) error {
	flags, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	l.Flags = flags
	if l.Initial, err = leb128.ReadVarUint32(r); err != nil {
		return err
	}
	if flags&0x1 != 0 {
		if l.Maximum, err = leb128.ReadVarUint32(r); err != nil {
			return err
		}
	}
	return nil
}

func (l ResizableLimits) MarshalWASM(w io.Writer) error {
	flags := l.Flags & 0x1
	if _, err := leb128.WriteVarUint32(w, flags); err != nil {
		return err
	}
	if _, err := leb128.WriteVarUint32(w, l.Initial); err != nil {
		return err
	}
	if flags&0x1 != 0 {
		if _, err := leb128.WriteVarUint32(w, l.Maximum); err != nil {
			return err
		}
	}
	return nil
}

// HasMax reports whether the limits carry an explicit maximum.
func (l ResizableLimits) HasMax() bool {
	return l.Flags&0x1 != 0
}

// ElemType is the element type of a table. The MVP only defines funcref.
type ElemType int8

const ElemTypeAnyFunc ElemType = -0x10

// Table is a table type: an element type plus its size limits.
type Table struct {
	ElementType ElemType
	Limits      ResizableLimits
}

func (t *Table) UnmarshalWASM(r io.Reader) error {
	et, err := leb128.ReadVarint32(r)
	if err != nil {
		return err
	}
	t.ElementType = ElemType(et)
	return t.Limits.UnmarshalWASM(r)
}

func (t Table) MarshalWASM(w io.Writer) error {
	if _, err := leb128.WriteVarint32(w, int32(t.ElementType)); err != nil {
		return err
	}
	return t.Limits.MarshalWASM(w)
}

// Memory is a linear memory type: its size limits in pages.
type Memory struct {
	Limits ResizableLimits
}

func (m *Memory) UnmarshalWASM(r io.Reader) error {
	return m.Limits.UnmarshalWASM(r)
}

func (m Memory) MarshalWASM(w io.Writer) error {
	return m.Limits.MarshalWASM(w)
}

// GlobalVar is a global variable's type: its value type and mutability.
type GlobalVar struct {
	Type    ValueType
	Mutable bool
}

func (g *GlobalVar) UnmarshalWASM(r io.Reader) error {
	if err := g.Type.UnmarshalWASM(r); err != nil {
		return err
	}
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return err
	}
	g.Mutable = b[0] != 0
	return nil
}

func (g GlobalVar) MarshalWASM(w io.Writer) error {
	if err := g.Type.MarshalWASM(w); err != nil {
		return err
	}
	mut := byte(0)
	if g.Mutable {
		mut = 1
	}
	_, err := w.Write([]byte{mut})
	return err
}

// readBytes reads exactly n raw bytes with no length prefix.
func readBytes(r io.Reader, n uint32) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// readBytesUint reads a LEB128 length prefix followed by that many raw bytes.
func readBytesUint(r io.Reader) ([]byte, error) {
	n, err := leb128.ReadVarUint32(r)
	if err != nil {
		return nil, err
	}
	return readBytes(r, n)
}

// writeBytesUint writes a LEB128 length prefix followed by the raw bytes.
func writeBytesUint(w io.Writer, b []byte) error {
	if _, err := leb128.WriteVarUint32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func writeStringUint(w io.Writer, s string) error {
	if _, err := leb128.WriteVarUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readUTF8StringUint(r io.Reader) (string, error) {
	n, err := leb128.ReadVarUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
