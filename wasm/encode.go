// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"bytes"
	"io"

	"github.com/wasmkit/asm2wasm/wasm/leb128"
)

// EncodeModule writes m as a binary WASM module: the magic header and
// version, followed by every non-empty section in the order the core
// specification prescribes. It is DecodeModule's write-side counterpart;
// this package previously only needed to read modules (for the
// interpreter), so there was nothing to mirror it until an encoder gained
// a caller.
func EncodeModule(w io.Writer, m *Module) error {
	if _, err := w.Write([]byte{0x00, 0x61, 0x73, 0x6d}); err != nil {
		return err
	}
	var ver [4]byte
	ver[0] = byte(Version)
	if _, err := w.Write(ver[:]); err != nil {
		return err
	}

	sections := []struct {
		id  SectionID
		sec Section
	}{
		{SectionIDType, nilIfEmptyTypes(m.Types)},
		{SectionIDImport, nilIfEmptyImports(m.Import)},
		{SectionIDFunction, nilIfEmptyFunctions(m.Function)},
		{SectionIDTable, nilIfEmptyTables(m.Table)},
		{SectionIDMemory, nilIfEmptyMemories(m.Memory)},
		{SectionIDGlobal, nilIfEmptyGlobals(m.Global)},
		{SectionIDExport, nilIfEmptyExports(m.Export)},
		{SectionIDStart, nilIfUnsetStart(m.Start)},
		{SectionIDElement, nilIfEmptyElements(m.Elements)},
		{SectionIDCode, nilIfEmptyCode(m.Code)},
		{SectionIDData, nilIfEmptyData(m.Data)},
	}

	for _, s := range sections {
		if s.sec == nil {
			continue
		}
		if err := writeSection(w, s.id, s.sec); err != nil {
			return err
		}
	}

	for _, c := range m.Customs {
		if err := writeSection(w, SectionIDCustom, c); err != nil {
			return err
		}
	}
	return nil
}

func writeSection(w io.Writer, id SectionID, sec Section) error {
	var payload bytes.Buffer
	if err := sec.WritePayload(&payload); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(id)}); err != nil {
		return err
	}
	if _, err := leb128.WriteVarUint32(w, uint32(payload.Len())); err != nil {
		return err
	}
	_, err := w.Write(payload.Bytes())
	return err
}

func nilIfEmptyTypes(s *SectionTypes) Section {
	if s == nil || len(s.Entries) == 0 {
		return nil
	}
	return s
}

func nilIfEmptyImports(s *SectionImports) Section {
	if s == nil || len(s.Entries) == 0 {
		return nil
	}
	return s
}

func nilIfEmptyFunctions(s *SectionFunctions) Section {
	if s == nil || len(s.Types) == 0 {
		return nil
	}
	return s
}

func nilIfEmptyTables(s *SectionTables) Section {
	if s == nil || len(s.Entries) == 0 {
		return nil
	}
	return s
}

func nilIfEmptyMemories(s *SectionMemories) Section {
	if s == nil || len(s.Entries) == 0 {
		return nil
	}
	return s
}

func nilIfEmptyGlobals(s *SectionGlobals) Section {
	if s == nil || len(s.Globals) == 0 {
		return nil
	}
	return s
}

func nilIfEmptyExports(s *SectionExports) Section {
	if s == nil || len(s.Entries) == 0 {
		return nil
	}
	return s
}

func nilIfUnsetStart(s *SectionStartFunction) Section {
	return nil // the MVP asm.js translator never designates a start function
}

func nilIfEmptyElements(s *SectionElements) Section {
	if s == nil || len(s.Entries) == 0 {
		return nil
	}
	return s
}

func nilIfEmptyCode(s *SectionCode) Section {
	if s == nil || len(s.Bodies) == 0 {
		return nil
	}
	return s
}

func nilIfEmptyData(s *SectionData) Section {
	if s == nil || len(s.Entries) == 0 {
		return nil
	}
	return s
}
