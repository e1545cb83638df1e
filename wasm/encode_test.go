// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmkit/asm2wasm/wasm"
)

func TestEncodeModuleRoundTrip(t *testing.T) {
	m := wasm.NewModule()

	m.Types.Entries = append(m.Types.Entries, wasm.FunctionSig{
		Form:        0x60,
		ParamTypes:  []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32},
		ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32},
	})

	m.Import.Entries = append(m.Import.Entries, wasm.ImportEntry{
		ModuleName: "env",
		FieldName:  "memory",
		Type:       wasm.MemoryImport{Type: wasm.Memory{Limits: wasm.ResizableLimits{Minimum: 1}}},
	})

	m.Global.Globals = append(m.Global.Globals, wasm.GlobalEntry{
		Type: wasm.GlobalVar{Type: wasm.ValueTypeI32, Mutable: true},
		Init: []byte{byte(0x41), 0x2a, 0x0b}, // i32.const 42; end
	})

	m.Export.Entries = append(m.Export.Entries, wasm.ExportEntry{
		FieldStr: "counter",
		Kind:     wasm.ExternalGlobal,
		Index:    0,
	})

	var buf bytes.Buffer
	require.NoError(t, wasm.EncodeModule(&buf, m))

	decoded, err := wasm.DecodeModule(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	require.NotNil(t, decoded.Types)
	require.Len(t, decoded.Types.Entries, 1)
	assert.Equal(t, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, decoded.Types.Entries[0].ParamTypes)

	require.NotNil(t, decoded.Import)
	require.Len(t, decoded.Import.Entries, 1)
	assert.Equal(t, "memory", decoded.Import.Entries[0].FieldName)

	require.NotNil(t, decoded.Global)
	require.Len(t, decoded.Global.Globals, 1)
	assert.True(t, decoded.Global.Globals[0].Type.Mutable)

	require.NotNil(t, decoded.Export)
	require.Len(t, decoded.Export.Entries, 1)
	assert.Equal(t, "counter", decoded.Export.Entries[0].FieldStr)
}

func TestEncodeModuleOmitsEmptySections(t *testing.T) {
	m := wasm.NewModule()
	m.Function = &wasm.SectionFunctions{}
	m.Code = &wasm.SectionCode{}

	var buf bytes.Buffer
	require.NoError(t, wasm.EncodeModule(&buf, m))

	decoded, err := wasm.DecodeModule(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Empty(t, decoded.Sections)
}
