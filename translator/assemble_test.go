package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmkit/asm2wasm/asmjs"
	"github.com/wasmkit/asm2wasm/ir"
	"github.com/wasmkit/asm2wasm/wasm"
)

func simpleModule(t *testing.T, c *Context) *asmjs.Module {
	t.Helper()
	mod := &asmjs.Module{
		Globals: []*asmjs.VarDecl{
			{Name: "tb", Init: &asmjs.CoerceExpr{Op: "|0", X: &asmjs.Ident{Name: "tableBase"}}},
		},
	}
	require.NoError(t, c.RegisterGlobals(mod))
	return mod
}

func TestAssembleWiresFixedImportsAndExports(t *testing.T) {
	c := NewContext(DefaultConfig())
	mod := simpleModule(t, c)

	fn := ir.NewFunction("add", []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32})
	fn.Results = []wasm.ValueType{wasm.ValueTypeI32}
	sum := fn.New(ir.Binary(wasm.ValueTypeI32, "add", false,
		fn.New(ir.GetLocal(wasm.ValueTypeI32, 0)), fn.New(ir.GetLocal(wasm.ValueTypeI32, 1))))
	fn.Body = []ir.Handle{sum}
	c.Functions["add"] = fn
	c.FunctionOrder = []string{"add"}

	mod.Exports = &asmjs.ExportObject{Entries: []asmjs.ExportEntry{
		{Name: "add", Ident: "add"},
		{Name: "version", Value: 3, IsNum: true},
	}}

	m, err := c.Assemble(mod)
	require.NoError(t, err)

	// env.memory, env.table, and the two fixed globals (tableBase bound as
	// "tb", memoryBase synthesized) are imported ahead of any ffi import.
	require.Len(t, m.Import.Entries, 4)
	assert.Equal(t, "memory", m.Import.Entries[0].FieldName)
	assert.Equal(t, "table", m.Import.Entries[1].FieldName)

	require.Len(t, m.Export.Entries, 2)
	kinds := map[string]wasm.External{}
	for _, e := range m.Export.Entries {
		kinds[e.FieldStr] = e.Kind
	}
	assert.Equal(t, wasm.ExternalFunction, kinds["add"])
	assert.Equal(t, wasm.ExternalGlobal, kinds["version"])
}

func TestAssembleElementSegmentUsesTableBaseByField(t *testing.T) {
	c := NewContext(DefaultConfig())
	mod := simpleModule(t, c)

	helper := ir.NewFunction("helper", nil)
	helper.Body = nil
	c.Functions["helper"] = helper
	c.FunctionOrder = []string{"helper"}
	c.addTable("FUNCTION_TABLE_v", []string{"helper"})

	m, err := c.Assemble(mod)
	require.NoError(t, err)

	require.Len(t, m.Elements.Entries, 1)
	assert.Equal(t, []uint32{0}, m.Elements.Entries[0].Elems)
}

func TestAssembleDuplicateExportKeepsLastBinding(t *testing.T) {
	c := NewContext(DefaultConfig())
	mod := simpleModule(t, c)

	a := ir.NewFunction("a", nil)
	b := ir.NewFunction("b", nil)
	c.Functions["a"] = a
	c.Functions["b"] = b
	c.FunctionOrder = []string{"a", "b"}

	mod.Exports = &asmjs.ExportObject{Entries: []asmjs.ExportEntry{
		{Name: "f", Ident: "a"},
		{Name: "f", Ident: "b"},
	}}

	m, err := c.Assemble(mod)
	require.NoError(t, err)

	require.Len(t, m.Export.Entries, 1)
	// "b" is FunctionOrder's second entry. Only function imports occupy the
	// function index space, and this fixture has none (no ffi imports), so
	// "b" is index 1.
	wantIndex := uint32(1)
	assert.Equal(t, wantIndex, m.Export.Entries[0].Index)
}
