package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmkit/asm2wasm/asmjs"
	"github.com/wasmkit/asm2wasm/wasm"
)

func TestRegisterGlobalLiteralPreservesInitBits(t *testing.T) {
	c := NewContext(DefaultConfig())
	mod := &asmjs.Module{Globals: []*asmjs.VarDecl{
		{Name: "x", Init: &asmjs.NumberLiteral{Value: 42}},
		{Name: "y", Init: &asmjs.NumberLiteral{Value: 2.5, IsFloat: true}},
	}}

	require.NoError(t, c.RegisterGlobals(mod))

	assert.Equal(t, uint64(42), c.Globals["x"].InitBits)
	assert.Equal(t, wasm.ValueTypeI32, c.Globals["x"].Type)
	assert.Equal(t, toF64Bits(2.5), c.Globals["y"].InitBits)
	assert.Equal(t, wasm.ValueTypeF64, c.Globals["y"].Type)
}

func TestRegisterGlobalFroundLiteralUsesF32Bits(t *testing.T) {
	c := NewContext(DefaultConfig())
	mod := &asmjs.Module{Globals: []*asmjs.VarDecl{
		{Name: "half", Init: &asmjs.CoerceExpr{Op: "fround", X: &asmjs.NumberLiteral{Value: 0.5, IsFloat: true}}},
	}}

	require.NoError(t, c.RegisterGlobals(mod))

	g := c.Globals["half"]
	assert.Equal(t, wasm.ValueTypeF32, g.Type)
	assert.Equal(t, uint64(toF32Bits(0.5)), g.InitBits)
	assert.False(t, g.Imported)
}

func TestRegisterGlobalFroundImportIsMutable(t *testing.T) {
	c := NewContext(DefaultConfig())
	mod := &asmjs.Module{Globals: []*asmjs.VarDecl{
		{Name: "h", Init: &asmjs.CoerceExpr{Op: "fround", X: &asmjs.Ident{Name: "someImport"}}},
	}}

	require.NoError(t, c.RegisterGlobals(mod))

	g := c.Globals["h"]
	assert.True(t, g.Imported)
	assert.Equal(t, wasm.ValueTypeF32, g.Type)
	assert.Equal(t, "env", g.Module)
	assert.Equal(t, "someImport", g.Field)
	assert.True(t, g.Mutable)
}

func TestFindFixedGlobalImportLooksUpByFieldNotBindingName(t *testing.T) {
	c := NewContext(DefaultConfig())
	mod := &asmjs.Module{Globals: []*asmjs.VarDecl{
		{Name: "tb", Init: &asmjs.CoerceExpr{Op: "|0", X: &asmjs.Ident{Name: "tableBase"}}},
	}}

	require.NoError(t, c.RegisterGlobals(mod))

	g := c.findFixedGlobalImport("tableBase")
	require.NotNil(t, g)
	assert.Equal(t, "tb", g.Name)
	// memoryBase was never bound by the source; ensureFixedGlobalImports must
	// still have synthesized an entry for it.
	mb := c.findFixedGlobalImport("memoryBase")
	require.NotNil(t, mb)
	assert.Equal(t, "memoryBase", mb.Name)
}

func TestAssignGlobalIndicesNumbersImportsThenLocals(t *testing.T) {
	c := NewContext(DefaultConfig())
	mod := &asmjs.Module{Globals: []*asmjs.VarDecl{
		{Name: "counter", Init: &asmjs.NumberLiteral{Value: 0}},
		{Name: "tb", Init: &asmjs.CoerceExpr{Op: "|0", X: &asmjs.Ident{Name: "tableBase"}}},
	}}

	require.NoError(t, c.RegisterGlobals(mod))

	tb := c.Globals["tb"]
	counter := c.Globals["counter"]
	mb := c.findFixedGlobalImport("memoryBase")

	// Two imports (tb, the synthesized memoryBase) occupy indices 0-1; every
	// Mapped Global then gets one local-section slot starting at 2.
	imported := map[int]bool{tb.ImportIndex: true, mb.ImportIndex: true}
	assert.Len(t, imported, 2)
	assert.ElementsMatch(t, []int{0, 1}, []int{tb.ImportIndex, mb.ImportIndex})

	localIndices := []int{tb.MutableGlobalIndex, mb.MutableGlobalIndex, counter.GlobalIndex}
	assert.ElementsMatch(t, []int{2, 3, 4}, localIndices)
}

func TestDotExprOrdinaryImportIsNoop(t *testing.T) {
	c := NewContext(DefaultConfig())
	mod := &asmjs.Module{Globals: []*asmjs.VarDecl{
		{Name: "foo", Init: &asmjs.DotExpr{X: &asmjs.Ident{Name: "env"}, Name: "foo"}},
	}}

	require.NoError(t, c.RegisterGlobals(mod))
	_, ok := c.Globals["foo"]
	assert.False(t, ok)
}
