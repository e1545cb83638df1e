package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmkit/asm2wasm/asmjs"
	"github.com/wasmkit/asm2wasm/ir"
	"github.com/wasmkit/asm2wasm/wasm"
)

func exportsNamed(idents ...string) *asmjs.Module {
	entries := make([]asmjs.ExportEntry, len(idents))
	for i, id := range idents {
		entries[i] = asmjs.ExportEntry{Name: id, Ident: id}
	}
	return &asmjs.Module{Exports: &asmjs.ExportObject{Entries: entries}}
}

func TestGlobalReturnedByBareReturn(t *testing.T) {
	fn := ir.NewFunction("getTempRet0", nil)
	g := fn.New(ir.GetGlobal(wasm.ValueTypeI32, 5))
	fn.Body = []ir.Handle{fn.New(ir.Return(g))}

	idx, err := globalReturnedBy(fn)
	require.NoError(t, err)
	assert.Equal(t, 5, idx)
}

func TestGlobalReturnedByBareExpression(t *testing.T) {
	fn := ir.NewFunction("getTempRet0", nil)
	fn.Body = []ir.Handle{fn.New(ir.GetGlobal(wasm.ValueTypeI32, 7))}

	idx, err := globalReturnedBy(fn)
	require.NoError(t, err)
	assert.Equal(t, 7, idx)
}

func TestGlobalReturnedByRejectsOtherShapes(t *testing.T) {
	fn := ir.NewFunction("getTempRet0", nil)
	fn.Body = []ir.Handle{fn.New(ir.Const(wasm.ValueTypeI32, 0))}

	_, err := globalReturnedBy(fn)
	require.Error(t, err)
}

func TestRewriteUdivmoddi4ReplacesBody(t *testing.T) {
	c := NewContext(DefaultConfig())

	div := ir.NewFunction("__udivmoddi4", []wasm.ValueType{wasm.ValueTypeI32})
	div.Body = []ir.Handle{div.New(ir.Const(wasm.ValueTypeI32, 0))}
	c.Functions["__udivmoddi4"] = div

	ret := ir.NewFunction("getTempRet0", nil)
	ret.Body = []ir.Handle{ret.New(ir.GetGlobal(wasm.ValueTypeI32, 3))}
	c.Functions["getTempRet0"] = ret

	mod := exportsNamed("__udivmoddi4", "getTempRet0")

	require.NoError(t, c.rewriteUdivmoddi4(mod))

	rewritten := c.Functions["__udivmoddi4"]
	assert.Equal(t, []wasm.ValueType{
		wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32,
	}, rewritten.Params)
	assert.Equal(t, []wasm.ValueType{wasm.ValueTypeI64, wasm.ValueTypeI64}, rewritten.Locals)
	assert.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, rewritten.Results)
	assert.Len(t, rewritten.Body, 6)

	setTempRet0 := rewritten.Node(rewritten.Body[4])
	require.Equal(t, ir.OpSetGlobal, setTempRet0.Op)
	assert.EqualValues(t, 3, setTempRet0.Imm)
}

func TestRewriteUdivmoddi4NoopWhenNotBothExported(t *testing.T) {
	c := NewContext(DefaultConfig())
	div := ir.NewFunction("__udivmoddi4", nil)
	c.Functions["__udivmoddi4"] = div

	mod := exportsNamed("__udivmoddi4")

	require.NoError(t, c.rewriteUdivmoddi4(mod))
	assert.Same(t, div, c.Functions["__udivmoddi4"])
}
