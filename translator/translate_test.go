package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmkit/asm2wasm/asmjs"
	"github.com/wasmkit/asm2wasm/wasm"
)

// addModule builds §8 scenario 1's asm.js function:
//
//	function add(x,y){ x=x|0; y=y|0; return (x+y)|0; }
func addModule() *asmjs.Module {
	coerce := func(name string) *asmjs.VarDecl {
		return &asmjs.VarDecl{Name: name, Init: &asmjs.CoerceExpr{Op: "|0", X: &asmjs.Ident{Name: name}}}
	}
	fn := &asmjs.Function{
		Name:      "add",
		Params:    []string{"x", "y"},
		Coercions: []*asmjs.VarDecl{coerce("x"), coerce("y")},
		Body: []asmjs.Stmt{
			&asmjs.ReturnStmt{X: &asmjs.CoerceExpr{Op: "|0", X: &asmjs.BinaryExpr{
				Op: "+", X: &asmjs.Ident{Name: "x"}, Y: &asmjs.Ident{Name: "y"},
			}}},
		},
	}
	return &asmjs.Module{
		Functions: []*asmjs.Function{fn},
		Exports:   &asmjs.ExportObject{Entries: []asmjs.ExportEntry{{Name: "add", Ident: "add"}}},
	}
}

func TestTranslateEndToEnd(t *testing.T) {
	mod := addModule()

	m, err := Translate(mod, DefaultConfig(), false)
	require.NoError(t, err)

	require.NotNil(t, m.Types)
	require.Len(t, m.Types.Entries, 1)
	assert.Equal(t, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, m.Types.Entries[0].ParamTypes)
	assert.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, m.Types.Entries[0].ReturnTypes)

	require.NotNil(t, m.Code)
	require.Len(t, m.Code.Bodies, 1)
	assert.NotEmpty(t, m.Code.Bodies[0].Code)

	require.NotNil(t, m.Export)
	require.Len(t, m.Export.Entries, 1)
	assert.Equal(t, "add", m.Export.Entries[0].FieldStr)
	assert.Equal(t, wasm.ExternalFunction, m.Export.Entries[0].Kind)
}
