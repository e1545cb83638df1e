package translator

import (
	"github.com/wasmkit/asm2wasm/asmjs"
	"github.com/wasmkit/asm2wasm/ir"
	"github.com/wasmkit/asm2wasm/wasm"
)

// rewriteUdivmoddi4 implements §4.8's native-i64 division rewrite: asm.js has
// no i64 type, so emscripten's runtime implements 64-bit unsigned division as
// a pair of exported helpers, __udivmoddi4 (the division itself) and
// getTempRet0 (a getter for the emscripten "high word out-param" global).
// WASM has a native i64, so when a source exports both, __udivmoddi4's body
// is replaced wholesale with a direct i64 division. getTempRet0's already
// translated body is inspected only to learn which global backs the tempRet0
// convention; getTempRet0 itself is left exported and untouched.
//
// Grounded on the original emscripten asm2wasm pass (original_source's
// asm2wasm.h, "generate a wasm-optimized __udivmoddi4 method").
func (c *Context) rewriteUdivmoddi4(mod *asmjs.Module) error {
	const divName = "__udivmoddi4"
	const retName = "getTempRet0"

	if !isExportedIdent(mod, divName) || !isExportedIdent(mod, retName) {
		return nil
	}
	if _, ok := c.Functions[divName]; !ok {
		return nil
	}
	retFn, ok := c.Functions[retName]
	if !ok {
		return nil
	}

	tempRet0Index, err := globalReturnedBy(retFn)
	if err != nil {
		return Errorf(ErrShapeViolation, "rewrite %s: %s does not return a bare global read: %v", divName, retName, err)
	}

	c.Functions[divName] = buildUdivmoddi4(divName, tempRet0Index)
	return nil
}

func isExportedIdent(mod *asmjs.Module, ident string) bool {
	if mod.Exports == nil {
		return false
	}
	for _, e := range mod.Exports.Entries {
		if e.Ident == ident {
			return true
		}
	}
	return false
}

// globalReturnedBy extracts the global index out of the bare
// `return someGlobal;`-shaped body getTempRet0 must have for this rewrite to
// apply, unwrapping the top-level Return if the translator emitted one.
func globalReturnedBy(fn *ir.Function) (int, error) {
	if len(fn.Body) == 0 {
		return 0, Errorf(ErrShapeViolation, "empty body")
	}
	n := fn.Node(fn.Body[len(fn.Body)-1])
	if n.Op == ir.OpReturn {
		if n.A == ir.NoHandle {
			return 0, Errorf(ErrShapeViolation, "return has no value")
		}
		n = fn.Node(n.A)
	}
	if n.Op != ir.OpGetGlobal {
		return 0, Errorf(ErrShapeViolation, "final statement is not a global read")
	}
	return int(n.Imm), nil
}

// buildUdivmoddi4 constructs the replacement function from scratch: params
// xl, xh, yl, yh, r (i32); locals x64, y64 (i64) recreated from the argument
// halves. If r is nonzero, the unsigned i64 remainder is stored there as an
// 8-byte value; x64 is then overwritten with the unsigned i64 quotient, whose
// high word is written to the tempRet0 global and whose low word is the
// function's implicit result.
func buildUdivmoddi4(name string, tempRet0Index int) *ir.Function {
	fn := ir.NewFunction(name, []wasm.ValueType{
		wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32,
	})
	fn.LocalNames = []string{"xl", "xh", "yl", "yh", "r"}
	fn.Results = []wasm.ValueType{wasm.ValueTypeI32}

	const xl, xh, yl, yh, r = 0, 1, 2, 3, 4
	x64 := fn.AddLocal("x64", wasm.ValueTypeI64)
	y64 := fn.AddLocal("y64", wasm.ValueTypeI64)

	recreate := func(lo, hi int) ir.Handle {
		loExt := fn.New(ir.Unary(wasm.ValueTypeI64, "extend_u_i32_i64", fn.New(ir.GetLocal(wasm.ValueTypeI32, lo))))
		hiExt := fn.New(ir.Unary(wasm.ValueTypeI64, "extend_u_i32_i64", fn.New(ir.GetLocal(wasm.ValueTypeI32, hi))))
		hiShl := fn.New(ir.Binary(wasm.ValueTypeI64, "shl", false, hiExt, fn.New(ir.Const(wasm.ValueTypeI64, 32))))
		return fn.New(ir.Binary(wasm.ValueTypeI64, "or", false, hiShl, loExt))
	}

	setX := fn.New(ir.SetLocal(x64, recreate(xl, xh)))
	setY := fn.New(ir.SetLocal(y64, recreate(yl, yh)))

	rem := fn.New(ir.Binary(wasm.ValueTypeI64, "rem", false,
		fn.New(ir.GetLocal(wasm.ValueTypeI64, x64)), fn.New(ir.GetLocal(wasm.ValueTypeI64, y64))))
	store := fn.New(ir.Store("", 8, fn.New(ir.GetLocal(wasm.ValueTypeI32, r)), rem))
	ifStore := fn.New(ir.If(fn.New(ir.GetLocal(wasm.ValueTypeI32, r)), store, ir.NoHandle))

	quotient := fn.New(ir.Binary(wasm.ValueTypeI64, "div", false,
		fn.New(ir.GetLocal(wasm.ValueTypeI64, x64)), fn.New(ir.GetLocal(wasm.ValueTypeI64, y64))))
	setQuotient := fn.New(ir.SetLocal(x64, quotient))

	highWord := fn.New(ir.Unary(wasm.ValueTypeI32, "wrap_i64_i32",
		fn.New(ir.Binary(wasm.ValueTypeI64, "shr", false, fn.New(ir.GetLocal(wasm.ValueTypeI64, x64)), fn.New(ir.Const(wasm.ValueTypeI64, 32))))))
	setTempRet0 := fn.New(ir.SetGlobal(tempRet0Index, highWord))

	lowWord := fn.New(ir.Unary(wasm.ValueTypeI32, "wrap_i64_i32", fn.New(ir.GetLocal(wasm.ValueTypeI64, x64))))

	fn.Body = []ir.Handle{setX, setY, ifStore, setQuotient, setTempRet0, lowWord}
	return fn
}
