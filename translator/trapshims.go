package translator

import (
	"strings"

	"github.com/jszwec/csvutil"

	"github.com/wasmkit/asm2wasm/ir"
	"github.com/wasmkit/asm2wasm/wasm"
)

// shimRow is one entry of the embedded trap-shim catalogue: which
// (operation, width) pairs need a synthesized helper function, and what
// shape its body takes. Keeping this as data decoded through csvutil
// (rather than a Go literal table) mirrors how the rest of this module
// treats its small reference tables (the typed-array view table is the
// exception, since its fields carry Go types csvutil can't decode into).
type shimRow struct {
	Operation string `csv:"operation"`
	Width     string `csv:"width"`
	Mode      string `csv:"mode"`
	BodyKind  string `csv:"body_kind"`
}

const shimCatalogueCSV = `operation,width,mode,body_kind
div,i32,signed,int_div
div,i32,unsigned,int_div
rem,i32,signed,int_div
rem,i32,unsigned,int_div
trunc,i32,allow,float_trunc
trunc,i32,clamp,float_trunc
trunc,i32,js,float_trunc
rem,f64,any,float_rem
`

var shimCatalogue []shimRow

func init() {
	if err := csvutil.Unmarshal([]byte(shimCatalogueCSV), &shimCatalogue); err != nil {
		panic("translator: embedded trap-shim catalogue is malformed: " + err.Error())
	}
}

// shimKey is AddedHelpers' fingerprint (§4.6, §9: "at most once per
// (operation, width) pair, never a package-level static").
func shimKey(operation, width, mode string) string {
	return operation + "/" + width + "/" + mode
}

// emitIntDivRem implements §4.6's integer division/remainder trap shim: a
// divisor of zero, and for signed division additionally INT_MIN/-1, must not
// fault the host the way a raw i32.div_s/rem_s would; asm.js defines both as
// producing 0. The shim is synthesized once per (operation, signed) pair and
// reused via ir.Call from every call site.
func (fc *functionCompiler) emitIntDivRem(name string, signed bool, x, y ir.Handle) (ir.Handle, error) {
	mode := "unsigned"
	if signed {
		mode = "signed"
	}
	key := shimKey(name, "i32", mode)
	helperName := "$shim$" + strings.ReplaceAll(key, "/", "_")

	if _, ok := fc.ctx.AddedHelpers[key]; !ok {
		helper, err := buildIntDivRemShim(helperName, name, signed)
		if err != nil {
			return ir.NoHandle, err
		}
		fc.ctx.AddedHelpers[key] = helper
	}

	return fc.fn.New(ir.Call(wasm.ValueTypeI32, helperName, []ir.Handle{x, y})), nil
}

// buildIntDivRemShim constructs the helper function body:
//
//	function(x, y) {
//	  if (y == 0) return 0;
//	  if (signed && x == INT_MIN && y == -1) return 0;
//	  return x op y;
//	}
func buildIntDivRemShim(helperName, op string, signed bool) (*ir.Function, error) {
	h := ir.NewFunction(helperName, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32})
	h.Results = []wasm.ValueType{wasm.ValueTypeI32}

	getX := h.New(ir.GetLocal(wasm.ValueTypeI32, 0))
	getY := h.New(ir.GetLocal(wasm.ValueTypeI32, 1))
	zero := h.New(ir.Const(wasm.ValueTypeI32, 0))

	yIsZero := h.New(ir.Binary(wasm.ValueTypeI32, "eq", false, getY, zero))
	zeroGuard := h.New(ir.If(yIsZero, h.New(ir.Block("", []ir.Handle{h.New(ir.Return(zero))})), ir.NoHandle))

	body := []ir.Handle{zeroGuard}

	if signed {
		getX2 := h.New(ir.GetLocal(wasm.ValueTypeI32, 0))
		getY2 := h.New(ir.GetLocal(wasm.ValueTypeI32, 1))
		intMin := h.New(ir.Const(wasm.ValueTypeI32, int64(int32(-2147483648))))
		negOne := h.New(ir.Const(wasm.ValueTypeI32, -1))
		xIsMin := h.New(ir.Binary(wasm.ValueTypeI32, "eq", false, getX2, intMin))
		yIsNegOne := h.New(ir.Binary(wasm.ValueTypeI32, "eq", false, getY2, negOne))
		overflow := h.New(ir.Binary(wasm.ValueTypeI32, "and", false, xIsMin, yIsNegOne))

		overflowResult := zero
		overflowGuard := h.New(ir.If(overflow, h.New(ir.Block("", []ir.Handle{h.New(ir.Return(overflowResult))})), ir.NoHandle))
		body = append(body, overflowGuard)
	}

	getX3 := h.New(ir.GetLocal(wasm.ValueTypeI32, 0))
	getY3 := h.New(ir.GetLocal(wasm.ValueTypeI32, 1))
	result := h.New(ir.Binary(wasm.ValueTypeI32, op, signed, getX3, getY3))
	body = append(body, h.New(ir.Return(result)))

	h.Body = body
	return h, nil
}

// emitF64Rem implements asm.js's `%` over doubles, which is the C fmod
// operation rather than WASM's IEEE remainder; WASM has no float remainder
// instruction at all, so this always goes through a helper that calls the
// runtime's f64-rem import.
func (fc *functionCompiler) emitF64Rem(x, y ir.Handle) (ir.Handle, error) {
	key := shimKey("rem", "f64", "any")
	helperName := "$shim$rem_f64_any"
	if _, ok := fc.ctx.AddedHelpers[key]; !ok {
		h := ir.NewFunction(helperName, []wasm.ValueType{wasm.ValueTypeF64, wasm.ValueTypeF64})
		h.Results = []wasm.ValueType{wasm.ValueTypeF64}
		a := h.New(ir.GetLocal(wasm.ValueTypeF64, 0))
		b := h.New(ir.GetLocal(wasm.ValueTypeF64, 1))
		call := h.New(ir.CallImport(wasm.ValueTypeF64, "f64-rem", []ir.Handle{a, b}))
		h.Body = []ir.Handle{h.New(ir.Return(call))}
		fc.ctx.AddedHelpers[key] = h
		fc.ctx.Observe("f64-rem", []wasm.ValueType{wasm.ValueTypeF64, wasm.ValueTypeF64}, wasm.ValueTypeF64)
	}
	return fc.fn.New(ir.Call(wasm.ValueTypeF64, helperName, []ir.Handle{x, y})), nil
}

// emitFloatToInt implements §4.6's `~~x` conversion shim. The three modes
// differ only in what happens when x is out of i32 range or NaN:
//
//	Allow: emit the raw trunc instruction and accept a trap on overflow/NaN.
//	Clamp: return INT_MIN for NaN and for any value outside the i32 range,
//	       above or below (both overflow directions and NaN converge on
//	       INT_MIN, not 0); in-range values go through a signed trunc.
//	JS:    reproduce ECMAScript ToInt32 exactly via a runtime helper import,
//	       for code that depends on JS's wraparound semantics.
func (fc *functionCompiler) emitFloatToInt(inner typed, signed bool, mode TrapMode) (ir.Handle, error) {
	truncOp := "trunc_s_f64_i32"
	if !signed {
		truncOp = "trunc_u_f64_i32"
	}
	if inner.t == wasm.ValueTypeF32 {
		truncOp = strings.Replace(truncOp, "f64", "f32", 1)
	}

	switch mode {
	case TrapAllow:
		return fc.fn.New(ir.Unary(wasm.ValueTypeI32, truncOp, inner.h)), nil

	case TrapJS:
		key := shimKey("trunc", "i32", "js")
		helperName := "$shim$trunc_i32_js"
		if _, ok := fc.ctx.AddedHelpers[key]; !ok {
			h := ir.NewFunction(helperName, []wasm.ValueType{wasm.ValueTypeF64})
			h.Results = []wasm.ValueType{wasm.ValueTypeI32}
			arg := h.New(ir.GetLocal(wasm.ValueTypeF64, 0))
			call := h.New(ir.CallImport(wasm.ValueTypeI32, "f64-to-int", []ir.Handle{arg}))
			h.Body = []ir.Handle{h.New(ir.Return(call))}
			fc.ctx.AddedHelpers[key] = h
			fc.ctx.Observe("f64-to-int", []wasm.ValueType{wasm.ValueTypeF64}, wasm.ValueTypeI32)
		}
		return fc.fn.New(ir.Call(wasm.ValueTypeI32, helperName, []ir.Handle{inner.h})), nil

	case TrapClamp:
		truncOp = strings.Replace(truncOp, "trunc_u", "trunc_s", 1)
		key := shimKey("trunc", "i32", "clamp")
		helperName := "$shim$trunc_i32_clamp_" + truncOp
		if _, ok := fc.ctx.AddedHelpers[key+truncOp]; !ok {
			h, err := buildClampShim(helperName, truncOp, inner.t)
			if err != nil {
				return ir.NoHandle, err
			}
			fc.ctx.AddedHelpers[key+truncOp] = h
		}
		return fc.fn.New(ir.Call(wasm.ValueTypeI32, helperName, []ir.Handle{inner.h})), nil
	}
	return ir.NoHandle, Errorf(ErrShapeViolation, "unrecognized trap mode %v", mode)
}

// buildClampShim constructs:
//
//	function(x) {
//	  if (x != x) return INT_MIN;      // NaN
//	  if (x >= 2147483648.0) return INT_MIN;
//	  if (x < -2147483648.0) return INT_MIN;
//	  return trunc(x);
//	}
func buildClampShim(helperName, truncOp string, floatType wasm.ValueType) (*ir.Function, error) {
	h := ir.NewFunction(helperName, []wasm.ValueType{floatType})
	h.Results = []wasm.ValueType{wasm.ValueTypeI32}

	intMin := h.New(ir.Const(wasm.ValueTypeI32, int64(int32(-2147483648))))

	x1 := h.New(ir.GetLocal(floatType, 0))
	isNaN := h.New(ir.Binary(wasm.ValueTypeI32, "ne", false, x1, x1))
	nanGuard := h.New(ir.If(isNaN, h.New(ir.Block("", []ir.Handle{h.New(ir.Return(intMin))})), ir.NoHandle))

	upperBound := h.New(ir.Const(floatType, floatBits(floatType, 2147483648.0)))
	x2 := h.New(ir.GetLocal(floatType, 0))
	tooHigh := h.New(ir.Binary(wasm.ValueTypeI32, "ge", false, x2, upperBound))
	highGuard := h.New(ir.If(tooHigh, h.New(ir.Block("", []ir.Handle{h.New(ir.Return(intMin))})), ir.NoHandle))

	lowerBound := h.New(ir.Const(floatType, floatBits(floatType, -2147483648.0)))
	x3 := h.New(ir.GetLocal(floatType, 0))
	tooLow := h.New(ir.Binary(wasm.ValueTypeI32, "lt", false, x3, lowerBound))
	lowGuard := h.New(ir.If(tooLow, h.New(ir.Block("", []ir.Handle{h.New(ir.Return(intMin))})), ir.NoHandle))

	x4 := h.New(ir.GetLocal(floatType, 0))
	trunc := h.New(ir.Unary(wasm.ValueTypeI32, truncOp, x4))

	h.Body = []ir.Handle{nanGuard, highGuard, lowGuard, h.New(ir.Return(trunc))}
	return h, nil
}

func floatBits(t wasm.ValueType, v float64) int64 {
	if t == wasm.ValueTypeF32 {
		return int64(toF32Bits(float32(v)))
	}
	return int64(toF64Bits(v))
}
