package translator

import "github.com/wasmkit/asm2wasm/wasm"

// noneType stands in for "not yet observed" in a tentative signature; it is
// never a valid WASM value type, so it is represented as the zero value of a
// distinct sentinel rather than overloading wasm.ValueType's own range.
const noneType = wasm.ValueType(0)

// ImportSignature is the Signature Inferencer's per-import tentative
// signature (§3 "Imported Function Type", §4.4).
type ImportSignature struct {
	Params []wasm.ValueType
	Result wasm.ValueType // noneType until a call site supplies a result
	Final  bool            // set by the Call Finalizer once written to the module
}

// Observe merges one call site's argument and result types into name's
// tentative signature, per §4.4's monotone widening rule:
//   - unset (none) parameter position learns the call-site type
//   - mismatched concrete types widen to f64
//   - extra call-site parameters extend the signature
//   - an unset result learns the call's; a mismatch between two concrete
//     results widens to f64
//
// Because the merge only ever moves a position forward along
// none -> concrete -> f64, repeated application of Observe over the same
// multiset of call sites converges to the same signature regardless of
// order (§8 "Signature inference is monotone").
func (c *Context) Observe(name string, argTypes []wasm.ValueType, resultType wasm.ValueType) *ImportSignature {
	sig, ok := c.ImportSignatures[name]
	if !ok {
		sig = &ImportSignature{Result: noneType}
		c.ImportSignatures[name] = sig
	}

	for i, t := range argTypes {
		if i >= len(sig.Params) {
			sig.Params = append(sig.Params, t)
			continue
		}
		sig.Params[i] = widen(sig.Params[i], t)
	}

	sig.Result = widen(sig.Result, resultType)

	return sig
}

// widen implements the one-way none -> concrete -> f64 merge lattice shared
// by parameter and result positions.
func widen(have, observed wasm.ValueType) wasm.ValueType {
	if observed == noneType {
		return have
	}
	if have == noneType {
		return observed
	}
	if have == observed {
		return have
	}
	return wasm.ValueTypeF64
}
