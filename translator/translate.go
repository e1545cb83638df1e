package translator

import (
	"github.com/wasmkit/asm2wasm/asmjs"
	"github.com/wasmkit/asm2wasm/wasm"
)

// Translate runs the full pipeline over an already-parsed asm.js module
// (§4's numbered passes end to end): the Name Registry, the Signature
// Inferencer prepass, the Expression Translator over every function, the
// Call Finalizer, the native-i64 division rewrite, and Module Assembly.
// Parsing asm.js source text into mod is out of scope for this package (see
// the asmjs package doc comment); callers own that step, running Preprocess
// over the raw source first and threading its MemoryGrowthDetected finding
// through as memoryGrowthDetected, since Module Assembly needs it but never
// sees the pre-parse source text itself.
func Translate(mod *asmjs.Module, cfg Config, memoryGrowthDetected bool) (*wasm.Module, error) {
	c := NewContext(cfg)
	c.MemoryGrowthDetected = memoryGrowthDetected

	if err := c.RegisterGlobals(mod); err != nil {
		return nil, err
	}
	if err := c.RegisterFunctionSignatures(mod); err != nil {
		return nil, err
	}

	for _, f := range mod.Functions {
		fn, err := c.TranslateFunction(f)
		if err != nil {
			return nil, err
		}
		c.Functions[f.Name] = fn
		c.FunctionOrder = append(c.FunctionOrder, f.Name)
	}

	if err := c.Finalize(); err != nil {
		return nil, err
	}

	if err := c.rewriteUdivmoddi4(mod); err != nil {
		return nil, err
	}

	return c.Assemble(mod)
}
