package translator

import (
	"github.com/wasmkit/asm2wasm/ir"
	"github.com/wasmkit/asm2wasm/wasm"
)

// HeapView is a named heap-access alias (§3 "Heap View").
type HeapView struct {
	Name    string
	Bytes   int // 1, 2, 4, or 8
	Integer bool
	Signed  bool
	Type    wasm.ValueType
}

// MappedGlobal is a module-scope variable binding (§3 "Mapped Global").
type MappedGlobal struct {
	Name     string
	Type     wasm.ValueType
	Imported bool
	// Module/Field are set when Imported; for a mutable import, Field names
	// the immutable import slot backing the dual-global lowering (§3),
	// and MutableGlobalIndex names the paired mutable global.
	Module, Field        string
	Mutable               bool
	MutableGlobalIndex    int
	GlobalIndex           int
	ImportIndex           int
	// InitBits holds the raw bit pattern of a non-imported global's declared
	// initial value (§4.2's `var x = 5;`/`var x = 5.5|0;`-shaped literals),
	// interpreted per Type: i32/f32 use the low 32 bits, f64 the full 64.
	InitBits uint64
}

// Context holds the per-run registries named in §9 ("Global state as
// modules... fields of a single translator context"). It is never a
// package-level singleton: one Context exists per translation run, and
// nothing outside this package reaches into it directly except through the
// translator's exported entry points.
type Context struct {
	Config Config

	// HeapViews maps a source binding name (e.g. "HEAP32") to its descriptor.
	HeapViews map[string]*HeapView

	// Globals maps a source binding name to its lowering.
	Globals map[string]*MappedGlobal
	// GlobalOrder preserves the order Globals entries were registered in,
	// including the synthetic env.tableBase/env.memoryBase entries §4.8
	// guarantees exist even when the source never bound them to a name;
	// assignGlobalIndices numbers the global index space by walking this
	// instead of the source AST directly.
	GlobalOrder []string

	// Intrinsics maps an intercepted dotted-import name (e.g. "Math.imul")
	// to the internal slot name the Expression Translator recognizes.
	Intrinsics map[string]string

	// FunctionTableStarts maps a source function-table name to its starting
	// offset within the single output table (§3 "Function Table Layout").
	FunctionTableStarts map[string]int
	// TableEntries accumulates the concatenation of every source table, in
	// declaration order, ready for the Module Assembly element segment.
	TableEntries []string

	// ImportSignatures is the Signature Inferencer's per-name tentative
	// signature map (§4.4).
	ImportSignatures map[string]*ImportSignature

	// AddedHelpers is the per-run fingerprint set of already-synthesized
	// trap-shim helpers, keyed by "<op>/<width>/<mode>", with the trunc
	// mnemonic appended for clamp helpers (§4.6, §9: this must be
	// scoped per-run, never a package-level static).
	AddedHelpers map[string]*ir.Function

	// DebugFiles is the preprocessor's file-name table (§3 "Debug Info").
	DebugFiles []string

	// Functions accumulates every translated function body, keyed by name.
	Functions map[string]*ir.Function
	// FunctionOrder preserves declaration order for deterministic assembly.
	FunctionOrder []string

	// MemoryGrowthDetected mirrors the Preprocessor's finding (§4.1), consulted
	// by Module Assembly (§4.8).
	MemoryGrowthDetected bool

	// LocalFunctionSignatures is a prepass result: every source function's
	// parameter/result shape, keyed by name, computed from its own coercions
	// before any function body is translated. The Expression Translator
	// consults this (rather than the partially-filled Functions map) so a
	// call to a function declared later in the source still resolves as a
	// direct call instead of misreading it as an unknown import.
	LocalFunctionSignatures map[string]*LocalSignature
}

// LocalSignature is a source function's shape, known from its own parameter
// coercions and return statements without needing its body translated yet.
type LocalSignature struct {
	Params []wasm.ValueType
	Result wasm.ValueType // noneType until a return statement is seen
}

// NewContext allocates an empty, per-run Context.
func NewContext(cfg Config) *Context {
	return &Context{
		Config:              cfg,
		HeapViews:           map[string]*HeapView{},
		Globals:             map[string]*MappedGlobal{},
		Intrinsics:          defaultIntrinsics(),
		FunctionTableStarts: map[string]int{},
		ImportSignatures:    map[string]*ImportSignature{},
		AddedHelpers:            map[string]*ir.Function{},
		Functions:               map[string]*ir.Function{},
		LocalFunctionSignatures: map[string]*LocalSignature{},
	}
}

// defaultIntrinsics lists the dotted imports §4.2 intercepts into internal
// slots instead of emitting as ordinary ffi imports.
func defaultIntrinsics() map[string]string {
	return map[string]string{
		"Math.imul":      "i32.mul",
		"Math.clz32":     "i32.clz",
		"Math.fround":    "fround",
		"Math.abs":       "abs",
		"Math.floor":     "floor",
		"Math.ceil":      "ceil",
		"Math.sqrt":      "sqrt",
		"Math.max":       "max",
		"Math.min":       "min",
		"llvm_cttz_i32":  "i32.ctz",
		"tempDoublePtr":  "tempDoublePtr",
	}
}

// addTable records a newly-seen source function table and appends its
// entries to the shared table, returning its starting offset (§3, §4.2).
func (c *Context) addTable(name string, entries []string) int {
	start := len(c.TableEntries)
	c.FunctionTableStarts[name] = start
	c.TableEntries = append(c.TableEntries, entries...)
	return start
}

func isIntishType(t wasm.ValueType) bool {
	return t == wasm.ValueTypeI32
}

func isFloatType(t wasm.ValueType) bool {
	return t == wasm.ValueTypeF32 || t == wasm.ValueTypeF64
}
