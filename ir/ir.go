// Package ir is the tree-shaped WASM expression representation the
// translator builds before lowering to flat bytecode. It follows the
// arena-and-handle pattern used by this repository's existing
// compiler/wax package, adapted for a forward-building translator instead
// of a backward analysis over already-decoded code: nodes are appended to a
// per-function arena and referenced by integer Handle rather than pointer,
// so a node's Type can be corrected in place after later passes (signature
// widening, debug-annotation folding) without any interior-mutability
// bookkeeping.
package ir

import "github.com/wasmkit/asm2wasm/wasm"

// Op identifies the shape of a Node. The set is closed: every Op the
// translator can produce is listed here, and every consumer of the IR
// (the finalizer, the emitter) switches over it exhaustively.
type Op int

const (
	OpConst Op = iota
	OpGetLocal
	OpSetLocal
	OpTeeLocal
	OpGetGlobal
	OpSetGlobal
	OpLoad
	OpStore
	OpUnary
	OpBinary
	OpSelect
	OpBlock
	OpIf
	OpLoop
	OpBreak  // conditional or unconditional branch to an enclosing Block/Loop
	OpSwitch // br_table
	OpCall
	OpCallImport
	OpCallIndirect
	OpReturn
	OpNop
	OpUnreachable
	OpDebugInfo // emscripten_debuginfo(file, line) marker; folded away by the finalizer
)

// Handle references a Node within a single Function's arena. The zero
// Handle is reserved to mean "absent" (e.g. an If with no Else, a Break
// with no condition).
type Handle int

const NoHandle Handle = -1

// Node is one arena entry. Which fields are meaningful depends on Op; see
// the constructor helpers below for the canonical shape of each Op.
type Node struct {
	Op   Op
	Type wasm.ValueType // result type; wasm.ValueType(0) + Unreachable flag below for "none"/unreachable

	// Unreachable marks a node whose static type is bottom (e.g. the body
	// of a function that always returns early); distinguished from a
	// legitimate "none"-typed node such as a Store.
	Unreachable bool

	// A, B, C are the primary child handles, used per-Op as documented on
	// the constructors (e.g. Binary.A/B are the two operands, Store.A/B are
	// address/value, If.A/B/C are cond/then/else).
	A, B, C Handle

	// Kids holds variable-length children: Block/Loop bodies, Call/CallImport/
	// CallIndirect arguments, Switch case bodies.
	Kids []Handle

	// Imm carries an Op-specific scalar immediate: the constant value bit
	// pattern for Const, the local/global index for Get/SetLocal/Global,
	// the byte width for Load/Store, the operator tag for Unary/Binary, the
	// debug line number for DebugInfo.
	Imm int64

	// Imm2 carries a second scalar immediate where one isn't enough: the
	// load/store signedness flag, the debug file index.
	Imm2 int64

	// Name carries an Op-specific symbol: the callee name for Call/CallImport,
	// the source table name for CallIndirect, the heap view name for Load/Store,
	// the operator mnemonic for Unary/Binary.
	Name string

	// Label names the Block/Loop/If this node introduces, for Break/Switch
	// targets to reference by name; empty for anonymous blocks.
	Label string

	// Signed is meaningful for Load/Store (heap view signedness) and for
	// Binary division/modulo/shift/compare operators.
	Signed bool

	// CaseLabels holds Switch's ordered br_table targets; Name holds its
	// default label.
	CaseLabels []string
}

// Function is one translated function: its own arena, locals, and body.
type Function struct {
	Name       string
	Params     []wasm.ValueType
	Results    []wasm.ValueType // zero or one entries (WASM MVP: at most one result)
	Locals     []wasm.ValueType // appended to beyond Params as the translator allocates temporaries
	LocalNames []string         // parallel to Params+Locals, for diagnostics only

	nodes []Node
	Body  []Handle // top-level statement sequence

	// DebugLocations maps a node handle to the (file index, line) annotation
	// folded onto it by the Call Finalizer (§4.7 "Debug info").
	DebugLocations map[Handle][2]int
}

// NewFunction allocates an empty function with the given parameter types.
func NewFunction(name string, params []wasm.ValueType) *Function {
	return &Function{
		Name:   name,
		Params: append([]wasm.ValueType(nil), params...),
	}
}

// Node dereferences a Handle. Panics on NoHandle, matching arena-handle
// conventions elsewhere in this codebase (wax.Expression) where a nil/absent
// reference is a programmer error, not a runtime condition to recover from.
func (f *Function) Node(h Handle) *Node {
	return &f.nodes[h]
}

// New appends a fresh Node and returns its Handle.
func (f *Function) New(n Node) Handle {
	f.nodes = append(f.nodes, n)
	return Handle(len(f.nodes) - 1)
}

// Set overwrites a Node in place; used by the finalizer to widen a node's
// Type or replace an Op (e.g. turning a DebugInfo call into Nop) without
// disturbing any Handle that referenced it.
func (f *Function) Set(h Handle, n Node) {
	f.nodes[h] = n
}

// AddLocal allocates a new local of the given type, returning its index
// (Params come first, then Locals, matching the WASM local index space).
func (f *Function) AddLocal(name string, t wasm.ValueType) int {
	f.Locals = append(f.Locals, t)
	f.LocalNames = append(f.LocalNames, name)
	return len(f.Params) + len(f.Locals) - 1
}

// NumNodes reports the arena size, for tests and finalizer iteration.
func (f *Function) NumNodes() int {
	return len(f.nodes)
}

// --- constructors -----------------------------------------------------

func Const(t wasm.ValueType, bits int64) Node {
	return Node{Op: OpConst, Type: t, Imm: bits}
}

func GetLocal(t wasm.ValueType, idx int) Node {
	return Node{Op: OpGetLocal, Type: t, Imm: int64(idx)}
}

func SetLocal(idx int, value Handle) Node {
	return Node{Op: OpSetLocal, Imm: int64(idx), A: value}
}

func TeeLocal(t wasm.ValueType, idx int, value Handle) Node {
	return Node{Op: OpTeeLocal, Type: t, Imm: int64(idx), A: value}
}

func GetGlobal(t wasm.ValueType, idx int) Node {
	return Node{Op: OpGetGlobal, Type: t, Imm: int64(idx)}
}

func SetGlobal(idx int, value Handle) Node {
	return Node{Op: OpSetGlobal, Imm: int64(idx), A: value}
}

// Load reads `bytes` from the heap view named view at address A, producing
// a value of type t with the given signedness (meaningless for float views).
func Load(t wasm.ValueType, view string, bytes int, signed bool, addr Handle) Node {
	return Node{Op: OpLoad, Type: t, Name: view, Imm: int64(bytes), Signed: signed, A: addr}
}

// Store writes value B at address A through heap view named view.
func Store(view string, bytes int, addr, value Handle) Node {
	return Node{Op: OpStore, Name: view, Imm: int64(bytes), A: addr, B: value}
}

// Unary applies operator op (e.g. "neg", "eqz", "clz", "trunc_s_f64_i32") to A.
func Unary(t wasm.ValueType, op string, x Handle) Node {
	return Node{Op: OpUnary, Type: t, Name: op, A: x}
}

// Binary applies operator op to operands A, B. Signed qualifies div/rem/shift/compare.
func Binary(t wasm.ValueType, op string, signed bool, x, y Handle) Node {
	return Node{Op: OpBinary, Type: t, Name: op, Signed: signed, A: x, B: y}
}

func Select(t wasm.ValueType, cond, ifTrue, ifFalse Handle) Node {
	return Node{Op: OpSelect, Type: t, A: cond, B: ifTrue, C: ifFalse}
}

// Block groups a body under an optional label; If.A/B/C are cond/then/else.
func Block(label string, body []Handle) Node {
	return Node{Op: OpBlock, Label: label, Kids: body}
}

func Loop(label string, body []Handle) Node {
	return Node{Op: OpLoop, Label: label, Kids: body}
}

func If(cond, then Handle, els Handle) Node {
	return Node{Op: OpIf, A: cond, B: then, C: els}
}

// Break targets the Block/Loop/Switch-case named label; Cond is NoHandle for
// an unconditional branch.
func Break(label string, cond Handle) Node {
	return Node{Op: OpBreak, Label: label, A: cond}
}

// Switch dispatches on A via br_table; Kids holds one Handle per ordered
// case label target (already-built Break/Block nodes), Name carries the
// default label.
func Switch(selector Handle, caseLabels []string, defaultLabel string) Node {
	return Node{Op: OpSwitch, A: selector, Name: defaultLabel, CaseLabels: caseLabels}
}

// Call invokes a local function by name with the given arguments.
func Call(t wasm.ValueType, name string, args []Handle) Node {
	return Node{Op: OpCall, Type: t, Name: name, Kids: args}
}

// CallImport invokes an ffi import by name; its signature is not yet final
// (see translator/signatures.go) until the Call Finalizer widens it.
func CallImport(t wasm.ValueType, name string, args []Handle) Node {
	return Node{Op: OpCallImport, Type: t, Name: name, Kids: args}
}

// CallIndirect calls through the shared table; target starts as
// `<computed> + callImport(tableName)`, a placeholder the finalizer replaces
// (A holds the placeholder-laden target expression, Name the source table).
func CallIndirect(t wasm.ValueType, tableName string, target Handle, args []Handle) Node {
	return Node{Op: OpCallIndirect, Type: t, Name: tableName, A: target, Kids: args}
}

func Return(x Handle) Node {
	return Node{Op: OpReturn, A: x}
}

func Nop() Node {
	return Node{Op: OpNop}
}

func Unreachable() Node {
	return Node{Op: OpUnreachable, Unreachable: true}
}

func DebugInfo(fileIndex, line int) Node {
	return Node{Op: OpDebugInfo, Imm: int64(fileIndex), Imm2: int64(line)}
}
