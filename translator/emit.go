package translator

import (
	"github.com/wasmkit/asm2wasm/ir"
	"github.com/wasmkit/asm2wasm/wasm"
	"github.com/wasmkit/asm2wasm/wasm/code"
)

// emitter lowers one function's tree IR into WASM's flat, stack-machine
// instruction encoding (the counterpart to the Expression Translator: that
// package builds the tree forward from asm.js syntax, this walks it back
// down into bytecode). Named Break/Switch targets are resolved to relative
// branch depths against labels, a stack of every currently open
// Block/Loop/If frame — WASM branches count structured blocks regardless of
// whether the source ever named them.
type emitter struct {
	ctx     *Context
	fn      *ir.Function
	idx     *moduleIndex
	labels  []string
	instrs  []code.Instruction
}

func emitFunction(ctx *Context, fn *ir.Function, idx *moduleIndex) ([]code.Instruction, error) {
	e := &emitter{ctx: ctx, fn: fn, idx: idx}
	if err := e.emitBody(fn.Body); err != nil {
		return nil, err
	}
	e.emit(code.Instruction{Opcode: code.OpEnd})
	return e.instrs, nil
}

func (e *emitter) emit(i code.Instruction) {
	e.instrs = append(e.instrs, i)
}

func memarg(offset, align uint32) uint64 {
	return uint64(align)<<32 | uint64(offset)
}

func alignFor(bytes int) uint32 {
	switch bytes {
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	default:
		return 0
	}
}

// depthOf resolves a named Break/Switch target to its WASM relative branch
// depth: the count of structured blocks between the branch and the frame
// that introduced the label, counting the innermost enclosing frame as 0.
func (e *emitter) depthOf(label string) (uint32, error) {
	for i := len(e.labels) - 1; i >= 0; i-- {
		if e.labels[i] == label {
			return uint32(len(e.labels) - 1 - i), nil
		}
	}
	return 0, Errorf(ErrShapeViolation, "emit: branch to unresolved label %q", label)
}

func (e *emitter) emitBody(body []ir.Handle) error {
	for _, h := range body {
		if err := e.emitNode(h); err != nil {
			return err
		}
	}
	return nil
}

func (e *emitter) emitNode(h ir.Handle) error {
	n := e.fn.Node(h)
	switch n.Op {
	case ir.OpConst:
		return e.emitConst(n)
	case ir.OpGetLocal:
		e.emit(code.Instruction{Opcode: code.OpLocalGet, Immediate: uint64(n.Imm)})
		return nil
	case ir.OpSetLocal:
		if err := e.emitNode(n.A); err != nil {
			return err
		}
		e.emit(code.Instruction{Opcode: code.OpLocalSet, Immediate: uint64(n.Imm)})
		return nil
	case ir.OpTeeLocal:
		if err := e.emitNode(n.A); err != nil {
			return err
		}
		e.emit(code.Instruction{Opcode: code.OpLocalTee, Immediate: uint64(n.Imm)})
		return nil
	case ir.OpGetGlobal:
		e.emit(code.Instruction{Opcode: code.OpGlobalGet, Immediate: uint64(n.Imm)})
		return nil
	case ir.OpSetGlobal:
		if err := e.emitNode(n.A); err != nil {
			return err
		}
		e.emit(code.Instruction{Opcode: code.OpGlobalSet, Immediate: uint64(n.Imm)})
		return nil
	case ir.OpLoad:
		return e.emitLoad(n)
	case ir.OpStore:
		return e.emitStore(n)
	case ir.OpUnary:
		return e.emitUnary(n)
	case ir.OpBinary:
		return e.emitBinary(n)
	case ir.OpSelect:
		if err := e.emitNode(n.B); err != nil {
			return err
		}
		if err := e.emitNode(n.C); err != nil {
			return err
		}
		if err := e.emitNode(n.A); err != nil {
			return err
		}
		e.emit(code.Instruction{Opcode: code.OpSelect})
		return nil
	case ir.OpBlock:
		return e.emitBlock(n)
	case ir.OpLoop:
		return e.emitLoop(n)
	case ir.OpIf:
		return e.emitIf(n)
	case ir.OpBreak:
		return e.emitBreak(n)
	case ir.OpSwitch:
		return e.emitSwitch(n)
	case ir.OpCall:
		return e.emitCall(n)
	case ir.OpCallImport:
		return e.emitCallImport(n)
	case ir.OpCallIndirect:
		return e.emitCallIndirect(n)
	case ir.OpReturn:
		if n.A != ir.NoHandle {
			if err := e.emitNode(n.A); err != nil {
				return err
			}
		}
		e.emit(code.Instruction{Opcode: code.OpReturn})
		return nil
	case ir.OpNop, ir.OpDebugInfo:
		return nil
	case ir.OpUnreachable:
		e.emit(code.Instruction{Opcode: code.OpUnreachable})
		return nil
	}
	return Errorf(ErrShapeViolation, "emit: unhandled ir op %v", n.Op)
}

func (e *emitter) emitConst(n *ir.Node) error {
	switch n.Type {
	case wasm.ValueTypeI32:
		e.emit(code.Instruction{Opcode: code.OpI32Const, Immediate: uint64(n.Imm)})
	case wasm.ValueTypeI64:
		e.emit(code.Instruction{Opcode: code.OpI64Const, Immediate: uint64(n.Imm)})
	case wasm.ValueTypeF32:
		e.emit(code.Instruction{Opcode: code.OpF32Const, Immediate: uint64(uint32(n.Imm))})
	case wasm.ValueTypeF64:
		e.emit(code.Instruction{Opcode: code.OpF64Const, Immediate: uint64(n.Imm)})
	default:
		return Errorf(ErrShapeViolation, "emit: const of unrecognized type %v", n.Type)
	}
	return nil
}

func loadOpcode(t wasm.ValueType, bytes int, signed bool) (byte, error) {
	switch t {
	case wasm.ValueTypeI32:
		switch bytes {
		case 1:
			if signed {
				return code.OpI32Load8S, nil
			}
			return code.OpI32Load8U, nil
		case 2:
			if signed {
				return code.OpI32Load16S, nil
			}
			return code.OpI32Load16U, nil
		case 4:
			return code.OpI32Load, nil
		}
	case wasm.ValueTypeI64:
		switch bytes {
		case 1:
			if signed {
				return code.OpI64Load8S, nil
			}
			return code.OpI64Load8U, nil
		case 2:
			if signed {
				return code.OpI64Load16S, nil
			}
			return code.OpI64Load16U, nil
		case 4:
			if signed {
				return code.OpI64Load32S, nil
			}
			return code.OpI64Load32U, nil
		case 8:
			return code.OpI64Load, nil
		}
	case wasm.ValueTypeF32:
		if bytes == 4 {
			return code.OpF32Load, nil
		}
	case wasm.ValueTypeF64:
		if bytes == 8 {
			return code.OpF64Load, nil
		}
	}
	return 0, Errorf(ErrShapeViolation, "emit: no load opcode for %v width %d", t, bytes)
}

func storeOpcode(t wasm.ValueType, bytes int) (byte, error) {
	switch t {
	case wasm.ValueTypeI32:
		switch bytes {
		case 1:
			return code.OpI32Store8, nil
		case 2:
			return code.OpI32Store16, nil
		case 4:
			return code.OpI32Store, nil
		}
	case wasm.ValueTypeI64:
		switch bytes {
		case 1:
			return code.OpI64Store8, nil
		case 2:
			return code.OpI64Store16, nil
		case 4:
			return code.OpI64Store32, nil
		case 8:
			return code.OpI64Store, nil
		}
	case wasm.ValueTypeF32:
		if bytes == 4 {
			return code.OpF32Store, nil
		}
	case wasm.ValueTypeF64:
		if bytes == 8 {
			return code.OpF64Store, nil
		}
	}
	return 0, Errorf(ErrShapeViolation, "emit: no store opcode for %v width %d", t, bytes)
}

func (e *emitter) emitLoad(n *ir.Node) error {
	if err := e.emitNode(n.A); err != nil {
		return err
	}
	op, err := loadOpcode(n.Type, int(n.Imm), n.Signed)
	if err != nil {
		return err
	}
	e.emit(code.Instruction{Opcode: op, Immediate: memarg(0, alignFor(int(n.Imm)))})
	return nil
}

func (e *emitter) emitStore(n *ir.Node) error {
	if err := e.emitNode(n.A); err != nil {
		return err
	}
	if err := e.emitNode(n.B); err != nil {
		return err
	}
	op, err := storeOpcode(e.fn.Node(n.B).Type, int(n.Imm))
	if err != nil {
		return err
	}
	e.emit(code.Instruction{Opcode: op, Immediate: memarg(0, alignFor(int(n.Imm)))})
	return nil
}

// unaryOpcode maps an ir.Unary mnemonic, qualified by its result type, to
// the WASM opcode; conversions additionally key on the operand's type
// (encoded in the mnemonic itself, e.g. "trunc_s_f64_i32").
func unaryOpcode(t wasm.ValueType, name string) (byte, error) {
	switch name {
	case "neg":
		switch t {
		case wasm.ValueTypeF32:
			return code.OpF32Neg, nil
		case wasm.ValueTypeF64:
			return code.OpF64Neg, nil
		}
	case "abs":
		switch t {
		case wasm.ValueTypeF32:
			return code.OpF32Abs, nil
		case wasm.ValueTypeF64:
			return code.OpF64Abs, nil
		}
	case "floor":
		switch t {
		case wasm.ValueTypeF32:
			return code.OpF32Floor, nil
		case wasm.ValueTypeF64:
			return code.OpF64Floor, nil
		}
	case "ceil":
		switch t {
		case wasm.ValueTypeF32:
			return code.OpF32Ceil, nil
		case wasm.ValueTypeF64:
			return code.OpF64Ceil, nil
		}
	case "sqrt":
		switch t {
		case wasm.ValueTypeF32:
			return code.OpF32Sqrt, nil
		case wasm.ValueTypeF64:
			return code.OpF64Sqrt, nil
		}
	case "nearest":
		switch t {
		case wasm.ValueTypeF32:
			return code.OpF32Nearest, nil
		case wasm.ValueTypeF64:
			return code.OpF64Nearest, nil
		}
	case "eqz":
		switch t {
		case wasm.ValueTypeI32:
			return code.OpI32Eqz, nil
		case wasm.ValueTypeI64:
			return code.OpI64Eqz, nil
		}
	case "clz":
		switch t {
		case wasm.ValueTypeI32:
			return code.OpI32Clz, nil
		case wasm.ValueTypeI64:
			return code.OpI64Clz, nil
		}
	case "ctz":
		switch t {
		case wasm.ValueTypeI32:
			return code.OpI32Ctz, nil
		case wasm.ValueTypeI64:
			return code.OpI64Ctz, nil
		}
	case "popcnt":
		switch t {
		case wasm.ValueTypeI32:
			return code.OpI32Popcnt, nil
		case wasm.ValueTypeI64:
			return code.OpI64Popcnt, nil
		}
	case "promote_f32_f64":
		return code.OpF64PromoteF32, nil
	case "demote_f64_f32":
		return code.OpF32DemoteF64, nil
	case "wrap_i64_i32":
		return code.OpI32WrapI64, nil
	case "extend_s_i32_i64":
		return code.OpI64ExtendI32S, nil
	case "extend_u_i32_i64":
		return code.OpI64ExtendI32U, nil
	case "trunc_s_f32_i32":
		return code.OpI32TruncF32S, nil
	case "trunc_u_f32_i32":
		return code.OpI32TruncF32U, nil
	case "trunc_s_f64_i32":
		return code.OpI32TruncF64S, nil
	case "trunc_u_f64_i32":
		return code.OpI32TruncF64U, nil
	case "trunc_s_f32_i64":
		return code.OpI64TruncF32S, nil
	case "trunc_u_f32_i64":
		return code.OpI64TruncF32U, nil
	case "trunc_s_f64_i64":
		return code.OpI64TruncF64S, nil
	case "trunc_u_f64_i64":
		return code.OpI64TruncF64U, nil
	case "convert_s_i32_f32":
		return code.OpF32ConvertI32S, nil
	case "convert_u_i32_f32":
		return code.OpF32ConvertI32U, nil
	case "convert_s_i32_f64":
		return code.OpF64ConvertI32S, nil
	case "convert_u_i32_f64":
		return code.OpF64ConvertI32U, nil
	case "convert_s_i64_f32":
		return code.OpF32ConvertI64S, nil
	case "convert_u_i64_f32":
		return code.OpF32ConvertI64U, nil
	case "convert_s_i64_f64":
		return code.OpF64ConvertI64S, nil
	case "convert_u_i64_f64":
		return code.OpF64ConvertI64U, nil
	case "reinterpret_f32_i32":
		return code.OpI32ReinterpretF32, nil
	case "reinterpret_i32_f32":
		return code.OpF32ReinterpretI32, nil
	case "reinterpret_f64_i64":
		return code.OpI64ReinterpretF64, nil
	case "reinterpret_i64_f64":
		return code.OpF64ReinterpretI64, nil
	}
	return 0, Errorf(ErrShapeViolation, "emit: unrecognized unary operator %q for type %v", name, t)
}

func (e *emitter) emitUnary(n *ir.Node) error {
	if err := e.emitNode(n.A); err != nil {
		return err
	}
	inputType := e.fn.Node(n.A).Type
	// clz/ctz/popcnt/eqz/neg/abs/floor/ceil/sqrt/nearest key off their own
	// (matching) input type; conversions and reinterprets key off the
	// result type since the mnemonic already names both sides.
	opType := n.Type
	switch n.Name {
	case "eqz":
		opType = inputType
	}
	op, err := unaryOpcode(opType, n.Name)
	if err != nil {
		return err
	}
	e.emit(code.Instruction{Opcode: op})
	return nil
}

func binaryOpcode(t wasm.ValueType, name string, signed bool) (byte, error) {
	switch name {
	case "add":
		switch t {
		case wasm.ValueTypeI32:
			return code.OpI32Add, nil
		case wasm.ValueTypeI64:
			return code.OpI64Add, nil
		case wasm.ValueTypeF32:
			return code.OpF32Add, nil
		case wasm.ValueTypeF64:
			return code.OpF64Add, nil
		}
	case "sub":
		switch t {
		case wasm.ValueTypeI32:
			return code.OpI32Sub, nil
		case wasm.ValueTypeI64:
			return code.OpI64Sub, nil
		case wasm.ValueTypeF32:
			return code.OpF32Sub, nil
		case wasm.ValueTypeF64:
			return code.OpF64Sub, nil
		}
	case "mul":
		switch t {
		case wasm.ValueTypeI32:
			return code.OpI32Mul, nil
		case wasm.ValueTypeI64:
			return code.OpI64Mul, nil
		case wasm.ValueTypeF32:
			return code.OpF32Mul, nil
		case wasm.ValueTypeF64:
			return code.OpF64Mul, nil
		}
	case "div":
		switch t {
		case wasm.ValueTypeI32:
			if signed {
				return code.OpI32DivS, nil
			}
			return code.OpI32DivU, nil
		case wasm.ValueTypeI64:
			if signed {
				return code.OpI64DivS, nil
			}
			return code.OpI64DivU, nil
		case wasm.ValueTypeF32:
			return code.OpF32Div, nil
		case wasm.ValueTypeF64:
			return code.OpF64Div, nil
		}
	case "rem":
		switch t {
		case wasm.ValueTypeI32:
			if signed {
				return code.OpI32RemS, nil
			}
			return code.OpI32RemU, nil
		case wasm.ValueTypeI64:
			if signed {
				return code.OpI64RemS, nil
			}
			return code.OpI64RemU, nil
		}
	case "and":
		switch t {
		case wasm.ValueTypeI32:
			return code.OpI32And, nil
		case wasm.ValueTypeI64:
			return code.OpI64And, nil
		}
	case "or":
		switch t {
		case wasm.ValueTypeI32:
			return code.OpI32Or, nil
		case wasm.ValueTypeI64:
			return code.OpI64Or, nil
		}
	case "xor":
		switch t {
		case wasm.ValueTypeI32:
			return code.OpI32Xor, nil
		case wasm.ValueTypeI64:
			return code.OpI64Xor, nil
		}
	case "shl":
		switch t {
		case wasm.ValueTypeI32:
			return code.OpI32Shl, nil
		case wasm.ValueTypeI64:
			return code.OpI64Shl, nil
		}
	case "shr":
		switch t {
		case wasm.ValueTypeI32:
			if signed {
				return code.OpI32ShrS, nil
			}
			return code.OpI32ShrU, nil
		case wasm.ValueTypeI64:
			if signed {
				return code.OpI64ShrS, nil
			}
			return code.OpI64ShrU, nil
		}
	case "eq":
		switch t {
		case wasm.ValueTypeI32:
			return code.OpI32Eq, nil
		case wasm.ValueTypeI64:
			return code.OpI64Eq, nil
		case wasm.ValueTypeF32:
			return code.OpF32Eq, nil
		case wasm.ValueTypeF64:
			return code.OpF64Eq, nil
		}
	case "ne":
		switch t {
		case wasm.ValueTypeI32:
			return code.OpI32Ne, nil
		case wasm.ValueTypeI64:
			return code.OpI64Ne, nil
		case wasm.ValueTypeF32:
			return code.OpF32Ne, nil
		case wasm.ValueTypeF64:
			return code.OpF64Ne, nil
		}
	case "lt":
		switch t {
		case wasm.ValueTypeI32:
			if signed {
				return code.OpI32LtS, nil
			}
			return code.OpI32LtU, nil
		case wasm.ValueTypeI64:
			if signed {
				return code.OpI64LtS, nil
			}
			return code.OpI64LtU, nil
		case wasm.ValueTypeF32:
			return code.OpF32Lt, nil
		case wasm.ValueTypeF64:
			return code.OpF64Lt, nil
		}
	case "gt":
		switch t {
		case wasm.ValueTypeI32:
			if signed {
				return code.OpI32GtS, nil
			}
			return code.OpI32GtU, nil
		case wasm.ValueTypeI64:
			if signed {
				return code.OpI64GtS, nil
			}
			return code.OpI64GtU, nil
		case wasm.ValueTypeF32:
			return code.OpF32Gt, nil
		case wasm.ValueTypeF64:
			return code.OpF64Gt, nil
		}
	case "le":
		switch t {
		case wasm.ValueTypeI32:
			if signed {
				return code.OpI32LeS, nil
			}
			return code.OpI32LeU, nil
		case wasm.ValueTypeI64:
			if signed {
				return code.OpI64LeS, nil
			}
			return code.OpI64LeU, nil
		case wasm.ValueTypeF32:
			return code.OpF32Le, nil
		case wasm.ValueTypeF64:
			return code.OpF64Le, nil
		}
	case "ge":
		switch t {
		case wasm.ValueTypeI32:
			if signed {
				return code.OpI32GeS, nil
			}
			return code.OpI32GeU, nil
		case wasm.ValueTypeI64:
			if signed {
				return code.OpI64GeS, nil
			}
			return code.OpI64GeU, nil
		case wasm.ValueTypeF32:
			return code.OpF32Ge, nil
		case wasm.ValueTypeF64:
			return code.OpF64Ge, nil
		}
	case "min":
		switch t {
		case wasm.ValueTypeF32:
			return code.OpF32Min, nil
		case wasm.ValueTypeF64:
			return code.OpF64Min, nil
		}
	case "max":
		switch t {
		case wasm.ValueTypeF32:
			return code.OpF32Max, nil
		case wasm.ValueTypeF64:
			return code.OpF64Max, nil
		}
	case "copysign":
		switch t {
		case wasm.ValueTypeF32:
			return code.OpF32Copysign, nil
		case wasm.ValueTypeF64:
			return code.OpF64Copysign, nil
		}
	}
	return 0, Errorf(ErrShapeViolation, "emit: unrecognized binary operator %q for type %v", name, t)
}

// comparisonInputType reports the operand type a comparison operates over,
// since a comparison's own result is always i32 while its operands (and
// therefore its opcode selection) may be i32, i64, f32, or f64.
func (e *emitter) comparisonInputType(n *ir.Node) wasm.ValueType {
	return e.fn.Node(n.A).Type
}

func (e *emitter) emitBinary(n *ir.Node) error {
	if err := e.emitNode(n.A); err != nil {
		return err
	}
	if err := e.emitNode(n.B); err != nil {
		return err
	}
	opType := n.Type
	switch n.Name {
	case "eq", "ne", "lt", "gt", "le", "ge":
		opType = e.comparisonInputType(n)
	}
	op, err := binaryOpcode(opType, n.Name, n.Signed)
	if err != nil {
		return err
	}
	e.emit(code.Instruction{Opcode: op})
	return nil
}

// blockTypeImmediate encodes a Block/Loop/If's result type per §4.8's
// single-result MVP subset.
func blockTypeImmediate(t wasm.ValueType) uint64 {
	switch t {
	case wasm.ValueTypeI32:
		return code.BlockTypeI32
	case wasm.ValueTypeI64:
		return code.BlockTypeI64
	case wasm.ValueTypeF32:
		return code.BlockTypeF32
	case wasm.ValueTypeF64:
		return code.BlockTypeF64
	default:
		return code.BlockTypeEmpty
	}
}

func (e *emitter) emitBlock(n *ir.Node) error {
	e.emit(code.Instruction{Opcode: code.OpBlock, Immediate: blockTypeImmediate(n.Type)})
	e.labels = append(e.labels, n.Label)
	if err := e.emitBody(n.Kids); err != nil {
		return err
	}
	e.labels = e.labels[:len(e.labels)-1]
	e.emit(code.Instruction{Opcode: code.OpEnd})
	return nil
}

func (e *emitter) emitLoop(n *ir.Node) error {
	e.emit(code.Instruction{Opcode: code.OpLoop, Immediate: blockTypeImmediate(n.Type)})
	e.labels = append(e.labels, n.Label)
	if err := e.emitBody(n.Kids); err != nil {
		return err
	}
	e.labels = e.labels[:len(e.labels)-1]
	e.emit(code.Instruction{Opcode: code.OpEnd})
	return nil
}

func (e *emitter) emitIf(n *ir.Node) error {
	if err := e.emitNode(n.A); err != nil {
		return err
	}
	e.emit(code.Instruction{Opcode: code.OpIf, Immediate: blockTypeImmediate(n.Type)})
	e.labels = append(e.labels, "")
	if err := e.emitNode(n.B); err != nil {
		return err
	}
	if n.C != ir.NoHandle {
		e.emit(code.Instruction{Opcode: code.OpElse})
		if err := e.emitNode(n.C); err != nil {
			return err
		}
	}
	e.labels = e.labels[:len(e.labels)-1]
	e.emit(code.Instruction{Opcode: code.OpEnd})
	return nil
}

func (e *emitter) emitBreak(n *ir.Node) error {
	depth, err := e.depthOf(n.Label)
	if err != nil {
		return err
	}
	if n.A == ir.NoHandle {
		e.emit(code.Instruction{Opcode: code.OpBr, Immediate: uint64(depth)})
		return nil
	}
	if err := e.emitNode(n.A); err != nil {
		return err
	}
	e.emit(code.Instruction{Opcode: code.OpBrIf, Immediate: uint64(depth)})
	return nil
}

func (e *emitter) emitSwitch(n *ir.Node) error {
	if err := e.emitNode(n.A); err != nil {
		return err
	}
	defaultDepth, err := e.depthOf(n.Name)
	if err != nil {
		return err
	}
	depths := make([]int, len(n.CaseLabels))
	for i, label := range n.CaseLabels {
		d, err := e.depthOf(label)
		if err != nil {
			return err
		}
		depths[i] = int(d)
	}
	e.emit(code.Instruction{Opcode: code.OpBrTable, Immediate: uint64(defaultDepth), Labels: depths})
	return nil
}

func (e *emitter) emitCall(n *ir.Node) error {
	for _, arg := range n.Kids {
		if err := e.emitNode(arg); err != nil {
			return err
		}
	}
	idx, ok := e.idx.funcIndex[n.Name]
	if !ok {
		return Errorf(ErrShapeViolation, "emit: call to unregistered function %q", n.Name)
	}
	e.emit(code.Instruction{Opcode: code.OpCall, Immediate: uint64(idx)})
	return nil
}

func (e *emitter) emitCallImport(n *ir.Node) error {
	for _, arg := range n.Kids {
		if err := e.emitNode(arg); err != nil {
			return err
		}
	}
	idx, ok := e.idx.funcIndex[n.Name]
	if !ok {
		return Errorf(ErrShapeViolation, "emit: call to unregistered import %q", n.Name)
	}
	e.emit(code.Instruction{Opcode: code.OpCall, Immediate: uint64(idx)})
	return nil
}

func (e *emitter) emitCallIndirect(n *ir.Node) error {
	for _, arg := range n.Kids {
		if err := e.emitNode(arg); err != nil {
			return err
		}
	}
	if err := e.emitNode(n.A); err != nil {
		return err
	}
	params := make([]wasm.ValueType, len(n.Kids))
	for i, arg := range n.Kids {
		params[i] = e.fn.Node(arg).Type
	}
	typeIdx := e.idx.typeIndex(params, n.Type)
	e.emit(code.Instruction{Opcode: code.OpCallIndirect, Immediate: uint64(typeIdx)})
	return nil
}
