package translator

import (
	"fmt"
	"math"
	"strings"

	"github.com/wasmkit/asm2wasm/asmjs"
	"github.com/wasmkit/asm2wasm/ir"
	"github.com/wasmkit/asm2wasm/wasm"
)

// typed bundles a translated expression's handle with the type information
// later coercions and operator dispatch need; asm.js forces every
// expression's type to be inferred bottom-up, so this travels back up the
// recursion instead of a separate pass over finished nodes.
type typed struct {
	h      ir.Handle
	t      wasm.ValueType
	signed bool
}

// labelFrame is one entry of the break/continue stacks (§4.5).
type labelFrame struct {
	source, internal string
}

// functionCompiler translates a single asmjs.Function into an ir.Function.
// One functionCompiler exists per function translation; nothing here is
// shared across functions except read access to the immutable parts of
// Context (heap views, globals, intrinsics) and write access to its
// signature inferencer and helper-synthesis registries, matching §5's
// "per-function state is owned exclusively by one worker at a time".
type functionCompiler struct {
	ctx *Context
	fn  *ir.Function

	locals     map[string]int
	localTypes map[string]wasm.ValueType

	breakStack    []labelFrame
	continueStack []labelFrame
	labelSuffix   int

	// ancestors is the explicit parent-pointer stack (§9) consulted by
	// context-sensitive lowering such as `~~x`'s signedness.
	ancestors []asmjs.Node

	returnType wasm.ValueType
	returnSet  bool
}

// TranslateFunction runs the Expression Translator (§4.3) over one source
// function, returning its IR form. The Context's registries (heap views,
// globals, signature inferencer, helper set) must already be populated by
// RegisterGlobals.
func (c *Context) TranslateFunction(f *asmjs.Function) (*ir.Function, error) {
	paramTypes := make([]wasm.ValueType, 0, len(f.Params))
	locals := map[string]int{}
	localTypes := map[string]wasm.ValueType{}

	coerced := map[string]wasm.ValueType{}
	for _, decl := range f.Coercions {
		t, _, err := coercionResultType(decl.Init)
		if err != nil {
			return nil, err
		}
		coerced[decl.Name] = t
	}

	for i, p := range f.Params {
		t, ok := coerced[p]
		if !ok {
			return nil, Errorf(ErrShapeViolation, "parameter %q of function %q is never coerced", p, f.Name)
		}
		paramTypes = append(paramTypes, t)
		locals[p] = i
		localTypes[p] = t
	}

	fn := ir.NewFunction(f.Name, paramTypes)

	fc := &functionCompiler{
		ctx:        c,
		fn:         fn,
		locals:     locals,
		localTypes: localTypes,
	}

	for _, decl := range f.Locals {
		t := wasm.ValueTypeI32
		if decl.Init != nil {
			if lit, ok := decl.Init.(*asmjs.NumberLiteral); ok && lit.IsFloat {
				t = wasm.ValueTypeF64
			}
		}
		idx := fn.AddLocal(decl.Name, t)
		fc.locals[decl.Name] = idx
		fc.localTypes[decl.Name] = t
	}

	body, err := fc.translateStmts(f.Body)
	if err != nil {
		return nil, err
	}
	fn.Body = body

	if fc.returnSet {
		fn.Results = []wasm.ValueType{fc.returnType}
	}

	return fn, nil
}

// RegisterFunctionSignatures runs the prepass that lets forward and mutual
// calls between source functions resolve as direct calls: for each
// function, its parameter types come from its coercion statements (as
// TranslateFunction itself requires) and its result type from scanning its
// return statements, including those nested in if/block/loop bodies, for a
// recognized coercion shape. A function
// with no returns, or whose returns use a shape translateExpr wouldn't
// recognize either, is left with a none result (treated as void).
func (c *Context) RegisterFunctionSignatures(mod *asmjs.Module) error {
	for _, f := range mod.Functions {
		coerced := map[string]wasm.ValueType{}
		for _, decl := range f.Coercions {
			t, _, err := coercionResultType(decl.Init)
			if err != nil {
				return err
			}
			coerced[decl.Name] = t
		}
		params := make([]wasm.ValueType, len(f.Params))
		for i, p := range f.Params {
			t, ok := coerced[p]
			if !ok {
				return Errorf(ErrShapeViolation, "parameter %q of function %q is never coerced", p, f.Name)
			}
			params[i] = t
		}
		c.LocalFunctionSignatures[f.Name] = &LocalSignature{
			Params: params,
			Result: scanReturnType(f.Body),
		}
	}
	return nil
}

func scanReturnType(stmts []asmjs.Stmt) wasm.ValueType {
	for _, s := range stmts {
		switch s := s.(type) {
		case *asmjs.ReturnStmt:
			if s.X == nil {
				continue
			}
			if t, ok := returnExprType(s.X); ok {
				return t
			}
		case *asmjs.IfStmt:
			if t := scanReturnType(s.Then); t != noneType {
				return t
			}
			if t := scanReturnType(s.Else); t != noneType {
				return t
			}
		case *asmjs.BlockStmt:
			if t := scanReturnType(s.Body); t != noneType {
				return t
			}
		case *asmjs.WhileStmt:
			if t := scanReturnType(s.Body); t != noneType {
				return t
			}
		case *asmjs.ForStmt:
			if t := scanReturnType(s.Body); t != noneType {
				return t
			}
		case *asmjs.DoWhileStmt:
			if t := scanReturnType(s.Body); t != noneType {
				return t
			}
		}
	}
	return noneType
}

func returnExprType(e asmjs.Expr) (wasm.ValueType, bool) {
	switch e := e.(type) {
	case *asmjs.CoerceExpr:
		t, _, err := coercionResultType(e)
		if err != nil {
			return 0, false
		}
		return t, true
	case *asmjs.NumberLiteral:
		if e.IsFloat {
			return wasm.ValueTypeF64, true
		}
		return wasm.ValueTypeI32, true
	}
	return 0, false
}

func coercionResultType(e asmjs.Expr) (wasm.ValueType, bool, error) {
	c, ok := e.(*asmjs.CoerceExpr)
	if !ok {
		return 0, false, Errorf(ErrShapeViolation, "parameter coercion is not a recognized coercion expression")
	}
	switch c.Op {
	case "|0", ">>>0":
		return wasm.ValueTypeI32, c.Op == ">>>0", nil
	case "+":
		return wasm.ValueTypeF64, false, nil
	case "fround":
		return wasm.ValueTypeF32, false, nil
	}
	return 0, false, Errorf(ErrShapeViolation, "unrecognized coercion operator %q", c.Op)
}

func (fc *functionCompiler) push(n asmjs.Node) {
	fc.ancestors = append(fc.ancestors, n)
}

func (fc *functionCompiler) pop() {
	fc.ancestors = fc.ancestors[:len(fc.ancestors)-1]
}

func (fc *functionCompiler) parent() asmjs.Node {
	if len(fc.ancestors) == 0 {
		return nil
	}
	return fc.ancestors[len(fc.ancestors)-1]
}

func (fc *functionCompiler) newLabel(base string) string {
	fc.labelSuffix++
	return fmt.Sprintf("%s$%d", base, fc.labelSuffix)
}

// ---- statements --------------------------------------------------------

func (fc *functionCompiler) translateStmts(stmts []asmjs.Stmt) ([]ir.Handle, error) {
	out := make([]ir.Handle, 0, len(stmts))
	for _, s := range stmts {
		h, err := fc.translateStmt(s)
		if err != nil {
			return nil, err
		}
		if h != ir.NoHandle {
			out = append(out, h)
		}
	}
	return out, nil
}

func (fc *functionCompiler) translateStmt(s asmjs.Stmt) (ir.Handle, error) {
	fc.push(s)
	defer fc.pop()

	switch s := s.(type) {
	case *asmjs.ExprStmt:
		t, err := fc.translateExpr(s.X)
		if err != nil {
			return ir.NoHandle, err
		}
		return t.h, nil

	case *asmjs.ReturnStmt:
		if s.X == nil {
			return fc.fn.New(ir.Return(ir.NoHandle)), nil
		}
		t, err := fc.translateExpr(s.X)
		if err != nil {
			return ir.NoHandle, err
		}
		if fc.returnSet && fc.returnType != t.t {
			return ir.NoHandle, Errorf(ErrInferenceInconsistency, "function %q returns both %s and %s", fc.fn.Name, fc.returnType, t.t)
		}
		fc.returnType = t.t
		fc.returnSet = true
		return fc.fn.New(ir.Return(t.h)), nil

	case *asmjs.IfStmt:
		cond, err := fc.translateCondition(s.Cond)
		if err != nil {
			return ir.NoHandle, err
		}
		then, err := fc.translateStmts(s.Then)
		if err != nil {
			return ir.NoHandle, err
		}
		thenBlock := fc.fn.New(ir.Block("", then))
		elseBlock := ir.NoHandle
		if s.Else != nil {
			els, err := fc.translateStmts(s.Else)
			if err != nil {
				return ir.NoHandle, err
			}
			elseBlock = fc.fn.New(ir.Block("", els))
		}
		return fc.fn.New(ir.If(cond, thenBlock, elseBlock)), nil

	case *asmjs.BlockStmt:
		body, err := fc.translateStmts(s.Body)
		if err != nil {
			return ir.NoHandle, err
		}
		return fc.fn.New(ir.Block("", body)), nil

	case *asmjs.BreakStmt:
		return fc.translateBreak(s.Label)

	case *asmjs.ContinueStmt:
		return fc.translateContinue(s.Label)

	case *asmjs.LabeledStmt:
		return fc.translateLabeled(s.Label, s.Stmt)

	case *asmjs.WhileStmt:
		return fc.translateWhile("", s.Label, s.Cond, s.Body)

	case *asmjs.DoWhileStmt:
		return fc.translateDoWhile("", s.Label, s.Body, s.Cond)

	case *asmjs.ForStmt:
		return fc.translateFor("", s.Label, s.Init, s.Cond, s.Post, s.Body)

	case *asmjs.SwitchStmt:
		return fc.translateSwitch(s)
	}
	return ir.NoHandle, Errorf(ErrShapeViolation, "unsupported statement %T", s)
}

// translateLabeled peels labels off loop/block constructs so the common
// (unlabeled) path in translateStmt stays simple, per §4.3's "Labeled
// statements combine with these by pre-naming the break/continue labels".
func (fc *functionCompiler) translateLabeled(label string, inner asmjs.Stmt) (ir.Handle, error) {
	switch s := inner.(type) {
	case *asmjs.WhileStmt:
		return fc.translateWhile(label, "", s.Cond, s.Body)
	case *asmjs.DoWhileStmt:
		return fc.translateDoWhile(label, "", s.Body, s.Cond)
	case *asmjs.ForStmt:
		return fc.translateFor(label, "", s.Init, s.Cond, s.Post, s.Body)
	default:
		internal := fc.newLabel(label)
		fc.breakStack = append(fc.breakStack, labelFrame{label, internal})
		defer func() { fc.breakStack = fc.breakStack[:len(fc.breakStack)-1] }()

		h, err := fc.translateStmt(inner)
		if err != nil {
			return ir.NoHandle, err
		}
		return fc.fn.New(ir.Block(internal, []ir.Handle{h})), nil
	}
}

func (fc *functionCompiler) translateBreak(label string) (ir.Handle, error) {
	target := ""
	if label == "" {
		if len(fc.breakStack) == 0 {
			return ir.NoHandle, Errorf(ErrShapeViolation, "break outside any loop or switch")
		}
		target = fc.breakStack[len(fc.breakStack)-1].internal
	} else {
		for i := len(fc.breakStack) - 1; i >= 0; i-- {
			if fc.breakStack[i].source == label {
				target = fc.breakStack[i].internal
				break
			}
		}
		if target == "" {
			return ir.NoHandle, Errorf(ErrShapeViolation, "break to undefined label %q", label)
		}
	}
	return fc.fn.New(ir.Break(target, ir.NoHandle)), nil
}

func (fc *functionCompiler) translateContinue(label string) (ir.Handle, error) {
	target := ""
	if label == "" {
		if len(fc.continueStack) == 0 {
			return ir.NoHandle, Errorf(ErrShapeViolation, "continue outside any loop")
		}
		target = fc.continueStack[len(fc.continueStack)-1].internal
	} else {
		for i := len(fc.continueStack) - 1; i >= 0; i-- {
			if fc.continueStack[i].source == label {
				target = fc.continueStack[i].internal
				break
			}
		}
		if target == "" {
			return ir.NoHandle, Errorf(ErrShapeViolation, "continue to undefined label %q", label)
		}
	}
	return fc.fn.New(ir.Break(target, ir.NoHandle)), nil
}

// translateWhile lowers `while(c) b` per §4.3: a labeled Loop that breaks
// out when `eqz(c)`, otherwise runs the body and branches back to the top.
func (fc *functionCompiler) translateWhile(outerLabel, _ string, cond asmjs.Expr, body []asmjs.Stmt) (ir.Handle, error) {
	breakLabel := fc.newLabel(outerLabel + "$while$break")
	continueLabel := fc.newLabel(outerLabel + "$while$continue")

	fc.breakStack = append(fc.breakStack, labelFrame{outerLabel, breakLabel})
	fc.continueStack = append(fc.continueStack, labelFrame{outerLabel, continueLabel})
	defer func() {
		fc.breakStack = fc.breakStack[:len(fc.breakStack)-1]
		fc.continueStack = fc.continueStack[:len(fc.continueStack)-1]
	}()

	c, err := fc.translateCondition(cond)
	if err != nil {
		return ir.NoHandle, err
	}
	notC := fc.fn.New(ir.Unary(wasm.ValueTypeI32, "eqz", c))
	brkOut := fc.fn.New(ir.Break(breakLabel, notC))

	bodyHandles, err := fc.translateStmts(body)
	if err != nil {
		return ir.NoHandle, err
	}
	loopBack := fc.fn.New(ir.Break(continueLabel, ir.NoHandle))

	loopBody := append([]ir.Handle{brkOut}, bodyHandles...)
	loopBody = append(loopBody, loopBack)

	loop := fc.fn.New(ir.Loop(continueLabel, loopBody))
	return fc.fn.New(ir.Block(breakLabel, []ir.Handle{loop})), nil
}

// translateDoWhile lowers `do b while(c)` per §4.3; `do {...} while(0)` is
// recognized and emitted as a plain block when nothing continues the loop.
func (fc *functionCompiler) translateDoWhile(outerLabel, _ string, body []asmjs.Stmt, cond asmjs.Expr) (ir.Handle, error) {
	if lit, ok := cond.(*asmjs.NumberLiteral); ok && !lit.IsFloat && lit.Value == 0 {
		breakLabel := fc.newLabel(outerLabel + "$dowhile$break")
		continueLabel := fc.newLabel(outerLabel + "$dowhile$continue")
		fc.breakStack = append(fc.breakStack, labelFrame{outerLabel, breakLabel})
		fc.continueStack = append(fc.continueStack, labelFrame{outerLabel, continueLabel})
		usesContinue := stmtsUseLabel(body, continueLabel, outerLabel)
		defer func() {
			fc.breakStack = fc.breakStack[:len(fc.breakStack)-1]
			fc.continueStack = fc.continueStack[:len(fc.continueStack)-1]
		}()

		bodyHandles, err := fc.translateStmts(body)
		if err != nil {
			return ir.NoHandle, err
		}
		if !usesContinue {
			return fc.fn.New(ir.Block(breakLabel, bodyHandles)), nil
		}
		loop := fc.fn.New(ir.Loop(continueLabel, bodyHandles))
		return fc.fn.New(ir.Block(breakLabel, []ir.Handle{loop})), nil
	}

	breakLabel := fc.newLabel(outerLabel + "$dowhile$break")
	continueLabel := fc.newLabel(outerLabel + "$dowhile$continue")
	fc.breakStack = append(fc.breakStack, labelFrame{outerLabel, breakLabel})
	fc.continueStack = append(fc.continueStack, labelFrame{outerLabel, continueLabel})
	defer func() {
		fc.breakStack = fc.breakStack[:len(fc.breakStack)-1]
		fc.continueStack = fc.continueStack[:len(fc.continueStack)-1]
	}()

	bodyHandles, err := fc.translateStmts(body)
	if err != nil {
		return ir.NoHandle, err
	}
	c, err := fc.translateCondition(cond)
	if err != nil {
		return ir.NoHandle, err
	}
	backEdge := fc.fn.New(ir.Break(continueLabel, c))
	loopBody := append(bodyHandles, backEdge)
	loop := fc.fn.New(ir.Loop(continueLabel, loopBody))
	return fc.fn.New(ir.Block(breakLabel, []ir.Handle{loop})), nil
}

// translateFor lowers `for(init; cond; inc) body` as
// `init; loop{ if(!cond) break; body; inc; continue }` per §4.3.
func (fc *functionCompiler) translateFor(outerLabel, _ string, init, cond, inc asmjs.Expr, body []asmjs.Stmt) (ir.Handle, error) {
	var pre []ir.Handle
	if init != nil {
		t, err := fc.translateExpr(init)
		if err != nil {
			return ir.NoHandle, err
		}
		pre = append(pre, t.h)
	}

	breakLabel := fc.newLabel(outerLabel + "$for$break")
	continueLabel := fc.newLabel(outerLabel + "$for$continue")
	fc.breakStack = append(fc.breakStack, labelFrame{outerLabel, breakLabel})
	fc.continueStack = append(fc.continueStack, labelFrame{outerLabel, continueLabel})
	defer func() {
		fc.breakStack = fc.breakStack[:len(fc.breakStack)-1]
		fc.continueStack = fc.continueStack[:len(fc.continueStack)-1]
	}()

	var loopBody []ir.Handle
	if cond != nil {
		c, err := fc.translateCondition(cond)
		if err != nil {
			return ir.NoHandle, err
		}
		notC := fc.fn.New(ir.Unary(wasm.ValueTypeI32, "eqz", c))
		loopBody = append(loopBody, fc.fn.New(ir.Break(breakLabel, notC)))
	}

	bodyHandles, err := fc.translateStmts(body)
	if err != nil {
		return ir.NoHandle, err
	}
	loopBody = append(loopBody, bodyHandles...)

	if inc != nil {
		t, err := fc.translateExpr(inc)
		if err != nil {
			return ir.NoHandle, err
		}
		loopBody = append(loopBody, t.h)
	}
	loopBody = append(loopBody, fc.fn.New(ir.Break(continueLabel, ir.NoHandle)))

	loop := fc.fn.New(ir.Loop(continueLabel, loopBody))
	pre = append(pre, loop)
	return fc.fn.New(ir.Block(breakLabel, pre)), nil
}

// switchDenseBound is the §4.3/§8 threshold below which a switch lowers to
// a single br_table instead of an if-else chain; the comparison is made in
// float64 to preserve the original tool's exact rounding at the boundary.
const switchDenseBound = 10240.0

// translateSwitch implements §4.3/§4.5's switch lowering: a dense,
// contiguous-enough case range becomes a single br_table dispatch; anything
// else falls back to a chain of equality tests.
func (fc *functionCompiler) translateSwitch(s *asmjs.SwitchStmt) (ir.Handle, error) {
	tag, err := fc.translateExpr(s.Tag)
	if err != nil {
		return ir.NoHandle, err
	}

	breakLabel := fc.newLabel("switch$break")
	fc.breakStack = append(fc.breakStack, labelFrame{"", breakLabel})
	defer func() { fc.breakStack = fc.breakStack[:len(fc.breakStack)-1] }()

	var defaultCase *asmjs.SwitchCase
	var cases []*asmjs.SwitchCase
	for _, c := range s.Cases {
		if c.IsDefault {
			defaultCase = c
		} else {
			cases = append(cases, c)
		}
	}

	if len(cases) == 0 {
		var body []ir.Handle
		if defaultCase != nil {
			b, err := fc.translateStmts(defaultCase.Body)
			if err != nil {
				return ir.NoHandle, err
			}
			body = b
		}
		return fc.fn.New(ir.Block(breakLabel, body)), nil
	}

	min, max := cases[0].Value, cases[0].Value
	for _, c := range cases[1:] {
		if c.Value < min {
			min = c.Value
		}
		if c.Value > max {
			max = c.Value
		}
	}

	if float64(max)-float64(min) < switchDenseBound {
		return fc.translateSwitchDense(tag, cases, defaultCase, min, max, breakLabel)
	}
	return fc.translateSwitchChain(tag, cases, defaultCase, breakLabel)
}

// translateSwitchChain builds `if(tag==v0) {..} else if(tag==v1) {..} else {default}`.
func (fc *functionCompiler) translateSwitchChain(tag typed, cases []*asmjs.SwitchCase, defaultCase *asmjs.SwitchCase, breakLabel string) (ir.Handle, error) {
	var build func(i int) (ir.Handle, error)
	build = func(i int) (ir.Handle, error) {
		if i >= len(cases) {
			if defaultCase == nil {
				return ir.NoHandle, nil
			}
			b, err := fc.translateStmts(defaultCase.Body)
			if err != nil {
				return ir.NoHandle, err
			}
			return fc.fn.New(ir.Block("", b)), nil
		}
		c := cases[i]
		lit := fc.fn.New(ir.Const(wasm.ValueTypeI32, int64(int32(c.Value))))
		cond := fc.fn.New(ir.Binary(wasm.ValueTypeI32, "eq", false, tag.h, lit))
		thenBody, err := fc.translateStmts(c.Body)
		if err != nil {
			return ir.NoHandle, err
		}
		thenBlock := fc.fn.New(ir.Block("", thenBody))
		rest, err := build(i + 1)
		if err != nil {
			return ir.NoHandle, err
		}
		return fc.fn.New(ir.If(cond, thenBlock, rest)), nil
	}

	root, err := build(0)
	if err != nil {
		return ir.NoHandle, err
	}
	var body []ir.Handle
	if root != ir.NoHandle {
		body = append(body, root)
	}
	return fc.fn.New(ir.Block(breakLabel, body)), nil
}

// translateSwitchDense builds the nested-block br_table encoding: n labeled
// blocks nest from the widest (default) inward to the narrowest (case
// min); a br_table exits through exactly one of them, landing right before
// that case's body, which then falls through the remaining outer block
// closes into whatever follows (typically an explicit `break`).
func (fc *functionCompiler) translateSwitchDense(tag typed, cases []*asmjs.SwitchCase, defaultCase *asmjs.SwitchCase, min, max int64, breakLabel string) (ir.Handle, error) {
	n := int(max-min) + 1
	byValue := map[int64]*asmjs.SwitchCase{}
	for _, c := range cases {
		byValue[c.Value] = c
	}

	labels := make([]string, n)
	for i := range labels {
		labels[i] = fc.newLabel(fmt.Sprintf("switch$case%d", i))
	}
	defaultLabel := fc.newLabel("switch$default")

	minConst := fc.fn.New(ir.Const(wasm.ValueTypeI32, int64(int32(min))))
	normalized := fc.fn.New(ir.Binary(wasm.ValueTypeI32, "sub", false, tag.h, minConst))
	// A value inside [min, max] with no case of its own dispatches to default.
	targets := make([]string, n)
	for i := range targets {
		targets[i] = defaultLabel
		if _, ok := byValue[min+int64(i)]; ok {
			targets[i] = labels[i]
		}
	}
	brTable := fc.fn.New(ir.Switch(normalized, targets, defaultLabel))

	cur := fc.fn.New(ir.Block(labels[0], []ir.Handle{brTable}))
	for i := 1; i < n; i++ {
		caseBody := []ir.Handle{cur}
		if c, ok := byValue[min+int64(i-1)]; ok {
			b, err := fc.translateStmts(c.Body)
			if err != nil {
				return ir.NoHandle, err
			}
			caseBody = append(caseBody, b...)
		}
		cur = fc.fn.New(ir.Block(labels[i], caseBody))
	}

	finalBody := []ir.Handle{cur}
	if c, ok := byValue[min+int64(n-1)]; ok {
		b, err := fc.translateStmts(c.Body)
		if err != nil {
			return ir.NoHandle, err
		}
		finalBody = append(finalBody, b...)
	}
	defaultBlock := fc.fn.New(ir.Block(defaultLabel, finalBody))

	outerBody := []ir.Handle{defaultBlock}
	if defaultCase != nil {
		b, err := fc.translateStmts(defaultCase.Body)
		if err != nil {
			return ir.NoHandle, err
		}
		outerBody = append(outerBody, b...)
	}
	return fc.fn.New(ir.Block(breakLabel, outerBody)), nil
}

// stmtsUseLabel is a shallow search used only to decide whether a
// `do {...} while(0)` loop's back-edge is reachable; it does not need to be
// exact about nested loops that shadow the label, since the walk only
// matters for the single-shot optimization and a false positive merely
// keeps an otherwise-removable Loop wrapper.
func stmtsUseLabel(stmts []asmjs.Stmt, internalUnused, sourceLabel string) bool {
	for _, s := range stmts {
		switch s := s.(type) {
		case *asmjs.ContinueStmt:
			if s.Label == "" || s.Label == sourceLabel {
				return true
			}
		case *asmjs.IfStmt:
			if stmtsUseLabel(s.Then, internalUnused, sourceLabel) || stmtsUseLabel(s.Else, internalUnused, sourceLabel) {
				return true
			}
		case *asmjs.BlockStmt:
			if stmtsUseLabel(s.Body, internalUnused, sourceLabel) {
				return true
			}
		}
	}
	return false
}

// translateCondition translates an asm.js truthiness test, forcing the
// result to i32 the way an `if`/`while`/`for` condition requires.
func (fc *functionCompiler) translateCondition(e asmjs.Expr) (ir.Handle, error) {
	t, err := fc.translateExpr(e)
	if err != nil {
		return ir.NoHandle, err
	}
	return t.h, nil
}

// ---- expressions --------------------------------------------------------

func (fc *functionCompiler) translateExpr(e asmjs.Expr) (typed, error) {
	fc.push(e)
	defer fc.pop()

	switch e := e.(type) {
	case *asmjs.NumberLiteral:
		return fc.translateLiteral(e)

	case *asmjs.Ident:
		return fc.translateIdent(e)

	case *asmjs.CoerceExpr:
		return fc.translateCoerce(e)

	case *asmjs.UnaryExpr:
		return fc.translateUnary(e)

	case *asmjs.BinaryExpr:
		return fc.translateBinary(e)

	case *asmjs.AssignExpr:
		return fc.translateAssign(e)

	case *asmjs.SubscriptExpr:
		return fc.translateLoad(e)

	case *asmjs.CallExpr:
		return fc.translateCall(e)
	}
	return typed{}, Errorf(ErrShapeViolation, "unsupported expression %T", e)
}

func (fc *functionCompiler) translateLiteral(n *asmjs.NumberLiteral) (typed, error) {
	if n.IsFloat {
		h := fc.fn.New(ir.Const(wasm.ValueTypeF64, int64(toF64Bits(n.Value))))
		return typed{h, wasm.ValueTypeF64, false}, nil
	}
	v := int64(n.Value)
	if v >= -(1<<31) && v < (1<<31) {
		h := fc.fn.New(ir.Const(wasm.ValueTypeI32, int64(int32(v))))
		return typed{h, wasm.ValueTypeI32, v < 0}, nil
	}
	if v >= 0 && v < (1<<32) {
		h := fc.fn.New(ir.Const(wasm.ValueTypeI32, int64(uint32(v))))
		return typed{h, wasm.ValueTypeI32, false}, nil
	}
	h := fc.fn.New(ir.Const(wasm.ValueTypeF64, int64(toF64Bits(n.Value))))
	return typed{h, wasm.ValueTypeF64, false}, nil
}

func (fc *functionCompiler) translateIdent(id *asmjs.Ident) (typed, error) {
	if idx, ok := fc.locals[id.Name]; ok {
		t := fc.localTypes[id.Name]
		return typed{fc.fn.New(ir.GetLocal(t, idx)), t, false}, nil
	}
	if g, ok := fc.ctx.Globals[id.Name]; ok && !g.Imported {
		return typed{fc.fn.New(ir.GetGlobal(g.Type, g.GlobalIndex)), g.Type, false}, nil
	}
	if g, ok := fc.ctx.Globals[id.Name]; ok && g.Imported {
		return typed{fc.fn.New(ir.GetGlobal(g.Type, g.MutableGlobalIndex)), g.Type, false}, nil
	}
	return typed{}, Errorf(ErrShapeViolation, "reference to unregistered identifier %q", id.Name)
}

// translateCoerce implements §4.3's "Coercions and literals".
func (fc *functionCompiler) translateCoerce(c *asmjs.CoerceExpr) (typed, error) {
	switch c.Op {
	case "|0", ">>>0":
		inner, err := fc.translateExpr(c.X)
		if err != nil {
			return typed{}, err
		}
		if inner.t == wasm.ValueTypeI32 {
			// Translating `(e)|0` where e is already i32 is the identity
			// (§8 round-trip property).
			return typed{inner.h, wasm.ValueTypeI32, c.Op == ">>>0"}, nil
		}
		op := "trunc_s_f64_i32"
		if c.Op == ">>>0" {
			op = "trunc_u_f64_i32"
		}
		if inner.t == wasm.ValueTypeF32 {
			op = "trunc_s_f32_i32"
			if c.Op == ">>>0" {
				op = "trunc_u_f32_i32"
			}
		}
		return typed{fc.fn.New(ir.Unary(wasm.ValueTypeI32, op, inner.h)), wasm.ValueTypeI32, c.Op == ">>>0"}, nil

	case "+":
		inner, err := fc.translateExpr(c.X)
		if err != nil {
			return typed{}, err
		}
		switch inner.t {
		case wasm.ValueTypeF64:
			return inner, nil
		case wasm.ValueTypeF32:
			return typed{fc.fn.New(ir.Unary(wasm.ValueTypeF64, "promote_f32_f64", inner.h)), wasm.ValueTypeF64, false}, nil
		case wasm.ValueTypeI32:
			op := "convert_s_i32_f64"
			if inner.signed == false && isUnsignedContext(fc.parent()) {
				op = "convert_u_i32_f64"
			}
			return typed{fc.fn.New(ir.Unary(wasm.ValueTypeF64, op, inner.h)), wasm.ValueTypeF64, false}, nil
		}
		return typed{}, Errorf(ErrShapeViolation, "cannot promote %s to f64", inner.t)

	case "fround":
		if lit, ok := c.X.(*asmjs.NumberLiteral); ok {
			h := fc.fn.New(ir.Const(wasm.ValueTypeF32, int64(toF32Bits(float32(lit.Value)))))
			return typed{h, wasm.ValueTypeF32, false}, nil
		}
		inner, err := fc.translateExpr(c.X)
		if err != nil {
			return typed{}, err
		}
		switch inner.t {
		case wasm.ValueTypeF32:
			return inner, nil
		case wasm.ValueTypeF64:
			return typed{fc.fn.New(ir.Unary(wasm.ValueTypeF32, "demote_f64_f32", inner.h)), wasm.ValueTypeF32, false}, nil
		case wasm.ValueTypeI32:
			op := "convert_s_i32_f32"
			if inner.signed {
				op = "convert_s_i32_f32"
			} else {
				op = "convert_u_i32_f32"
			}
			return typed{fc.fn.New(ir.Unary(wasm.ValueTypeF32, op, inner.h)), wasm.ValueTypeF32, false}, nil
		}
		return typed{}, Errorf(ErrShapeViolation, "cannot convert %s via fround", inner.t)
	}
	return typed{}, Errorf(ErrShapeViolation, "unrecognized coercion %q", c.Op)
}

// isUnsignedContext is consulted by the `+(e)` promotion for an i32 child
// whose own signedness wasn't already decided. No enclosing node is
// recognized as an unsigned signal: it always reports false, so that
// promotion always uses convert_s_i32_f64.
func isUnsignedContext(parent asmjs.Node) bool {
	return false
}

func (fc *functionCompiler) translateUnary(u *asmjs.UnaryExpr) (typed, error) {
	inner, err := fc.translateExpr(u.X)
	if err != nil {
		return typed{}, err
	}
	switch u.Op {
	case "-":
		if inner.t == wasm.ValueTypeI32 {
			zero := fc.fn.New(ir.Const(wasm.ValueTypeI32, 0))
			return typed{fc.fn.New(ir.Binary(wasm.ValueTypeI32, "sub", false, zero, inner.h)), wasm.ValueTypeI32, inner.signed}, nil
		}
		return typed{fc.fn.New(ir.Unary(inner.t, "neg", inner.h)), inner.t, false}, nil

	case "!":
		return typed{fc.fn.New(ir.Unary(wasm.ValueTypeI32, "eqz", inner.h)), wasm.ValueTypeI32, false}, nil

	case "~":
		negOne := fc.fn.New(ir.Const(wasm.ValueTypeI32, -1))
		return typed{fc.fn.New(ir.Binary(wasm.ValueTypeI32, "xor", false, inner.h, negOne)), wasm.ValueTypeI32, true}, nil

	case "~~":
		signed := !isUnsignedCoerceParent(fc.parent())
		mode := fc.ctx.Config.TrapMode
		h, err := fc.emitFloatToInt(inner, signed, mode)
		if err != nil {
			return typed{}, err
		}
		return typed{h, wasm.ValueTypeI32, signed}, nil
	}
	return typed{}, Errorf(ErrShapeViolation, "unrecognized unary operator %q", u.Op)
}

func isUnsignedCoerceParent(parent asmjs.Node) bool {
	c, ok := parent.(*asmjs.CoerceExpr)
	return ok && c.Op == ">>>0"
}

func (fc *functionCompiler) translateBinary(b *asmjs.BinaryExpr) (typed, error) {
	if b.Op == "," {
		x, err := fc.translateExpr(b.X)
		if err != nil {
			return typed{}, err
		}
		y, err := fc.translateExpr(b.Y)
		if err != nil {
			return typed{}, err
		}
		// The comma operator's left side is evaluated purely for effect; a
		// value-producing Block sequences both and yields the last child.
		h := fc.fn.New(ir.Node{Op: ir.OpBlock, Kids: []ir.Handle{x.h, y.h}, Type: y.t})
		return typed{h, y.t, y.signed}, nil
	}

	x, err := fc.translateExpr(b.X)
	if err != nil {
		return typed{}, err
	}
	y, err := fc.translateExpr(b.Y)
	if err != nil {
		return typed{}, err
	}

	switch b.Op {
	case "+", "-", "*":
		t := resultArithType(x.t, y.t)
		name := map[string]string{"+": "add", "-": "sub", "*": "mul"}[b.Op]
		return typed{fc.fn.New(ir.Binary(t, name, false, x.h, y.h)), t, false}, nil

	case "/", "%":
		t := resultArithType(x.t, y.t)
		signed := !(x.signed == false && y.signed == false) || t != wasm.ValueTypeI32
		if t == wasm.ValueTypeI32 {
			signed = !(isUnsignedOperand(x) || isUnsignedOperand(y))
		}
		name := "div"
		if b.Op == "%" {
			name = "rem"
		}
		if t != wasm.ValueTypeI32 {
			if b.Op == "%" {
				rem, err := fc.emitF64Rem(x.h, y.h)
				return typed{rem, wasm.ValueTypeF64, false}, err
			}
			return typed{fc.fn.New(ir.Binary(t, "div", false, x.h, y.h)), t, false}, nil
		}
		h, err := fc.emitIntDivRem(name, signed, x.h, y.h)
		if err != nil {
			return typed{}, err
		}
		return typed{h, wasm.ValueTypeI32, signed}, nil

	case "==", "!=":
		name := map[string]string{"==": "eq", "!=": "ne"}[b.Op]
		return typed{fc.fn.New(ir.Binary(wasm.ValueTypeI32, name, false, x.h, y.h)), wasm.ValueTypeI32, false}, nil

	case "<", ">", "<=", ">=":
		signed := !(isUnsignedOperand(x) || isUnsignedOperand(y))
		name := map[string]string{"<": "lt", ">": "gt", "<=": "le", ">=": "ge"}[b.Op]
		return typed{fc.fn.New(ir.Binary(wasm.ValueTypeI32, name, signed, x.h, y.h)), wasm.ValueTypeI32, false}, nil

	case "|", "&", "^", "<<", ">>", ">>>":
		name := map[string]string{"|": "or", "&": "and", "^": "xor", "<<": "shl", ">>": "shr", ">>>": "shr"}[b.Op]
		signed := b.Op != ">>>"
		return typed{fc.fn.New(ir.Binary(wasm.ValueTypeI32, name, signed, x.h, y.h)), wasm.ValueTypeI32, b.Op == ">>>"}, nil
	}
	return typed{}, Errorf(ErrShapeViolation, "unrecognized binary operator %q", b.Op)
}

func isUnsignedOperand(t typed) bool {
	return t.t == wasm.ValueTypeI32 && t.signed
}

func resultArithType(x, y wasm.ValueType) wasm.ValueType {
	if x == wasm.ValueTypeF64 || y == wasm.ValueTypeF64 {
		return wasm.ValueTypeF64
	}
	if x == wasm.ValueTypeF32 || y == wasm.ValueTypeF32 {
		return wasm.ValueTypeF32
	}
	return wasm.ValueTypeI32
}

func (fc *functionCompiler) translateAssign(a *asmjs.AssignExpr) (typed, error) {
	rhs, err := fc.translateExpr(a.RHS)
	if err != nil {
		return typed{}, err
	}

	switch lhs := a.LHS.(type) {
	case *asmjs.Ident:
		if idx, ok := fc.locals[lhs.Name]; ok {
			return typed{fc.fn.New(ir.SetLocal(idx, rhs.h)), wasm.ValueType(0), false}, nil
		}
		if g, ok := fc.ctx.Globals[lhs.Name]; ok {
			idx := g.GlobalIndex
			if g.Imported {
				idx = g.MutableGlobalIndex
			}
			return typed{fc.fn.New(ir.SetGlobal(idx, rhs.h)), wasm.ValueType(0), false}, nil
		}
		return typed{}, Errorf(ErrShapeViolation, "assignment to unregistered identifier %q", lhs.Name)

	case *asmjs.SubscriptExpr:
		view, ok := fc.ctx.HeapViews[lhs.View]
		if !ok {
			return typed{}, Errorf(ErrShapeViolation, "store through unregistered heap view %q", lhs.View)
		}
		addr, err := fc.processUnshifted(lhs.Addr, view.Bytes)
		if err != nil {
			return typed{}, err
		}
		value := rhs.h
		if rhs.t != view.Type {
			value, err = fc.coerceTo(rhs, view.Type)
			if err != nil {
				return typed{}, err
			}
		}
		return typed{fc.fn.New(ir.Store(view.Name, view.Bytes, addr, value)), wasm.ValueType(0), false}, nil
	}
	return typed{}, Errorf(ErrShapeViolation, "unsupported assignment target %T", a.LHS)
}

// coerceTo inserts a demote/promote/convert to make t's value usable where
// target is expected, per §4.3 "Stores additionally insert demote/promote".
func (fc *functionCompiler) coerceTo(t typed, target wasm.ValueType) (ir.Handle, error) {
	if t.t == target {
		return t.h, nil
	}
	switch {
	case t.t == wasm.ValueTypeF64 && target == wasm.ValueTypeF32:
		return fc.fn.New(ir.Unary(wasm.ValueTypeF32, "demote_f64_f32", t.h)), nil
	case t.t == wasm.ValueTypeF32 && target == wasm.ValueTypeF64:
		return fc.fn.New(ir.Unary(wasm.ValueTypeF64, "promote_f32_f64", t.h)), nil
	}
	return ir.NoHandle, Errorf(ErrInferenceInconsistency, "store value type %s does not match heap view type %s", t.t, target)
}

// translateLoad implements §4.3's "Heap load/store" for a read (a write
// goes through translateAssign, since the target type affects the store).
func (fc *functionCompiler) translateLoad(s *asmjs.SubscriptExpr) (typed, error) {
	view, ok := fc.ctx.HeapViews[s.View]
	if !ok {
		return typed{}, Errorf(ErrShapeViolation, "load through unregistered heap view %q", s.View)
	}
	addr, err := fc.processUnshifted(s.Addr, view.Bytes)
	if err != nil {
		return typed{}, err
	}
	return typed{fc.fn.New(ir.Load(view.Type, view.Name, view.Bytes, view.Signed, addr)), view.Type, view.Signed}, nil
}

// processUnshifted implements §4.3's heap-address normalization: peel a
// `ptr >> log2(bytes)` (or `x|0` when bytes == 1), constant-fold a literal
// pointer by multiplying by bytes, or fail as a shape violation.
func (fc *functionCompiler) processUnshifted(addr asmjs.Expr, bytes int) (ir.Handle, error) {
	if lit, ok := addr.(*asmjs.NumberLiteral); ok && !lit.IsFloat {
		h := fc.fn.New(ir.Const(wasm.ValueTypeI32, int64(int32(int64(lit.Value)*int64(bytes)))))
		return h, nil
	}

	if bytes == 1 {
		if c, ok := addr.(*asmjs.CoerceExpr); ok && c.Op == "|0" {
			t, err := fc.translateExpr(c.X)
			if err != nil {
				return ir.NoHandle, err
			}
			return t.h, nil
		}
		t, err := fc.translateExpr(addr)
		if err != nil {
			return ir.NoHandle, err
		}
		return t.h, nil
	}

	shift := log2(bytes)
	if b, ok := addr.(*asmjs.BinaryExpr); ok && b.Op == ">>" {
		if lit, ok := b.Y.(*asmjs.NumberLiteral); ok && !lit.IsFloat && int(lit.Value) == shift {
			t, err := fc.translateExpr(b.X)
			if err != nil {
				return ir.NoHandle, err
			}
			return t.h, nil
		}
	}
	return ir.NoHandle, Errorf(ErrShapeViolation, "heap address expression is neither `ptr >> %d` nor a constant", shift)
}

func log2(n int) int {
	shift := 0
	for n > 1 {
		n >>= 1
		shift++
	}
	return shift
}

// translateCall implements §4.3's three call shapes plus the wasm-only
// sentinel intrinsics and the ftCall_/mftCall_ prefix rule.
func (fc *functionCompiler) translateCall(call *asmjs.CallExpr) (typed, error) {
	if sub, ok := call.Callee.(*asmjs.SubscriptExpr); ok {
		return fc.translateIndirectCall(sub, call.Args)
	}

	id, ok := call.Callee.(*asmjs.Ident)
	if !ok {
		return typed{}, Errorf(ErrShapeViolation, "unsupported call target %T", call.Callee)
	}

	if id.Name == "emscripten_debuginfo" && len(call.Args) == 2 {
		file, err := evalConstI32(call.Args[0])
		if err != nil {
			return typed{}, err
		}
		line, err := evalConstI32(call.Args[1])
		if err != nil {
			return typed{}, err
		}
		return typed{fc.fn.New(ir.DebugInfo(int(file), int(line))), 0, false}, nil
	}

	if fc.ctx.Config.WasmOnly {
		if h, t, ok, err := fc.translateSentinelIntrinsic(id.Name, call.Args); ok || err != nil {
			return typed{h, t, false}, err
		}
	}

	if slot, ok := fc.ctx.Intrinsics[id.Name]; ok {
		return fc.translateMathIntrinsic(slot, call.Args)
	}

	if isIntrinsicPrefix(id.Name) {
		return fc.translateTableCallBySuffix(id.Name, call.Args)
	}

	args := make([]ir.Handle, len(call.Args))
	argTypes := make([]wasm.ValueType, len(call.Args))
	for i, a := range call.Args {
		t, err := fc.translateExpr(a)
		if err != nil {
			return typed{}, err
		}
		args[i] = t.h
		argTypes[i] = t.t
	}

	if local, ok := fc.ctx.LocalFunctionSignatures[id.Name]; ok {
		return typed{fc.fn.New(ir.Call(local.Result, id.Name, args)), local.Result, false}, nil
	}

	resultType := wasm.ValueType(0)
	if p := fc.parent(); p != nil {
		if _, ok := p.(*asmjs.CoerceExpr); ok {
			resultType = wasm.ValueTypeI32
		}
	}
	sig := fc.ctx.Observe(id.Name, argTypes, resultType)
	result := sig.Result
	return typed{fc.fn.New(ir.CallImport(result, id.Name, args)), result, false}, nil
}

// translateIndirectCall implements §4.3 shape 2: `FTABLE[(expr)&mask](args)`.
func (fc *functionCompiler) translateIndirectCall(sub *asmjs.SubscriptExpr, argExprs []asmjs.Expr) (typed, error) {
	target, err := fc.stripMask(sub.Addr)
	if err != nil {
		return typed{}, err
	}

	placeholder := fc.fn.New(ir.CallImport(wasm.ValueTypeI32, sub.View, nil))
	combinedTarget := fc.fn.New(ir.Binary(wasm.ValueTypeI32, "add", false, target, placeholder))

	args := make([]ir.Handle, len(argExprs))
	for i, a := range argExprs {
		t, err := fc.translateExpr(a)
		if err != nil {
			return typed{}, err
		}
		args[i] = t.h
	}

	resultType := wasm.ValueType(0)
	return typed{fc.fn.New(ir.CallIndirect(resultType, sub.View, combinedTarget, args)), resultType, false}, nil
}

func (fc *functionCompiler) stripMask(addr asmjs.Expr) (ir.Handle, error) {
	if b, ok := addr.(*asmjs.BinaryExpr); ok && b.Op == "&" {
		t, err := fc.translateExpr(b.X)
		if err != nil {
			return ir.NoHandle, err
		}
		return t.h, nil
	}
	t, err := fc.translateExpr(addr)
	if err != nil {
		return ir.NoHandle, err
	}
	return t.h, nil
}

// translateTableCallBySuffix implements §4.3's "Function-table calls by
// suffix": the first argument is the target index, the rest are operands.
func (fc *functionCompiler) translateTableCallBySuffix(name string, argExprs []asmjs.Expr) (typed, error) {
	if len(argExprs) == 0 {
		return typed{}, Errorf(ErrShapeViolation, "%q called with no target-index argument", name)
	}
	target, err := fc.translateExpr(argExprs[0])
	if err != nil {
		return typed{}, err
	}
	args := make([]ir.Handle, len(argExprs)-1)
	for i, a := range argExprs[1:] {
		t, err := fc.translateExpr(a)
		if err != nil {
			return typed{}, err
		}
		args[i] = t.h
	}
	tableName := strings.TrimPrefix(strings.TrimPrefix(name, "ftCall_"), "mftCall_")
	return typed{fc.fn.New(ir.CallIndirect(wasm.ValueType(0), tableName, target.h, args)), 0, false}, nil
}

// translateMathIntrinsic lowers a call through an intercepted dotted import
// slot directly to a WASM op, per §4.3 bullet 3.
func (fc *functionCompiler) translateMathIntrinsic(slot string, argExprs []asmjs.Expr) (typed, error) {
	args := make([]typed, len(argExprs))
	for i, a := range argExprs {
		t, err := fc.translateExpr(a)
		if err != nil {
			return typed{}, err
		}
		args[i] = t
	}

	switch slot {
	case "i32.mul":
		return typed{fc.fn.New(ir.Binary(wasm.ValueTypeI32, "mul", false, args[0].h, args[1].h)), wasm.ValueTypeI32, false}, nil
	case "i32.ctz":
		return typed{fc.fn.New(ir.Unary(wasm.ValueTypeI32, "ctz", args[0].h)), wasm.ValueTypeI32, false}, nil
	case "i32.clz":
		return typed{fc.fn.New(ir.Unary(wasm.ValueTypeI32, "clz", args[0].h)), wasm.ValueTypeI32, false}, nil
	case "fround":
		return fc.translateCoerce(&asmjs.CoerceExpr{Op: "fround", X: argExprs[0]})
	case "abs":
		t := args[0]
		if t.t == wasm.ValueTypeI32 {
			zero := fc.fn.New(ir.Const(wasm.ValueTypeI32, 0))
			neg := fc.fn.New(ir.Binary(wasm.ValueTypeI32, "sub", false, zero, t.h))
			cond := fc.fn.New(ir.Binary(wasm.ValueTypeI32, "lt", true, t.h, zero))
			return typed{fc.fn.New(ir.Select(wasm.ValueTypeI32, cond, neg, t.h)), wasm.ValueTypeI32, t.signed}, nil
		}
		return typed{fc.fn.New(ir.Unary(t.t, "abs", t.h)), t.t, false}, nil
	case "floor", "ceil", "sqrt":
		t := args[0]
		return typed{fc.fn.New(ir.Unary(t.t, slot, t.h)), t.t, false}, nil
	case "max", "min":
		x, y := args[0], args[1]
		t := resultArithType(x.t, y.t)
		return typed{fc.fn.New(ir.Binary(t, slot, false, x.h, y.h)), t, false}, nil
	}
	return typed{}, Errorf(ErrShapeViolation, "unrecognized math intrinsic slot %q", slot)
}

// sentinelLoads, sentinelStores and sentinelBinops list the wasm-only
// direct-lowering op names from §4.3
// "Wasm-only intrinsics", expanded per SUPPLEMENTED FEATURES against
// asm2wasm.h's GLOBAL_MATH/ABI_INT64 tables.
var sentinelLoads = map[string]struct {
	bytes  int
	signed bool
	t      wasm.ValueType
}{
	"load1": {1, true, wasm.ValueTypeI32}, "load2": {2, true, wasm.ValueTypeI32},
	"load4": {4, true, wasm.ValueTypeI32}, "load8": {8, false, wasm.ValueTypeI64},
	"loadf": {4, false, wasm.ValueTypeF32}, "loadd": {8, false, wasm.ValueTypeF64},
}

var sentinelStores = map[string]int{
	"store1": 1, "store2": 2, "store4": 4, "store8": 8, "storef": 4, "stored": 8,
}

var sentinelBinops = map[string]string{
	"i32_add": "add", "i32_sub": "sub", "i32_mul": "mul", "i32_and": "and", "i32_or": "or", "i32_xor": "xor",
	"i32_shl": "shl", "i32_shr": "shr", "i32_ne": "ne", "i32_eq": "eq",
	"i64_add": "add", "i64_sub": "sub", "i64_mul": "mul", "i64_and": "and", "i64_or": "or", "i64_xor": "xor",
}

func (fc *functionCompiler) translateSentinelIntrinsic(name string, argExprs []asmjs.Expr) (ir.Handle, wasm.ValueType, bool, error) {
	if ld, ok := sentinelLoads[name]; ok {
		addr, err := fc.translateExpr(argExprs[0])
		if err != nil {
			return ir.NoHandle, 0, true, err
		}
		return fc.fn.New(ir.Load(ld.t, "mem", ld.bytes, ld.signed, addr.h)), ld.t, true, nil
	}
	if bytes, ok := sentinelStores[name]; ok {
		addr, err := fc.translateExpr(argExprs[0])
		if err != nil {
			return ir.NoHandle, 0, true, err
		}
		val, err := fc.translateExpr(argExprs[1])
		if err != nil {
			return ir.NoHandle, 0, true, err
		}
		return fc.fn.New(ir.Store("mem", bytes, addr.h, val.h)), 0, true, nil
	}
	if op, ok := sentinelBinops[name]; ok {
		x, err := fc.translateExpr(argExprs[0])
		if err != nil {
			return ir.NoHandle, 0, true, err
		}
		y, err := fc.translateExpr(argExprs[1])
		if err != nil {
			return ir.NoHandle, 0, true, err
		}
		t := wasm.ValueTypeI32
		if strings.HasPrefix(name, "i64_") {
			t = wasm.ValueTypeI64
		}
		return fc.fn.New(ir.Binary(t, op, false, x.h, y.h)), t, true, nil
	}
	if name == "i64_const" && len(argExprs) == 2 {
		lo, err := evalConstI32(argExprs[0])
		if err != nil {
			return ir.NoHandle, 0, true, err
		}
		hi, err := evalConstI32(argExprs[1])
		if err != nil {
			return ir.NoHandle, 0, true, err
		}
		bits := (uint64(uint32(hi)) << 32) | uint64(uint32(lo))
		return fc.fn.New(ir.Const(wasm.ValueTypeI64, int64(bits))), wasm.ValueTypeI64, true, nil
	}
	if name == "f32_copysign" || name == "f64_copysign" {
		x, err := fc.translateExpr(argExprs[0])
		if err != nil {
			return ir.NoHandle, 0, true, err
		}
		y, err := fc.translateExpr(argExprs[1])
		if err != nil {
			return ir.NoHandle, 0, true, err
		}
		return fc.fn.New(ir.Binary(x.t, "copysign", false, x.h, y.h)), x.t, true, nil
	}
	return ir.NoHandle, 0, false, nil
}

func evalConstI32(e asmjs.Expr) (int32, error) {
	lit, ok := e.(*asmjs.NumberLiteral)
	if !ok {
		return 0, Errorf(ErrShapeViolation, "i64_const argument is not a literal")
	}
	return int32(int64(lit.Value)), nil
}

func toF64Bits(v float64) uint64 {
	return math.Float64bits(v)
}

func toF32Bits(v float32) uint32 {
	return math.Float32bits(v)
}
