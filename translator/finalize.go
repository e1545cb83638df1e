package translator

import (
	"runtime"
	"sync"

	"github.com/willf/bitset"

	"github.com/wasmkit/asm2wasm/ir"
	"github.com/wasmkit/asm2wasm/wasm"
)

// Finalize runs the Call Finalizer (§4.7) over every registered function.
// By this point every function body has been translated and every import
// call site has contributed to the Signature Inferencer's tentative
// signatures (§4.4); finalization is the pass that commits those tentative
// results into the tree:
//
//   - an OpCallImport node's Type (and each argument's implicit width) is
//     widened to the import's now-final signature;
//   - an OpCallIndirect node's placeholder target expression (built as
//     `<computed> + callImport(tableName)` during translation, since the
//     table's base offset wasn't assigned until every source table had been
//     registered) is rewritten to add the real constant offset instead;
//   - an OpDebugInfo marker is folded onto the node immediately following it
//     in the same body list and erased to a Nop, so the emitter doesn't have
//     to special-case a bare debug marker with no value.
//
// Functions are independent once translated (§5: "per-function state is
// owned exclusively by one worker"), so finalization dispatches across a
// small worker pool that claims function indices from a shared bitset
// rather than statically partitioning work, keeping workers busy even when
// functions vary widely in size.
func (c *Context) Finalize() error {
	n := len(c.FunctionOrder)
	if n == 0 {
		return nil
	}

	claimed := bitset.New(uint(n))
	var mu sync.Mutex
	next := func() (int, bool) {
		mu.Lock()
		defer mu.Unlock()
		for i := 0; i < n; i++ {
			if !claimed.Test(uint(i)) {
				claimed.Set(uint(i))
				return i, true
			}
		}
		return 0, false
	}

	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	errs := make([]error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for {
				i, ok := next()
				if !ok {
					return
				}
				fn := c.Functions[c.FunctionOrder[i]]
				if err := c.finalizeFunction(fn); err != nil {
					errs[w] = err
					return
				}
			}
		}(w)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	for _, sig := range c.ImportSignatures {
		sig.Final = true
	}
	return nil
}

func (c *Context) finalizeFunction(fn *ir.Function) error {
	if err := c.foldDebugInfo(fn, fn.Body); err != nil {
		return err
	}
	for i := 0; i < fn.NumNodes(); i++ {
		if err := c.finalizeNode(fn, ir.Handle(i)); err != nil {
			return err
		}
	}
	return nil
}

// foldDebugInfo walks one body list in order, folding each OpDebugInfo node
// onto the handle that follows it (§4.7 "Debug info"). A debug marker with
// nothing after it in its own list (e.g. the last statement of a block) is
// simply erased: there is no expression left for the annotation to attach
// to in this body, and debug info is best-effort, never load-bearing.
func (c *Context) foldDebugInfo(fn *ir.Function, body []ir.Handle) error {
	for i := 0; i < len(body); i++ {
		n := fn.Node(body[i])
		if n.Op != ir.OpDebugInfo {
			if err := c.foldDebugInfoInto(fn, n); err != nil {
				return err
			}
			continue
		}
		fileIdx, line := int(n.Imm), int(n.Imm2)
		if fn.DebugLocations == nil {
			fn.DebugLocations = map[ir.Handle][2]int{}
		}
		if i+1 < len(body) {
			fn.DebugLocations[body[i+1]] = [2]int{fileIdx, line}
		}
		fn.Set(body[i], ir.Nop())
	}
	return nil
}

// foldDebugInfoInto recurses into a node's nested body lists (Block/Loop/If
// branches), since a debug marker can appear anywhere control flow does.
func (c *Context) foldDebugInfoInto(fn *ir.Function, n *ir.Node) error {
	switch n.Op {
	case ir.OpBlock, ir.OpLoop:
		return c.foldDebugInfo(fn, n.Kids)
	case ir.OpIf:
		if n.B != ir.NoHandle {
			if err := c.foldDebugInfoInto(fn, fn.Node(n.B)); err != nil {
				return err
			}
		}
		if n.C != ir.NoHandle {
			if err := c.foldDebugInfoInto(fn, fn.Node(n.C)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Context) finalizeNode(fn *ir.Function, h ir.Handle) error {
	n := fn.Node(h)
	switch n.Op {
	case ir.OpCallImport:
		return c.finalizeImportCall(fn, h, n)
	case ir.OpCallIndirect:
		return c.finalizeIndirectCall(fn, h, n)
	}
	return nil
}

// finalizeImportCall widens a call's arguments and result to the import's
// final signature (§4.7 "Argument padding/widening, result wrap/drop"): a
// call site that supplied fewer arguments than the final signature needs
// gets zero-value padding appended, one that supplied a narrower type per
// position gets an inserted promote, and a result that the call site
// discards or narrows is handled by the caller's own coercion, not here —
// finalization only ever widens towards the signature, never drops a value
// the caller still expects to read.
func (c *Context) finalizeImportCall(fn *ir.Function, h ir.Handle, n *ir.Node) error {
	sig, ok := c.ImportSignatures[n.Name]
	if !ok {
		return nil
	}

	args := n.Kids
	for len(args) < len(sig.Params) {
		t := sig.Params[len(args)]
		args = append(args, fn.New(ir.Const(t, 0)))
	}
	for i, t := range sig.Params {
		if i >= len(args) {
			break
		}
		widened, err := widenArg(fn, args[i], t)
		if err != nil {
			return err
		}
		args[i] = widened
	}

	updated := *n
	updated.Kids = args
	updated.Type = sig.Result
	fn.Set(h, updated)
	return nil
}

func widenArg(fn *ir.Function, h ir.Handle, target wasm.ValueType) (ir.Handle, error) {
	n := fn.Node(h)
	if n.Type == target || n.Type == 0 {
		return h, nil
	}
	switch {
	case n.Type == wasm.ValueTypeI32 && target == wasm.ValueTypeF64:
		return fn.New(ir.Unary(wasm.ValueTypeF64, "convert_s_i32_f64", h)), nil
	case n.Type == wasm.ValueTypeF32 && target == wasm.ValueTypeF64:
		return fn.New(ir.Unary(wasm.ValueTypeF64, "promote_f32_f64", h)), nil
	case n.Type == wasm.ValueTypeI32 && target == wasm.ValueTypeF32:
		return fn.New(ir.Unary(wasm.ValueTypeF32, "convert_s_i32_f32", h)), nil
	}
	return h, nil
}

// finalizeIndirectCall replaces the placeholder table-offset addend built
// during translation (a CallImport node named after the source table, used
// as a stand-in until every table's starting offset was known) with the
// real constant from FunctionTableStarts.
func (c *Context) finalizeIndirectCall(fn *ir.Function, h ir.Handle, n *ir.Node) error {
	start, ok := c.FunctionTableStarts[n.Name]
	if !ok {
		return Errorf(ErrShapeViolation, "indirect call through unregistered function table %q", n.Name)
	}

	target := fn.Node(n.A)
	if target.Op != ir.OpBinary || target.Name != "add" {
		return nil
	}
	placeholder := fn.Node(target.B)
	if placeholder.Op != ir.OpCallImport || placeholder.Name != n.Name {
		return nil
	}
	fn.Set(target.B, ir.Const(wasm.ValueTypeI32, int64(start)))
	return nil
}
