package translator

import (
	"strings"

	"github.com/wasmkit/asm2wasm/asmjs"
	"github.com/wasmkit/asm2wasm/wasm"
)

// typedArrayViews maps a typed-array constructor name to the heap view
// descriptor it produces (§4.2's "new Ctor(buffer)" shape).
var typedArrayViews = map[string]HeapView{
	"Int8Array":    {Bytes: 1, Integer: true, Signed: true, Type: wasm.ValueTypeI32},
	"Uint8Array":   {Bytes: 1, Integer: true, Signed: false, Type: wasm.ValueTypeI32},
	"Int16Array":   {Bytes: 2, Integer: true, Signed: true, Type: wasm.ValueTypeI32},
	"Uint16Array":  {Bytes: 2, Integer: true, Signed: false, Type: wasm.ValueTypeI32},
	"Int32Array":   {Bytes: 4, Integer: true, Signed: true, Type: wasm.ValueTypeI32},
	"Uint32Array":  {Bytes: 4, Integer: true, Signed: false, Type: wasm.ValueTypeI32},
	"Float32Array": {Bytes: 4, Integer: false, Signed: false, Type: wasm.ValueTypeF32},
	"Float64Array": {Bytes: 8, Integer: false, Signed: false, Type: wasm.ValueTypeF64},
}

// RegisterGlobals runs the Name Registry (§4.2) over a module's top-level
// `var` declarations, populating the Context's heap-view, global, and
// function-table registries. It must run before any function is translated,
// since the Expression Translator consults these registries by name.
func (c *Context) RegisterGlobals(mod *asmjs.Module) error {
	for _, v := range mod.Globals {
		if err := c.registerGlobal(v); err != nil {
			return err
		}
	}
	for _, t := range mod.Tables {
		c.addTable(t.Name, append([]string(nil), t.Entries...))
	}
	c.ensureFixedGlobalImports()
	c.assignGlobalIndices()
	return nil
}

// ensureFixedGlobalImports guarantees env.tableBase and env.memoryBase each
// have a backing Mapped Global (§4.8 "Import env.memoryBase and
// env.tableBase... if not already present"): the common emscripten output
// already binds these by name (`var tableBase = env.tableBase|0;`), but a
// degenerate source that never does still needs the import to exist, since
// the element segment's offset and static-data arithmetic depend on it.
func (c *Context) ensureFixedGlobalImports() {
	c.ensureFixedGlobalImport("tableBase")
	c.ensureFixedGlobalImport("memoryBase")
}

func (c *Context) ensureFixedGlobalImport(field string) {
	if c.findFixedGlobalImport(field) != nil {
		return
	}
	c.setGlobal(field, &MappedGlobal{
		Name:     field,
		Type:     wasm.ValueTypeI32,
		Imported: true,
		Module:   "env",
		Field:    field,
		Mutable:  false,
	})
}

// findFixedGlobalImport locates an imported global by its env field name
// rather than its source binding name, since a source is free to bind
// env.tableBase/env.memoryBase to any local identifier.
func (c *Context) findFixedGlobalImport(field string) *MappedGlobal {
	for _, g := range c.Globals {
		if g.Imported && g.Field == field {
			return g
		}
	}
	return nil
}

// assignGlobalIndices numbers the global index space (§4.8): imported
// globals occupy the low indices, in registration order, one per Mapped
// Global that is Imported; every Mapped Global — imported or not — then
// gets exactly one entry in the module's own global section, immediately
// following the imports. An imported global is never read directly (the
// MVP requires imports to be immutable): its local entry is a mirror,
// initialized from a get_global of the import, and every read or write in
// translated code goes through that mirror's index instead.
func (c *Context) assignGlobalIndices() {
	importIndex := 0
	for _, name := range c.GlobalOrder {
		g := c.Globals[name]
		if !g.Imported {
			continue
		}
		g.ImportIndex = importIndex
		importIndex++
	}

	localIndex := importIndex
	for _, name := range c.GlobalOrder {
		g := c.Globals[name]
		if g.Imported {
			g.MutableGlobalIndex = localIndex
		} else {
			g.GlobalIndex = localIndex
		}
		localIndex++
	}
}

// setGlobal records a Mapped Global and its registration order together, so
// assignGlobalIndices never has to consult the source AST directly.
func (c *Context) setGlobal(name string, g *MappedGlobal) {
	if _, exists := c.Globals[name]; !exists {
		c.GlobalOrder = append(c.GlobalOrder, name)
	}
	c.Globals[name] = g
}

func (c *Context) registerGlobal(v *asmjs.VarDecl) error {
	switch init := v.Init.(type) {
	case *asmjs.NumberLiteral:
		if init.IsFloat {
			c.setGlobal(v.Name, &MappedGlobal{Name: v.Name, Type: wasm.ValueTypeF64, InitBits: toF64Bits(init.Value)})
		} else {
			c.setGlobal(v.Name, &MappedGlobal{Name: v.Name, Type: wasm.ValueTypeI32, InitBits: uint64(uint32(int32(init.Value)))})
		}
		return nil

	case *asmjs.CoerceExpr:
		switch init.Op {
		case "|0", ">>>0":
			return c.registerMaybeImport(v.Name, init.X, wasm.ValueTypeI32)
		case "+":
			return c.registerMaybeImport(v.Name, init.X, wasm.ValueTypeF64)
		case "fround":
			return c.registerMaybeImport(v.Name, init.X, wasm.ValueTypeF32)
		}

	case *asmjs.DotExpr:
		// `x = a.b`: either a typed-array constructor alias (global.Int8Array
		// etc.) or an unknown-signature function import.
		if base, ok := init.X.(*asmjs.Ident); ok {
			if base.Name == "global" {
				if _, ok := typedArrayViews[init.Name]; ok {
					// Binding the constructor itself; the heap view is
					// recorded when it's applied via `new`.
					return nil
				}
			}
			dotted := base.Name + "." + init.Name
			if slot, ok := c.Intrinsics[dotted]; ok {
				c.Intrinsics[v.Name] = slot
				return nil
			}
			if base.Name == "env" {
				if slot, ok := c.Intrinsics[init.Name]; ok {
					c.Intrinsics[v.Name] = slot
					return nil
				}
			}
		}
		// Ordinary function import (`var foo = env.foo;`, no coercion): the
		// Expression Translator resolves calls to it by name directly
		// against the Signature Inferencer, never through the global
		// registry, so there is nothing to record here.
		return nil

	case *asmjs.NewExpr:
		ctorName := ""
		if id, ok := init.Ctor.(*asmjs.Ident); ok {
			ctorName = id.Name
		} else if dot, ok := init.Ctor.(*asmjs.DotExpr); ok {
			ctorName = dot.Name
		}
		view, ok := typedArrayViews[ctorName]
		if !ok {
			return Errorf(ErrShapeViolation, "unknown typed-array constructor %q for heap view %q", ctorName, v.Name)
		}
		view.Name = v.Name
		c.HeapViews[v.Name] = &view
		return nil

	case *asmjs.ArrayLiteral:
		entries := make([]string, len(init.Elements))
		for i, e := range init.Elements {
			id, ok := e.(*asmjs.Ident)
			if !ok {
				return Errorf(ErrShapeViolation, "function table %q entry %d is not an identifier", v.Name, i)
			}
			entries[i] = id.Name
		}
		c.addTable(v.Name, entries)
		return nil

	case nil:
		return nil
	}

	return Errorf(ErrShapeViolation, "global %q does not match a recognized Name Registry shape", v.Name)
}

// registerMaybeImport handles the `x = 0|0` vs `x = imp|0` ambiguity: a bare
// zero/number literal is a local global, anything else names an import.
func (c *Context) registerMaybeImport(name string, inner asmjs.Expr, t wasm.ValueType) error {
	if lit, ok := inner.(*asmjs.NumberLiteral); ok {
		var bits uint64
		switch t {
		case wasm.ValueTypeF64:
			bits = toF64Bits(lit.Value)
		case wasm.ValueTypeF32:
			bits = uint64(toF32Bits(float32(lit.Value)))
		default:
			bits = uint64(uint32(int32(lit.Value)))
		}
		c.setGlobal(name, &MappedGlobal{Name: name, Type: t, InitBits: bits})
		return nil
	}

	ident, ok := inner.(*asmjs.Ident)
	if !ok {
		return Errorf(ErrShapeViolation, "global %q coercion does not wrap a literal or identifier", name)
	}

	mutable := ident.Name != "tableBase" && ident.Name != "memoryBase"
	c.setGlobal(name, &MappedGlobal{
		Name:     name,
		Type:     t,
		Imported: true,
		Module:   "env",
		Field:    ident.Name,
		Mutable:  mutable,
	})
	return nil
}

// isIntrinsicPrefix reports whether name identifies a function-table call
// by the §4.3 "Function-table calls by suffix" rule.
func isIntrinsicPrefix(name string) (isTableCall bool) {
	return strings.HasPrefix(name, "ftCall_") || strings.HasPrefix(name, "mftCall_")
}
