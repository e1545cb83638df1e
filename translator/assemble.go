package translator

import (
	"bytes"
	"sort"

	"github.com/wasmkit/asm2wasm/asmjs"
	"github.com/wasmkit/asm2wasm/ir"
	"github.com/wasmkit/asm2wasm/wasm"
	"github.com/wasmkit/asm2wasm/wasm/code"
)

// initialMemoryPages is the MVP's fixed starting heap size (16 MiB); a real
// build would size this from the source's reserved heap, but the asm.js
// AST this translator consumes carries no such hint (§9 Open Question).
const initialMemoryPages = 256

// platformMaxPages is the WASM32 hard ceiling: 4 GiB of address space in
// 64 KiB pages (§4.8 "grow-memory helper... to the platform maximum").
const platformMaxPages = 65536

// moduleIndex is the read-only view of the module's numbering that emit.go
// consults while lowering a single function body: the function index space
// (imports then locals, by name) and a type-section deduplicator.
type moduleIndex struct {
	funcIndex map[string]uint32
	typeIndex func(params []wasm.ValueType, result wasm.ValueType) uint32
}

// Assemble runs Module Assembly (§4.8): wires the fixed env.memory/env.table
// imports and the env.tableBase/env.memoryBase globals, numbers every WASM
// index space, lowers each translated function body to flat bytecode via
// emit.go, and produces the element segment and export table.
func (c *Context) Assemble(mod *asmjs.Module) (*wasm.Module, error) {
	m := wasm.NewModule()
	m.Function = &wasm.SectionFunctions{}
	m.Code = &wasm.SectionCode{}

	sigCache := map[string]uint32{}
	typeIndex := func(params []wasm.ValueType, result wasm.ValueType) uint32 {
		return internType(m, sigCache, params, result)
	}

	memLimits := wasm.ResizableLimits{Minimum: initialMemoryPages}
	if c.MemoryGrowthDetected {
		memLimits.Flags = 1
		memLimits.Maximum = platformMaxPages
	}
	m.Import.Entries = append(m.Import.Entries, wasm.ImportEntry{
		ModuleName: "env", FieldName: "memory",
		Type: wasm.MemoryImport{Type: wasm.Memory{Limits: memLimits}},
	})

	tableLen := uint32(len(c.TableEntries))
	m.Import.Entries = append(m.Import.Entries, wasm.ImportEntry{
		ModuleName: "env", FieldName: "table",
		Type: wasm.TableImport{Type: wasm.Table{
			ElementType: wasm.ElemTypeAnyFunc,
			Limits:      wasm.ResizableLimits{Flags: 1, Minimum: tableLen, Maximum: tableLen},
		}},
	})

	for _, name := range c.GlobalOrder {
		g := c.Globals[name]
		if !g.Imported {
			continue
		}
		m.Import.Entries = append(m.Import.Entries, wasm.ImportEntry{
			ModuleName: g.Module, FieldName: g.Field,
			Type: wasm.GlobalVarImport{Type: wasm.GlobalVar{Type: g.Type, Mutable: false}},
		})
	}

	// ffi function imports: the Signature Inferencer's map has no source
	// order of its own, so imports are sorted by name for a deterministic
	// function index space (§9 Open Question).
	importNames := make([]string, 0, len(c.ImportSignatures))
	for name := range c.ImportSignatures {
		importNames = append(importNames, name)
	}
	sort.Strings(importNames)

	funcIndex := map[string]uint32{}
	var nextFunc uint32
	for _, name := range importNames {
		sig := c.ImportSignatures[name]
		m.Import.Entries = append(m.Import.Entries, wasm.ImportEntry{
			ModuleName: "env", FieldName: name,
			Type: wasm.FuncImport{Type: typeIndex(sig.Params, sig.Result)},
		})
		funcIndex[name] = nextFunc
		nextFunc++
	}

	// Local function index space: source functions in declaration order,
	// then synthesized trap-shim helpers sorted by fingerprint, so two runs
	// over the same source produce byte-identical output.
	locals := make([]*ir.Function, 0, len(c.FunctionOrder)+len(c.AddedHelpers))
	for _, name := range c.FunctionOrder {
		locals = append(locals, c.Functions[name])
	}
	helperKeys := make([]string, 0, len(c.AddedHelpers))
	for k := range c.AddedHelpers {
		helperKeys = append(helperKeys, k)
	}
	sort.Strings(helperKeys)
	for _, k := range helperKeys {
		locals = append(locals, c.AddedHelpers[k])
	}

	for _, fn := range locals {
		funcIndex[fn.Name] = nextFunc
		nextFunc++
	}

	idx := &moduleIndex{funcIndex: funcIndex, typeIndex: typeIndex}

	for _, fn := range locals {
		m.Function.Types = append(m.Function.Types, typeIndex(fn.Params, functionResult(fn)))

		instrs, err := emitFunction(c, fn, idx)
		if err != nil {
			return nil, err
		}
		var body bytes.Buffer
		if err := code.Encode(&body, instrs); err != nil {
			return nil, err
		}
		m.Code.Bodies = append(m.Code.Bodies, wasm.FunctionBody{
			Locals: runLengthLocals(fn.Locals),
			Code:   body.Bytes(),
		})
	}

	// Global section: walked in the exact same GlobalOrder assignGlobalIndices
	// used to number it, so each entry lands at its already-assigned index.
	for _, name := range c.GlobalOrder {
		g := c.Globals[name]
		if g.Imported {
			init, err := constExpr(code.Instruction{Opcode: code.OpGlobalGet, Immediate: uint64(g.ImportIndex)})
			if err != nil {
				return nil, err
			}
			m.Global.Globals = append(m.Global.Globals, wasm.GlobalEntry{
				Type: wasm.GlobalVar{Type: g.Type, Mutable: g.Mutable},
				Init: init,
			})
			continue
		}
		init, err := constExpr(constInstruction(g.Type, g.InitBits))
		if err != nil {
			return nil, err
		}
		m.Global.Globals = append(m.Global.Globals, wasm.GlobalEntry{
			Type: wasm.GlobalVar{Type: g.Type, Mutable: true},
			Init: init,
		})
	}

	tableBase := c.findFixedGlobalImport("tableBase")
	if tableBase == nil {
		return nil, Errorf(ErrShapeViolation, "assemble: env.tableBase was not registered")
	}
	if len(c.TableEntries) > 0 {
		offset, err := constExpr(code.Instruction{Opcode: code.OpGlobalGet, Immediate: uint64(tableBase.ImportIndex)})
		if err != nil {
			return nil, err
		}
		elems := make([]uint32, len(c.TableEntries))
		for i, name := range c.TableEntries {
			fi, ok := funcIndex[name]
			if !ok {
				return nil, Errorf(ErrShapeViolation, "assemble: function table entry %q does not name a known function", name)
			}
			elems[i] = fi
		}
		m.Elements.Entries = append(m.Elements.Entries, wasm.ElementSegment{Offset: offset, Elems: elems})
	}

	if mod.Exports != nil {
		byName := map[string]wasm.ExportEntry{}
		order := make([]string, 0, len(mod.Exports.Entries))
		for _, e := range mod.Exports.Entries {
			if _, seen := byName[e.Name]; !seen {
				order = append(order, e.Name)
			}
			if e.Ident != "" {
				fi, ok := funcIndex[e.Ident]
				if !ok {
					return nil, Errorf(ErrShapeViolation, "assemble: export %q names unknown function %q", e.Name, e.Ident)
				}
				byName[e.Name] = wasm.ExportEntry{FieldStr: e.Name, Kind: wasm.ExternalFunction, Index: fi}
				continue
			}
			gi, err := addNumericExportGlobal(m, e.Value)
			if err != nil {
				return nil, err
			}
			byName[e.Name] = wasm.ExportEntry{FieldStr: e.Name, Kind: wasm.ExternalGlobal, Index: gi}
		}
		for _, name := range order {
			m.Export.Entries = append(m.Export.Entries, byName[name])
		}
	}

	return m, nil
}

// functionResult extracts the zero-or-one result type the WASM MVP allows.
func functionResult(fn *ir.Function) wasm.ValueType {
	if len(fn.Results) == 0 {
		return noneType
	}
	return fn.Results[0]
}

// internType returns the type-section index for (params, result), appending
// a new entry only the first time a given shape is seen.
func internType(m *wasm.Module, cache map[string]uint32, params []wasm.ValueType, result wasm.ValueType) uint32 {
	key := signatureKey(params, result)
	if idx, ok := cache[key]; ok {
		return idx
	}
	sig := wasm.FunctionSig{Form: 0x60, ParamTypes: append([]wasm.ValueType(nil), params...)}
	if result != noneType {
		sig.ReturnTypes = []wasm.ValueType{result}
	}
	idx := uint32(len(m.Types.Entries))
	m.Types.Entries = append(m.Types.Entries, sig)
	cache[key] = idx
	return idx
}

func signatureKey(params []wasm.ValueType, result wasm.ValueType) string {
	b := make([]byte, 0, len(params)+1)
	for _, p := range params {
		b = append(b, byte(p))
	}
	b = append(b, byte(result))
	return string(b)
}

// runLengthLocals groups a function's declared local types into the
// count-then-type runs the code section's local declarations use, matching
// the encoding wast/module_decode.go already performs when reading a body
// back (declare same-typed locals together rather than one entry each).
func runLengthLocals(locals []wasm.ValueType) []wasm.LocalEntry {
	var out []wasm.LocalEntry
	for i, t := range locals {
		if i > 0 && locals[i-1] == t {
			out[len(out)-1].Count++
			continue
		}
		out = append(out, wasm.LocalEntry{Count: 1, Type: t})
	}
	return out
}

// constInstruction builds the single instruction that produces a Mapped
// Global's declared initial value, per its value type.
func constInstruction(t wasm.ValueType, bits uint64) code.Instruction {
	switch t {
	case wasm.ValueTypeI32:
		return code.Instruction{Opcode: code.OpI32Const, Immediate: bits}
	case wasm.ValueTypeF32:
		return code.Instruction{Opcode: code.OpF32Const, Immediate: bits}
	default:
		return code.Instruction{Opcode: code.OpF64Const, Immediate: bits}
	}
}

// constExpr encodes a single-instruction constant initializer expression,
// terminated by the "end" opcode every init_expr requires.
func constExpr(instr code.Instruction) ([]byte, error) {
	var buf bytes.Buffer
	if err := code.Encode(&buf, []code.Instruction{instr, {Opcode: code.OpEnd}}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// addNumericExportGlobal materializes a fresh immutable i32 global backing
// a numeric export entry (§4.8's "numeric exports become immutable i32
// global exports"), returning its index in the module's global index space.
func addNumericExportGlobal(m *wasm.Module, value float64) (uint32, error) {
	init, err := constExpr(code.Instruction{Opcode: code.OpI32Const, Immediate: uint64(uint32(int32(value)))})
	if err != nil {
		return 0, err
	}
	idx := uint32(len(m.Global.Globals))
	m.Global.Globals = append(m.Global.Globals, wasm.GlobalEntry{
		Type: wasm.GlobalVar{Type: wasm.ValueTypeI32, Mutable: false},
		Init: init,
	})
	return idx, nil
}
