package compile

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wasmkit/asm2wasm/asmjs"
	"github.com/wasmkit/asm2wasm/translator"
	"github.com/wasmkit/asm2wasm/wasm"
)

// Command returns the `asm2wasm compile` subcommand: read an asm.js text
// buffer, run it through the full translation pipeline, and write the
// resulting binary WASM module, mirroring cmd/warp/compile/cli.go's flag
// wiring against this tool's own Config knobs (§6).
func Command() *cobra.Command {
	var trapMode string
	var debugInfo bool
	var wasmOnly bool
	var optimize bool
	var debug bool
	var outputPath string

	command := &cobra.Command{
		Use:   "compile",
		Short: "Translate an asm.js module to WebAssembly",
		Long:  "Translate an asm.js module (emscripten fastcomp output) to a binary WebAssembly module",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("expected exactly one argument")
			}

			mode, err := translator.ParseTrapMode(trapMode)
			if err != nil {
				return err
			}
			cfg := translator.Config{
				TrapMode:              mode,
				DebugInfo:             debugInfo,
				RunOptimizationPasses: optimize,
				WasmOnly:              wasmOnly,
				Debug:                 debug,
			}

			raw, err := ioutil.ReadFile(args[0])
			if err != nil {
				return err
			}

			pre, err := translator.Preprocess(string(raw), cfg.DebugInfo)
			if err != nil {
				return err
			}

			mod, err := asmjs.ParseSource(pre.Source)
			if err != nil {
				return err
			}

			out, err := translator.Translate(mod, cfg, pre.MemoryGrowthDetected)
			if err != nil {
				return err
			}

			path := outputPath
			if path == "" {
				baseName := filepath.Base(args[0])
				baseName = baseName[:len(baseName)-len(filepath.Ext(baseName))]
				path = baseName + ".wasm"
			}

			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()

			return wasm.EncodeModule(f, out)
		},
	}

	command.PersistentFlags().StringVar(&trapMode, "trap-mode", "allow", "integer trap handling: allow, clamp, or js")
	command.PersistentFlags().BoolVar(&debugInfo, "debug-info", false, "inject emscripten_debuginfo markers and fold them into the output")
	command.PersistentFlags().BoolVar(&wasmOnly, "wasm-only", false, "enable direct sentinel-name intrinsic lowering")
	command.PersistentFlags().BoolVar(&optimize, "optimize", true, "run the post-translation optimization passes")
	command.PersistentFlags().BoolVarP(&debug, "debug", "v", false, "disable cross-function validation and enable diagnostic logging")
	command.PersistentFlags().StringVarP(&outputPath, "out", "o", "", "the path for the output .wasm file. Defaults to the name of the input file + '.wasm'")

	return command
}
