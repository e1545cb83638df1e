package translator

// TrapMode selects how integer division/remainder-by-zero and out-of-range
// float-to-int conversions are handled, per §4.6.
type TrapMode int

const (
	// TrapAllow emits the raw WASM op; the runtime may trap.
	TrapAllow TrapMode = iota
	// TrapClamp saturates to a fixed value instead of trapping.
	TrapClamp
	// TrapJS emulates JavaScript semantics exactly via an ffi import.
	TrapJS
)

func (m TrapMode) String() string {
	switch m {
	case TrapAllow:
		return "allow"
	case TrapClamp:
		return "clamp"
	case TrapJS:
		return "js"
	default:
		return "unknown"
	}
}

// ParseTrapMode accepts the three spellings used by the CLI's --trap-mode flag.
func ParseTrapMode(s string) (TrapMode, error) {
	switch s {
	case "allow":
		return TrapAllow, nil
	case "clamp":
		return TrapClamp, nil
	case "js":
		return TrapJS, nil
	default:
		return TrapAllow, Errorf(ErrShapeViolation, "unknown trap mode %q", s)
	}
}

// Config bundles the five run-level knobs from §6.
type Config struct {
	// TrapMode selects the integer/float trap-shim strategy (§4.6).
	TrapMode TrapMode
	// DebugInfo enables the preprocessor's debug-intrinsic injection and the
	// finalizer's annotation folding (§4.1, §4.7).
	DebugInfo bool
	// RunOptimizationPasses toggles dispatch of the post-translation
	// optimizer pipeline named at the end of §4.7 (an external collaborator;
	// this module only records whether it would run).
	RunOptimizationPasses bool
	// WasmOnly enables direct sentinel-name intrinsic lowering (§4.3
	// "Wasm-only intrinsics").
	WasmOnly bool
	// Debug disables cross-function validation during passes and enables
	// diagnostic logging.
	Debug bool
}

// DefaultConfig matches emscripten's default asm2wasm invocation.
func DefaultConfig() Config {
	return Config{
		TrapMode:              TrapAllow,
		DebugInfo:              false,
		RunOptimizationPasses: true,
	}
}
