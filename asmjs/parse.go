package asmjs

import "errors"

// Parse turns preprocessed asm.js source text into a Module. Lexing and
// parsing asm.js is explicitly out of scope for this repository (§1 "Out of
// scope"); a real build registers an external parser here before any CLI
// command that needs one runs. While Parse is unset, ParseSource reports
// ErrNoParser rather than leaving callers to dereference a nil function value.
var Parse func(source string) (*Module, error)

// ErrNoParser is returned by ParseSource when no external parser has been
// registered via Parse.
var ErrNoParser = errors.New("asmjs: no parser registered; build with an asm.js lexer/parser wired to asmjs.Parse")

// ParseSource is the safe entry point CLI commands call instead of invoking
// Parse directly.
func ParseSource(source string) (*Module, error) {
	if Parse == nil {
		return nil, ErrNoParser
	}
	return Parse(source)
}
