package translator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PreprocessResult is the output of Preprocess (§4.1).
type PreprocessResult struct {
	Source               string
	MemoryGrowthDetected  bool
	Files                 []string // distinct source file names seen in //@line comments, in first-sight order
}

// Preprocess rewrites source per §4.1: it strips the `Module["asm"] = ...`
// wrapper, excises a detected memory-growth helper, and (when debugInfo is
// set) lowers `//@line N "path"` comments into `emscripten_debuginfo` calls.
//
// This operates on raw text, before any parsing, matching the original
// tool's single-pass string-buffer rewrite; the AST consumed by the rest of
// this package is produced only after this step by an external parser.
func Preprocess(source string, debugInfo bool) (*PreprocessResult, error) {
	src := stripWrapper(source)

	growthDetected, stripped := excideGrowthHelper(src)
	src = stripped

	res := &PreprocessResult{MemoryGrowthDetected: growthDetected}

	if !debugInfo {
		res.Source = src
		return res, nil
	}

	out, files, err := injectDebugIntrinsics(src)
	if err != nil {
		return nil, err
	}
	res.Source = out
	res.Files = files
	return res, nil
}

// stripWrapper removes the `Module["asm"] = (function(...){ ... });` envelope
// if present: if the buffer opens with "Module", drop everything before the
// "function" keyword and everything after the last '}' (the trailing ");").
func stripWrapper(source string) string {
	trimmed := strings.TrimLeft(source, " \t\r\n")
	if !strings.HasPrefix(trimmed, "Module") {
		return source
	}

	idx := strings.Index(trimmed, "function")
	if idx < 0 {
		return source
	}
	body := trimmed[idx+len("function"):]

	end := strings.LastIndex(body, "}")
	if end < 0 {
		return source
	}
	return "function" + body[:end+1]
}

var growthMarker = "// EMSCRIPTEN_START_FUNCS"

// excideGrowthHelper locates the growth-helper function (identified by the
// literal `return true;`, which only occurs there since asm.js has no
// boolean literal) within the module prologue (everything before
// EMSCRIPTEN_START_FUNCS) and comments it out in place, per §4.1.
func excideGrowthHelper(source string) (bool, string) {
	markerIdx := strings.Index(source, growthMarker)
	prologue := source
	if markerIdx >= 0 {
		prologue = source[:markerIdx]
	}

	retIdx := strings.Index(prologue, "return true;")
	if retIdx < 0 {
		return false, source
	}

	start := retIdx
	depth := 0
	for start > 0 {
		start--
		switch prologue[start] {
		case '}':
			depth++
		case '{':
			if depth == 0 {
				goto foundOpen
			}
			depth--
		}
	}
foundOpen:
	fnStart := start
	for fnStart > 0 && !strings.HasPrefix(prologue[fnStart:], "function") {
		fnStart--
	}

	end := retIdx
	depth = 0
	for end < len(prologue) {
		switch prologue[end] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				goto foundClose
			}
		}
		end++
	}
foundClose:
	fnEnd := end + 1

	commented := "/*" + prologue[fnStart:fnEnd] + "*/"
	rewritten := prologue[:fnStart] + commented + prologue[fnEnd:]
	if markerIdx >= 0 {
		rewritten += source[markerIdx:]
	}
	return true, rewritten
}

var lineCommentRE = regexp.MustCompile(`//@line (\d+) "([^"]*)"`)
var useAsmRE = regexp.MustCompile(`"(use asm|almost asm)"\s*;`)

// injectDebugIntrinsics lowers `//@line N "path"` comments to
// `emscripten_debuginfo(fileIndex, line);` calls, and injects the
// `emscripten_debuginfo` import declaration after the asm.js directive.
// The output buffer is allocated with the §4.1 upper bound (1.25x + 100
// bytes); SizeOverflow is fatal if that bound does not hold.
func injectDebugIntrinsics(source string) (string, []string, error) {
	bound := int(float64(len(source))*1.25) + 100

	var files []string
	seen := map[string]int{}

	var out strings.Builder
	out.Grow(bound)

	lastEnd := 0
	for _, m := range lineCommentRE.FindAllStringSubmatchIndex(source, -1) {
		out.WriteString(source[lastEnd:m[0]])

		lineStr := source[m[2]:m[3]]
		path := source[m[4]:m[5]]
		line, err := strconv.Atoi(lineStr)
		if err != nil {
			return "", nil, Errorf(ErrShapeViolation, "malformed //@line comment: %v", err)
		}

		fileIndex, ok := seen[path]
		if !ok {
			fileIndex = len(files)
			files = append(files, path)
			seen[path] = fileIndex
		}

		fmt.Fprintf(&out, "emscripten_debuginfo(%d, %d);", fileIndex, line)
		lastEnd = m[1]
	}
	out.WriteString(source[lastEnd:])

	result := out.String()

	loc := useAsmRE.FindStringIndex(result)
	if loc != nil {
		inject := `var emscripten_debuginfo = env.emscripten_debuginfo;`
		result = result[:loc[1]] + inject + result[loc[1]:]
	}

	if len(result) > bound {
		return "", nil, Errorf(ErrSizeOverflow, "debug-intrinsic injection exceeded the %d-byte bound", bound)
	}

	return result, files, nil
}
