// Package errors provides forge's structured error taxonomy:
// a BuildError carrying contextual breadcrumbs plus helpers for
// classifying and pretty-printing failures encountered during graph
// construction, caching, sandboxing, and execution.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType enumerates forge's error kinds.
type ErrorType string

const (
	ErrorTypeCycle                ErrorType = "cycle"
	ErrorTypeUnresolvedDependency ErrorType = "unresolved_dependency"
	ErrorTypeHandlerNotFound      ErrorType = "handler_not_found"
	ErrorTypeBuild                ErrorType = "build"
	ErrorTypeCache                ErrorType = "cache"
	ErrorTypeSandbox              ErrorType = "sandbox"
	ErrorTypeTimeout              ErrorType = "timeout"
	ErrorTypeIO                   ErrorType = "io"
	ErrorTypeConfig               ErrorType = "config"
	ErrorTypeInternal             ErrorType = "internal"
)

// Recoverable reports whether this error type is, by its nature,
// something the build can continue past.
func (t ErrorType) Recoverable() bool {
	switch t {
	case ErrorTypeCycle, ErrorTypeHandlerNotFound, ErrorTypeConfig:
		return false
	default:
		return true
	}
}

// BuildError is forge's structured error type with diagnostic context.
type BuildError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Context  map[string]interface{}
	Target   string
	FilePath string
	Line     int
	Column   int
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Target != "" {
		parts = append(parts, "target:"+e.Target)
	}
	if e.FilePath != "" {
		loc := e.FilePath
		if e.Line > 0 {
			loc += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				loc += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, loc)
	}

	parts = append(parts, e.Message)
	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause, if any.
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// Is supports errors.Is comparisons by (Type, Code).
func (e *BuildError) Is(target error) bool {
	var t *BuildError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// WithContext attaches a diagnostic breadcrumb.
func (e *BuildError) WithContext(key string, value interface{}) *BuildError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithLocation attaches a source location for the pretty-printer.
func (e *BuildError) WithLocation(filePath string, line, column int) *BuildError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column
	return e
}

// WithTarget attaches the offending target identifier.
func (e *BuildError) WithTarget(target string) *BuildError {
	e.Target = target
	return e
}

// Recoverable reports whether this specific error can be recovered from.
func (e *BuildError) Recoverable() bool {
	return e.Type.Recoverable()
}

func newErr(t ErrorType, code, msg string, cause error) *BuildError {
	return &BuildError{Type: t, Code: code, Message: msg, Cause: cause}
}

// NewCycleError builds a CycleError whose message lists the cycle path
// so the failing edge can be reported with its full path.
func NewCycleError(path []string) *BuildError {
	return newErr(ErrorTypeCycle, "CYCLE_DETECTED",
		fmt.Sprintf("dependency cycle detected: %s", strings.Join(path, " -> ")), nil)
}

// NewUnresolvedDependency reports an import the resolver could not map
// to a target identifier. Recoverable: the target may still build.
func NewUnresolvedDependency(target, imp string) *BuildError {
	return newErr(ErrorTypeUnresolvedDependency, "UNRESOLVED_DEPENDENCY",
		fmt.Sprintf("could not resolve import %q", imp), nil).WithTarget(target)
}

// NewHandlerNotFound reports an unknown language tag.
func NewHandlerNotFound(target, language string) *BuildError {
	return newErr(ErrorTypeHandlerNotFound, "HANDLER_NOT_FOUND",
		fmt.Sprintf("no LanguageHandler registered for language %q", language), nil).WithTarget(target)
}

// WrapBuild wraps a tool failure as a BuildError.
func WrapBuild(cause error, code, msg, target string) *BuildError {
	return newErr(ErrorTypeBuild, code, msg, cause).WithTarget(target)
}

// NewCacheCorruption reports on-disk cache corruption. Always recoverable:
// the cache is treated as empty and the build proceeds.
func NewCacheCorruption(cause error) *BuildError {
	return newErr(ErrorTypeCache, "CACHE_CORRUPT", "action cache store is corrupt, rebuilding from empty", cause)
}

// NewSandboxUnavailable reports a downgraded isolation level.
func NewSandboxUnavailable(reason string) *BuildError {
	return newErr(ErrorTypeSandbox, "SANDBOX_UNAVAILABLE", reason, nil)
}

// NewTimeoutError reports a per-node wall-time limit violation.
func NewTimeoutError(target, elapsed string) *BuildError {
	return newErr(ErrorTypeTimeout, "TIMEOUT", fmt.Sprintf("exceeded wall-time limit after %s", elapsed), nil).WithTarget(target)
}

// NewConfigError reports a fatal, pre-build configuration problem.
func NewConfigError(code, msg string) *BuildError {
	return newErr(ErrorTypeConfig, code, msg, nil)
}

// IsType reports whether err is a *BuildError of the given type.
func IsType(err error, t ErrorType) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Type == t
	}
	return false
}

func IsCycle(err error) bool   { return IsType(err, ErrorTypeCycle) }
func IsBuild(err error) bool   { return IsType(err, ErrorTypeBuild) }
func IsTimeout(err error) bool { return IsType(err, ErrorTypeTimeout) }

func IsRecoverable(err error) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Recoverable()
	}
	return false
}

// Pretty renders a multi-line, human-facing summary: the error message
// and an optional code snippet (when FilePath/Line are known and the file
// is still readable). It does not add "did you mean" suggestions; those
// come from Suggest, called separately with a candidate list.
func Pretty(err error, readFile func(path string) ([]string, error)) string {
	var be *BuildError
	if !errors.As(err, &be) {
		return err.Error()
	}

	var b strings.Builder
	fmt.Fprintln(&b, be.Error())

	if be.FilePath != "" && be.Line > 0 && readFile != nil {
		if lines, lerr := readFile(be.FilePath); lerr == nil && be.Line <= len(lines) {
			fmt.Fprintf(&b, "  %d | %s\n", be.Line, lines[be.Line-1])
			if be.Column > 0 {
				fmt.Fprintf(&b, "      %s^\n", strings.Repeat(" ", be.Column-1))
			}
		}
	}

	return b.String()
}

// Suggest returns up to max entries of candidates closest to name by
// edit distance, used for "did you mean?" hints (e.g. an unresolved
// import matched against the set of known target names).
func Suggest(name string, candidates []string, max int) []string {
	type scored struct {
		name string
		dist int
	}
	scoredCandidates := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		scoredCandidates = append(scoredCandidates, scored{c, levenshtein(name, c)})
	}
	sort.Slice(scoredCandidates, func(i, j int) bool {
		return scoredCandidates[i].dist < scoredCandidates[j].dist
	})

	out := make([]string, 0, max)
	for i, s := range scoredCandidates {
		if i >= max || s.dist > len(name)/2+1 {
			break
		}
		out = append(out, s.name)
	}
	return out
}

// levenshtein computes classic edit distance between two strings.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
