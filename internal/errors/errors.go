// Package errors defines the compiler's error taxonomy (spec.md §7).
//
// User-facing failures (bad source, bad puzzle definitions, bad macro
// invocations) are always a *CompileError carrying a Span; they are never
// an unchecked panic escaping to a caller. A production panics internally
// with a *CompileError and the entry point of its stage (parser.Parse,
// the macro expander, builtins.Lower, finalize.Finalize, and
// internal/compile's Compile as a backstop) recovers it, much as sentra's parser panics with *SentraError and
// its main.go recovers it — this keeps every recursive-descent production
// and every macro-expansion step from threading an error return by hand.
//
// Internal faults (a bug in the compiler itself, as opposed to a user
// source error) are wrapped with github.com/pkg/errors instead, so a
// --debug flag at the CLI boundary can print a stack trace for the one
// case a Span can't explain.
package errors

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Kind is one error kind from spec.md §7.
type Kind string

const (
	ParseErrorKind                Kind = "ParseError"
	UnknownRegister               Kind = "UnknownRegister"
	UnknownMove                   Kind = "UnknownMove"
	UnresolvedLabel               Kind = "UnresolvedLabel"
	DuplicateDefinition           Kind = "DuplicateDefinition"
	DuplicateMacro                Kind = "DuplicateMacro"
	NoMacroBranch                 Kind = "NoMacroBranch"
	OperandKindMismatch           Kind = "OperandKindMismatch"
	BadDivisor                    Kind = "BadDivisor"
	TheoreticalRegisterNotEmitted Kind = "TheoreticalRegisterNotEmitted"
	PuzzleMalformed               Kind = "PuzzleMalformed"
	RegistersNotIndependent       Kind = "RegistersNotIndependent"
	OrderMismatch                 Kind = "OrderMismatch"
	MacroOverflow                 Kind = "MacroOverflow"
	ScriptTimeout                 Kind = "ScriptTimeout"
	ScriptErrorKind               Kind = "ScriptError"
	ImportCycle                   Kind = "ImportCycle"
	ImportNotFound                Kind = "ImportNotFound"
	OutOfMemory                   Kind = "OutOfMemory"
)

// Span is a source range: a file, a 1-based line/column pair for the
// start of the range, and the byte offsets of the range within the
// interned source text (new in this expansion, so the macro expander can
// underline a whole invocation rather than just its first token).
type Span struct {
	File        string
	Line        int
	Column      int
	StartOffset int
	EndOffset   int
}

func (s Span) String() string {
	if s.File == "" {
		return fmt.Sprintf("%d:%d", s.Line, s.Column)
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// CompileError is the single error type surfaced to a top-level compile
// call (spec.md §7: "all errors surface to the top-level compile call;
// partial results are discarded").
type CompileError struct {
	Kind    Kind
	Message string
	Span    Span
	Source  string // the offending source line, if known

	// ScriptSpan is set only for Kind == ScriptErrorKind: the line inside
	// the embedded script where the failure occurred, distinct from Span
	// (the call site that invoked the script).
	ScriptSpan *Span
}

func (e *CompileError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Message)
	if e.Span.Line > 0 {
		fmt.Fprintf(&b, "\n  at %s", e.Span)
		if e.Source != "" {
			fmt.Fprintf(&b, "\n\n  %d | %s\n", e.Span.Line, e.Source)
			if e.Span.Column > 0 {
				b.WriteString("  " + strings.Repeat(" ", len(fmt.Sprintf("%d | ", e.Span.Line))+e.Span.Column-1) + "^\n")
			}
		}
	}
	if e.ScriptSpan != nil {
		fmt.Fprintf(&b, "\n  script line: %s", *e.ScriptSpan)
	}
	return b.String()
}

// New constructs a CompileError of the given kind at the given span.
func New(kind Kind, span Span, format string, args ...interface{}) *CompileError {
	return &CompileError{Kind: kind, Message: fmt.Sprintf(format, args...), Span: span}
}

// WithSource attaches the offending source line for display.
func (e *CompileError) WithSource(line string) *CompileError {
	e.Source = line
	return e
}

// WithScriptSpan attaches the embedded-script location for ScriptErrorKind.
func (e *CompileError) WithScriptSpan(span Span) *CompileError {
	e.ScriptSpan = &span
	return e
}

// Internal reports a non-user-facing compiler bug with a stack trace. It
// is never used for bad QAT source — only for invariants the compiler
// itself is supposed to maintain (e.g. an IR index out of range after a
// pass the compiler controls end to end).
func Internal(format string, args ...interface{}) error {
	return pkgerrors.New(fmt.Sprintf(format, args...))
}

// Wrap attaches a stack trace to an internal (non-CompileError) fault.
func Wrap(err error, message string) error {
	return pkgerrors.Wrap(err, message)
}
