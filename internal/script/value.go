// Package script is the embedded deterministic scripting bridge (spec.md
// §4.E): a small tree-walking interpreter for the `.start-lua … .end-lua`
// bodies and `lua funcname(args)` call sites. Grounded on the teacher's
// lexer/parser idiom (internal/lexer, internal/parser) rather than its
// bytecode VM (internal/vm): the bridge has no performance requirement
// the spec names, only determinism and a step budget, and a tree-walker
// over an already-small AST gets both with far less code than compiling
// to bytecode and writing a second VM.
package script

import (
	"fmt"

	"qter/internal/bignum"
)

// Value is anything the scripting bridge can hold: a number, a string, a
// boolean, a list (used for both plain lists and instruction descriptors,
// spec.md §4.E "a sequence whose first element is an instruction name …"),
// a register handle, or a callable.
type Value interface {
	valueTag() string
}

type Int struct{ V bignum.Int }

func (Int) valueTag() string { return "int" }

func FromInt64(n int64) Value { return Int{V: bignum.FromInt64(n)} }

type Str string

func (Str) valueTag() string { return "string" }

type Bool bool

func (Bool) valueTag() string { return "bool" }

type NilValue struct{}

func (NilValue) valueTag() string { return "nil" }

var Nil = NilValue{}

// List backs both a literal `[a, b, c]` and an instruction descriptor
// returned by a macro-expanding script (spec.md §4.E).
type List []Value

func (List) valueTag() string { return "list" }

// RegisterRef is the "opaque register handle" the host passes into a
// script call; OrderOf is populated by whoever constructs the handle
// (internal/macro, binding a captured $x:reg operand) so this package
// never needs to import internal/arch directly and risk a cycle.
type RegisterRef struct {
	Name    string
	OrderOf func() (bignum.Int, error)
}

func (RegisterRef) valueTag() string { return "register" }

// Ident carries a bare identifier operand (e.g. a macro-captured
// $x:ident) through to script code without forcing it to be a string.
type Ident string

func (Ident) valueTag() string { return "ident" }

// Function wraps a user-declared top-level function as a callable
// Value, in case script code ever passes a function by name to another
// (the language has no first-class function literals, only the
// top-level `function name(...) … end` form).
type Function struct {
	Decl *FunctionDecl
}

func (*Function) valueTag() string { return "function" }

// NativeFunc is a host-implemented callable (big, order_of_reg, or any
// additional host API the embedding compiler registers).
type NativeFunc func(args []Value) (Value, error)

func (NativeFunc) valueTag() string { return "native" }

func truthy(v Value) bool {
	switch t := v.(type) {
	case Bool:
		return bool(t)
	case NilValue:
		return false
	case Int:
		return t.V.Sign() != 0
	default:
		return true
	}
}

func describe(v Value) string {
	switch t := v.(type) {
	case Int:
		return t.V.String()
	case Str:
		return string(t)
	case Bool:
		return fmt.Sprintf("%t", bool(t))
	case Ident:
		return string(t)
	case NilValue:
		return "nil"
	case RegisterRef:
		return t.Name
	case List:
		return fmt.Sprintf("list(%d)", len(t))
	default:
		return v.valueTag()
	}
}
