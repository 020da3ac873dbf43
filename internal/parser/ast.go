// Package parser builds a typed AST with source spans from a QAT token
// stream (spec.md §4.D). Grounded on the teacher's recursive-descent
// parser (internal/parser/parser.go): same panic-on-error, single
// recover-at-the-top structure. The node set itself is new — QAT has no
// expression grammar, only statements — and drops the teacher's
// Accept/Visitor double dispatch in favor of plain structs and type
// switches: macro expansion (internal/macro) needs to copy and rewrite
// arbitrary subtrees while substituting placeholders, which a closed
// visitor interface does not support without a bespoke method per
// transform anyway, so a type switch in the one place that needs it is
// less code for the same generality.
package parser

import "qter/internal/errors"

// Stmt is one QAT statement (spec.md §4.D: Label | Code | Constant |
// LuaCall | Define | Registers | Macro | LuaBlock | Import).
type Stmt interface {
	Span() errors.Span
}

// Operand is one value position inside a Code/LuaCall invocation or a
// Registers declaration (spec.md §4.D "Value = number | $constant |
// identifier | block").
type Operand interface {
	operand()
}

// Number is an integer literal, kept as raw text: arbitrary-precision
// parsing (internal/bignum) happens in the consumer, not the parser.
type Number struct {
	Text string
	Sp   errors.Span
}

func (Number) operand() {}

// Ident is a bare identifier: a register name, a label name, a move
// name, or a preset/macro name, disambiguated by its consumer.
type Ident struct {
	Name string
	Sp   errors.Span
}

func (Ident) operand() {}

// Modulus is the `reg%d` operand form (spec.md §4.G `solved-goto
// reg%d`): Divisor is itself an Operand since `d` may be a literal
// Number or a $constant reference.
type Modulus struct {
	Register string
	Divisor  Operand
	Sp       errors.Span
}

func (Modulus) operand() {}

// StringLit is a quoted message/prompt operand.
type StringLit struct {
	Value string
	Sp    errors.Span
}

func (StringLit) operand() {}

// DollarRef is a `$name` operand: either a macro pattern placeholder
// (while parsing a `.macro` branch body) or a reference to a
// `.define`d constant (everywhere else). Which one it is is resolved by
// internal/macro at expansion time, not by the parser.
type DollarRef struct {
	Name string
	Sp   errors.Span
}

func (DollarRef) operand() {}

// Block is a `{ statement (newline statement)* }` operand — the
// `$x:block` placeholder type, and the literal body a macro branch or
// `.registers`/`.macro` declaration carries.
type Block struct {
	Stmts []Stmt
	Sp    errors.Span
}

func (Block) operand() {}

// LabelStmt declares a jump target (spec.md §4.F public-label scoping):
// `name:` or, if Public, `!name:`.
type LabelStmt struct {
	Name   string
	Public bool
	Sp     errors.Span
}

func (l *LabelStmt) Span() errors.Span { return l.Sp }

// CodeStmt is a bare invocation `name arg1 arg2 …`: either a built-in
// instruction (spec.md §4.G) or a user macro call, resolved downstream.
type CodeStmt struct {
	Name string
	Args []Operand
	Sp   errors.Span
}

func (c *CodeStmt) Span() errors.Span { return c.Sp }

// ConstantStmt is a `.define name value` declaration.
type ConstantStmt struct {
	Name  string
	Value Operand
	Sp    errors.Span
}

func (c *ConstantStmt) Span() errors.Span { return c.Sp }

// LuaCallStmt is a `lua funcname(arg1, arg2, …)` statement (spec.md
// §4.E): its return value is spliced as statements and reprocessed.
type LuaCallStmt struct {
	Func string
	Args []Operand
	Sp   errors.Span
}

func (l *LuaCallStmt) Span() errors.Span { return l.Sp }

// ArchKind distinguishes the three `.registers` binding forms (spec.md
// §4.C).
type ArchKind int

const (
	ArchBuiltin ArchKind = iota
	ArchCustom
	ArchTheoretical
)

// RegisterDecl is one binding inside a `.registers { … }` block.
type RegisterDecl struct {
	Name string
	Kind ArchKind

	// ArchKind == ArchBuiltin: the preset order multiset.
	PresetOrders []Operand

	// ArchKind == ArchCustom: either a bare preset-name Ident or an
	// algorithm StringLit.
	Custom Operand

	// ArchKind == ArchTheoretical: the nominal order.
	TheoreticalOrder Operand

	Sp errors.Span
}

// RegistersStmt is a `.registers { … }` declaration, optionally grouping
// its declarations as switchable (spec.md §4.C).
type RegistersStmt struct {
	Declarations []RegisterDecl
	Switchable   bool
	GroupName    string
	Sp           errors.Span
}

func (r *RegistersStmt) Span() errors.Span { return r.Sp }

// PatternKind distinguishes a macro branch pattern token: a literal
// identifier to match verbatim, or a typed placeholder (spec.md §4.D/
// §4.F).
type PatternKind int

const (
	PatternLiteral PatternKind = iota
	PatternPlaceholder
)

// PlaceholderType is the `$name:type` type annotation.
type PlaceholderType string

const (
	PlaceholderBlock PlaceholderType = "block"
	PlaceholderReg   PlaceholderType = "reg"
	PlaceholderInt   PlaceholderType = "int"
	PlaceholderIdent PlaceholderType = "ident"
)

// PatternToken is one token of a macro branch's invocation pattern.
type PatternToken struct {
	Kind PatternKind
	// Kind == PatternLiteral
	Literal string
	// Kind == PatternPlaceholder
	Name string
	Type PlaceholderType
}

// MacroBranch is one `( pattern ) => (block | instruction)` arm (spec.md
// §4.D).
type MacroBranch struct {
	Pattern []PatternToken
	Body    []Stmt
	Sp      errors.Span
}

// MacroStmt is a `.macro name { branches }` declaration. After, if
// non-empty, names another macro this one's branches are tried after
// (spec.md §4.F overload disambiguation).
type MacroStmt struct {
	Name     string
	Branches []MacroBranch
	After    string
	Sp       errors.Span
}

func (m *MacroStmt) Span() errors.Span { return m.Sp }

// LuaBlockStmt is a `.start-lua … .end-lua` block (spec.md §4.E): the
// body is opaque source text until internal/script compiles it.
type LuaBlockStmt struct {
	Source string
	Sp     errors.Span
}

func (l *LuaBlockStmt) Span() errors.Span { return l.Sp }

// SpliceStmt is a bare `$name` statement inside a macro body: it stands
// for the statement stream bound to a `$name:block` placeholder,
// inserted in place at expansion time (spec.md §4.F "a `$code:block`
// operand is substituted"). Expansion looks the name up only among the
// current invocation's captures (`.define` constants are not
// consulted), so outside a macro body a splice is rejected with
// OperandKindMismatch.
type SpliceStmt struct {
	Name string
	Sp   errors.Span
}

func (s *SpliceStmt) Span() errors.Span { return s.Sp }

// ImportStmt is a `.import "path.qat"` splice directive (spec.md §4.F).
type ImportStmt struct {
	Path string
	Sp   errors.Span
}

func (i *ImportStmt) Span() errors.Span { return i.Sp }

// File is the parsed form of one QAT source file: a flat statement
// stream in source order, ready for import splicing (spec.md §4.F).
type File struct {
	Path  string
	Stmts []Stmt
}
