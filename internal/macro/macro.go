// Package macro implements spec.md §4.F: the hygienic macro expander.
// It collects `.macro`, `.define`, `.start-lua` and `.registers`
// declarations out of a spliced statement stream, then walks the
// remaining code rewriting every user-macro invocation into its matched
// branch's body — renaming labels per expansion instance, substituting
// `$name` placeholders, and re-entering `lua funcname(...)` calls — until
// only built-in instruction invocations and plain labels remain.
//
// Grounded on the teacher's panic/single-recover error convention
// (internal/parser, internal/script) rather than threading error returns
// through every recursive production.
package macro

import (
	"qter/internal/arch"
	"qter/internal/bignum"
	"qter/internal/builtins"
	"qter/internal/errors"
	"qter/internal/parser"
	"qter/internal/script"
)

// maxDepth and maxInvocations bound macro recursion (spec.md §4.F
// "a macro system that can recurse without bound needs a depth guard");
// MacroOverflow is the only signal a caller gets when either is
// exceeded, since a real infinite expansion and a merely very deep one
// look identical from inside the expander.
const (
	maxDepth       = 512
	maxInvocations = 200000
)

// binding is the value a macro branch's placeholder name is captured to.
// Block placeholders keep the caller's raw (unrenamed, unexpanded)
// statement list plus the scope that was active where it was written,
// so it expands later, at its $name splice point, under the right
// hygiene rules rather than the defining macro's own.
type binding struct {
	isBlock    bool
	operand    parser.Operand
	block      []parser.Stmt
	callerCtx  exprCtx
}

type exprCtx struct {
	scope    *labelScope
	captures map[string]binding
}

// Declarations is everything macro.Collect extracts from a spliced
// statement stream before expansion begins.
type Declarations struct {
	Macros    map[string][]*parser.MacroStmt
	Constants map[string]parser.Operand
	LuaSource string
	Registers []*parser.RegistersStmt
	Code      []parser.Stmt
}

// Collect separates declarations (spec.md §4.F "macros and constants
// have file-local scope"; import splicing, done upstream in
// internal/compile, is what gives them cross-file reach) from the
// ordinary code statements that remain to be expanded.
func Collect(stmts []parser.Stmt) (*Declarations, error) {
	d := &Declarations{
		Macros:    map[string][]*parser.MacroStmt{},
		Constants: map[string]parser.Operand{},
	}
	for _, s := range stmts {
		switch st := s.(type) {
		case *parser.MacroStmt:
			if err := collectMacro(d, st); err != nil {
				return nil, err
			}
		case *parser.ConstantStmt:
			if _, dup := d.Constants[st.Name]; dup {
				return nil, errors.New(errors.DuplicateDefinition, st.Sp,
					"constant %q is already defined", st.Name)
			}
			d.Constants[st.Name] = st.Value
		case *parser.LuaBlockStmt:
			d.LuaSource += st.Source + "\n"
		case *parser.RegistersStmt:
			d.Registers = append(d.Registers, st)
		case *parser.ImportStmt:
			return nil, errors.Internal("unexpanded import statement reached macro.Collect: %q", st.Path)
		default:
			d.Code = append(d.Code, s)
		}
	}
	return d, nil
}

// collectMacro registers one `.macro` declaration, implementing the
// overload-disambiguation escape hatch: a second declaration under an
// already-used name is a DuplicateMacro error unless it names an `after`
// target, which orders it (and every later same-name declaration
// chained off it) to be tried only once the earlier group's branches
// have all failed to match.
func collectMacro(d *Declarations, m *parser.MacroStmt) error {
	existing := d.Macros[m.Name]
	if len(existing) > 0 && m.After == "" {
		return errors.New(errors.DuplicateMacro, m.Sp,
			"macro %q is already declared; use \"after\" to add overload branches", m.Name)
	}
	d.Macros[m.Name] = append(existing, m)
	return nil
}

// Expander walks a code stream expanding macro invocations in place.
type Expander struct {
	decls   *Declarations
	regs    map[string]*arch.Register
	engine  *script.Engine
	nextID  int
	calls   int
}

func NewExpander(decls *Declarations, regs map[string]*arch.Register, engine *script.Engine) *Expander {
	return &Expander{decls: decls, regs: regs, engine: engine}
}

// Expand is the entry point: it expands the declaration-free code
// stream down to built-in invocations and bare labels.
func (e *Expander) Expand(stmts []parser.Stmt) (out []parser.Stmt, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*errors.CompileError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()
	return e.expandStmts(stmts, exprCtx{}, 0), nil
}

func (e *Expander) expandStmts(stmts []parser.Stmt, c exprCtx, depth int) []parser.Stmt {
	if depth > maxDepth {
		panic(errors.New(errors.MacroOverflow, errors.Span{}, "macro expansion exceeded depth %d", maxDepth))
	}
	var out []parser.Stmt
	for _, s := range stmts {
		out = append(out, e.expandOne(s, c, depth)...)
	}
	return out
}

func (e *Expander) expandOne(s parser.Stmt, c exprCtx, depth int) []parser.Stmt {
	switch st := s.(type) {
	case *parser.LabelStmt:
		return []parser.Stmt{&parser.LabelStmt{Name: c.scope.resolveDecl(st.Name), Public: false, Sp: st.Sp}}

	case *parser.SpliceStmt:
		b, ok := c.captures[st.Name]
		if !ok {
			panic(errors.New(errors.OperandKindMismatch, st.Sp, "no block bound to $%s here", st.Name))
		}
		if !b.isBlock {
			panic(errors.New(errors.OperandKindMismatch, st.Sp, "$%s is not a block placeholder", st.Name))
		}
		spliceCtx := exprCtx{
			scope:    spliceScope(b.callerCtx.scope, c.scope.publicOrEmpty()),
			captures: b.callerCtx.captures,
		}
		return e.expandStmts(b.block, spliceCtx, depth+1)

	case *parser.LuaCallStmt:
		args := make([]script.Value, len(st.Args))
		for i, a := range st.Args {
			args[i] = e.operandToValue(resolveOperand(a, c, e.decls), c)
		}
		result, err := e.engine.Call(st.Func, args)
		if err != nil {
			if ce, ok := err.(*errors.CompileError); ok {
				panic(ce.WithScriptSpan(st.Sp))
			}
			panic(err)
		}
		produced := e.valueToStmts(result, st.Sp)
		return e.expandStmts(produced, c, depth+1)

	case *parser.CodeStmt:
		return e.expandCode(st, c, depth)

	default:
		panic(errors.Internal("unexpected statement type %T reached macro expansion", s))
	}
}

func (s *labelScope) publicOrEmpty() map[string]string {
	if s == nil {
		return nil
	}
	return s.public
}

// gotoLikeLabelArg reports, for a built-in that consumes a label
// operand, the index of that operand within Args.
func gotoLikeLabelArg(name string, n int) (int, bool) {
	switch name {
	case "goto":
		return 0, n == 1
	case "solved-goto":
		return n - 1, n >= 2
	}
	return 0, false
}

func (e *Expander) expandCode(st *parser.CodeStmt, c exprCtx, depth int) []parser.Stmt {
	if builtins.IsBuiltin(st.Name) {
		args := make([]parser.Operand, len(st.Args))
		labelIdx, hasLabel := gotoLikeLabelArg(st.Name, len(st.Args))
		for i, a := range st.Args {
			if hasLabel && i == labelIdx {
				id, ok := a.(parser.Ident)
				if !ok {
					panic(errors.New(errors.OperandKindMismatch, st.Sp, "%s expects a label identifier", st.Name))
				}
				args[i] = parser.Ident{Name: c.scope.resolveRef(id.Name), Sp: id.Sp}
				continue
			}
			args[i] = resolveOperand(a, c, e.decls)
		}
		return []parser.Stmt{&parser.CodeStmt{Name: st.Name, Args: args, Sp: st.Sp}}
	}

	decls, ok := e.decls.Macros[st.Name]
	if !ok {
		panic(errors.New(errors.NoMacroBranch, st.Sp, "no macro or built-in named %q", st.Name))
	}
	for _, decl := range decls {
		for _, branch := range decl.Branches {
			caps, ok := e.matchBranch(branch, st.Args, c)
			if !ok {
				continue
			}
			e.calls++
			if e.calls > maxInvocations {
				panic(errors.New(errors.MacroOverflow, st.Sp, "macro expansion exceeded %d invocations", maxInvocations))
			}
			e.nextID++
			bodyScope := newBodyScope(branch.Body, e.nextID)
			bodyCtx := exprCtx{scope: bodyScope, captures: caps}
			return e.expandStmts(branch.Body, bodyCtx, depth+1)
		}
	}
	panic(errors.New(errors.NoMacroBranch, st.Sp, "no branch of macro %q matches this invocation", st.Name))
}

// matchBranch tries one macro branch's pattern against an invocation's
// argument list, resolving each argument (dereferencing $constant and
// placeholder captures) before testing its type, per spec.md §4.F
// placeholder typing rules. Block-typed placeholders bind the raw,
// unresolved syntax tree instead, since their content is expanded later
// under different hygiene rules at its own $name splice point.
func (e *Expander) matchBranch(branch parser.MacroBranch, args []parser.Operand, c exprCtx) (map[string]binding, bool) {
	if len(branch.Pattern) != len(args) {
		return nil, false
	}
	caps := map[string]binding{}
	for i, pt := range branch.Pattern {
		switch pt.Kind {
		case parser.PatternLiteral:
			resolved := resolveOperand(args[i], c, e.decls)
			id, ok := resolved.(parser.Ident)
			if !ok || id.Name != pt.Literal {
				return nil, false
			}
		case parser.PatternPlaceholder:
			switch pt.Type {
			case parser.PlaceholderBlock:
				blk, ok := args[i].(parser.Block)
				if !ok {
					return nil, false
				}
				caps[pt.Name] = binding{isBlock: true, block: blk.Stmts, callerCtx: c}
			case parser.PlaceholderReg:
				resolved := resolveOperand(args[i], c, e.decls)
				id, ok := resolved.(parser.Ident)
				if !ok {
					return nil, false
				}
				if _, known := e.regs[id.Name]; !known {
					return nil, false
				}
				caps[pt.Name] = binding{operand: id}
			case parser.PlaceholderInt:
				resolved := resolveOperand(args[i], c, e.decls)
				if _, ok := resolved.(parser.Number); !ok {
					return nil, false
				}
				caps[pt.Name] = binding{operand: resolved}
			case parser.PlaceholderIdent:
				resolved := resolveOperand(args[i], c, e.decls)
				id, ok := resolved.(parser.Ident)
				if !ok {
					return nil, false
				}
				caps[pt.Name] = binding{operand: id}
			}
		}
	}
	return caps, true
}

// resolveOperand substitutes a `$name` operand with whatever it
// currently refers to: a macro-branch capture in scope, or (failing
// that) a `.define`d constant, recursively. Block operands are returned
// unresolved — see matchBranch's PlaceholderBlock case and SpliceStmt's
// deferred expansion.
func resolveOperand(op parser.Operand, c exprCtx, decls *Declarations) parser.Operand {
	switch v := op.(type) {
	case parser.DollarRef:
		if b, ok := c.captures[v.Name]; ok {
			if b.isBlock {
				return parser.Block{Stmts: b.block, Sp: v.Sp}
			}
			return b.operand
		}
		if cv, ok := decls.Constants[v.Name]; ok {
			return resolveOperand(cv, exprCtx{}, decls)
		}
		panic(errors.New(errors.OperandKindMismatch, v.Sp, "$%s is neither a macro placeholder nor a defined constant", v.Name))
	case parser.Modulus:
		return parser.Modulus{Register: v.Register, Divisor: resolveOperand(v.Divisor, c, decls), Sp: v.Sp}
	default:
		return op
	}
}

// operandToValue converts a resolved parser.Operand into the Value a
// script call receives (spec.md §4.E: "register handles, big integers,
// identifiers").
func (e *Expander) operandToValue(op parser.Operand, c exprCtx) script.Value {
	switch v := op.(type) {
	case parser.Number:
		n, ok := bignum.FromString(v.Text)
		if !ok {
			panic(errors.New(errors.OperandKindMismatch, v.Sp, "malformed integer literal %q", v.Text))
		}
		return script.Int{V: n}
	case parser.StringLit:
		return script.Str(v.Value)
	case parser.Ident:
		if reg, ok := e.regs[v.Name]; ok {
			r := reg
			return script.RegisterRef{Name: r.Name, OrderOf: func() (bignum.Int, error) { return bignum.FromInt64(int64(r.Order)), nil }}
		}
		return script.Ident(v.Name)
	case parser.Modulus:
		return e.operandToValue(v.Divisor, c)
	default:
		panic(errors.New(errors.OperandKindMismatch, errors.Span{}, "operand cannot be passed to a script call"))
	}
}

// valueToStmts converts a script call's return value into the
// statement stream it splices in place of the `lua funcname(...)` call
// (spec.md §4.E). A bare instruction descriptor is a List whose first
// element names the instruction; a List of such descriptors is a
// sequence of instructions; anything else is a single-return value with
// nothing to splice (used only when the call was made for its scalar
// result, e.g. inside a `.define`, never as a statement).
func (e *Expander) valueToStmts(v script.Value, sp errors.Span) []parser.Stmt {
	list, ok := v.(script.List)
	if !ok {
		return nil
	}
	if len(list) == 0 {
		return nil
	}
	if _, firstIsDescriptor := list[0].(script.List); firstIsDescriptor {
		var out []parser.Stmt
		for _, item := range list {
			out = append(out, e.descriptorToStmt(item, sp))
		}
		return out
	}
	return []parser.Stmt{e.descriptorToStmt(list, sp)}
}

func (e *Expander) descriptorToStmt(v script.Value, sp errors.Span) parser.Stmt {
	list, ok := v.(script.List)
	if !ok || len(list) == 0 {
		panic(errors.New(errors.OperandKindMismatch, sp, "script call did not return a valid instruction descriptor"))
	}
	name, ok := list[0].(script.Ident)
	if !ok {
		if s, ok := list[0].(script.Str); ok {
			name = script.Ident(s)
		} else {
			panic(errors.New(errors.OperandKindMismatch, sp, "instruction descriptor must start with a name"))
		}
	}
	args := make([]parser.Operand, 0, len(list)-1)
	for _, elem := range list[1:] {
		args = append(args, e.valueToOperand(elem, sp))
	}
	return &parser.CodeStmt{Name: string(name), Args: args, Sp: sp}
}

func (e *Expander) valueToOperand(v script.Value, sp errors.Span) parser.Operand {
	switch t := v.(type) {
	case script.Int:
		return parser.Number{Text: t.V.String(), Sp: sp}
	case script.Ident:
		return parser.Ident{Name: string(t), Sp: sp}
	case script.RegisterRef:
		return parser.Ident{Name: t.Name, Sp: sp}
	case script.Str:
		return parser.StringLit{Value: string(t), Sp: sp}
	case script.List:
		stmts := make([]parser.Stmt, 0, len(t))
		for _, item := range t {
			stmts = append(stmts, e.descriptorToStmt(item, sp))
		}
		return parser.Block{Stmts: stmts, Sp: sp}
	default:
		panic(errors.New(errors.OperandKindMismatch, sp, "script value cannot be converted to an instruction operand"))
	}
}
