package parser

import (
	"strconv"
	"strings"

	"qter/internal/errors"
	"qter/internal/lexer"
)

// Parser is a recursive-descent parser over a QAT token stream.
// Productions panic with a *errors.CompileError on failure; Parse is the
// single recover point, mirroring the teacher's parser (a SentraError
// panic caught once at cmd/sentra/main.go) rather than threading an
// error return through every production.
type Parser struct {
	tokens  []lexer.Token
	current int
	file    string
	source  string
}

func New(tokens []lexer.Token, file, source string) *Parser {
	return &Parser{tokens: tokens, file: file, source: source}
}

// Parse runs the parser to completion, recovering any production panic
// into a returned error.
func (p *Parser) Parse() (file *File, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*errors.CompileError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()
	var stmts []Stmt
	p.skipNewlines()
	for !p.isAtEnd() {
		stmts = append(stmts, p.statement())
		p.endOfStatement()
	}
	return &File{Path: p.file, Stmts: stmts}, nil
}

func (p *Parser) statement() Stmt {
	tok := p.peek()
	switch {
	case tok.Type == lexer.TokenDirective:
		return p.directive()
	case tok.Type == lexer.TokenBang:
		return p.label()
	case tok.Type == lexer.TokenIdent && p.peekAt(1).Type == lexer.TokenColon:
		return p.label()
	case tok.Type == lexer.TokenIdent && tok.Lexeme == "lua":
		return p.luaCall()
	case tok.Type == lexer.TokenIdent:
		return p.code()
	case tok.Type == lexer.TokenPlaceholder:
		return p.splice()
	}
	panic(p.errorf(tok, "unexpected token %s at start of statement", tok))
}

func (p *Parser) directive() Stmt {
	tok := p.advance()
	switch tok.Lexeme {
	case ".macro":
		return p.macro(tok)
	case ".registers":
		return p.registers(tok)
	case ".define":
		return p.define(tok)
	case ".import":
		return p.importStmt(tok)
	case ".start-lua":
		return p.luaBlock(tok)
	}
	panic(p.errorf(tok, "unknown directive %q", tok.Lexeme))
}

// label parses `name:` or `!name:`.
func (p *Parser) label() Stmt {
	start := p.peek()
	public := p.match(lexer.TokenBang)
	name := p.expect(lexer.TokenIdent, "label name")
	p.expect(lexer.TokenColon, "':' after label name")
	return &LabelStmt{Name: name.Lexeme, Public: public, Sp: p.spanFrom(start)}
}

// splice parses a bare `$name` statement (spec.md §4.F block-placeholder
// splice point).
func (p *Parser) splice() Stmt {
	tok := p.advance()
	return &SpliceStmt{Name: tok.Lexeme, Sp: p.tokenSpan(tok)}
}

// code parses a bare invocation: `name arg1 arg2 …`.
func (p *Parser) code() Stmt {
	start := p.peek()
	name := p.advance()
	var args []Operand
	for !p.atLineEnd() {
		args = append(args, p.operand())
	}
	return &CodeStmt{Name: name.Lexeme, Args: args, Sp: p.spanFrom(start)}
}

// luaCall parses `lua funcname(arg1, arg2, …)`.
func (p *Parser) luaCall() Stmt {
	start := p.advance() // "lua"
	name := p.expect(lexer.TokenIdent, "function name after 'lua'")
	p.expect(lexer.TokenLParen, "'(' after lua function name")
	var args []Operand
	for !p.check(lexer.TokenRParen) {
		args = append(args, p.operand())
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	p.expect(lexer.TokenRParen, "')' to close lua call")
	return &LuaCallStmt{Func: name.Lexeme, Args: args, Sp: p.spanFrom(start)}
}

// define parses `.define name value`.
func (p *Parser) define(start lexer.Token) Stmt {
	name := p.expect(lexer.TokenIdent, "constant name after .define")
	p.match(lexer.TokenEqual)
	value := p.operand()
	return &ConstantStmt{Name: name.Lexeme, Value: value, Sp: p.spanFrom(start)}
}

// importStmt parses `.import "path.qat"`.
func (p *Parser) importStmt(start lexer.Token) Stmt {
	path := p.expect(lexer.TokenString, "quoted path after .import")
	return &ImportStmt{Path: path.Lexeme, Sp: p.spanFrom(start)}
}

// luaBlock consumes raw source text up to the matching `.end-lua`
// directive: the body is opaque until internal/script parses it
// (spec.md §4.E).
func (p *Parser) luaBlock(start lexer.Token) Stmt {
	startOffset := p.peek().Offset
	endOffset := startOffset
	for {
		if p.isAtEnd() {
			panic(p.errorf(start, "unterminated .start-lua block"))
		}
		if p.peek().Type == lexer.TokenDirective && p.peek().Lexeme == ".end-lua" {
			break
		}
		endOffset = p.peek().Offset + len(p.peek().Lexeme)
		p.advance()
	}
	p.advance() // consume .end-lua
	body := ""
	if endOffset > startOffset && endOffset <= len(p.source) {
		body = p.source[startOffset:endOffset]
	}
	return &LuaBlockStmt{Source: strings.TrimSpace(body), Sp: p.spanFrom(start)}
}

// registers parses `.registers { decl (newline decl)* }`, or the
// switchable form `.registers groupname { … }`.
func (p *Parser) registers(start lexer.Token) Stmt {
	stmt := &RegistersStmt{}
	if p.check(lexer.TokenIdent) {
		stmt.Switchable = true
		stmt.GroupName = p.advance().Lexeme
	}
	p.expect(lexer.TokenLBrace, "'{' to open .registers block")
	p.skipNewlines()
	for !p.check(lexer.TokenRBrace) {
		stmt.Declarations = append(stmt.Declarations, p.registerDecl())
		p.skipNewlines()
	}
	p.expect(lexer.TokenRBrace, "'}' to close .registers block")
	stmt.Sp = p.spanFrom(start)
	return stmt
}

// registerDecl parses one `name <- builtin(...)` / `custom(...)` /
// `theoretical(n)` binding (spec.md §4.C).
func (p *Parser) registerDecl() RegisterDecl {
	nameTok := p.expect(lexer.TokenIdent, "register name")
	p.expect(lexer.TokenBind, "'<-' (or '←') after register name")
	kindTok := p.expect(lexer.TokenIdent, "architecture kind")
	p.expect(lexer.TokenLParen, "'(' after architecture kind")
	decl := RegisterDecl{Name: nameTok.Lexeme}
	switch kindTok.Lexeme {
	case "builtin":
		decl.Kind = ArchBuiltin
		for !p.check(lexer.TokenRParen) {
			decl.PresetOrders = append(decl.PresetOrders, p.operand())
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	case "custom":
		decl.Kind = ArchCustom
		decl.Custom = p.operand()
	case "theoretical":
		decl.Kind = ArchTheoretical
		decl.TheoreticalOrder = p.operand()
	default:
		panic(p.errorf(kindTok, "unknown architecture kind %q", kindTok.Lexeme))
	}
	p.expect(lexer.TokenRParen, "')' to close architecture specification")
	decl.Sp = p.spanFrom(nameTok)
	return decl
}

// macro parses `.macro name { branches }`, with an optional `after
// other_name` modifier before the opening brace (spec.md §4.F).
func (p *Parser) macro(start lexer.Token) Stmt {
	name := p.expect(lexer.TokenIdent, "macro name")
	stmt := &MacroStmt{Name: name.Lexeme}
	if p.check(lexer.TokenIdent) && p.peek().Lexeme == "after" {
		p.advance()
		stmt.After = p.expect(lexer.TokenIdent, "macro name after 'after'").Lexeme
	}
	p.expect(lexer.TokenLBrace, "'{' to open .macro block")
	p.skipNewlines()
	for !p.check(lexer.TokenRBrace) {
		stmt.Branches = append(stmt.Branches, p.macroBranch())
		p.skipNewlines()
	}
	p.expect(lexer.TokenRBrace, "'}' to close .macro block")
	stmt.Sp = p.spanFrom(start)
	return stmt
}

// macroBranch parses `( pattern ) => (block | instruction)`.
func (p *Parser) macroBranch() MacroBranch {
	start := p.peek()
	p.expect(lexer.TokenLParen, "'(' to open macro branch pattern")
	var pattern []PatternToken
	for !p.check(lexer.TokenRParen) {
		pattern = append(pattern, p.patternToken())
	}
	p.expect(lexer.TokenRParen, "')' to close macro branch pattern")
	p.expect(lexer.TokenArrow, "'=>' after macro branch pattern")
	var body []Stmt
	if p.check(lexer.TokenLBrace) {
		body = p.block()
	} else {
		body = []Stmt{p.statement()}
	}
	return MacroBranch{Pattern: pattern, Body: body, Sp: p.spanFrom(start)}
}

func (p *Parser) patternToken() PatternToken {
	tok := p.peek()
	if tok.Type == lexer.TokenPlaceholder {
		p.advance()
		p.expect(lexer.TokenColon, "':type' after placeholder name")
		typeTok := p.expect(lexer.TokenIdent, "placeholder type")
		return PatternToken{Kind: PatternPlaceholder, Name: tok.Lexeme, Type: PlaceholderType(typeTok.Lexeme)}
	}
	if tok.Type == lexer.TokenIdent {
		p.advance()
		return PatternToken{Kind: PatternLiteral, Literal: tok.Lexeme}
	}
	panic(p.errorf(tok, "expected a literal identifier or $name:type in macro pattern, got %s", tok))
}

// block parses `{ statement (newline statement)* }`.
func (p *Parser) block() []Stmt {
	p.expect(lexer.TokenLBrace, "'{'")
	p.skipNewlines()
	var stmts []Stmt
	for !p.check(lexer.TokenRBrace) {
		stmts = append(stmts, p.statement())
		p.endOfStatement()
	}
	p.expect(lexer.TokenRBrace, "'}'")
	return stmts
}

// operand parses one Value per spec.md §4.D: number | $constant |
// identifier | block, plus the `reg%d` and quoted-string extensions
// built-in instructions use.
func (p *Parser) operand() Operand {
	tok := p.peek()
	switch tok.Type {
	case lexer.TokenNumber:
		p.advance()
		return Number{Text: tok.Lexeme, Sp: p.tokenSpan(tok)}
	case lexer.TokenString:
		p.advance()
		return StringLit{Value: tok.Lexeme, Sp: p.tokenSpan(tok)}
	case lexer.TokenPlaceholder:
		p.advance()
		return DollarRef{Name: tok.Lexeme, Sp: p.tokenSpan(tok)}
	case lexer.TokenLBrace:
		stmts := p.block()
		return Block{Stmts: stmts, Sp: p.tokenSpan(tok)}
	case lexer.TokenIdent:
		p.advance()
		if p.match(lexer.TokenPercent) {
			divisor := p.operand()
			return Modulus{Register: tok.Lexeme, Divisor: divisor, Sp: p.tokenSpan(tok)}
		}
		return Ident{Name: tok.Lexeme, Sp: p.tokenSpan(tok)}
	}
	panic(p.errorf(tok, "expected an operand, got %s", tok))
}

// --- token-stream plumbing ---

func (p *Parser) peek() lexer.Token { return p.tokens[p.current] }

func (p *Parser) peekAt(n int) lexer.Token {
	i := p.current + n
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[i]
}

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.current]
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) check(t lexer.TokenType) bool { return p.peek().Type == t }

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(t lexer.TokenType, what string) lexer.Token {
	if !p.check(t) {
		panic(p.errorf(p.peek(), "expected %s, got %s", what, p.peek()))
	}
	return p.advance()
}

func (p *Parser) isAtEnd() bool { return p.peek().Type == lexer.TokenEOF }

func (p *Parser) atLineEnd() bool {
	return p.peek().Type == lexer.TokenNewline || p.isAtEnd() || p.peek().Type == lexer.TokenRBrace
}

// endOfStatement consumes the newline that must terminate a statement,
// tolerating EOF or a following '}' (the last statement in a block).
func (p *Parser) endOfStatement() {
	if p.match(lexer.TokenNewline) {
		return
	}
	if p.isAtEnd() || p.check(lexer.TokenRBrace) {
		return
	}
	panic(p.errorf(p.peek(), "expected end of statement, got %s", p.peek()))
}

func (p *Parser) skipNewlines() {
	for p.match(lexer.TokenNewline) {
	}
}

func (p *Parser) spanFrom(start lexer.Token) errors.Span {
	prev := p.tokens[max(0, p.current-1)]
	return errors.Span{
		File: p.file, Line: start.Line, Column: start.Column,
		StartOffset: start.Offset, EndOffset: prev.Offset + len(prev.Lexeme),
	}
}

func (p *Parser) tokenSpan(tok lexer.Token) errors.Span {
	return errors.Span{
		File: p.file, Line: tok.Line, Column: tok.Column,
		StartOffset: tok.Offset, EndOffset: tok.Offset + len(tok.Lexeme),
	}
}

func (p *Parser) errorf(tok lexer.Token, format string, args ...interface{}) *errors.CompileError {
	err := errors.New(errors.ParseErrorKind, p.tokenSpan(tok), format, args...)
	if p.source != "" && tok.Line > 0 {
		lines := strings.Split(p.source, "\n")
		if tok.Line-1 < len(lines) {
			err = err.WithSource(lines[tok.Line-1])
		}
	}
	return err
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// parseInt converts operand text to a plain machine int rather than an
// arbitrary-precision value. Nothing in this package calls it.
func parseInt(text string) (int, bool) {
	n, err := strconv.Atoi(text)
	return n, err == nil
}
