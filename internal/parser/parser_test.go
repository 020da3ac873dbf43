package parser

import (
	"testing"

	"qter/internal/lexer"
)

func parse(t *testing.T, src string) *File {
	t.Helper()
	toks := lexer.NewScanner(src).ScanTokens()
	f, err := New(toks, "test.qat", src).Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return f
}

func TestParsesLabelsAndPublicLabels(t *testing.T) {
	f := parse(t, "start:\n!done:\n")
	if len(f.Stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(f.Stmts))
	}
	l1, ok := f.Stmts[0].(*LabelStmt)
	if !ok || l1.Name != "start" || l1.Public {
		t.Fatalf("stmt0 = %#v", f.Stmts[0])
	}
	l2, ok := f.Stmts[1].(*LabelStmt)
	if !ok || l2.Name != "done" || !l2.Public {
		t.Fatalf("stmt1 = %#v", f.Stmts[1])
	}
}

func TestParsesCodeStmtWithOperandKinds(t *testing.T) {
	f := parse(t, "solved-goto A%3 done\n")
	code, ok := f.Stmts[0].(*CodeStmt)
	if !ok {
		t.Fatalf("expected *CodeStmt, got %#v", f.Stmts[0])
	}
	if code.Name != "solved-goto" {
		t.Fatalf("code.Name = %q", code.Name)
	}
	if len(code.Args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(code.Args))
	}
	mod, ok := code.Args[0].(Modulus)
	if !ok || mod.Register != "A" {
		t.Fatalf("arg0 = %#v", code.Args[0])
	}
	num, ok := mod.Divisor.(Number)
	if !ok || num.Text != "3" {
		t.Fatalf("divisor = %#v", mod.Divisor)
	}
	if ident, ok := code.Args[1].(Ident); !ok || ident.Name != "done" {
		t.Fatalf("arg1 = %#v", code.Args[1])
	}
}

func TestParsesDefine(t *testing.T) {
	f := parse(t, ".define step 7\n")
	c, ok := f.Stmts[0].(*ConstantStmt)
	if !ok || c.Name != "step" {
		t.Fatalf("stmt = %#v", f.Stmts[0])
	}
	if n, ok := c.Value.(Number); !ok || n.Text != "7" {
		t.Fatalf("value = %#v", c.Value)
	}
}

func TestParsesImport(t *testing.T) {
	f := parse(t, `.import "lib/common.qat"`+"\n")
	imp, ok := f.Stmts[0].(*ImportStmt)
	if !ok || imp.Path != "lib/common.qat" {
		t.Fatalf("stmt = %#v", f.Stmts[0])
	}
}

func TestParsesBuiltinRegisters(t *testing.T) {
	f := parse(t, ".registers {\nA <- builtin(90, 90)\n}\n")
	regs, ok := f.Stmts[0].(*RegistersStmt)
	if !ok {
		t.Fatalf("expected *RegistersStmt, got %#v", f.Stmts[0])
	}
	if len(regs.Declarations) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(regs.Declarations))
	}
	d := regs.Declarations[0]
	if d.Name != "A" || d.Kind != ArchBuiltin || len(d.PresetOrders) != 2 {
		t.Fatalf("decl = %#v", d)
	}
}

func TestParsesCustomAndTheoreticalRegisters(t *testing.T) {
	f := parse(t, ".registers {\nB <- custom(\"R U R' U'\")\nC <- theoretical(105)\n}\n")
	regs := f.Stmts[0].(*RegistersStmt)
	if regs.Declarations[0].Kind != ArchCustom {
		t.Fatalf("decl0 kind = %v", regs.Declarations[0].Kind)
	}
	if sl, ok := regs.Declarations[0].Custom.(StringLit); !ok || sl.Value != "R U R' U'" {
		t.Fatalf("custom value = %#v", regs.Declarations[0].Custom)
	}
	if regs.Declarations[1].Kind != ArchTheoretical {
		t.Fatalf("decl1 kind = %v", regs.Declarations[1].Kind)
	}
}

func TestParsesSwitchableRegisterGroup(t *testing.T) {
	f := parse(t, ".registers variants {\nA <- builtin(90)\n}\n")
	regs := f.Stmts[0].(*RegistersStmt)
	if !regs.Switchable || regs.GroupName != "variants" {
		t.Fatalf("regs = %#v", regs)
	}
}

func TestParsesMacroWithBlockBranch(t *testing.T) {
	f := parse(t, ".macro double {\n($x:reg) => {\nadd $x 1\nadd $x 1\n}\n} \n")
	m, ok := f.Stmts[0].(*MacroStmt)
	if !ok {
		t.Fatalf("expected *MacroStmt, got %#v", f.Stmts[0])
	}
	if m.Name != "double" || len(m.Branches) != 1 {
		t.Fatalf("macro = %#v", m)
	}
	branch := m.Branches[0]
	if len(branch.Pattern) != 1 || branch.Pattern[0].Kind != PatternPlaceholder || branch.Pattern[0].Type != PlaceholderReg {
		t.Fatalf("pattern = %#v", branch.Pattern)
	}
	if len(branch.Body) != 2 {
		t.Fatalf("expected 2 body statements, got %d", len(branch.Body))
	}
}

func TestParsesMacroAfterModifier(t *testing.T) {
	f := parse(t, ".macro special after base {\n(foo) => halt\n}\n")
	m := f.Stmts[0].(*MacroStmt)
	if m.After != "base" {
		t.Fatalf("after = %q", m.After)
	}
}

func TestParsesLuaCallAndBlock(t *testing.T) {
	f := parse(t, "lua order_of_reg(A)\n.start-lua\nfunction f() end\n.end-lua\n")
	call, ok := f.Stmts[0].(*LuaCallStmt)
	if !ok || call.Func != "order_of_reg" || len(call.Args) != 1 {
		t.Fatalf("stmt0 = %#v", f.Stmts[0])
	}
	block, ok := f.Stmts[1].(*LuaBlockStmt)
	if !ok {
		t.Fatalf("stmt1 = %#v", f.Stmts[1])
	}
	if block.Source == "" {
		t.Fatalf("expected non-empty lua block source")
	}
}

func TestUnexpectedTokenProducesCompileError(t *testing.T) {
	toks := lexer.NewScanner(") broken\n").ScanTokens()
	_, err := New(toks, "test.qat", ") broken\n").Parse()
	if err == nil {
		t.Fatal("expected a parse error for a stray ')'")
	}
}
