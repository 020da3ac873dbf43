// Package compile is the top-level compile pipeline (spec.md §5): lex,
// parse, splice imports, collect declarations, build the architecture,
// load embedded scripts, expand macros, lower to IR, finalize. Every
// stage panics its own *errors.CompileError on failure; Compile is the
// single recover point, exactly as the teacher's cmd/sentra/main.go
// recovers the one *SentraError its whole pipeline can raise.
package compile

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"qter/internal/arch"
	"qter/internal/builtins"
	"qter/internal/errors"
	"qter/internal/finalize"
	"qter/internal/ir"
	"qter/internal/lexer"
	"qter/internal/macro"
	"qter/internal/parser"
	"qter/internal/puzzle"
	"qter/internal/script"
)

// FileReader abstracts source loading so tests can compile from an
// in-memory fixture set without touching a filesystem (grounded on the
// teacher's internal/testutil fake-filesystem harness).
type FileReader interface {
	ReadFile(path string) (string, error)
}

// Options configures one compilation (spec.md §9's scripting step
// budget and the finalize coalescing toggle are the only user-facing
// knobs the core exposes).
type Options struct {
	ScriptStepLimit int
	Finalize        finalize.Options
}

func DefaultOptions() Options {
	return Options{ScriptStepLimit: 1_000_000, Finalize: finalize.DefaultOptions()}
}

// Result is everything one compilation produces: the finalized program
// plus a per-compilation identifier (spec.md §9's observability
// supplement — a compile-scoped id that the CLI prints in its
// disassembly header, not part of the IR itself).
type Result struct {
	ID      uuid.UUID
	Program *ir.Program
}

// Compile runs the full pipeline over the named entry file, resolving
// `.import` directives against reader, and binding declared puzzle
// slots to the ones provided in puzzles (spec.md SPEC_FULL.md's
// multi-puzzle-program supplement — slot names are supplied
// externally, by the host/CLI, since QAT's `.registers` grammar itself
// names a switch group, not a puzzle file).
func Compile(reader FileReader, entry string, puzzles []ir.PuzzleSlot, opts Options) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*errors.CompileError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()

	id := uuid.New()

	stmts, err := loadAndSplice(reader, entry, map[string]bool{})
	if err != nil {
		return nil, err
	}

	decls, err := macro.Collect(stmts)
	if err != nil {
		return nil, err
	}

	puzzleIdx := map[string]*puzzle.Puzzle{}
	for _, p := range puzzles {
		puzzleIdx[p.Name] = p.Puzzle
	}

	regs, regIdx, err := buildArchitecture(decls.Registers, puzzles, puzzleIdx)
	if err != nil {
		return nil, err
	}

	engine := script.NewEngine(opts.ScriptStepLimit)
	if decls.LuaSource != "" {
		if err := engine.Load(decls.LuaSource); err != nil {
			return nil, err
		}
	}

	expander := macro.NewExpander(decls, regIdx, engine)
	expanded, err := expander.Expand(decls.Code)
	if err != nil {
		return nil, err
	}

	env := builtins.NewEnv(regs, puzzles)
	instrs, live, err := builtins.Lower(expanded, env)
	if err != nil {
		return nil, err
	}

	prog, err := finalize.Finalize(puzzles, regs, instrs, live, opts.Finalize)
	if err != nil {
		return nil, err
	}

	return &Result{ID: id, Program: prog}, nil
}

// loadAndSplice reads path, parses it, and recursively replaces every
// `.import` with the spliced statement stream of the file it names,
// detecting cycles via the set of paths currently on the import stack
// (spec.md §4.F "import cycles are an error").
func loadAndSplice(reader FileReader, path string, stack map[string]bool) ([]parser.Stmt, error) {
	abs := filepath.Clean(path)
	if stack[abs] {
		return nil, errors.New(errors.ImportCycle, errors.Span{File: abs}, "import cycle detected at %q", abs)
	}
	source, err := reader.ReadFile(abs)
	if err != nil {
		return nil, errors.New(errors.ImportNotFound, errors.Span{File: abs}, "cannot read %q: %v", abs, err)
	}

	toks := lexer.NewScanner(source).ScanTokens()
	file, err := parser.New(toks, abs, source).Parse()
	if err != nil {
		return nil, err
	}

	stack[abs] = true
	defer delete(stack, abs)

	var out []parser.Stmt
	for _, s := range file.Stmts {
		imp, ok := s.(*parser.ImportStmt)
		if !ok {
			out = append(out, s)
			continue
		}
		importPath := filepath.Join(filepath.Dir(abs), imp.Path)
		spliced, err := loadAndSplice(reader, importPath, stack)
		if err != nil {
			return nil, err
		}
		out = append(out, spliced...)
	}
	return out, nil
}

// buildArchitecture turns every parsed `.registers` declaration into
// arch.Register instances, binding a plain block to the program's
// default (first) puzzle slot and a switchable block to the slot whose
// name matches its group name, and runs the §4.C independence check
// across the registers declared together in each block.
func buildArchitecture(stmts []*parser.RegistersStmt, puzzles []ir.PuzzleSlot, puzzleIdx map[string]*puzzle.Puzzle) ([]*arch.Register, map[string]*arch.Register, error) {
	var all []*arch.Register
	byName := map[string]*arch.Register{}

	for _, rs := range stmts {
		var pz *puzzle.Puzzle
		if rs.Switchable {
			p, ok := puzzleIdx[rs.GroupName]
			if !ok {
				return nil, nil, errors.New(errors.PuzzleMalformed, rs.Sp, "switchable register group %q names no declared puzzle slot", rs.GroupName)
			}
			pz = p
		} else if len(puzzles) > 0 {
			pz = puzzles[0].Puzzle
		}

		var group []*arch.Register
		for _, decl := range rs.Declarations {
			if _, dup := byName[decl.Name]; dup {
				return nil, nil, errors.New(errors.DuplicateDefinition, decl.Sp, "register %q is already declared", decl.Name)
			}
			reg, err := buildRegister(decl, pz)
			if err != nil {
				return nil, nil, err
			}
			group = append(group, reg)
			all = append(all, reg)
			byName[reg.Name] = reg
		}
		if err := arch.CheckIndependence(group); err != nil {
			return nil, nil, err
		}
	}

	return all, byName, nil
}

func buildRegister(decl parser.RegisterDecl, pz *puzzle.Puzzle) (*arch.Register, error) {
	switch decl.Kind {
	case parser.ArchBuiltin:
		if pz == nil {
			return nil, errors.New(errors.PuzzleMalformed, decl.Sp, "register %q needs a puzzle but none is declared", decl.Name)
		}
		orders, err := operandInts(decl.PresetOrders)
		if err != nil {
			return nil, err
		}
		return arch.NewBuiltin(decl.Name, pz, orders, 0)
	case parser.ArchCustom:
		if pz == nil {
			return nil, errors.New(errors.PuzzleMalformed, decl.Sp, "register %q needs a puzzle but none is declared", decl.Name)
		}
		text, err := operandAlgorithmText(decl.Custom, pz)
		if err != nil {
			return nil, err
		}
		return arch.NewCustom(decl.Name, pz, text)
	case parser.ArchTheoretical:
		n, err := operandInt(decl.TheoreticalOrder)
		if err != nil {
			return nil, err
		}
		return arch.NewTheoretical(decl.Name, n), nil
	default:
		return nil, errors.Internal("unknown architecture kind %d for register %q", decl.Kind, decl.Name)
	}
}

func operandInts(ops []parser.Operand) ([]int, error) {
	out := make([]int, len(ops))
	for i, op := range ops {
		v, err := operandInt(op)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func operandInt(op parser.Operand) (int, error) {
	n, ok := op.(parser.Number)
	if !ok {
		return 0, errors.New(errors.OperandKindMismatch, errors.Span{}, "expected an integer operand in architecture declaration")
	}
	var v int
	if _, err := fmt.Sscanf(n.Text, "%d", &v); err != nil {
		return 0, errors.New(errors.OperandKindMismatch, n.Sp, "malformed integer literal %q", n.Text)
	}
	return v, nil
}

// operandAlgorithmText resolves a `custom(...)` argument: either a
// quoted algorithm string, used verbatim, or a bare move/derived-move
// name, which is itself valid single-move algorithm text for
// puzzle.ParseAlgorithm.
func operandAlgorithmText(op parser.Operand, pz *puzzle.Puzzle) (string, error) {
	switch v := op.(type) {
	case parser.StringLit:
		return v.Value, nil
	case parser.Ident:
		if _, ok := pz.Generator(v.Name); !ok {
			return "", errors.New(errors.PuzzleMalformed, v.Sp, "puzzle %q has no move named %q", pz.ID, v.Name)
		}
		return v.Name, nil
	default:
		return "", errors.New(errors.OperandKindMismatch, errors.Span{}, "custom(...) expects a string or a move name")
	}
}
