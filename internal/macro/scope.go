package macro

import (
	"fmt"

	"qter/internal/parser"
)

// labelScope implements spec.md §4.F's label hygiene: declared labels
// inside one macro expansion are renamed `label#expansion_id`; goto
// targets inside that same expansion resolve through the same rename
// table. overlay carries one hop of "public to nested code blocks"
// visibility (spec.md §4.F: public labels are visible to goto targets
// inside a substituted $code:block, but not to the code surrounding the
// invocation) into whatever scope is active where that block's content
// is spliced.
type labelScope struct {
	renames map[string]string
	overlay map[string]string
	public  map[string]string
}

// resolveDecl renames a label *declaration* seen while walking the body
// this scope was built for. A nil scope (top-level code, never inside a
// macro expansion) declares labels verbatim.
func (s *labelScope) resolveDecl(name string) string {
	if s == nil {
		return name
	}
	if r, ok := s.renames[name]; ok {
		return r
	}
	return name
}

// resolveRef renames a goto/solved-goto *target*: first the current
// expansion's own labels, then one hop of public-label overlay from
// whichever invocation's $code:block this content was spliced from.
// Anything left unresolved is passed through unchanged for
// internal/finalize to either find at top level or report as
// UnresolvedLabel.
func (s *labelScope) resolveRef(name string) string {
	if s == nil {
		return name
	}
	if r, ok := s.renames[name]; ok {
		return r
	}
	if r, ok := s.overlay[name]; ok {
		return r
	}
	return name
}

// newBodyScope builds the rename table for one macro expansion instance:
// every label declared anywhere in body (spec.md §4.F "including labels
// inside nested blocks"), tagged with this invocation's unique id.
func newBodyScope(body []parser.Stmt, id int) *labelScope {
	names := map[string]bool{}
	pub := map[string]bool{}
	prescanLabels(body, names, pub)
	sc := &labelScope{renames: map[string]string{}, public: map[string]string{}}
	for n := range names {
		sc.renames[n] = fmt.Sprintf("%s#%d", n, id)
	}
	for n := range pub {
		sc.public[n] = sc.renames[n]
	}
	return sc
}

// spliceScope builds the context a $code:block operand's content is
// walked under: the call site's own scope (so labels declared at the
// call site, or visible to it via its own ancestor public-overlay,
// still resolve) plus this expansion's public labels layered on top
// (spec.md §4.F "its interior goto's resolve public labels of the
// enclosing expansion to the renamed forms").
func spliceScope(callerScope *labelScope, currentPublic map[string]string) *labelScope {
	sc := &labelScope{renames: map[string]string{}, overlay: map[string]string{}}
	if callerScope != nil {
		for k, v := range callerScope.renames {
			sc.renames[k] = v
		}
		for k, v := range callerScope.overlay {
			sc.overlay[k] = v
		}
	}
	for k, v := range currentPublic {
		sc.overlay[k] = v
	}
	return sc
}

// prescanLabels walks stmts collecting every label declared in its own
// lexical text — recursing into literal Block operands (text written
// directly in this body) but never into a SpliceStmt, since that names
// a placeholder whose content belongs to whatever scope captured it, not
// to this body.
func prescanLabels(stmts []parser.Stmt, names, public map[string]bool) {
	for _, s := range stmts {
		switch st := s.(type) {
		case *parser.LabelStmt:
			names[st.Name] = true
			if st.Public {
				public[st.Name] = true
			}
		case *parser.CodeStmt:
			prescanOperands(st.Args, names, public)
		case *parser.LuaCallStmt:
			prescanOperands(st.Args, names, public)
		}
	}
}

func prescanOperands(args []parser.Operand, names, public map[string]bool) {
	for _, a := range args {
		if blk, ok := a.(parser.Block); ok {
			prescanLabels(blk.Stmts, names, public)
		}
	}
}
