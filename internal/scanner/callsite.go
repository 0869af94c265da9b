package scanner

import (
	"infrar/internal/diag"
	"infrar/internal/registry"
	"infrar/internal/source"
)

// Arg is one extracted argument binding. The expression text is opaque:
// the scanner never evaluates it, a computed value is as good as a literal.
type Arg struct {
	Param   string      // canonical agnostic parameter name
	Text    string      // verbatim expression text from the source
	Span    source.Span // expression span; empty for injected defaults
	Class   ExprClass   // how freely the expression may be reordered
	Index   int         // evaluation position in the original literal; -1 for defaults
	Default bool        // synthesized from the parameter default
}

// CallSite is one located agnostic invocation, owned by the per-file scan
// result and consumed once by the rewriter.
type CallSite struct {
	Op       *registry.OperationSpec
	Span     source.Span // full call expression
	StmtSpan source.Span // enclosing statement, when StmtLevel
	// StmtLevel marks calls that are the sole call of a block-level
	// statement; only those may receive materialized argument bindings.
	StmtLevel bool
	Indent    string // leading whitespace of the statement's line
	Args      []Arg  // in OperationSpec parameter order
	Keyword   bool   // request literal used keyed fields
}

// Binding records how the agnostic surface is imported into the file.
type Binding struct {
	Found bool
	Name  string // local package name; unused when Dot
	Dot   bool   // dot import: operations are called unqualified
	Span  source.Span
}

// Result owns the call sites and diagnostics of one scanned file.
type Result struct {
	Sites   []CallSite
	Bag     *diag.Bag
	Binding Binding
}
