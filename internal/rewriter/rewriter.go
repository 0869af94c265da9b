// Package rewriter turns scanned call sites into byte-level edits against
// the original source. Output is produced by splicing, never by printing
// the AST back, so untouched bytes survive byte-for-byte.
package rewriter

import (
	"fmt"
	"sort"
	"strings"

	"infrar/internal/adapter"
	"infrar/internal/diag"
	"infrar/internal/scanner"
	"infrar/internal/source"
)

// Edit is one splice: Span is replaced with Text. An empty span is a pure
// insertion at Span.Start.
type Edit struct {
	Span source.Span
	Text string
}

// Planner builds edits for one file. Not safe for concurrent use; the
// driver allocates one per file.
type Planner struct {
	adapter *adapter.ProviderAdapter
	nextTmp int
}

func NewPlanner(a *adapter.ProviderAdapter) *Planner {
	return &Planner{adapter: a}
}

// Plan maps one call site onto its native rendering. The call expression is
// replaced by a single native call of the same type shape; when the native
// argument order would change the evaluation order of non-trivial
// expressions, argument bindings are materialized ahead of the statement.
// Returns a diagnostic when the site cannot be rewritten safely.
func (p *Planner) Plan(site *scanner.CallSite) ([]Edit, *diag.Diagnostic) {
	tmpl, ok := p.adapter.Template(site.Op.Name)
	if !ok {
		// Покрытие проверяется до обработки файлов.
		panic(fmt.Sprintf("rewriter: adapter %q has no template for %q", p.adapter.ID, site.Op.Name))
	}

	byParam := make(map[string]scanner.Arg, len(site.Args))
	for _, a := range site.Args {
		byParam[a.Param] = a
	}

	native := make([]scanner.Arg, 0, len(tmpl.Args()))
	texts := make([]string, 0, len(tmpl.Args())+1)
	if tmpl.RequiresClient {
		texts = append(texts, p.adapter.ClientVar)
	}
	for _, ref := range tmpl.Args() {
		if ref.IsFixed() {
			texts = append(texts, ref.Fixed)
			continue
		}
		arg, ok := byParam[ref.Param]
		if !ok {
			panic(fmt.Sprintf("rewriter: site for %q lacks parameter %q", site.Op.Name, ref.Param))
		}
		native = append(native, arg)
		texts = append(texts, arg.Text)
	}

	var edits []Edit
	if reorders(native) {
		if !site.StmtLevel {
			d := diag.NewError(diag.RewriteEvalOrder, site.Span,
				fmt.Sprintf("rewriting %q would reorder side-effecting arguments inside an expression; hoist the call into its own statement", site.Op.Name))
			return nil, &d
		}
		prelude, names := p.materialize(site)
		edits = append(edits, Edit{
			Span: source.Span{File: site.StmtSpan.File, Start: site.StmtSpan.Start, End: site.StmtSpan.Start},
			Text: prelude,
		})
		// Подставляем имена временных привязок вместо исходного текста.
		for i, ref := range tmpl.Args() {
			idx := i
			if tmpl.RequiresClient {
				idx = i + 1
			}
			if ref.IsFixed() {
				continue
			}
			if name, hoisted := names[ref.Param]; hoisted {
				texts[idx] = name
			}
		}
	}

	edits = append(edits, Edit{
		Span: site.Span,
		Text: fmt.Sprintf("%s(%s)", tmpl.Target, strings.Join(texts, ", ")),
	})
	return edits, nil
}

// reorders reports whether emitting the arguments in native order would
// change observable evaluation order: a swapped pair is harmless only when
// one side is a constant, or when neither side can have effects. A plain
// identifier moved across a call is a violation too — the call may mutate
// what the identifier reads.
func reorders(native []scanner.Arg) bool {
	for i, a := range native {
		for _, b := range native[i+1:] {
			if a.Index < 0 || b.Index < 0 || a.Index <= b.Index {
				continue
			}
			// a вычисляется раньше b, хотя в источнике было наоборот.
			if a.Class == scanner.ExprPure || b.Class == scanner.ExprPure {
				continue
			}
			if a.Class == scanner.ExprEffect || b.Class == scanner.ExprEffect {
				return true
			}
		}
	}
	return false
}

// materialize emits one binding per non-constant argument, in the original
// left-to-right evaluation order, and returns the prelude text plus the
// param -> temp name mapping. Reads are bound too: once any argument is
// hoisted, only snapshots keep the original order observable.
func (p *Planner) materialize(site *scanner.CallSite) (string, map[string]string) {
	hoist := make([]scanner.Arg, 0, len(site.Args))
	for _, a := range site.Args {
		if a.Class != scanner.ExprPure && a.Index >= 0 {
			hoist = append(hoist, a)
		}
	}
	sort.Slice(hoist, func(i, j int) bool { return hoist[i].Index < hoist[j].Index })

	var b strings.Builder
	names := make(map[string]string, len(hoist))
	for _, a := range hoist {
		name := fmt.Sprintf("infrarTmp%d", p.nextTmp)
		p.nextTmp++
		names[a.Param] = name
		b.WriteString(name)
		b.WriteString(" := ")
		b.WriteString(a.Text)
		b.WriteString("\n")
		b.WriteString(site.Indent)
	}
	return b.String(), names
}
