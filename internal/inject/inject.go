// Package inject adds the provider preamble to a rewritten file: the
// native SDK imports, the package-level client, and the per-operation
// support functions the rewritten calls target. Injection is idempotent:
// a block already present in the file is never emitted twice.
package inject

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"infrar/internal/adapter"
	"infrar/internal/registry"
	"infrar/internal/rewriter"
	"infrar/internal/source"
)

// Inject returns content with the provider preamble for the given used
// operations spliced in. Content must be parseable Go; the rewriter
// guarantees that for its own output.
func Inject(content []byte, a *adapter.ProviderAdapter, usedOps []string) ([]byte, error) {
	if len(usedOps) == 0 {
		return content, nil
	}

	fset := token.NewFileSet()
	astFile, err := parser.ParseFile(fset, "", content, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse rewritten source: %w", err)
	}

	specs, clientNeeded, err := neededImports(a, usedOps)
	if err != nil {
		return nil, err
	}
	missing := filterPresent(specs, astFile)

	var edits []rewriter.Edit
	if len(missing) > 0 {
		off, err := importInsertOffset(fset, astFile)
		if err != nil {
			return nil, err
		}
		edits = append(edits, rewriter.Edit{
			Span: source.Span{Start: off, End: off},
			Text: renderImportBlock(missing),
		})
	}

	if tail := supportBlocks(content, a, usedOps, clientNeeded); tail != "" {
		end, err := safecast.Conv[uint32](len(content))
		if err != nil {
			return nil, err
		}
		edits = append(edits, rewriter.Edit{
			Span: source.Span{Start: end, End: end},
			Text: tail,
		})
	}

	return rewriter.Apply(content, edits)
}

// neededImports collects the import specs the preamble depends on: the
// client constructor's base imports plus the per-operation ones.
func neededImports(a *adapter.ProviderAdapter, usedOps []string) ([]string, bool, error) {
	seen := make(map[string]struct{})
	var specs []string
	add := func(lines []string) {
		for _, line := range lines {
			if _, dup := seen[line]; dup {
				continue
			}
			seen[line] = struct{}{}
			specs = append(specs, line)
		}
	}

	clientNeeded := false
	for _, op := range usedOps {
		tmpl, ok := a.Template(op)
		if !ok {
			return nil, false, fmt.Errorf("provider %q has no template for %q", a.ID, op)
		}
		if tmpl.RequiresClient {
			clientNeeded = true
		}
		add(tmpl.Imports)
	}
	if clientNeeded {
		add(a.Imports)
	}

	// Stdlib раньше SDK-импортов, внутри групп лексикографически.
	sort.SliceStable(specs, func(i, j int) bool {
		pi, pj := specPath(specs[i]), specPath(specs[j])
		si, sj := isStdlib(pi), isStdlib(pj)
		if si != sj {
			return si
		}
		return pi < pj
	})
	return specs, clientNeeded, nil
}

// specPath extracts the quoted import path from a spec line like
// `alias "path"` or `"path"`.
func specPath(spec string) string {
	q := strings.IndexByte(spec, '"')
	if q < 0 {
		return spec
	}
	path, err := strconv.Unquote(spec[q:])
	if err != nil {
		return spec
	}
	return path
}

func specAlias(spec string) string {
	q := strings.IndexByte(spec, '"')
	if q <= 0 {
		return ""
	}
	return strings.TrimSpace(spec[:q])
}

func isStdlib(path string) bool {
	root, _, _ := strings.Cut(path, "/")
	return !strings.Contains(root, ".")
}

// filterPresent drops specs whose path and alias the file already imports.
func filterPresent(specs []string, astFile *ast.File) []string {
	present := make(map[string]struct{}, len(astFile.Imports))
	for _, imp := range astFile.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		alias := ""
		if imp.Name != nil {
			alias = imp.Name.Name
		}
		present[alias+"\x00"+path] = struct{}{}
	}

	var missing []string
	for _, spec := range specs {
		key := specAlias(spec) + "\x00" + specPath(spec)
		if _, ok := present[key]; !ok {
			missing = append(missing, spec)
		}
	}
	return missing
}

// importInsertOffset returns the byte offset right after the last import
// declaration, or after the package clause when the file imports nothing.
func importInsertOffset(fset *token.FileSet, astFile *ast.File) (uint32, error) {
	pos := astFile.Name.End()
	for _, decl := range astFile.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.IMPORT {
			continue
		}
		pos = gd.End()
	}
	return safecast.Conv[uint32](fset.Position(pos).Offset)
}

func renderImportBlock(specs []string) string {
	var b strings.Builder
	b.WriteString("\n\nimport (\n")
	prevStd := true
	for i, spec := range specs {
		std := isStdlib(specPath(spec))
		if i > 0 && prevStd && !std {
			b.WriteString("\n")
		}
		prevStd = std
		b.WriteString("\t")
		b.WriteString(spec)
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}

// supportBlocks renders the client constructor and the support functions
// not yet present in content, in deterministic order.
func supportBlocks(content []byte, a *adapter.ProviderAdapter, usedOps []string, clientNeeded bool) string {
	var blocks []string
	if clientNeeded {
		blocks = append(blocks, strings.TrimSpace(a.ClientCtor))
	}
	ops := make([]string, len(usedOps))
	copy(ops, usedOps)
	sort.Strings(ops)
	for _, op := range ops {
		if tmpl, ok := a.Template(op); ok {
			blocks = append(blocks, strings.TrimSpace(tmpl.Support))
		}
	}

	text := string(content)
	var b strings.Builder
	for _, block := range blocks {
		if block == "" || strings.Contains(text, block) {
			continue
		}
		if b.Len() == 0 && !strings.HasSuffix(text, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(block)
		b.WriteString("\n")
	}
	return b.String()
}

// PruneAgnosticImport removes the infrar/storage import when the rewritten
// file no longer references it. Dot and blank imports are kept: reference
// counting cannot prove them unused.
func PruneAgnosticImport(content []byte) ([]byte, error) {
	fset := token.NewFileSet()
	astFile, err := parser.ParseFile(fset, "", content, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse rewritten source: %w", err)
	}

	var spec *ast.ImportSpec
	name := registry.SurfaceDefaultName
	for _, imp := range astFile.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil || path != registry.SurfaceImportPath {
			continue
		}
		if imp.Name != nil {
			if imp.Name.Name == "." || imp.Name.Name == "_" {
				return content, nil
			}
			name = imp.Name.Name
		}
		spec = imp
		break
	}
	if spec == nil {
		return content, nil
	}

	referenced := false
	ast.Inspect(astFile, func(n ast.Node) bool {
		if sel, ok := n.(*ast.SelectorExpr); ok {
			if x, isIdent := sel.X.(*ast.Ident); isIdent && x.Name == name && x.Obj == nil {
				referenced = true
			}
		}
		return !referenced
	})
	if referenced {
		return content, nil
	}

	start, err := safecast.Conv[uint32](fset.Position(spec.Pos()).Offset)
	if err != nil {
		return nil, err
	}
	end, err := safecast.Conv[uint32](fset.Position(spec.End()).Offset)
	if err != nil {
		return nil, err
	}
	start, end = expandToLine(content, start, end)
	if sole, declSpan := soleSpecDecl(fset, astFile, spec); sole {
		start, end = expandToLine(content, declSpan.Start, declSpan.End)
	}
	// Пустая строка-разделитель перед удалённой строкой тоже уходит.
	if start >= 2 && content[start-1] == '\n' && content[start-2] == '\n' {
		start--
	}

	return rewriter.Apply(content, []rewriter.Edit{{
		Span: source.Span{Start: start, End: end},
	}})
}

// soleSpecDecl reports whether spec is the only spec of its import decl,
// returning the decl span when it is. Removing the last spec must remove
// the whole declaration.
func soleSpecDecl(fset *token.FileSet, astFile *ast.File, spec *ast.ImportSpec) (bool, source.Span) {
	for _, decl := range astFile.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.IMPORT {
			continue
		}
		for _, s := range gd.Specs {
			if s == spec {
				if len(gd.Specs) != 1 {
					return false, source.Span{}
				}
				start, err := safecast.Conv[uint32](fset.Position(gd.Pos()).Offset)
				if err != nil {
					return false, source.Span{}
				}
				end, err := safecast.Conv[uint32](fset.Position(gd.End()).Offset)
				if err != nil {
					return false, source.Span{}
				}
				return true, source.Span{Start: start, End: end}
			}
		}
	}
	return false, source.Span{}
}

// expandToLine widens a span to cover the full lines it touches, including
// the trailing newline, so removal leaves no blank hole.
func expandToLine(content []byte, start, end uint32) (uint32, uint32) {
	for start > 0 && content[start-1] != '\n' {
		start--
	}
	for int(end) < len(content) && content[end] != '\n' {
		end++
	}
	if int(end) < len(content) {
		end++
	}
	return start, end
}
