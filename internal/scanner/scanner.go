// Package scanner locates agnostic storage call sites in Go source files.
//
// The scanner parses a file with go/parser, resolves how infrar/storage is
// bound (plain, aliased or dot import), and extracts argument bindings from
// request literals. Argument expressions are preserved as opaque text;
// nothing is evaluated. Anything it cannot prove safe to rewrite becomes a
// warning and the call passes through unchanged.
package scanner

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"

	"fortio.org/safecast"

	"infrar/internal/diag"
	"infrar/internal/registry"
	"infrar/internal/source"
)

// Scan parses file content and collects agnostic call sites.
func Scan(file *source.File, maxDiagnostics int) *Result {
	res := &Result{Bag: diag.NewBag(maxDiagnostics)}

	fset := token.NewFileSet()
	astFile, err := parser.ParseFile(fset, file.Path, file.Content, parser.ParseComments)
	if err != nil {
		res.Bag.Add(diag.NewError(diag.ScanParseError, source.Span{File: file.ID},
			fmt.Sprintf("cannot parse file: %v", err)))
		return res
	}

	s := &fileScan{
		file:    file,
		fset:    fset,
		astFile: astFile,
		res:     res,
	}
	s.resolveBinding()
	if !res.Binding.Found {
		// Файл не импортирует agnostic-поверхность: нечего переписывать.
		return res
	}
	s.collectParents()
	s.walk()
	return res
}

type fileScan struct {
	file    *source.File
	fset    *token.FileSet
	astFile *ast.File
	res     *Result
	parents map[ast.Node]ast.Node
}

func (s *fileScan) offset(pos token.Pos) uint32 {
	off, err := safecast.Conv[uint32](s.fset.Position(pos).Offset)
	if err != nil {
		panic(fmt.Errorf("offset overflow: %w", err))
	}
	return off
}

func (s *fileScan) span(n ast.Node) source.Span {
	return source.Span{
		File:  s.file.ID,
		Start: s.offset(n.Pos()),
		End:   s.offset(n.End()),
	}
}

func (s *fileScan) text(n ast.Node) string {
	return string(s.file.Text(s.span(n)))
}

// resolveBinding builds the symbol binding for the agnostic surface:
// direct import, aliased import, or dot import.
func (s *fileScan) resolveBinding() {
	for _, spec := range s.astFile.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil || path != registry.SurfaceImportPath {
			continue
		}
		b := Binding{Found: true, Name: registry.SurfaceDefaultName, Span: s.span(spec)}
		if spec.Name != nil {
			switch spec.Name.Name {
			case "_":
				// Слепой импорт: вызовов быть не может.
				return
			case ".":
				b.Dot = true
				b.Name = ""
			default:
				b.Name = spec.Name.Name
			}
		}
		s.res.Binding = b
		return
	}
}

func (s *fileScan) collectParents() {
	s.parents = make(map[ast.Node]ast.Node)
	var stack []ast.Node
	ast.Inspect(s.astFile, func(n ast.Node) bool {
		if n == nil {
			stack = stack[:len(stack)-1]
			return true
		}
		if len(stack) > 0 {
			s.parents[n] = stack[len(stack)-1]
		}
		stack = append(stack, n)
		return true
	})
}

// opRef resolves a node to an operation spec if it references a surface
// operation through the current binding.
func (s *fileScan) opRef(n ast.Node) (*registry.OperationSpec, bool) {
	b := s.res.Binding
	switch e := n.(type) {
	case *ast.SelectorExpr:
		if b.Dot {
			return nil, false
		}
		x, ok := e.X.(*ast.Ident)
		if !ok || x.Name != b.Name || x.Obj != nil {
			return nil, false
		}
		return registry.GetByFunc(e.Sel.Name)
	case *ast.Ident:
		if !b.Dot || e.Obj != nil {
			return nil, false
		}
		return registry.GetByFunc(e.Name)
	}
	return nil, false
}

func (s *fileScan) walk() {
	ast.Inspect(s.astFile, func(n ast.Node) bool {
		if n == nil {
			return true
		}
		op, ok := s.opRef(n)
		if !ok {
			return true
		}

		parent := s.parents[n]
		if call, isCall := parent.(*ast.CallExpr); isCall && call.Fun == n {
			s.visitCall(call, op)
			// Аргументы внутри запроса уже извлечены; глубже не ходим.
			return false
		}

		// Операция использована как значение: переписывание не может
		// гарантировать корректность, вызов проходит без изменений.
		s.res.Bag.Add(diag.NewWarning(diag.ScanDynamicUse, s.span(n),
			fmt.Sprintf("operation %q is used as a value; indirect calls cannot be rewritten safely", op.Name)).
			WithNote(s.res.Binding.Span, "operation bound through this import"))
		return true
	})
}

func (s *fileScan) visitCall(call *ast.CallExpr, op *registry.OperationSpec) {
	callSpan := s.span(call)

	if len(call.Args) != 1 || call.Ellipsis.IsValid() {
		s.res.Bag.Add(diag.NewError(diag.ScanBadCallShape, callSpan,
			fmt.Sprintf("%s expects exactly one %s argument; the call does not match schema %s",
				op.FuncName, op.RequestType, registry.SchemaVersion)))
		return
	}

	lit, ok := call.Args[0].(*ast.CompositeLit)
	if !ok {
		s.res.Bag.Add(diag.NewWarning(diag.ScanOpaqueRequest, callSpan,
			fmt.Sprintf("request for %q is not a literal; call passed through for manual review", op.Name)))
		return
	}
	if !s.literalTypeMatches(lit, op) {
		s.res.Bag.Add(diag.NewError(diag.ScanBadCallShape, callSpan,
			fmt.Sprintf("%s must be called with a %s literal", op.FuncName, op.RequestType)))
		return
	}

	args, ok := s.extractArgs(lit, op, callSpan)
	if !ok {
		return
	}

	site := CallSite{
		Op:      op,
		Span:    callSpan,
		Args:    args,
		Keyword: len(lit.Elts) > 0 && isKeyed(lit.Elts[0]),
	}
	s.locateStatement(call, &site)
	s.res.Sites = append(s.res.Sites, site)
}

func (s *fileScan) literalTypeMatches(lit *ast.CompositeLit, op *registry.OperationSpec) bool {
	b := s.res.Binding
	switch t := lit.Type.(type) {
	case *ast.SelectorExpr:
		x, ok := t.X.(*ast.Ident)
		return !b.Dot && ok && x.Name == b.Name && t.Sel.Name == op.RequestType
	case *ast.Ident:
		return b.Dot && t.Name == op.RequestType
	}
	return false
}

func isKeyed(e ast.Expr) bool {
	_, ok := e.(*ast.KeyValueExpr)
	return ok
}

// extractArgs maps literal elements onto the operation's parameters:
// keyed fields by name, unkeyed values by positional order from the spec.
// Omitted optional parameters get the spec default. Returns false when an
// error diagnostic excludes the call from rewriting.
func (s *fileScan) extractArgs(lit *ast.CompositeLit, op *registry.OperationSpec, callSpan source.Span) ([]Arg, bool) {
	byParam := make(map[string]Arg, len(op.Params))

	keyed := 0
	for _, e := range lit.Elts {
		if isKeyed(e) {
			keyed++
		}
	}
	switch {
	case keyed != 0 && keyed != len(lit.Elts):
		// За пределами простых форм — консервативно предупреждаем,
		// подчёркивая оба конфликтующих элемента.
		sp := callSpan
		if len(lit.Elts) > 1 {
			sp = s.span(lit.Elts[0]).Cover(s.span(lit.Elts[len(lit.Elts)-1]))
		}
		s.res.Bag.Add(diag.NewWarning(diag.ScanMixedLiteral, sp,
			fmt.Sprintf("request for %q mixes keyed and positional fields; call passed through", op.Name)))
		return nil, false

	case keyed != 0:
		for i, e := range lit.Elts {
			kv := e.(*ast.KeyValueExpr)
			key, ok := kv.Key.(*ast.Ident)
			if !ok {
				s.res.Bag.Add(diag.NewError(diag.ScanBadCallShape, s.span(kv),
					fmt.Sprintf("unsupported field key in %s literal", op.RequestType)))
				return nil, false
			}
			param, known := op.ParamByField(key.Name)
			if !known {
				// Никогда не угадываем: неизвестное поле исключает вызов.
				s.res.Bag.Add(diag.NewError(diag.ScanUnknownParam, s.span(kv),
					fmt.Sprintf("%s has no field %q in schema %s", op.RequestType, key.Name, registry.SchemaVersion)))
				return nil, false
			}
			if _, dup := byParam[param.Name]; dup {
				s.res.Bag.Add(diag.NewError(diag.ScanBadCallShape, s.span(kv),
					fmt.Sprintf("duplicate field %q in %s literal", key.Name, op.RequestType)))
				return nil, false
			}
			byParam[param.Name] = Arg{
				Param: param.Name,
				Text:  s.text(kv.Value),
				Span:  s.span(kv.Value),
				Class: classifyExpr(kv.Value),
				Index: i,
			}
		}

	default:
		if len(lit.Elts) > len(op.Params) {
			s.res.Bag.Add(diag.NewError(diag.ScanTooManyArgs, callSpan,
				fmt.Sprintf("%s has %d fields in schema %s, got %d values",
					op.RequestType, len(op.Params), registry.SchemaVersion, len(lit.Elts))))
			return nil, false
		}
		for i, e := range lit.Elts {
			param := op.Params[i]
			byParam[param.Name] = Arg{
				Param: param.Name,
				Text:  s.text(e),
				Span:  s.span(e),
				Class: classifyExpr(e),
				Index: i,
			}
		}
	}

	args := make([]Arg, 0, len(op.Params))
	for _, param := range op.Params {
		arg, present := byParam[param.Name]
		if !present {
			if param.Required {
				s.res.Bag.Add(diag.NewError(diag.ScanMissingParam, callSpan,
					fmt.Sprintf("required parameter %q of %q is not set", param.Name, op.Name)))
				return nil, false
			}
			arg = Arg{
				Param:   param.Name,
				Text:    param.Default,
				Class:   ExprPure,
				Index:   -1,
				Default: true,
			}
		}
		args = append(args, arg)
	}
	return args, true
}

// locateStatement finds the enclosing block-level statement of the call,
// when the call is its sole call expression. Only such sites may receive
// materialized argument bindings ahead of the statement.
func (s *fileScan) locateStatement(call *ast.CallExpr, site *CallSite) {
	parent := s.parents[call]

	var stmt ast.Stmt
	switch p := parent.(type) {
	case *ast.ExprStmt:
		if p.X == call {
			stmt = p
		}
	case *ast.AssignStmt:
		if len(p.Rhs) == 1 && p.Rhs[0] == call {
			stmt = p
		}
	case *ast.ReturnStmt:
		if len(p.Results) == 1 && p.Results[0] == call {
			stmt = p
		}
	}
	if stmt == nil {
		return
	}

	// Statement должен лежать прямо в блоке, иначе вставка временных
	// привязок перед ним невозможна (например, init у if).
	switch s.parents[stmt].(type) {
	case *ast.BlockStmt, *ast.CaseClause, *ast.CommClause:
	default:
		return
	}

	site.StmtLevel = true
	site.StmtSpan = s.span(stmt)
	site.Indent = s.lineIndent(site.StmtSpan.Start)
}

// lineIndent returns the leading whitespace of the line containing off.
func (s *fileScan) lineIndent(off uint32) string {
	content := s.file.Content
	start := int(off)
	for start > 0 && content[start-1] != '\n' {
		start--
	}
	end := start
	for end < len(content) && (content[end] == ' ' || content[end] == '\t') {
		end++
	}
	return string(content[start:end])
}
