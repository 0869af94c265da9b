package adapter

import (
	"fmt"

	"infrar/internal/diag"
	"infrar/internal/registry"
	"infrar/internal/source"
)

// Validate checks that the adapter fully covers the registry: every
// operation has a template and every template maps every parameter exactly
// once. It runs once at orchestrator startup; any gap is a fatal
// configuration error: the orchestrator must refuse to process any file.
func Validate(a *ProviderAdapter, ops []registry.OperationSpec) []diag.Diagnostic {
	var out []diag.Diagnostic

	report := func(msg string) {
		out = append(out, diag.NewError(diag.ConfigCoverageGap, source.Span{}, msg))
	}

	if a.ClientCtor == "" || a.ClientVar == "" {
		for _, op := range ops {
			if tmpl, ok := a.Template(op.Name); ok && tmpl.RequiresClient {
				report(fmt.Sprintf("provider %q: operation %q requires a client handle but the adapter defines no client constructor", a.ID, op.Name))
			}
		}
	}

	for _, op := range ops {
		tmpl, ok := a.Template(op.Name)
		if !ok {
			report(fmt.Sprintf("provider %q does not cover operation %q", a.ID, op.Name))
			continue
		}
		if tmpl.Target == "" {
			report(fmt.Sprintf("provider %q: operation %q has no target symbol", a.ID, op.Name))
		}

		seen := make(map[string]int, len(op.Params))
		for _, arg := range tmpl.Args() {
			if arg.IsFixed() {
				continue
			}
			if _, known := op.ParamByName(arg.Param); !known {
				report(fmt.Sprintf("provider %q: operation %q maps unknown parameter %q", a.ID, op.Name, arg.Param))
				continue
			}
			seen[arg.Param]++
		}
		for _, p := range op.Params {
			switch seen[p.Name] {
			case 0:
				report(fmt.Sprintf("provider %q: operation %q does not map parameter %q", a.ID, op.Name, p.Name))
			case 1:
				// ровно один раз — ок
			default:
				report(fmt.Sprintf("provider %q: operation %q maps parameter %q more than once", a.ID, op.Name, p.Name))
			}
		}
	}

	return out
}
