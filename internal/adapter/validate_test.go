package adapter

import (
	"strings"
	"testing"

	"infrar/internal/registry"
)

// fullAdapter returns a minimal adapter covering every registry operation.
func fullAdapter() *ProviderAdapter {
	ops := make(map[string]*NativeCallTemplate)
	for _, op := range registry.Operations() {
		args := make([]ArgRef, 0, len(op.Params))
		for _, p := range op.Params {
			args = append(args, ArgRef{Param: p.Name})
		}
		ops[op.Name] = &NativeCallTemplate{
			Target: "native" + op.FuncName,
			args:   args,
		}
	}
	return &ProviderAdapter{ID: "test", Ops: ops}
}

func TestValidateFullCoverage(t *testing.T) {
	if diags := Validate(fullAdapter(), registry.Operations()); len(diags) != 0 {
		t.Fatalf("full adapter should validate, got %d diagnostics", len(diags))
	}
}

func TestValidateMissingOperation(t *testing.T) {
	a := fullAdapter()
	delete(a.Ops, "delete")

	diags := Validate(a, registry.Operations())
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	if !strings.Contains(diags[0].Message, `"delete"`) {
		t.Errorf("diagnostic must name the uncovered operation: %s", diags[0].Message)
	}
	if !diags[0].Code.IsConfig() {
		t.Errorf("coverage gap must be a config code, got %v", diags[0].Code)
	}
}

func TestValidateMissingParameter(t *testing.T) {
	a := fullAdapter()
	// Удаляем одну привязку параметра: валидация обязана упасть.
	tmpl := a.Ops["upload"]
	tmpl.args = tmpl.args[:len(tmpl.args)-1]

	diags := Validate(a, registry.Operations())
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	if !strings.Contains(diags[0].Message, `"destination"`) {
		t.Errorf("diagnostic must name the unmapped parameter: %s", diags[0].Message)
	}
}

func TestValidateUnknownParameter(t *testing.T) {
	a := fullAdapter()
	tmpl := a.Ops["delete"]
	tmpl.args = append(tmpl.args, ArgRef{Param: "region"})

	diags := Validate(a, registry.Operations())
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %v", len(diags), diags)
	}
	if !strings.Contains(diags[0].Message, `"region"`) {
		t.Errorf("diagnostic must name the unknown parameter: %s", diags[0].Message)
	}
}

func TestValidateDuplicateParameter(t *testing.T) {
	a := fullAdapter()
	tmpl := a.Ops["delete"]
	tmpl.args = append(tmpl.args, ArgRef{Param: "path"})

	diags := Validate(a, registry.Operations())
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %v", len(diags), diags)
	}
	if !strings.Contains(diags[0].Message, "more than once") {
		t.Errorf("unexpected message: %s", diags[0].Message)
	}
}

func TestValidateMissingClientCtor(t *testing.T) {
	a := fullAdapter()
	a.Ops["upload"].RequiresClient = true

	diags := Validate(a, registry.Operations())
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %v", len(diags), diags)
	}
	if !strings.Contains(diags[0].Message, "client") {
		t.Errorf("unexpected message: %s", diags[0].Message)
	}
}

func TestValidateFixedValuesDoNotCount(t *testing.T) {
	a := fullAdapter()
	tmpl := a.Ops["list_objects"]
	tmpl.args = append(tmpl.args, ArgRef{Fixed: "int32(500)"})

	if diags := Validate(a, registry.Operations()); len(diags) != 0 {
		t.Fatalf("fixed values must not affect coverage, got %v", diags)
	}
}
