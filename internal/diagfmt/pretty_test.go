package diagfmt

import (
	"encoding/json"
	"strings"
	"testing"

	"infrar/internal/diag"
	"infrar/internal/source"
)

func testBag(t *testing.T) (*diag.Bag, *source.FileSet) {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual("app/main.go", []byte("package main\n\nvar broken = Upload(1)\n"))

	bag := diag.NewBag(10)
	// Span охватывает "Upload" в третьей строке.
	bag.Add(diag.NewError(diag.ScanUnknownParam, source.Span{File: id, Start: 27, End: 33},
		"unknown operation argument"))
	bag.Add(diag.NewWarning(diag.ScanOpaqueRequest, source.Span{File: id, Start: 27, End: 33},
		"request is not a literal"))
	return bag, fs
}

func TestPrettyHeaderFormat(t *testing.T) {
	bag, fs := testBag(t)

	var sb strings.Builder
	Pretty(&sb, bag, fs, PrettyOpts{})

	out := sb.String()
	if !strings.Contains(out, "app/main.go:3:14: ERROR IFR1002: unknown operation argument") {
		t.Errorf("unexpected header:\n%s", out)
	}
	if !strings.Contains(out, "WARNING IFR1100: request is not a literal") {
		t.Errorf("warning line missing:\n%s", out)
	}
}

func TestPrettyUnderline(t *testing.T) {
	bag, fs := testBag(t)

	var sb strings.Builder
	Pretty(&sb, bag, fs, PrettyOpts{})

	out := sb.String()
	if !strings.Contains(out, "var broken = Upload(1)") {
		t.Errorf("context line missing:\n%s", out)
	}
	if !strings.Contains(out, "^~~~~~") {
		t.Errorf("underline missing:\n%s", out)
	}
}

func TestPrettyNoContext(t *testing.T) {
	bag, fs := testBag(t)

	var sb strings.Builder
	Pretty(&sb, bag, fs, PrettyOpts{NoContext: true})

	if strings.Contains(sb.String(), "^") {
		t.Errorf("context suppressed but underline printed:\n%s", sb.String())
	}
}

func TestPrettyRunLevelDiagnostic(t *testing.T) {
	bag := diag.NewBag(10)
	bag.Add(diag.NewError(diag.ConfigUnknownProvider, source.Span{}, `unknown provider "digitalocean"`))

	var sb strings.Builder
	Pretty(&sb, bag, source.NewFileSet(), PrettyOpts{})

	out := sb.String()
	if !strings.HasPrefix(out, "ERROR IFR0201: ") {
		t.Errorf("run-level diagnostic must have no location prefix:\n%s", out)
	}
}

func TestJSONOutput(t *testing.T) {
	bag, fs := testBag(t)

	var sb strings.Builder
	if err := JSON(&sb, bag, fs, JSONOpts{IncludePositions: true}); err != nil {
		t.Fatal(err)
	}

	var out DiagnosticsOutput
	if err := json.Unmarshal([]byte(sb.String()), &out); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if out.Count != 2 || len(out.Diagnostics) != 2 {
		t.Fatalf("count = %d, diags = %d", out.Count, len(out.Diagnostics))
	}
	first := out.Diagnostics[0]
	if first.Code != "IFR1002" || first.Severity != "ERROR" {
		t.Errorf("first = %+v", first)
	}
	if first.Location == nil || first.Location.StartLine != 3 || first.Location.StartCol != 14 {
		t.Errorf("location = %+v", first.Location)
	}
}

func TestJSONMaxTruncates(t *testing.T) {
	bag, fs := testBag(t)

	var sb strings.Builder
	if err := JSON(&sb, bag, fs, JSONOpts{Max: 1}); err != nil {
		t.Fatal(err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal([]byte(sb.String()), &out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 1 {
		t.Errorf("count = %d, want 1", out.Count)
	}
}
