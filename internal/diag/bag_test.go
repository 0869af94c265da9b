package diag

import (
	"testing"

	"infrar/internal/source"
)

func TestBagLimit(t *testing.T) {
	bag := NewBag(2)

	if !bag.Add(NewError(ScanParseError, source.Span{}, "one")) {
		t.Fatal("first Add should succeed")
	}
	if !bag.Add(NewError(ScanParseError, source.Span{}, "two")) {
		t.Fatal("second Add should succeed")
	}
	if bag.Add(NewError(ScanParseError, source.Span{}, "three")) {
		t.Fatal("Add beyond cap should fail")
	}
	if bag.Len() != 2 {
		t.Fatalf("Len = %d, want 2", bag.Len())
	}
}

func TestBagHasErrorsWarnings(t *testing.T) {
	bag := NewBag(10)
	if bag.HasErrors() || bag.HasWarnings() {
		t.Fatal("empty bag should have no errors or warnings")
	}

	bag.Add(New(SevInfo, ScanInfo, source.Span{}, "fyi"))
	if bag.HasErrors() || bag.HasWarnings() {
		t.Fatal("info-only bag should have no errors or warnings")
	}

	bag.Add(NewWarning(ScanDynamicUse, source.Span{}, "dynamic"))
	if bag.HasErrors() {
		t.Fatal("warning is not an error")
	}
	if !bag.HasWarnings() {
		t.Fatal("expected HasWarnings")
	}

	bag.Add(NewError(ScanUnknownParam, source.Span{}, "bad"))
	if !bag.HasErrors() {
		t.Fatal("expected HasErrors")
	}
}

func TestBagSortDeterministic(t *testing.T) {
	bag := NewBag(10)
	bag.Add(NewWarning(ScanDynamicUse, source.Span{File: 0, Start: 50, End: 60}, "late"))
	bag.Add(NewError(ScanUnknownParam, source.Span{File: 0, Start: 10, End: 20}, "early"))
	bag.Add(NewError(RewriteEvalOrder, source.Span{File: 0, Start: 10, End: 20}, "same span"))

	bag.Sort()

	items := bag.Items()
	if items[0].Primary.Start != 10 || items[2].Primary.Start != 50 {
		t.Fatalf("unexpected order: %+v", items)
	}
	// На одинаковом спане severity одинаков: порядок по коду (возрастание).
	if items[0].Code > items[1].Code {
		t.Fatalf("expected code ascending at equal span, got %v then %v", items[0].Code, items[1].Code)
	}
}

func TestBagMergeGrowsCap(t *testing.T) {
	a := NewBag(1)
	a.Add(NewError(ScanParseError, source.Span{}, "a"))
	b := NewBag(1)
	b.Add(NewError(ScanParseError, source.Span{}, "b"))

	a.Merge(b)
	if a.Len() != 2 {
		t.Fatalf("Len after merge = %d, want 2", a.Len())
	}
}

func TestCodeString(t *testing.T) {
	if got := ScanUnknownParam.String(); got != "IFR1002" {
		t.Errorf("ScanUnknownParam = %q", got)
	}
	if got := ConfigCoverageGap.String(); got != "IFR0202" {
		t.Errorf("ConfigCoverageGap = %q", got)
	}
	if !ConfigCoverageGap.IsConfig() {
		t.Error("ConfigCoverageGap should be a config code")
	}
	if ScanParseError.IsConfig() {
		t.Error("ScanParseError should not be a config code")
	}
}
