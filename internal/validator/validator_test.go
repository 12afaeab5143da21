package validator

import (
	"testing"

	"github.com/wesm/prreviewer/internal/model"
)

func strPtr(s string) *string { return &s }

func TestValidateDropsPathMismatch(t *testing.T) {
	files := []model.FileChange{
		{Path: "a.go", ModifiedContent: strPtr("line1\nline2\n")},
	}
	comments := []model.InlineComment{
		{Path: "b.go", StartLine: 1, EndLine: 1, Comment: "x"},
	}

	survivors, counters := Validate(comments, files)
	if len(survivors) != 0 {
		t.Errorf("expected 0 survivors, got %d", len(survivors))
	}
	if counters.DroppedPathMismatch != 1 {
		t.Errorf("DroppedPathMismatch = %d, want 1", counters.DroppedPathMismatch)
	}
}

func TestValidateSnippetResolution(t *testing.T) {
	content := "func a() {}\nfunc b() {\n  return 1\n}\nfunc c() {}\n"
	files := []model.FileChange{
		{
			Path:              "a.go",
			ModifiedContent:   &content,
			ChangedLineRanges: []model.LineRange{{Start: 1, End: 5}},
		},
	}
	comments := []model.InlineComment{
		{Path: "a.go", StartLine: 99, EndLine: 99, CodeSnippet: strPtr("func b() {"), Comment: "consider renaming"},
	}

	survivors, _ := Validate(comments, files)
	if len(survivors) != 1 {
		t.Fatalf("expected 1 survivor, got %d", len(survivors))
	}
	if survivors[0].StartLine != 2 {
		t.Errorf("StartLine = %d, want 2 (resolved from snippet)", survivors[0].StartLine)
	}
}

func TestValidateClamp(t *testing.T) {
	content := "a\nb\nc\n"
	files := []model.FileChange{
		{Path: "a.go", ModifiedContent: &content, ChangedLineRanges: []model.LineRange{{Start: 1, End: 3}}},
	}
	comments := []model.InlineComment{
		{Path: "a.go", StartLine: -5, EndLine: 999, Comment: "whole file concern"},
	}

	survivors, _ := Validate(comments, files)
	if len(survivors) != 1 {
		t.Fatalf("expected 1 survivor, got %d", len(survivors))
	}
	if survivors[0].StartLine != 1 || survivors[0].EndLine != 3 {
		t.Errorf("clamp = [%d,%d], want [1,3]", survivors[0].StartLine, survivors[0].EndLine)
	}
}

func TestValidateChangedRegionProximity(t *testing.T) {
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = "x"
	}
	content := joinLines(lines)
	files := []model.FileChange{
		{Path: "a.go", ModifiedContent: &content, ChangedLineRanges: []model.LineRange{{Start: 10, End: 10}}},
	}

	// Within proximity (±5) of the changed range.
	near := []model.InlineComment{{Path: "a.go", StartLine: 14, EndLine: 14, Comment: "near"}}
	survivors, _ := Validate(near, files)
	if len(survivors) != 1 {
		t.Error("expected comment within proximity to survive")
	}

	// Far outside proximity and density window.
	far := []model.InlineComment{{Path: "a.go", StartLine: 45, EndLine: 45, Comment: "far"}}
	survivors, counters := Validate(far, files)
	if len(survivors) != 0 {
		t.Error("expected far comment to be dropped")
	}
	if counters.DroppedOutOfChangedRegion != 1 {
		t.Errorf("DroppedOutOfChangedRegion = %d, want 1", counters.DroppedOutOfChangedRegion)
	}
}

func TestValidateChangedRegionDensity(t *testing.T) {
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = "x"
	}
	content := joinLines(lines)

	// Dense rewrite: lines 40-60 all changed (21 lines). A comment at
	// line 50 has a ±25 window [25,75] of 51 lines; changed count 21
	// is ~41%, clearing the 40% density threshold.
	files := []model.FileChange{
		{Path: "a.go", ModifiedContent: &content, ChangedLineRanges: []model.LineRange{{Start: 40, End: 60}}},
	}
	comments := []model.InlineComment{{Path: "a.go", StartLine: 50, EndLine: 50, Comment: "method-level concern"}}

	survivors, _ := Validate(comments, files)
	if len(survivors) != 1 {
		t.Error("expected comment to survive via density allowance")
	}
}

func TestValidateDropsL1Comments(t *testing.T) {
	content := "a\nb\nc\n"
	files := []model.FileChange{
		{Path: "a.go", ModifiedContent: &content, ChangedLineRanges: []model.LineRange{{Start: 1, End: 3}}},
	}
	comments := []model.InlineComment{
		{Path: "a.go", StartLine: 1, EndLine: 1, Comment: "generic non-line-specific output"},
	}

	survivors, counters := Validate(comments, files)
	if len(survivors) != 0 {
		t.Errorf("expected L1-1 comment to be dropped, got %d survivors", len(survivors))
	}
	if counters.DroppedL1 != 1 {
		t.Errorf("DroppedL1 = %d, want 1", counters.DroppedL1)
	}
}

func TestValidateFalsePositiveGateDropsWhenIdentifierExists(t *testing.T) {
	content := "func computeTotal() int {\n  return 42\n}\n"
	files := []model.FileChange{
		{Path: "a.go", ModifiedContent: &content, ChangedLineRanges: []model.LineRange{{Start: 1, End: 3}}},
	}
	comments := []model.InlineComment{
		{Path: "a.go", StartLine: 2, EndLine: 2, Comment: "The function `computeTotal` is not defined anywhere."},
	}

	survivors, counters := Validate(comments, files)
	if len(survivors) != 0 {
		t.Errorf("expected false-positive comment to be dropped, got %d survivors", len(survivors))
	}
	if counters.DroppedFalsePositive != 1 {
		t.Errorf("DroppedFalsePositive = %d, want 1", counters.DroppedFalsePositive)
	}
}

func TestValidateFalsePositiveGateKeepsWhenIdentifierAbsent(t *testing.T) {
	content := "func computeTotal() int {\n  return 42\n}\n"
	files := []model.FileChange{
		{Path: "a.go", ModifiedContent: &content, ChangedLineRanges: []model.LineRange{{Start: 1, End: 3}}},
	}
	comments := []model.InlineComment{
		{Path: "a.go", StartLine: 2, EndLine: 2, Comment: "The function `computeGrandTotal` is not defined anywhere."},
	}

	survivors, _ := Validate(comments, files)
	if len(survivors) != 1 {
		t.Errorf("expected comment about a genuinely missing identifier to survive, got %d survivors", len(survivors))
	}
}

func TestValidateNounPhraseIdentifierExtraction(t *testing.T) {
	content := "class Widget {\n  value int\n}\n"
	files := []model.FileChange{
		{Path: "a.go", ModifiedContent: &content, ChangedLineRanges: []model.LineRange{{Start: 1, End: 3}}},
	}
	comments := []model.InlineComment{
		{Path: "a.go", StartLine: 1, EndLine: 2, Comment: "method Widget is not implemented in this file"},
	}

	survivors, counters := Validate(comments, files)
	if len(survivors) != 0 {
		t.Errorf("expected comment to be dropped via noun-phrase identifier extraction, got %d survivors", len(survivors))
	}
	if counters.DroppedFalsePositive != 1 {
		t.Errorf("DroppedFalsePositive = %d, want 1", counters.DroppedFalsePositive)
	}
}

func TestValidateAllSurvivorsWithinFileBounds(t *testing.T) {
	content := "a\nb\nc\nd\ne\n"
	files := []model.FileChange{
		{Path: "a.go", ModifiedContent: &content, ChangedLineRanges: []model.LineRange{{Start: 1, End: 5}}},
	}
	comments := []model.InlineComment{
		{Path: "a.go", StartLine: 0, EndLine: 1000, Comment: "whole file"},
	}

	survivors, _ := Validate(comments, files)
	for _, c := range survivors {
		if c.StartLine < 1 || c.EndLine < c.StartLine || c.EndLine > 5 {
			t.Errorf("survivor out of bounds: %+v", c)
		}
	}
}

func joinLines(lines []string) string {
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}
