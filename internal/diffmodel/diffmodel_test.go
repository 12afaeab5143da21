package diffmodel

import (
	"strings"
	"testing"
)

func TestComputeUnifiedDiffNoChanges(t *testing.T) {
	got := ComputeUnifiedDiff("same\ntext\n", "same\ntext\n", "f.go", 3)
	if got != NoChanges {
		t.Errorf("ComputeUnifiedDiff of identical inputs = %q, want %q", got, NoChanges)
	}
}

func TestComputeUnifiedDiffSimpleEdit(t *testing.T) {
	original := "line1\nline2\nline3\n"
	modified := "line1\nCHANGED\nline3\n"

	got := ComputeUnifiedDiff(original, modified, "f.go", 3)

	if !strings.Contains(got, "--- a/f.go") {
		t.Error("missing original file header")
	}
	if !strings.Contains(got, "+++ b/f.go") {
		t.Error("missing modified file header")
	}
	if !strings.Contains(got, "-line2") {
		t.Error("missing deleted line")
	}
	if !strings.Contains(got, "+CHANGED") {
		t.Error("missing inserted line")
	}
	if !strings.Contains(got, "@@") {
		t.Error("missing hunk header")
	}
}

func TestComputeUnifiedDiffMergesCloseHunks(t *testing.T) {
	// Two single-line changes four lines apart, well within 2*3=6 of
	// separation, should merge into one hunk.
	var origLines, modLines []string
	for i := 1; i <= 12; i++ {
		origLines = append(origLines, "line")
		modLines = append(modLines, "line")
	}
	modLines[2] = "CHANGED-A"
	modLines[6] = "CHANGED-B"

	original := strings.Join(origLines, "\n") + "\n"
	modified := strings.Join(modLines, "\n") + "\n"

	got := ComputeUnifiedDiff(original, modified, "f.go", 3)

	hunkCount := strings.Count(got, "@@ -")
	if hunkCount != 1 {
		t.Errorf("expected changes to merge into one hunk, got %d hunks:\n%s", hunkCount, got)
	}
}

func TestParseChangedLineRangesEmpty(t *testing.T) {
	ranges, err := ParseChangedLineRanges("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranges) != 0 {
		t.Errorf("expected empty ranges, got %v", ranges)
	}
}

func TestParseChangedLineRangesNoChanges(t *testing.T) {
	ranges, err := ParseChangedLineRanges(NoChanges)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranges) != 0 {
		t.Errorf("expected empty ranges, got %v", ranges)
	}
}

func TestParseChangedLineRangesRoundTrip(t *testing.T) {
	original := "a\nb\nc\nd\ne\n"
	modified := "a\nb\nXX\nd\ne\n"

	diff := ComputeUnifiedDiff(original, modified, "f.go", 3)
	ranges, err := ParseChangedLineRanges(diff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranges) == 0 {
		t.Fatal("expected at least one range")
	}

	// Line 3 (1-based) in modified is the changed line; it must be
	// covered by the parsed range, per spec.md §4.2's round-trip
	// property.
	found := false
	for _, r := range ranges {
		if 3 >= r[0] && 3 <= r[1] {
			found = true
		}
	}
	if !found {
		t.Errorf("expected ranges %v to cover changed line 3", ranges)
	}
}

func TestAddLineNumbers(t *testing.T) {
	got := AddLineNumbers("one\ntwo\nthree\n")
	want := "1 | one\n2 | two\n3 | three\n"
	if got != want {
		t.Errorf("AddLineNumbers = %q, want %q", got, want)
	}
}

func TestAddLineNumbersWidthAlignment(t *testing.T) {
	lines := make([]string, 11)
	for i := range lines {
		lines[i] = "x"
	}
	content := strings.Join(lines, "\n") + "\n"

	got := AddLineNumbers(content)
	// With 11 lines, width is 2; line 1 should be padded to " 1".
	if !strings.HasPrefix(got, " 1 | x\n") {
		t.Errorf("expected right-justified line numbers, got first line of: %q", got)
	}
	if !strings.Contains(got, "11 | x\n") {
		t.Errorf("expected unpadded double-digit line number, got: %q", got)
	}
}

func TestAddLineNumbersEmpty(t *testing.T) {
	if got := AddLineNumbers(""); got != "" {
		t.Errorf("AddLineNumbers(\"\") = %q, want empty string", got)
	}
}
