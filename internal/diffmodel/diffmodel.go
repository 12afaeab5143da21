// Package diffmodel provides the pure, stateless diff utilities the
// orchestrator consumes: unified-diff production, changed-line-range
// extraction, and line-numbered rendering. See spec.md §4.2.
//
// ComputeUnifiedDiff is a hand-rolled LCS-based generator (see the
// "Diff Model authorship note" in SPEC_FULL.md for why no pack library
// covers that exact algorithm). ParseChangedLineRanges instead builds
// on github.com/sourcegraph/go-diff/diff, the same hunk parser the
// teacher's TUI uses for patch inspection.
package diffmodel

import (
	"fmt"
	"strconv"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"
)

// maxLCSCells bounds the LCS table size before falling back to a
// line-by-line walk, per spec.md §4.2.
const maxLCSCells = 25_000_000

// NoChanges is returned verbatim when the two inputs are equal.
const NoChanges = "(no changes detected)"

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// opKind classifies one line in the edit script.
type opKind int

const (
	opEqual opKind = iota
	opDelete
	opInsert
)

type op struct {
	kind opKind
	text string
}

// lcsDiff computes the edit script between a and b using the standard
// dynamic-programming longest-common-subsequence table. Falls back to
// lineByLineWalk when the table would exceed maxLCSCells.
func lcsDiff(a, b []string) []op {
	n, m := len(a), len(b)
	if (n+1)*(m+1) > maxLCSCells {
		return lineByLineWalk(a, b)
	}

	// dp[i][j] = length of LCS of a[i:], b[j:]
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	var ops []op
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			ops = append(ops, op{opEqual, a[i]})
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			ops = append(ops, op{opDelete, a[i]})
			i++
		default:
			ops = append(ops, op{opInsert, b[j]})
			j++
		}
	}
	for ; i < n; i++ {
		ops = append(ops, op{opDelete, a[i]})
	}
	for ; j < m; j++ {
		ops = append(ops, op{opInsert, b[j]})
	}
	return ops
}

// lineByLineWalk emits a delete+insert pair on every inequality when
// the LCS table is too large to compute. Correctness degrades
// gracefully: the changed-ranges superset it implies remains safe for
// comment validation, per spec.md §4.2.
func lineByLineWalk(a, b []string) []op {
	var ops []op
	n, m := len(a), len(b)
	i := 0
	for ; i < n && i < m; i++ {
		if a[i] == b[i] {
			ops = append(ops, op{opEqual, a[i]})
		} else {
			ops = append(ops, op{opDelete, a[i]})
			ops = append(ops, op{opInsert, b[i]})
		}
	}
	for ; i < n; i++ {
		ops = append(ops, op{opDelete, a[i]})
	}
	for ; i < m; i++ {
		ops = append(ops, op{opInsert, b[i]})
	}
	return ops
}

// hunkRange is a contiguous run of non-equal ops plus surrounding
// context, expressed as 0-based indices into the ops slice.
type hunkRange struct {
	start, end int // [start, end) into ops, inclusive of context
}

// ComputeUnifiedDiff produces a standard unified diff between original
// and modified, with the given number of context lines (default 3).
// Change ranges separated by at most 2*context lines are merged into a
// single hunk.
func ComputeUnifiedDiff(original, modified, path string, context int) string {
	if context <= 0 {
		context = 3
	}
	if original == modified {
		return NoChanges
	}

	a := splitLines(original)
	b := splitLines(modified)
	ops := lcsDiff(a, b)

	// Map each op to its line index in the respective file, and find
	// runs of non-equal ops.
	var changeIdxs []int
	for idx, o := range ops {
		if o.kind != opEqual {
			changeIdxs = append(changeIdxs, idx)
		}
	}
	if len(changeIdxs) == 0 {
		return NoChanges
	}

	ranges := mergeRanges(changeIdxs, len(ops), context)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n", path)
	fmt.Fprintf(&sb, "+++ b/%s\n", path)

	// oLine/nLine track the 1-based line number in the original/new
	// file corresponding to ops[0]; recomputed per range start.
	oLine, nLine := 1, 1
	oIdx, nIdx := 0, 0
	rangeOpStart := 0

	for _, r := range ranges {
		// Advance oLine/nLine/oIdx/nIdx up to r.start by walking ops
		// we have not yet consumed.
		for k := rangeOpStart; k < r.start; k++ {
			switch ops[k].kind {
			case opEqual:
				oLine++
				nLine++
				oIdx++
				nIdx++
			case opDelete:
				oLine++
				oIdx++
			case opInsert:
				nLine++
				nIdx++
			}
		}
		rangeOpStart = r.start

		oStart, nStart := oLine, nLine
		var oCount, nCount int
		var body strings.Builder
		for k := r.start; k < r.end; k++ {
			switch ops[k].kind {
			case opEqual:
				body.WriteString(" " + ops[k].text + "\n")
				oLine++
				nLine++
				oCount++
				nCount++
			case opDelete:
				body.WriteString("-" + ops[k].text + "\n")
				oLine++
				oCount++
			case opInsert:
				body.WriteString("+" + ops[k].text + "\n")
				nLine++
				nCount++
			}
		}
		rangeOpStart = r.end

		fmt.Fprintf(&sb, "@@ -%s +%s @@\n", hunkCoord(oStart, oCount), hunkCoord(nStart, nCount))
		sb.WriteString(body.String())
	}

	return sb.String()
}

// hunkCoord formats a hunk's start/count pair, eliding ",count" when
// count == 1 per conventional unified-diff headers.
func hunkCoord(start, count int) string {
	if count == 1 {
		return strconv.Itoa(start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

// mergeRanges expands each change index by context lines on either
// side (clamped to [0, total)) and merges ranges separated by at most
// 2*context ops.
func mergeRanges(changeIdxs []int, total, context int) []hunkRange {
	var raw []hunkRange
	for _, idx := range changeIdxs {
		start := idx - context
		if start < 0 {
			start = 0
		}
		end := idx + 1 + context
		if end > total {
			end = total
		}
		raw = append(raw, hunkRange{start, end})
	}

	var merged []hunkRange
	for _, r := range raw {
		if len(merged) == 0 {
			merged = append(merged, r)
			continue
		}
		last := &merged[len(merged)-1]
		if r.start <= last.end+2*context {
			if r.end > last.end {
				last.end = r.end
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// ParseChangedLineRanges extracts the '+' side of each '@@' header in
// a unified diff as inclusive 1-based line ranges. Empty input yields
// an empty list.
func ParseChangedLineRanges(unifiedDiff string) ([][2]int, error) {
	if strings.TrimSpace(unifiedDiff) == "" || unifiedDiff == NoChanges {
		return nil, nil
	}

	fileDiffs, err := godiff.ParseMultiFileDiff([]byte(unifiedDiff))
	if err != nil {
		// Fall back to parsing a single-file fragment (no "diff --git"
		// header), which ParseMultiFileDiff rejects.
		fd, perr := godiff.ParseFileDiff([]byte(unifiedDiff))
		if perr != nil {
			return nil, fmt.Errorf("diffmodel: parse unified diff: %w", err)
		}
		fileDiffs = []*godiff.FileDiff{fd}
	}

	var ranges [][2]int
	for _, fd := range fileDiffs {
		for _, h := range fd.Hunks {
			start, end := newSideRange(h)
			if start == 0 {
				continue // count 0: elided per spec.md §4.2
			}
			ranges = append(ranges, [2]int{start, end})
		}
	}
	return ranges, nil
}

// newSideRange returns the inclusive 1-based [start, end] range the
// hunk's '+' side covers, or (0, 0) if NewLines == 0.
func newSideRange(h *godiff.Hunk) (int, int) {
	if h.NewLines == 0 {
		return 0, 0
	}
	start := int(h.NewStartLine)
	end := start + int(h.NewLines) - 1
	return start, end
}

// AddLineNumbers prefixes each line with its 1-based index, right
// justified to the file's max-digit width, followed by " | ".
func AddLineNumbers(content string) string {
	lines := splitLines(content)
	if len(lines) == 0 {
		return ""
	}
	width := len(strconv.Itoa(len(lines)))

	var sb strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&sb, "%*d | %s\n", width, i+1, line)
	}
	return sb.String()
}
