// Package validator implements the Comment Validator: a deterministic
// filter pipeline that clamps, snippet-resolves, diff-proximity
// filters, and false-positive-drops AI-produced inline comments
// against the actual changed-file set. See spec.md §4.5.
package validator

import (
	"log"
	"regexp"
	"strings"

	"github.com/wesm/prreviewer/internal/model"
)

// Counters tallies how many comments were dropped at each pipeline
// stage, for diagnostics.
type Counters struct {
	DroppedPathMismatch       int
	DroppedL1                 int
	DroppedFalsePositive      int
	DroppedOutOfChangedRegion int
}

// proximityLines, densityWindow and densityRatio implement spec.md §4.5 step 4's
// changed-region gate.
const (
	proximityLines = 5
	densityWindow  = 25
	densityRatio   = 0.40
)

var falsePositivePhrases = []string{
	"not defined",
	"is not defined",
	"not found",
	"not implemented",
	"missing definition",
	"missing implementation",
	"ensure it is implemented",
}

var backtickIdentifierRe = regexp.MustCompile("`([^`]+)`")

// nounPhraseIdentifierRe extracts an identifier following one of the
// noun-phrase cues named in spec.md §4.5 step 6.
var nounPhraseIdentifierRe = regexp.MustCompile(`(?i)\b(?:method|class|function|property|variable|interface)\s+([A-Za-z_][A-Za-z0-9_]*)`)

// Validate runs the full pipeline against files, returning the
// surviving comments (in input order) and drop counters.
func Validate(comments []model.InlineComment, files []model.FileChange) ([]model.InlineComment, Counters) {
	byPath := make(map[string]model.FileChange, len(files))
	for _, f := range files {
		byPath[f.Path] = f
	}

	var counters Counters
	var survivors []model.InlineComment

	for _, c := range comments {
		fc, ok := byPath[c.Path]
		if !ok {
			counters.DroppedPathMismatch++
			continue
		}

		lines := contentLines(fc.ModifiedContent)
		totalLines := len(lines)
		if totalLines == 0 {
			totalLines = 1 // avoid degenerate clamp ranges on empty files
		}

		c = resolveSnippet(c, lines, totalLines)
		c = clamp(c, totalLines)

		if len(fc.ChangedLineRanges) > 0 && !passesChangedRegionGate(c, fc.ChangedLineRanges) {
			counters.DroppedOutOfChangedRegion++
			continue
		}

		if c.StartLine == 1 && c.EndLine == 1 {
			counters.DroppedL1++
			continue
		}

		if isFalsePositive(c, fc.ModifiedContent) {
			counters.DroppedFalsePositive++
			continue
		}

		survivors = append(survivors, c)
	}

	if dropped := len(comments) - len(survivors); dropped > 0 {
		log.Printf("validator: dropped %d/%d comments (path mismatch %d, L1 %d, out-of-region %d, false positive %d)",
			dropped, len(comments), counters.DroppedPathMismatch, counters.DroppedL1,
			counters.DroppedOutOfChangedRegion, counters.DroppedFalsePositive)
	}

	return survivors, counters
}

func contentLines(content *string) []string {
	if content == nil || *content == "" {
		return nil
	}
	normalized := strings.ReplaceAll(*content, "\r\n", "\n")
	normalized = strings.TrimSuffix(normalized, "\n")
	return strings.Split(normalized, "\n")
}

// resolveSnippet implements spec.md §4.5 step 2: search for the first
// line of codeSnippet, case-sensitive first then case-insensitive. A
// miss is non-fatal and the comment's original lines are kept.
func resolveSnippet(c model.InlineComment, lines []string, totalLines int) model.InlineComment {
	if c.CodeSnippet == nil || *c.CodeSnippet == "" {
		return c
	}
	snippetLines := strings.Split(strings.ReplaceAll(*c.CodeSnippet, "\r\n", "\n"), "\n")
	if len(snippetLines) == 0 {
		return c
	}
	first := snippetLines[0]

	idx := indexOfLine(lines, first, false)
	if idx == -1 {
		idx = indexOfLine(lines, first, true)
	}
	if idx == -1 {
		return c
	}

	startLine := idx + 1 // 1-based
	endLine := startLine + len(snippetLines) - 1
	if endLine > totalLines {
		endLine = totalLines
	}
	c.StartLine = startLine
	c.EndLine = endLine
	return c
}

func indexOfLine(lines []string, target string, caseInsensitive bool) int {
	needle := target
	if caseInsensitive {
		needle = strings.ToLower(needle)
	}
	for i, l := range lines {
		hay := l
		if caseInsensitive {
			hay = strings.ToLower(hay)
		}
		if hay == needle {
			return i
		}
	}
	return -1
}

// clamp implements spec.md §4.5 step 3.
func clamp(c model.InlineComment, totalLines int) model.InlineComment {
	c.StartLine = clampInt(c.StartLine, 1, totalLines)
	c.EndLine = clampInt(c.EndLine, c.StartLine, totalLines)
	return c
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// passesChangedRegionGate implements spec.md §4.5 step 4: keep the
// comment iff it is within proximityLines of a changed range, or the
// densityRatio of lines in a densityWindow around it lie in changed
// ranges.
func passesChangedRegionGate(c model.InlineComment, ranges []model.LineRange) bool {
	for _, r := range ranges {
		if c.StartLine <= r.End+proximityLines && r.Start <= c.EndLine+proximityLines {
			return true
		}
	}

	windowStart := c.StartLine - densityWindow
	windowEnd := c.EndLine + densityWindow
	windowSize := windowEnd - windowStart + 1
	if windowSize <= 0 {
		return false
	}

	changed := 0
	for line := windowStart; line <= windowEnd; line++ {
		for _, r := range ranges {
			if line >= r.Start && line <= r.End {
				changed++
				break
			}
		}
	}

	return float64(changed)/float64(windowSize) >= densityRatio
}

// isFalsePositive implements spec.md §4.5 step 6: if the comment
// claims a symbol is missing/undefined but that identifier actually
// occurs verbatim in the modified content, the comment is a false
// positive.
func isFalsePositive(c model.InlineComment, modifiedContent *string) bool {
	lower := strings.ToLower(c.Comment)
	matched := false
	for _, phrase := range falsePositivePhrases {
		if strings.Contains(lower, phrase) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	if modifiedContent == nil {
		return false
	}

	identifiers := extractIdentifiers(c.Comment)
	if len(identifiers) == 0 {
		return false
	}
	for _, id := range identifiers {
		if strings.Contains(*modifiedContent, id) {
			return true
		}
	}
	return false
}

// extractIdentifiers pulls candidate symbol names from back-ticked
// tokens or noun-phrase cues ("method X", "class Y", ...).
func extractIdentifiers(comment string) []string {
	var ids []string
	for _, m := range backtickIdentifierRe.FindAllStringSubmatch(comment, -1) {
		ids = append(ids, m[1])
	}
	for _, m := range nounPhraseIdentifierRe.FindAllStringSubmatch(comment, -1) {
		ids = append(ids, m[1])
	}
	return ids
}
