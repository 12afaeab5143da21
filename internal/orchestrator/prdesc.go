package orchestrator

import (
	"fmt"
	"log"
	"strings"

	"github.com/wesm/prreviewer/internal/model"
)

const (
	historyStartMarker = "<!-- AI-REVIEW-HISTORY-START -->"
	historyEndMarker   = "<!-- AI-REVIEW-HISTORY-END -->"
	historyTableHeader = "| Review # | Date (UTC) | Action | Verdict | Commit | Iteration | Scope |\n" +
		"|---|---|---|---|---|---|---|"
)

// appendPRDescriptionHistory implements spec.md §6's PR-description
// convention and §4.6.2 step 10's table maintenance: existing rows are
// preserved verbatim, the new row is appended, and the block is
// created on first write.
func (rc *reviewContext) appendPRDescriptionHistory(entry model.ReviewHistoryEntry) {
	row := historyRow(entry)
	newDesc, changed := insertHistoryRow(rc.pr.Description, row)
	if !changed {
		return
	}
	if err := rc.o.Store.UpdatePRDescription(rc.ctx, rc.project, rc.repo, rc.prID, newDesc); err != nil {
		log.Printf("orchestrator[%s]: update PR description for PR %d: %v", rc.correlationID, rc.prID, err)
	}
}

func historyRow(entry model.ReviewHistoryEntry) string {
	vote := "-"
	if entry.Vote != nil {
		vote = fmt.Sprintf("%d", *entry.Vote)
	}
	return fmt.Sprintf("| %d | %s | %s | %s | `%s` | %d | %d files, %d comments, vote %s |",
		entry.ReviewNumber,
		entry.ReviewedAtUtc.Format("2006-01-02"),
		entry.Action,
		entry.Verdict,
		shortCommit(entry.SourceCommit),
		entry.Iteration,
		entry.FilesChanged,
		entry.InlineCommentsPosted,
		vote,
	)
}

// insertHistoryRow appends row to the table between the history
// markers in description, creating the block if absent. Returns the
// new description and whether it differs from the input.
func insertHistoryRow(description, row string) (string, bool) {
	startIdx := strings.Index(description, historyStartMarker)
	endIdx := strings.Index(description, historyEndMarker)

	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		block := fmt.Sprintf("%s\n%s\n%s\n%s\n", historyStartMarker, historyTableHeader, row, historyEndMarker)
		if description == "" {
			return block, true
		}
		return strings.TrimRight(description, "\n") + "\n\n" + block, true
	}

	before := description[:startIdx]
	after := description[endIdx+len(historyEndMarker):]
	inner := description[startIdx+len(historyStartMarker) : endIdx]
	inner = strings.TrimRight(inner, "\n")

	if !strings.Contains(inner, historyTableHeader) {
		inner = inner + "\n" + historyTableHeader
	}
	inner = inner + "\n" + row + "\n"

	newDesc := before + historyStartMarker + inner + historyEndMarker + after
	return newDesc, true
}
