package orchestrator

import (
	"fmt"
	"strings"

	"github.com/wesm/prreviewer/internal/model"
)

// buildSummaryContent implements spec.md §4.6.2 step 8: the single
// top-level summary thread posted for a FullReview or ReReview.
func buildSummaryContent(action model.Action, reviewNumber, prID int, merged model.ReviewResult, priorMeta model.ReviewMetadata) string {
	var b strings.Builder

	if action == model.ActionReReview {
		fmt.Fprintf(&b, "## Re-Review (Review %d) -- PR %d\n\n", reviewNumber, prID)
		fmt.Fprintf(&b, "> Prior review: %s | commit `%s` | iteration %d | %s%s\n\n",
			priorMeta.ReviewedAtUtc.Format("2006-01-02"),
			shortCommit(priorMeta.LastReviewedSourceCommit),
			priorMeta.LastReviewedIteration,
			voteBadge(priorMeta.VoteSubmitted),
			draftBadge(priorMeta.WasDraft))
	} else {
		fmt.Fprintf(&b, "## Code Review (Review %d) -- PR %d\n\n", reviewNumber, prID)
	}

	b.WriteString("### Summary\n\n")
	fmt.Fprintf(&b, "Files changed: %d (%d edits, %d adds, %d deletes)\n\n",
		merged.Summary.FilesChanged, merged.Summary.EditsCount, merged.Summary.AddsCount, merged.Summary.DeletesCount)
	if merged.Summary.Description != "" {
		b.WriteString(merged.Summary.Description)
		b.WriteString("\n\n")
	}

	b.WriteString("### Code Changes Review\n\n")
	flagged := flaggedFileReviews(merged.FileReviews)
	if len(flagged) == 0 {
		b.WriteString("No files required flagging.\n\n")
	} else {
		for _, fr := range flagged {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", fr.Path, fr.Verdict, fr.ReviewText)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "### Verdict: **%s**\n\n", merged.Summary.Verdict)
	if merged.Summary.VerdictJustification != "" {
		b.WriteString(merged.Summary.VerdictJustification)
		b.WriteString("\n")
	}

	return b.String()
}

// flaggedFileReviews keeps only files whose verdict is CONCERN or
// REJECTED, or whose review text names an AI review failure — clean
// files are omitted from the summary table.
func flaggedFileReviews(reviews []model.FileReview) []model.FileReview {
	var out []model.FileReview
	for _, fr := range reviews {
		if fr.Verdict == model.VerdictConcern || fr.Verdict == model.VerdictRejected || strings.Contains(fr.ReviewText, "AI review failed") {
			out = append(out, fr)
		}
	}
	return out
}

func voteBadge(voteSubmitted bool) string {
	if voteSubmitted {
		return "voted"
	}
	return "no vote"
}

func draftBadge(wasDraft bool) string {
	if wasDraft {
		return " | draft"
	}
	return ""
}

// autoApprovedNoFilesSummary implements the spec.md §4.6.2 step 2
// empty-file-set branch.
func autoApprovedNoFilesSummary(action model.Action, reviewNumber, prID int) string {
	header := "## Code Review"
	if action == model.ActionReReview {
		header = "## Re-Review"
	}
	return fmt.Sprintf("%s (Review %d) -- PR %d\n\nNo files changed in this revision. Auto-approved.\n", header, reviewNumber, prID)
}
