package orchestrator

import (
	"strings"

	"github.com/wesm/prreviewer/internal/model"
)

// Decide implements spec.md §4.6.1's action-decision function. It is
// pure: given identical (meta, pr, addReviewerVote), it always returns
// the same Action.
func Decide(meta model.ReviewMetadata, pr model.PullRequestSnapshot, addReviewerVote bool) model.Action {
	if !meta.HasPreviousReview() {
		return model.ActionFullReview
	}
	if !strings.EqualFold(meta.LastReviewedSourceCommit, pr.SourceCommit) {
		return model.ActionReReview
	}
	if meta.WasDraft && !pr.IsDraft && !meta.VoteSubmitted && addReviewerVote {
		return model.ActionVoteOnly
	}
	return model.ActionSkipped
}
