package orchestrator

import "github.com/wesm/prreviewer/internal/model"

// handleSkip implements spec.md §4.6.2 "Skip": the PR is unchanged
// since its last review, so only an audit entry is written.
func (rc *reviewContext) handleSkip() Result {
	entry := model.ReviewHistoryEntry{
		ReviewNumber:         len(rc.history) + 1,
		ReviewedAtUtc:        nowUTC(),
		Action:               model.ActionSkipped,
		Verdict:              "No Changes",
		SourceCommit:         rc.pr.SourceCommit,
		Iteration:            rc.iteration,
		IsDraft:              rc.pr.IsDraft,
		InlineCommentsPosted: 0,
		FilesChanged:         0,
		Vote:                 nil,
	}
	if err := rc.o.Store.AppendHistory(rc.ctx, rc.project, rc.repo, rc.prID, entry); err != nil {
		return errorResult("append history: %v", err)
	}
	rc.appendPRDescriptionHistory(entry)
	rc.recordRateGate()

	return Result{
		Status:  "Skipped",
		Summary: "This PR has already been reviewed at this commit; no changes to review.",
	}
}

// handleVoteOnly implements spec.md §4.6.2 "VoteOnly": a draft PR that
// went active with no new commits gets a reviewer vote but no new
// review pass.
func (rc *reviewContext) handleVoteOnly() Result {
	const voteValue = 5

	var vote *int
	voteSubmitted := false
	if err := rc.o.Store.AddReviewerVote(rc.ctx, rc.project, rc.repo, rc.prID, voteValue); err != nil {
		vote = nil
	} else {
		v := voteValue
		vote = &v
		voteSubmitted = true
	}

	rc.meta.VoteSubmitted = voteSubmitted
	rc.meta.WasDraft = false
	rc.meta.ReviewCount = len(rc.history) + 1
	rc.meta.ReviewedAtUtc = nowUTC()
	if err := rc.o.Store.SetMetadata(rc.ctx, rc.project, rc.repo, rc.prID, rc.meta); err != nil {
		return errorResult("set metadata: %v", err)
	}

	entry := model.ReviewHistoryEntry{
		ReviewNumber:         len(rc.history) + 1,
		ReviewedAtUtc:        rc.meta.ReviewedAtUtc,
		Action:               model.ActionVoteOnly,
		Verdict:              "Draft-to-active, no code change",
		SourceCommit:         rc.pr.SourceCommit,
		Iteration:            rc.iteration,
		IsDraft:              false,
		InlineCommentsPosted: 0,
		FilesChanged:         0,
		Vote:                 vote,
	}
	if err := rc.o.Store.AppendHistory(rc.ctx, rc.project, rc.repo, rc.prID, entry); err != nil {
		return errorResult("append history: %v", err)
	}
	rc.appendPRDescriptionHistory(entry)
	rc.recordRateGate()

	return Result{
		Status:         "Reviewed",
		Recommendation: recommendationString(model.VerdictApprovedSuggestions),
		Vote:           vote,
		Summary:        "Draft-to-active: no new commits since the last review, casting the standard approval vote.",
	}
}
