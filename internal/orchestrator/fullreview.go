package orchestrator

import (
	"log"

	"github.com/wesm/prreviewer/internal/model"
	"github.com/wesm/prreviewer/internal/validator"
)

// handleFullOrReReview implements spec.md §4.6.2's eleven-step
// FullReview/ReReview handler. Both actions share this path; only the
// header text, thread-resolution step, and history action label
// differ.
func (rc *reviewContext) handleFullOrReReview(action model.Action) Result {
	// Step 1: reviewNumber is derived from the summary-comment count,
	// not history length, so it survives a metadata/history wipe.
	summaryCount, err := rc.o.Store.CountSummaryComments(rc.ctx, rc.project, rc.repo, rc.prID)
	if err != nil {
		return errorResult("count summary comments: %v", err)
	}
	reviewNumber := summaryCount + 1

	// Step 2: fetch changes.
	files, err := rc.o.Store.GetFileChanges(rc.ctx, rc.project, rc.repo, rc.prID, rc.pr)
	if err != nil {
		return errorResult("get file changes: %v", err)
	}
	if len(files) == 0 {
		return rc.handleNoFiles(action, reviewNumber)
	}

	// Step 3: bounded-concurrency per-file fan-out.
	maxParallel := rc.cfg.MaxParallelReviews
	if maxParallel < 1 {
		maxParallel = 1
	}
	perFile, allFailed := rc.o.reviewFilesFannedOut(rc.ctx, rc.pr, files, maxParallel)
	if allFailed {
		// Fatal per spec.md §8: a total per-file failure indicates
		// every provider is down, not an isolated file problem; no
		// metadata/history is written and the Rate Gate is not
		// recorded.
		return errorResult("all %d per-file reviews failed: %v", len(files), firstFileError(files, perFile))
	}

	// Step 4: merge.
	merged := mergePerFileResults(perFile, len(files))

	// Step 5: validate.
	survivors, _ := validator.Validate(merged.InlineComments, files)
	merged.InlineComments = survivors

	// Step 6: resolve prior threads (ReReview only).
	if action == model.ActionReReview {
		rc.resolvePriorThreads(files)
	}

	// Step 7: post inline comments with dedup.
	posted := rc.postInlineComments(merged.InlineComments)

	// Step 8: post summary thread.
	summaryContent := buildSummaryContent(action, reviewNumber, rc.prID, merged, rc.meta)
	if err := rc.o.Store.PostCommentThread(rc.ctx, rc.project, rc.repo, rc.prID, summaryContent, model.ThreadClosed); err != nil {
		log.Printf("orchestrator[%s]: post summary comment for PR %d: %v", rc.correlationID, rc.prID, err)
	}

	// Step 9: vote.
	var vote *int
	if !rc.pr.IsDraft && rc.cfg.AddReviewerVote {
		v := merged.RecommendedVote
		if err := rc.o.Store.AddReviewerVote(rc.ctx, rc.project, rc.repo, rc.prID, v); err == nil {
			vote = &v
		}
	}

	// Step 10: update metadata, tag, and history.
	rc.meta.LastReviewedSourceCommit = rc.pr.SourceCommit
	rc.meta.LastReviewedTargetCommit = rc.pr.TargetCommit
	rc.meta.LastReviewedIteration = rc.iteration
	rc.meta.WasDraft = rc.pr.IsDraft
	rc.meta.ReviewedAtUtc = nowUTC()
	rc.meta.VoteSubmitted = rc.meta.VoteSubmitted || vote != nil
	rc.meta.ReviewCount = len(rc.history) + 1
	if err := rc.o.Store.SetMetadata(rc.ctx, rc.project, rc.repo, rc.prID, rc.meta); err != nil {
		return errorResult("set metadata: %v", err)
	}

	if rc.cfg.AttributionTag != "" {
		hasTag, err := rc.o.Store.HasReviewTag(rc.ctx, rc.project, rc.repo, rc.prID)
		if err != nil {
			log.Printf("orchestrator[%s]: check review tag for PR %d: %v", rc.correlationID, rc.prID, err)
		} else if !hasTag {
			if err := rc.o.Store.AddReviewTag(rc.ctx, rc.project, rc.repo, rc.prID); err != nil {
				log.Printf("orchestrator[%s]: add review tag for PR %d: %v", rc.correlationID, rc.prID, err)
			}
		}
	}

	entry := model.ReviewHistoryEntry{
		ReviewNumber:         len(rc.history) + 1,
		ReviewedAtUtc:        rc.meta.ReviewedAtUtc,
		Action:               action,
		Verdict:              string(merged.Summary.Verdict),
		SourceCommit:         rc.pr.SourceCommit,
		Iteration:            rc.iteration,
		IsDraft:              rc.pr.IsDraft,
		InlineCommentsPosted: posted,
		FilesChanged:         len(files),
		Vote:                 vote,
		Metrics:              merged.Metrics,
	}
	if err := rc.o.Store.AppendHistory(rc.ctx, rc.project, rc.repo, rc.prID, entry); err != nil {
		return errorResult("append history: %v", err)
	}
	rc.appendPRDescriptionHistory(entry)

	// Step 11: severity counters and Rate Gate.
	errC, warnC, infoC := partitionBySeverity(merged.InlineComments)
	rc.recordRateGate()

	return Result{
		Status:         "Reviewed",
		Recommendation: recommendationString(merged.Summary.Verdict),
		IssueCount:     errC + warnC + infoC,
		ErrorCount:     errC,
		WarningCount:   warnC,
		InfoCount:      infoC,
		Vote:           vote,
		Summary:        summaryContent,
	}
}

// handleNoFiles implements spec.md §4.6.2 step 2's empty-file-set
// shortcut: auto-approve, skip every remaining step.
func (rc *reviewContext) handleNoFiles(action model.Action, reviewNumber int) Result {
	const autoVote = 10

	summaryContent := autoApprovedNoFilesSummary(action, reviewNumber, rc.prID)
	if err := rc.o.Store.PostCommentThread(rc.ctx, rc.project, rc.repo, rc.prID, summaryContent, model.ThreadClosed); err != nil {
		log.Printf("orchestrator[%s]: post summary comment for PR %d: %v", rc.correlationID, rc.prID, err)
	}

	var vote *int
	if !rc.pr.IsDraft && rc.cfg.AddReviewerVote {
		v := autoVote
		if err := rc.o.Store.AddReviewerVote(rc.ctx, rc.project, rc.repo, rc.prID, v); err == nil {
			vote = &v
		}
	}

	rc.meta.LastReviewedSourceCommit = rc.pr.SourceCommit
	rc.meta.LastReviewedTargetCommit = rc.pr.TargetCommit
	rc.meta.LastReviewedIteration = rc.iteration
	rc.meta.WasDraft = rc.pr.IsDraft
	rc.meta.ReviewedAtUtc = nowUTC()
	rc.meta.VoteSubmitted = rc.meta.VoteSubmitted || vote != nil
	rc.meta.ReviewCount = len(rc.history) + 1
	if err := rc.o.Store.SetMetadata(rc.ctx, rc.project, rc.repo, rc.prID, rc.meta); err != nil {
		return errorResult("set metadata: %v", err)
	}

	if rc.cfg.AttributionTag != "" {
		hasTag, err := rc.o.Store.HasReviewTag(rc.ctx, rc.project, rc.repo, rc.prID)
		if err != nil {
			log.Printf("orchestrator[%s]: check review tag for PR %d: %v", rc.correlationID, rc.prID, err)
		} else if !hasTag {
			if err := rc.o.Store.AddReviewTag(rc.ctx, rc.project, rc.repo, rc.prID); err != nil {
				log.Printf("orchestrator[%s]: add review tag for PR %d: %v", rc.correlationID, rc.prID, err)
			}
		}
	}

	entry := model.ReviewHistoryEntry{
		ReviewNumber:         len(rc.history) + 1,
		ReviewedAtUtc:        rc.meta.ReviewedAtUtc,
		Action:               action,
		Verdict:              "Approved (auto — no files)",
		SourceCommit:         rc.pr.SourceCommit,
		Iteration:            rc.iteration,
		IsDraft:              rc.pr.IsDraft,
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
		Recommendation: recommendationString(model.VerdictApproved),
		Vote:           vote,
		Summary:        summaryContent,
	}
}

// partitionBySeverity implements spec.md §4.6.2 step 11's severity
// counters: error={Bug, Security}, warning={Concern, Performance},
// info=everything else.
func partitionBySeverity(comments []model.InlineComment) (errorCount, warningCount, infoCount int) {
	for _, c := range comments {
		switch c.LeadIn {
		case model.LeadInBug, model.LeadInSecurity:
			errorCount++
		case model.LeadInConcern, model.LeadInPerformance:
			warningCount++
		default:
			infoCount++
		}
	}
	return
}
