package orchestrator

import (
	"strings"

	"github.com/wesm/prreviewer/internal/model"
)

// mergePerFileResults implements spec.md §4.6.2 step 4: combine one
// ReviewResult per file into a single whole-PR ReviewResult. Unlike
// the Consensus Aggregator's cross-provider merge (max duration, since
// provider calls ran in parallel), AI duration here is summed, since
// the per-file results being merged represent sequential work from the
// Orchestrator's point of view even though the fan-out itself runs
// concurrently.
func mergePerFileResults(results []model.ReviewResult, filesChanged int) model.ReviewResult {
	merged := model.ReviewResult{
		Summary: model.ReviewSummary{
			FilesChanged: filesChanged,
			Verdict:      model.VerdictApproved,
		},
		RecommendedVote: 10,
	}

	var descriptions []string
	var justifications []string
	seenObservations := make(map[string]bool)

	for i, r := range results {
		merged.Summary.EditsCount += r.Summary.EditsCount
		merged.Summary.AddsCount += r.Summary.AddsCount
		merged.Summary.DeletesCount += r.Summary.DeletesCount
		merged.Summary.Verdict = model.WorstVerdict(merged.Summary.Verdict, r.Summary.Verdict)

		if d := strings.TrimSpace(r.Summary.Description); d != "" {
			descriptions = append(descriptions, d)
		}
		if j := strings.TrimSpace(r.Summary.VerdictJustification); j != "" {
			justifications = append(justifications, j)
		}

		merged.FileReviews = append(merged.FileReviews, r.FileReviews...)
		merged.InlineComments = append(merged.InlineComments, r.InlineComments...)

		for _, obs := range r.Observations {
			key := strings.ToLower(strings.TrimSpace(obs))
			if key == "" || seenObservations[key] {
				continue
			}
			seenObservations[key] = true
			merged.Observations = append(merged.Observations, obs)
		}

		if i == 0 || r.RecommendedVote < merged.RecommendedVote {
			merged.RecommendedVote = r.RecommendedVote
		}

		merged.Metrics.PromptTokens += r.Metrics.PromptTokens
		merged.Metrics.CompletionTokens += r.Metrics.CompletionTokens
		merged.Metrics.TotalTokens += r.Metrics.TotalTokens
		merged.Metrics.AIDurationMs += r.Metrics.AIDurationMs
		if r.Metrics.ModelName != "" {
			if merged.Metrics.ModelName == "" {
				merged.Metrics.ModelName = r.Metrics.ModelName
			} else if !strings.Contains(merged.Metrics.ModelName, r.Metrics.ModelName) {
				merged.Metrics.ModelName += "+" + r.Metrics.ModelName
			}
		}
	}

	if len(results) == 0 {
		merged.RecommendedVote = 10
	}

	merged.Summary.Description = strings.Join(descriptions, "\n")
	merged.Summary.VerdictJustification = strings.Join(justifications, "\n")

	return merged
}

// sentinelResult implements spec.md §4.6.2 step 3: the per-file
// failure substitute, never escalating the overall verdict.
func sentinelResult(path string, err error) model.ReviewResult {
	return model.ReviewResult{
		Summary: model.ReviewSummary{Verdict: model.VerdictApproved},
		FileReviews: []model.FileReview{
			{Path: path, Verdict: model.VerdictConcern, ReviewText: "AI review failed: " + err.Error()},
		},
		RecommendedVote: 10,
	}
}
