package consensus

import (
	"context"
	"strings"
	"testing"

	"github.com/wesm/prreviewer/internal/model"
	"github.com/wesm/prreviewer/internal/provider"
	"github.com/wesm/prreviewer/internal/provider/providertest"
)

func TestReviewAllAllProvidersFail(t *testing.T) {
	a := New([]provider.Provider{
		&providertest.Fake{NameVal: "A", Fail: true},
		&providertest.Fake{NameVal: "B", Fail: true},
	}, 1)

	_, err := a.ReviewAll(context.Background(), model.PullRequestSnapshot{}, nil)
	if err == nil {
		t.Fatal("expected aggregate error when all providers fail")
	}
}

func TestReviewAllPartialFailureSurvives(t *testing.T) {
	a := New([]provider.Provider{
		&providertest.Fake{NameVal: "A", Fail: true},
		&providertest.Fake{NameVal: "B", Result: model.ReviewResult{
			Summary:         model.ReviewSummary{Verdict: model.VerdictApproved},
			RecommendedVote: 10,
		}},
	}, 1)

	result, err := a.ReviewAll(context.Background(), model.PullRequestSnapshot{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RecommendedVote != 10 {
		t.Errorf("RecommendedVote = %d, want 10", result.RecommendedVote)
	}
}

func TestReviewAllWorstVerdictWins(t *testing.T) {
	a := New([]provider.Provider{
		&providertest.Fake{NameVal: "A", Result: model.ReviewResult{
			Summary:         model.ReviewSummary{Verdict: model.VerdictApproved, Description: "fine"},
			RecommendedVote: 10,
		}},
		&providertest.Fake{NameVal: "B", Result: model.ReviewResult{
			Summary:         model.ReviewSummary{Verdict: model.VerdictRejected, Description: "bad"},
			RecommendedVote: -10,
		}},
	}, 1)

	result, err := a.ReviewAll(context.Background(), model.PullRequestSnapshot{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Summary.Verdict != model.VerdictRejected {
		t.Errorf("Verdict = %q, want REJECTED", result.Summary.Verdict)
	}
	if result.RecommendedVote != -10 {
		t.Errorf("RecommendedVote = %d, want -10 (minimum across providers)", result.RecommendedVote)
	}
	if !strings.HasPrefix(result.Summary.Description, "[Consensus from 2 providers]") {
		t.Errorf("Description = %q, want consensus prefix", result.Summary.Description)
	}
}

func TestMergeCommentsOverlapThreshold(t *testing.T) {
	// Scenario 5 from spec.md §8: two providers flag the same file,
	// lines 5-10 and 6-11 respectively, threshold=2.
	a := New([]provider.Provider{
		&providertest.Fake{NameVal: "ProviderA", Result: model.ReviewResult{
			Summary:         model.ReviewSummary{Verdict: model.VerdictNeedsWork},
			RecommendedVote: -5,
			InlineComments: []model.InlineComment{
				{Path: "f.go", StartLine: 5, EndLine: 10, Comment: "looks risky"},
			},
		}},
		&providertest.Fake{NameVal: "ProviderB", Result: model.ReviewResult{
			Summary:         model.ReviewSummary{Verdict: model.VerdictApprovedSuggestions},
			RecommendedVote: 5,
			InlineComments: []model.InlineComment{
				{Path: "f.go", StartLine: 6, EndLine: 11, Comment: "looks risky"},
			},
		}},
	}, 2)

	result, err := a.ReviewAll(context.Background(), model.PullRequestSnapshot{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.InlineComments) != 1 {
		t.Fatalf("expected one merged comment, got %d: %+v", len(result.InlineComments), result.InlineComments)
	}
	c := result.InlineComments[0]
	if !strings.HasPrefix(c.Comment, "[ProviderA+ProviderB]") {
		t.Errorf("Comment = %q, want provenance prefix", c.Comment)
	}
	if result.RecommendedVote != -5 {
		t.Errorf("RecommendedVote = %d, want -5 (min of -5, 5)", result.RecommendedVote)
	}
	if result.Summary.Verdict != model.VerdictNeedsWork {
		t.Errorf("Verdict = %q, want NEEDS WORK (harsher)", result.Summary.Verdict)
	}
}

func TestMergeCommentsThresholdOneKeepsEverything(t *testing.T) {
	a := New([]provider.Provider{
		&providertest.Fake{NameVal: "A", Result: model.ReviewResult{
			InlineComments: []model.InlineComment{{Path: "f.go", StartLine: 1, EndLine: 2, Comment: "x"}},
		}},
		&providertest.Fake{NameVal: "B", Result: model.ReviewResult{
			InlineComments: []model.InlineComment{{Path: "g.go", StartLine: 1, EndLine: 2, Comment: "y"}},
		}},
	}, 1)

	result, err := a.ReviewAll(context.Background(), model.PullRequestSnapshot{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.InlineComments) != 2 {
		t.Fatalf("expected both non-overlapping comments to survive at threshold=1, got %d", len(result.InlineComments))
	}
}

func TestMergeCommentsThresholdNRequiresAllProviders(t *testing.T) {
	a := New([]provider.Provider{
		&providertest.Fake{NameVal: "A", Result: model.ReviewResult{
			InlineComments: []model.InlineComment{{Path: "f.go", StartLine: 5, EndLine: 5, Comment: "x"}},
		}},
		&providertest.Fake{NameVal: "B", Result: model.ReviewResult{
			InlineComments: []model.InlineComment{{Path: "g.go", StartLine: 5, EndLine: 5, Comment: "y"}},
		}},
	}, 2)

	result, err := a.ReviewAll(context.Background(), model.PullRequestSnapshot{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.InlineComments) != 0 {
		t.Errorf("expected non-overlapping single-provider comments to be dropped at threshold=2, got %d", len(result.InlineComments))
	}
}

func TestVerifyResolutionsMajority(t *testing.T) {
	// Scenario 6 from spec.md §8: three providers vote on two
	// candidates: thread-1 fixed by {A,B}, thread-2 fixed by {B} only.
	a := New([]provider.Provider{
		&providertest.Fake{NameVal: "A", Verifications: []provider.VerificationResult{
			{ThreadID: "thread-1", IsFixed: true, Reasoning: "looks fixed"},
			{ThreadID: "thread-2", IsFixed: false, Reasoning: "still broken"},
		}},
		&providertest.Fake{NameVal: "B", Verifications: []provider.VerificationResult{
			{ThreadID: "thread-1", IsFixed: true, Reasoning: "fixed"},
			{ThreadID: "thread-2", IsFixed: true, Reasoning: "fixed"},
		}},
		&providertest.Fake{NameVal: "C", Verifications: []provider.VerificationResult{
			{ThreadID: "thread-1", IsFixed: false, Reasoning: "not sure"},
			{ThreadID: "thread-2", IsFixed: false, Reasoning: "nope"},
		}},
	}, 1)

	candidates := []provider.VerificationCandidate{
		{ThreadID: "thread-1", Path: "f.go"},
		{ThreadID: "thread-2", Path: "f.go"},
	}

	results, err := a.VerifyResolutions(context.Background(), candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byID := make(map[string]provider.VerificationResult)
	for _, r := range results {
		byID[r.ThreadID] = r
	}

	if !byID["thread-1"].IsFixed {
		t.Error("expected thread-1 isFixed=true (2/3 majority)")
	}
	if !strings.HasPrefix(byID["thread-1"].Reasoning, "Consensus: 2/3") {
		t.Errorf("thread-1 reasoning = %q, want prefix 'Consensus: 2/3'", byID["thread-1"].Reasoning)
	}

	if byID["thread-2"].IsFixed {
		t.Error("expected thread-2 isFixed=false (1/3, not strict majority)")
	}
	if !strings.HasPrefix(byID["thread-2"].Reasoning, "Consensus: 1/3") {
		t.Errorf("thread-2 reasoning = %q, want prefix 'Consensus: 1/3'", byID["thread-2"].Reasoning)
	}
}

func TestVerifyResolutionsEmptyCandidates(t *testing.T) {
	a := New([]provider.Provider{&providertest.Fake{NameVal: "A"}}, 1)
	_, err := a.VerifyResolutions(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for empty candidate list")
	}
}

func TestAggregatorName(t *testing.T) {
	a := New([]provider.Provider{
		&providertest.Fake{NameVal: "A"},
		&providertest.Fake{NameVal: "B"},
	}, 1)
	if got := a.Name(); got != "A+B" {
		t.Errorf("Name() = %q, want A+B", got)
	}
}
