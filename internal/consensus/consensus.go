// Package consensus implements the Consensus Aggregator: a Provider
// Port that wraps N named Provider Ports, fanning out with
// per-provider isolation and merging their output by overlap, worst
// verdict, and majority vote. See spec.md §4.4.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/wesm/prreviewer/internal/model"
	"github.com/wesm/prreviewer/internal/provider"
)

// Aggregator wraps N named providers behind the Provider Port
// interface, fanning out per request the way internal/review/batch.go
// fans out agent x reviewType jobs: goroutines plus a pre-sized result
// slice indexed by input position.
type Aggregator struct {
	providers []provider.Provider
	threshold int
}

var _ provider.Provider = (*Aggregator)(nil)

// New builds an Aggregator over providers with the given consensus
// threshold, clamped to [1, len(providers)].
func New(providers []provider.Provider, threshold int) *Aggregator {
	if threshold < 1 {
		threshold = 1
	}
	if threshold > len(providers) {
		threshold = len(providers)
	}
	return &Aggregator{providers: providers, threshold: threshold}
}

// Name concatenates per-provider names joined by "+", per spec.md §4.4.
func (a *Aggregator) Name() string {
	names := make([]string, len(a.providers))
	for i, p := range a.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, "+")
}

// outcome holds one provider's result or error for a single fan-out
// call, stored into a pre-sized slot array indexed by provider
// position — merge order follows that input order, per spec.md §5.
type outcome[T any] struct {
	provider string
	value    T
	err      error
}

// fanOut invokes call against every provider concurrently, isolating
// each failure into its own outcome slot. Returns every slot (in
// provider order, failed ones carrying their error) and an aggregate
// error if and only if every call failed.
func fanOut[T any](providers []provider.Provider, call func(p provider.Provider) (T, error)) ([]outcome[T], error) {
	outcomes := make([]outcome[T], len(providers))
	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(idx int, p provider.Provider) {
			defer wg.Done()
			v, err := call(p)
			outcomes[idx] = outcome[T]{provider: p.Name(), value: v, err: err}
		}(i, p)
	}
	wg.Wait()

	survived := 0
	var causes []string
	for _, o := range outcomes {
		if o.err == nil {
			survived++
		} else {
			causes = append(causes, fmt.Sprintf("%s: %v", o.provider, o.err))
			log.Printf("consensus: provider %s failed: %v", o.provider, o.err)
		}
	}
	if survived == 0 {
		return outcomes, fmt.Errorf("consensus: all %d providers failed: %s", len(providers), strings.Join(causes, "; "))
	}
	return outcomes, nil
}

// ReviewAll fans out to every wrapped provider and merges surviving
// ReviewResults.
func (a *Aggregator) ReviewAll(ctx context.Context, pr model.PullRequestSnapshot, files []model.FileChange) (model.ReviewResult, error) {
	outcomes, err := fanOut(a.providers, func(p provider.Provider) (model.ReviewResult, error) {
		return p.ReviewAll(ctx, pr, files)
	})
	if err != nil {
		return model.ReviewResult{}, err
	}
	return a.mergeResults(outcomes), nil
}

// ReviewOne fans out a single-file review to every wrapped provider
// and merges surviving ReviewResults.
func (a *Aggregator) ReviewOne(ctx context.Context, pr model.PullRequestSnapshot, file model.FileChange, totalFilesInPr int) (model.ReviewResult, error) {
	outcomes, err := fanOut(a.providers, func(p provider.Provider) (model.ReviewResult, error) {
		return p.ReviewOne(ctx, pr, file, totalFilesInPr)
	})
	if err != nil {
		return model.ReviewResult{}, err
	}
	return a.mergeResults(outcomes), nil
}

// survivingNames returns provider names (in slot order) that did not
// error.
func survivingNames[T any](outcomes []outcome[T]) []string {
	var names []string
	for _, o := range outcomes {
		if o.err == nil {
			names = append(names, o.provider)
		}
	}
	return names
}

func (a *Aggregator) mergeResults(outcomes []outcome[model.ReviewResult]) model.ReviewResult {
	var surviving []struct {
		name   string
		result model.ReviewResult
	}
	for _, o := range outcomes {
		if o.err == nil {
			surviving = append(surviving, struct {
				name   string
				result model.ReviewResult
			}{o.provider, o.value})
		}
	}

	merged := model.ReviewResult{
		Summary: surviving[0].result.Summary,
	}
	merged.RecommendedVote = surviving[0].result.RecommendedVote

	var pool []model.InlineComment
	fileReviewByPath := make(map[string]model.FileReview)
	seenObs := make(map[string]bool)
	var observations []string

	for _, s := range surviving {
		r := s.result
		if model.Severer(r.Summary.Verdict, merged.Summary.Verdict) {
			merged.Summary = r.Summary
		}
		if r.RecommendedVote < merged.RecommendedVote {
			merged.RecommendedVote = r.RecommendedVote
		}
		for _, c := range r.InlineComments {
			c.SourceProviders = []string{s.name}
			pool = append(pool, c)
		}
		for _, fr := range r.FileReviews {
			if existing, ok := fileReviewByPath[fr.Path]; !ok || model.Severer(fr.Verdict, existing.Verdict) {
				fileReviewByPath[fr.Path] = fr
			}
		}
		for _, obs := range r.Observations {
			key := strings.ToLower(obs)
			if !seenObs[key] {
				seenObs[key] = true
				observations = append(observations, obs)
			}
		}

		merged.Metrics.PromptTokens += r.Metrics.PromptTokens
		merged.Metrics.CompletionTokens += r.Metrics.CompletionTokens
		merged.Metrics.TotalTokens += r.Metrics.TotalTokens
		if r.Metrics.AIDurationMs > merged.Metrics.AIDurationMs {
			merged.Metrics.AIDurationMs = r.Metrics.AIDurationMs
		}
	}

	merged.Summary.Description = fmt.Sprintf("[Consensus from %d providers] %s", len(surviving), merged.Summary.Description)
	merged.Observations = observations

	merged.FileReviews = make([]model.FileReview, 0, len(fileReviewByPath))
	for _, fr := range fileReviewByPath {
		merged.FileReviews = append(merged.FileReviews, fr)
	}
	sort.Slice(merged.FileReviews, func(i, j int) bool { return merged.FileReviews[i].Path < merged.FileReviews[j].Path })

	merged.InlineComments = a.mergeComments(pool)

	names := make([]string, len(surviving))
	for i, s := range surviving {
		names[i] = s.name
	}
	merged.Metrics.ModelName = strings.Join(names, "+")

	return merged
}

// overlaps reports whether two comments overlap per spec.md §4.4:
// case-insensitive path match, and line ranges intersecting within a
// ±3-line tolerance.
func overlaps(a, b model.InlineComment) bool {
	if !strings.EqualFold(a.Path, b.Path) {
		return false
	}
	return a.StartLine <= b.EndLine+3 && b.StartLine <= a.EndLine+3
}

// mergeComments greedily clusters the comment pool by overlap,
// keeping clusters whose distinct-provider count reaches the
// threshold, per spec.md §4.4.
func (a *Aggregator) mergeComments(pool []model.InlineComment) []model.InlineComment {
	used := make([]bool, len(pool))
	var result []model.InlineComment

	for i := range pool {
		if used[i] {
			continue
		}
		anchor := pool[i]
		used[i] = true
		cluster := []model.InlineComment{anchor}
		providersInCluster := map[string]bool{anchor.SourceProviders[0]: true}

		for j := i + 1; j < len(pool); j++ {
			if used[j] {
				continue
			}
			cand := pool[j]
			candProvider := cand.SourceProviders[0]
			if providersInCluster[candProvider] {
				continue // only a *different* provider may join, per spec.md §4.4
			}
			if !overlaps(anchor, cand) {
				continue
			}
			used[j] = true
			cluster = append(cluster, cand)
			providersInCluster[candProvider] = true
		}

		if len(providersInCluster) < a.threshold {
			continue
		}

		result = append(result, representComment(cluster, providersInCluster))
	}

	return result
}

// representComment builds the cluster's representative comment: the
// anchor's fields, with the comment text prefixed by provenance tags
// in a stable, sorted order.
func representComment(cluster []model.InlineComment, providers map[string]bool) model.InlineComment {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)

	rep := cluster[0]
	rep.Comment = fmt.Sprintf("[%s] %s", strings.Join(names, "+"), rep.Comment)
	rep.SourceProviders = names
	return rep
}

// ErrNoVerificationCandidates is returned when VerifyResolutions is
// called with an empty candidate list.
var ErrNoVerificationCandidates = errors.New("consensus: no verification candidates")

// VerifyResolutions fans out to every wrapped provider and tallies a
// strict majority vote per candidate thread, per spec.md §4.4.
func (a *Aggregator) VerifyResolutions(ctx context.Context, candidates []provider.VerificationCandidate) ([]provider.VerificationResult, error) {
	if len(candidates) == 0 {
		return nil, ErrNoVerificationCandidates
	}

	outcomes, err := fanOut(a.providers, func(p provider.Provider) ([]provider.VerificationResult, error) {
		return p.VerifyResolutions(ctx, candidates)
	})
	if err != nil {
		return nil, err
	}

	type tally struct {
		fixedVotes int
		totalVotes int
		reasons    []string
	}
	tallies := make(map[string]*tally)
	for _, c := range candidates {
		tallies[c.ThreadID] = &tally{}
	}

	for _, o := range outcomes {
		if o.err != nil {
			continue
		}
		for _, v := range o.value {
			t, ok := tallies[v.ThreadID]
			if !ok {
				continue
			}
			t.totalVotes++
			if v.IsFixed {
				t.fixedVotes++
			}
			t.reasons = append(t.reasons, fmt.Sprintf("%s: %s", o.provider, v.Reasoning))
		}
	}

	results := make([]provider.VerificationResult, 0, len(candidates))
	for _, c := range candidates {
		t := tallies[c.ThreadID]
		isFixed := t.totalVotes > 0 && t.fixedVotes > t.totalVotes/2
		reasoning := fmt.Sprintf("Consensus: %d/%d providers say fixed. %s", t.fixedVotes, t.totalVotes, strings.Join(t.reasons, " | "))
		results = append(results, provider.VerificationResult{
			ThreadID:  c.ThreadID,
			IsFixed:   isFixed,
			Reasoning: reasoning,
		})
	}
	return results, nil
}
