package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/wesm/prreviewer/internal/model"
)

// reviewFilesFannedOut implements spec.md §4.6.2 step 3 and §5's
// "bounded worker pool of size M" for per-file fan-out: results are
// stored into a pre-sized slot array indexed by input file position,
// so downstream merge always follows input order regardless of which
// worker finishes first.
//
// allFailed reports whether every file's provider call failed — the
// boundary case spec.md §8 treats as fatal rather than the usual
// per-file sentinel substitution.
func (o *Orchestrator) reviewFilesFannedOut(ctx context.Context, pr model.PullRequestSnapshot, files []model.FileChange, maxParallel int) (results []model.ReviewResult, allFailed bool) {
	total := len(files)
	results = make([]model.ReviewResult, total)
	failed := make([]bool, total)

	m := maxParallel
	if m < 1 {
		m = 1
	}

	sem := make(chan struct{}, m)
	var wg sync.WaitGroup
	wg.Add(total)

	for i, f := range files {
		i, f := i, f
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			r, err := o.ProviderPort.ReviewOne(ctx, pr, f, total)
			if err != nil {
				results[i] = sentinelResult(f.Path, err)
				failed[i] = true
				return
			}
			results[i] = r
		}()
	}
	wg.Wait()

	if total == 0 {
		return results, false
	}
	allFailed = true
	for _, f := range failed {
		if !f {
			allFailed = false
			break
		}
	}
	return results, allFailed
}

func firstFileError(files []model.FileChange, results []model.ReviewResult) error {
	for i, r := range results {
		for _, fr := range r.FileReviews {
			if fr.Verdict == model.VerdictConcern {
				return fmt.Errorf("%s: %s", files[i].Path, fr.ReviewText)
			}
		}
	}
	return fmt.Errorf("all per-file reviews failed")
}
