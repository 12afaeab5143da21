// Package providertest offers a predictable Provider fake for tests in
// internal/consensus, internal/orchestrator, and internal/validator,
// mirroring internal/agent's TestAgent fixture.
package providertest

import (
	"context"
	"fmt"
	"time"

	"github.com/wesm/prreviewer/internal/model"
	"github.com/wesm/prreviewer/internal/provider"
)

// Fake is a mock Provider that returns fixed, configurable output.
type Fake struct {
	NameVal string
	Delay   time.Duration
	Fail    bool

	// Result is returned from both ReviewAll and ReviewOne verbatim
	// (tests that need per-file variation should set PerFile instead).
	Result model.ReviewResult

	// PerFile, when non-nil, is consulted by ReviewOne keyed by
	// file.Path; falls back to Result when a path has no entry.
	PerFile map[string]model.ReviewResult

	// Verifications is returned from VerifyResolutions verbatim.
	Verifications []provider.VerificationResult
}

var _ provider.Provider = (*Fake)(nil)

func (f *Fake) Name() string {
	if f.NameVal == "" {
		return "fake"
	}
	return f.NameVal
}

func (f *Fake) wait(ctx context.Context) error {
	if f.Delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(f.Delay):
		return nil
	}
}

func (f *Fake) ReviewAll(ctx context.Context, pr model.PullRequestSnapshot, files []model.FileChange) (model.ReviewResult, error) {
	if err := f.wait(ctx); err != nil {
		return model.ReviewResult{}, err
	}
	if f.Fail {
		return model.ReviewResult{}, fmt.Errorf("fake provider %s configured to fail", f.Name())
	}
	return f.Result, nil
}

func (f *Fake) ReviewOne(ctx context.Context, pr model.PullRequestSnapshot, file model.FileChange, totalFilesInPr int) (model.ReviewResult, error) {
	if err := f.wait(ctx); err != nil {
		return model.ReviewResult{}, err
	}
	if f.Fail {
		return model.ReviewResult{}, fmt.Errorf("fake provider %s configured to fail", f.Name())
	}
	if f.PerFile != nil {
		if r, ok := f.PerFile[file.Path]; ok {
			return r, nil
		}
	}
	return f.Result, nil
}

func (f *Fake) VerifyResolutions(ctx context.Context, candidates []provider.VerificationCandidate) ([]provider.VerificationResult, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.Fail {
		return nil, fmt.Errorf("fake provider %s configured to fail", f.Name())
	}
	return f.Verifications, nil
}
