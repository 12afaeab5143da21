package provider

import (
	"context"
	"testing"

	"github.com/wesm/prreviewer/internal/config"
	"github.com/wesm/prreviewer/internal/model"
)

type stubProvider struct{ name string }

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) ReviewAll(ctx context.Context, pr model.PullRequestSnapshot, files []model.FileChange) (model.ReviewResult, error) {
	return model.ReviewResult{}, nil
}
func (s *stubProvider) ReviewOne(ctx context.Context, pr model.PullRequestSnapshot, file model.FileChange, totalFilesInPr int) (model.ReviewResult, error) {
	return model.ReviewResult{}, nil
}
func (s *stubProvider) VerifyResolutions(ctx context.Context, candidates []VerificationCandidate) ([]VerificationResult, error) {
	return nil, nil
}

func TestBuildUnknownTypeFails(t *testing.T) {
	_, err := Build(config.ProviderConfig{Type: "not-registered", DisplayName: "p1"})
	if err == nil {
		t.Fatal("expected error for unregistered type tag")
	}
}

func TestRegisterAndBuild(t *testing.T) {
	Register("stub-test-type", func(cfg config.ProviderConfig) (Provider, error) {
		return &stubProvider{name: cfg.DisplayName}, nil
	})

	p, err := Build(config.ProviderConfig{Type: "stub-test-type", DisplayName: "p1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "p1" {
		t.Errorf("Name() = %q, want p1", p.Name())
	}

	if !KnownTypes()["stub-test-type"] {
		t.Error("expected stub-test-type to be a known type")
	}
}

func TestBuildAllSkipsDisabled(t *testing.T) {
	Register("stub-test-type-2", func(cfg config.ProviderConfig) (Provider, error) {
		return &stubProvider{name: cfg.DisplayName}, nil
	})

	providers, err := BuildAll([]config.ProviderConfig{
		{Type: "stub-test-type-2", DisplayName: "enabled", Enabled: true},
		{Type: "stub-test-type-2", DisplayName: "disabled", Enabled: false},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(providers) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(providers))
	}
	if providers[0].Name() != "enabled" {
		t.Errorf("Name() = %q, want enabled", providers[0].Name())
	}
}

func TestBuildAllFailsOnMisconfiguredEntry(t *testing.T) {
	_, err := BuildAll([]config.ProviderConfig{
		{Type: "nonexistent-type", DisplayName: "bad", Enabled: true},
	})
	if err == nil {
		t.Fatal("expected error for misconfigured provider entry")
	}
}
