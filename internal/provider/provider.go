// Package provider defines the Provider Port: the abstract contract
// for a single LLM reviewer, plus a type-tag-keyed registry of
// constructors. See spec.md §4.3, §9 "Dynamic dispatch on providers."
package provider

import (
	"context"
	"fmt"

	"github.com/wesm/prreviewer/internal/config"
	"github.com/wesm/prreviewer/internal/model"
)

// VerificationCandidate is one prior thread offered to VerifyResolutions,
// together with the code context the provider needs to judge whether
// it has been addressed.
type VerificationCandidate struct {
	ThreadID    string
	Path        string
	Content     string
	CodeContext string
}

// VerificationResult is one provider's judgment on a single candidate.
type VerificationResult struct {
	ThreadID  string
	IsFixed   bool
	Reasoning string
}

// Provider is the narrow polymorphic interface every LLM reviewer
// implementation and the Consensus Aggregator both satisfy, per
// spec.md §4.3 and §9's "no runtime reflection" dynamic-dispatch note.
type Provider interface {
	// Name identifies this provider for provenance prefixing and
	// metrics (e.g. "azure-openai-gpt4").
	Name() string

	ReviewAll(ctx context.Context, pr model.PullRequestSnapshot, files []model.FileChange) (model.ReviewResult, error)
	ReviewOne(ctx context.Context, pr model.PullRequestSnapshot, file model.FileChange, totalFilesInPr int) (model.ReviewResult, error)
	VerifyResolutions(ctx context.Context, candidates []VerificationCandidate) ([]VerificationResult, error)
}

// Constructor builds a Provider from one configured provider entry.
// Registered per provider type tag; see spec.md §9's "Provider
// registry."
type Constructor func(cfg config.ProviderConfig) (Provider, error)

// registry holds provider constructors keyed by their config type tag
// (e.g. "azure-openai"), generalized from internal/agent's Agent
// registry (Register/Get/GetAvailable) to remote LLM providers
// instead of local CLI agents.
var registry = make(map[string]Constructor)

// Register adds a constructor under the given type tag. Intended to be
// called from each concrete provider implementation's init().
func Register(typeTag string, ctor Constructor) {
	registry[typeTag] = ctor
}

// KnownTypes returns the set of registered type tags, for
// config.Config.Validate's knownProviderTypes argument.
func KnownTypes() map[string]bool {
	known := make(map[string]bool, len(registry))
	for tag := range registry {
		known[tag] = true
	}
	return known
}

// Build constructs a Provider from a configured entry. Unknown type
// tags fail construction with a precise message, per spec.md §9.
func Build(cfg config.ProviderConfig) (Provider, error) {
	ctor, ok := registry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("provider: unknown type tag %q for provider %q", cfg.Type, cfg.DisplayName)
	}
	return ctor(cfg)
}

// BuildAll constructs one Provider per enabled entry in cfgs, in
// order. Construction failure on any entry aborts the whole build —
// unlike per-call provider failures during review (spec.md §4.4's
// fan-out discipline), a misconfigured provider is a startup error.
func BuildAll(cfgs []config.ProviderConfig) ([]Provider, error) {
	var out []Provider
	for _, c := range cfgs {
		if !c.Enabled {
			continue
		}
		p, err := Build(c)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
