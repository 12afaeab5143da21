// Package orchestrator implements the Review Orchestrator: the
// Action-decision state machine and its four handlers. See spec.md
// §4.6. It is the only component that calls across all of Rate Gate,
// Provider Port, Comment Validator, and Review State Store boundaries.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wesm/prreviewer/internal/config"
	"github.com/wesm/prreviewer/internal/model"
	"github.com/wesm/prreviewer/internal/provider"
	"github.com/wesm/prreviewer/internal/rategate"
	"github.com/wesm/prreviewer/internal/statestore"
)

// Result is the orchestrator's response to one review request.
type Result struct {
	Status         string // "Reviewed", "Skipped", "RateLimited", "Error"
	ErrorMessage   string
	Vote           *int
	Recommendation string
	IssueCount     int // total across all three severity buckets below
	ErrorCount     int
	WarningCount   int
	InfoCount      int
	Summary        string
}

// Orchestrator wires the collaborators the core depends on. Org is
// the rate-gate key's organization component; the Review State Store
// contract itself is scoped by (project, repo, prID) only.
type Orchestrator struct {
	Org          string
	Store        statestore.Store
	ProviderPort provider.Provider
	RateGate     *rategate.Gate
	Config       config.Getter
}

// New constructs an Orchestrator from its collaborators.
func New(org string, store statestore.Store, p provider.Provider, gate *rategate.Gate, cfg config.Getter) *Orchestrator {
	return &Orchestrator{Org: org, Store: store, ProviderPort: p, RateGate: gate, Config: cfg}
}

// Review runs the state machine for one PR. It never panics or
// returns a non-nil error out of its top-level entry — any uncaught
// failure is converted to a Result with Status "Error", per spec.md
// §4.6.2's fatal-path handling.
func (o *Orchestrator) Review(ctx context.Context, project, repo string, prID int) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = errorResult("panic: %v", r)
		}
	}()
	return o.reviewInner(ctx, project, repo, prID)
}

func (o *Orchestrator) key(project, repo string, prID int) rategate.Key {
	return rategate.Key{Org: o.Org, Project: project, Repo: repo, PRID: prID}
}

func (o *Orchestrator) reviewInner(ctx context.Context, project, repo string, prID int) Result {
	cfg := o.Config.Config()
	k := o.key(project, repo, prID)

	check := o.RateGate.Check(k, cfg.RateGateIntervalMinutes)
	if !check.Allowed {
		return Result{
			Status:  "RateLimited",
			Summary: fmt.Sprintf("Rate-limited: try again in %d seconds", check.SecondsRemaining),
		}
	}

	p, err := o.Store.GetPR(ctx, project, repo, prID)
	if err != nil {
		return errorResult("get PR: %v", err)
	}
	meta, err := o.Store.GetMetadata(ctx, project, repo, prID)
	if err != nil {
		return errorResult("get metadata: %v", err)
	}
	history, err := o.Store.GetHistory(ctx, project, repo, prID)
	if err != nil {
		return errorResult("get history: %v", err)
	}
	iteration, err := o.Store.GetIterationCount(ctx, project, repo, prID)
	if err != nil {
		return errorResult("get iteration count: %v", err)
	}

	action := Decide(meta, p, cfg.AddReviewerVote)

	rc := &reviewContext{
		o: o, ctx: ctx, project: project, repo: repo, prID: prID,
		cfg: cfg, pr: p, meta: meta, history: history, iteration: iteration,
		correlationID: uuid.NewString(),
	}

	switch action {
	case model.ActionSkipped:
		return rc.handleSkip()
	case model.ActionVoteOnly:
		return rc.handleVoteOnly()
	case model.ActionFullReview:
		return rc.handleFullOrReReview(model.ActionFullReview)
	case model.ActionReReview:
		return rc.handleFullOrReReview(model.ActionReReview)
	default:
		return errorResult("unknown action %q", action)
	}
}

func errorResult(format string, args ...any) Result {
	return Result{Status: "Error", ErrorMessage: fmt.Sprintf(format, args...)}
}

// reviewContext bundles the state one handler invocation shares, so
// the handler methods in handlers.go and fullreview.go don't all carry
// the same eight parameters.
type reviewContext struct {
	o       *Orchestrator
	ctx     context.Context
	project string
	repo    string
	prID    int

	cfg       *config.Config
	pr        model.PullRequestSnapshot
	meta      model.ReviewMetadata
	history   []model.ReviewHistoryEntry
	iteration int

	// correlationID ties every log line this review pass emits
	// together, so a Recoverable peripheral failure (per spec.md §7)
	// can be traced back to the review that produced it.
	correlationID string
}

func (rc *reviewContext) recordRateGate() {
	rc.o.RateGate.Record(rc.o.key(rc.project, rc.repo, rc.prID))
}

func nowUTC() time.Time { return time.Now().UTC() }

// shortCommit truncates a commit identifier for display purposes.
func shortCommit(sha string) string {
	if len(sha) <= 8 {
		return sha
	}
	return sha[:8]
}

// recommendationString renders a Verdict in the external result
// shape's PascalCase-no-spaces convention (distinct from the internal
// Verdict domain's all-caps-with-spaces strings), per spec.md §4.6.2's
// VoteOnly example: recommendation:"ApprovedWithSuggestions".
func recommendationString(v model.Verdict) string {
	switch v {
	case model.VerdictApproved:
		return "Approved"
	case model.VerdictApprovedSuggestions:
		return "ApprovedWithSuggestions"
	case model.VerdictNeedsWork:
		return "NeedsWork"
	case model.VerdictRejected:
		return "Rejected"
	default:
		return "Approved"
	}
}
