// Package statestore defines the Review State Store collaborator
// contract: the core's only path to durable, platform-owned state.
// See spec.md §4.7. Concrete backends live in sqlitestore, pgstore,
// and githubstore.
package statestore

import (
	"context"

	"github.com/wesm/prreviewer/internal/model"
)

// Store is the full set of operations the orchestrator core consumes.
// Any implementation must honor them, including the "never raises on
// not found" contract for GetMetadata.
type Store interface {
	GetPR(ctx context.Context, project, repo string, prID int) (model.PullRequestSnapshot, error)
	GetIterationCount(ctx context.Context, project, repo string, prID int) (int, error)

	// GetMetadata returns zero-value metadata (never an error) when no
	// metadata has been stored for this PR yet.
	GetMetadata(ctx context.Context, project, repo string, prID int) (model.ReviewMetadata, error)
	SetMetadata(ctx context.Context, project, repo string, prID int, meta model.ReviewMetadata) error

	GetHistory(ctx context.Context, project, repo string, prID int) ([]model.ReviewHistoryEntry, error)
	AppendHistory(ctx context.Context, project, repo string, prID int, entry model.ReviewHistoryEntry) error

	GetExistingThreads(ctx context.Context, project, repo string, prID int, attributionTag string) ([]model.ExistingCommentThread, error)
	UpdateThreadStatus(ctx context.Context, project, repo string, prID int, threadID string, status model.ThreadStatus) error

	CountSummaryComments(ctx context.Context, project, repo string, prID int) (int, error)

	GetFileChanges(ctx context.Context, project, repo string, prID int, pr model.PullRequestSnapshot) ([]model.FileChange, error)

	PostCommentThread(ctx context.Context, project, repo string, prID int, content string, status model.ThreadStatus) error
	PostInlineCommentThread(ctx context.Context, project, repo string, prID int, path string, startLine, endLine int, content string, status model.ThreadStatus) error

	// AddReviewerVote may fail transiently; the orchestrator tolerates
	// a non-nil error here per spec.md §4.6.2.
	AddReviewerVote(ctx context.Context, project, repo string, prID int, vote int) error

	UpdatePRDescription(ctx context.Context, project, repo string, prID int, newDescription string) error

	HasReviewTag(ctx context.Context, project, repo string, prID int) (bool, error)
	AddReviewTag(ctx context.Context, project, repo string, prID int) error
}
