package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/wesm/prreviewer/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reviews.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetPRMissingReturnsZeroValue(t *testing.T) {
	s := newTestStore(t)
	pr, err := s.GetPR(context.Background(), "proj", "repo", 1)
	if err != nil {
		t.Fatalf("GetPR: %v", err)
	}
	if pr.Title != "" || pr.SourceCommit != "" {
		t.Errorf("expected zero-value PR for a missing row, got %+v", pr)
	}
}

func TestSetAndGetPRRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := model.PullRequestSnapshot{
		PRID:         7,
		Title:        "Add feature",
		Description:  "does the thing",
		SourceBranch: "feature/x",
		TargetBranch: "main",
		Author:       "alice",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		IsDraft:      true,
		SourceCommit: "abc123",
		TargetCommit: "def456",
		Reviewers: []model.Reviewer{
			{ID: "u1", DisplayName: "Bob", Vote: 5},
		},
	}
	if err := s.SetPR(ctx, "proj", "repo", want); err != nil {
		t.Fatalf("SetPR: %v", err)
	}

	got, err := s.GetPR(ctx, "proj", "repo", 7)
	if err != nil {
		t.Fatalf("GetPR: %v", err)
	}
	if got.Title != want.Title || got.SourceCommit != want.SourceCommit || !got.IsDraft {
		t.Errorf("GetPR round-trip = %+v, want %+v", got, want)
	}
	if len(got.Reviewers) != 1 || got.Reviewers[0].Vote != 5 {
		t.Errorf("Reviewers = %+v, want one reviewer with vote 5", got.Reviewers)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta := model.ReviewMetadata{
		LastReviewedSourceCommit: "abc123",
		LastReviewedIteration:    2,
		WasDraft:                 true,
		ReviewedAtUtc:            time.Now().UTC().Truncate(time.Second),
		VoteSubmitted:            true,
		ReviewCount:              3,
	}
	if err := s.SetMetadata(ctx, "proj", "repo", 1, meta); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	got, err := s.GetMetadata(ctx, "proj", "repo", 1)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if got.LastReviewedSourceCommit != meta.LastReviewedSourceCommit || got.ReviewCount != meta.ReviewCount {
		t.Errorf("GetMetadata = %+v, want %+v", got, meta)
	}
}

func TestHistoryAppendAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		vote := 10
		entry := model.ReviewHistoryEntry{
			ReviewNumber:  i,
			ReviewedAtUtc: time.Now().UTC(),
			Action:        model.ActionFullReview,
			SourceCommit:  "c" + string(rune('0'+i)),
			Vote:          &vote,
		}
		if err := s.AppendHistory(ctx, "proj", "repo", 1, entry); err != nil {
			t.Fatalf("AppendHistory %d: %v", i, err)
		}
	}

	history, err := s.GetHistory(ctx, "proj", "repo", 1)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(history))
	}
	for i, e := range history {
		if e.ReviewNumber != i+1 {
			t.Errorf("history[%d].ReviewNumber = %d, want %d", i, e.ReviewNumber, i+1)
		}
		if e.Vote == nil || *e.Vote != 10 {
			t.Errorf("history[%d].Vote = %v, want 10", i, e.Vote)
		}
	}
}

func TestFileChangesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	content := "line1\nline2\n"
	files := []model.FileChange{
		{Path: "a.go", ChangeType: model.ChangeEdit, ModifiedContent: &content, ChangedLineRanges: []model.LineRange{{Start: 1, End: 2}}},
		{Path: "b.go", ChangeType: model.ChangeDelete},
	}
	if err := s.SetFileChanges(ctx, "proj", "repo", 1, files); err != nil {
		t.Fatalf("SetFileChanges: %v", err)
	}

	got, err := s.GetFileChanges(ctx, "proj", "repo", 1, model.PullRequestSnapshot{})
	if err != nil {
		t.Fatalf("GetFileChanges: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].Path != "a.go" || got[0].ModifiedContent == nil || *got[0].ModifiedContent != content {
		t.Errorf("got[0] = %+v", got[0])
	}
	if len(got[0].ChangedLineRanges) != 1 || got[0].ChangedLineRanges[0].End != 2 {
		t.Errorf("got[0].ChangedLineRanges = %+v", got[0].ChangedLineRanges)
	}
	if got[1].Path != "b.go" || got[1].ModifiedContent != nil {
		t.Errorf("got[1] = %+v, want nil ModifiedContent for a delete", got[1])
	}
}

func TestCommentThreadsAndDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PostInlineCommentThread(ctx, "proj", "repo", 1, "a.go", 2, 2, "tagged [ai-review]", model.ThreadActive); err != nil {
		t.Fatalf("PostInlineCommentThread: %v", err)
	}
	if err := s.PostCommentThread(ctx, "proj", "repo", 1, "## Code Review", model.ThreadClosed); err != nil {
		t.Fatalf("PostCommentThread: %v", err)
	}

	threads, err := s.GetExistingThreads(ctx, "proj", "repo", 1, "ai-review")
	if err != nil {
		t.Fatalf("GetExistingThreads: %v", err)
	}
	if len(threads) != 1 || threads[0].Path != "a.go" {
		t.Fatalf("GetExistingThreads(tag) = %+v, want one inline thread", threads)
	}

	all, err := s.GetExistingThreads(ctx, "proj", "repo", 1, "")
	if err != nil {
		t.Fatalf("GetExistingThreads(all): %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(all) = %d, want 2 (inline + summary)", len(all))
	}

	if err := s.UpdateThreadStatus(ctx, "proj", "repo", 1, threads[0].ThreadID, model.ThreadFixed); err != nil {
		t.Fatalf("UpdateThreadStatus: %v", err)
	}
	updated, err := s.GetExistingThreads(ctx, "proj", "repo", 1, "ai-review")
	if err != nil {
		t.Fatalf("GetExistingThreads after update: %v", err)
	}
	if updated[0].Status != model.ThreadFixed {
		t.Errorf("Status after update = %v, want ThreadFixed", updated[0].Status)
	}

	count, err := s.CountSummaryComments(ctx, "proj", "repo", 1)
	if err != nil {
		t.Fatalf("CountSummaryComments: %v", err)
	}
	if count != 1 {
		t.Errorf("CountSummaryComments = %d, want 1", count)
	}
}

func TestReviewTagAndVoteAndDescription(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tagged, err := s.HasReviewTag(ctx, "proj", "repo", 1)
	if err != nil || tagged {
		t.Fatalf("HasReviewTag before tagging = %v, %v", tagged, err)
	}
	if err := s.AddReviewTag(ctx, "proj", "repo", 1); err != nil {
		t.Fatalf("AddReviewTag: %v", err)
	}
	tagged, err = s.HasReviewTag(ctx, "proj", "repo", 1)
	if err != nil || !tagged {
		t.Fatalf("HasReviewTag after tagging = %v, %v", tagged, err)
	}

	if err := s.AddReviewerVote(ctx, "proj", "repo", 1, 10); err != nil {
		t.Fatalf("AddReviewerVote: %v", err)
	}

	if err := s.UpdatePRDescription(ctx, "proj", "repo", 1, "new description"); err != nil {
		t.Fatalf("UpdatePRDescription: %v", err)
	}
}
