package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wesm/prreviewer/internal/model"
	"github.com/wesm/prreviewer/internal/statestore"
)

var _ statestore.Store = (*Store)(nil)

// Store implements statestore.Store over a shared Postgres database,
// for teams running the reviewer against a central server rather than
// a single machine's SQLite file.
type Store struct {
	pool *PgPool
}

// Open connects to Postgres at connString and ensures the schema is
// current.
func Open(ctx context.Context, connString string) (*Store, error) {
	pool, err := NewPgPool(ctx, connString, DefaultPgPoolConfig())
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) GetPR(ctx context.Context, project, repo string, prID int) (model.PullRequestSnapshot, error) {
	var pr model.PullRequestSnapshot
	pr.PRID = prID

	var createdAt time.Time
	row := s.pool.Pool().QueryRow(ctx, `
		SELECT title, description, source_branch, target_branch, author,
		       created_at, is_draft, source_commit, target_commit
		FROM prs WHERE project = $1 AND repo = $2 AND pr_id = $3`,
		project, repo, prID)
	err := row.Scan(&pr.Title, &pr.Description, &pr.SourceBranch, &pr.TargetBranch, &pr.Author,
		&createdAt, &pr.IsDraft, &pr.SourceCommit, &pr.TargetCommit)
	if errors.Is(err, pgx.ErrNoRows) {
		return pr, nil
	}
	if err != nil {
		return pr, fmt.Errorf("pgstore: get PR: %w", err)
	}
	pr.CreatedAt = createdAt

	rows, err := s.pool.Pool().Query(ctx, `
		SELECT reviewer_id, display_name, vote FROM reviewers
		WHERE project = $1 AND repo = $2 AND pr_id = $3`, project, repo, prID)
	if err != nil {
		return pr, fmt.Errorf("pgstore: get reviewers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rv model.Reviewer
		if err := rows.Scan(&rv.ID, &rv.DisplayName, &rv.Vote); err != nil {
			return pr, fmt.Errorf("pgstore: scan reviewer: %w", err)
		}
		pr.Reviewers = append(pr.Reviewers, rv)
	}
	return pr, rows.Err()
}

// SetPR upserts the PR snapshot, for whatever platform sync process
// populates this backend. Not part of statestore.Store.
func (s *Store) SetPR(ctx context.Context, project, repo string, pr model.PullRequestSnapshot) error {
	_, err := s.pool.Pool().Exec(ctx, `
		INSERT INTO prs (project, repo, pr_id, title, description, source_branch, target_branch,
		                  author, created_at, is_draft, source_commit, target_commit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (project, repo, pr_id) DO UPDATE SET
		  title = excluded.title, description = excluded.description,
		  source_branch = excluded.source_branch, target_branch = excluded.target_branch,
		  author = excluded.author, created_at = excluded.created_at,
		  is_draft = excluded.is_draft, source_commit = excluded.source_commit,
		  target_commit = excluded.target_commit`,
		project, repo, pr.PRID, pr.Title, pr.Description, pr.SourceBranch, pr.TargetBranch,
		pr.Author, pr.CreatedAt, pr.IsDraft, pr.SourceCommit, pr.TargetCommit)
	if err != nil {
		return fmt.Errorf("pgstore: set PR: %w", err)
	}

	for _, rv := range pr.Reviewers {
		_, err := s.pool.Pool().Exec(ctx, `
			INSERT INTO reviewers (project, repo, pr_id, reviewer_id, display_name, vote)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (project, repo, pr_id, reviewer_id) DO UPDATE SET
			  display_name = excluded.display_name, vote = excluded.vote`,
			project, repo, pr.PRID, rv.ID, rv.DisplayName, rv.Vote)
		if err != nil {
			return fmt.Errorf("pgstore: set reviewer: %w", err)
		}
	}
	return nil
}

// ensurePRRow guarantees a prs row exists so writes to tables with a
// foreign key on (project, repo, pr_id), or updates that only take
// effect on an existing row, behave correctly even when the platform
// sync job hasn't populated the PR snapshot yet.
func (s *Store) ensurePRRow(ctx context.Context, project, repo string, prID int) error {
	_, err := s.pool.Pool().Exec(ctx, `
		INSERT INTO prs (project, repo, pr_id) VALUES ($1, $2, $3)
		ON CONFLICT (project, repo, pr_id) DO NOTHING`,
		project, repo, prID)
	if err != nil {
		return fmt.Errorf("pgstore: ensure PR row: %w", err)
	}
	return nil
}

func (s *Store) GetIterationCount(ctx context.Context, project, repo string, prID int) (int, error) {
	var n int
	err := s.pool.Pool().QueryRow(ctx, `
		SELECT iteration_count FROM prs WHERE project = $1 AND repo = $2 AND pr_id = $3`,
		project, repo, prID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("pgstore: get iteration count: %w", err)
	}
	return n, nil
}

func (s *Store) GetMetadata(ctx context.Context, project, repo string, prID int) (model.ReviewMetadata, error) {
	var meta model.ReviewMetadata
	var reviewedAt *time.Time
	err := s.pool.Pool().QueryRow(ctx, `
		SELECT last_reviewed_source_commit, last_reviewed_target_commit, last_reviewed_iteration,
		       was_draft, reviewed_at_utc, vote_submitted, review_count
		FROM review_metadata WHERE project = $1 AND repo = $2 AND pr_id = $3`,
		project, repo, prID).Scan(
		&meta.LastReviewedSourceCommit, &meta.LastReviewedTargetCommit, &meta.LastReviewedIteration,
		&meta.WasDraft, &reviewedAt, &meta.VoteSubmitted, &meta.ReviewCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ReviewMetadata{}, nil
	}
	if err != nil {
		return meta, fmt.Errorf("pgstore: get metadata: %w", err)
	}
	if reviewedAt != nil {
		meta.ReviewedAtUtc = *reviewedAt
	}
	return meta, nil
}

func (s *Store) SetMetadata(ctx context.Context, project, repo string, prID int, meta model.ReviewMetadata) error {
	_, err := s.pool.Pool().Exec(ctx, `
		INSERT INTO review_metadata (project, repo, pr_id, last_reviewed_source_commit,
		                              last_reviewed_target_commit, last_reviewed_iteration,
		                              was_draft, reviewed_at_utc, vote_submitted, review_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (project, repo, pr_id) DO UPDATE SET
		  last_reviewed_source_commit = excluded.last_reviewed_source_commit,
		  last_reviewed_target_commit = excluded.last_reviewed_target_commit,
		  last_reviewed_iteration = excluded.last_reviewed_iteration,
		  was_draft = excluded.was_draft,
		  reviewed_at_utc = excluded.reviewed_at_utc,
		  vote_submitted = excluded.vote_submitted,
		  review_count = excluded.review_count`,
		project, repo, prID, meta.LastReviewedSourceCommit, meta.LastReviewedTargetCommit,
		meta.LastReviewedIteration, meta.WasDraft, meta.ReviewedAtUtc, meta.VoteSubmitted, meta.ReviewCount)
	if err != nil {
		return fmt.Errorf("pgstore: set metadata: %w", err)
	}
	return nil
}

func (s *Store) GetHistory(ctx context.Context, project, repo string, prID int) ([]model.ReviewHistoryEntry, error) {
	rows, err := s.pool.Pool().Query(ctx, `
		SELECT review_number, reviewed_at_utc, action, verdict, source_commit, iteration,
		       is_draft, inline_comments_posted, files_changed, vote,
		       model_name, prompt_tokens, completion_tokens, total_tokens, ai_duration_ms
		FROM review_history WHERE project = $1 AND repo = $2 AND pr_id = $3 ORDER BY review_number ASC`,
		project, repo, prID)
	if err != nil {
		return nil, fmt.Errorf("pgstore: get history: %w", err)
	}
	defer rows.Close()

	var out []model.ReviewHistoryEntry
	for rows.Next() {
		var e model.ReviewHistoryEntry
		var action string
		var vote *int
		if err := rows.Scan(&e.ReviewNumber, &e.ReviewedAtUtc, &action, &e.Verdict, &e.SourceCommit,
			&e.Iteration, &e.IsDraft, &e.InlineCommentsPosted, &e.FilesChanged, &vote,
			&e.Metrics.ModelName, &e.Metrics.PromptTokens, &e.Metrics.CompletionTokens,
			&e.Metrics.TotalTokens, &e.Metrics.AIDurationMs); err != nil {
			return nil, fmt.Errorf("pgstore: scan history entry: %w", err)
		}
		e.Action = model.Action(action)
		e.Vote = vote
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) AppendHistory(ctx context.Context, project, repo string, prID int, entry model.ReviewHistoryEntry) error {
	_, err := s.pool.Pool().Exec(ctx, `
		INSERT INTO review_history (project, repo, pr_id, review_number, reviewed_at_utc, action,
		                             verdict, source_commit, iteration, is_draft,
		                             inline_comments_posted, files_changed, vote,
		                             model_name, prompt_tokens, completion_tokens, total_tokens, ai_duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		project, repo, prID, entry.ReviewNumber, entry.ReviewedAtUtc, string(entry.Action),
		entry.Verdict, entry.SourceCommit, entry.Iteration, entry.IsDraft,
		entry.InlineCommentsPosted, entry.FilesChanged, entry.Vote,
		entry.Metrics.ModelName, entry.Metrics.PromptTokens, entry.Metrics.CompletionTokens,
		entry.Metrics.TotalTokens, entry.Metrics.AIDurationMs)
	if err != nil {
		return fmt.Errorf("pgstore: append history: %w", err)
	}
	return nil
}

func (s *Store) GetExistingThreads(ctx context.Context, project, repo string, prID int, attributionTag string) ([]model.ExistingCommentThread, error) {
	query := `
		SELECT thread_id, path, start_line, end_line, content, status, is_ai_generated
		FROM comment_threads WHERE project = $1 AND repo = $2 AND pr_id = $3`
	args := []any{project, repo, prID}
	if attributionTag != "" {
		query += ` AND content LIKE $4`
		args = append(args, "%"+attributionTag+"%")
	}

	rows, err := s.pool.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: get existing threads: %w", err)
	}
	defer rows.Close()

	var out []model.ExistingCommentThread
	for rows.Next() {
		var t model.ExistingCommentThread
		var status int
		var isAI bool
		if err := rows.Scan(&t.ThreadID, &t.Path, &t.StartLine, &t.EndLine, &t.Content, &status, &isAI); err != nil {
			return nil, fmt.Errorf("pgstore: scan thread: %w", err)
		}
		t.Status = model.ThreadStatus(status)
		t.IsAiGenerated = isAI
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) UpdateThreadStatus(ctx context.Context, project, repo string, prID int, threadID string, status model.ThreadStatus) error {
	_, err := s.pool.Pool().Exec(ctx, `
		UPDATE comment_threads SET status = $1
		WHERE project = $2 AND repo = $3 AND pr_id = $4 AND thread_id = $5`,
		int(status), project, repo, prID, threadID)
	if err != nil {
		return fmt.Errorf("pgstore: update thread status: %w", err)
	}
	return nil
}

func (s *Store) CountSummaryComments(ctx context.Context, project, repo string, prID int) (int, error) {
	var n int
	err := s.pool.Pool().QueryRow(ctx, `
		SELECT summary_comment_count FROM prs WHERE project = $1 AND repo = $2 AND pr_id = $3`,
		project, repo, prID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("pgstore: count summary comments: %w", err)
	}
	return n, nil
}

func (s *Store) GetFileChanges(ctx context.Context, project, repo string, prID int, pr model.PullRequestSnapshot) ([]model.FileChange, error) {
	rows, err := s.pool.Pool().Query(ctx, `
		SELECT path, change_type, original_content, modified_content, unified_diff, changed_line_ranges
		FROM file_changes WHERE project = $1 AND repo = $2 AND pr_id = $3 ORDER BY seq ASC`,
		project, repo, prID)
	if err != nil {
		return nil, fmt.Errorf("pgstore: get file changes: %w", err)
	}
	defer rows.Close()

	var out []model.FileChange
	for rows.Next() {
		var fc model.FileChange
		var changeType string
		var original, modified, diff *string
		var rangesJSON []byte
		if err := rows.Scan(&fc.Path, &changeType, &original, &modified, &diff, &rangesJSON); err != nil {
			return nil, fmt.Errorf("pgstore: scan file change: %w", err)
		}
		fc.ChangeType = model.ChangeType(changeType)
		fc.OriginalContent = original
		fc.ModifiedContent = modified
		fc.UnifiedDiff = diff
		if err := json.Unmarshal(rangesJSON, &fc.ChangedLineRanges); err != nil {
			return nil, fmt.Errorf("pgstore: decode changed line ranges: %w", err)
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}

// SetFileChanges replaces the stored file-change set for a PR. Not
// part of statestore.Store.
func (s *Store) SetFileChanges(ctx context.Context, project, repo string, prID int, files []model.FileChange) error {
	if err := s.ensurePRRow(ctx, project, repo, prID); err != nil {
		return err
	}
	tx, err := s.pool.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgstore: begin set file changes: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM file_changes WHERE project = $1 AND repo = $2 AND pr_id = $3`,
		project, repo, prID); err != nil {
		return fmt.Errorf("pgstore: clear file changes: %w", err)
	}

	for i, fc := range files {
		rangesJSON, err := json.Marshal(fc.ChangedLineRanges)
		if err != nil {
			return fmt.Errorf("pgstore: encode changed line ranges: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO file_changes (project, repo, pr_id, seq, path, change_type,
			                           original_content, modified_content, unified_diff, changed_line_ranges)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			project, repo, prID, i, fc.Path, string(fc.ChangeType),
			fc.OriginalContent, fc.ModifiedContent, fc.UnifiedDiff, rangesJSON)
		if err != nil {
			return fmt.Errorf("pgstore: insert file change: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) PostCommentThread(ctx context.Context, project, repo string, prID int, content string, status model.ThreadStatus) error {
	if err := s.ensurePRRow(ctx, project, repo, prID); err != nil {
		return err
	}
	threadID := fmt.Sprintf("summary-%s-%s-%d-%d", project, repo, prID, time.Now().UnixNano())
	_, err := s.pool.Pool().Exec(ctx, `
		INSERT INTO comment_threads (thread_id, project, repo, pr_id, content, status, is_inline)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)`,
		threadID, project, repo, prID, content, int(status))
	if err != nil {
		return fmt.Errorf("pgstore: post comment thread: %w", err)
	}
	_, err = s.pool.Pool().Exec(ctx, `
		UPDATE prs SET summary_comment_count = summary_comment_count + 1
		WHERE project = $1 AND repo = $2 AND pr_id = $3`, project, repo, prID)
	if err != nil {
		return fmt.Errorf("pgstore: bump summary comment count: %w", err)
	}
	return nil
}

func (s *Store) PostInlineCommentThread(ctx context.Context, project, repo string, prID int, path string, startLine, endLine int, content string, status model.ThreadStatus) error {
	if err := s.ensurePRRow(ctx, project, repo, prID); err != nil {
		return err
	}
	threadID := fmt.Sprintf("inline-%s-%s-%d-%d", project, repo, prID, time.Now().UnixNano())
	_, err := s.pool.Pool().Exec(ctx, `
		INSERT INTO comment_threads (thread_id, project, repo, pr_id, path, start_line, end_line, content, status, is_inline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)`,
		threadID, project, repo, prID, path, startLine, endLine, content, int(status))
	if err != nil {
		return fmt.Errorf("pgstore: post inline comment thread: %w", err)
	}
	return nil
}

func (s *Store) AddReviewerVote(ctx context.Context, project, repo string, prID int, vote int) error {
	if err := s.ensurePRRow(ctx, project, repo, prID); err != nil {
		return err
	}
	_, err := s.pool.Pool().Exec(ctx, `
		INSERT INTO reviewers (project, repo, pr_id, reviewer_id, display_name, vote)
		VALUES ($1, $2, $3, 'ai-reviewer', 'AI Reviewer', $4)
		ON CONFLICT (project, repo, pr_id, reviewer_id) DO UPDATE SET vote = excluded.vote`,
		project, repo, prID, vote)
	if err != nil {
		return fmt.Errorf("pgstore: add reviewer vote: %w", err)
	}
	return nil
}

func (s *Store) UpdatePRDescription(ctx context.Context, project, repo string, prID int, newDescription string) error {
	if err := s.ensurePRRow(ctx, project, repo, prID); err != nil {
		return err
	}
	_, err := s.pool.Pool().Exec(ctx, `
		UPDATE prs SET description = $1 WHERE project = $2 AND repo = $3 AND pr_id = $4`,
		newDescription, project, repo, prID)
	if err != nil {
		return fmt.Errorf("pgstore: update PR description: %w", err)
	}
	return nil
}

func (s *Store) HasReviewTag(ctx context.Context, project, repo string, prID int) (bool, error) {
	var tagged bool
	err := s.pool.Pool().QueryRow(ctx, `
		SELECT has_review_tag FROM prs WHERE project = $1 AND repo = $2 AND pr_id = $3`,
		project, repo, prID).Scan(&tagged)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pgstore: has review tag: %w", err)
	}
	return tagged, nil
}

func (s *Store) AddReviewTag(ctx context.Context, project, repo string, prID int) error {
	if err := s.ensurePRRow(ctx, project, repo, prID); err != nil {
		return err
	}
	_, err := s.pool.Pool().Exec(ctx, `
		UPDATE prs SET has_review_tag = TRUE WHERE project = $1 AND repo = $2 AND pr_id = $3`,
		project, repo, prID)
	if err != nil {
		return fmt.Errorf("pgstore: add review tag: %w", err)
	}
	return nil
}
