package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wesm/prreviewer/internal/model"
	"github.com/wesm/prreviewer/internal/statestore"
)

var _ statestore.Store = (*Store)(nil)

const timeLayout = time.RFC3339Nano

func (s *Store) GetPR(ctx context.Context, project, repo string, prID int) (model.PullRequestSnapshot, error) {
	var pr model.PullRequestSnapshot
	var createdAt string
	var isDraft int
	pr.PRID = prID

	row := s.db.QueryRowContext(ctx, `
		SELECT title, description, source_branch, target_branch, author,
		       created_at, is_draft, source_commit, target_commit
		FROM prs WHERE project = ? AND repo = ? AND pr_id = ?`,
		project, repo, prID)
	err := row.Scan(&pr.Title, &pr.Description, &pr.SourceBranch, &pr.TargetBranch, &pr.Author,
		&createdAt, &isDraft, &pr.SourceCommit, &pr.TargetCommit)
	if err == sql.ErrNoRows {
		return pr, nil
	}
	if err != nil {
		return pr, fmt.Errorf("sqlitestore: get PR: %w", err)
	}
	pr.IsDraft = isDraft != 0
	pr.CreatedAt, _ = time.Parse(timeLayout, createdAt)

	rows, err := s.db.QueryContext(ctx, `
		SELECT reviewer_id, display_name, vote FROM reviewers
		WHERE project = ? AND repo = ? AND pr_id = ?`, project, repo, prID)
	if err != nil {
		return pr, fmt.Errorf("sqlitestore: get reviewers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rv model.Reviewer
		if err := rows.Scan(&rv.ID, &rv.DisplayName, &rv.Vote); err != nil {
			return pr, fmt.Errorf("sqlitestore: scan reviewer: %w", err)
		}
		pr.Reviewers = append(pr.Reviewers, rv)
	}
	return pr, rows.Err()
}

// SetPR upserts the PR snapshot, for seeding or refreshing the cached
// view a platform sync job maintains. Not part of statestore.Store —
// it is the write-side companion GetPR reads from.
func (s *Store) SetPR(ctx context.Context, project, repo string, pr model.PullRequestSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prs (project, repo, pr_id, title, description, source_branch, target_branch,
		                  author, created_at, is_draft, source_commit, target_commit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project, repo, pr_id) DO UPDATE SET
		  title = excluded.title, description = excluded.description,
		  source_branch = excluded.source_branch, target_branch = excluded.target_branch,
		  author = excluded.author, created_at = excluded.created_at,
		  is_draft = excluded.is_draft, source_commit = excluded.source_commit,
		  target_commit = excluded.target_commit`,
		project, repo, pr.PRID, pr.Title, pr.Description, pr.SourceBranch, pr.TargetBranch,
		pr.Author, pr.CreatedAt.Format(timeLayout), boolToInt(pr.IsDraft), pr.SourceCommit, pr.TargetCommit)
	if err != nil {
		return fmt.Errorf("sqlitestore: set PR: %w", err)
	}

	for _, rv := range pr.Reviewers {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO reviewers (project, repo, pr_id, reviewer_id, display_name, vote)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(project, repo, pr_id, reviewer_id) DO UPDATE SET
			  display_name = excluded.display_name, vote = excluded.vote`,
			project, repo, pr.PRID, rv.ID, rv.DisplayName, rv.Vote)
		if err != nil {
			return fmt.Errorf("sqlitestore: set reviewer: %w", err)
		}
	}
	return nil
}

// ensurePRRow guarantees a prs row exists so writes to tables with a
// foreign key on (project, repo, pr_id), or updates that only take
// effect on an existing row, behave correctly even when the platform
// sync job hasn't populated the PR snapshot yet.
func (s *Store) ensurePRRow(ctx context.Context, project, repo string, prID int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO prs (project, repo, pr_id) VALUES (?, ?, ?)`,
		project, repo, prID)
	if err != nil {
		return fmt.Errorf("sqlitestore: ensure PR row: %w", err)
	}
	return nil
}

func (s *Store) GetIterationCount(ctx context.Context, project, repo string, prID int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT iteration_count FROM prs WHERE project = ? AND repo = ? AND pr_id = ?`,
		project, repo, prID).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: get iteration count: %w", err)
	}
	return n, nil
}

func (s *Store) GetMetadata(ctx context.Context, project, repo string, prID int) (model.ReviewMetadata, error) {
	var meta model.ReviewMetadata
	var reviewedAt sql.NullString
	var wasDraft, voteSubmitted int

	err := s.db.QueryRowContext(ctx, `
		SELECT last_reviewed_source_commit, last_reviewed_target_commit, last_reviewed_iteration,
		       was_draft, reviewed_at_utc, vote_submitted, review_count
		FROM review_metadata WHERE project = ? AND repo = ? AND pr_id = ?`,
		project, repo, prID).Scan(
		&meta.LastReviewedSourceCommit, &meta.LastReviewedTargetCommit, &meta.LastReviewedIteration,
		&wasDraft, &reviewedAt, &voteSubmitted, &meta.ReviewCount)
	if err == sql.ErrNoRows {
		return model.ReviewMetadata{}, nil
	}
	if err != nil {
		return meta, fmt.Errorf("sqlitestore: get metadata: %w", err)
	}
	meta.WasDraft = wasDraft != 0
	meta.VoteSubmitted = voteSubmitted != 0
	if reviewedAt.Valid {
		meta.ReviewedAtUtc, _ = time.Parse(timeLayout, reviewedAt.String)
	}
	return meta, nil
}

func (s *Store) SetMetadata(ctx context.Context, project, repo string, prID int, meta model.ReviewMetadata) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_metadata (project, repo, pr_id, last_reviewed_source_commit,
		                              last_reviewed_target_commit, last_reviewed_iteration,
		                              was_draft, reviewed_at_utc, vote_submitted, review_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project, repo, pr_id) DO UPDATE SET
		  last_reviewed_source_commit = excluded.last_reviewed_source_commit,
		  last_reviewed_target_commit = excluded.last_reviewed_target_commit,
		  last_reviewed_iteration = excluded.last_reviewed_iteration,
		  was_draft = excluded.was_draft,
		  reviewed_at_utc = excluded.reviewed_at_utc,
		  vote_submitted = excluded.vote_submitted,
		  review_count = excluded.review_count`,
		project, repo, prID, meta.LastReviewedSourceCommit, meta.LastReviewedTargetCommit,
		meta.LastReviewedIteration, boolToInt(meta.WasDraft), meta.ReviewedAtUtc.Format(timeLayout),
		boolToInt(meta.VoteSubmitted), meta.ReviewCount)
	if err != nil {
		return fmt.Errorf("sqlitestore: set metadata: %w", err)
	}
	return nil
}

func (s *Store) GetHistory(ctx context.Context, project, repo string, prID int) ([]model.ReviewHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT review_number, reviewed_at_utc, action, verdict, source_commit, iteration,
		       is_draft, inline_comments_posted, files_changed, vote,
		       model_name, prompt_tokens, completion_tokens, total_tokens, ai_duration_ms
		FROM review_history WHERE project = ? AND repo = ? AND pr_id = ? ORDER BY review_number ASC`,
		project, repo, prID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: get history: %w", err)
	}
	defer rows.Close()

	var out []model.ReviewHistoryEntry
	for rows.Next() {
		var e model.ReviewHistoryEntry
		var reviewedAt, action string
		var isDraft int
		var vote sql.NullInt64
		if err := rows.Scan(&e.ReviewNumber, &reviewedAt, &action, &e.Verdict, &e.SourceCommit,
			&e.Iteration, &isDraft, &e.InlineCommentsPosted, &e.FilesChanged, &vote,
			&e.Metrics.ModelName, &e.Metrics.PromptTokens, &e.Metrics.CompletionTokens,
			&e.Metrics.TotalTokens, &e.Metrics.AIDurationMs); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan history entry: %w", err)
		}
		e.Action = model.Action(action)
		e.IsDraft = isDraft != 0
		e.ReviewedAtUtc, _ = time.Parse(timeLayout, reviewedAt)
		if vote.Valid {
			v := int(vote.Int64)
			e.Vote = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) AppendHistory(ctx context.Context, project, repo string, prID int, entry model.ReviewHistoryEntry) error {
	var vote sql.NullInt64
	if entry.Vote != nil {
		vote = sql.NullInt64{Int64: int64(*entry.Vote), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_history (project, repo, pr_id, review_number, reviewed_at_utc, action,
		                             verdict, source_commit, iteration, is_draft,
		                             inline_comments_posted, files_changed, vote,
		                             model_name, prompt_tokens, completion_tokens, total_tokens, ai_duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		project, repo, prID, entry.ReviewNumber, entry.ReviewedAtUtc.Format(timeLayout), string(entry.Action),
		entry.Verdict, entry.SourceCommit, entry.Iteration, boolToInt(entry.IsDraft),
		entry.InlineCommentsPosted, entry.FilesChanged, vote,
		entry.Metrics.ModelName, entry.Metrics.PromptTokens, entry.Metrics.CompletionTokens,
		entry.Metrics.TotalTokens, entry.Metrics.AIDurationMs)
	if err != nil {
		return fmt.Errorf("sqlitestore: append history: %w", err)
	}
	return nil
}

func (s *Store) GetExistingThreads(ctx context.Context, project, repo string, prID int, attributionTag string) ([]model.ExistingCommentThread, error) {
	query := `
		SELECT thread_id, path, start_line, end_line, content, status, is_ai_generated
		FROM comment_threads WHERE project = ? AND repo = ? AND pr_id = ?`
	args := []any{project, repo, prID}
	if attributionTag != "" {
		query += ` AND content LIKE ?`
		args = append(args, "%"+attributionTag+"%")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: get existing threads: %w", err)
	}
	defer rows.Close()

	var out []model.ExistingCommentThread
	for rows.Next() {
		var t model.ExistingCommentThread
		var status, isAI int
		if err := rows.Scan(&t.ThreadID, &t.Path, &t.StartLine, &t.EndLine, &t.Content, &status, &isAI); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan thread: %w", err)
		}
		t.Status = model.ThreadStatus(status)
		t.IsAiGenerated = isAI != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) UpdateThreadStatus(ctx context.Context, project, repo string, prID int, threadID string, status model.ThreadStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE comment_threads SET status = ?
		WHERE project = ? AND repo = ? AND pr_id = ? AND thread_id = ?`,
		int(status), project, repo, prID, threadID)
	if err != nil {
		return fmt.Errorf("sqlitestore: update thread status: %w", err)
	}
	return nil
}

func (s *Store) CountSummaryComments(ctx context.Context, project, repo string, prID int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT summary_comment_count FROM prs WHERE project = ? AND repo = ? AND pr_id = ?`,
		project, repo, prID).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: count summary comments: %w", err)
	}
	return n, nil
}

func (s *Store) GetFileChanges(ctx context.Context, project, repo string, prID int, pr model.PullRequestSnapshot) ([]model.FileChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, change_type, original_content, modified_content, unified_diff, changed_line_ranges
		FROM file_changes WHERE project = ? AND repo = ? AND pr_id = ? ORDER BY seq ASC`,
		project, repo, prID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: get file changes: %w", err)
	}
	defer rows.Close()

	var out []model.FileChange
	for rows.Next() {
		var fc model.FileChange
		var changeType, rangesJSON string
		var original, modified, diff sql.NullString
		if err := rows.Scan(&fc.Path, &changeType, &original, &modified, &diff, &rangesJSON); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan file change: %w", err)
		}
		fc.ChangeType = model.ChangeType(changeType)
		if original.Valid {
			fc.OriginalContent = &original.String
		}
		if modified.Valid {
			fc.ModifiedContent = &modified.String
		}
		if diff.Valid {
			fc.UnifiedDiff = &diff.String
		}
		if err := json.Unmarshal([]byte(rangesJSON), &fc.ChangedLineRanges); err != nil {
			return nil, fmt.Errorf("sqlitestore: decode changed line ranges: %w", err)
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}

// SetFileChanges replaces the stored file-change set for a PR, for
// whatever sync process populates this backend from the platform's
// diff. Not part of statestore.Store.
func (s *Store) SetFileChanges(ctx context.Context, project, repo string, prID int, files []model.FileChange) error {
	if err := s.ensurePRRow(ctx, project, repo, prID); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin set file changes: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM file_changes WHERE project = ? AND repo = ? AND pr_id = ?`,
		project, repo, prID); err != nil {
		return fmt.Errorf("sqlitestore: clear file changes: %w", err)
	}

	for i, fc := range files {
		rangesJSON, err := json.Marshal(fc.ChangedLineRanges)
		if err != nil {
			return fmt.Errorf("sqlitestore: encode changed line ranges: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO file_changes (project, repo, pr_id, seq, path, change_type,
			                           original_content, modified_content, unified_diff, changed_line_ranges)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			project, repo, prID, i, fc.Path, string(fc.ChangeType),
			nullableString(fc.OriginalContent), nullableString(fc.ModifiedContent),
			nullableString(fc.UnifiedDiff), string(rangesJSON))
		if err != nil {
			return fmt.Errorf("sqlitestore: insert file change: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) PostCommentThread(ctx context.Context, project, repo string, prID int, content string, status model.ThreadStatus) error {
	if err := s.ensurePRRow(ctx, project, repo, prID); err != nil {
		return err
	}
	threadID := fmt.Sprintf("summary-%s-%s-%d-%d", project, repo, prID, time.Now().UnixNano())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comment_threads (thread_id, project, repo, pr_id, content, status, is_inline)
		VALUES (?, ?, ?, ?, ?, ?, 0)`,
		threadID, project, repo, prID, content, int(status))
	if err != nil {
		return fmt.Errorf("sqlitestore: post comment thread: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE prs SET summary_comment_count = summary_comment_count + 1
		WHERE project = ? AND repo = ? AND pr_id = ?`, project, repo, prID)
	if err != nil {
		return fmt.Errorf("sqlitestore: bump summary comment count: %w", err)
	}
	return nil
}

func (s *Store) PostInlineCommentThread(ctx context.Context, project, repo string, prID int, path string, startLine, endLine int, content string, status model.ThreadStatus) error {
	threadID := fmt.Sprintf("inline-%s-%s-%d-%d", project, repo, prID, time.Now().UnixNano())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comment_threads (thread_id, project, repo, pr_id, path, start_line, end_line, content, status, is_inline)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		threadID, project, repo, prID, path, startLine, endLine, content, int(status))
	if err != nil {
		return fmt.Errorf("sqlitestore: post inline comment thread: %w", err)
	}
	return nil
}

func (s *Store) AddReviewerVote(ctx context.Context, project, repo string, prID int, vote int) error {
	if err := s.ensurePRRow(ctx, project, repo, prID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reviewers (project, repo, pr_id, reviewer_id, display_name, vote)
		VALUES (?, ?, ?, 'ai-reviewer', 'AI Reviewer', ?)
		ON CONFLICT(project, repo, pr_id, reviewer_id) DO UPDATE SET vote = excluded.vote`,
		project, repo, prID, vote)
	if err != nil {
		return fmt.Errorf("sqlitestore: add reviewer vote: %w", err)
	}
	return nil
}

func (s *Store) UpdatePRDescription(ctx context.Context, project, repo string, prID int, newDescription string) error {
	if err := s.ensurePRRow(ctx, project, repo, prID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE prs SET description = ? WHERE project = ? AND repo = ? AND pr_id = ?`,
		newDescription, project, repo, prID)
	if err != nil {
		return fmt.Errorf("sqlitestore: update PR description: %w", err)
	}
	return nil
}

func (s *Store) HasReviewTag(ctx context.Context, project, repo string, prID int) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT has_review_tag FROM prs WHERE project = ? AND repo = ? AND pr_id = ?`,
		project, repo, prID).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlitestore: has review tag: %w", err)
	}
	return n != 0, nil
}

func (s *Store) AddReviewTag(ctx context.Context, project, repo string, prID int) error {
	if err := s.ensurePRRow(ctx, project, repo, prID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE prs SET has_review_tag = 1 WHERE project = ? AND repo = ? AND pr_id = ?`,
		project, repo, prID)
	if err != nil {
		return fmt.Errorf("sqlitestore: add review tag: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
