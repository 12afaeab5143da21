package githubstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gh "github.com/google/go-github/v82/github"

	"github.com/wesm/prreviewer/internal/model"
)

func (c *Client) PostCommentThread(ctx context.Context, _, repo string, prID int, content string, _ model.ThreadStatus) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	_, resp, err := c.gh.Issues.CreateComment(ctx, owner, name, prID, &gh.IssueComment{Body: gh.Ptr(content)})
	if err != nil {
		return fmt.Errorf("githubstore: post comment thread on %s#%d: %w", repo, prID, err)
	}
	logRateLimit(resp, repo, prID)
	return nil
}

func (c *Client) PostInlineCommentThread(ctx context.Context, _, repo string, prID int, path string, startLine, endLine int, content string, _ model.ThreadStatus) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	pr, _, err := c.gh.PullRequests.Get(ctx, owner, name, prID)
	if err != nil {
		return fmt.Errorf("githubstore: fetch head SHA before inline comment on %s#%d: %w", repo, prID, err)
	}

	comment := &gh.PullRequestComment{
		Body:     gh.Ptr(content),
		Path:     gh.Ptr(path),
		Line:     gh.Ptr(endLine),
		Side:     gh.Ptr("RIGHT"),
		CommitID: gh.Ptr(pr.GetHead().GetSHA()),
	}
	if startLine != endLine {
		comment.StartLine = gh.Ptr(startLine)
		comment.StartSide = gh.Ptr("RIGHT")
	}

	_, resp, err := c.gh.PullRequests.CreateComment(ctx, owner, name, prID, comment)
	if err != nil {
		return fmt.Errorf("githubstore: post inline comment on %s#%d %s:%d-%d: %w", repo, prID, path, startLine, endLine, err)
	}
	logRateLimit(resp, repo, prID)
	return nil
}

// GetExistingThreads returns every prior thread this tool can see:
// inline review comments (via the Pulls API) plus issue-level summary
// comments, filtered to those containing attributionTag when set. An
// inline comment's resolved state is looked up via GraphQL since the
// REST API has no resolution field.
func (c *Client) GetExistingThreads(ctx context.Context, _, repo string, prID int, attributionTag string) ([]model.ExistingCommentThread, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	var out []model.ExistingCommentThread

	inlineOpts := &gh.PullRequestListCommentsOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := c.gh.PullRequests.ListComments(ctx, owner, name, prID, inlineOpts)
		if err != nil {
			return nil, fmt.Errorf("githubstore: list review comments on %s#%d: %w", repo, prID, err)
		}
		for _, cm := range comments {
			if attributionTag != "" && !strings.Contains(cm.GetBody(), attributionTag) {
				continue
			}
			status := model.ThreadActive
			if _, resolved, err := c.reviewThreadIDForComment(ctx, owner, name, prID, cm.GetID()); err == nil && resolved {
				status = model.ThreadFixed
			}
			out = append(out, model.ExistingCommentThread{
				ThreadID:      strconv.FormatInt(cm.GetID(), 10),
				Path:          cm.GetPath(),
				StartLine:     cm.GetStartLine(),
				EndLine:       cm.GetLine(),
				Content:       cm.GetBody(),
				Status:        status,
				IsAiGenerated: true,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		inlineOpts.Page = resp.NextPage
	}

	issueOpts := &gh.IssueListCommentsOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, name, prID, issueOpts)
		if err != nil {
			return nil, fmt.Errorf("githubstore: list issue comments on %s#%d: %w", repo, prID, err)
		}
		for _, cm := range comments {
			if attributionTag != "" && !strings.Contains(cm.GetBody(), attributionTag) {
				continue
			}
			if strings.Contains(cm.GetBody(), stateMarker) {
				continue
			}
			out = append(out, model.ExistingCommentThread{
				ThreadID:      strconv.FormatInt(cm.GetID(), 10),
				Content:       cm.GetBody(),
				Status:        model.ThreadActive,
				IsAiGenerated: true,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		issueOpts.Page = resp.NextPage
	}

	return out, nil
}

// UpdateThreadStatus resolves or unresolves the review thread rooted
// at threadID (an inline comment's database ID). Summary (issue-level)
// comments have no resolution state on GitHub, so this is a no-op for
// a threadID that doesn't resolve to a review thread.
func (c *Client) UpdateThreadStatus(ctx context.Context, _, repo string, prID int, threadID string, status model.ThreadStatus) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	commentID, err := strconv.ParseInt(threadID, 10, 64)
	if err != nil {
		return fmt.Errorf("githubstore: invalid thread id %q: %w", threadID, err)
	}

	threadNodeID, _, err := c.reviewThreadIDForComment(ctx, owner, name, prID, commentID)
	if err != nil {
		return nil
	}

	resolved := status != model.ThreadActive && status != model.ThreadPending
	return c.setThreadResolved(ctx, threadNodeID, resolved)
}

// CountSummaryComments counts this tool's issue-level summary
// comments (bodies starting with "## Code Review" or "## Re-Review"),
// excluding the hidden state comment.
func (c *Client) CountSummaryComments(ctx context.Context, _, repo string, prID int) (int, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return 0, err
	}

	opts := &gh.IssueListCommentsOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	count := 0
	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, name, prID, opts)
		if err != nil {
			return 0, fmt.Errorf("githubstore: count summary comments on %s#%d: %w", repo, prID, err)
		}
		for _, cm := range comments {
			body := cm.GetBody()
			if strings.Contains(body, stateMarker) {
				continue
			}
			if !strings.HasPrefix(body, "## Code Review") && !strings.HasPrefix(body, "## Re-Review") {
				continue
			}
			count++
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return count, nil
}
