package githubstore

import (
	"context"
	"errors"
	"fmt"

	gh "github.com/google/go-github/v82/github"
)

// AddReviewerVote submits a GitHub PR review whose event is derived
// from this tool's Azure-DevOps-shaped vote domain: 10 and 5 approve,
// -5 and -10 request changes, 0 leaves a plain comment. GitHub has no
// concept between "approved" and "approved with suggestions", nor
// between "waiting for author" and "rejected" — both collapse onto
// their nearest GitHub event.
func (c *Client) AddReviewerVote(ctx context.Context, _, repo string, prID int, vote int) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	pr, _, err := c.gh.PullRequests.Get(ctx, owner, name, prID)
	if err != nil {
		return fmt.Errorf("githubstore: fetch head SHA before vote on %s#%d: %w", repo, prID, err)
	}

	event := eventFromVote(vote)
	review := &gh.PullRequestReviewRequest{
		CommitID: gh.Ptr(pr.GetHead().GetSHA()),
		Event:    gh.Ptr(event),
	}
	if event != "APPROVE" {
		review.Body = gh.Ptr(fmt.Sprintf("Automated review vote: %d.", vote))
	}

	_, resp, err := c.gh.PullRequests.CreateReview(ctx, owner, name, prID, review)
	if err != nil {
		var ghErr *gh.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == 422 {
			return fmt.Errorf("githubstore: PR %s#%d changed since vote was computed, refresh and retry: %w", repo, prID, err)
		}
		return fmt.Errorf("githubstore: submit review vote on %s#%d: %w", repo, prID, err)
	}
	logRateLimit(resp, repo, prID)
	return nil
}

func eventFromVote(vote int) string {
	switch {
	case vote >= 5:
		return "APPROVE"
	case vote <= -5:
		return "REQUEST_CHANGES"
	default:
		return "COMMENT"
	}
}

func (c *Client) UpdatePRDescription(ctx context.Context, _, repo string, prID int, newDescription string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	_, resp, err := c.gh.PullRequests.Edit(ctx, owner, name, prID, &gh.PullRequest{Body: gh.Ptr(newDescription)})
	if err != nil {
		return fmt.Errorf("githubstore: update PR description on %s#%d: %w", repo, prID, err)
	}
	logRateLimit(resp, repo, prID)
	return nil
}

// HasReviewTag and AddReviewTag use a PR label as the "already
// reviewed" marker other backends keep as a boolean column, since
// GitHub PRs carry labels but no free-form per-tool attribute.
func (c *Client) HasReviewTag(ctx context.Context, _, repo string, prID int) (bool, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return false, err
	}
	labels, resp, err := c.gh.Issues.ListLabelsByIssue(ctx, owner, name, prID, nil)
	if err != nil {
		return false, fmt.Errorf("githubstore: list labels on %s#%d: %w", repo, prID, err)
	}
	logRateLimit(resp, repo, prID)
	for _, l := range labels {
		if l.GetName() == reviewTagLabel {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) AddReviewTag(ctx context.Context, _, repo string, prID int) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	_, resp, err := c.gh.Issues.AddLabelsToIssue(ctx, owner, name, prID, []string{reviewTagLabel})
	if err != nil {
		return fmt.Errorf("githubstore: add review label on %s#%d: %w", repo, prID, err)
	}
	logRateLimit(resp, repo, prID)
	return nil
}
