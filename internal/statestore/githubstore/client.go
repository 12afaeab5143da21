// Package githubstore is a statestore.Store backend for teams running
// directly against GitHub pull requests, with no separate database.
// See spec.md §4.7. GitHub has no native "project" tier the way Azure
// DevOps does, so every method's project argument is accepted for
// interface compatibility and ignored; repo is expected to be an
// "owner/name" full repository name.
package githubstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/wesm/prreviewer/internal/diffmodel"
	"github.com/wesm/prreviewer/internal/model"
	"github.com/wesm/prreviewer/internal/statestore"
)

var _ statestore.Store = (*Client)(nil)

// reviewTagLabel is the PR label AddReviewTag/HasReviewTag use to
// record that this tool has already reviewed a PR, since GitHub PRs
// have no free-form attribute a bot can stamp the way a platform
// comment tag does.
const reviewTagLabel = "ai-reviewed"

// aiReviewerLogin matches the "ai-reviewer" row sqlitestore and pgstore
// record votes under. This backend's AddReviewerVote does not use it:
// the review is submitted as the account that owns the token.
const aiReviewerLogin = "ai-reviewer"

// Client implements statestore.Store using the go-github library,
// with a transport stack of httpcache (ETag-based conditional request
// caching) wrapping go-github-ratelimit (secondary rate limit
// middleware, sleeps on 429) wrapping go-github itself.
type Client struct {
	gh         *gh.Client
	token      string
	graphqlURL string
}

// NewClient creates a GitHub-backed Store authenticating with token.
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{
		gh:         client,
		token:      token,
		graphqlURL: "https://api.github.com/graphql",
	}
}

// NewClientWithHTTPClient creates a Client against a custom base URL,
// for injecting an httptest server in tests.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string) (*Client, error) {
	client := gh.NewClient(httpClient).WithAuthToken(token)
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("githubstore: parse base URL: %w", err)
	}
	client.BaseURL = u

	graphqlU := *u
	graphqlU.Path = "/graphql"

	return &Client{
		gh:         client,
		token:      token,
		graphqlURL: graphqlU.String(),
	}, nil
}

func (c *Client) GetPR(ctx context.Context, _, repo string, prID int) (model.PullRequestSnapshot, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return model.PullRequestSnapshot{}, err
	}

	pr, resp, err := c.gh.PullRequests.Get(ctx, owner, name, prID)
	if err != nil {
		return model.PullRequestSnapshot{}, fmt.Errorf("githubstore: get PR %s#%d: %w", repo, prID, err)
	}
	logRateLimit(resp, repo, prID)

	snap := model.PullRequestSnapshot{
		PRID:         prID,
		Title:        pr.GetTitle(),
		Description:  pr.GetBody(),
		SourceBranch: pr.GetHead().GetRef(),
		TargetBranch: pr.GetBase().GetRef(),
		Author:       pr.GetUser().GetLogin(),
		CreatedAt:    pr.GetCreatedAt().Time,
		IsDraft:      pr.GetDraft(),
		SourceCommit: pr.GetHead().GetSHA(),
		TargetCommit: pr.GetBase().GetSHA(),
	}

	reviewers, err := c.latestReviewerVotes(ctx, owner, name, prID)
	if err != nil {
		return snap, err
	}
	snap.Reviewers = reviewers
	return snap, nil
}

// latestReviewerVotes collapses GitHub's append-only review history
// into one vote per reviewer, keeping each reviewer's most recent
// submission, the way the PR's own review summary does.
func (c *Client) latestReviewerVotes(ctx context.Context, owner, name string, prID int) ([]model.Reviewer, error) {
	opts := &gh.ListOptions{PerPage: 100}
	latest := map[string]model.Reviewer{}
	order := []string{}

	for {
		reviews, resp, err := c.gh.PullRequests.ListReviews(ctx, owner, name, prID, opts)
		if err != nil {
			return nil, fmt.Errorf("githubstore: list reviews for %s/%s#%d: %w", owner, name, prID, err)
		}
		for _, r := range reviews {
			login := r.GetUser().GetLogin()
			if _, seen := latest[login]; !seen {
				order = append(order, login)
			}
			latest[login] = model.Reviewer{
				ID:          login,
				DisplayName: login,
				Vote:        voteFromReviewState(r.GetState()),
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	out := make([]model.Reviewer, 0, len(order))
	for _, login := range order {
		out = append(out, latest[login])
	}
	return out, nil
}

// voteFromReviewState maps a GitHub review state to this tool's
// Azure-DevOps-shaped vote domain {-10, -5, 0, 5, 10}.
func voteFromReviewState(state string) int {
	switch strings.ToUpper(state) {
	case "APPROVED":
		return 10
	case "CHANGES_REQUESTED":
		return -10
	case "COMMENTED", "PENDING":
		return 0
	default:
		return 0
	}
}

func (c *Client) GetFileChanges(ctx context.Context, _, repo string, prID int, _ model.PullRequestSnapshot) ([]model.FileChange, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	opts := &gh.ListOptions{PerPage: 100}
	var out []model.FileChange
	for {
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, name, prID, opts)
		if err != nil {
			return nil, fmt.Errorf("githubstore: list files for %s#%d: %w", repo, prID, err)
		}
		for _, f := range files {
			fc, err := mapFileChange(f)
			if err != nil {
				return nil, err
			}
			out = append(out, fc)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// mapFileChange converts a go-github CommitFile into a FileChange.
// The Pulls API returns no file contents, so OriginalContent and
// ModifiedContent stay nil; GitHub's Patch field becomes the unified
// diff, and ChangedLineRanges is parsed from it with
// diffmodel.ParseChangedLineRanges.
func mapFileChange(f *gh.CommitFile) (model.FileChange, error) {
	fc := model.FileChange{
		Path:       f.GetFilename(),
		ChangeType: changeTypeFromStatus(f.GetStatus()),
	}
	patch := f.GetPatch()
	if patch != "" {
		fc.UnifiedDiff = &patch
		ranges, err := diffmodel.ParseChangedLineRanges(patch)
		if err != nil {
			return fc, fmt.Errorf("githubstore: parse changed line ranges for %s: %w", fc.Path, err)
		}
		for _, r := range ranges {
			fc.ChangedLineRanges = append(fc.ChangedLineRanges, model.LineRange{Start: r[0], End: r[1]})
		}
	}
	return fc, nil
}

func changeTypeFromStatus(status string) model.ChangeType {
	switch status {
	case "added":
		return model.ChangeAdd
	case "removed":
		return model.ChangeDelete
	case "renamed":
		return model.ChangeRename
	default:
		return model.ChangeEdit
	}
}

// GetIterationCount returns the number of commits pushed to the PR,
// GitHub's native analogue to a platform-tracked review iteration —
// unlike sqlitestore/pgstore, which have no write path to this
// column, this backend reads it straight from GitHub rather than
// needing one.
func (c *Client) GetIterationCount(ctx context.Context, _, repo string, prID int) (int, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return 0, err
	}
	opts := &gh.ListOptions{PerPage: 100}
	count := 0
	for {
		commits, resp, err := c.gh.PullRequests.ListCommits(ctx, owner, name, prID, opts)
		if err != nil {
			return 0, fmt.Errorf("githubstore: list commits for %s#%d: %w", repo, prID, err)
		}
		count += len(commits)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return count, nil
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, repo string, prID int) {
	if resp == nil {
		return
	}
	slog.Debug("githubstore: api call", "repo", repo, "pr", prID,
		"rate_remaining", resp.Rate.Remaining, "rate_limit", resp.Rate.Limit)
	if resp.Rate.Remaining < 100 {
		slog.Warn("githubstore: rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second))
	}
}

// splitRepo splits an "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("githubstore: invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
