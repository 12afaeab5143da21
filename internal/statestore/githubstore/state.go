package githubstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v82/github"

	"github.com/wesm/prreviewer/internal/model"
)

// stateMarker tags the single issue comment this backend uses to
// persist metadata and history GitHub has no native field for. GitHub
// gives this tool a PR, its diff, and its comment threads — but
// nowhere to keep the "what did we last review" bookkeeping every
// other Store backend has a dedicated table for. A pinned, editable
// comment is the same trick a number of PR bots use for sticky state.
const stateMarker = "<!-- prreviewer:state v1 -->"

type githubState struct {
	Metadata model.ReviewMetadata        `json:"metadata"`
	History  []model.ReviewHistoryEntry  `json:"history"`
}

// loadState finds and decodes this PR's hidden state comment. A
// missing comment is not an error: it returns a zero-value state and
// commentID 0, the same "never raises on not found" contract
// GetMetadata promises.
func (c *Client) loadState(ctx context.Context, owner, name string, prID int) (githubState, int64, error) {
	opts := &gh.IssueListCommentsOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, name, prID, opts)
		if err != nil {
			return githubState{}, 0, fmt.Errorf("githubstore: list comments for state lookup on %s/%s#%d: %w", owner, name, prID, err)
		}
		for _, cm := range comments {
			body := cm.GetBody()
			if !strings.Contains(body, stateMarker) {
				continue
			}
			_, payload, found := strings.Cut(body, stateMarker)
			if !found {
				continue
			}
			var st githubState
			if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &st); err != nil {
				return githubState{}, 0, fmt.Errorf("githubstore: decode state comment %d: %w", cm.GetID(), err)
			}
			return st, cm.GetID(), nil
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return githubState{}, 0, nil
}

func (c *Client) saveState(ctx context.Context, owner, name string, prID int, st githubState, existingCommentID int64) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("githubstore: encode state: %w", err)
	}
	body := stateMarker + "\n" + string(payload)

	if existingCommentID != 0 {
		_, _, err := c.gh.Issues.EditComment(ctx, owner, name, existingCommentID, &gh.IssueComment{Body: gh.Ptr(body)})
		if err != nil {
			return fmt.Errorf("githubstore: update state comment on %s/%s#%d: %w", owner, name, prID, err)
		}
		return nil
	}

	_, _, err = c.gh.Issues.CreateComment(ctx, owner, name, prID, &gh.IssueComment{Body: gh.Ptr(body)})
	if err != nil {
		return fmt.Errorf("githubstore: create state comment on %s/%s#%d: %w", owner, name, prID, err)
	}
	return nil
}

func (c *Client) GetMetadata(ctx context.Context, _, repo string, prID int) (model.ReviewMetadata, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return model.ReviewMetadata{}, err
	}
	st, _, err := c.loadState(ctx, owner, name, prID)
	if err != nil {
		return model.ReviewMetadata{}, err
	}
	return st.Metadata, nil
}

func (c *Client) SetMetadata(ctx context.Context, _, repo string, prID int, meta model.ReviewMetadata) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	st, commentID, err := c.loadState(ctx, owner, name, prID)
	if err != nil {
		return err
	}
	st.Metadata = meta
	return c.saveState(ctx, owner, name, prID, st, commentID)
}

func (c *Client) GetHistory(ctx context.Context, _, repo string, prID int) ([]model.ReviewHistoryEntry, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	st, _, err := c.loadState(ctx, owner, name, prID)
	if err != nil {
		return nil, err
	}
	return st.History, nil
}

func (c *Client) AppendHistory(ctx context.Context, _, repo string, prID int, entry model.ReviewHistoryEntry) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	st, commentID, err := c.loadState(ctx, owner, name, prID)
	if err != nil {
		return err
	}
	st.History = append(st.History, entry)
	return c.saveState(ctx, owner, name, prID, st, commentID)
}
