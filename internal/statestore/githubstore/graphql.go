package githubstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

var graphqlHTTPClient = &http.Client{Timeout: 30 * time.Second}

const reviewThreadsQuery = `query($owner: String!, $repo: String!, $pr: Int!) {
	repository(owner: $owner, name: $repo) {
		pullRequest(number: $pr) {
			reviewThreads(first: 100) {
				nodes {
					id
					isResolved
					comments(first: 1) {
						nodes { databaseId }
					}
				}
			}
		}
	}
}`

const resolveThreadMutation = `mutation($id: ID!) {
	resolveReviewThread(input: {threadId: $id}) { thread { isResolved } }
}`

const unresolveThreadMutation = `mutation($id: ID!) {
	unresolveReviewThread(input: {threadId: $id}) { thread { isResolved } }
}`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type reviewThreadsResponse struct {
	Data struct {
		Repository struct {
			PullRequest struct {
				ReviewThreads struct {
					Nodes []struct {
						ID         string `json:"id"`
						IsResolved bool   `json:"isResolved"`
						Comments   struct {
							Nodes []struct {
								DatabaseID int64 `json:"databaseId"`
							} `json:"nodes"`
						} `json:"comments"`
					} `json:"nodes"`
				} `json:"reviewThreads"`
			} `json:"pullRequest"`
		} `json:"repository"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type graphqlMutationResponse struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// reviewThreadIDForComment resolves an inline review comment's
// database ID to its GraphQL review-thread node ID and current
// resolution state, for UpdateThreadStatus's resolve/unresolve call.
func (c *Client) reviewThreadIDForComment(ctx context.Context, owner, repo string, prID int, commentDatabaseID int64) (string, bool, error) {
	reqBody := graphqlRequest{
		Query: reviewThreadsQuery,
		Variables: map[string]any{
			"owner": owner,
			"repo":  repo,
			"pr":    prID,
		},
	}
	var resp reviewThreadsResponse
	if err := c.doGraphQL(ctx, reqBody, &resp); err != nil {
		return "", false, err
	}
	for _, node := range resp.Data.Repository.PullRequest.ReviewThreads.Nodes {
		if len(node.Comments.Nodes) > 0 && node.Comments.Nodes[0].DatabaseID == commentDatabaseID {
			return node.ID, node.IsResolved, nil
		}
	}
	return "", false, fmt.Errorf("githubstore: no review thread found for comment %d", commentDatabaseID)
}

// setThreadResolved resolves or unresolves a review thread by its
// GraphQL node ID.
func (c *Client) setThreadResolved(ctx context.Context, threadNodeID string, resolved bool) error {
	mutation := unresolveThreadMutation
	if resolved {
		mutation = resolveThreadMutation
	}
	reqBody := graphqlRequest{
		Query:     mutation,
		Variables: map[string]any{"id": threadNodeID},
	}
	var resp graphqlMutationResponse
	if err := c.doGraphQL(ctx, reqBody, &resp); err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		return fmt.Errorf("githubstore: resolve thread mutation: %s", resp.Errors[0].Message)
	}
	return nil
}

func (c *Client) doGraphQL(ctx context.Context, reqBody graphqlRequest, out any) error {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("githubstore: marshal graphql request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("githubstore: create graphql request: %w", err)
	}
	httpReq.Header.Set("Authorization", "bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := graphqlHTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("githubstore: graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("githubstore: graphql non-200 response: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("githubstore: decode graphql response: %w", err)
	}
	return nil
}
