package githubstore

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClientWithHTTPClient(server.Client(), server.URL+"/", "test-token")
	if err != nil {
		t.Fatalf("NewClientWithHTTPClient: %v", err)
	}
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func TestGetPRMapsFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls/42", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"number": 42,
			"title":  "Add feature",
			"body":   "does the thing",
			"draft":  true,
			"user":   map[string]string{"login": "alice"},
			"head":   map[string]string{"ref": "feature/x", "sha": "abc123"},
			"base":   map[string]string{"ref": "main", "sha": "def456"},
		})
	})
	mux.HandleFunc("/repos/acme/widgets/pulls/42/reviews", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{
			{"user": map[string]string{"login": "bob"}, "state": "APPROVED"},
		})
	})

	client := newTestClient(t, mux)
	pr, err := client.GetPR(t.Context(), "", "acme/widgets", 42)
	if err != nil {
		t.Fatalf("GetPR: %v", err)
	}
	if pr.Title != "Add feature" || !pr.IsDraft || pr.SourceCommit != "abc123" {
		t.Errorf("GetPR = %+v", pr)
	}
	if len(pr.Reviewers) != 1 || pr.Reviewers[0].Vote != 10 {
		t.Errorf("Reviewers = %+v, want one APPROVED vote of 10", pr.Reviewers)
	}
}

func TestEventFromVote(t *testing.T) {
	cases := []struct {
		vote int
		want string
	}{
		{10, "APPROVE"},
		{5, "APPROVE"},
		{0, "COMMENT"},
		{-5, "REQUEST_CHANGES"},
		{-10, "REQUEST_CHANGES"},
	}
	for _, c := range cases {
		if got := eventFromVote(c.vote); got != c.want {
			t.Errorf("eventFromVote(%d) = %q, want %q", c.vote, got, c.want)
		}
	}
}

func TestHasReviewTagChecksLabel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/issues/7/labels", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]string{{"name": "bug"}, {"name": reviewTagLabel}})
	})

	client := newTestClient(t, mux)
	tagged, err := client.HasReviewTag(t.Context(), "", "acme/widgets", 7)
	if err != nil {
		t.Fatalf("HasReviewTag: %v", err)
	}
	if !tagged {
		t.Error("HasReviewTag = false, want true")
	}
}

func TestSplitRepoRejectsMissingOwner(t *testing.T) {
	if _, _, err := splitRepo("widgets"); err == nil {
		t.Error("splitRepo(\"widgets\") should have errored")
	}
	owner, name, err := splitRepo("acme/widgets")
	if err != nil || owner != "acme" || name != "widgets" {
		t.Errorf("splitRepo = %q, %q, %v", owner, name, err)
	}
}
