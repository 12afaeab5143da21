// Package statestoretest provides an in-memory Store fake for
// orchestrator tests, standing in for a real platform-backed
// implementation the way internal/agent's TestAgent stands in for a
// real CLI agent.
package statestoretest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/wesm/prreviewer/internal/model"
	"github.com/wesm/prreviewer/internal/statestore"
)

type prKey struct {
	project string
	repo    string
	prID    int
}

// MemStore is a single-process, mutex-guarded implementation of
// statestore.Store backed by plain maps. AddReviewerVote, AddReviewTag,
// UpdatePRDescription, PostInlineCommentThread and GetFileChanges can
// be made to fail via the Fail* fields, for exercising the orchestrator's
// recoverable-peripheral-failure paths (spec.md §7).
type MemStore struct {
	mu sync.Mutex

	PRs          map[prKey]model.PullRequestSnapshot
	Metadata     map[prKey]model.ReviewMetadata
	History      map[prKey][]model.ReviewHistoryEntry
	Threads      map[prKey][]*model.ExistingCommentThread
	FileChanges  map[prKey][]model.FileChange
	Iterations   map[prKey]int
	SummaryCount map[prKey]int
	ReviewTag    map[prKey]bool

	PostedSummaries []string
	PostedInline    []PostedInlineComment
	Votes           []int
	Descriptions    []string

	nextThreadID int

	FailAddReviewerVote   bool
	FailAddReviewTag      bool
	FailUpdateDescription bool
	FailPostInline        bool
	FailGetFileChanges    bool
}

// PostedInlineComment records one PostInlineCommentThread call for
// test assertions.
type PostedInlineComment struct {
	Path               string
	StartLine, EndLine int
	Content            string
	Status             model.ThreadStatus
}

var _ statestore.Store = (*MemStore)(nil)

// New returns an empty MemStore.
func New() *MemStore {
	return &MemStore{
		PRs:          make(map[prKey]model.PullRequestSnapshot),
		Metadata:     make(map[prKey]model.ReviewMetadata),
		History:      make(map[prKey][]model.ReviewHistoryEntry),
		Threads:      make(map[prKey][]*model.ExistingCommentThread),
		FileChanges:  make(map[prKey][]model.FileChange),
		Iterations:   make(map[prKey]int),
		SummaryCount: make(map[prKey]int),
		ReviewTag:    make(map[prKey]bool),
	}
}

func key(project, repo string, prID int) prKey {
	return prKey{project: project, repo: repo, prID: prID}
}

// SetPR seeds the PR snapshot GetPR will return, for test fixtures.
func (m *MemStore) SetPR(project, repo string, prID int, pr model.PullRequestSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PRs[key(project, repo, prID)] = pr
}

// SetFileChanges seeds the file changes GetFileChanges will return.
func (m *MemStore) SetFileChanges(project, repo string, prID int, files []model.FileChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FileChanges[key(project, repo, prID)] = files
}

// MetadataFor returns the currently stored metadata for a PR, for test
// assertions.
func (m *MemStore) MetadataFor(project, repo string, prID int) model.ReviewMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Metadata[key(project, repo, prID)]
}

// HistoryFor returns a copy of the recorded history for a PR, for test
// assertions.
func (m *MemStore) HistoryFor(project, repo string, prID int) []model.ReviewHistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ReviewHistoryEntry, len(m.History[key(project, repo, prID)]))
	copy(out, m.History[key(project, repo, prID)])
	return out
}

func (m *MemStore) GetPR(ctx context.Context, project, repo string, prID int) (model.PullRequestSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PRs[key(project, repo, prID)], nil
}

func (m *MemStore) GetIterationCount(ctx context.Context, project, repo string, prID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Iterations[key(project, repo, prID)], nil
}

func (m *MemStore) GetMetadata(ctx context.Context, project, repo string, prID int) (model.ReviewMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Metadata[key(project, repo, prID)], nil
}

func (m *MemStore) SetMetadata(ctx context.Context, project, repo string, prID int, meta model.ReviewMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Metadata[key(project, repo, prID)] = meta
	return nil
}

func (m *MemStore) GetHistory(ctx context.Context, project, repo string, prID int) ([]model.ReviewHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ReviewHistoryEntry, len(m.History[key(project, repo, prID)]))
	copy(out, m.History[key(project, repo, prID)])
	return out, nil
}

func (m *MemStore) AppendHistory(ctx context.Context, project, repo string, prID int, entry model.ReviewHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(project, repo, prID)
	m.History[k] = append(m.History[k], entry)
	return nil
}

func (m *MemStore) GetExistingThreads(ctx context.Context, project, repo string, prID int, attributionTag string) ([]model.ExistingCommentThread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExistingCommentThread
	for _, t := range m.Threads[key(project, repo, prID)] {
		if attributionTag == "" || strings.Contains(t.Content, attributionTag) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *MemStore) UpdateThreadStatus(ctx context.Context, project, repo string, prID int, threadID string, status model.ThreadStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.Threads[key(project, repo, prID)] {
		if t.ThreadID == threadID {
			t.Status = status
		}
	}
	return nil
}

func (m *MemStore) CountSummaryComments(ctx context.Context, project, repo string, prID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SummaryCount[key(project, repo, prID)], nil
}

func (m *MemStore) GetFileChanges(ctx context.Context, project, repo string, prID int, pr model.PullRequestSnapshot) ([]model.FileChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailGetFileChanges {
		return nil, fmt.Errorf("statestoretest: GetFileChanges configured to fail")
	}
	return m.FileChanges[key(project, repo, prID)], nil
}

func (m *MemStore) PostCommentThread(ctx context.Context, project, repo string, prID int, content string, status model.ThreadStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PostedSummaries = append(m.PostedSummaries, content)
	return nil
}

func (m *MemStore) PostInlineCommentThread(ctx context.Context, project, repo string, prID int, path string, startLine, endLine int, content string, status model.ThreadStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPostInline {
		return fmt.Errorf("statestoretest: PostInlineCommentThread configured to fail")
	}
	m.PostedInline = append(m.PostedInline, PostedInlineComment{Path: path, StartLine: startLine, EndLine: endLine, Content: content, Status: status})

	m.nextThreadID++
	k := key(project, repo, prID)
	m.Threads[k] = append(m.Threads[k], &model.ExistingCommentThread{
		ThreadID:  fmt.Sprintf("t%d", m.nextThreadID),
		Path:      path,
		StartLine: startLine,
		EndLine:   endLine,
		Content:   content,
		Status:    status,
	})
	return nil
}

func (m *MemStore) AddReviewerVote(ctx context.Context, project, repo string, prID int, vote int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAddReviewerVote {
		return fmt.Errorf("statestoretest: AddReviewerVote configured to fail")
	}
	m.Votes = append(m.Votes, vote)
	return nil
}

func (m *MemStore) UpdatePRDescription(ctx context.Context, project, repo string, prID int, newDescription string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpdateDescription {
		return fmt.Errorf("statestoretest: UpdatePRDescription configured to fail")
	}
	m.Descriptions = append(m.Descriptions, newDescription)
	return nil
}

func (m *MemStore) HasReviewTag(ctx context.Context, project, repo string, prID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ReviewTag[key(project, repo, prID)], nil
}

func (m *MemStore) AddReviewTag(ctx context.Context, project, repo string, prID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAddReviewTag {
		return fmt.Errorf("statestoretest: AddReviewTag configured to fail")
	}
	m.ReviewTag[key(project, repo, prID)] = true
	return nil
}
