package orchestrator

import (
	"log"
	"strings"

	"github.com/wesm/prreviewer/internal/model"
	"github.com/wesm/prreviewer/internal/provider"
)

const verificationContextLines = 10

// resolvePriorThreads implements spec.md §4.6.2 step 6: on ReReview
// with ResolvePriorThreadsOnReReview enabled, classify every active
// thread this engine previously posted by whether its file and lines
// are still touched by the current change set, and verify the rest
// with the Provider Port.
func (rc *reviewContext) resolvePriorThreads(files []model.FileChange) {
	if rc.cfg.AttributionTag == "" || !rc.cfg.ResolvePriorThreadsOnReReview {
		return
	}

	threads, err := rc.o.Store.GetExistingThreads(rc.ctx, rc.project, rc.repo, rc.prID, rc.cfg.AttributionTag)
	if err != nil {
		log.Printf("orchestrator[%s]: get existing threads for PR %d: %v", rc.correlationID, rc.prID, err)
		return
	}

	byPath := make(map[string]model.FileChange, len(files))
	for _, f := range files {
		byPath[f.Path] = f
	}

	var batch []provider.VerificationCandidate
	batchThreadIDs := make(map[string]string) // threadID -> path of each thread sent for verification

	for _, t := range threads {
		if t.Status != model.ThreadActive {
			continue
		}

		fc, ok := byPath[t.Path]
		if !ok {
			if err := rc.o.Store.UpdateThreadStatus(rc.ctx, rc.project, rc.repo, rc.prID, t.ThreadID, model.ThreadFixed); err != nil {
				log.Printf("orchestrator[%s]: resolve thread %s for PR %d: %v", rc.correlationID, t.ThreadID, rc.prID, err)
			}
			continue
		}

		if !threadLinesModified(t, fc.ChangedLineRanges) {
			continue // nothing to verify; leave active
		}

		batch = append(batch, provider.VerificationCandidate{
			ThreadID:    t.ThreadID,
			Path:        t.Path,
			Content:     t.Content,
			CodeContext: codeContextWindow(fc.ModifiedContent, t.StartLine, t.EndLine),
		})
		batchThreadIDs[t.ThreadID] = t.Path
	}

	if len(batch) == 0 {
		return
	}

	results, err := rc.o.ProviderPort.VerifyResolutions(rc.ctx, batch)
	if err != nil {
		// All-providers-failed default: every candidate stays unfixed
		// (active), per spec.md §4.6.2 step 6.
		log.Printf("orchestrator[%s]: verify resolutions for PR %d: %v", rc.correlationID, rc.prID, err)
		return
	}

	for _, res := range results {
		if res.IsFixed {
			if err := rc.o.Store.UpdateThreadStatus(rc.ctx, rc.project, rc.repo, rc.prID, res.ThreadID, model.ThreadFixed); err != nil {
				log.Printf("orchestrator[%s]: mark thread %s fixed for PR %d: %v", rc.correlationID, res.ThreadID, rc.prID, err)
			}
		}
	}
}

// threadLinesModified reports whether the thread's line range overlaps
// at least one changed range — the "lines were modified" case
// that requires re-verification.
func threadLinesModified(t model.ExistingCommentThread, ranges []model.LineRange) bool {
	for _, r := range ranges {
		if t.StartLine <= r.End && r.Start <= t.EndLine {
			return true
		}
	}
	return false
}

// codeContextWindow extracts a ±verificationContextLines window around
// [startLine, endLine] from modifiedContent, for the provider to judge
// whether the concern was actually addressed.
func codeContextWindow(modifiedContent *string, startLine, endLine int) string {
	if modifiedContent == nil {
		return ""
	}
	lines := strings.Split(strings.ReplaceAll(*modifiedContent, "\r\n", "\n"), "\n")
	lo := startLine - verificationContextLines
	if lo < 1 {
		lo = 1
	}
	hi := endLine + verificationContextLines
	if hi > len(lines) {
		hi = len(lines)
	}
	if lo > hi || lo < 1 || hi > len(lines) {
		return ""
	}
	return strings.Join(lines[lo-1:hi], "\n")
}
