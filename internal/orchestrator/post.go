package orchestrator

import (
	"fmt"
	"log"

	"github.com/wesm/prreviewer/internal/model"
)

// formatInlineContent builds a posted comment's content string, per
// spec.md §4.6.2 step 7 and §6's attribution convention.
func formatInlineContent(leadIn model.LeadIn, comment, tag string) string {
	core := fmt.Sprintf("**%s.** %s", leadIn, comment)
	if tag == "" {
		return core
	}
	return core + fmt.Sprintf("\n\n_[%s]_", tag)
}

// postInlineComments implements spec.md §4.6.2 step 7: post each
// validated comment, skipping any that duplicate an existing thread by
// path + lines + (tagged or untagged core) content. A per-post failure
// is logged here and does not abort the review.
func (rc *reviewContext) postInlineComments(comments []model.InlineComment) (posted int) {
	existing, err := rc.o.Store.GetExistingThreads(rc.ctx, rc.project, rc.repo, rc.prID, "")
	if err != nil {
		log.Printf("orchestrator[%s]: get existing threads for PR %d: %v", rc.correlationID, rc.prID, err)
		existing = nil
	}

	for _, c := range comments {
		core := formatInlineContent(c.LeadIn, c.Comment, "")
		tagged := formatInlineContent(c.LeadIn, c.Comment, rc.cfg.AttributionTag)

		if isDuplicateThread(existing, c.Path, c.StartLine, c.EndLine, core, tagged) {
			continue
		}

		if err := rc.o.Store.PostInlineCommentThread(rc.ctx, rc.project, rc.repo, rc.prID, c.Path, c.StartLine, c.EndLine, tagged, model.ThreadActive); err != nil {
			log.Printf("orchestrator[%s]: post inline comment on %s:%d-%d for PR %d: %v", rc.correlationID, c.Path, c.StartLine, c.EndLine, rc.prID, err)
			continue
		}
		posted++
	}
	return posted
}

func isDuplicateThread(existing []model.ExistingCommentThread, path string, startLine, endLine int, core, tagged string) bool {
	for _, t := range existing {
		if t.Path != path || t.StartLine != startLine || t.EndLine != endLine {
			continue
		}
		if t.Content == core || t.Content == tagged {
			return true
		}
	}
	return false
}
