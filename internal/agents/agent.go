// Package agents holds the enrichment units that call the
// text-completion service (and, for some, third-party data APIs) to
// produce non-deterministic suggestions, plus the retry envelope that
// wraps every invocation.
package agents

import (
	"context"
	"strings"

	"github.com/mangoseo/onpage-audit/internal/seo"
)

// Input carries everything an agent may need for one run.
type Input struct {
	Snapshot *seo.PageSnapshot
	Audit    *seo.AuditResult
	Industry string
}

// Agent is one enrichment unit. Run is expected to fail transiently;
// callers wrap it with the Retrier rather than handling errors inline.
type Agent interface {
	Type() seo.AgentType
	Run(ctx context.Context, in Input) (seo.AgentResult, error)
}

// PageType infers the structured-data page type from the title.
func PageType(snap *seo.PageSnapshot) string {
	if snap == nil {
		return "Article"
	}
	title := strings.ToLower(snap.Title)
	switch {
	case strings.Contains(title, "blog"):
		return "BlogPost"
	case strings.Contains(title, "product"):
		return "Product"
	default:
		return "Article"
	}
}

// truncate keeps prompts bounded when pages carry long bodies.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// stringSlice pulls a []string out of a loosely typed payload value.
func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
