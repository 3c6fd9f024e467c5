package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mangoseo/onpage-audit/internal/completion"
	"github.com/mangoseo/onpage-audit/internal/seo"
)

const serpResultLimit = 5

// CompetitorAgent discovers pages ranking for the target keywords and
// derives gap analysis against them. SERP discovery is optional; when
// no SERP client is configured or the lookup fails, the completion
// service estimates the competitive landscape instead.
type CompetitorAgent struct {
	client completion.Client
	serp   SERPClient
	logger *zap.Logger
}

// NewCompetitorAgent constructs a CompetitorAgent. serp may be nil.
func NewCompetitorAgent(client completion.Client, serp SERPClient, logger *zap.Logger) *CompetitorAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompetitorAgent{client: client, serp: serp, logger: logger}
}

// Type implements Agent.
func (a *CompetitorAgent) Type() seo.AgentType { return seo.AgentCompetitor }

// Run implements Agent.
func (a *CompetitorAgent) Run(ctx context.Context, in Input) (seo.AgentResult, error) {
	start := time.Now()
	snap := in.Snapshot

	query := snap.Title
	if len(snap.Keywords) > 0 {
		query = snap.Keywords[0]
	}

	serpContext := "No live search results available; estimate the competitive landscape from the query alone."
	if a.serp != nil {
		results, err := a.serp.Search(ctx, query, serpResultLimit)
		if err != nil {
			a.logger.Warn("serp lookup failed, falling back to estimation",
				zap.String("query", query),
				zap.Error(err))
		} else if len(results) > 0 {
			var b strings.Builder
			b.WriteString("Top ranking pages for the query:\n")
			for _, r := range results {
				fmt.Fprintf(&b, "%d. %s (%s): %s\n", r.Position, r.Title, r.URL, r.Snippet)
			}
			serpContext = b.String()
		}
	}

	prompt := fmt.Sprintf(`Analyze the competitive landscape for this page.

URL: %s
Target query: %s
%s

Return JSON with exactly these keys:
{
  "competitors": [{"url": "...", "seo_score": 0, "content_strategy": "...", "weaknesses": ["..."], "opportunities": ["..."]}],
  "gap_analysis": {"content_gaps": ["..."], "technical_opportunities": ["..."], "quick_wins": ["..."], "long_term_opportunities": ["..."]}
}`,
		snap.URL,
		query,
		serpContext)

	output, err := a.client.GenerateStructured(ctx, prompt)
	if err != nil {
		return seo.AgentResult{}, fmt.Errorf("competitor analysis: %w", err)
	}

	confidence := 0.5
	if len(output) > 0 {
		confidence = 0.95
	}

	return seo.AgentResult{
		AgentType: seo.AgentCompetitor,
		Input: map[string]any{
			"url":   snap.URL,
			"query": query,
		},
		Output:         output,
		ProcessingTime: time.Since(start),
		Confidence:     confidence,
	}, nil
}
