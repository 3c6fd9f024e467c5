package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mangoseo/onpage-audit/internal/completion"
	"github.com/mangoseo/onpage-audit/internal/seo"
)

// KeywordAgent identifies the primary keyword, density adjustments and
// semantic keyword additions for a page.
type KeywordAgent struct {
	client completion.Client
}

// NewKeywordAgent constructs a KeywordAgent.
func NewKeywordAgent(client completion.Client) *KeywordAgent {
	return &KeywordAgent{client: client}
}

// Type implements Agent.
func (a *KeywordAgent) Type() seo.AgentType { return seo.AgentKeyword }

// Run implements Agent.
func (a *KeywordAgent) Run(ctx context.Context, in Input) (seo.AgentResult, error) {
	start := time.Now()
	snap := in.Snapshot

	prompt := fmt.Sprintf(`Analyze the keywords for this page.

URL: %s
Current keywords: %s
Content excerpt:
%s

Return JSON with exactly these keys:
{"primary_keyword": "...", "keyword_density_suggestions": ["..."], "semantic_keywords": ["..."]}`,
		snap.URL,
		strings.Join(snap.Keywords, ", "),
		truncate(snap.ContentText, 4000))

	output, err := a.client.GenerateStructured(ctx, prompt)
	if err != nil {
		return seo.AgentResult{}, fmt.Errorf("keyword analysis: %w", err)
	}

	return seo.AgentResult{
		AgentType: seo.AgentKeyword,
		Input: map[string]any{
			"url":            snap.URL,
			"keywords":       snap.Keywords,
			"content_length": len(snap.ContentText),
		},
		Output:         output,
		ProcessingTime: time.Since(start),
		Confidence:     0.9,
	}, nil
}
