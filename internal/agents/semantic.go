package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mangoseo/onpage-audit/internal/completion"
	"github.com/mangoseo/onpage-audit/internal/seo"
)

// SemanticAgent rewrites the title, meta description and content
// structure for semantic relevance.
type SemanticAgent struct {
	client completion.Client
}

// NewSemanticAgent constructs a SemanticAgent.
func NewSemanticAgent(client completion.Client) *SemanticAgent {
	return &SemanticAgent{client: client}
}

// Type implements Agent.
func (a *SemanticAgent) Type() seo.AgentType { return seo.AgentSemantic }

// Run implements Agent.
func (a *SemanticAgent) Run(ctx context.Context, in Input) (seo.AgentResult, error) {
	start := time.Now()
	snap := in.Snapshot

	prompt := fmt.Sprintf(`Optimize this %s page for semantic search relevance.

Current title: %s
Current meta description: %s
Target keywords: %s
Content excerpt:
%s

Return JSON with exactly these keys:
{"optimized_title": "...", "optimized_meta_description": "...", "content_suggestions": ["..."], "confidence": 0.8}`,
		PageType(snap),
		snap.Title,
		snap.MetaTags["description"],
		strings.Join(snap.Keywords, ", "),
		truncate(snap.ContentText, 4000))

	output, err := a.client.GenerateStructured(ctx, prompt)
	if err != nil {
		return seo.AgentResult{}, fmt.Errorf("semantic optimization: %w", err)
	}

	confidence := 0.8
	if c, ok := output["confidence"].(float64); ok && c > 0 {
		confidence = c
	}

	return seo.AgentResult{
		AgentType: seo.AgentSemantic,
		Input: map[string]any{
			"url":       snap.URL,
			"page_type": PageType(snap),
		},
		Output:         output,
		ProcessingTime: time.Since(start),
		Confidence:     confidence,
	}, nil
}
