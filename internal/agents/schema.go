package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/mangoseo/onpage-audit/internal/completion"
	"github.com/mangoseo/onpage-audit/internal/seo"
)

// SchemaAgent generates JSON-LD structured data appropriate for the
// page type and flags validation problems in what is already present.
type SchemaAgent struct {
	client completion.Client
}

// NewSchemaAgent constructs a SchemaAgent.
func NewSchemaAgent(client completion.Client) *SchemaAgent {
	return &SchemaAgent{client: client}
}

// Type implements Agent.
func (a *SchemaAgent) Type() seo.AgentType { return seo.AgentSchema }

// Run implements Agent.
func (a *SchemaAgent) Run(ctx context.Context, in Input) (seo.AgentResult, error) {
	start := time.Now()
	snap := in.Snapshot

	existing := "none"
	if len(snap.SchemaBlocks) > 0 {
		existing = fmt.Sprintf("%d block(s), types: %s", len(snap.SchemaBlocks), schemaTypes(snap.SchemaBlocks))
	}

	prompt := fmt.Sprintf(`Generate schema.org structured data for this %s page.

URL: %s
Title: %s
Existing structured data: %s
Content excerpt:
%s

Return JSON with exactly these keys:
{"schema_json": {...}, "schema_type": "...", "validation_issues": ["..."]}
schema_json must be a complete, valid JSON-LD object for the page.`,
		PageType(snap),
		snap.URL,
		snap.Title,
		existing,
		truncate(snap.ContentText, 3000))

	output, err := a.client.GenerateStructured(ctx, prompt)
	if err != nil {
		return seo.AgentResult{}, fmt.Errorf("schema generation: %w", err)
	}

	return seo.AgentResult{
		AgentType: seo.AgentSchema,
		Input: map[string]any{
			"url":       snap.URL,
			"page_type": PageType(snap),
		},
		Output:         output,
		ProcessingTime: time.Since(start),
		Confidence:     0.85,
	}, nil
}

func schemaTypes(blocks []seo.SchemaBlock) string {
	out := ""
	for i, b := range blocks {
		if i > 0 {
			out += ", "
		}
		if b.Type != "" {
			out += b.Type
		} else {
			out += b.ItemType
		}
	}
	return out
}
