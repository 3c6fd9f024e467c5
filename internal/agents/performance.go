package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/mangoseo/onpage-audit/internal/completion"
	"github.com/mangoseo/onpage-audit/internal/seo"
)

// PerformanceAgent projects the traffic impact of fixing the detected
// issues and sketches a remediation timeline.
type PerformanceAgent struct {
	client completion.Client
}

// NewPerformanceAgent constructs a PerformanceAgent.
func NewPerformanceAgent(client completion.Client) *PerformanceAgent {
	return &PerformanceAgent{client: client}
}

// Type implements Agent.
func (a *PerformanceAgent) Type() seo.AgentType { return seo.AgentPerformance }

// Run implements Agent.
func (a *PerformanceAgent) Run(ctx context.Context, in Input) (seo.AgentResult, error) {
	start := time.Now()
	snap := in.Snapshot

	issueSummary := "none"
	score := 0.0
	if in.Audit != nil {
		score = in.Audit.OverallScore
		issueSummary = summarizeIssues(in.Audit.AllIssues(), 10)
	}

	prompt := fmt.Sprintf(`Estimate the performance impact of fixing the audit findings for this page.

URL: %s
Current audit score: %.1f
Top issues:
%s
Response time: %dms

Return JSON with exactly these keys:
{"traffic_prediction": "...", "timeline": "...", "mobile_desktop_impact": "...", "risk_assessment": "..."}`,
		snap.URL,
		score,
		issueSummary,
		snap.FetchDuration.Milliseconds())

	output, err := a.client.GenerateStructured(ctx, prompt)
	if err != nil {
		return seo.AgentResult{}, fmt.Errorf("performance projection: %w", err)
	}

	confidence := 0.0
	if len(output) > 0 {
		confidence = 0.9
	}

	return seo.AgentResult{
		AgentType: seo.AgentPerformance,
		Input: map[string]any{
			"url":   snap.URL,
			"score": score,
		},
		Output:         output,
		ProcessingTime: time.Since(start),
		Confidence:     confidence,
	}, nil
}

// summarizeIssues renders at most n issue types as prompt context.
func summarizeIssues(issues []seo.Issue, n int) string {
	if len(issues) == 0 {
		return "none"
	}
	out := ""
	for i, issue := range issues {
		if i >= n {
			break
		}
		out += fmt.Sprintf("- %s (%s): %s\n", issue.Type, issue.Severity, issue.Message)
	}
	return out
}
