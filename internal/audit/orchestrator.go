// Package audit composes extraction, rule validation, heuristic scoring
// and score aggregation into one audit result per request, and owns the
// redirect-following page fetch.
package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mangoseo/onpage-audit/internal/extract"
	"github.com/mangoseo/onpage-audit/internal/heuristics"
	"github.com/mangoseo/onpage-audit/internal/rules"
	"github.com/mangoseo/onpage-audit/internal/score"
	"github.com/mangoseo/onpage-audit/internal/seo"
)

// Quality threshold below which content is flagged for AI enrichment,
// on the 0-100 content quality scale.
const contentQualityThreshold = 60.0

// TaskStore is the external progress-tracking collaborator. The
// pipeline only writes status transitions; it never reads task state
// back for decisions.
type TaskStore interface {
	UpdateStatus(ctx context.Context, id string, status seo.TaskStatus, message string) error
}

// Request is one analysis request. Exactly one of URL or HTML drives
// the markup source: when HTML is set the fetch is skipped.
type Request struct {
	URL    string
	HTML   string
	TaskID string
}

// Auditor runs the rule-based analysis pipeline. It never calls AI
// agents; enrichment happens downstream.
type Auditor struct {
	fetcher   *Fetcher
	extractor *extract.Extractor
	validator *rules.Validator
	scorer    *heuristics.Scorer
	tasks     TaskStore
	clock     seo.Clock
	logger    *zap.Logger
}

// New constructs an Auditor.
func New(fetcher *Fetcher, tasks TaskStore, clock seo.Clock, logger *zap.Logger) *Auditor {
	return &Auditor{
		fetcher:   fetcher,
		extractor: extract.New(),
		validator: rules.New(),
		scorer:    heuristics.New(),
		tasks:     tasks,
		clock:     clock,
		logger:    logger,
	}
}

// Audit analyzes one page and returns the assembled result. Only fetch
// failures abort; every later stage degrades instead of failing.
func (a *Auditor) Audit(ctx context.Context, req Request) (*seo.AuditResult, error) {
	a.transition(ctx, req.TaskID, seo.TaskProcessing, "Starting SEO analysis")

	html := req.HTML
	var fetched *FetchResult
	if html == "" {
		var err error
		fetched, err = a.fetcher.Fetch(ctx, req.URL)
		if err != nil {
			a.transition(ctx, req.TaskID, seo.TaskFailed, fmt.Sprintf("SEO analysis failed: %v", err))
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		html = fetched.Body
	}

	snap := a.extractor.Snapshot(html, req.URL)
	if fetched != nil {
		snap.FetchDuration = fetched.Duration
	}

	issues := a.validator.Validate(snap)
	issues = append(issues, a.scorer.Analyze(snap)...)

	result := &seo.AuditResult{
		URL:            req.URL,
		PageID:         snap.ID,
		Timestamp:      a.clock.Now(),
		OverallScore:   score.Score(issues, score.MaxScore),
		CategoryScores: score.CategoryScores(issues),
		PassedChecks:   score.PassedChecks(issues),
		AITriggers:     aiTriggers(snap, issues),
		Keywords:       snap.Keywords,
		Snapshot:       snap,
	}
	for _, issue := range issues {
		if issue.Severity == seo.SeverityInfo {
			result.Warnings = append(result.Warnings, issue)
		} else {
			result.Issues = append(result.Issues, issue)
		}
	}

	a.logger.Info("audit completed",
		zap.String("url", req.URL),
		zap.Float64("score", result.OverallScore),
		zap.Int("issues", len(result.Issues)),
		zap.Int("warnings", len(result.Warnings)))

	a.transition(ctx, req.TaskID, seo.TaskCompleted, "SEO analysis completed successfully")
	return result, nil
}

// aiTriggers evaluates the boolean gates that decide whether agent
// enrichment is worth running for this page.
func aiTriggers(snap *seo.PageSnapshot, issues []seo.Issue) []string {
	var triggers []string

	if snap.ContentMetrics.ContentQualityScore < contentQualityThreshold {
		triggers = append(triggers, "content_quality")
	}

	schemaInvalid := len(snap.SchemaBlocks) == 0
	for _, block := range snap.SchemaBlocks {
		if len(block.ValidationErrors) > 0 {
			schemaInvalid = true
		}
	}
	if schemaInvalid {
		triggers = append(triggers, "schema_missing")
	}

	for _, issue := range issues {
		if issue.Type == "thin_content" {
			triggers = append(triggers, "thin_content")
			break
		}
	}

	if len(snap.Keywords) == 0 {
		triggers = append(triggers, "keyword_research")
	}

	// Performance, mobile and security data are not collected by this
	// pipeline, so their audits are always delegated to agents.
	triggers = append(triggers, "performance_audit", "mobile_readiness", "security_audit")

	return triggers
}

// transition writes a task status change. Missing task IDs are normal
// (direct HTML analysis); write failures are logged and swallowed so
// bookkeeping never breaks an audit.
func (a *Auditor) transition(ctx context.Context, taskID string, status seo.TaskStatus, message string) {
	if taskID == "" || a.tasks == nil {
		return
	}
	if err := a.tasks.UpdateStatus(ctx, taskID, status, message); err != nil {
		a.logger.Warn("task status update failed",
			zap.String("task_id", taskID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}
