package api

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mangoseo/onpage-audit/internal/audit"
	"github.com/mangoseo/onpage-audit/internal/cache/redis"
	"github.com/mangoseo/onpage-audit/internal/metrics"
	"github.com/mangoseo/onpage-audit/internal/recommend"
	"github.com/mangoseo/onpage-audit/internal/seo"
	"github.com/mangoseo/onpage-audit/internal/store"
)

// AnalyzeRequest is one analysis submission. Exactly one of URL or HTML
// must be set.
type AnalyzeRequest struct {
	URL          string `json:"url,omitempty"`
	HTML         string `json:"html,omitempty"`
	Industry     string `json:"industry,omitempty"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`
}

// AnalyzeResponse is the full per-page analysis payload.
type AnalyzeResponse struct {
	AuditID         string               `json:"audit_id"`
	TaskID          string               `json:"task_id,omitempty"`
	URL             string               `json:"url"`
	PageID          string               `json:"url_id"`
	Status          string               `json:"status"`
	Score           float64              `json:"score"`
	CategoryScores  map[string]float64   `json:"category_scores"`
	Issues          []seo.Issue          `json:"issues"`
	IssuesCount     int                  `json:"issues_count"`
	Warnings        []seo.Issue          `json:"warnings"`
	WarningsCount   int                  `json:"warnings_count"`
	PassedChecks    []string             `json:"passed_checks"`
	Recommendations []seo.Recommendation `json:"recommendations"`
	AgentsUsed      []string             `json:"ai_agents_used"`
	Metrics         seo.ContentMetrics   `json:"metrics"`
	PageData        *seo.PageSnapshot    `json:"page_data"`
	AnalyzerContext map[string]any       `json:"analyzer_context"`
	Keywords        []string             `json:"extracted_keywords"`
	Industry        string               `json:"industry,omitempty"`
	Cached          bool                 `json:"cached"`
	GeneratedAt     time.Time            `json:"generated_at"`
}

// AnalysisService runs the full pipeline for one request: cache lookup,
// task bookkeeping, audit, agent enrichment, persistence.
type AnalysisService struct {
	auditor     *audit.Auditor
	synthesizer *recommend.Synthesizer
	audits      store.AuditStore
	tasks       store.TaskStore
	runs        store.AgentRunStore
	recs        store.RecommendationStore
	cache       *redis.Cache
	ids         seo.IDGenerator
	clock       seo.Clock
	analysisTTL time.Duration
	logger      *zap.Logger
}

// NewAnalysisService constructs an AnalysisService. cache may be nil;
// the store collaborators may be nil when persistence is not
// configured.
func NewAnalysisService(
	auditor *audit.Auditor,
	synthesizer *recommend.Synthesizer,
	audits store.AuditStore,
	tasks store.TaskStore,
	runs store.AgentRunStore,
	recs store.RecommendationStore,
	cache *redis.Cache,
	ids seo.IDGenerator,
	clock seo.Clock,
	analysisTTL time.Duration,
	logger *zap.Logger,
) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if analysisTTL <= 0 {
		analysisTTL = time.Hour
	}
	return &AnalysisService{
		auditor:     auditor,
		synthesizer: synthesizer,
		audits:      audits,
		tasks:       tasks,
		runs:        runs,
		recs:        recs,
		cache:       cache,
		ids:         ids,
		clock:       clock,
		analysisTTL: analysisTTL,
		logger:      logger,
	}
}

// Analyze runs the pipeline. Concurrent requests for the same URL may
// race on the advisory cache and recompute; duplicate work is tolerated
// rather than introducing a lock.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	cacheKey := ""
	if req.URL != "" && req.HTML == "" {
		cacheKey = "seo:analysis:" + req.URL
		if !req.ForceRefresh {
			var cached AnalyzeResponse
			if s.cache.Get(ctx, cacheKey, &cached) {
				metrics.ObserveCacheLookup(true)
				cached.Cached = true
				return &cached, nil
			}
			metrics.ObserveCacheLookup(false)
		} else {
			s.cache.Delete(ctx, cacheKey)
		}
	}

	taskID := s.createTask(ctx)

	result, err := s.auditor.Audit(ctx, audit.Request{
		URL:    req.URL,
		HTML:   req.HTML,
		TaskID: taskID,
	})
	if err != nil {
		metrics.ObserveAudit(req.URL, "failed", 0, 0)
		return nil, err
	}
	result.Industry = req.Industry

	metrics.ObserveAudit(req.URL, "completed", result.OverallScore, len(result.Issues))
	if result.Snapshot != nil && result.Snapshot.FetchDuration > 0 {
		metrics.ObserveFetch(req.URL, result.Snapshot.FetchDuration)
	}

	enriched, err := s.synthesizer.Generate(ctx, result, taskID)
	if err != nil {
		s.logger.Error("recommendation synthesis failed",
			zap.String("url", req.URL),
			zap.Error(err))
	}
	for _, rec := range enriched.Recommendations {
		metrics.AddRecommendations(string(rec.AgentType), 1)
	}

	if s.audits != nil {
		if saveErr := s.audits.Save(ctx, *result); saveErr != nil {
			s.logger.Error("storing audit failed",
				zap.String("page_id", result.PageID),
				zap.Error(saveErr))
		}
	}

	auditID, idErr := s.ids.NewID()
	if idErr != nil {
		return nil, fmt.Errorf("generate audit id: %w", idErr)
	}

	resp := &AnalyzeResponse{
		AuditID:         auditID,
		TaskID:          taskID,
		URL:             req.URL,
		PageID:          result.PageID,
		Status:          string(seo.TaskCompleted),
		Score:           result.OverallScore,
		CategoryScores:  result.CategoryScores,
		Issues:          result.Issues,
		IssuesCount:     len(result.Issues),
		Warnings:        result.Warnings,
		WarningsCount:   len(result.Warnings),
		PassedChecks:    result.PassedChecks,
		Recommendations: enriched.Recommendations,
		AgentsUsed:      enriched.AgentsUsed,
		Metrics:         result.Snapshot.ContentMetrics,
		PageData:        result.Snapshot,
		AnalyzerContext: analyzerContext(req, result),
		Keywords:        result.Keywords,
		Industry:        req.Industry,
		GeneratedAt:     s.clock.Now().UTC(),
	}

	if cacheKey != "" {
		s.cache.Set(ctx, cacheKey, resp, s.analysisTTL)
	}
	return resp, nil
}

// Task loads one task record.
func (s *AnalysisService) Task(ctx context.Context, id string) (seo.Task, error) {
	if s.tasks == nil {
		return seo.Task{}, store.ErrNotFound
	}
	return s.tasks.Get(ctx, id)
}

// AuditHistory returns past audit results for a page, newest first.
func (s *AnalysisService) AuditHistory(ctx context.Context, pageID string, limit int) ([]seo.AuditResult, error) {
	if s.audits == nil {
		return nil, nil
	}
	return s.audits.History(ctx, pageID, limit)
}

// LatestAudit returns the most recent audit result for a page.
func (s *AnalysisService) LatestAudit(ctx context.Context, pageID string) (seo.AuditResult, error) {
	if s.audits == nil {
		return seo.AuditResult{}, store.ErrNotFound
	}
	return s.audits.Latest(ctx, pageID)
}

// Recommendations returns stored recommendations for a page, newest
// first.
func (s *AnalysisService) Recommendations(ctx context.Context, pageID string) ([]seo.Recommendation, error) {
	if s.recs == nil {
		return nil, nil
	}
	return s.recs.ListRecommendations(ctx, pageID)
}

// AgentRuns returns the per-attempt agent records for a page, oldest
// first.
func (s *AnalysisService) AgentRuns(ctx context.Context, pageID string) ([]seo.AgentRun, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListRuns(ctx, pageID)
}

func (s *AnalysisService) createTask(ctx context.Context) string {
	if s.tasks == nil {
		return ""
	}
	id, err := s.ids.NewID()
	if err != nil {
		s.logger.Warn("task id generation failed", zap.Error(err))
		return ""
	}
	now := s.clock.Now().UTC()
	task := seo.Task{
		ID:        id,
		Kind:      "analysis",
		Status:    seo.TaskPending,
		Progress:  "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		s.logger.Warn("task creation failed", zap.String("task_id", id), zap.Error(err))
		return ""
	}
	return id
}

func analyzerContext(req AnalyzeRequest, result *seo.AuditResult) map[string]any {
	ctx := map[string]any{
		"ai_triggers": result.AITriggers,
		"source":      "url",
	}
	if req.HTML != "" {
		ctx["source"] = "html"
	}
	if req.Industry != "" {
		ctx["industry"] = req.Industry
	}
	return ctx
}
