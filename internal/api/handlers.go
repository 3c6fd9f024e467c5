package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mangoseo/onpage-audit/internal/audit"
	"github.com/mangoseo/onpage-audit/internal/seo"
	"github.com/mangoseo/onpage-audit/internal/store"
)

const maxBatchSize = 10

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if (req.URL == "") == (req.HTML == "") {
		writeError(w, http.StatusBadRequest, "exactly one of url or html is required")
		return
	}

	resp, err := s.service.Analyze(r.Context(), req)
	if err != nil {
		s.writeAnalyzeError(w, req.URL, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type batchRequest struct {
	URLs         []string `json:"urls"`
	Industry     string   `json:"industry,omitempty"`
	ForceRefresh bool     `json:"force_refresh,omitempty"`
}

type batchEntry struct {
	URL    string           `json:"url"`
	Error  string           `json:"error,omitempty"`
	Result *AnalyzeResponse `json:"result,omitempty"`
}

type batchSummary struct {
	BatchID          string    `json:"batch_id"`
	TotalURLs        int       `json:"total_urls"`
	ProcessedURLs    int       `json:"processed_urls"`
	SuccessfulURLs   int       `json:"successful_urls"`
	FailedURLs       int       `json:"failed_urls"`
	TotalIssuesFound int       `json:"total_issues_found"`
	AverageScore     float64   `json:"average_score"`
	Status           string    `json:"status"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
}

type batchResponse struct {
	Status  string       `json:"status"`
	Summary batchSummary `json:"summary"`
	Results []batchEntry `json:"results"`
}

// analyzeBatch runs each URL sequentially. Per-URL failures are
// reported in place and never abort the batch.
func (s *Server) analyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls is required")
		return
	}
	if len(req.URLs) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "at most 10 urls per batch")
		return
	}

	batchID, err := s.service.ids.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	startedAt := s.service.clock.Now().UTC()

	results := make([]batchEntry, 0, len(req.URLs))
	var (
		succeeded   int
		totalIssues int
		scoreSum    float64
	)
	for _, url := range req.URLs {
		resp, err := s.service.Analyze(r.Context(), AnalyzeRequest{
			URL:          url,
			Industry:     req.Industry,
			ForceRefresh: req.ForceRefresh,
		})
		if err != nil {
			s.logger.Warn("batch entry failed",
				zap.String("batch_id", batchID),
				zap.String("url", url),
				zap.Error(err))
			results = append(results, batchEntry{URL: url, Error: err.Error()})
			continue
		}
		succeeded++
		totalIssues += resp.IssuesCount
		scoreSum += resp.Score
		results = append(results, batchEntry{URL: url, Result: resp})
	}

	averageScore := 0.0
	if succeeded > 0 {
		averageScore = scoreSum / float64(succeeded)
	}
	status := "completed"
	if succeeded == 0 {
		status = "failed"
	} else if succeeded < len(req.URLs) {
		status = "partial"
	}

	writeJSON(w, http.StatusOK, batchResponse{
		Status: status,
		Summary: batchSummary{
			BatchID:          batchID,
			TotalURLs:        len(req.URLs),
			ProcessedURLs:    len(results),
			SuccessfulURLs:   succeeded,
			FailedURLs:       len(req.URLs) - succeeded,
			TotalIssuesFound: totalIssues,
			AverageScore:     averageScore,
			Status:           status,
			StartedAt:        startedAt,
			CompletedAt:      s.service.clock.Now().UTC(),
		},
		Results: results,
	})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	task, err := s.service.Task(r.Context(), taskID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

func (s *Server) getAuditHistory(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "page_id")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	history, err := s.service.AuditHistory(r.Context(), pageID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if history == nil {
		history = []seo.AuditResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"page_id": pageID, "audits": history})
}

func (s *Server) getLatestAudit(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "page_id")
	latest, err := s.service.LatestAudit(r.Context(), pageID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no audit recorded for page")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit": latest})
}

func (s *Server) getRecommendations(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "page_id")
	recs, err := s.service.Recommendations(r.Context(), pageID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if recs == nil {
		recs = []seo.Recommendation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"page_id": pageID, "recommendations": recs})
}

func (s *Server) getAgentRuns(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "page_id")
	runs, err := s.service.AgentRuns(r.Context(), pageID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if runs == nil {
		runs = []seo.AgentRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"page_id": pageID, "agent_runs": runs})
}

// writeAnalyzeError maps pipeline failures: blocked sources are a
// distinct client error, other fetch failures a generic client error,
// anything else a server error.
func (s *Server) writeAnalyzeError(w http.ResponseWriter, url string, err error) {
	switch {
	case errors.Is(err, audit.ErrBlocked):
		writeError(w, http.StatusForbidden, "source blocked or rate limited")
	case errors.Is(err, audit.ErrFetch):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("analysis failed",
			zap.String("url", url),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
