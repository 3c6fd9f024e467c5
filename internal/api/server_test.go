package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mangoseo/onpage-audit/internal/agents"
	"github.com/mangoseo/onpage-audit/internal/audit"
	"github.com/mangoseo/onpage-audit/internal/config"
	"github.com/mangoseo/onpage-audit/internal/metrics"
	"github.com/mangoseo/onpage-audit/internal/recommend"
	"github.com/mangoseo/onpage-audit/internal/seo"
	"github.com/mangoseo/onpage-audit/internal/store/memory"
)

type fakeClock struct{ t time.Time }

func (c fakeClock) Now() time.Time { return c.t }

type seqIDs struct{ n int }

func (g *seqIDs) NewID() (string, error) {
	g.n++
	return fmt.Sprintf("id-%d", g.n), nil
}

type cannedAgent struct {
	agentType seo.AgentType
	output    map[string]any
}

func (a *cannedAgent) Type() seo.AgentType { return a.agentType }

func (a *cannedAgent) Run(_ context.Context, _ agents.Input) (seo.AgentResult, error) {
	return seo.AgentResult{AgentType: a.agentType, Output: a.output, Confidence: 0.9}, nil
}

const samplePage = `<!DOCTYPE html>
<html lang="en"><head>
<title>A Prime Example of a Well Optimized Page Title Here</title>
<meta name="description" content="This description sits comfortably inside the recommended length band for meta descriptions, giving search engines a clear and complete page summary text.">
<meta name="viewport" content="width=device-width, initial-scale=1">
</head><body>
<h1>Welcome</h1>
<p>Some body copy about interesting things readers enjoy.</p>
</body></html>`

func newTestServer(t *testing.T, cfg config.Config, pageHandler http.HandlerFunc) (*Server, *httptest.Server) {
	t.Helper()
	metrics.Init()

	var fetchTS *httptest.Server
	if pageHandler != nil {
		fetchTS = httptest.NewServer(pageHandler)
		t.Cleanup(fetchTS.Close)
	}

	clock := fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	mem := memory.New(clock)
	logger := zap.NewNop()

	client := http.DefaultClient
	if fetchTS != nil {
		client = fetchTS.Client()
	}
	auditor := audit.New(audit.NewFetcher(client, logger), mem, clock, logger)

	agentSet := []agents.Agent{
		&cannedAgent{agentType: seo.AgentKeyword, output: map[string]any{
			"primary_keyword": "example optimization",
		}},
	}
	retrier := agents.NewRetrier(mem, clock, time.Millisecond, logger)
	synth := recommend.New(agentSet, retrier, mem, mem, nil, &seqIDs{}, clock, logger)

	service := NewAnalysisService(auditor, synth, mem, mem, mem, mem, nil, &seqIDs{}, clock, time.Hour, logger)
	return NewServer(service, cfg, logger), fetchTS
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeWithInlineHTML(t *testing.T) {
	server, _ := newTestServer(t, config.Config{}, nil)

	rec := postJSON(t, server.Handler(), "/v1/seo/analyze", map[string]any{"html": samplePage})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.AuditID)
	assert.NotEmpty(t, resp.PageID)
	assert.GreaterOrEqual(t, resp.Score, 0.0)
	assert.LessOrEqual(t, resp.Score, 100.0)
	assert.Equal(t, len(resp.Issues), resp.IssuesCount)
	assert.Equal(t, len(resp.Warnings), resp.WarningsCount)
	assert.False(t, resp.Cached)
	assert.Contains(t, resp.AgentsUsed, "keyword")
	require.NotEmpty(t, resp.Recommendations)
	assert.Equal(t, "primary_keyword_optimization", resp.Recommendations[0].Type)
	assert.Equal(t, "html", resp.AnalyzerContext["source"])
}

func TestAnalyzeRequiresExactlyOneSource(t *testing.T) {
	server, _ := newTestServer(t, config.Config{}, nil)

	rec := postJSON(t, server.Handler(), "/v1/seo/analyze", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, server.Handler(), "/v1/seo/analyze", map[string]any{
		"url":  "https://example.com",
		"html": "<html></html>",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeFetchesURL(t *testing.T) {
	server, fetchTS := newTestServer(t, config.Config{}, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, samplePage)
	})

	rec := postJSON(t, server.Handler(), "/v1/seo/analyze", map[string]any{"url": fetchTS.URL})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, fetchTS.URL, resp.URL)
	assert.Equal(t, "url", resp.AnalyzerContext["source"])
	assert.NotEmpty(t, resp.TaskID)

	// the task created for the request finished the full pipeline
	req := httptest.NewRequest(http.MethodGet, "/v1/seo/tasks/"+resp.TaskID, nil)
	taskRec := httptest.NewRecorder()
	server.Handler().ServeHTTP(taskRec, req)
	require.Equal(t, http.StatusOK, taskRec.Code)

	var taskResp struct {
		Task seo.Task `json:"task"`
	}
	require.NoError(t, json.Unmarshal(taskRec.Body.Bytes(), &taskResp))
	assert.Equal(t, seo.TaskCompleted, taskResp.Task.Status)
}

func TestAnalyzeBlockedSourceMapsTo403(t *testing.T) {
	server, fetchTS := newTestServer(t, config.Config{}, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	rec := postJSON(t, server.Handler(), "/v1/seo/analyze", map[string]any{"url": fetchTS.URL})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAnalyzeFetchFailureMapsTo400(t *testing.T) {
	server, fetchTS := newTestServer(t, config.Config{}, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	rec := postJSON(t, server.Handler(), "/v1/seo/analyze", map[string]any{"url": fetchTS.URL})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskNotFound(t *testing.T) {
	server, _ := newTestServer(t, config.Config{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/seo/tasks/missing", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchRejectsOversizedRequests(t *testing.T) {
	server, _ := newTestServer(t, config.Config{}, nil)

	urls := make([]string, 11)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/%d", i)
	}
	rec := postJSON(t, server.Handler(), "/v1/seo/analyze/batch", map[string]any{"urls": urls})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, server.Handler(), "/v1/seo/analyze/batch", map[string]any{"urls": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchPartialFailure(t *testing.T) {
	server, fetchTS := newTestServer(t, config.Config{}, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/blocked" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, samplePage)
	})

	rec := postJSON(t, server.Handler(), "/v1/seo/analyze/batch", map[string]any{
		"urls": []string{fetchTS.URL + "/good", fetchTS.URL + "/blocked"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Contains(t, raw, "status")
	require.Contains(t, raw, "results")
	require.Contains(t, raw, "summary")

	var resp batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "partial", resp.Status)
	assert.Equal(t, resp.Summary.Status, resp.Status)
	assert.Equal(t, 2, resp.Summary.TotalURLs)
	assert.Equal(t, 1, resp.Summary.SuccessfulURLs)
	assert.Equal(t, 1, resp.Summary.FailedURLs)
	assert.Equal(t, "partial", resp.Summary.Status)
	assert.Positive(t, resp.Summary.AverageScore)

	require.Len(t, resp.Results, 2)
	assert.NotNil(t, resp.Results[0].Result)
	assert.Empty(t, resp.Results[0].Error)
	assert.Nil(t, resp.Results[1].Result)
	assert.NotEmpty(t, resp.Results[1].Error)
}

func TestAPIKeyMiddleware(t *testing.T) {
	cfg := config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "secret"
	server, _ := newTestServer(t, cfg, nil)

	rec := postJSON(t, server.Handler(), "/v1/seo/analyze", map[string]any{"html": samplePage})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	body, _ := json.Marshal(map[string]any{"html": samplePage})
	req := httptest.NewRequest(http.MethodPost, "/v1/seo/analyze", bytes.NewReader(body))
	req.Header.Set("X-API-Key", "secret")
	authRec := httptest.NewRecorder()
	server.Handler().ServeHTTP(authRec, req)
	assert.Equal(t, http.StatusOK, authRec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	server, _ := newTestServer(t, config.Config{}, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func getPath(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestPageReadEndpoints(t *testing.T) {
	server, _ := newTestServer(t, config.Config{}, nil)

	rec := postJSON(t, server.Handler(), "/v1/seo/analyze", map[string]any{"html": samplePage})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.PageID)
	base := "/v1/seo/pages/" + resp.PageID

	histRec := getPath(t, server.Handler(), base+"/audits")
	require.Equal(t, http.StatusOK, histRec.Code, histRec.Body.String())
	var hist struct {
		Audits []seo.AuditResult `json:"audits"`
	}
	require.NoError(t, json.Unmarshal(histRec.Body.Bytes(), &hist))
	require.Len(t, hist.Audits, 1)
	assert.Equal(t, resp.PageID, hist.Audits[0].PageID)

	latestRec := getPath(t, server.Handler(), base+"/audits/latest")
	require.Equal(t, http.StatusOK, latestRec.Code)
	var latest struct {
		Audit seo.AuditResult `json:"audit"`
	}
	require.NoError(t, json.Unmarshal(latestRec.Body.Bytes(), &latest))
	assert.Equal(t, resp.PageID, latest.Audit.PageID)

	recsRec := getPath(t, server.Handler(), base+"/recommendations")
	require.Equal(t, http.StatusOK, recsRec.Code)
	var recs struct {
		Recommendations []seo.Recommendation `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(recsRec.Body.Bytes(), &recs))
	require.NotEmpty(t, recs.Recommendations)
	assert.Equal(t, "primary_keyword_optimization", recs.Recommendations[0].Type)

	runsRec := getPath(t, server.Handler(), base+"/agent-runs")
	require.Equal(t, http.StatusOK, runsRec.Code)
	var runs struct {
		AgentRuns []seo.AgentRun `json:"agent_runs"`
	}
	require.NoError(t, json.Unmarshal(runsRec.Body.Bytes(), &runs))
	require.Len(t, runs.AgentRuns, 1)
	assert.Equal(t, "success", runs.AgentRuns[0].Status)
}

func TestPageReadEndpointEdgeCases(t *testing.T) {
	server, _ := newTestServer(t, config.Config{}, nil)

	missing := getPath(t, server.Handler(), "/v1/seo/pages/unknown/audits/latest")
	assert.Equal(t, http.StatusNotFound, missing.Code)

	empty := getPath(t, server.Handler(), "/v1/seo/pages/unknown/audits")
	require.Equal(t, http.StatusOK, empty.Code)
	assert.Contains(t, empty.Body.String(), `"audits":[]`)

	badLimit := getPath(t, server.Handler(), "/v1/seo/pages/unknown/audits?limit=zero")
	assert.Equal(t, http.StatusBadRequest, badLimit.Code)
}

func TestLoggingMiddlewareIncludesRequestID(t *testing.T) {
	metrics.Init()
	core, logs := observer.New(zapcore.InfoLevel)
	service := NewAnalysisService(nil, nil, nil, nil, nil, nil, nil, nil, nil, 0, zap.NewNop())
	server := NewServer(service, config.Config{}, zap.New(core))

	rec := getPath(t, server.Handler(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	headerID := rec.Header().Get("X-Request-ID")
	require.NotEmpty(t, headerID)

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, headerID, entries[0].ContextMap()["request_id"])
}
