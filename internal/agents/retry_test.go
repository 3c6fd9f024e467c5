package agents

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mangoseo/onpage-audit/internal/metrics"
	"github.com/mangoseo/onpage-audit/internal/seo"
)

type fakeClock struct{ t time.Time }

func (c fakeClock) Now() time.Time { return c.t }

type recordingRunLog struct {
	mu   sync.Mutex
	runs []seo.AgentRun
	err  error
}

func (l *recordingRunLog) Append(_ context.Context, run seo.AgentRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = append(l.runs, run)
	return l.err
}

type scriptedAgent struct {
	agentType seo.AgentType
	failures  int
	calls     int
	result    seo.AgentResult
}

func (a *scriptedAgent) Type() seo.AgentType { return a.agentType }

func (a *scriptedAgent) Run(_ context.Context, _ Input) (seo.AgentResult, error) {
	a.calls++
	if a.calls <= a.failures {
		return seo.AgentResult{}, errors.New("transient upstream failure")
	}
	return a.result, nil
}

func newTestRetrier(log RunLog) *Retrier {
	metrics.Init()
	return NewRetrier(log, fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}, time.Millisecond, zap.NewNop())
}

func TestRetrierSucceedsAfterTransientFailures(t *testing.T) {
	log := &recordingRunLog{}
	agent := &scriptedAgent{
		agentType: seo.AgentKeyword,
		failures:  2,
		result: seo.AgentResult{
			AgentType:  seo.AgentKeyword,
			Output:     map[string]any{"primary_keyword": "seo audit"},
			Confidence: 0.9,
		},
	}

	result := newTestRetrier(log).Run(context.Background(), agent, Input{}, "task-1", "page-1")

	assert.Equal(t, 0.9, result.Confidence)
	assert.Equal(t, "seo audit", result.Output["primary_keyword"])
	assert.Empty(t, result.Err)

	require.Len(t, log.runs, 3)
	assert.Equal(t, "failed", log.runs[0].Status)
	assert.Equal(t, "failed", log.runs[1].Status)
	assert.Equal(t, "success", log.runs[2].Status)
	for i, run := range log.runs {
		assert.Equal(t, i+1, run.Attempt)
		assert.Equal(t, "task-1", run.TaskID)
		assert.Equal(t, "page-1", run.PageID)
		assert.Equal(t, seo.AgentKeyword, run.AgentType)
	}
}

func TestRetrierExhaustionReturnsFallback(t *testing.T) {
	log := &recordingRunLog{}
	agent := &scriptedAgent{agentType: seo.AgentSchema, failures: 10}

	result := newTestRetrier(log).Run(context.Background(), agent, Input{}, "task-1", "page-1")

	assert.Equal(t, seo.AgentSchema, result.AgentType)
	assert.Zero(t, result.Confidence)
	assert.Empty(t, result.Output)
	assert.Equal(t, "agent failed after retries", result.Err)

	require.Len(t, log.runs, 3)
	for _, run := range log.runs {
		assert.Equal(t, "failed", run.Status)
		assert.NotEmpty(t, run.Error)
	}
	assert.Equal(t, 3, agent.calls)
}

func TestRetrierRunLogFailureDoesNotAbort(t *testing.T) {
	log := &recordingRunLog{err: assert.AnError}
	agent := &scriptedAgent{
		agentType: seo.AgentSemantic,
		result:    seo.AgentResult{AgentType: seo.AgentSemantic, Confidence: 0.8},
	}

	result := newTestRetrier(log).Run(context.Background(), agent, Input{}, "", "page-1")

	assert.Equal(t, 0.8, result.Confidence)
	assert.Equal(t, 1, agent.calls)
}

func TestRetrierStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	log := &recordingRunLog{}
	agent := &scriptedAgent{agentType: seo.AgentCompetitor}

	result := newTestRetrier(log).Run(ctx, agent, Input{}, "task-1", "page-1")

	assert.Equal(t, 0, agent.calls)
	assert.Equal(t, "agent failed after retries", result.Err)
	assert.Empty(t, log.runs)
}

func TestFallbackShape(t *testing.T) {
	fb := Fallback(seo.AgentPerformance)
	assert.Equal(t, seo.AgentPerformance, fb.AgentType)
	assert.NotNil(t, fb.Input)
	assert.NotNil(t, fb.Output)
	assert.Zero(t, fb.Confidence)
}

func TestRetrierRecordsAttemptMetrics(t *testing.T) {
	log := &recordingRunLog{}
	agent := &scriptedAgent{
		agentType: seo.AgentPerformance,
		failures:  2,
		result:    seo.AgentResult{AgentType: seo.AgentPerformance, Confidence: 0.9},
	}

	newTestRetrier(log).Run(context.Background(), agent, Input{}, "task-1", "page-1")

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, `seo_agent_attempts_total{agent="performance",status="failed"} 2`)
	assert.Contains(t, body, `seo_agent_attempts_total{agent="performance",status="success"} 1`)
	assert.Contains(t, body, `seo_agent_duration_seconds_count{agent="performance"} 1`)
}
