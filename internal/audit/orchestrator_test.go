package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mangoseo/onpage-audit/internal/seo"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type recordedTransition struct {
	ID      string
	Status  seo.TaskStatus
	Message string
}

type fakeTaskStore struct {
	transitions []recordedTransition
	err         error
}

func (s *fakeTaskStore) UpdateStatus(_ context.Context, id string, status seo.TaskStatus, message string) error {
	s.transitions = append(s.transitions, recordedTransition{ID: id, Status: status, Message: message})
	return s.err
}

func wordBody(words int) string {
	return strings.TrimSpace(strings.Repeat("word ", words))
}

func defectivePage() string {
	return `<html><body><p>` + wordBody(150) + `</p><img src="/pic.jpg"></body></html>`
}

func healthyPage() string {
	return `<!DOCTYPE html><html lang="en"><head>
<meta charset="utf-8"><meta name="viewport" content="width=device-width">
<meta name="description" content="` + strings.Repeat("d", 155) + `">
<meta name="keywords" content="alpha, beta">
<title>` + strings.Repeat("t", 55) + `</title>
<link rel="canonical" href="https://example.com/page">
<script type="application/ld+json">{"@type":"Article"}</script>
</head><body><h1>Main</h1><p>` + wordBody(500) + `</p>
<img src="/pic.jpg" alt="described"></body></html>`
}

func newTestAuditor(tasks TaskStore) *Auditor {
	return New(NewFetcher(nil, zap.NewNop()), tasks, fakeClock{now: time.Unix(1700000000, 0).UTC()}, zap.NewNop())
}

func TestAuditEndToEndDefects(t *testing.T) {
	t.Parallel()

	a := newTestAuditor(nil)
	ctx := context.Background()

	bad, err := a.Audit(ctx, Request{URL: "https://example.com/page", HTML: defectivePage()})
	require.NoError(t, err)

	types := map[string]seo.Severity{}
	for _, i := range bad.AllIssues() {
		types[i.Type] = i.Severity
	}
	assert.Equal(t, seo.SeverityCritical, types["title_missing"])
	assert.Equal(t, seo.SeverityWarning, types["thin_content"])
	assert.Equal(t, seo.SeverityWarning, types["missing_alt_text"])

	good, err := a.Audit(ctx, Request{URL: "https://example.com/page", HTML: healthyPage()})
	require.NoError(t, err)

	assert.Greater(t, good.OverallScore, bad.OverallScore)
	assert.GreaterOrEqual(t, bad.OverallScore, 0.0)
	assert.LessOrEqual(t, good.OverallScore, 100.0)
}

func TestAuditSplitsIssuesAndWarnings(t *testing.T) {
	t.Parallel()

	res, err := newTestAuditor(nil).Audit(context.Background(),
		Request{URL: "https://example.com/page", HTML: defectivePage()})
	require.NoError(t, err)

	for _, i := range res.Issues {
		assert.Contains(t, []seo.Severity{seo.SeverityCritical, seo.SeverityWarning}, i.Severity)
	}
	for _, w := range res.Warnings {
		assert.Equal(t, seo.SeverityInfo, w.Severity)
	}
	require.NotEmpty(t, res.Issues)
	require.NotEmpty(t, res.Warnings)
}

func TestAuditComputesTriggers(t *testing.T) {
	t.Parallel()

	res, err := newTestAuditor(nil).Audit(context.Background(),
		Request{URL: "https://example.com/page", HTML: defectivePage()})
	require.NoError(t, err)

	assert.Contains(t, res.AITriggers, "content_quality") // repeated single word
	assert.Contains(t, res.AITriggers, "schema_missing")
	assert.Contains(t, res.AITriggers, "thin_content")
	assert.Contains(t, res.AITriggers, "keyword_research")
	assert.Contains(t, res.AITriggers, "performance_audit")
}

func TestAuditTaskTransitions(t *testing.T) {
	t.Parallel()

	tasks := &fakeTaskStore{}
	_, err := newTestAuditor(tasks).Audit(context.Background(),
		Request{URL: "https://example.com/page", HTML: healthyPage(), TaskID: "task-1"})
	require.NoError(t, err)

	require.Len(t, tasks.transitions, 2)
	assert.Equal(t, seo.TaskProcessing, tasks.transitions[0].Status)
	assert.Equal(t, seo.TaskCompleted, tasks.transitions[1].Status)
}

func TestAuditTaskFailureOnFetchError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tasks := &fakeTaskStore{}
	_, err := newTestAuditor(tasks).Audit(context.Background(), Request{URL: srv.URL, TaskID: "task-2"})
	require.ErrorIs(t, err, ErrBlocked)

	require.Len(t, tasks.transitions, 2)
	assert.Equal(t, seo.TaskFailed, tasks.transitions[1].Status)
}

func TestAuditTaskWriteFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	tasks := &fakeTaskStore{err: assert.AnError}
	res, err := newTestAuditor(tasks).Audit(context.Background(),
		Request{URL: "https://example.com/page", HTML: healthyPage(), TaskID: "task-3"})
	require.NoError(t, err)
	assert.NotNil(t, res)
}

func TestAuditFetchesWhenHTMLAbsent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(healthyPage()))
	}))
	defer srv.Close()

	res, err := newTestAuditor(nil).Audit(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Positive(t, res.Snapshot.FetchDuration)
	assert.Equal(t, srv.URL, res.URL)
}
