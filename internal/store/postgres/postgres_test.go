package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangoseo/onpage-audit/internal/seo"
	"github.com/mangoseo/onpage-audit/internal/store"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s, err := NewWithPool(mock)
	require.NoError(t, err)
	return s, mock
}

func TestCreateTaskInsertsRow(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	now := time.Unix(1700000000, 0).UTC()
	task := seo.Task{
		ID:        "task-1",
		Kind:      "analysis",
		Status:    seo.TaskPending,
		Progress:  "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO tasks").
		WithArgs(task.ID, task.Kind, task.Status, task.Progress, task.CreatedAt, task.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Create(context.Background(), task))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusMissingTask(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE tasks").
		WithArgs(seo.TaskCompleted, "done", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateStatus(context.Background(), "missing", seo.TaskCompleted, "done")
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTaskNotFound(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, kind, status").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendAgentRun(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	now := time.Unix(1700000000, 0).UTC()
	run := seo.AgentRun{
		TaskID:    "task-1",
		PageID:    "page-1",
		AgentType: seo.AgentKeyword,
		Attempt:   2,
		Status:    "failed",
		Error:     "upstream timeout",
		CreatedAt: now,
	}

	mock.ExpectExec("INSERT INTO agent_runs").
		WithArgs(run.TaskID, run.PageID, run.AgentType, run.Attempt, run.Status, run.Error, run.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Append(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAllRecommendations(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	now := time.Unix(1700000000, 0).UTC()
	recs := []seo.Recommendation{
		{
			ID: "r1", TaskID: "task-1", PageID: "page-1",
			Type: "title_optimization", Original: "Old", Suggested: "New",
			Confidence: 0.8, Reasoning: "clearer intent", ImpactScore: 0.85,
			AgentType: seo.AgentSemantic, Complexity: seo.ComplexityLow,
			EstimatedMin: 5, CreatedAt: now,
		},
		{
			ID: "r2", TaskID: "task-1", PageID: "page-1",
			Type: "schema_markup", Suggested: "{}",
			Confidence: 0.85, ImpactScore: 0.8,
			AgentType: seo.AgentSchema, Complexity: seo.ComplexityHigh,
			EstimatedMin: 45, CreatedAt: now,
		},
	}

	for _, rec := range recs {
		mock.ExpectExec("INSERT INTO recommendations").
			WithArgs(rec.ID, rec.TaskID, rec.PageID, rec.Type, rec.Original, rec.Suggested,
				rec.Confidence, rec.Reasoning, rec.ImpactScore, rec.AgentType,
				rec.Complexity, rec.EstimatedMin, rec.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	require.NoError(t, s.SaveAll(context.Background(), recs))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestAuditRoundTrip(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	want := seo.AuditResult{
		URL:          "https://example.com",
		PageID:       "page-1",
		OverallScore: 72.5,
		PassedChecks: []string{"title_present"},
	}
	payload, err := json.Marshal(want)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload").
		WithArgs("page-1").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))

	got, err := s.Latest(context.Background(), "page-1")
	require.NoError(t, err)
	assert.Equal(t, want.OverallScore, got.OverallScore)
	assert.Equal(t, want.PassedChecks, got.PassedChecks)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryLimit(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	first, _ := json.Marshal(seo.AuditResult{PageID: "page-1", OverallScore: 70})
	second, _ := json.Marshal(seo.AuditResult{PageID: "page-1", OverallScore: 60})

	mock.ExpectQuery("SELECT payload").
		WithArgs("page-1", 2).
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(first).AddRow(second))

	results, err := s.History(context.Background(), "page-1", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 70.0, results[0].OverallScore)
	require.NoError(t, mock.ExpectationsWereMet())
}
