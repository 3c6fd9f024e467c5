// Package postgres provides Postgres-backed persistence for tasks,
// agent runs, recommendations and audit history.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mangoseo/onpage-audit/internal/seo"
	"github.com/mangoseo/onpage-audit/internal/store"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

var (
	_ store.TaskStore           = (*Store)(nil)
	_ store.AgentRunStore       = (*Store)(nil)
	_ store.RecommendationStore = (*Store)(nil)
	_ store.AuditStore          = (*Store)(nil)
)

// Store implements the store interfaces over a pgx pool.
type Store struct {
	pool querier
}

// New connects a pool and returns a Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewWithPool(pool querier) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Create implements store.TaskStore.
func (s *Store) Create(ctx context.Context, task seo.Task) error {
	if task.ID == "" {
		return fmt.Errorf("task id is required")
	}
	query := `
INSERT INTO tasks (id, kind, status, progress_message, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.pool.Exec(ctx, query,
		task.ID, task.Kind, task.Status, task.Progress, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// UpdateStatus implements store.TaskStore. Terminal statuses also set
// completed_at, once.
func (s *Store) UpdateStatus(ctx context.Context, id string, status seo.TaskStatus, message string) error {
	query := `
UPDATE tasks
SET status = $1,
    progress_message = $2,
    updated_at = now(),
    completed_at = CASE
        WHEN $1 IN ('completed', 'failed', 'cancelled') AND completed_at IS NULL THEN now()
        ELSE completed_at
    END
WHERE id = $3`
	tag, err := s.pool.Exec(ctx, query, status, message, id)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Get implements store.TaskStore.
func (s *Store) Get(ctx context.Context, id string) (seo.Task, error) {
	query := `
SELECT id, kind, status, progress_message, created_at, updated_at, completed_at
FROM tasks
WHERE id = $1`
	var task seo.Task
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&task.ID, &task.Kind, &task.Status, &task.Progress,
		&task.CreatedAt, &task.UpdatedAt, &task.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return seo.Task{}, store.ErrNotFound
	}
	if err != nil {
		return seo.Task{}, fmt.Errorf("select task: %w", err)
	}
	return task, nil
}

// Append implements store.AgentRunStore.
func (s *Store) Append(ctx context.Context, run seo.AgentRun) error {
	query := `
INSERT INTO agent_runs (task_id, page_id, agent_type, attempt, status, error_message, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.pool.Exec(ctx, query,
		run.TaskID, run.PageID, run.AgentType, run.Attempt, run.Status, run.Error, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert agent run: %w", err)
	}
	return nil
}

// ListRuns implements store.AgentRunStore.
func (s *Store) ListRuns(ctx context.Context, pageID string) ([]seo.AgentRun, error) {
	query := `
SELECT task_id, page_id, agent_type, attempt, status, error_message, created_at
FROM agent_runs
WHERE page_id = $1
ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, pageID)
	if err != nil {
		return nil, fmt.Errorf("select agent runs: %w", err)
	}
	defer rows.Close()

	var runs []seo.AgentRun
	for rows.Next() {
		var run seo.AgentRun
		if err := rows.Scan(&run.TaskID, &run.PageID, &run.AgentType,
			&run.Attempt, &run.Status, &run.Error, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan agent run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent runs: %w", err)
	}
	return runs, nil
}

// SaveAll implements store.RecommendationStore.
func (s *Store) SaveAll(ctx context.Context, recs []seo.Recommendation) error {
	query := `
INSERT INTO recommendations (
	id, task_id, page_id, type, original, suggested,
	confidence_score, reasoning, impact_score, agent_type,
	implementation_complexity, estimated_time, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	for _, rec := range recs {
		_, err := s.pool.Exec(ctx, query,
			rec.ID, rec.TaskID, rec.PageID, rec.Type, rec.Original, rec.Suggested,
			rec.Confidence, rec.Reasoning, rec.ImpactScore, rec.AgentType,
			rec.Complexity, rec.EstimatedMin, rec.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert recommendation %s: %w", rec.ID, err)
		}
	}
	return nil
}

// ListRecommendations implements store.RecommendationStore.
func (s *Store) ListRecommendations(ctx context.Context, pageID string) ([]seo.Recommendation, error) {
	query := `
SELECT id, task_id, page_id, type, original, suggested,
       confidence_score, reasoning, impact_score, agent_type,
       implementation_complexity, estimated_time, created_at
FROM recommendations
WHERE page_id = $1
ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query, pageID)
	if err != nil {
		return nil, fmt.Errorf("select recommendations: %w", err)
	}
	defer rows.Close()

	var recs []seo.Recommendation
	for rows.Next() {
		var rec seo.Recommendation
		if err := rows.Scan(&rec.ID, &rec.TaskID, &rec.PageID, &rec.Type,
			&rec.Original, &rec.Suggested, &rec.Confidence, &rec.Reasoning,
			&rec.ImpactScore, &rec.AgentType, &rec.Complexity,
			&rec.EstimatedMin, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recommendations: %w", err)
	}
	return recs, nil
}

// Save implements store.AuditStore. The full result is stored as a
// JSONB payload next to the columns queries filter on.
func (s *Store) Save(ctx context.Context, result seo.AuditResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal audit result: %w", err)
	}
	query := `
INSERT INTO audits (page_id, url, overall_score, payload, created_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err = s.pool.Exec(ctx, query,
		result.PageID, result.URL, result.OverallScore, payload, result.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// Latest implements store.AuditStore.
func (s *Store) Latest(ctx context.Context, pageID string) (seo.AuditResult, error) {
	query := `
SELECT payload
FROM audits
WHERE page_id = $1
ORDER BY created_at DESC
LIMIT 1`
	var payload []byte
	err := s.pool.QueryRow(ctx, query, pageID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return seo.AuditResult{}, store.ErrNotFound
	}
	if err != nil {
		return seo.AuditResult{}, fmt.Errorf("select latest audit: %w", err)
	}
	var result seo.AuditResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return seo.AuditResult{}, fmt.Errorf("unmarshal audit payload: %w", err)
	}
	return result, nil
}

// History implements store.AuditStore.
func (s *Store) History(ctx context.Context, pageID string, limit int) ([]seo.AuditResult, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
SELECT payload
FROM audits
WHERE page_id = $1
ORDER BY created_at DESC
LIMIT $2`
	rows, err := s.pool.Query(ctx, query, pageID, limit)
	if err != nil {
		return nil, fmt.Errorf("select audit history: %w", err)
	}
	defer rows.Close()

	var results []seo.AuditResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit payload: %w", err)
		}
		var result seo.AuditResult
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, fmt.Errorf("unmarshal audit payload: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit history: %w", err)
	}
	return results, nil
}
