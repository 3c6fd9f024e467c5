// Package store declares interfaces for persisting audit results,
// tasks, agent run records and recommendations. Implementations live in
// other packages; this package must not import database drivers or
// concrete clients.
package store

import (
	"context"
	"errors"

	"github.com/mangoseo/onpage-audit/internal/seo"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// TaskStore persists analysis task lifecycle records.
type TaskStore interface {
	// Create inserts a new task. The task ID must be unique.
	Create(ctx context.Context, task seo.Task) error
	// UpdateStatus advances a task's status and progress message.
	// Terminal statuses also set the completion timestamp.
	UpdateStatus(ctx context.Context, id string, status seo.TaskStatus, message string) error
	// Get loads a task or returns ErrNotFound.
	Get(ctx context.Context, id string) (seo.Task, error)
}

// AgentRunStore records every agent invocation attempt, append-only.
type AgentRunStore interface {
	// Append stores one attempt record.
	Append(ctx context.Context, run seo.AgentRun) error
	// ListRuns returns all attempt records for a page, oldest first.
	ListRuns(ctx context.Context, pageID string) ([]seo.AgentRun, error)
}

// RecommendationStore persists synthesized recommendations.
type RecommendationStore interface {
	// SaveAll stores a batch of recommendations for one page.
	SaveAll(ctx context.Context, recs []seo.Recommendation) error
	// ListRecommendations returns recommendations for a page, newest
	// first.
	ListRecommendations(ctx context.Context, pageID string) ([]seo.Recommendation, error)
}

// AuditStore keeps a history of completed audit results per page.
type AuditStore interface {
	// Save appends one completed audit result.
	Save(ctx context.Context, result seo.AuditResult) error
	// Latest loads the most recent audit for a page or ErrNotFound.
	Latest(ctx context.Context, pageID string) (seo.AuditResult, error)
	// History returns past audits for a page, newest first, at most
	// limit entries.
	History(ctx context.Context, pageID string, limit int) ([]seo.AuditResult, error)
}
