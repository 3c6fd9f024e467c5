// Package memory provides in-memory store implementations for
// development and testing.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mangoseo/onpage-audit/internal/seo"
	"github.com/mangoseo/onpage-audit/internal/store"
)

var (
	_ store.TaskStore           = (*Store)(nil)
	_ store.AgentRunStore       = (*Store)(nil)
	_ store.RecommendationStore = (*Store)(nil)
	_ store.AuditStore          = (*Store)(nil)
)

// Store implements every store interface over mutex-guarded maps.
type Store struct {
	mu      sync.RWMutex
	tasks   map[string]seo.Task
	runs    map[string][]seo.AgentRun
	recs    map[string][]seo.Recommendation
	audits  map[string][]seo.AuditResult
	nowFunc func() time.Time
}

// New constructs an empty Store.
func New(clock seo.Clock) *Store {
	nowFunc := time.Now
	if clock != nil {
		nowFunc = clock.Now
	}
	return &Store{
		tasks:   make(map[string]seo.Task),
		runs:    make(map[string][]seo.AgentRun),
		recs:    make(map[string][]seo.Recommendation),
		audits:  make(map[string][]seo.AuditResult),
		nowFunc: nowFunc,
	}
}

// Create implements store.TaskStore.
func (s *Store) Create(_ context.Context, task seo.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	s.tasks[task.ID] = task
	return nil
}

// UpdateStatus implements store.TaskStore.
func (s *Store) UpdateStatus(_ context.Context, id string, status seo.TaskStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return store.ErrNotFound
	}
	now := s.nowFunc().UTC()
	task.Status = status
	task.Progress = message
	task.UpdatedAt = now
	if isTerminal(status) && task.CompletedAt == nil {
		task.CompletedAt = &now
	}
	s.tasks[id] = task
	return nil
}

// Get implements store.TaskStore.
func (s *Store) Get(_ context.Context, id string) (seo.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return seo.Task{}, store.ErrNotFound
	}
	return task, nil
}

// Append implements store.AgentRunStore.
func (s *Store) Append(_ context.Context, run seo.AgentRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.PageID] = append(s.runs[run.PageID], run)
	return nil
}

// ListRuns implements store.AgentRunStore.
func (s *Store) ListRuns(_ context.Context, pageID string) ([]seo.AgentRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := s.runs[pageID]
	out := make([]seo.AgentRun, len(runs))
	copy(out, runs)
	return out, nil
}

// SaveAll implements store.RecommendationStore.
func (s *Store) SaveAll(_ context.Context, recs []seo.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		s.recs[rec.PageID] = append([]seo.Recommendation{rec}, s.recs[rec.PageID]...)
	}
	return nil
}

// ListRecommendations implements store.RecommendationStore.
func (s *Store) ListRecommendations(_ context.Context, pageID string) ([]seo.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.recs[pageID]
	out := make([]seo.Recommendation, len(recs))
	copy(out, recs)
	return out, nil
}

// Save implements store.AuditStore.
func (s *Store) Save(_ context.Context, result seo.AuditResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits[result.PageID] = append([]seo.AuditResult{result}, s.audits[result.PageID]...)
	return nil
}

// Latest implements store.AuditStore.
func (s *Store) Latest(_ context.Context, pageID string) (seo.AuditResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	audits := s.audits[pageID]
	if len(audits) == 0 {
		return seo.AuditResult{}, store.ErrNotFound
	}
	return audits[0], nil
}

// History implements store.AuditStore.
func (s *Store) History(_ context.Context, pageID string, limit int) ([]seo.AuditResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	audits := s.audits[pageID]
	if limit > 0 && len(audits) > limit {
		audits = audits[:limit]
	}
	out := make([]seo.AuditResult, len(audits))
	copy(out, audits)
	return out, nil
}

func isTerminal(status seo.TaskStatus) bool {
	switch status {
	case seo.TaskCompleted, seo.TaskFailed, seo.TaskCancelled:
		return true
	default:
		return false
	}
}
