// Package recommend converts agent payloads into deduplicated,
// prioritized, persisted recommendations.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mangoseo/onpage-audit/internal/agents"
	"github.com/mangoseo/onpage-audit/internal/cache/redis"
	"github.com/mangoseo/onpage-audit/internal/seo"
	"github.com/mangoseo/onpage-audit/internal/store"
)

const defaultCacheTTL = 24 * time.Hour

// Synthesizer drives the fixed agent set sequentially, each call
// wrapped by the retry envelope, and turns the payloads into stored
// recommendations. Sequential on purpose: the completion service has a
// shared per-minute call budget.
type Synthesizer struct {
	agents   []agents.Agent
	retrier  *agents.Retrier
	recs     store.RecommendationStore
	tasks    store.TaskStore
	cache    *redis.Cache
	cacheTTL time.Duration
	ids      seo.IDGenerator
	clock    seo.Clock
	logger   *zap.Logger
}

// Option customizes a Synthesizer.
type Option func(*Synthesizer)

// WithCacheTTL overrides the recommendation cache expiry.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Synthesizer) {
		if d > 0 {
			s.cacheTTL = d
		}
	}
}

// New constructs a Synthesizer. agentSet runs in the given order; cache
// may be nil.
func New(
	agentSet []agents.Agent,
	retrier *agents.Retrier,
	recs store.RecommendationStore,
	tasks store.TaskStore,
	cache *redis.Cache,
	ids seo.IDGenerator,
	clock seo.Clock,
	logger *zap.Logger,
	opts ...Option,
) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Synthesizer{
		agents:   agentSet,
		retrier:  retrier,
		recs:     recs,
		tasks:    tasks,
		cache:    cache,
		cacheTTL: defaultCacheTTL,
		ids:      ids,
		clock:    clock,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result carries the prioritized recommendations plus which agents
// produced usable output.
type Result struct {
	Recommendations []seo.Recommendation
	AgentsUsed      []string
}

// Generate runs every agent against the audit, converts the payloads,
// deduplicates, prioritizes, persists and caches the outcome. Storage
// failures degrade to the in-memory result; only a missing snapshot is
// an error.
func (s *Synthesizer) Generate(ctx context.Context, audit *seo.AuditResult, taskID string) (Result, error) {
	if audit == nil || audit.Snapshot == nil {
		s.transition(ctx, taskID, seo.TaskFailed, "no page content available")
		return Result{}, fmt.Errorf("audit has no page snapshot")
	}

	s.transition(ctx, taskID, seo.TaskProcessing, "generating recommendations")

	in := agents.Input{
		Snapshot: audit.Snapshot,
		Audit:    audit,
		Industry: audit.Industry,
	}

	var (
		all  []seo.Recommendation
		used []string
	)
	for _, agent := range s.agents {
		result := s.retrier.Run(ctx, agent, in, taskID, audit.PageID)
		if len(result.Output) > 0 {
			used = append(used, string(result.AgentType))
		} else {
			s.logger.Warn("agent produced no output",
				zap.String("agent", string(agent.Type())),
				zap.Bool("fallback", result.Fallback()))
		}
		all = append(all, s.convert(result, audit)...)
	}

	deduped := dedupe(all)
	prioritize(deduped)

	now := s.clock.Now().UTC()
	for i := range deduped {
		deduped[i].TaskID = taskID
		deduped[i].PageID = audit.PageID
		deduped[i].CreatedAt = now
		id, err := s.ids.NewID()
		if err != nil {
			s.logger.Warn("recommendation id generation failed", zap.Error(err))
			continue
		}
		deduped[i].ID = id
	}

	s.persist(ctx, deduped, audit.PageID, taskID)

	s.transition(ctx, taskID, seo.TaskCompleted,
		fmt.Sprintf("generated %d recommendations", len(deduped)))

	s.logger.Info("recommendation synthesis complete",
		zap.String("url", audit.URL),
		zap.Int("recommendations", len(deduped)),
		zap.Strings("agents_used", used))

	return Result{Recommendations: deduped, AgentsUsed: used}, nil
}

func (s *Synthesizer) convert(result seo.AgentResult, audit *seo.AuditResult) []seo.Recommendation {
	switch result.AgentType {
	case seo.AgentKeyword:
		return keywordRecommendations(result, audit)
	case seo.AgentSemantic:
		return semanticRecommendations(result, audit)
	case seo.AgentSchema:
		return schemaRecommendations(result, audit)
	case seo.AgentPerformance:
		return performanceRecommendations(result)
	case seo.AgentCompetitor:
		return competitorRecommendations(result)
	default:
		return nil
	}
}

// dedupe keeps the first occurrence of each (type, suggested) pair.
func dedupe(recs []seo.Recommendation) []seo.Recommendation {
	type key struct{ recType, suggested string }
	seen := make(map[key]struct{}, len(recs))
	out := make([]seo.Recommendation, 0, len(recs))
	for _, rec := range recs {
		k := key{rec.Type, rec.Suggested}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// prioritize sorts descending by impact*100 - complexityWeight*10; ties
// keep prior order.
func prioritize(recs []seo.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		return priorityScore(recs[i]) > priorityScore(recs[j])
	})
}

func priorityScore(rec seo.Recommendation) float64 {
	return rec.ImpactScore*100 - float64(rec.Complexity.Weight())*10
}

func (s *Synthesizer) persist(ctx context.Context, recs []seo.Recommendation, pageID, taskID string) {
	if len(recs) == 0 {
		return
	}
	if s.recs != nil {
		if err := s.recs.SaveAll(ctx, recs); err != nil {
			s.logger.Error("storing recommendations failed",
				zap.String("page_id", pageID),
				zap.Error(err))
		}
	}
	cacheScope := taskID
	if cacheScope == "" {
		cacheScope = pageID
	}
	s.cache.Set(ctx, "recommendations:"+cacheScope, recs, s.cacheTTL)
}

func (s *Synthesizer) transition(ctx context.Context, taskID string, status seo.TaskStatus, message string) {
	if taskID == "" || s.tasks == nil {
		return
	}
	if err := s.tasks.UpdateStatus(ctx, taskID, status, message); err != nil {
		s.logger.Warn("task status update failed",
			zap.String("task_id", taskID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}
