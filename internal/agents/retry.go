package agents

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mangoseo/onpage-audit/internal/metrics"
	"github.com/mangoseo/onpage-audit/internal/seo"
)

// RunLog is the append-only attempt-record collaborator. Writes are
// best effort; the retry loop never aborts because a record failed to
// land.
type RunLog interface {
	Append(ctx context.Context, run seo.AgentRun) error
}

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 2.0
)

// Retrier is the bounded-retry envelope around one agent invocation.
// Between failed attempts it sleeps base^attempt units; on exhaustion
// it returns a zero-confidence fallback result instead of an error.
type Retrier struct {
	maxAttempts int
	backoffBase float64
	backoffUnit time.Duration
	runLog      RunLog
	clock       seo.Clock
	logger      *zap.Logger
}

// NewRetrier constructs a Retrier with the default attempt cap and
// backoff. backoffUnit scales the sleep; production uses time.Second.
func NewRetrier(runLog RunLog, clock seo.Clock, backoffUnit time.Duration, logger *zap.Logger) *Retrier {
	if backoffUnit <= 0 {
		backoffUnit = time.Second
	}
	return &Retrier{
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
		backoffUnit: backoffUnit,
		runLog:      runLog,
		clock:       clock,
		logger:      logger,
	}
}

// Run invokes the agent up to the attempt cap. Every attempt writes one
// run-log record. The returned result is either the first success or
// the typed fallback; callers must treat the fallback as "no enrichment
// available", never as fatal.
func (r *Retrier) Run(ctx context.Context, agent Agent, in Input, taskID, pageID string) seo.AgentResult {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("agent run cancelled",
				zap.String("agent", string(agent.Type())),
				zap.Error(err))
			break
		}

		started := time.Now()
		result, err := agent.Run(ctx, in)
		if err == nil {
			metrics.ObserveAgentAttempt(string(agent.Type()), "success")
			metrics.ObserveAgentDuration(string(agent.Type()), time.Since(started))
			r.record(ctx, taskID, pageID, agent.Type(), attempt, "success", "")
			return result
		}

		metrics.ObserveAgentAttempt(string(agent.Type()), "failed")
		r.logger.Warn("agent attempt failed",
			zap.String("agent", string(agent.Type())),
			zap.Int("attempt", attempt),
			zap.Error(err))
		r.record(ctx, taskID, pageID, agent.Type(), attempt, "failed", err.Error())

		if attempt < r.maxAttempts {
			r.sleep(ctx, attempt)
		}
	}

	r.logger.Warn("agent exhausted retries, using fallback",
		zap.String("agent", string(agent.Type())),
		zap.Int("max_attempts", r.maxAttempts))
	return Fallback(agent.Type())
}

// Fallback is the typed empty result returned when every attempt
// failed.
func Fallback(agentType seo.AgentType) seo.AgentResult {
	return seo.AgentResult{
		AgentType: agentType,
		Input:     map[string]any{},
		Output:    map[string]any{},
		Err:       "agent failed after retries",
	}
}

func (r *Retrier) record(ctx context.Context, taskID, pageID string, agentType seo.AgentType, attempt int, status, errMsg string) {
	if r.runLog == nil {
		return
	}
	run := seo.AgentRun{
		TaskID:    taskID,
		PageID:    pageID,
		AgentType: agentType,
		Attempt:   attempt,
		Status:    status,
		Error:     errMsg,
		CreatedAt: r.clock.Now(),
	}
	if err := r.runLog.Append(ctx, run); err != nil {
		r.logger.Warn("agent run log write failed",
			zap.String("agent", string(agentType)),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
}

func (r *Retrier) sleep(ctx context.Context, attempt int) {
	delay := time.Duration(math.Pow(r.backoffBase, float64(attempt))) * r.backoffUnit
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
