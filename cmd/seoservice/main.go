// Package main wires together the on-page SEO audit service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mangoseo/onpage-audit/internal/agents"
	"github.com/mangoseo/onpage-audit/internal/api"
	"github.com/mangoseo/onpage-audit/internal/audit"
	"github.com/mangoseo/onpage-audit/internal/cache/redis"
	"github.com/mangoseo/onpage-audit/internal/clock/system"
	"github.com/mangoseo/onpage-audit/internal/completion"
	"github.com/mangoseo/onpage-audit/internal/config"
	"github.com/mangoseo/onpage-audit/internal/id/uuid"
	"github.com/mangoseo/onpage-audit/internal/logging"
	"github.com/mangoseo/onpage-audit/internal/metrics"
	"github.com/mangoseo/onpage-audit/internal/recommend"
	"github.com/mangoseo/onpage-audit/internal/store"
	"github.com/mangoseo/onpage-audit/internal/store/memory"
	"github.com/mangoseo/onpage-audit/internal/store/postgres"
)

// stores groups the persistence roles behind one pair of backends so
// the wiring below does not care which one is active.
type stores struct {
	tasks  store.TaskStore
	runs   store.AgentRunStore
	recs   store.RecommendationStore
	audits store.AuditStore
	close  func()
}

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	idGen := uuid.New()

	st, err := newStores(ctx, cfg, clock, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer st.close()

	var cache *redis.Cache
	if cfg.Redis.Addr != "" {
		cache = redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger.Named("cache"))
		defer func() {
			if closeErr := cache.Close(); closeErr != nil {
				logger.Warn("cache close failed", zap.Error(closeErr))
			}
		}()
	}

	gemini := completion.NewGemini(
		cfg.Gemini.APIKey,
		cfg.Gemini.CallsPerMinute,
		logger.Named("gemini"),
		completion.WithModel(cfg.Gemini.Model),
	)

	var serp agents.SERPClient
	if cfg.SERP.APIKey != "" {
		serp = agents.NewHTTPSERPClient(cfg.SERP.APIKey, nil, logger.Named("serp"))
	}
	agentSet := []agents.Agent{
		agents.NewKeywordAgent(gemini),
		agents.NewSemanticAgent(gemini),
		agents.NewSchemaAgent(gemini),
		agents.NewCompetitorAgent(gemini, serp, logger.Named("competitor")),
		agents.NewPerformanceAgent(gemini),
	}
	retrier := agents.NewRetrier(st.runs, clock, time.Second, logger.Named("retry"))

	synthesizer := recommend.New(agentSet, retrier, st.recs, st.tasks, cache, idGen, clock, logger.Named("recommend"),
		recommend.WithCacheTTL(cfg.RecommendationTTL()))

	fetchClient := &http.Client{Timeout: cfg.FetchTimeout()}
	fetcher := audit.NewFetcher(fetchClient, logger.Named("fetch"),
		audit.WithMaxRedirects(cfg.Fetch.MaxRedirects),
		audit.WithUserAgent(cfg.Fetch.UserAgent))
	auditor := audit.New(fetcher, st.tasks, clock, logger.Named("audit"))

	service := api.NewAnalysisService(
		auditor,
		synthesizer,
		st.audits,
		st.tasks,
		st.runs,
		st.recs,
		cache,
		idGen,
		clock,
		cfg.AnalysisTTL(),
		logger.Named("service"),
	)
	apiServer := api.NewServer(service, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newStores selects Postgres when a DSN is configured, otherwise the
// in-memory backend. All four persistence roles come from the same
// backend.
func newStores(ctx context.Context, cfg config.Config, clock *system.Clock, logger *zap.Logger) (stores, error) {
	if cfg.DB.DSN == "" {
		logger.Info("no database configured, using in-memory store")
		mem := memory.New(clock)
		return stores{tasks: mem, runs: mem, recs: mem, audits: mem, close: func() {}}, nil
	}
	pg, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return stores{}, fmt.Errorf("connect postgres: %w", err)
	}
	logger.Info("postgres store connected")
	return stores{tasks: pg, runs: pg, recs: pg, audits: pg, close: pg.Close}, nil
}
