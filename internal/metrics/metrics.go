// Package metrics exposes Prometheus collectors for the audit service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	auditsTotal                *prometheus.CounterVec
	auditScore                 prometheus.Histogram
	auditIssuesFound           prometheus.Histogram
	fetchDurationSeconds       *prometheus.HistogramVec
	agentAttemptsTotal         *prometheus.CounterVec
	agentDurationSeconds       *prometheus.HistogramVec
	recommendationsTotal       *prometheus.CounterVec
	cacheLookupsTotal          *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		auditsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seo_audits_total",
				Help: "Total number of audits processed, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		auditScore = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "seo_audit_score",
				Help:    "Distribution of overall audit scores.",
				Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		)

		auditIssuesFound = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "seo_audit_issues_found",
				Help:    "Distribution of issue counts per audit.",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seo_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
			[]string{"site"},
		)

		agentAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seo_agent_attempts_total",
				Help: "Total agent invocation attempts, labeled by agent and outcome.",
			},
			[]string{"agent", "status"},
		)

		agentDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seo_agent_duration_seconds",
				Help:    "Histogram of successful agent call durations, labeled by agent.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"agent"},
		)

		recommendationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seo_recommendations_total",
				Help: "Total recommendations generated, labeled by originating agent.",
			},
			[]string{"agent"},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seo_cache_lookups_total",
				Help: "Total response cache lookups, labeled by result (hit/miss).",
			},
			[]string{"result"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAudit records the outcome of one audit.
func ObserveAudit(site, status string, score float64, issueCount int) {
	auditsTotal.WithLabelValues(SanitizeSite(site), status).Inc()
	if status == "completed" {
		auditScore.Observe(score)
		auditIssuesFound.Observe(float64(issueCount))
	}
}

// ObserveFetch records a page fetch latency.
func ObserveFetch(site string, duration time.Duration) {
	fetchDurationSeconds.WithLabelValues(SanitizeSite(site)).Observe(duration.Seconds())
}

// ObserveAgentAttempt increments the attempt counter for one agent call.
func ObserveAgentAttempt(agent, status string) {
	agentAttemptsTotal.WithLabelValues(agent, status).Inc()
}

// ObserveAgentDuration records the latency of a successful agent call.
func ObserveAgentDuration(agent string, duration time.Duration) {
	agentDurationSeconds.WithLabelValues(agent).Observe(duration.Seconds())
}

// AddRecommendations adds to the per-agent recommendation counter.
func AddRecommendations(agent string, count int) {
	if count > 0 {
		recommendationsTotal.WithLabelValues(agent).Add(float64(count))
	}
}

// ObserveCacheLookup increments the cache counter for a hit or miss.
func ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
