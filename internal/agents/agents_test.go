package agents

import (
	"context"
	"encoding/json"
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

// stubCompletion replays a canned structured payload and records the
// prompts it saw.
type stubCompletion struct {
	output  map[string]any
	err     error
	prompts []string
}

func (s *stubCompletion) Generate(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	raw, _ := json.Marshal(s.output)
	return string(raw), s.err
}

func (s *stubCompletion) GenerateStructured(_ context.Context, prompt string) (map[string]any, error) {
	s.prompts = append(s.prompts, prompt)
	return s.output, s.err
}

func testSnapshot() *seo.PageSnapshot {
	return &seo.PageSnapshot{
		URL:   "https://example.com/guide",
		Title: "The Complete Guide to Coffee Roasting",
		MetaTags: map[string]string{
			"description": "Learn how to roast coffee at home.",
		},
		ContentText:   strings.Repeat("roasting beans at home ", 50),
		Keywords:      []string{"coffee roasting", "home roasting"},
		FetchDuration: 420 * time.Millisecond,
	}
}

func TestKeywordAgentOutputAndConfidence(t *testing.T) {
	stub := &stubCompletion{output: map[string]any{
		"primary_keyword":             "coffee roasting",
		"keyword_density_suggestions": []any{"reduce repetition of roasting"},
		"semantic_keywords":           []any{"green beans", "first crack"},
	}}
	agent := NewKeywordAgent(stub)
	assert.Equal(t, seo.AgentKeyword, agent.Type())

	result, err := agent.Run(context.Background(), Input{Snapshot: testSnapshot()})
	require.NoError(t, err)

	assert.Equal(t, 0.9, result.Confidence)
	assert.Equal(t, "coffee roasting", result.Output["primary_keyword"])
	assert.Positive(t, result.ProcessingTime)
	require.Len(t, stub.prompts, 1)
	assert.Contains(t, stub.prompts[0], "https://example.com/guide")
	assert.Contains(t, stub.prompts[0], "coffee roasting, home roasting")
}

func TestSemanticAgentConfidenceFromPayload(t *testing.T) {
	stub := &stubCompletion{output: map[string]any{
		"optimized_title": "Coffee Roasting at Home: A Complete Guide",
		"confidence":      0.92,
	}}
	result, err := NewSemanticAgent(stub).Run(context.Background(), Input{Snapshot: testSnapshot()})
	require.NoError(t, err)
	assert.Equal(t, 0.92, result.Confidence)
}

func TestSemanticAgentDefaultConfidence(t *testing.T) {
	stub := &stubCompletion{output: map[string]any{
		"optimized_title": "Coffee Roasting at Home",
	}}
	result, err := NewSemanticAgent(stub).Run(context.Background(), Input{Snapshot: testSnapshot()})
	require.NoError(t, err)
	assert.Equal(t, 0.8, result.Confidence)
}

func TestSchemaAgentReportsExistingBlocks(t *testing.T) {
	snap := testSnapshot()
	snap.SchemaBlocks = []seo.SchemaBlock{{Format: "json-ld", Type: "Article"}}

	stub := &stubCompletion{output: map[string]any{
		"schema_json": map[string]any{"@type": "Article"},
	}}
	result, err := NewSchemaAgent(stub).Run(context.Background(), Input{Snapshot: snap})
	require.NoError(t, err)

	assert.Equal(t, 0.85, result.Confidence)
	require.Len(t, stub.prompts, 1)
	assert.Contains(t, stub.prompts[0], "1 block(s), types: Article")
}

func TestPerformanceAgentConfidenceTracksOutput(t *testing.T) {
	audit := &seo.AuditResult{
		OverallScore: 72.5,
		Issues: []seo.Issue{
			{Type: "missing_alt_text", Severity: seo.SeverityWarning, Message: "image lacks alt text"},
		},
	}

	stub := &stubCompletion{output: map[string]any{"traffic_prediction": "+15% in 3 months"}}
	result, err := NewPerformanceAgent(stub).Run(context.Background(), Input{Snapshot: testSnapshot(), Audit: audit})
	require.NoError(t, err)
	assert.Equal(t, 0.9, result.Confidence)
	assert.Contains(t, stub.prompts[0], "72.5")
	assert.Contains(t, stub.prompts[0], "missing_alt_text")

	empty := &stubCompletion{output: map[string]any{}}
	result, err = NewPerformanceAgent(empty).Run(context.Background(), Input{Snapshot: testSnapshot(), Audit: audit})
	require.NoError(t, err)
	assert.Zero(t, result.Confidence)
}

func TestCompetitorAgentUsesSERPResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "coffee roasting", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"organic_results": []map[string]any{
				{"position": 1, "title": "Rival Guide", "link": "https://rival.com/guide", "snippet": "A rival guide."},
			},
		})
	}))
	defer server.Close()

	serp := NewHTTPSERPClient("test-key", server.Client(), zap.NewNop()).WithSERPBaseURL(server.URL)
	stub := &stubCompletion{output: map[string]any{
		"competitors": []any{map[string]any{"url": "https://rival.com/guide"}},
	}}

	result, err := NewCompetitorAgent(stub, serp, zap.NewNop()).Run(context.Background(), Input{Snapshot: testSnapshot()})
	require.NoError(t, err)

	assert.Equal(t, 0.95, result.Confidence)
	require.Len(t, stub.prompts, 1)
	assert.Contains(t, stub.prompts[0], "https://rival.com/guide")
	assert.Contains(t, stub.prompts[0], "Rival Guide")
}

func TestCompetitorAgentFallsBackWithoutSERP(t *testing.T) {
	stub := &stubCompletion{output: map[string]any{"gap_analysis": map[string]any{}}}

	result, err := NewCompetitorAgent(stub, nil, zap.NewNop()).Run(context.Background(), Input{Snapshot: testSnapshot()})
	require.NoError(t, err)

	assert.Equal(t, 0.95, result.Confidence)
	assert.Contains(t, stub.prompts[0], "No live search results available")
}

func TestCompetitorAgentLowConfidenceOnEmptyOutput(t *testing.T) {
	stub := &stubCompletion{output: map[string]any{}}
	result, err := NewCompetitorAgent(stub, nil, zap.NewNop()).Run(context.Background(), Input{Snapshot: testSnapshot()})
	require.NoError(t, err)
	assert.Equal(t, 0.5, result.Confidence)
}

func TestPageTypeInference(t *testing.T) {
	blog := &seo.PageSnapshot{Title: "My Blog: roasting notes"}
	product := &seo.PageSnapshot{Title: "Product: Roaster 3000"}
	plain := &seo.PageSnapshot{Title: "Roasting Guide"}

	assert.Equal(t, "BlogPost", PageType(blog))
	assert.Equal(t, "Product", PageType(product))
	assert.Equal(t, "Article", PageType(plain))
	assert.Equal(t, "Article", PageType(nil))
}

func TestSERPClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	serp := NewHTTPSERPClient("test-key", server.Client(), zap.NewNop()).WithSERPBaseURL(server.URL)
	_, err := serp.Search(context.Background(), "coffee", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
