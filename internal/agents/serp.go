package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// SERPResult is one organic search result for a query.
type SERPResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	URL      string `json:"link"`
	Snippet  string `json:"snippet"`
}

// SERPClient looks up organic search results for a query. Used by the
// competitor agent to discover ranking pages before analyzing them.
type SERPClient interface {
	Search(ctx context.Context, query string, limit int) ([]SERPResult, error)
}

const defaultSERPBaseURL = "https://serpapi.com/search.json"

// HTTPSERPClient queries a SerpAPI-compatible endpoint.
type HTTPSERPClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPSERPClient constructs a SERP client. A nil httpClient gets a
// default with a request timeout.
func NewHTTPSERPClient(apiKey string, httpClient *http.Client, logger *zap.Logger) *HTTPSERPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSERPClient{
		apiKey:  apiKey,
		baseURL: defaultSERPBaseURL,
		client:  httpClient,
		logger:  logger,
	}
}

// WithSERPBaseURL overrides the endpoint, used by tests.
func (c *HTTPSERPClient) WithSERPBaseURL(base string) *HTTPSERPClient {
	c.baseURL = base
	return c
}

type serpResponse struct {
	OrganicResults []SERPResult `json:"organic_results"`
}

// Search implements SERPClient.
func (c *HTTPSERPClient) Search(ctx context.Context, query string, limit int) ([]SERPResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("num", fmt.Sprintf("%d", limit))
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building serp request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serp request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("serp request failed: status %d: %s", resp.StatusCode, body)
	}

	var parsed serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding serp response: %w", err)
	}

	results := parsed.OrganicResults
	if len(results) > limit {
		results = results[:limit]
	}
	c.logger.Debug("serp lookup complete",
		zap.String("query", query),
		zap.Int("results", len(results)))
	return results, nil
}
