package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Fetch failure classes. ErrBlocked marks responses the caller may
// retry later from a different vantage; the others are terminal for
// the URL as given.
var (
	ErrFetch            = errors.New("page fetch failed")
	ErrRedirectLoop     = errors.New("redirect loop detected")
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrNoLocation       = errors.New("redirect without Location header")
	ErrBlocked          = errors.New("source blocked or rate limited")
)

const (
	defaultMaxRedirects = 10
	fetchTimeout        = 15 * time.Second
	userAgent           = "MangoSEO-Bot/1.0"
)

// FetchResult carries the final body plus the redirect chain walked to
// reach it.
type FetchResult struct {
	Body       string
	FinalURL   string
	StatusCode int
	Chain      []string
	Duration   time.Duration
}

// Fetcher retrieves page markup, following redirects hop by hop so the
// chain can be inspected and loops detected.
type Fetcher struct {
	client       *http.Client
	maxRedirects int
	userAgent    string
	logger       *zap.Logger
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithMaxRedirects overrides the redirect hop bound.
func WithMaxRedirects(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxRedirects = n
		}
	}
}

// WithUserAgent overrides the User-Agent sent on every hop.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// NewFetcher constructs a Fetcher. A nil client gets a default with the
// standard timeout; redirects are always handled manually.
func NewFetcher(client *http.Client, logger *zap.Logger, opts ...FetcherOption) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	f := &Fetcher{client: client, maxRedirects: defaultMaxRedirects, userAgent: userAgent, logger: logger}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves the markup at rawURL. It follows up to the redirect
// bound, fails fast on loops and missing Location headers, and maps
// 401/403/429 finals to ErrBlocked.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	start := time.Now()
	current := rawURL
	chain := []string{}

	for hop := 0; hop <= f.maxRedirects; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return nil, fmt.Errorf("build request for %s: %w", current, err)
		}
		req.Header.Set("User-Agent", f.userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.5")

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", current, err)
		}

		chain = append(chain, current)
		f.logger.Debug("fetched hop",
			zap.String("url", current),
			zap.Int("status", resp.StatusCode),
			zap.Int("hop", hop))

		if isRedirect(resp.StatusCode) {
			location := resp.Header.Get("Location")
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if location == "" {
				return nil, fmt.Errorf("%w at %s", ErrNoLocation, current)
			}
			next, err := resolveLocation(current, location)
			if err != nil {
				return nil, fmt.Errorf("resolve redirect target %q: %w", location, err)
			}
			for _, visited := range chain {
				if visited == next {
					return nil, fmt.Errorf("%w at %s", ErrRedirectLoop, next)
				}
			}
			current = next
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized ||
			resp.StatusCode == http.StatusForbidden ||
			resp.StatusCode == http.StatusTooManyRequests {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("%w: status %d from %s", ErrBlocked, resp.StatusCode, current)
		}
		if resp.StatusCode >= 400 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("fetch %s: unexpected status %d", current, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read body from %s: %w", current, err)
		}

		return &FetchResult{
			Body:       string(body),
			FinalURL:   current,
			StatusCode: resp.StatusCode,
			Chain:      chain,
			Duration:   time.Since(start),
		}, nil
	}

	return nil, fmt.Errorf("%w (%d) for %s", ErrTooManyRedirects, f.maxRedirects, rawURL)
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func resolveLocation(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}
