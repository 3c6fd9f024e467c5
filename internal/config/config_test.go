package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
fetch:
  timeout_seconds: 45
  max_redirects: 5
  user_agent: test-agent
gemini:
  api_key: gkey
  model: gemini-2.0-pro
  calls_per_minute: 30
serp:
  api_key: skey
db:
  dsn: postgres://localhost/seo
  max_conns: 16
redis:
  addr: localhost:6379
  db: 2
cache:
  analysis_ttl_minutes: 30
  recommendation_ttl_hours: 12
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Fetch.MaxRedirects != 5 || cfg.Fetch.UserAgent != "test-agent" {
		t.Fatalf("expected fetch overrides to apply: %+v", cfg.Fetch)
	}
	if cfg.Gemini.Model != "gemini-2.0-pro" || cfg.Gemini.CallsPerMinute != 30 {
		t.Fatalf("expected gemini overrides to apply: %+v", cfg.Gemini)
	}
	if cfg.SERP.APIKey != "skey" {
		t.Fatalf("expected serp key to apply")
	}
	if cfg.DB.DSN != "postgres://localhost/seo" || cfg.DB.MaxConns != 16 {
		t.Fatalf("expected db overrides to apply: %+v", cfg.DB)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Fatalf("expected redis overrides to apply: %+v", cfg.Redis)
	}
	if got := cfg.FetchTimeout(); got != 45*time.Second {
		t.Fatalf("expected fetch timeout 45s, got %v", got)
	}
	if got := cfg.AnalysisTTL(); got != 30*time.Minute {
		t.Fatalf("expected analysis ttl 30m, got %v", got)
	}
	if got := cfg.RecommendationTTL(); got != 12*time.Hour {
		t.Fatalf("expected recommendation ttl 12h, got %v", got)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected development logging disabled")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Fetch.UserAgent != "MangoSEO-Bot/1.0" {
		t.Fatalf("unexpected default user agent %q", cfg.Fetch.UserAgent)
	}
	if cfg.Gemini.CallsPerMinute != 15 {
		t.Fatalf("unexpected default call budget %d", cfg.Gemini.CallsPerMinute)
	}
	if got := cfg.RecommendationTTL(); got != 24*time.Hour {
		t.Fatalf("expected recommendation ttl 24h, got %v", got)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080},
		Fetch:  FetchConfig{TimeoutSeconds: 10, MaxRedirects: 10},
		Gemini: GeminiConfig{CallsPerMinute: 15},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "invalid fetch timeout",
			cfg: func() Config {
				c := base
				c.Fetch.TimeoutSeconds = 0
				return c
			}(),
			want: "fetch.timeout_seconds",
		},
		{
			name: "invalid redirect cap",
			cfg: func() Config {
				c := base
				c.Fetch.MaxRedirects = 0
				return c
			}(),
			want: "fetch.max_redirects",
		},
		{
			name: "invalid call budget",
			cfg: func() Config {
				c := base
				c.Gemini.CallsPerMinute = 0
				return c
			}(),
			want: "gemini.calls_per_minute",
		},
		{
			name: "auth missing api key",
			cfg: func() Config {
				c := base
				c.Auth.Enabled = true
				return c
			}(),
			want: "auth.api_key",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
