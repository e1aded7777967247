package application

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonMunkholm/tablefix/internal/config"
	"github.com/JonMunkholm/tablefix/internal/planner"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	for _, name := range []string{"DATABASE_URL", "DB_URL", "REDIS_URL", "PLANNER_PROVIDER", "REQUIRE_API_KEY"} {
		t.Setenv(name, "")
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

// ============================================================================
// NewPlanner Tests
// ============================================================================

func TestNewPlanner(t *testing.T) {
	tests := []struct {
		provider string
		wantAI   bool
	}{
		{"heuristic", false},
		{"", false},
		{"openai", true},
		{"OpenAI", true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p := NewPlanner(config.PlannerConfig{
				Provider:      tt.provider,
				APIKey:        "test-key",
				Model:         "gpt-4o-mini",
				MaxCandidates: 3,
				MaxAttempts:   1,
			})
			_, isAI := p.(*planner.OpenAI)
			if isAI != tt.wantAI {
				t.Errorf("NewPlanner(%q) = %T", tt.provider, p)
			}
		})
	}
}

// ============================================================================
// New Tests
// ============================================================================

func TestNew_InMemory(t *testing.T) {
	cfg := testConfig(t)

	app, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.memory == nil {
		t.Error("expected the in-memory session store")
	}
	if app.pool != nil || app.redis != nil {
		t.Error("no external connections expected without URLs")
	}

	rec := httptest.NewRecorder()
	app.Server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d, want 200", rec.Code)
	}
}

func TestNew_BadRedisURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.RedisURL = "not a url"

	app, err := New(context.Background(), cfg)
	if err == nil {
		app.Close()
		t.Fatal("New() expected error for malformed REDIS_URL")
	}
	if app != nil {
		t.Error("New() should return a nil app on error")
	}
}
