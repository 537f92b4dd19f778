package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/glowpath/internal/assess"
	"github.com/sells-group/glowpath/internal/config"
	"github.com/sells-group/glowpath/internal/crime"
	"github.com/sells-group/glowpath/internal/metrics"
	"github.com/sells-group/glowpath/internal/model"
	"github.com/sells-group/glowpath/internal/places"
	"github.com/sells-group/glowpath/internal/resilience"
)

const fixtureYAML = `
default_csi: 40
areas:
  - name: union
    center: {latitude: 43.6453, longitude: -79.3806}
    radius_meters: 1500
    csi: 80
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func engineConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Port = 8080
	cfg.Classifier.Provider = "anthropic"
	cfg.Classifier.MaxTokens = 400
	cfg.Anthropic.Key = "sk-ant-test"
	cfg.Anthropic.Model = "claude-haiku-4-5-20251001"
	cfg.Google.Provider = "places"
	cfg.Google.Key = "g-key"
	cfg.Google.IncludedTypes = []string{"bar"}
	cfg.Google.MaxResults = 20
	cfg.Crime.Provider = "fixture"
	cfg.Crime.FixturePath = writeFile(t, "fixture.yaml", fixtureYAML)
	cfg.Crime.RadiusMeters = 500
	cfg.Crime.WindowDays = 30
	cfg.Alternatives.RadiusMeters = 800
	cfg.Alternatives.Shortlist = 8
	cfg.Alternatives.TopN = 5
	cfg.Alternatives.Concurrency = 4
	cfg.Circuit.FailureThreshold = 5
	cfg.Circuit.ResetTimeoutSecs = 30
	cfg.Cache.TTLMinutes = 60
	return cfg
}

// fakeUpstreams serves the Places and Anthropic endpoints the engine calls.
type fakeUpstreams struct {
	places    *httptest.Server
	anthropic *httptest.Server
	searches  atomic.Int32
}

func newFakeUpstreams(t *testing.T) *fakeUpstreams {
	t.Helper()
	f := &fakeUpstreams{}

	f.places = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/places:searchText":
			f.searches.Add(1)
			_, _ = w.Write([]byte(`{"places":[{"id":"u","displayName":{"text":"Union Station"},"location":{"latitude":43.6453,"longitude":-79.3806}}]}`))
		case "/places:searchNearby":
			_, _ = w.Write([]byte(`{"places":[
				{"id":"b","displayName":{"text":"Bar Near"},"location":{"latitude":43.6460,"longitude":-79.3810}},
				{"id":"c","displayName":{"text":"Cafe Far"},"location":{"latitude":43.7000,"longitude":-79.4000}}
			]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.places.Close)

	f.anthropic = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"content": []map[string]any{{
				"type": "text",
				"text": `{"risk_level":"SAFE","classification":"UNSAFE","confidence":0.9,"rationale":"csi 80 is high and lighting 15 is poor"}`,
			}},
			"usage": map[string]any{"input_tokens": 100, "output_tokens": 30},
		})
	}))
	t.Cleanup(f.anthropic.Close)

	return f
}

func TestInitEngine_AssessEndToEnd(t *testing.T) {
	up := newFakeUpstreams(t)
	cfg := engineConfig(t)
	cfg.Google.BaseURL = up.places.URL
	cfg.Anthropic.BaseURL = up.anthropic.URL

	env, err := initEngine(context.Background(), cfg, "assess")
	require.NoError(t, err)
	defer env.Close()

	got, err := env.Service.Assess(context.Background(), "Union Station", 0.1)
	require.NoError(t, err)
	assert.Equal(t, 19, got.VibeScore)
	assert.Equal(t, model.RiskUnsafe, got.RiskLevel)
	assert.Equal(t, model.ClassUnsafe, got.Classification)
	assert.Equal(t, 80.0, got.CrimeBaseline)

	assert.Equal(t, "closed", env.Service.Breakers().States()["places"])
}

func TestInitEngine_AlternativesEndToEnd(t *testing.T) {
	up := newFakeUpstreams(t)
	cfg := engineConfig(t)
	cfg.Google.BaseURL = up.places.URL
	cfg.Anthropic.BaseURL = up.anthropic.URL

	env, err := initEngine(context.Background(), cfg, "alternatives")
	require.NoError(t, err)
	defer env.Close()

	ranked, err := env.Service.RankAlternatives(context.Background(), assess.AlternativesRequest{Query: "Union Station", Radiance: 15})
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	// Cafe Far sits outside the fixture area and gets the lower default csi.
	assert.Equal(t, "Cafe Far", ranked[0].Name)
	assert.Equal(t, "Bar Near", ranked[1].Name)
	assert.Equal(t, model.OpenUnknown, ranked[0].OpenAtTime)
}

func TestInitEngine_CachesResolution(t *testing.T) {
	mr := miniredis.RunT(t)
	up := newFakeUpstreams(t)
	cfg := engineConfig(t)
	cfg.Google.BaseURL = up.places.URL
	cfg.Anthropic.BaseURL = up.anthropic.URL
	cfg.Cache.RedisAddr = mr.Addr()

	env, err := initEngine(context.Background(), cfg, "assess")
	require.NoError(t, err)
	defer env.Close()

	for range 2 {
		_, err := env.Service.Assess(context.Background(), "union  station", 0.1)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), up.searches.Load())
	assert.Len(t, mr.Keys(), 2)
}

func TestInitEngine_CacheUnavailableFallsThrough(t *testing.T) {
	up := newFakeUpstreams(t)
	cfg := engineConfig(t)
	cfg.Google.BaseURL = up.places.URL
	cfg.Anthropic.BaseURL = up.anthropic.URL
	cfg.Cache.RedisAddr = "127.0.0.1:1"

	env, err := initEngine(context.Background(), cfg, "assess")
	require.NoError(t, err)
	defer env.Close()

	_, err = env.Service.Assess(context.Background(), "Union Station", 0.1)
	require.NoError(t, err)
}

func TestInitEngine_ValidationFails(t *testing.T) {
	cfg := engineConfig(t)
	cfg.Google.Key = ""

	_, err := initEngine(context.Background(), cfg, "assess")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "google.key is required")
}

func TestInitEngine_MissingFixture(t *testing.T) {
	cfg := engineConfig(t)
	cfg.Crime.FixturePath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := initEngine(context.Background(), cfg, "assess")
	assert.Error(t, err)
}

func TestInitPlaces_Providers(t *testing.T) {
	cfg := engineConfig(t)

	p, err := initPlaces(cfg)
	require.NoError(t, err)
	assert.IsType(t, &places.Google{}, p)

	cfg.Google.Provider = "maps"
	cfg.Google.Key = "AIza-test-key"
	p, err = initPlaces(cfg)
	require.NoError(t, err)
	assert.IsType(t, &places.Maps{}, p)
}

func TestInitCrime_Providers(t *testing.T) {
	ctx := context.Background()
	cfg := engineConfig(t)

	src, closeFn, err := initCrime(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &crime.Fixture{}, src)
	closeFn()

	cfg.Crime.Provider = "backend"
	cfg.Crime.BaseURL = "http://crime.local"
	src, closeFn, err = initCrime(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &crime.Backend{}, src)
	closeFn()

	cfg.Crime.Provider = "sqlite"
	cfg.Crime.SQLitePath = filepath.Join(t.TempDir(), "glowpath.db")
	src, closeFn, err = initCrime(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &crime.SQLiteStore{}, src)
	closeFn()
}

func TestInitClassifier_Providers(t *testing.T) {
	cfg := engineConfig(t)

	c, err := initClassifier(cfg)
	require.NoError(t, err)
	assert.NotNil(t, c)

	cfg.Classifier.Provider = "openai"
	cfg.OpenAI.Key = "sk-test"
	c, err = initClassifier(cfg)
	require.NoError(t, err)
	assert.NotNil(t, c)

	cfg.Classifier.Provider = "llama"
	_, err = initClassifier(cfg)
	assert.Error(t, err)
}

func TestObserveCircuit_GaugeTracksNotClosed(t *testing.T) {
	m := metrics.New(nil)
	observe := observeCircuit(m)
	gauge := m.CircuitState.WithLabelValues("crime")

	tests := []struct {
		from, to resilience.State
		want     float64
	}{
		{resilience.StateClosed, resilience.StateOpen, 1},
		{resilience.StateOpen, resilience.StateHalfOpen, 1},
		{resilience.StateHalfOpen, resilience.StateOpen, 1},
		{resilience.StateHalfOpen, resilience.StateClosed, 0},
	}
	for _, tt := range tests {
		observe(resilience.Crime, tt.from, tt.to)
		assert.Equal(t, tt.want, testutil.ToFloat64(gauge), "%s -> %s", tt.from, tt.to)
	}
}
