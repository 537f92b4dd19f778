package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/glowpath/internal/assess"
	"github.com/sells-group/glowpath/internal/model"
	"github.com/sells-group/glowpath/internal/resilience"
)

type mockAssessor struct {
	result    model.Result
	ranked    []model.PlaceCandidate
	err       error
	query     string
	radiance  float64
	altReq    assess.AlternativesRequest
	requestID string
}

func (m *mockAssessor) Assess(ctx context.Context, query string, radiance float64) (model.Result, error) {
	m.query, m.radiance = query, radiance
	m.requestID = assess.RequestID(ctx)
	return m.result, m.err
}

func (m *mockAssessor) RankAlternatives(ctx context.Context, req assess.AlternativesRequest) ([]model.PlaceCandidate, error) {
	m.altReq = req
	m.requestID = assess.RequestID(ctx)
	return m.ranked, m.err
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewRouter(&mockAssessor{}, Options{Circuits: func() map[string]string {
		return map[string]string{"crime": "closed"}
	}})

	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, map[string]any{"crime": "closed"}, body["circuits"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestAssess_OK(t *testing.T) {
	svc := &mockAssessor{result: model.Result{VibeScore: 19, RiskLevel: model.RiskUnsafe, Classification: model.ClassUnsafe, LightingScore: 15}}
	h := NewRouter(svc, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/assess", strings.NewReader(`{"query":"Union Station","radiance":0.1}`))
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-42", svc.requestID)
	assert.Equal(t, "Union Station", svc.query)
	assert.Equal(t, 0.1, svc.radiance)

	var got model.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, svc.result, got)
	assert.Contains(t, rec.Body.String(), `"safe_haven_nearby":false`)
}

func TestAssess_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing radiance", `{"query":"x"}`},
		{"unknown field", `{"query":"x","radiance":1,"extra":true}`},
		{"radiance as string", `{"query":"x","radiance":"bright"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAssessor{}
			rec := do(t, NewRouter(svc, Options{}), http.MethodPost, "/v1/assess", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, svc.query)
		})
	}
}

func TestAssess_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantSource string
	}{
		{"not found", eris.Wrap(model.ErrNotFound, "assess: no place"), http.StatusNotFound, ""},
		{"invalid", model.InvalidInput("radiance must be finite"), http.StatusBadRequest, ""},
		{"upstream", model.NewUpstreamError("crime", 503, errors.New("down")), http.StatusBadGateway, "crime"},
		{"validation", model.NewValidationError("confidence", "out of range"), http.StatusBadGateway, "classifier"},
		{"circuit open", eris.Wrap(resilience.ErrOpen, "assess: places unavailable"), http.StatusServiceUnavailable, ""},
		{"timeout", model.NewUpstreamError("places", 0, context.DeadlineExceeded), http.StatusGatewayTimeout, "places"},
		{"unknown", errors.New("???"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, NewRouter(&mockAssessor{err: tt.err}, Options{}), http.MethodPost, "/v1/assess", `{"query":"x","radiance":1}`)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.wantSource, body.Source)
			assert.NotEmpty(t, body.RequestID)
		})
	}
}

func TestAlternatives_OK(t *testing.T) {
	vibe := 67
	risk := model.RiskSafe
	svc := &mockAssessor{ranked: []model.PlaceCandidate{
		{Name: "C", OpenAtTime: model.OpenUnknown, VibeScore: &vibe, RiskLevel: &risk},
	}}
	h := NewRouter(svc, Options{})

	rec := do(t, h, http.MethodPost, "/v1/alternatives",
		`{"query":"Union Station","radiance":3,"at":"2026-03-13T23:00:00-04:00","radius_meters":600}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "Union Station", svc.altReq.Query)
	assert.Equal(t, 3.0, svc.altReq.Radiance)
	assert.Equal(t, 600.0, svc.altReq.RadiusMeters)
	assert.True(t, svc.altReq.At.Equal(time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC)))

	assert.Contains(t, rec.Body.String(), `"open_at_time":"unknown"`)
	assert.Contains(t, rec.Body.String(), `"vibe_score":67`)
	assert.Contains(t, rec.Body.String(), `"risk_level":"SAFE"`)
}

func TestAlternatives_EmptyIsArray(t *testing.T) {
	rec := do(t, NewRouter(&mockAssessor{}, Options{}), http.MethodPost, "/v1/alternatives", `{"query":"x","radiance":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"alternatives":[]}`, rec.Body.String())
}

func TestAlternatives_Errors(t *testing.T) {
	rec := do(t, NewRouter(&mockAssessor{}, Options{}), http.MethodPost, "/v1/alternatives", `{"query":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, NewRouter(&mockAssessor{}, Options{}), http.MethodPost, "/v1/alternatives", `{"query":"x","radiance":1,"at":"tonight"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc := &mockAssessor{err: model.NewUpstreamError("nearby", 500, fmt.Errorf("boom"))}
	rec = do(t, NewRouter(svc, Options{}), http.MethodPost, "/v1/alternatives", `{"query":"x","radiance":1}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("glowpath_up 1\n"))
	})

	rec := do(t, NewRouter(&mockAssessor{}, Options{Metrics: metrics}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "glowpath_up 1")

	rec = do(t, NewRouter(&mockAssessor{}, Options{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	h := NewRouter(&mockAssessor{}, Options{AllowedOrigins: []string{"https://glowpath.app"}})

	req := httptest.NewRequest(http.MethodOptions, "/v1/assess", nil)
	req.Header.Set("Origin", "https://glowpath.app")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://glowpath.app", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/v1/assess", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(model.ErrNotFound))
	assert.Equal(t, http.StatusBadGateway, StatusFor(model.ErrUpstream))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(context.Canceled))
}
