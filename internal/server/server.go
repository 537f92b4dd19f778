// Package server exposes the assessment service as a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/glowpath/internal/assess"
	"github.com/sells-group/glowpath/internal/model"
	"github.com/sells-group/glowpath/internal/resilience"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

const maxBodyBytes = 1 << 16

// Assessor is the service surface the API serves.
type Assessor interface {
	Assess(ctx context.Context, query string, radiance float64) (model.Result, error)
	RankAlternatives(ctx context.Context, req assess.AlternativesRequest) ([]model.PlaceCandidate, error)
}

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// Circuits reports breaker states on GET /health when set.
	Circuits func() map[string]string
}

type handler struct {
	svc  Assessor
	opts Options
}

// NewRouter builds the API routes.
func NewRouter(svc Assessor, opts Options) http.Handler {
	h := &handler{svc: svc, opts: opts}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		if opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(opts.RequestTimeout))
		}
		r.Post("/assess", h.assess)
		r.Post("/alternatives", h.alternatives)
	})

	return r
}

// requestID reuses the caller's id or mints one, and threads it through the
// request context for logging.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(assess.WithRequestID(r.Context(), id)))
	})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if h.opts.Circuits != nil {
		body["circuits"] = h.opts.Circuits()
	}
	writeJSON(w, http.StatusOK, body)
}

type assessRequest struct {
	Query    string   `json:"query"`
	Radiance *float64 `json:"radiance"`
}

func (h *handler) assess(w http.ResponseWriter, r *http.Request) {
	var req assessRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Radiance == nil {
		writeError(w, r, model.InvalidInput("radiance is required"))
		return
	}

	result, err := h.svc.Assess(r.Context(), req.Query, *req.Radiance)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type alternativesRequest struct {
	Query        string    `json:"query"`
	Radiance     *float64  `json:"radiance"`
	At           time.Time `json:"at"`
	RadiusMeters float64   `json:"radius_meters"`
}

type alternativesResponse struct {
	Alternatives []model.PlaceCandidate `json:"alternatives"`
}

func (h *handler) alternatives(w http.ResponseWriter, r *http.Request) {
	var req alternativesRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Radiance == nil {
		writeError(w, r, model.InvalidInput("radiance is required"))
		return
	}

	ranked, err := h.svc.RankAlternatives(r.Context(), assess.AlternativesRequest{
		Query:        req.Query,
		Radiance:     *req.Radiance,
		At:           req.At,
		RadiusMeters: req.RadiusMeters,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ranked == nil {
		ranked = []model.PlaceCandidate{}
	}
	writeJSON(w, http.StatusOK, alternativesResponse{Alternatives: ranked})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, model.InvalidInput("invalid request body: %v", err))
		return false
	}
	return true
}

type errorResponse struct {
	Error     string `json:"error"`
	Source    string `json:"source,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// StatusFor maps a service error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, resilience.ErrOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, model.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	id := w.Header().Get(RequestIDHeader)

	log := zap.L().With(zap.String("request_id", id), zap.String("path", r.URL.Path), zap.Int("status", status))
	if status >= 500 {
		log.Error("server: request failed", zap.Error(err))
	} else {
		log.Info("server: request rejected", zap.Error(err))
	}

	writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		Source:    model.UpstreamSource(err),
		RequestID: id,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}
