package assess

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/glowpath/internal/config"
	"github.com/sells-group/glowpath/internal/model"
	"github.com/sells-group/glowpath/internal/resilience"
	"github.com/sells-group/glowpath/internal/scorer"
)

// AlternativesRequest asks for venues near a destination. A zero At means
// now; a zero RadiusMeters uses the configured default.
type AlternativesRequest struct {
	Query        string    `json:"query"`
	Radiance     float64   `json:"radiance"`
	At           time.Time `json:"at"`
	RadiusMeters float64   `json:"radius_meters"`
}

// Service runs assessments and rankings.
type Service struct {
	places     PlaceResolver
	nearby     NearbyDiscoverer
	crime      CrimeSource
	classifier MismatchClassifier
	breakers   *resilience.Set
	rec        Recorder

	crimeRadius float64
	windowDays  int
	altRadius   float64
	rank        RankOptions

	now func() time.Time
}

// New creates a Service. A nil breakers set uses default breaker settings;
// a nil rec discards measurements.
func New(
	cfg *config.Config,
	places PlaceResolver,
	nearby NearbyDiscoverer,
	crime CrimeSource,
	classifier MismatchClassifier,
	breakers *resilience.Set,
	rec Recorder,
) *Service {
	if breakers == nil {
		breakers = resilience.NewSet(resilience.NewSettings(0, 0))
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Service{
		places:      places,
		nearby:      nearby,
		crime:       crime,
		classifier:  classifier,
		breakers:    breakers,
		rec:         rec,
		crimeRadius: cfg.Crime.RadiusMeters,
		windowDays:  cfg.Crime.WindowDays,
		altRadius:   cfg.Alternatives.RadiusMeters,
		rank: RankOptions{
			Shortlist:   cfg.Alternatives.Shortlist,
			TopN:        cfg.Alternatives.TopN,
			Concurrency: cfg.Alternatives.Concurrency,
		},
		now: time.Now,
	}
}

// Assess scores a destination: resolve, fetch its crime baseline, derive
// lighting, vibe and warmth, classify, then reconcile.
func (s *Service) Assess(ctx context.Context, query string, radiance float64) (result model.Result, err error) {
	start := time.Now()
	log := zap.L().With(zap.String("request_id", RequestID(ctx)), zap.String("query", query))
	defer func() { s.rec.ObserveDuration("assess", start, err) }()

	query, err = checkInput(query, radiance)
	if err != nil {
		return model.Result{}, err
	}

	place, err := s.resolve(ctx, query)
	if err != nil {
		return model.Result{}, err
	}

	csi, err := s.baseline(ctx, place.Location)
	if err != nil {
		return model.Result{}, err
	}

	csi = scorer.ClampCSI(csi)
	lighting := scorer.LightingScore(radiance)
	vibe := scorer.VibeScore(csi, float64(lighting))
	warmth := scorer.SocialWarmth(csi, float64(lighting))

	out, err := resilience.Call(ctx, s.breakers.For(resilience.Classifier), func(ctx context.Context) (model.ModelOutput, error) {
		return s.classifier.Classify(ctx, model.Signals{
			CSI:           csi,
			Radiance:      radiance,
			VibeScore:     vibe,
			LightingScore: lighting,
		})
	})
	if err != nil {
		return model.Result{}, s.upstream(resilience.Classifier, err)
	}

	overrode := Overrode(out, vibe)
	result = Assemble(vibe, lighting, csi, warmth, out)
	if overrode {
		log.Info("assess: model risk level overridden",
			zap.String("model_risk", string(out.RiskLevel)),
			zap.String("risk", string(result.RiskLevel)),
		)
	}
	s.rec.ObserveAssessment(string(result.RiskLevel), string(result.Classification), overrode)

	log.Info("assess: complete",
		zap.String("place", place.Name),
		zap.Float64("csi", csi),
		zap.Int("lighting", lighting),
		zap.Int("vibe", vibe),
		zap.String("risk", string(result.RiskLevel)),
		zap.String("classification", string(result.Classification)),
		zap.Bool("override", overrode),
	)
	return result, nil
}

// RankAlternatives resolves the destination, discovers venues around it at
// the visit time and ranks them by vibe score.
func (s *Service) RankAlternatives(ctx context.Context, req AlternativesRequest) (ranked []model.PlaceCandidate, err error) {
	start := time.Now()
	log := zap.L().With(zap.String("request_id", RequestID(ctx)), zap.String("query", req.Query))
	defer func() { s.rec.ObserveDuration("alternatives", start, err) }()

	query, err := checkInput(req.Query, req.Radiance)
	if err != nil {
		return nil, err
	}
	radius := req.RadiusMeters
	switch {
	case math.IsNaN(radius) || math.IsInf(radius, 0) || radius < 0:
		return nil, model.InvalidInput("assess: radius must be a positive number")
	case radius == 0:
		radius = s.altRadius
	}
	at := req.At
	if at.IsZero() {
		at = s.now()
	}

	place, err := s.resolve(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := resilience.Call(ctx, s.breakers.For(resilience.Nearby), func(ctx context.Context) ([]model.PlaceCandidate, error) {
		return s.nearby.DiscoverNearby(ctx, place.Location, radius, at)
	})
	if err != nil {
		return nil, s.upstream(resilience.Nearby, err)
	}

	// One crime breaker admission covers the whole fan-out.
	lighting := scorer.LightingScore(req.Radiance)
	if len(candidates) == 0 {
		ranked = []model.PlaceCandidate{}
	} else {
		ranked, err = resilience.Call(ctx, s.breakers.For(resilience.Crime), func(ctx context.Context) ([]model.PlaceCandidate, error) {
			return Rank(ctx, candidates, lighting, s.rank, s.fetchBaseline)
		})
		if err != nil {
			return nil, s.upstream(resilience.Crime, err)
		}
	}

	log.Info("assess: alternatives ranked",
		zap.String("place", place.Name),
		zap.Time("at", at),
		zap.Float64("radius_m", radius),
		zap.Int("discovered", len(candidates)),
		zap.Int("returned", len(ranked)),
	)
	return ranked, nil
}

// Breakers exposes the breaker set for health reporting.
func (s *Service) Breakers() *resilience.Set {
	return s.breakers
}

func checkInput(query string, radiance float64) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", model.InvalidInput("assess: query is required")
	}
	if math.IsNaN(radiance) || math.IsInf(radiance, 0) {
		return "", model.InvalidInput("assess: radiance must be a finite number")
	}
	return query, nil
}

func (s *Service) resolve(ctx context.Context, query string) (*model.Place, error) {
	place, err := resilience.Call(ctx, s.breakers.For(resilience.Places), func(ctx context.Context) (*model.Place, error) {
		return s.places.ResolvePlace(ctx, query)
	})
	if err != nil {
		return nil, s.upstream(resilience.Places, err)
	}
	if place == nil {
		return nil, eris.Wrapf(model.ErrNotFound, "assess: no place matches %q", query)
	}
	return place, nil
}

// baseline fetches a crime baseline through the crime breaker. A non-finite
// value is a collaborator failure.
func (s *Service) baseline(ctx context.Context, loc model.LatLng) (float64, error) {
	csi, err := resilience.Call(ctx, s.breakers.For(resilience.Crime), func(ctx context.Context) (float64, error) {
		return s.fetchBaseline(ctx, loc)
	})
	if err != nil {
		return 0, s.upstream(resilience.Crime, err)
	}
	return csi, nil
}

// fetchBaseline asks the crime source directly, without the breaker.
func (s *Service) fetchBaseline(ctx context.Context, loc model.LatLng) (float64, error) {
	v, err := s.crime.CrimeBaseline(ctx, loc, s.crimeRadius, s.windowDays)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, model.NewUpstreamError(string(resilience.Crime), 0, eris.Errorf("crime: non-finite baseline %v", v))
	}
	return v, nil
}

// upstream normalizes a collaborator error: taxonomy errors pass through,
// anything else becomes an UpstreamError for the collaborator.
func (s *Service) upstream(c resilience.Collaborator, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, model.ErrInvalidInput):
		return err
	case errors.Is(err, resilience.ErrOpen):
		s.rec.UpstreamFailure(string(c))
		zap.L().Warn("assess: circuit open", zap.String("source", string(c)))
		return eris.Wrapf(err, "assess: %s unavailable", c)
	case errors.Is(err, model.ErrUpstream):
		s.rec.UpstreamFailure(string(c))
		zap.L().Warn("assess: upstream failure", zap.String("source", string(c)), zap.Error(err))
		return err
	default:
		s.rec.UpstreamFailure(string(c))
		zap.L().Warn("assess: upstream failure", zap.String("source", string(c)), zap.Error(err))
		return model.NewUpstreamError(string(c), 0, err)
	}
}
