// Package assess orchestrates destination assessments and alternative
// rankings over the place, crime and classifier collaborators.
package assess

import (
	"context"
	"time"

	"github.com/sells-group/glowpath/internal/model"
)

// PlaceResolver resolves a free-text destination. It returns nil, nil when
// nothing matches.
type PlaceResolver interface {
	ResolvePlace(ctx context.Context, query string) (*model.Place, error)
}

// NearbyDiscoverer lists candidate venues around a point, with open status
// evaluated at the visit time.
type NearbyDiscoverer interface {
	DiscoverNearby(ctx context.Context, center model.LatLng, radiusMeters float64, at time.Time) ([]model.PlaceCandidate, error)
}

// CrimeSource returns the crime severity index for a circle.
type CrimeSource interface {
	CrimeBaseline(ctx context.Context, loc model.LatLng, radiusMeters float64, windowDays int) (float64, error)
}

// MismatchClassifier labels the crime/lighting relationship. Its output is
// already schema-validated.
type MismatchClassifier interface {
	Classify(ctx context.Context, s model.Signals) (model.ModelOutput, error)
}

// Recorder receives operational measurements. *metrics.Metrics implements
// it.
type Recorder interface {
	ObserveAssessment(risk, classification string, overrode bool)
	UpstreamFailure(source string)
	ObserveDuration(operation string, start time.Time, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAssessment(string, string, bool) {}
func (nopRecorder) UpstreamFailure(string) {}
func (nopRecorder) ObserveDuration(string, time.Time, error) {}
