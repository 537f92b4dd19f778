package assess

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/glowpath/internal/model"
)

type mockPlaces struct {
	place *model.Place
	err   error
	calls int
}

func (m *mockPlaces) ResolvePlace(_ context.Context, _ string) (*model.Place, error) {
	m.calls++
	return m.place, m.err
}

type mockNearby struct {
	candidates []model.PlaceCandidate
	err        error
	gotRadius  float64
	gotAt      time.Time
}

func (m *mockNearby) DiscoverNearby(_ context.Context, _ model.LatLng, radiusMeters float64, at time.Time) ([]model.PlaceCandidate, error) {
	m.gotRadius = radiusMeters
	m.gotAt = at
	return m.candidates, m.err
}

// mockCrime returns a per-location baseline, falling back to def.
type mockCrime struct {
	mu     sync.Mutex
	byLoc  map[model.LatLng]float64
	errAt  map[model.LatLng]error
	def    float64
	err    error
	calls  int
	radius float64
	window int
}

func (m *mockCrime) CrimeBaseline(_ context.Context, loc model.LatLng, radiusMeters float64, windowDays int) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.radius, m.window = radiusMeters, windowDays
	if m.err != nil {
		return 0, m.err
	}
	if err, ok := m.errAt[loc]; ok {
		return 0, err
	}
	if v, ok := m.byLoc[loc]; ok {
		return v, nil
	}
	return m.def, nil
}

type mockClassifier struct {
	out     model.ModelOutput
	err     error
	signals []model.Signals
}

func (m *mockClassifier) Classify(_ context.Context, s model.Signals) (model.ModelOutput, error) {
	m.signals = append(m.signals, s)
	return m.out, m.err
}

type mockRecorder struct {
	mu          sync.Mutex
	assessments []string
	overrides   int
	failures    map[string]int
	durations   map[string]int
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{failures: map[string]int{}, durations: map[string]int{}}
}

func (m *mockRecorder) ObserveAssessment(risk, classification string, overrode bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assessments = append(m.assessments, risk+"/"+classification)
	if overrode {
		m.overrides++
	}
}

func (m *mockRecorder) UpstreamFailure(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[source]++
}

func (m *mockRecorder) ObserveDuration(operation string, _ time.Time, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.durations[operation+"/"+outcome]++
}
