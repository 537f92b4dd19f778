package crime

import (
	"context"
	"math"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/glowpath/internal/geo"
	"github.com/sells-group/glowpath/internal/model"
)

// FixtureArea assigns a fixed index to every point within RadiusMeters of
// Center.
type FixtureArea struct {
	Name         string       `yaml:"name"`
	Center       model.LatLng `yaml:"center"`
	RadiusMeters float64      `yaml:"radius_meters"`
	CSI          float64      `yaml:"csi"`
}

// FixtureFile is the on-disk fixture layout.
type FixtureFile struct {
	DefaultCSI *float64      `yaml:"default_csi"`
	Areas      []FixtureArea `yaml:"areas"`
}

// Fixture serves baselines from a static table, for demos and offline runs.
type Fixture struct {
	file FixtureFile
}

// NewFixture validates f and returns a fixture source.
func NewFixture(f FixtureFile) (*Fixture, error) {
	for i, a := range f.Areas {
		if !geo.ValidLatLng(a.Center) {
			return nil, eris.Errorf("crime: fixture area %d (%s): invalid center", i, a.Name)
		}
		if !(a.RadiusMeters > 0) {
			return nil, eris.Errorf("crime: fixture area %d (%s): radius must be positive", i, a.Name)
		}
		if math.IsNaN(a.CSI) || math.IsInf(a.CSI, 0) {
			return nil, eris.Errorf("crime: fixture area %d (%s): csi must be finite", i, a.Name)
		}
	}
	return &Fixture{file: f}, nil
}

// LoadFixture reads a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "crime: read fixture %s", path)
	}
	var f FixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "crime: parse fixture %s", path)
	}
	return NewFixture(f)
}

// CrimeBaseline returns the index of the nearest area containing loc, or
// the default. The radius and window arguments are ignored.
func (f *Fixture) CrimeBaseline(_ context.Context, loc model.LatLng, radiusMeters float64, windowDays int) (float64, error) {
	if err := checkQuery(loc, radiusMeters, windowDays); err != nil {
		return 0, err
	}

	best := -1
	bestDist := math.Inf(1)
	for i, a := range f.file.Areas {
		d := geo.DistanceMeters(loc, a.Center)
		if d <= a.RadiusMeters && d < bestDist {
			best, bestDist = i, d
		}
	}
	if best >= 0 {
		return f.file.Areas[best].CSI, nil
	}
	if f.file.DefaultCSI != nil {
		return *f.file.DefaultCSI, nil
	}
	return 0, model.NewUpstreamError(Source, 0, eris.Errorf("crime: no fixture area covers %v,%v", loc.Latitude, loc.Longitude))
}
