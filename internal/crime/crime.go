// Package crime implements the crime severity index (CSI) sources: the
// backend proxy, the Postgres and SQLite incident stores and a static
// fixture.
package crime

import (
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/glowpath/internal/geo"
	"github.com/sells-group/glowpath/internal/model"
)

// Source is the collaborator name reported on failures.
const Source = "crime"

// DefaultSaturationPerKM2 is the severity-weighted incident density that maps
// to an index of 100.
const DefaultSaturationPerKM2 = 120.0

// Incident is one reported crime, as stored and imported.
type Incident struct {
	Source     string       `yaml:"source" json:"source"`
	ExternalID string       `yaml:"external_id" json:"external_id"`
	Category   string       `yaml:"category" json:"category"`
	Severity   int          `yaml:"severity" json:"severity"` // 1 (minor) to 5 (violent)
	OccurredAt time.Time    `yaml:"occurred_at" json:"occurred_at"`
	Location   model.LatLng `yaml:"location" json:"location"`
}

// Validate checks the fields required for storage.
func (i Incident) Validate() error {
	switch {
	case i.Source == "" || i.ExternalID == "":
		return eris.New("crime: incident needs source and external_id")
	case i.Severity < 1 || i.Severity > 5:
		return eris.Errorf("crime: incident %s/%s: severity %d outside 1..5", i.Source, i.ExternalID, i.Severity)
	case i.OccurredAt.IsZero():
		return eris.Errorf("crime: incident %s/%s: missing occurred_at", i.Source, i.ExternalID)
	case !geo.ValidLatLng(i.Location):
		return eris.Errorf("crime: incident %s/%s: invalid location", i.Source, i.ExternalID)
	}
	return nil
}

// Index converts a severity-weighted incident sum inside a circle into a
// 0..100 index by scaling its density against saturation.
func Index(weightedSum, radiusMeters, saturationPerKM2 float64) float64 {
	if saturationPerKM2 <= 0 {
		saturationPerKM2 = DefaultSaturationPerKM2
	}
	area := geo.CircleAreaKM2(radiusMeters)
	if area <= 0 || weightedSum <= 0 {
		return 0
	}
	return math.Min(100, 100*(weightedSum/area)/saturationPerKM2)
}

// checkQuery rejects lookups no store can answer.
func checkQuery(loc model.LatLng, radiusMeters float64, windowDays int) error {
	if !geo.ValidLatLng(loc) {
		return eris.Errorf("crime: invalid location %v,%v", loc.Latitude, loc.Longitude)
	}
	if !(radiusMeters > 0) || math.IsInf(radiusMeters, 0) {
		return eris.Errorf("crime: radius must be positive, got %v", radiusMeters)
	}
	if windowDays <= 0 {
		return eris.Errorf("crime: window must be positive, got %d days", windowDays)
	}
	return nil
}

func windowStart(now time.Time, windowDays int) time.Time {
	return now.Add(-time.Duration(windowDays) * 24 * time.Hour)
}
