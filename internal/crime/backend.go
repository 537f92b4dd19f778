package crime

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/glowpath/internal/model"
	"github.com/sells-group/glowpath/pkg/crimeapi"
)

// Backend reads baselines from the crime proxy service.
type Backend struct {
	client crimeapi.Client
}

// NewBackend wraps a proxy client.
func NewBackend(client crimeapi.Client) *Backend {
	return &Backend{client: client}
}

// CrimeBaseline returns the proxy's index for the circle. A reply without a
// finite csi is a failure; range is left to the caller to clamp.
func (b *Backend) CrimeBaseline(ctx context.Context, loc model.LatLng, radiusMeters float64, windowDays int) (float64, error) {
	if err := checkQuery(loc, radiusMeters, windowDays); err != nil {
		return 0, err
	}

	resp, err := b.client.Baseline(ctx, crimeapi.BaselineRequest{
		Latitude:     loc.Latitude,
		Longitude:    loc.Longitude,
		RadiusMeters: radiusMeters,
		WindowDays:   windowDays,
	})
	if err != nil {
		return 0, model.NewUpstreamError(Source, crimeapi.StatusCode(err), err)
	}
	if resp.CSI == nil {
		return 0, model.NewUpstreamError(Source, 0, eris.New("crime: reply missing csi"))
	}
	if math.IsNaN(*resp.CSI) || math.IsInf(*resp.CSI, 0) {
		return 0, model.NewUpstreamError(Source, 0, eris.Errorf("crime: non-finite csi %v", *resp.CSI))
	}
	return *resp.CSI, nil
}
