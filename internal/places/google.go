// Package places resolves destinations and discovers nearby venues through
// Google. Two providers implement the same methods: the Places API v1 and
// the legacy Maps web service SDK.
package places

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/glowpath/internal/model"
	"github.com/sells-group/glowpath/pkg/google"
)

// Collaborator names reported on failures.
const (
	ResolveSource = "places"
	NearbySource  = "nearby"
)

// Options tunes nearby discovery.
type Options struct {
	IncludedTypes []string
	MaxResults    int
}

// Google uses the Places API v1.
type Google struct {
	client google.Client
	opts   Options
}

// NewGoogle wraps a Places v1 client.
func NewGoogle(client google.Client, opts Options) *Google {
	return &Google{client: client, opts: opts}
}

// ResolvePlace returns the top text-search match for query, or nil when
// nothing matches.
func (g *Google) ResolvePlace(ctx context.Context, query string) (*model.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.InvalidInput("places: empty query")
	}

	resp, err := g.client.TextSearch(ctx, google.TextSearchRequest{TextQuery: query, PageSize: 1})
	if err != nil {
		return nil, model.NewUpstreamError(ResolveSource, google.StatusCode(err), err)
	}
	if len(resp.Places) == 0 {
		return nil, nil
	}

	p := resp.Places[0]
	if p.Location == nil {
		return nil, model.NewUpstreamError(ResolveSource, 0, eris.Errorf("places: match %q has no location", p.ID))
	}
	return &model.Place{
		Name:     p.DisplayName.Text,
		Address:  p.FormattedAddress,
		Location: model.LatLng{Latitude: p.Location.Latitude, Longitude: p.Location.Longitude},
		ID:       p.ID,
	}, nil
}

// DiscoverNearby lists venues within radiusMeters of center, with each
// venue's open status evaluated at the given time.
func (g *Google) DiscoverNearby(ctx context.Context, center model.LatLng, radiusMeters float64, at time.Time) ([]model.PlaceCandidate, error) {
	resp, err := g.client.SearchNearby(ctx, google.NearbyRequest{
		Latitude:       center.Latitude,
		Longitude:      center.Longitude,
		RadiusMeters:   radiusMeters,
		IncludedTypes:  g.opts.IncludedTypes,
		MaxResultCount: g.opts.MaxResults,
	})
	if err != nil {
		return nil, model.NewUpstreamError(NearbySource, google.StatusCode(err), err)
	}

	out := make([]model.PlaceCandidate, 0, len(resp.Places))
	for _, p := range resp.Places {
		if p.Location == nil {
			zap.L().Debug("places: skipping venue without location", zap.String("id", p.ID))
			continue
		}
		status := model.OpenUnknown
		if open, known := p.OpenAt(at); known {
			status = model.OpenStatusFromBool(open)
		}
		out = append(out, model.PlaceCandidate{
			Name:       p.DisplayName.Text,
			Address:    p.FormattedAddress,
			Location:   model.LatLng{Latitude: p.Location.Latitude, Longitude: p.Location.Longitude},
			ID:         p.ID,
			OpenAtTime: status,
		})
	}
	return out, nil
}
