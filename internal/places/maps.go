package places

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"googlemaps.github.io/maps"

	"github.com/sells-group/glowpath/internal/model"
)

// LiveWindow bounds how far the visit time may be from now for the legacy
// open_now flag to apply.
const LiveWindow = 15 * time.Minute

// MapsAPI is the subset of *maps.Client used here.
type MapsAPI interface {
	TextSearch(ctx context.Context, r *maps.TextSearchRequest) (maps.PlacesSearchResponse, error)
	NearbySearch(ctx context.Context, r *maps.NearbySearchRequest) (maps.PlacesSearchResponse, error)
}

// NewMapsClient builds a Maps web service client.
func NewMapsClient(apiKey, baseURL string, rateLimit int) (*maps.Client, error) {
	opts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, maps.WithBaseURL(baseURL))
	}
	if rateLimit > 0 {
		opts = append(opts, maps.WithRateLimit(rateLimit))
	}
	c, err := maps.NewClient(opts...)
	if err != nil {
		return nil, eris.Wrap(err, "places: create maps client")
	}
	return c, nil
}

// Maps uses the legacy Places web service. It only knows whether a venue
// is open right now, so visit times outside LiveWindow report unknown.
type Maps struct {
	client MapsAPI
	opts   Options
	now    func() time.Time
}

// NewMaps wraps a Maps client.
func NewMaps(client MapsAPI, opts Options) *Maps {
	return &Maps{client: client, opts: opts, now: time.Now}
}

// ResolvePlace returns the top text-search match for query, or nil when
// nothing matches.
func (m *Maps) ResolvePlace(ctx context.Context, query string) (*model.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.InvalidInput("places: empty query")
	}

	resp, err := m.client.TextSearch(ctx, &maps.TextSearchRequest{Query: query})
	if err != nil && !zeroResults(err) {
		return nil, model.NewUpstreamError(ResolveSource, mapsStatus(err), eris.Wrap(err, "places: maps text search"))
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}

	r := resp.Results[0]
	return &model.Place{
		Name:     r.Name,
		Address:  r.FormattedAddress,
		Location: model.LatLng{Latitude: r.Geometry.Location.Lat, Longitude: r.Geometry.Location.Lng},
		ID:       r.PlaceID,
	}, nil
}

// DiscoverNearby lists venues within radiusMeters of center. The legacy
// API filters by a single type, so the first configured type is used.
func (m *Maps) DiscoverNearby(ctx context.Context, center model.LatLng, radiusMeters float64, at time.Time) ([]model.PlaceCandidate, error) {
	req := &maps.NearbySearchRequest{
		Location: &maps.LatLng{Lat: center.Latitude, Lng: center.Longitude},
		Radius:   uint(math.Round(radiusMeters)),
	}
	if len(m.opts.IncludedTypes) > 0 {
		req.Type = maps.PlaceType(m.opts.IncludedTypes[0])
	}

	resp, err := m.client.NearbySearch(ctx, req)
	if err != nil && !zeroResults(err) {
		return nil, model.NewUpstreamError(NearbySource, mapsStatus(err), eris.Wrap(err, "places: maps nearby search"))
	}

	live := absDuration(at.Sub(m.now())) <= LiveWindow
	out := make([]model.PlaceCandidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		if m.opts.MaxResults > 0 && len(out) >= m.opts.MaxResults {
			break
		}
		out = append(out, model.PlaceCandidate{
			Name:       r.Name,
			Address:    firstNonEmpty(r.FormattedAddress, r.Vicinity),
			Location:   model.LatLng{Latitude: r.Geometry.Location.Lat, Longitude: r.Geometry.Location.Lng},
			ID:         r.PlaceID,
			OpenAtTime: legacyStatus(r, live),
		})
	}
	return out, nil
}

func legacyStatus(r maps.PlacesSearchResult, live bool) model.OpenStatus {
	if r.PermanentlyClosed || r.BusinessStatus == "CLOSED_PERMANENTLY" || r.BusinessStatus == "CLOSED_TEMPORARILY" {
		return model.OpenClosed
	}
	if !live || r.OpeningHours == nil || r.OpeningHours.OpenNow == nil {
		return model.OpenUnknown
	}
	return model.OpenStatusFromBool(*r.OpeningHours.OpenNow)
}

func zeroResults(err error) bool {
	return strings.Contains(err.Error(), "ZERO_RESULTS")
}

// mapsStatuses maps web service status strings onto HTTP statuses. The
// service answers 200 with the real status in the body.
var mapsStatuses = []struct {
	status string
	code   int
}{
	{"INVALID_REQUEST", 400},
	{"REQUEST_DENIED", 403},
	{"NOT_FOUND", 404},
	{"OVER_QUERY_LIMIT", 429},
	{"OVER_DAILY_LIMIT", 429},
	{"UNKNOWN_ERROR", 500},
}

// mapsStatus returns the HTTP status equivalent of a web service error, or 0
// for transport failures.
func mapsStatus(err error) int {
	msg := err.Error()
	for _, s := range mapsStatuses {
		if strings.Contains(msg, s.status) {
			return s.code
		}
	}
	return 0
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
