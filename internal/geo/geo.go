// Package geo provides the spherical geometry used by the incident stores
// and the place providers.
package geo

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/glowpath/internal/model"
)

// SRID is WGS 84, the reference system of every coordinate in this module.
const SRID = 4326

// EarthRadiusMeters is the mean Earth radius.
const EarthRadiusMeters = 6_371_008.8

// DistanceMeters returns the great-circle distance between a and b.
func DistanceMeters(a, b model.LatLng) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := lat2 - lat1
	dLng := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// BBox is an axis-aligned lat/lng rectangle.
type BBox struct {
	MinLat, MinLng, MaxLat, MaxLng float64
}

// Contains reports whether p lies inside the box, edges included.
func (b BBox) Contains(p model.LatLng) bool {
	return p.Latitude >= b.MinLat && p.Latitude <= b.MaxLat &&
		p.Longitude >= b.MinLng && p.Longitude <= b.MaxLng
}

// BoundingBox returns a box that encloses the circle of radiusMeters around
// center. Used as an index prefilter before exact distance checks. Circles
// crossing the antimeridian are clipped at ±180.
func BoundingBox(center model.LatLng, radiusMeters float64) BBox {
	dLat := degrees(radiusMeters / EarthRadiusMeters)

	cosLat := math.Cos(radians(center.Latitude))
	dLng := 180.0
	if cosLat > 1e-9 {
		dLng = math.Min(180, dLat/cosLat)
	}

	box := BBox{
		MinLat: math.Max(-90, center.Latitude-dLat),
		MaxLat: math.Min(90, center.Latitude+dLat),
		MinLng: math.Max(-180, center.Longitude-dLng),
		MaxLng: math.Min(180, center.Longitude+dLng),
	}
	// Near the poles the circle spans every meridian.
	if dLng >= 180 {
		box.MinLng, box.MaxLng = -180, 180
	}
	return box
}

// CircleAreaKM2 returns the area of a circle of the given radius in km².
func CircleAreaKM2(radiusMeters float64) float64 {
	r := radiusMeters / 1000
	return math.Pi * r * r
}

// ValidLatLng reports whether p is a finite coordinate inside WGS 84 bounds.
func ValidLatLng(p model.LatLng) bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// Point converts p to a go-geom point (x = longitude, y = latitude) tagged
// with SRID 4326.
func Point(p model.LatLng) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{p.Longitude, p.Latitude}).SetSRID(SRID)
}

// EncodePoint returns the little-endian EWKB encoding of p, ready to bind to
// a PostGIS geometry parameter.
func EncodePoint(p model.LatLng) ([]byte, error) {
	data, err := ewkb.Marshal(Point(p), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode point")
	}
	return data, nil
}

// DecodePoint parses an EWKB point back into a coordinate.
func DecodePoint(data []byte) (model.LatLng, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return model.LatLng{}, eris.Wrap(err, "geo: decode point")
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return model.LatLng{}, eris.Errorf("geo: decode point: got %T", g)
	}
	return model.LatLng{Latitude: pt.Y(), Longitude: pt.X()}, nil
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
