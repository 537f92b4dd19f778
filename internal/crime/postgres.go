package crime

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/glowpath/internal/db"
	"github.com/sells-group/glowpath/internal/geo"
	"github.com/sells-group/glowpath/internal/model"
)

// IncidentsTable holds imported incidents in Postgres.
const IncidentsTable db.Table = "crime.incidents"

var incidentColumns = []string{"source", "external_id", "category", "severity", "occurred_at", "geom"}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;
CREATE SCHEMA IF NOT EXISTS crime;
CREATE TABLE IF NOT EXISTS crime.incidents (
	source      TEXT NOT NULL,
	external_id TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	severity    SMALLINT NOT NULL CHECK (severity BETWEEN 1 AND 5),
	occurred_at TIMESTAMPTZ NOT NULL,
	geom        geometry(Point, 4326) NOT NULL,
	PRIMARY KEY (source, external_id)
);
CREATE INDEX IF NOT EXISTS idx_incidents_geom ON crime.incidents USING GIST (geom);
CREATE INDEX IF NOT EXISTS idx_incidents_occurred_at ON crime.incidents (occurred_at);
`

const postgresBaselineSQL = `SELECT COALESCE(SUM(severity), 0)::float8, COUNT(*)
FROM crime.incidents
WHERE occurred_at >= $4
  AND ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)`

// PostgresStore computes baselines from a PostGIS incident table.
type PostgresStore struct {
	pool       db.Pool
	saturation float64
	now        func() time.Time
}

// NewPostgresStore creates a store over pool. saturationPerKM2 <= 0 uses
// DefaultSaturationPerKM2.
func NewPostgresStore(pool db.Pool, saturationPerKM2 float64) *PostgresStore {
	return &PostgresStore{pool: pool, saturation: saturationPerKM2, now: time.Now}
}

// Migrate creates the schema, table and indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "crime: postgres migrate")
}

// CrimeBaseline sums incident severities within radiusMeters of loc over the
// last windowDays and converts the density to an index.
func (s *PostgresStore) CrimeBaseline(ctx context.Context, loc model.LatLng, radiusMeters float64, windowDays int) (float64, error) {
	if err := checkQuery(loc, radiusMeters, windowDays); err != nil {
		return 0, err
	}

	var weighted float64
	var count int64
	since := windowStart(s.now(), windowDays)
	err := s.pool.QueryRow(ctx, postgresBaselineSQL, loc.Longitude, loc.Latitude, radiusMeters, since).Scan(&weighted, &count)
	if err != nil {
		return 0, model.NewUpstreamError(Source, 0, eris.Wrap(err, "crime: postgres baseline"))
	}

	csi := Index(weighted, radiusMeters, s.saturation)
	zap.L().Debug("crime: postgres baseline",
		zap.Int64("incidents", count),
		zap.Float64("weighted", weighted),
		zap.Float64("csi", csi),
	)
	return csi, nil
}

// Import upserts incidents keyed by (source, external_id). Invalid incidents
// abort the import before anything is written.
func (s *PostgresStore) Import(ctx context.Context, incidents []Incident) (int64, error) {
	rows := make([][]any, 0, len(incidents))
	for _, inc := range incidents {
		if err := inc.Validate(); err != nil {
			return 0, err
		}
		wkb, err := geo.EncodePoint(inc.Location)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{
			inc.Source, inc.ExternalID, inc.Category, int16(inc.Severity), inc.OccurredAt.UTC(), wkb,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.Upsert{
		Table:        IncidentsTable,
		Columns:      incidentColumns,
		ConflictKeys: []string{"source", "external_id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "crime: postgres import")
	}
	return n, nil
}
