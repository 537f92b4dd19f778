package crime

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/glowpath/internal/geo"
	"github.com/sells-group/glowpath/internal/model"
)

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS incidents (
	source      TEXT NOT NULL,
	external_id TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	severity    INTEGER NOT NULL CHECK (severity BETWEEN 1 AND 5),
	occurred_at INTEGER NOT NULL,
	lat         REAL NOT NULL,
	lng         REAL NOT NULL,
	PRIMARY KEY (source, external_id)
);
CREATE INDEX IF NOT EXISTS idx_incidents_lat_lng ON incidents(lat, lng);
CREATE INDEX IF NOT EXISTS idx_incidents_occurred_at ON incidents(occurred_at);
`

// SQLiteStore computes baselines from a local SQLite incident table. The
// bounding box narrows candidates through the index; exact distance is
// checked in Go.
type SQLiteStore struct {
	db         *sql.DB
	saturation float64
	now        func() time.Time
}

// NewSQLiteStore opens the database at dsn in WAL mode.
func NewSQLiteStore(dsn string, saturationPerKM2 float64) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "crime: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "crime: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: conn, saturation: saturationPerKM2, now: time.Now}, nil
}

// Migrate creates the incidents table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "crime: sqlite migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CrimeBaseline sums incident severities within radiusMeters of loc over the
// last windowDays and converts the density to an index.
func (s *SQLiteStore) CrimeBaseline(ctx context.Context, loc model.LatLng, radiusMeters float64, windowDays int) (float64, error) {
	if err := checkQuery(loc, radiusMeters, windowDays); err != nil {
		return 0, err
	}

	box := geo.BoundingBox(loc, radiusMeters)
	since := windowStart(s.now(), windowDays).Unix()

	rows, err := s.db.QueryContext(ctx,
		`SELECT severity, lat, lng FROM incidents
		 WHERE lat BETWEEN ? AND ? AND lng BETWEEN ? AND ? AND occurred_at >= ?`,
		box.MinLat, box.MaxLat, box.MinLng, box.MaxLng, since,
	)
	if err != nil {
		return 0, model.NewUpstreamError(Source, 0, eris.Wrap(err, "crime: sqlite baseline"))
	}
	defer rows.Close() //nolint:errcheck

	var weighted float64
	for rows.Next() {
		var severity int
		var p model.LatLng
		if err := rows.Scan(&severity, &p.Latitude, &p.Longitude); err != nil {
			return 0, model.NewUpstreamError(Source, 0, eris.Wrap(err, "crime: sqlite scan"))
		}
		if geo.DistanceMeters(loc, p) <= radiusMeters {
			weighted += float64(severity)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, model.NewUpstreamError(Source, 0, eris.Wrap(err, "crime: sqlite rows"))
	}

	return Index(weighted, radiusMeters, s.saturation), nil
}

// Import upserts incidents keyed by (source, external_id) in one
// transaction.
func (s *SQLiteStore) Import(ctx context.Context, incidents []Incident) (int64, error) {
	for _, inc := range incidents {
		if err := inc.Validate(); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "crime: sqlite begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO incidents (source, external_id, category, severity, occurred_at, lat, lng)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, external_id) DO UPDATE SET
			category = excluded.category,
			severity = excluded.severity,
			occurred_at = excluded.occurred_at,
			lat = excluded.lat,
			lng = excluded.lng`)
	if err != nil {
		return 0, eris.Wrap(err, "crime: sqlite prepare import")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, inc := range incidents {
		if _, err := stmt.ExecContext(ctx,
			inc.Source, inc.ExternalID, inc.Category, inc.Severity,
			inc.OccurredAt.Unix(), inc.Location.Latitude, inc.Location.Longitude,
		); err != nil {
			return 0, eris.Wrapf(err, "crime: sqlite import %s/%s", inc.Source, inc.ExternalID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "crime: sqlite commit")
	}
	return n, nil
}
