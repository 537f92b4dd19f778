package db

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var incidentCols = []string{"source", "external_id", "severity", "occurred_at", "geom"}

func TestTable_Identifier(t *testing.T) {
	assert.Equal(t, pgx.Identifier{"incidents"}, Table("incidents").Identifier())
	assert.Equal(t, pgx.Identifier{"crime", "incidents"}, Table("crime.incidents").Identifier())
	assert.Equal(t, `"crime"."incidents"`, Table("crime.incidents").Identifier().Sanitize())
}

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "crime.incidents", incidentCols, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"crime", "incidents"}, incidentCols).WillReturnResult(2)

	rows := [][]any{{"spd", "a1", 3, nil, nil}, {"spd", "a2", 1, nil, nil}}
	n, err := CopyFrom(context.Background(), mock, "crime.incidents", incidentCols, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"crime", "incidents"}, incidentCols).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "crime.incidents", incidentCols, [][]any{{"spd", "a1", 3, nil, nil}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO crime.incidents")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_Validation(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, Upsert{Table: "crime.incidents", Columns: incidentCols, ConflictKeys: []string{"source"}}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = BulkUpsert(context.TODO(), nil, Upsert{Table: "crime.incidents", ConflictKeys: []string{"source"}}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")

	_, err = BulkUpsert(context.TODO(), nil, Upsert{Table: "crime.incidents", Columns: incidentCols}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TEMP TABLE "_stage_crime_incidents" (LIKE "crime"."incidents" INCLUDING DEFAULTS) ON COMMIT DROP`)).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_crime_incidents"}, incidentCols).WillReturnResult(2)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "crime"."incidents"`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	u := Upsert{Table: "crime.incidents", Columns: incidentCols, ConflictKeys: []string{"source", "external_id"}}
	n, err := BulkUpsert(context.Background(), mock, u, [][]any{
		{"spd", "a1", 3, nil, nil},
		{"spd", "a2", 1, nil, nil},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_crime_incidents"}, incidentCols).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	u := Upsert{Table: "crime.incidents", Columns: incidentCols, ConflictKeys: []string{"source", "external_id"}}
	_, err = BulkUpsert(context.Background(), mock, u, [][]any{{"spd", "a1", 3, nil, nil}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY stage for crime.incidents")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_MergeSQL(t *testing.T) {
	u := Upsert{
		Table:        "crime.incidents",
		Columns:      []string{"source", "external_id", "severity"},
		ConflictKeys: []string{"source", "external_id"},
		Assignments:  map[string]string{"severity": `GREATEST("crime"."incidents"."severity", EXCLUDED."severity")`},
	}
	got := u.mergeSQL(pgx.Identifier{"_stage"})
	assert.Equal(t,
		`INSERT INTO "crime"."incidents" ("source", "external_id", "severity") SELECT "source", "external_id", "severity" FROM "_stage" ON CONFLICT ("source", "external_id") DO UPDATE SET "severity" = GREATEST("crime"."incidents"."severity", EXCLUDED."severity")`,
		got)

	keysOnly := Upsert{Table: "t", Columns: []string{"id"}, ConflictKeys: []string{"id"}}
	assert.Contains(t, keysOnly.mergeSQL(pgx.Identifier{"_stage"}), "ON CONFLICT (\"id\") DO NOTHING")
}
