package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Table names a possibly schema-qualified table, e.g. "crime.incidents".
type Table string

// Identifier splits the name into a pgx identifier.
func (t Table) Identifier() pgx.Identifier {
	return pgx.Identifier(strings.SplitN(string(t), ".", 2))
}

// CopyFrom bulk-inserts rows using the COPY protocol.
func CopyFrom(ctx context.Context, pool Pool, table Table, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, table.Identifier(), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return n, nil
}

// Upsert describes an idempotent bulk write.
type Upsert struct {
	Table        Table
	Columns      []string
	ConflictKeys []string
	// Assignments overrides the SET list for a column, keyed by column. By
	// default a column is set to EXCLUDED.<column>.
	Assignments map[string]string
}

// BulkUpsert copies rows into a transaction-scoped temp table and merges them
// into the target with INSERT ... ON CONFLICT DO UPDATE. Rows whose conflict
// keys already exist are updated in place.
func BulkUpsert(ctx context.Context, pool Pool, u Upsert, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(u.Columns) == 0 {
		return 0, eris.New("db: upsert: no columns specified")
	}
	if len(u.ConflictKeys) == 0 {
		return 0, eris.New("db: upsert: no conflict keys specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	temp := pgx.Identifier{"_stage_" + strings.ReplaceAll(string(u.Table), ".", "_")}

	createSQL := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		temp.Sanitize(), u.Table.Identifier().Sanitize())
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: stage table for %s", u.Table)
	}

	if _, err := tx.CopyFrom(ctx, temp, u.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY stage for %s", u.Table)
	}

	tag, err := tx.Exec(ctx, u.mergeSQL(temp))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", u.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

func (u Upsert) mergeSQL(stage pgx.Identifier) string {
	conflict := make(map[string]bool, len(u.ConflictKeys))
	for _, k := range u.ConflictKeys {
		conflict[k] = true
	}

	var sets []string
	for _, col := range u.Columns {
		if conflict[col] {
			continue
		}
		ident := pgx.Identifier{col}.Sanitize()
		expr := "EXCLUDED." + ident
		if a, ok := u.Assignments[col]; ok {
			expr = a
		}
		sets = append(sets, ident+" = "+expr)
	}

	cols := quoteAll(u.Columns)
	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		u.Table.Identifier().Sanitize(), cols, cols, stage.Sanitize(), quoteAll(u.ConflictKeys), action)
}

func quoteAll(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
