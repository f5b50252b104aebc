package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// UpsertConfig defines the parameters for a bulk upsert operation.
type UpsertConfig struct {
	Table        string   // target table, optionally schema-qualified
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint

	// UpdateCols are overwritten on conflict. Nil means every non-key column;
	// an empty non-nil slice turns the merge into ON CONFLICT DO NOTHING.
	UpdateCols []string

	// SkipUnchanged leaves conflicting rows alone when no update column
	// differs, so the returned count only covers new or changed rows.
	SkipUnchanged bool
}

func (c UpsertConfig) validate() error {
	if len(c.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(c.ConflictKeys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	return nil
}

func (c UpsertConfig) updateCols() []string {
	if c.UpdateCols != nil {
		return c.UpdateCols
	}
	keys := make(map[string]bool, len(c.ConflictKeys))
	for _, k := range c.ConflictKeys {
		keys[k] = true
	}
	cols := make([]string, 0, len(c.Columns))
	for _, col := range c.Columns {
		if !keys[col] {
			cols = append(cols, col)
		}
	}
	return cols
}

// BulkUpsert stages rows in a temp table shaped like cfg.Table and merges
// them into it in one transaction. Rows repeating a conflict key within the
// batch collapse to one. It returns the number of rows written.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	temp := stagingTable(cfg.Table)
	if _, err := tx.Exec(ctx, createStagingSQL(cfg.Table, temp)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create temp table for %s", cfg.Table)
	}

	if _, err := CopyFrom(ctx, tx, temp, cfg.Columns, rows); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: stage rows for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, mergeSQL(cfg, temp))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: INSERT ON CONFLICT for %s", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}

	zap.L().Debug("bulk upsert",
		zap.String("table", cfg.Table),
		zap.Int("staged", len(rows)),
		zap.Int64("written", tag.RowsAffected()),
	)
	return tag.RowsAffected(), nil
}

func stagingTable(table string) string {
	return "_tmp_upsert_" + strings.ReplaceAll(table, ".", "_")
}

func createStagingSQL(table, temp string) string {
	return fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{temp}.Sanitize(),
		sanitizeTable(table),
	)
}

// mergeSQL builds the INSERT ... SELECT DISTINCT ON ... ON CONFLICT statement
// moving staged rows from temp into cfg.Table.
func mergeSQL(cfg UpsertConfig, temp string) string {
	cols := quoteAndJoin(cfg.Columns)
	keys := quoteAndJoin(cfg.ConflictKeys)

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s AS t (%s) SELECT DISTINCT ON (%s) %s FROM %s ORDER BY %s ON CONFLICT (%s) ",
		sanitizeTable(cfg.Table), cols, keys, cols, pgx.Identifier{temp}.Sanitize(), keys, keys)

	update := cfg.updateCols()
	if len(update) == 0 {
		b.WriteString("DO NOTHING")
		return b.String()
	}

	set := make([]string, len(update))
	current := make([]string, len(update))
	excluded := make([]string, len(update))
	for i, col := range update {
		q := pgx.Identifier{col}.Sanitize()
		set[i] = fmt.Sprintf("%s = EXCLUDED.%s", q, q)
		current[i] = "t." + q
		excluded[i] = "EXCLUDED." + q
	}
	b.WriteString("DO UPDATE SET ")
	b.WriteString(strings.Join(set, ", "))

	if cfg.SkipUnchanged {
		fmt.Fprintf(&b, " WHERE (%s) IS DISTINCT FROM (%s)",
			strings.Join(current, ", "), strings.Join(excluded, ", "))
	}
	return b.String()
}

func sanitizeTable(table string) string {
	return identifier(table).Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
