package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/spear-sync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS data (
	council_reference TEXT PRIMARY KEY,
	address           TEXT NOT NULL,
	info_url          TEXT NOT NULL,
	date_scraped      TEXT NOT NULL,
	date_received     TEXT,
	description       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id             TEXT PRIMARY KEY,
	status         TEXT NOT NULL DEFAULT 'running',
	cutoff         TEXT,
	started_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at   DATETIME,
	tenants        INTEGER NOT NULL DEFAULT 0,
	candidates     INTEGER NOT NULL DEFAULT 0,
	records_saved  INTEGER NOT NULL DEFAULT 0,
	failed_tenants TEXT,
	error          TEXT
);

CREATE INDEX IF NOT EXISTS idx_data_date_scraped ON data(date_scraped);
CREATE INDEX IF NOT EXISTS idx_sync_runs_status ON sync_runs(status);
CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LoadReferences(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT council_reference FROM data`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load references")
	}
	defer rows.Close()

	refs := make(map[string]struct{})
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan reference")
		}
		refs[ref] = struct{}{}
	}
	return refs, eris.Wrap(rows.Err(), "sqlite: load references iterate")
}

const sqliteUpsertRecord = `
INSERT INTO data (council_reference, address, info_url, date_scraped, date_received, description)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (council_reference) DO UPDATE SET
	address = excluded.address,
	info_url = excluded.info_url,
	date_scraped = excluded.date_scraped,
	date_received = excluded.date_received,
	description = excluded.description`

func (s *SQLiteStore) SaveRecords(ctx context.Context, records []model.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: save records: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertRecord)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: save records: prepare")
	}
	defer stmt.Close()

	var saved int64
	for _, r := range records {
		res, err := stmt.ExecContext(ctx,
			r.CouncilReference, r.Address, r.InfoURL, r.DateScraped, nullString(r.DateReceived), r.Description,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert record %s", r.CouncilReference)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		saved += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: save records: commit")
	}
	return saved, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error) {
	query := `SELECT council_reference, address, info_url, date_scraped, date_received, description FROM data WHERE 1=1`
	var args []any

	if filter.Since != nil {
		query += ` AND date_scraped >= ?`
		args = append(args, filter.Since.Format(time.DateOnly))
	}
	query += ` ORDER BY date_scraped DESC, council_reference LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		var r model.Record
		var received sql.NullString
		if err := rows.Scan(&r.CouncilReference, &r.Address, &r.InfoURL, &r.DateScraped, &received, &r.Description); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		r.DateReceived = received.String
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) StartRun(ctx context.Context, cutoff *model.Date) (*model.SyncRun, error) {
	run := newRun(uuid.New().String(), cutoff, time.Now().UTC())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, status, cutoff, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, string(run.Status), nullString(run.Cutoff), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary model.RunSummary) error {
	return s.finishRun(ctx, runID, model.RunStatusComplete, summary, "")
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, summary model.RunSummary, errMsg string) error {
	return s.finishRun(ctx, runID, model.RunStatusFailed, summary, errMsg)
}

func (s *SQLiteStore) finishRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary, errMsg string) error {
	failed, err := marshalTenants(summary.FailedTenants)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal failed tenants")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_runs SET status = ?, completed_at = ?, tenants = ?, candidates = ?,
		 records_saved = ?, failed_tenants = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), summary.Tenants, summary.Candidates,
		summary.RecordsSaved, failed, nullString(errMsg), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

const sqliteRunColumns = `id, status, cutoff, started_at, completed_at, tenants, candidates, records_saved, failed_tenants, error`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.SyncRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRunColumns+` FROM sync_runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.SyncRun, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM sync_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.SyncRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrRunNotFound, "run %s", runID)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func marshalTenants(ids []model.TenantID) (sql.NullString, error) {
	if len(ids) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.SyncRun, error) {
	var r model.SyncRun
	var cutoff, failed, errMsg sql.NullString
	var completed sql.NullTime

	err := row.Scan(&r.ID, &r.Status, &cutoff, &r.StartedAt, &completed,
		&r.Tenants, &r.Candidates, &r.RecordsSaved, &failed, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Cutoff = cutoff.String
	r.Error = errMsg.String
	if completed.Valid {
		t := completed.Time
		r.CompletedAt = &t
	}
	if failed.Valid {
		if err := json.Unmarshal([]byte(failed.String), &r.FailedTenants); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal failed tenants")
		}
	}
	return &r, nil
}
