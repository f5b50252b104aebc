package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/spear-sync/internal/db"
	"github.com/sells-group/spear-sync/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// recordColumns is the column order used for COPY and upsert.
var recordColumns = []string{"council_reference", "address", "info_url", "date_scraped", "date_received", "description"}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS data (
	council_reference TEXT PRIMARY KEY,
	address           TEXT NOT NULL,
	info_url          TEXT NOT NULL,
	date_scraped      DATE NOT NULL,
	date_received     DATE,
	description       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status         TEXT NOT NULL DEFAULT 'running',
	cutoff         DATE,
	started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at   TIMESTAMPTZ,
	tenants        INTEGER NOT NULL DEFAULT 0,
	candidates     INTEGER NOT NULL DEFAULT 0,
	records_saved  BIGINT NOT NULL DEFAULT 0,
	failed_tenants JSONB,
	error          TEXT
);

CREATE INDEX IF NOT EXISTS idx_data_date_scraped ON data(date_scraped);
CREATE INDEX IF NOT EXISTS idx_sync_runs_status ON sync_runs(status);
CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) LoadReferences(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT council_reference FROM data`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load references")
	}
	defer rows.Close()

	refs := make(map[string]struct{})
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, eris.Wrap(err, "postgres: scan reference")
		}
		refs[ref] = struct{}{}
	}
	return refs, eris.Wrap(rows.Err(), "postgres: load references iterate")
}

func (s *PostgresStore) SaveRecords(ctx context.Context, records []model.Record) (int64, error) {
	rows := make([][]any, len(records))
	for i, r := range records {
		scraped, err := time.Parse(time.DateOnly, r.DateScraped)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: record %s: date_scraped", r.CouncilReference)
		}
		var received *time.Time
		if r.DateReceived != "" {
			t, err := time.Parse(time.DateOnly, r.DateReceived)
			if err != nil {
				return 0, eris.Wrapf(err, "postgres: record %s: date_received", r.CouncilReference)
			}
			received = &t
		}
		rows[i] = []any{r.CouncilReference, r.Address, r.InfoURL, scraped, received, r.Description}
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:         "data",
		Columns:       recordColumns,
		ConflictKeys:  []string{"council_reference"},
		SkipUnchanged: true,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save records")
	}
	return n, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error) {
	query := `SELECT council_reference, address, info_url, date_scraped, date_received, description FROM data WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Since != nil {
		query += fmt.Sprintf(` AND date_scraped >= $%d`, argIdx)
		args = append(args, filter.Since.Format(time.DateOnly))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY date_scraped DESC, council_reference LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		var r model.Record
		var scraped time.Time
		var received *time.Time
		if err := rows.Scan(&r.CouncilReference, &r.Address, &r.InfoURL, &scraped, &received, &r.Description); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		r.DateScraped = scraped.Format(time.DateOnly)
		if received != nil {
			r.DateReceived = received.Format(time.DateOnly)
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) StartRun(ctx context.Context, cutoff *model.Date) (*model.SyncRun, error) {
	run := newRun(uuid.New().String(), cutoff, time.Now().UTC())

	var cutoffArg *time.Time
	if cutoff != nil {
		t := cutoff.Time()
		cutoffArg = &t
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_runs (id, status, cutoff, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, string(run.Status), cutoffArg, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary model.RunSummary) error {
	return s.finishRun(ctx, runID, model.RunStatusComplete, summary, nil)
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, summary model.RunSummary, errMsg string) error {
	return s.finishRun(ctx, runID, model.RunStatusFailed, summary, &errMsg)
}

func (s *PostgresStore) finishRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary, errMsg *string) error {
	var failed []byte
	if len(summary.FailedTenants) > 0 {
		var err error
		if failed, err = json.Marshal(summary.FailedTenants); err != nil {
			return eris.Wrap(err, "postgres: marshal failed tenants")
		}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_runs SET status = $1, completed_at = $2, tenants = $3, candidates = $4,
		 records_saved = $5, failed_tenants = $6, error = $7 WHERE id = $8`,
		string(status), time.Now().UTC(), summary.Tenants, summary.Candidates,
		summary.RecordsSaved, failed, errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotFound, "run %s", runID)
	}
	return nil
}

const postgresRunColumns = `id, status, cutoff, started_at, completed_at, tenants, candidates, records_saved, failed_tenants, error`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.SyncRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresRunColumns+` FROM sync_runs WHERE id = $1`,
		runID,
	)
	r, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.SyncRun, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM sync_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.SyncRun
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPostgresRun(row pgx.Row) (*model.SyncRun, error) {
	var r model.SyncRun
	var status string
	var cutoff *time.Time
	var failed []byte
	var errMsg *string

	err := row.Scan(&r.ID, &status, &cutoff, &r.StartedAt, &r.CompletedAt,
		&r.Tenants, &r.Candidates, &r.RecordsSaved, &failed, &errMsg)
	if err != nil {
		return nil, err
	}

	r.Status = model.RunStatus(status)
	if cutoff != nil {
		r.Cutoff = cutoff.Format(time.DateOnly)
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	if len(failed) > 0 {
		if err := json.Unmarshal(failed, &r.FailedTenants); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal failed tenants")
		}
	}
	return &r, nil
}
