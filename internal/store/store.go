package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/spear-sync/internal/model"
)

// ErrRunNotFound is returned when a run id is not in the run log.
var ErrRunNotFound = eris.New("store: run not found")

// RecordFilter specifies criteria for listing records.
type RecordFilter struct {
	// Since keeps records scraped on or after this day.
	Since  *time.Time `json:"since,omitempty"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
}

// RunFilter specifies criteria for listing sync runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for synced applications and the
// sync run log.
type Store interface {
	// Records
	LoadReferences(ctx context.Context) (map[string]struct{}, error)
	SaveRecords(ctx context.Context, records []model.Record) (int64, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error)

	// Run log
	StartRun(ctx context.Context, cutoff *model.Date) (*model.SyncRun, error)
	CompleteRun(ctx context.Context, runID string, summary model.RunSummary) error
	FailRun(ctx context.Context, runID string, summary model.RunSummary, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.SyncRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.SyncRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

func newRun(id string, cutoff *model.Date, now time.Time) *model.SyncRun {
	run := &model.SyncRun{
		ID:        id,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}
	if cutoff != nil {
		run.Cutoff = cutoff.String()
	}
	return run
}
