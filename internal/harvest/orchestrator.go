package harvest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/spear-sync/internal/auth"
	"github.com/sells-group/spear-sync/internal/model"
	"github.com/sells-group/spear-sync/pkg/spear"
)

// saveTimeout bounds the final save, which runs even after ctx is done.
const saveTimeout = 2 * time.Minute

// Store is the persistence the orchestrator needs: the reference set, the
// record upsert and the run log.
type Store interface {
	LoadReferences(ctx context.Context) (map[string]struct{}, error)
	SaveRecords(ctx context.Context, records []model.Record) (int64, error)
	StartRun(ctx context.Context, cutoff *model.Date) (*model.SyncRun, error)
	CompleteRun(ctx context.Context, runID string, summary model.RunSummary) error
	FailRun(ctx context.Context, runID string, summary model.RunSummary, errMsg string) error
}

// TenantLister enumerates the tenants to scan.
type TenantLister interface {
	ListTenants(ctx context.Context) ([]model.TenantID, error)
}

// Options configures an Orchestrator.
type Options struct {
	// Concurrency is the number of tenants collected in parallel. Values
	// below 2 collect sequentially.
	Concurrency int
	// ReauthBeforeEnrich refreshes the token between collection and enrichment.
	ReauthBeforeEnrich bool
	// DryRun skips the run log and the final save.
	DryRun bool
	// Tenants restricts the scan to these ids when non-empty.
	Tenants []model.TenantID
	// Now overrides the clock used for date_scraped.
	Now func() time.Time
}

// RunOptions configures a single run.
type RunOptions struct {
	// Cutoff is the earliest submission date (month granularity). Nil scans everything.
	Cutoff *model.Date
}

// RunResult summarizes a run.
type RunResult struct {
	RunID         string
	Tenants       int
	Candidates    int
	Records       []model.Record
	Saved         int64
	FailedTenants []model.TenantID
}

func (r *RunResult) summary() model.RunSummary {
	return model.RunSummary{
		Tenants:       r.Tenants,
		Candidates:    r.Candidates,
		RecordsSaved:  r.Saved,
		FailedTenants: r.FailedTenants,
	}
}

// Orchestrator runs the sync pipeline: authenticate, enumerate tenants,
// collect candidates, merge and enrich, save.
type Orchestrator struct {
	session   *auth.Session
	api       spear.Client
	store     Store
	tenants   TenantLister
	collector *Collector
	describer Describer
	opts      Options
}

// NewOrchestrator wires the pipeline components around api and session.
func NewOrchestrator(session *auth.Session, api spear.Client, st Store, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		session:   session,
		api:       api,
		store:     st,
		tenants:   NewTenantDirectory(api, session, opts.Tenants),
		collector: NewCollector(NewPageFetcher(api, session)),
		describer: NewEnricher(api, session),
		opts:      opts,
	}
}

// Run executes one sync. Per-tenant collection failures are recorded in the
// result and do not fail the run; auth and directory failures do.
func (o *Orchestrator) Run(ctx context.Context, ro RunOptions) (*RunResult, error) {
	log := zap.L().With(zap.String("component", "harvest.orchestrator"))
	result := &RunResult{}

	if !o.opts.DryRun {
		run, err := o.store.StartRun(ctx, ro.Cutoff)
		if err != nil {
			return nil, eris.Wrap(err, "harvest: start run")
		}
		result.RunID = run.ID
		log = log.With(zap.String("run_id", run.ID))
	}

	cutoff := "none"
	if ro.Cutoff != nil {
		cutoff = ro.Cutoff.String()
	}
	log.Info("starting sync", zap.String("cutoff", cutoff), zap.Bool("dry_run", o.opts.DryRun))

	err := o.run(ctx, log, ro, result)
	if err != nil {
		log.Error("sync failed", zap.Error(err))
		o.finish(ctx, log, result, err)
		return result, err
	}

	o.finish(ctx, log, result, nil)
	log.Info("sync complete",
		zap.Int("tenants", result.Tenants),
		zap.Int("candidates", result.Candidates),
		zap.Int("records", len(result.Records)),
		zap.Int64("saved", result.Saved),
		zap.Int("failed_tenants", len(result.FailedTenants)),
	)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, log *zap.Logger, ro RunOptions, result *RunResult) error {
	if _, err := o.session.Refresh(ctx); err != nil {
		return err
	}

	tenants, err := o.tenants.ListTenants(ctx)
	if err != nil {
		return err
	}
	result.Tenants = len(tenants)

	candidates, failed, err := o.collect(ctx, tenants, ro.Cutoff)
	result.FailedTenants = failed
	if err != nil {
		return err
	}
	result.Candidates = len(candidates)

	persisted, err := o.store.LoadReferences(ctx)
	if err != nil {
		return eris.Wrap(err, "harvest: load existing references")
	}
	log.Info("loaded existing references", zap.Int("count", len(persisted)))

	if o.opts.ReauthBeforeEnrich {
		if _, err := o.session.Refresh(ctx); err != nil {
			return err
		}
	}

	merger := NewMerger(o.describer, persisted, o.api.InfoURL, o.opts.Now)
	records, mergeErr := merger.Merge(ctx, candidates)
	result.Records = records

	// Records built before a fatal enrichment error or an interrupt are
	// still valid.
	if len(records) > 0 && !o.opts.DryRun {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
		saved, err := o.store.SaveRecords(saveCtx, records)
		cancel()
		if err != nil {
			return eris.Wrap(err, "harvest: save records")
		}
		result.Saved = saved
	}
	return mergeErr
}

// collect scans every tenant and returns candidates in tenant order. Only
// fatal errors are returned; other tenant failures are listed in failed.
func (o *Orchestrator) collect(ctx context.Context, tenants []model.TenantID, cutoff *model.Date) ([]model.RawRow, []model.TenantID, error) {
	perTenant := make([][]model.RawRow, len(tenants))
	errs := make([]error, len(tenants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, o.opts.Concurrency))

	for i, tenant := range tenants {
		g.Go(func() error {
			rows, err := o.collector.Collect(gctx, tenant, cutoff)
			perTenant[i] = rows
			if err != nil {
				if IsFatal(err) {
					return err
				}
				errs[i] = err
			}
			zap.L().Info("gathered rows for tenant",
				zap.Int("tenant", int(tenant)),
				zap.Int("rows", len(rows)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "harvest: collect")
	}

	var candidates []model.RawRow
	var failed []model.TenantID
	for i, tenant := range tenants {
		candidates = append(candidates, perTenant[i]...)
		if errs[i] != nil {
			failed = append(failed, tenant)
		}
	}
	return candidates, failed, nil
}

// finish records the run outcome in the run log.
func (o *Orchestrator) finish(ctx context.Context, log *zap.Logger, result *RunResult, runErr error) {
	if o.opts.DryRun || result.RunID == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)

	var err error
	if runErr != nil {
		err = o.store.FailRun(ctx, result.RunID, result.summary(), runErr.Error())
	} else {
		err = o.store.CompleteRun(ctx, result.RunID, result.summary())
	}
	if err != nil {
		log.Error("failed to record run outcome", zap.Error(err))
	}
}
