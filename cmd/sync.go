package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/spear-sync/internal/auth"
	"github.com/sells-group/spear-sync/internal/export"
	"github.com/sells-group/spear-sync/internal/harvest"
	"github.com/sells-group/spear-sync/internal/model"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch applications submitted since a cutoff and store the new ones",
	Long: `Run one incremental sync against SPEAR.

By default only applications submitted in or after the month of yesterday's
date are considered. Use --since dd/mm/yyyy to pick another cutoff, or --all
to scan every application. With --dry-run nothing is written and the merged
records are printed as JSON.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts, err := parseSyncOpts(cmd, time.Now())
		if err != nil {
			return err
		}
		if opts.concurrency > 0 {
			cfg.Sync.Concurrency = opts.concurrency
		}
		if err := cfg.Validate("sync"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		tenants := make([]model.TenantID, len(cfg.Sync.Tenants))
		for i, id := range cfg.Sync.Tenants {
			tenants[i] = model.TenantID(id)
		}

		api := newSpearClient()
		orch := harvest.NewOrchestrator(auth.NewSession(api), api, st, harvest.Options{
			Concurrency:        cfg.Sync.Concurrency,
			ReauthBeforeEnrich: cfg.Sync.ReauthBeforeEnrich,
			DryRun:             opts.dryRun,
			Tenants:            tenants,
		})

		zap.L().Info("starting sync",
			zap.String("cutoff", describeCutoff(opts.cutoff)),
			zap.Int("concurrency", cfg.Sync.Concurrency),
		)

		res, err := orch.Run(ctx, harvest.RunOptions{Cutoff: opts.cutoff})
		if err != nil {
			return eris.Wrap(err, "sync")
		}

		if opts.dryRun {
			return export.Write(os.Stdout, export.FormatJSON, res.Records)
		}
		formatRunResult(os.Stdout, res)
		return nil
	},
}

func init() {
	syncCmd.Flags().String("since", "", "cutoff date dd/mm/yyyy (default: yesterday)")
	syncCmd.Flags().Bool("all", false, "scan every application regardless of submission date")
	syncCmd.Flags().Int("concurrency", 0, "tenants collected in parallel (default from config)")
	syncCmd.Flags().Bool("dry-run", false, "print merged records instead of saving them")
	rootCmd.AddCommand(syncCmd)
}

type syncOpts struct {
	cutoff      *model.Date
	concurrency int
	dryRun      bool
}

// parseSyncOpts extracts sync options from the cobra command flags.
func parseSyncOpts(cmd *cobra.Command, now time.Time) (syncOpts, error) {
	since, _ := cmd.Flags().GetString("since")
	all, _ := cmd.Flags().GetBool("all")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cutoff, err := parseCutoff(since, all, now)
	if err != nil {
		return syncOpts{}, err
	}
	if concurrency < 0 {
		return syncOpts{}, eris.New("sync: --concurrency must be >= 1")
	}
	return syncOpts{cutoff: cutoff, concurrency: concurrency, dryRun: dryRun}, nil
}

// parseCutoff resolves the cutoff flags. No flags means yesterday; --all means no cutoff.
func parseCutoff(since string, all bool, now time.Time) (*model.Date, error) {
	if all && since != "" {
		return nil, eris.New("sync: --since and --all are mutually exclusive")
	}
	if all {
		return nil, nil
	}
	if since == "" {
		d := model.DateOf(now).AddDays(-1)
		return &d, nil
	}
	d, err := model.ParseDate(since)
	if err != nil {
		return nil, eris.Wrap(err, "sync: --since")
	}
	return &d, nil
}

func describeCutoff(d *model.Date) string {
	if d == nil {
		return "none"
	}
	return d.String()
}

// formatRunResult writes a run summary to w.
func formatRunResult(out io.Writer, res *harvest.RunResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", res.RunID)
	_, _ = fmt.Fprintf(w, "Tenants:\t%d\n", res.Tenants)
	_, _ = fmt.Fprintf(w, "Candidates:\t%d\n", res.Candidates)
	_, _ = fmt.Fprintf(w, "New records:\t%d\n", len(res.Records))
	_, _ = fmt.Fprintf(w, "Saved:\t%d\n", res.Saved)
	if len(res.FailedTenants) > 0 {
		_, _ = fmt.Fprintf(w, "Failed tenants:\t%v\n", res.FailedTenants)
	}
	_ = w.Flush()
}
