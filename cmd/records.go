package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/spear-sync/internal/export"
	"github.com/sells-group/spear-sync/internal/model"
	"github.com/sells-group/spear-sync/internal/store"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Work with stored planning applications",
}

var recordsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored records as CSV, XLSX or JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		formatStr, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")
		sinceStr, _ := cmd.Flags().GetString("since")
		limit, _ := cmd.Flags().GetInt("limit")

		format, err := export.ParseFormat(formatStr)
		if err != nil {
			return err
		}
		filter, err := recordFilter(sinceStr, limit, 0)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.ListRecords(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "records export")
		}

		out := os.Stdout
		if outPath != "" && outPath != "-" {
			f, err := os.Create(outPath)
			if err != nil {
				return eris.Wrapf(err, "records export: create %s", outPath)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		if err := export.Write(out, format, records); err != nil {
			return err
		}
		zap.L().Info("records exported",
			zap.String("format", string(format)),
			zap.String("out", outPath),
			zap.Int("records", len(records)),
		)
		return nil
	},
}

func init() {
	recordsExportCmd.Flags().String("format", "csv", "output format: csv, xlsx, json")
	recordsExportCmd.Flags().String("out", "-", "output file (- for stdout)")
	recordsExportCmd.Flags().String("since", "", "only records scraped on or after YYYY-MM-DD")
	recordsExportCmd.Flags().Int("limit", 10000, "max number of records")

	recordsCmd.AddCommand(recordsExportCmd)
	rootCmd.AddCommand(recordsCmd)
}

// recordFilter builds a store filter from an optional ISO since date.
func recordFilter(since string, limit, offset int) (store.RecordFilter, error) {
	filter := store.RecordFilter{Limit: limit, Offset: offset}
	if since == "" {
		return filter, nil
	}
	d, err := model.ParseISODate(since)
	if err != nil {
		return store.RecordFilter{}, eris.Wrapf(err, "invalid since date %q (want YYYY-MM-DD)", since)
	}
	t := d.Time()
	filter.Since = &t
	return filter, nil
}
