package harvest

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/spear-sync/internal/model"
	"github.com/sells-group/spear-sync/internal/resilience"
)

// PageSource provides counted, offset-addressed pages of a tenant's rows.
type PageSource interface {
	FetchCount(ctx context.Context, tenant model.TenantID) (int, error)
	FetchPage(ctx context.Context, tenant model.TenantID, offset int) ([]model.RawRow, error)
}

// Collector drives pagination for one tenant at a time.
type Collector struct {
	pages PageSource
}

// NewCollector creates a Collector over pages.
func NewCollector(pages PageSource) *Collector {
	return &Collector{pages: pages}
}

// PageCount returns how many pages are requested for total rows. It asks for
// one page more than the count strictly needs to absorb off-by-one totals.
func PageCount(total int) int {
	return total/PageSize + 1
}

// Collect returns the tenant's rows that pass cutoff, without duplicates, in
// discovery order. When a page fails, the rows gathered from earlier pages are
// returned together with the error.
func (c *Collector) Collect(ctx context.Context, tenant model.TenantID, cutoff *model.Date) ([]model.RawRow, error) {
	log := zap.L().With(
		zap.String("component", "harvest.collector"),
		zap.Int("tenant", int(tenant)),
	)

	total, err := c.pages.FetchCount(ctx, tenant)
	if err != nil {
		log.Error("row count failed", zap.Bool("transient", resilience.IsTransient(err)), zap.Error(err))
		return nil, err
	}
	pageCount := PageCount(total)
	log.Info("found rows", zap.Int("rows", total), zap.Int("pages", pageCount))

	seen := make(map[string]struct{}, total)
	var candidates []model.RawRow
	var skippedDup, skippedCutoff int

	for page := range pageCount {
		offset := page * PageSize
		rows, err := c.pages.FetchPage(ctx, tenant, offset)
		if err != nil {
			log.Error("page fetch failed, keeping partial results",
				zap.Int("offset", offset),
				zap.Int("kept", len(candidates)),
				zap.Bool("transient", resilience.IsTransient(err)),
				zap.Error(err),
			)
			return candidates, err
		}

		for _, row := range rows {
			if _, dup := seen[row.Reference]; dup {
				skippedDup++
				continue
			}
			if !model.PassesCutoff(row.Submitted, cutoff) {
				skippedCutoff++
				continue
			}
			seen[row.Reference] = struct{}{}
			candidates = append(candidates, row)
		}
	}

	log.Info("gathered rows",
		zap.Int("candidates", len(candidates)),
		zap.Int("duplicates", skippedDup),
		zap.Int("before_cutoff", skippedCutoff),
	)
	return candidates, nil
}
