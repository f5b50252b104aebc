package harvest

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/spear-sync/internal/auth"
	"github.com/sells-group/spear-sync/internal/model"
	"github.com/sells-group/spear-sync/pkg/spear"
)

// PageSize is the number of rows SPEAR returns per search call.
const PageSize = 35

// PageFetcher retrieves search pages and row counts for one tenant.
type PageFetcher struct {
	api     spear.Client
	session *auth.Session
}

// NewPageFetcher creates a PageFetcher.
func NewPageFetcher(api spear.Client, session *auth.Session) *PageFetcher {
	return &PageFetcher{api: api, session: session}
}

// FetchCount returns the tenant's total row count as reported by the search.
func (p *PageFetcher) FetchCount(ctx context.Context, tenant model.TenantID) (int, error) {
	page, err := p.search(ctx, tenant, 0)
	if err != nil {
		return 0, &FetchError{Tenant: tenant, Offset: countOffset, Err: err}
	}
	return page.NumFound, nil
}

// FetchPage returns the valid rows of the page starting at offset.
func (p *PageFetcher) FetchPage(ctx context.Context, tenant model.TenantID, offset int) ([]model.RawRow, error) {
	page, err := p.search(ctx, tenant, offset)
	if err != nil {
		return nil, &FetchError{Tenant: tenant, Offset: offset, Err: err}
	}
	return toRawRows(tenant, page.ResultRows), nil
}

func (p *PageFetcher) search(ctx context.Context, tenant model.TenantID, offset int) (*spear.SearchPage, error) {
	tok, err := p.session.Token(ctx)
	if err != nil {
		return nil, err
	}
	return p.api.SearchApplications(ctx, tok, int(tenant), offset)
}

// toRawRows validates wire rows. Rows without a reference or with an
// unparseable submission date are dropped.
func toRawRows(tenant model.TenantID, rows []spear.ResultRow) []model.RawRow {
	out := make([]model.RawRow, 0, len(rows))
	for _, r := range rows {
		if r.SpearReference == "" {
			zap.L().Warn("dropping row without reference",
				zap.Int("tenant", int(tenant)),
				zap.String("address", r.Property),
			)
			continue
		}

		row := model.RawRow{
			Reference:       r.SpearReference,
			Address:         r.Property,
			ApplicationType: r.ApplicationTypeDisplay,
		}
		if r.SubmittedDate != nil && *r.SubmittedDate != "" {
			d, err := model.ParseDate(*r.SubmittedDate)
			if err != nil {
				zap.L().Warn("dropping row with malformed submission date",
					zap.Int("tenant", int(tenant)),
					zap.String("reference", r.SpearReference),
					zap.Error(err),
				)
				continue
			}
			row.Submitted = &d
		}
		out = append(out, row)
	}
	return out
}
