package harvest

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/spear-sync/internal/auth"
	"github.com/sells-group/spear-sync/internal/model"
	"github.com/sells-group/spear-sync/pkg/spear"
)

// TenantDirectory discovers the responsible authorities to scan.
type TenantDirectory struct {
	api     spear.Client
	session *auth.Session
	allow   map[model.TenantID]struct{}
}

// NewTenantDirectory creates a TenantDirectory. A non-empty allow list
// restricts the result to those ids.
func NewTenantDirectory(api spear.Client, session *auth.Session, allow []model.TenantID) *TenantDirectory {
	d := &TenantDirectory{api: api, session: session}
	if len(allow) > 0 {
		d.allow = make(map[model.TenantID]struct{}, len(allow))
		for _, id := range allow {
			d.allow[id] = struct{}{}
		}
	}
	return d
}

// ListTenants returns tenant ids in directory order.
func (d *TenantDirectory) ListTenants(ctx context.Context) ([]model.TenantID, error) {
	tok, err := d.session.Token(ctx)
	if err != nil {
		return nil, err
	}

	sites, err := d.api.SearchSites(ctx, tok)
	if err != nil {
		return nil, &DirectoryError{Err: err}
	}

	ids := make([]model.TenantID, 0, len(sites))
	for _, site := range sites {
		id := model.TenantID(site.ID)
		if d.allow != nil {
			if _, ok := d.allow[id]; !ok {
				continue
			}
		}
		ids = append(ids, id)
	}

	zap.L().Info("found council datasets",
		zap.Int("sites", len(sites)),
		zap.Int("tenants", len(ids)),
	)
	return ids, nil
}
