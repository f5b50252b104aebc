package harvest

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/spear-sync/internal/auth"
	"github.com/sells-group/spear-sync/internal/resilience"
	"github.com/sells-group/spear-sync/pkg/spear"
)

// Enricher looks up application descriptions through the detail and summary
// endpoints.
type Enricher struct {
	api     spear.Client
	session *auth.Session
}

// NewEnricher creates an Enricher.
func NewEnricher(api spear.Client, session *auth.Session) *Enricher {
	return &Enricher{api: api, session: session}
}

// Describe returns the intended-use text for reference, or "" when SPEAR has
// no summary for it. A failed lookup forces one token refresh and is retried
// once. If that also fails an *EnrichmentError is returned; a failed refresh
// returns the *auth.Error.
func (e *Enricher) Describe(ctx context.Context, reference string) (string, error) {
	cfg := resilience.OnceImmediately()
	cfg.ShouldRetry = func(err error) bool { return !IsAuthError(err) }
	cfg.OnRetry = resilience.RetryLogger("harvest.enricher", "describe", zap.String("reference", reference))
	cfg.BeforeRetry = func(ctx context.Context, _ int, _ error) error {
		_, err := e.session.Refresh(ctx)
		return err
	}

	desc, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (string, error) {
		return e.lookup(ctx, reference)
	})
	if err != nil {
		if IsAuthError(err) {
			return "", err
		}
		return "", &EnrichmentError{Reference: reference, Err: err}
	}
	return desc, nil
}

func (e *Enricher) lookup(ctx context.Context, reference string) (string, error) {
	tok, err := e.session.Token(ctx)
	if err != nil {
		return "", err
	}

	detail, err := e.api.ApplicationDetail(ctx, tok, reference)
	if err != nil {
		return "", err
	}

	summary, err := e.api.ApplicationSummary(ctx, tok, detail.ApplicationID)
	if errors.Is(err, spear.ErrNoData) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return summary.IntendedUse, nil
}
