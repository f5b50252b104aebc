package harvest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/spear-sync/internal/model"
)

// Describer resolves the free-text description of an application.
type Describer interface {
	Describe(ctx context.Context, reference string) (string, error)
}

// ReferenceSet is a set of council references.
type ReferenceSet map[string]struct{}

// Has reports whether ref is in the set.
func (s ReferenceSet) Has(ref string) bool {
	_, ok := s[ref]
	return ok
}

// Merger turns candidate rows into records that are not yet persisted.
type Merger struct {
	describer Describer
	persisted ReferenceSet
	infoURL   func(reference string) string
	now       func() time.Time
}

// NewMerger creates a Merger. persisted is only read.
func NewMerger(describer Describer, persisted ReferenceSet, infoURL func(string) string, now func() time.Time) *Merger {
	if now == nil {
		now = time.Now
	}
	return &Merger{
		describer: describer,
		persisted: persisted,
		infoURL:   infoURL,
		now:       now,
	}
}

// Merge builds a record for every candidate whose reference is neither
// persisted nor already emitted by this call, in candidate order. Candidates
// that are skipped are never enriched. A fatal error or a done ctx stops the
// merge and is returned with the records built so far.
func (m *Merger) Merge(ctx context.Context, candidates []model.RawRow) ([]model.Record, error) {
	log := zap.L().With(zap.String("component", "harvest.merger"))

	scraped := model.DateOf(m.now()).String()
	emitted := make(map[string]struct{}, len(candidates))
	records := make([]model.Record, 0, len(candidates))
	var existing, fallbacks int

	for _, row := range candidates {
		if err := ctx.Err(); err != nil {
			log.Warn("merge interrupted", zap.Int("records", len(records)), zap.Error(err))
			return records, eris.Wrap(err, "harvest: merge")
		}
		if m.persisted.Has(row.Reference) {
			existing++
			continue
		}
		if _, dup := emitted[row.Reference]; dup {
			continue
		}

		rec, fellBack, err := m.build(ctx, row, scraped)
		if err != nil {
			return records, err
		}
		if fellBack {
			fallbacks++
		}
		emitted[row.Reference] = struct{}{}
		records = append(records, rec)
	}

	log.Info("merge complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("already_persisted", existing),
		zap.Int("records", len(records)),
		zap.Int("fallback_descriptions", fallbacks),
	)
	return records, nil
}

// build returns the record for row and whether its description fell back to
// the application type.
func (m *Merger) build(ctx context.Context, row model.RawRow, scraped string) (model.Record, bool, error) {
	rec := model.Record{
		CouncilReference: row.Reference,
		Address:          model.CleanText(row.Address),
		InfoURL:          m.infoURL(row.Reference),
		DateScraped:      scraped,
	}
	if row.Submitted != nil {
		rec.DateReceived = row.Submitted.String()
	}

	desc, err := m.describer.Describe(ctx, row.Reference)
	if err != nil {
		if IsFatal(err) {
			return model.Record{}, false, err
		}
		if ctx.Err() != nil {
			return model.Record{}, false, eris.Wrap(ctx.Err(), "harvest: merge")
		}
		zap.L().Warn("description lookup failed, using application type",
			zap.String("reference", row.Reference),
			zap.Error(err),
		)
	}

	rec.Description = model.CleanText(desc)
	if rec.Description != "" {
		return rec, false, nil
	}
	rec.Description = model.CleanText(row.ApplicationType)
	return rec, true, nil
}
