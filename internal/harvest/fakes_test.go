package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sells-group/spear-sync/internal/model"
	"github.com/sells-group/spear-sync/pkg/spear"
)

// fakeAPI is an in-memory spear.Client. Each tenant's rows are served in
// PageSize slices; failOffset makes one page request for a tenant fail.
type fakeAPI struct {
	mu sync.Mutex

	tokenErr   error
	tokenCalls int

	sites    []spear.Site
	sitesErr error

	rows       map[model.TenantID][]spear.ResultRow
	failOffset map[model.TenantID]int
	searches   map[model.TenantID][]int

	detail       func(ref string) (*spear.ApplicationDetail, error)
	summary      func(id int64) (*spear.ApplicationSummary, error)
	detailCalls  map[string]int
	summaryCalls int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		rows:        make(map[model.TenantID][]spear.ResultRow),
		failOffset:  make(map[model.TenantID]int),
		searches:    make(map[model.TenantID][]int),
		detailCalls: make(map[string]int),
	}
}

func (f *fakeAPI) addTenant(id model.TenantID, rows []spear.ResultRow) {
	f.sites = append(f.sites, spear.Site{ID: int(id), Name: fmt.Sprintf("Council %d", id)})
	f.rows[id] = rows
}

func (f *fakeAPI) Token(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return fmt.Sprintf("tok-%d", f.tokenCalls), nil
}

func (f *fakeAPI) SearchSites(_ context.Context, _ string) ([]spear.Site, error) {
	if f.sitesErr != nil {
		return nil, f.sitesErr
	}
	return f.sites, nil
}

func (f *fakeAPI) SearchApplications(_ context.Context, _ string, siteID, startRow int) (*spear.SearchPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tenant := model.TenantID(siteID)
	f.searches[tenant] = append(f.searches[tenant], startRow)

	if off, ok := f.failOffset[tenant]; ok && off == startRow && startRow > 0 {
		return nil, errors.New("connection reset by peer")
	}

	rows := f.rows[tenant]
	page := &spear.SearchPage{NumFound: len(rows)}
	if startRow < len(rows) {
		end := min(startRow+PageSize, len(rows))
		page.ResultRows = rows[startRow:end]
	}
	return page, nil
}

// pageRequests returns the number of page requests for tenant, excluding the count.
func (f *fakeAPI) pageRequests(tenant model.TenantID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches[tenant]) - 1
}

func (f *fakeAPI) ApplicationDetail(_ context.Context, _ string, reference string) (*spear.ApplicationDetail, error) {
	f.mu.Lock()
	f.detailCalls[reference]++
	f.mu.Unlock()
	if f.detail != nil {
		return f.detail(reference)
	}
	return &spear.ApplicationDetail{ApplicationID: 1}, nil
}

func (f *fakeAPI) ApplicationSummary(_ context.Context, _ string, id int64) (*spear.ApplicationSummary, error) {
	f.mu.Lock()
	f.summaryCalls++
	f.mu.Unlock()
	if f.summary != nil {
		return f.summary(id)
	}
	return &spear.ApplicationSummary{IntendedUse: "Use and development of a dwelling"}, nil
}

func (f *fakeAPI) InfoURL(reference string) string {
	return "https://spear.test/applications/retrieve/" + reference + "?publicView=true"
}

func (f *fakeAPI) tokens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenCalls
}

func strPtr(s string) *string { return &s }

// makeRows returns n wire rows with references prefix0000..prefixN-1, all submitted on date.
func makeRows(prefix string, n int, date string) []spear.ResultRow {
	rows := make([]spear.ResultRow, n)
	for i := range rows {
		rows[i] = spear.ResultRow{
			SpearReference:         fmt.Sprintf("%s%04d", prefix, i),
			Property:               fmt.Sprintf("%d High St", i+1),
			SubmittedDate:          strPtr(date),
			ApplicationTypeDisplay: "Planning Permit",
		}
	}
	return rows
}

// memStore is an in-memory Store.
type memStore struct {
	mu       sync.Mutex
	records  map[string]model.Record
	runs     map[string]*model.SyncRun
	saveErr  error
	loadErr  error
	saveCall int
	saveCtx  error // ctx.Err() seen by the last SaveRecords
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]model.Record), runs: make(map[string]*model.SyncRun)}
}

func (s *memStore) LoadReferences(_ context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	refs := make(map[string]struct{}, len(s.records))
	for ref := range s.records {
		refs[ref] = struct{}{}
	}
	return refs, nil
}

func (s *memStore) SaveRecords(ctx context.Context, records []model.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCall++
	s.saveCtx = ctx.Err()
	if s.saveErr != nil {
		return 0, s.saveErr
	}
	for _, r := range records {
		s.records[r.CouncilReference] = r
	}
	return int64(len(records)), nil
}

func (s *memStore) StartRun(_ context.Context, cutoff *model.Date) (*model.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := &model.SyncRun{ID: uuid.NewString(), Status: model.RunStatusRunning}
	if cutoff != nil {
		run.Cutoff = cutoff.String()
	}
	s.runs[run.ID] = run
	return run, nil
}

func (s *memStore) CompleteRun(_ context.Context, runID string, summary model.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := s.runs[runID]
	run.Status = model.RunStatusComplete
	run.Tenants = summary.Tenants
	run.Candidates = summary.Candidates
	run.RecordsSaved = summary.RecordsSaved
	run.FailedTenants = summary.FailedTenants
	return nil
}

func (s *memStore) FailRun(_ context.Context, runID string, summary model.RunSummary, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := s.runs[runID]
	run.Status = model.RunStatusFailed
	run.RecordsSaved = summary.RecordsSaved
	run.Error = errMsg
	return nil
}

func (s *memStore) run(id string) model.SyncRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.runs[id]
}
