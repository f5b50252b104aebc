package spear

// Site is one responsible authority returned by the site search.
type Site struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SearchPage is one page of public application search results.
type SearchPage struct {
	ResultRows []ResultRow `json:"resultRows"`
	NumFound   int         `json:"numFound"`
}

// ResultRow is one application row of a search page.
type ResultRow struct {
	SpearReference         string  `json:"spearReference"`
	Property               string  `json:"property"`
	SubmittedDate          *string `json:"submittedDate"`
	ApplicationTypeDisplay string  `json:"applicationTypeDisplay"`
}

// ApplicationDetail is the subset of the application detail payload used for lookups.
type ApplicationDetail struct {
	ApplicationID int64 `json:"applicationId"`
}

// ApplicationSummary is the subset of the application summary payload used for descriptions.
type ApplicationSummary struct {
	IntendedUse string `json:"intendedUse"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type envelope[T any] struct {
	Data *T `json:"data"`
}

type siteSearchRequest struct {
	Data siteSearchFilter `json:"data"`
}

type siteSearchFilter struct {
	SearchType        string  `json:"searchType"`
	SearchTypeFilter  string  `json:"searchTypeFilter"`
	SearchText        *string `json:"searchText"`
	ShowInactiveSites bool    `json:"showInactiveSites"`
}

type publicSearchRequest struct {
	Data publicSearchData `json:"data"`
}

type publicSearchData struct {
	ApplicationListSearchRequest applicationListSearchRequest `json:"applicationListSearchRequest"`
	Tab                          string                       `json:"tab"`
	FilterString                 string                       `json:"filterString"`
	CompletedFilterString        string                       `json:"completedFilterString"`
	ResponsibleAuthoritySiteID   int                          `json:"responsibleAuthoritySiteId"`
}

type applicationListSearchRequest struct {
	SearchFilters                   []searchFilter `json:"searchFilters"`
	SearchText                      *string        `json:"searchText"`
	MyApplications                  bool           `json:"myApplications"`
	WatchedApplications             bool           `json:"watchedApplications"`
	SearchInitiatedByUserClickEvent bool           `json:"searchInitiatedByUserClickEvent"`
	SortField                       string         `json:"sortField"`
	SortDirection                   string         `json:"sortDirection"`
	StartRow                        int            `json:"startRow"`
}

type searchFilter struct {
	ID       string   `json:"id"`
	Selected []string `json:"selected"`
}

func newPublicSearch(siteID, startRow int) publicSearchRequest {
	return publicSearchRequest{Data: publicSearchData{
		ApplicationListSearchRequest: applicationListSearchRequest{
			SearchFilters: []searchFilter{{ID: "completed", Selected: []string{"ALL"}}},
			SortField:     "SPEAR_REF",
			SortDirection: "desc",
			StartRow:      startRow,
		},
		Tab:                        "ALL",
		CompletedFilterString:      "ALL",
		ResponsibleAuthoritySiteID: siteID,
	}}
}
