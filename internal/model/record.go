package model

// TenantID identifies one responsible authority (council) in SPEAR.
type TenantID int

// RawRow is one application row from a public search page.
type RawRow struct {
	Reference       string
	Address         string
	Submitted       *Date // nil when the row carries no submission date
	ApplicationType string
}

// Record is a normalized planning application ready for storage.
type Record struct {
	CouncilReference string `json:"council_reference"`
	Address          string `json:"address"`
	InfoURL          string `json:"info_url"`
	DateScraped      string `json:"date_scraped"`
	DateReceived     string `json:"date_received,omitempty"`
	Description      string `json:"description"`
}
