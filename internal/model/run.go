package model

import "time"

// RunStatus represents the current state of a sync run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// SyncRun is one entry in the sync run log.
type SyncRun struct {
	ID            string     `json:"id"`
	Status        RunStatus  `json:"status"`
	Cutoff        string     `json:"cutoff,omitempty"` // ISO date, empty for a full scan
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Tenants       int        `json:"tenants"`
	Candidates    int        `json:"candidates"`
	RecordsSaved  int64      `json:"records_saved"`
	FailedTenants []TenantID `json:"failed_tenants,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// RunSummary holds the counts recorded when a run completes.
type RunSummary struct {
	Tenants       int        `json:"tenants"`
	Candidates    int        `json:"candidates"`
	RecordsSaved  int64      `json:"records_saved"`
	FailedTenants []TenantID `json:"failed_tenants,omitempty"`
}
