package domain

import "time"

// JobState is the run state of a sync job.
type JobState string

const (
	JobStateIdle    JobState = "idle"
	JobStateRunning JobState = "running"
	JobStateSuccess JobState = "success"
	JobStateError   JobState = "error"
)

// SyncResult summarizes one sync run of a single source.
type SyncResult struct {
	Source     string   `json:"source"`
	Success    bool     `json:"success"`
	Skipped    bool     `json:"skipped"` // source was locked; run never started
	Synced     int      `json:"synced"`
	DurationMs int64    `json:"duration_ms"`
	Errors     []string `json:"errors,omitempty"`
}

// UpsertStats reports the outcome of one batch upsert.
type UpsertStats struct {
	Attempted int
	Upserted  int
	Created   int
	Updated   int
	Skipped   int // item-level failures, logged and passed over

	// CreatedIDs and SkippedIDs name the records behind the counters, so
	// callers can tell which upserted record was new and which never landed.
	CreatedIDs []string
	SkippedIDs []string
}

// JobStatus is the in-memory view of one registered job.
type JobStatus struct {
	Source       string     `json:"source"`
	Schedule     string     `json:"schedule"`
	Enabled      bool       `json:"enabled"`
	State        JobState   `json:"state"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	NextRun      *time.Time `json:"next_run,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// SyncStatusRecord is the persisted per-source sync bookkeeping row. It is
// the only durable orchestrator state; everything else is rebuilt at start.
type SyncStatusRecord struct {
	Source               string     `db:"source"`
	LastSyncAt           time.Time  `db:"last_sync_at"`
	LastSuccessfulSyncAt *time.Time `db:"last_successful_sync_at"`
	TotalRecords         int        `db:"total_records"`
	SyncDurationMs       int64      `db:"sync_duration_ms"`
	ErrorCount           int        `db:"error_count"`
	NextSyncAt           *time.Time `db:"next_sync_at"`
}

// StatusReport merges in-memory job states with the persisted status rows.
type StatusReport struct {
	Jobs      []JobStatus        `json:"jobs"`
	Persisted []SyncStatusRecord `json:"persisted"`
}
