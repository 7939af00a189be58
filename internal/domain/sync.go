package domain

// DocumentState tracks a document through one sync run
type DocumentState string

const (
	DocumentStateDiscovered  DocumentState = "discovered"
	DocumentStateUnsupported DocumentState = "unsupported"
	DocumentStateUnchanged   DocumentState = "unchanged"
	DocumentStateStale       DocumentState = "stale"
	DocumentStateNew         DocumentState = "new"
	DocumentStateSkipped     DocumentState = "skipped"
	DocumentStateReindexed   DocumentState = "reindexed"
	DocumentStateFailed      DocumentState = "failed"
)

// SyncError records a document that failed during a sync run
type SyncError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// SyncSummary is the result of one sync run
type SyncSummary struct {
	Success          bool        `json:"success"`
	SyncedCount      int         `json:"syncedCount"`
	SkippedCount     int         `json:"skippedCount"`
	UnsupportedCount int         `json:"unsupportedCount"`
	TotalFiles       int         `json:"totalFiles"`
	Namespace        string      `json:"namespace"`
	Errors           []SyncError `json:"errors,omitempty"`
}
