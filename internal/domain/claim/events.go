package claim

import "time"

// UploadQueuedEvent is published to claims.uploaded when an upload is
// accepted. It carries the parsed rows so workers never re-read the file.
type UploadQueuedEvent struct {
	RunID       string        `json:"run_id"`
	ContentHash string        `json:"content_hash"`
	RowCount    int           `json:"row_count"`
	Rows        []UploadedRow `json:"rows"`
	QueuedAt    time.Time     `json:"queued_at"`
}

// RunCompletedEvent is published to analysis.completed when every row of a
// run has a verdict.
type RunCompletedEvent struct {
	RunID        string    `json:"run_id"`
	VerdictCount int       `json:"verdict_count"`
	HighRisk     int       `json:"high_risk"`
	Incompatible int       `json:"incompatible"`
	CompletedAt  time.Time `json:"completed_at"`
}
