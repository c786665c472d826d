// Package checkclient is the client side of a proofreading check: submitting
// text to the daemon, polling the job until it settles, normalizing the
// result shapes the server can answer with, and a session state machine that
// front-ends (the CLI, an editor plugin) drive.
package checkclient

// Job status values reported by the server.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Span is a half-open [Start, End) range in UTF-16 code units, as reported by
// the server. Offsets index into the corrected text and are a hint, not a
// guarantee; see ResolveSpan.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Issue is one detected correction.
type Issue struct {
	Original    string `json:"original"`
	Corrected   string `json:"corrected"`
	Position    Span   `json:"position"`
	Type        string `json:"type"`
	Explanation string `json:"explanation"`
}

// Progress is the per-chunk completion snapshot attached to a polled status.
type Progress struct {
	CurrentChunk int `json:"current_chunk"`
	TotalChunks  int `json:"total_chunks"`
	Percentage   int `json:"percentage"`
}

// Record is the wire shape of a persisted check: returned inline on a cache
// hit, attached to a completed job status, and listed by the history
// endpoint. Not every source fills every field.
type Record struct {
	ID               int64   `json:"id"`
	OriginalText     string  `json:"original_text"`
	CorrectedText    string  `json:"corrected_text"`
	Issues           []Issue `json:"issues"`
	Provider         string  `json:"provider"`
	ProcessingTimeMs int64   `json:"processing_time_ms"`
	ChunkCount       int     `json:"chunk_count"`
	CreatedAt        string  `json:"created_at"`
}

// CheckResult is the canonical client-side result every source normalizes to.
type CheckResult struct {
	ID               int64
	OriginalText     string
	CorrectedText    string
	Issues           []Issue
	Provider         string
	ProcessingTimeMs int64
	ChunkCount       int
}

// SubmissionOutcome is the server's answer to a submit: either the finished
// result straight from the cache, or a job to poll.
type SubmissionOutcome struct {
	Cached bool
	Result *CheckResult
	JobID  int64
}

// JobStatus is one polled snapshot of a running job.
type JobStatus struct {
	Status       string    `json:"status"`
	Progress     *Progress `json:"progress"`
	Result       *Record   `json:"result"`
	ErrorMessage string    `json:"error_message"`
}

// HistoryPage is one page of persisted checks.
type HistoryPage struct {
	Records    []Record
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}
