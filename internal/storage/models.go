package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Check job lifecycle states. A job is terminal once it reaches
// completed, failed, or cancelled.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
	JobCancelled  = "cancelled"
)

type CheckJob struct {
	ID              int64
	Text            string
	TextHash        string
	Provider        string
	Status          string
	ProgressCurrent int
	ProgressTotal   int
	ErrorMessage    string
	ResultID        int64 // 0 until completed
	CreatedAt       time.Time
	StartedAt       time.Time
	CompletedAt     time.Time
}

type CheckResult struct {
	ID            int64
	TextHash      string
	OriginalText  string
	CorrectedText string
	Issues        string // JSON array stored as text
	Provider      string
	ProcessingMs  int64
	ChunkCount    int
	CreatedAt     time.Time
}

type Document struct {
	ID        string
	Filename  string
	Title     string
	PageCount int
	SizeBytes int64
	CreatedAt time.Time
}

type Page struct {
	ID         string
	DocumentID string
	PageNumber int
	Content    string
}

// SearchMatch is one hit from a document search: either a filename match
// (PageNumber 0, empty Snippet) or a full-text match on a page.
type SearchMatch struct {
	DocumentID string
	Filename   string
	PageNumber int
	Snippet    string
}
