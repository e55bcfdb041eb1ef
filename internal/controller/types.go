package controller

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	// StateIdle covers the window between slot reservation and loop start,
	// while the selection is being resolved.
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateStopping  State = "stopping"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// Terminal reports whether the run has exited its loop for good.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateStopped || s == StateFailed
}

type OutcomeStatus string

const (
	// OutcomeApplied means new content was written to the document store.
	OutcomeApplied OutcomeStatus = "applied"
	// OutcomeUnchanged means recognition succeeded but matched the stored content.
	OutcomeUnchanged OutcomeStatus = "unchanged"
	// OutcomeReview means the result looked suspicious and was queued for
	// manual review instead of being applied.
	OutcomeReview OutcomeStatus = "review"
)

// Outcome describes one successfully processed document.
type Outcome struct {
	Title    string
	Status   OutcomeStatus
	Chars    int
	Endpoint string
	// RatioPercent is new/old content length for review outcomes.
	RatioPercent int
	// Warnings are non-fatal problems worth a log line (e.g. the finish
	// tag could not be applied after the content write).
	Warnings []string
}

// DocumentProcessor handles a single document: acquire an endpoint, run OCR,
// apply the result. Errors are recorded in the run log and never abort the run.
type DocumentProcessor interface {
	Process(ctx context.Context, documentID int, setFinishTag bool) (Outcome, error)
}

// Snapshot is the copy-out status view served to polling clients.
type Snapshot struct {
	RunID      uuid.UUID  `json:"run_id"`
	State      State      `json:"state"`
	Running    bool       `json:"running"`
	Paused     bool       `json:"paused"`
	Processed  int        `json:"processed"`
	Total      int        `json:"total"`
	Trigger    string     `json:"trigger"`
	Log        []LogEntry `json:"log"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
