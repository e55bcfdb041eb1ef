package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paperkit/ocr-conductor/pkg/metrics"
	"go.uber.org/zap"
)

// Run is one batch execution over a fixed, pre-resolved document ID list.
// The loop runs on its own goroutine; pause/resume/stop are cooperative
// signals observed at safe points (between documents). All fields are guarded
// by mu; the condition variable wakes the loop out of a pause.
type Run struct {
	mu   sync.Mutex
	cond *sync.Cond

	id           uuid.UUID
	selector     Selector
	ids          []int
	cursor       int
	state        State
	setFinishTag bool
	trigger      string
	log          runLog
	startedAt    time.Time
	finishedAt   *time.Time

	pauseRequested bool
	stopRequested  bool
}

func newRun(selector Selector, setFinishTag bool, trigger string) *Run {
	r := &Run{
		id:           uuid.New(),
		selector:     selector,
		state:        StateIdle,
		setFinishTag: setFinishTag,
		trigger:      trigger,
		startedAt:    time.Now(),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// active reports whether the run still owns the single-flight slot.
func (r *Run) active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.state.Terminal()
}

// Pause requests suspension at the next safe point. The in-flight document's
// OCR call is allowed to finish.
func (r *Run) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRunning || r.pauseRequested || r.stopRequested {
		return ErrInvalidState
	}
	r.pauseRequested = true
	r.log.append(SeverityInfo, "Pause requested: suspending after the current document")
	return nil
}

// Resume wakes a paused run. The cursor is untouched; processing continues
// with the document it was about to start.
func (r *Run) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.pauseRequested || r.stopRequested || r.state.Terminal() {
		return ErrInvalidState
	}
	r.pauseRequested = false
	r.log.append(SeverityInfo, "Resumed")
	r.cond.Broadcast()
	return nil
}

// Stop requests termination at the next safe point. Already-applied documents
// keep their results.
func (r *Run) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Terminal() || r.stopRequested {
		return ErrInvalidState
	}
	r.stopRequested = true
	r.state = StateStopping
	r.log.append(SeverityWarning, "Stop requested: the run halts before the next document, the current one is allowed to finish")
	r.cond.Broadcast()
	return nil
}

// Snapshot returns a copy-out view for polling clients. Never blocks on the
// processing loop; the lock is held only to copy fields.
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot{
		RunID:      r.id,
		State:      r.state,
		Running:    !r.state.Terminal(),
		Paused:     r.pauseRequested,
		Processed:  r.cursor,
		Total:      len(r.ids),
		Trigger:    r.trigger,
		Log:        r.log.tail(),
		StartedAt:  r.startedAt,
		FinishedAt: r.finishedAt,
	}
}

// begin installs the resolved ID list and moves the run out of Idle.
func (r *Run) begin(ids []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = ids
	r.state = StateRunning
	r.log.append(SeverityInfo, fmt.Sprintf("Batch started: %d documents selected (%s)", len(ids), r.selector.Kind))
}

// finish stamps the end time. Caller holds the lock.
func (r *Run) finish() {
	now := time.Now()
	r.finishedAt = &now
}

// loop is the run's worker. It processes documents in order from the cursor,
// honoring pause/stop at safe points, and never lets a single document's
// failure abort the run.
func (r *Run) loop(ctx context.Context, proc DocumentProcessor) {
	logger := zap.S().Named("run").With("run_id", r.id.String())

	defer func() {
		if rec := recover(); rec != nil {
			r.mu.Lock()
			r.state = StateFailed
			r.finish()
			r.log.append(SeverityError, fmt.Sprintf("Internal error: %v — run aborted, applied results are preserved", rec))
			r.mu.Unlock()
			logger.Errorf("run panicked: %v", rec)
		}
	}()

	for {
		r.mu.Lock()

		// safe point: pause blocks here without consuming CPU
		paused := false
		for r.pauseRequested && !r.stopRequested {
			if !paused {
				paused = true
				r.state = StatePaused
				r.log.append(SeverityInfo, "Batch paused")
			}
			r.cond.Wait()
		}
		if paused && !r.stopRequested {
			r.state = StateRunning
		}

		// safe point: stop exits here, before the next document
		if r.stopRequested || ctx.Err() != nil {
			r.state = StateStopped
			r.finish()
			r.log.append(SeverityInfo, fmt.Sprintf("Batch stopped: %d of %d documents processed", r.cursor, len(r.ids)))
			r.mu.Unlock()
			logger.Infof("run stopped at %d/%d", r.cursor, len(r.ids))
			return
		}

		if r.cursor >= len(r.ids) {
			r.state = StateCompleted
			r.finish()
			r.log.append(SeverityInfo, fmt.Sprintf("Batch finished: %d documents processed", r.cursor))
			r.mu.Unlock()
			logger.Infof("run completed, %d documents", len(r.ids))
			return
		}

		docID := r.ids[r.cursor]
		position := r.cursor + 1
		total := len(r.ids)
		setFinishTag := r.setFinishTag
		r.mu.Unlock()

		outcome, err := proc.Process(ctx, docID, setFinishTag)

		r.mu.Lock()
		if err != nil {
			metrics.IncreaseDocumentsProcessed(metrics.OutcomeFailed)
			r.log.append(SeverityError, fmt.Sprintf("[%d/%d] Document %d failed: %v", position, total, docID, err))
			logger.Warnf("document %d failed: %v", docID, err)
		} else {
			r.logOutcome(position, total, docID, outcome)
		}
		// cursor only moves forward, one document at a time
		r.cursor++
		r.mu.Unlock()
	}
}

// logOutcome records the per-document result. Caller holds the lock.
func (r *Run) logOutcome(position, total, docID int, outcome Outcome) {
	switch outcome.Status {
	case OutcomeApplied:
		metrics.IncreaseDocumentsProcessed(metrics.OutcomeApplied)
		r.log.append(SeveritySuccess, fmt.Sprintf("[%d/%d] %s: OCR applied (%d chars via %s)",
			position, total, outcome.Title, outcome.Chars, outcome.Endpoint))
	case OutcomeUnchanged:
		metrics.IncreaseDocumentsProcessed(metrics.OutcomeUnchanged)
		r.log.append(SeveritySuccess, fmt.Sprintf("[%d/%d] %s: content unchanged",
			position, total, outcome.Title))
	case OutcomeReview:
		metrics.IncreaseDocumentsProcessed(metrics.OutcomeReview)
		r.log.append(SeverityWarning, fmt.Sprintf("[%d/%d] %s: held for review, new text is only %d%% of the original",
			position, total, outcome.Title, outcome.RatioPercent))
	}
	for _, w := range outcome.Warnings {
		r.log.append(SeverityWarning, fmt.Sprintf("[%d/%d] Document %d: %s", position, total, docID, w))
	}
}
