package controller

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/paperkit/ocr-conductor/internal/docstore"
	"github.com/paperkit/ocr-conductor/pkg/metrics"
	"go.uber.org/zap"
)

// Controller owns the single Job Run slot. At most one run is Running or
// Paused process-wide; the check-and-start is atomic so a watchdog tick and a
// manual start cannot both win.
type Controller struct {
	mu     sync.Mutex
	active *Run

	docs   docstore.Store
	proc   DocumentProcessor
	runTag string
}

func New(docs docstore.Store, proc DocumentProcessor, runTag string) *Controller {
	return &Controller{
		docs:   docs,
		proc:   proc,
		runTag: runTag,
	}
}

// Start resolves the selector and spawns the run's worker goroutine. The slot
// is reserved before resolution so a concurrent Start observes
// ErrAlreadyRunning instead of racing; an empty or failed resolution releases
// the slot without ever having started a run.
func (c *Controller) Start(ctx context.Context, selector Selector, setFinishTag bool, trigger string) (uuid.UUID, error) {
	c.mu.Lock()
	if c.active != nil && c.active.active() {
		c.mu.Unlock()
		return uuid.Nil, ErrAlreadyRunning
	}
	run := newRun(selector, setFinishTag, trigger)
	previous := c.active
	c.active = run
	c.mu.Unlock()

	ids, err := selector.Resolve(ctx, c.docs, c.runTag)
	if err != nil {
		c.release(run, previous)
		zap.S().Named("controller").Errorf("selector resolution failed: %v", err)
		return uuid.Nil, err
	}
	if len(ids) == 0 {
		c.release(run, previous)
		return uuid.Nil, ErrEmptySelection
	}

	run.begin(ids)
	metrics.IncreaseBatchRuns(trigger)
	zap.S().Named("controller").Infof("run %s started: %d documents, trigger=%s", run.id, len(ids), trigger)

	// the run outlives the triggering HTTP request; shutdown goes through Stop
	go run.loop(context.WithoutCancel(ctx), c.proc)
	return run.id, nil
}

// release undoes a slot reservation whose run never started, restoring the
// previous (terminal) run so its status stays visible to pollers.
func (c *Controller) release(failed, previous *Run) {
	c.mu.Lock()
	if c.active == failed {
		c.active = previous
	}
	c.mu.Unlock()
}

func (c *Controller) Pause() error {
	if run := c.current(); run != nil {
		return run.Pause()
	}
	return ErrInvalidState
}

func (c *Controller) Resume() error {
	if run := c.current(); run != nil {
		return run.Resume()
	}
	return ErrInvalidState
}

func (c *Controller) Stop() error {
	if run := c.current(); run != nil {
		return run.Stop()
	}
	return ErrInvalidState
}

// Busy reports whether a run currently holds the slot.
func (c *Controller) Busy() bool {
	run := c.current()
	return run != nil && run.active()
}

// Status returns the snapshot of the current run, or of the last finished one
// so its log remains readable after completion. The zero snapshot means no
// run has happened since startup.
func (c *Controller) Status() Snapshot {
	run := c.current()
	if run == nil {
		return Snapshot{State: StateIdle, Log: []LogEntry{}}
	}
	return run.Snapshot()
}

func (c *Controller) current() *Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}
