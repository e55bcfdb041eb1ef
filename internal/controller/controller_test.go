package controller_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/paperkit/ocr-conductor/internal/controller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProcessor lets the test decide when each document finishes: Process
// announces the document on started and blocks until a value arrives on
// release.
type stubProcessor struct {
	started chan int
	release chan error

	mu        sync.Mutex
	processed []int
}

func newStubProcessor() *stubProcessor {
	return &stubProcessor{
		started: make(chan int, 16),
		release: make(chan error, 16),
	}
}

func (p *stubProcessor) Process(ctx context.Context, documentID int, setFinishTag bool) (controller.Outcome, error) {
	p.started <- documentID
	err := <-p.release
	if err != nil {
		return controller.Outcome{}, err
	}

	p.mu.Lock()
	p.processed = append(p.processed, documentID)
	p.mu.Unlock()

	return controller.Outcome{
		Title:  fmt.Sprintf("doc-%d", documentID),
		Status: controller.OutcomeApplied,
		Chars:  42,
	}, nil
}

func (p *stubProcessor) seen() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.processed...)
}

func waitForState(t *testing.T, ctrl *controller.Controller, state controller.State) controller.Snapshot {
	t.Helper()
	var snapshot controller.Snapshot
	require.Eventually(t, func() bool {
		snapshot = ctrl.Status()
		return snapshot.State == state
	}, 5*time.Second, 5*time.Millisecond, "expected state %s, last seen %s", state, snapshot.State)
	return snapshot
}

func explicit(ids ...int) controller.Selector {
	return controller.Selector{Kind: controller.SelectExplicit, IDs: ids}
}

func TestStatusBeforeAnyRun(t *testing.T) {
	ctrl := controller.New(newFakeDocstore(), newStubProcessor(), "runocr")

	snapshot := ctrl.Status()
	assert.Equal(t, controller.StateIdle, snapshot.State)
	assert.False(t, snapshot.Running)
	assert.Zero(t, snapshot.Processed)
	assert.Empty(t, snapshot.Log)
}

func TestRunCompletes(t *testing.T) {
	proc := newStubProcessor()
	ctrl := controller.New(newFakeDocstore(), proc, "runocr")

	_, err := ctrl.Start(context.Background(), explicit(1, 2, 3), true, "manual")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		<-proc.started
		proc.release <- nil
	}

	snapshot := waitForState(t, ctrl, controller.StateCompleted)
	assert.Equal(t, 3, snapshot.Processed)
	assert.Equal(t, 3, snapshot.Total)
	assert.False(t, snapshot.Running)
	assert.NotNil(t, snapshot.FinishedAt)
	assert.Equal(t, []int{1, 2, 3}, proc.seen())
}

func TestProcessedIsMonotoneAndBounded(t *testing.T) {
	proc := newStubProcessor()
	ctrl := controller.New(newFakeDocstore(), proc, "runocr")

	_, err := ctrl.Start(context.Background(), explicit(1, 2, 3, 4), true, "manual")
	require.NoError(t, err)

	last := 0
	for i := 0; i < 4; i++ {
		<-proc.started
		snapshot := ctrl.Status()
		assert.GreaterOrEqual(t, snapshot.Processed, last)
		assert.LessOrEqual(t, snapshot.Processed, snapshot.Total)
		last = snapshot.Processed
		proc.release <- nil
	}

	snapshot := waitForState(t, ctrl, controller.StateCompleted)
	assert.Equal(t, snapshot.Total, snapshot.Processed)
}

func TestStartWhileRunningIsRejected(t *testing.T) {
	proc := newStubProcessor()
	ctrl := controller.New(newFakeDocstore(), proc, "runocr")

	runID, err := ctrl.Start(context.Background(), explicit(1, 2), true, "manual")
	require.NoError(t, err)
	<-proc.started

	before := ctrl.Status()
	_, err = ctrl.Start(context.Background(), explicit(9), true, "manual")
	assert.ErrorIs(t, err, controller.ErrAlreadyRunning)

	// the rejected start must not disturb the active run
	after := ctrl.Status()
	assert.Equal(t, runID, after.RunID)
	assert.Equal(t, before.Processed, after.Processed)
	assert.Equal(t, len(before.Log), len(after.Log))

	proc.release <- nil
	<-proc.started
	proc.release <- nil
	waitForState(t, ctrl, controller.StateCompleted)
}

func TestStartEmptySelection(t *testing.T) {
	docs := newFakeDocstore()
	ctrl := controller.New(docs, newStubProcessor(), "runocr")

	_, err := ctrl.Start(context.Background(), controller.Selector{Kind: controller.SelectAllUntagged}, true, "manual")
	assert.ErrorIs(t, err, controller.ErrEmptySelection)
	assert.Equal(t, controller.StateIdle, ctrl.Status().State)
}

func TestStartSelectorError(t *testing.T) {
	docs := newFakeDocstore()
	docs.listErr = errors.New("docstore down")
	ctrl := controller.New(docs, newStubProcessor(), "runocr")

	_, err := ctrl.Start(context.Background(), controller.Selector{Kind: controller.SelectAllUntagged}, true, "manual")
	require.Error(t, err)

	// the slot is free again
	docs.listErr = nil
	docs.untagged = []int{1}
	proc := newStubProcessor()
	ctrl2 := controller.New(docs, proc, "runocr")
	_, err = ctrl2.Start(context.Background(), controller.Selector{Kind: controller.SelectAllUntagged}, true, "manual")
	require.NoError(t, err)
	<-proc.started
	proc.release <- nil
	waitForState(t, ctrl2, controller.StateCompleted)
}

func TestPauseAndResumePreserveCursor(t *testing.T) {
	proc := newStubProcessor()
	ctrl := controller.New(newFakeDocstore(), proc, "runocr")

	_, err := ctrl.Start(context.Background(), explicit(1, 2, 3), true, "manual")
	require.NoError(t, err)

	<-proc.started
	require.NoError(t, ctrl.Pause())
	proc.release <- nil

	snapshot := waitForState(t, ctrl, controller.StatePaused)
	assert.Equal(t, 1, snapshot.Processed)
	assert.True(t, snapshot.Paused)
	assert.True(t, snapshot.Running)

	// pausing twice is not a valid transition
	assert.ErrorIs(t, ctrl.Pause(), controller.ErrInvalidState)

	require.NoError(t, ctrl.Resume())
	assert.Equal(t, 2, <-proc.started)
	proc.release <- nil
	<-proc.started
	proc.release <- nil

	snapshot = waitForState(t, ctrl, controller.StateCompleted)
	assert.Equal(t, 3, snapshot.Processed)
	assert.Equal(t, []int{1, 2, 3}, proc.seen())
}

func TestStopHaltsBeforeNextDocument(t *testing.T) {
	proc := newStubProcessor()
	ctrl := controller.New(newFakeDocstore(), proc, "runocr")

	_, err := ctrl.Start(context.Background(), explicit(1, 2, 3, 4, 5), true, "manual")
	require.NoError(t, err)

	<-proc.started
	proc.release <- nil
	<-proc.started
	require.NoError(t, ctrl.Stop())
	proc.release <- nil

	snapshot := waitForState(t, ctrl, controller.StateStopped)
	assert.Equal(t, 2, snapshot.Processed)
	assert.Equal(t, 5, snapshot.Total)
	assert.Equal(t, []int{1, 2}, proc.seen())

	// a stopped run frees the slot
	_, err = ctrl.Start(context.Background(), explicit(9), true, "manual")
	require.NoError(t, err)
	<-proc.started
	proc.release <- nil
	waitForState(t, ctrl, controller.StateCompleted)
}

func TestStopWhilePaused(t *testing.T) {
	proc := newStubProcessor()
	ctrl := controller.New(newFakeDocstore(), proc, "runocr")

	_, err := ctrl.Start(context.Background(), explicit(1, 2, 3), true, "manual")
	require.NoError(t, err)

	<-proc.started
	require.NoError(t, ctrl.Pause())
	proc.release <- nil
	waitForState(t, ctrl, controller.StatePaused)

	require.NoError(t, ctrl.Stop())
	snapshot := waitForState(t, ctrl, controller.StateStopped)
	assert.Equal(t, 1, snapshot.Processed)
}

func TestDocumentFailureDoesNotAbortRun(t *testing.T) {
	proc := newStubProcessor()
	ctrl := controller.New(newFakeDocstore(), proc, "runocr")

	_, err := ctrl.Start(context.Background(), explicit(1, 2), true, "manual")
	require.NoError(t, err)

	<-proc.started
	proc.release <- errors.New("endpoint exploded")
	<-proc.started
	proc.release <- nil

	snapshot := waitForState(t, ctrl, controller.StateCompleted)
	assert.Equal(t, 2, snapshot.Processed)

	var sawError bool
	for _, entry := range snapshot.Log {
		if entry.Severity == controller.SeverityError {
			sawError = true
		}
	}
	assert.True(t, sawError, "expected an error entry in the run log")
}

func TestControlsWithoutActiveRun(t *testing.T) {
	ctrl := controller.New(newFakeDocstore(), newStubProcessor(), "runocr")

	assert.ErrorIs(t, ctrl.Pause(), controller.ErrInvalidState)
	assert.ErrorIs(t, ctrl.Resume(), controller.ErrInvalidState)
	assert.ErrorIs(t, ctrl.Stop(), controller.ErrInvalidState)
}

func TestResumeWithoutPauseIsRejected(t *testing.T) {
	proc := newStubProcessor()
	ctrl := controller.New(newFakeDocstore(), proc, "runocr")

	_, err := ctrl.Start(context.Background(), explicit(1), true, "manual")
	require.NoError(t, err)
	<-proc.started

	assert.ErrorIs(t, ctrl.Resume(), controller.ErrInvalidState)

	proc.release <- nil
	waitForState(t, ctrl, controller.StateCompleted)
}
