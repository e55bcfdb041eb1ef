package controller

import "errors"

var (
	// ErrAlreadyRunning is returned by Start while a run is Running or Paused.
	ErrAlreadyRunning = errors.New("a batch run is already active")
	// ErrEmptySelection is returned when the selector resolves to no documents.
	ErrEmptySelection = errors.New("selection resolved to no documents")
	// ErrInvalidState is returned for pause/resume/stop calls that are not
	// legal in the run's current state.
	ErrInvalidState = errors.New("operation not valid in current state")
)
