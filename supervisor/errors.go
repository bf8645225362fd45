package supervisor

import "errors"

var (
	// ErrAlreadyRunning is returned by Run when this or another Supervisor in
	// the process is already running.
	ErrAlreadyRunning = errors.New("supervisor: already running")

	// ErrStopped is returned by Run after Stop or Close.
	ErrStopped = errors.New("supervisor: stopped")
)
