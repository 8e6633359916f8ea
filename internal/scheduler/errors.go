package scheduler

import "errors"

// Domain errors for the scheduler package.
var (
	// ErrNilTask is returned when registering a job without a task.
	ErrNilTask = errors.New("scheduler: task is nil")

	// ErrInvalidInterval is returned when a repeating job has a non-positive interval.
	ErrInvalidInterval = errors.New("scheduler: interval must be positive")

	// ErrInvalidDelay is returned when a one-shot job has a negative delay.
	ErrInvalidDelay = errors.New("scheduler: delay must not be negative")

	// ErrJobPanic wraps a panic recovered from a job.
	ErrJobPanic = errors.New("scheduler: job panicked")
)
