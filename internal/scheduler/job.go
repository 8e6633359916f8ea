package scheduler

import (
	"fmt"
	"time"
)

// Kind distinguishes repeating jobs from one-shot jobs.
type Kind int

const (
	// Repeating jobs re-arm after every firing.
	Repeating Kind = iota
	// OneShot jobs fire once and are discarded.
	OneShot
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Repeating:
		return "repeating"
	case OneShot:
		return "one_shot"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Task is a unit of work run by the scheduler.
//
// Tasks that need data from the moment they were scheduled carry it as
// fields, so what runs later is fixed when the job is created.
type Task interface {
	Run() error
}

// TaskFunc adapts a plain function to Task.
type TaskFunc func() error

// Run calls f.
func (f TaskFunc) Run() error {
	return f()
}

// Job is a scheduled task.
type Job struct {
	// ID identifies the job in logs.
	ID string

	// Kind is Repeating or OneShot.
	Kind Kind

	// Interval is the repeat interval (Repeating) or the delay (OneShot).
	Interval time.Duration

	// CreatedAt is when the job was registered.
	CreatedAt time.Time

	// NextFireAt is the earliest time the job may run.
	// Always at least CreatedAt + Interval.
	NextFireAt time.Time

	// Task is the work to run.
	Task Task

	// seq orders jobs due at the same instant by registration.
	seq uint64
}

// due reports whether the job may run at now.
func (j *Job) due(now time.Time) bool {
	return !j.NextFireAt.After(now)
}

// rearm moves a repeating job to its next slot. A job that is still behind
// now afterwards (the driver stalled for several intervals) is re-based on
// now instead of firing repeatedly to catch up.
func (j *Job) rearm(now time.Time) {
	j.NextFireAt = j.NextFireAt.Add(j.Interval)
	if !j.NextFireAt.After(now) {
		j.NextFireAt = now.Add(j.Interval)
	}
}

// describe returns a short task description for logs.
func (j *Job) describe() string {
	if s, ok := j.Task.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", j.Task)
}
