package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger is the logging interface used by the scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger used for job failures.
func WithLogger(logger Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Stats are cumulative counters since the scheduler was created.
type Stats struct {
	Fired  uint64 // jobs run, including failed ones
	Failed uint64 // jobs that returned an error or panicked
}

// StepResult summarises one call to Step.
type StepResult struct {
	Fired  int
	Failed int
}

// Scheduler is a cooperative timer engine.
//
// Thread Safety: registration methods may be called from any goroutine,
// including from inside a running job. Step must only be called by the
// single driver goroutine; jobs never run concurrently with each other.
type Scheduler struct {
	mu      sync.Mutex
	jobs    []*Job
	nextSeq uint64
	stats   Stats

	clock  Clock
	logger Logger
}

// New creates an empty Scheduler using the wall clock.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:  wallClock{},
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleEach registers a repeating job. The first run happens interval
// after registration, not immediately.
//
// Returns:
//   - string: The job ID
//   - error: ErrNilTask or ErrInvalidInterval
func (s *Scheduler) ScheduleEach(task Task, interval time.Duration) (string, error) {
	if task == nil {
		return "", ErrNilTask
	}
	if interval <= 0 {
		return "", fmt.Errorf("%w: got %v", ErrInvalidInterval, interval)
	}
	return s.add(Repeating, task, interval), nil
}

// ScheduleOnce registers a one-shot job that runs once, no earlier than
// delay from now, and is then discarded. A zero delay runs on the next Step.
//
// Returns:
//   - string: The job ID
//   - error: ErrNilTask or ErrInvalidDelay
func (s *Scheduler) ScheduleOnce(task Task, delay time.Duration) (string, error) {
	if task == nil {
		return "", ErrNilTask
	}
	if delay < 0 {
		return "", fmt.Errorf("%w: got %v", ErrInvalidDelay, delay)
	}
	return s.add(OneShot, task, delay), nil
}

func (s *Scheduler) add(kind Kind, task Task, interval time.Duration) string {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	job := &Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		Interval:   interval,
		CreatedAt:  now,
		NextFireAt: now.Add(interval),
		Task:       task,
		seq:        s.nextSeq,
	}
	s.nextSeq++
	s.jobs = append(s.jobs, job)

	return job.ID
}

// Step runs every job whose fire time has been reached.
//
// Due jobs are selected once, when Step starts; jobs registered while Step is
// running are considered from the next call. Each job runs inside its own
// error boundary, so a failing job never prevents the others from running.
// Afterwards repeating jobs are re-armed and one-shot jobs are removed.
func (s *Scheduler) Step() StepResult {
	now := s.clock.Now()
	due := s.collectDue(now)

	var result StepResult
	for _, job := range due {
		err := s.run(job)

		result.Fired++
		if err != nil {
			result.Failed++
			s.logger.Error("scheduled job failed",
				"job_id", job.ID,
				"kind", job.Kind.String(),
				"task", job.describe(),
				"error", err,
			)
		}

		s.finish(job, now, err != nil)
	}

	return result
}

// collectDue returns the due jobs ordered by fire time, then registration.
func (s *Scheduler) collectDue(now time.Time) []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*Job
	for _, job := range s.jobs {
		if job.due(now) {
			due = append(due, job)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		if !due[i].NextFireAt.Equal(due[j].NextFireAt) {
			return due[i].NextFireAt.Before(due[j].NextFireAt)
		}
		return due[i].seq < due[j].seq
	})

	return due
}

// run executes one job, converting a panic into ErrJobPanic.
func (s *Scheduler) run(job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanic, r)
		}
	}()
	return job.Task.Run()
}

// finish re-arms or removes a job after it ran and updates the counters.
func (s *Scheduler) finish(job *Job, now time.Time, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Fired++
	if failed {
		s.stats.Failed++
	}

	if job.Kind == Repeating {
		job.rearm(now)
		return
	}

	for i, j := range s.jobs {
		if j == job {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Count returns the number of registered jobs of one kind.
func (s *Scheduler) Count(kind Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, job := range s.jobs {
		if job.Kind == kind {
			n++
		}
	}
	return n
}

// NextFireAt returns the earliest pending fire time, or false if no job is registered.
func (s *Scheduler) NextFireAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next time.Time
	for i, job := range s.jobs {
		if i == 0 || job.NextFireAt.Before(next) {
			next = job.NextFireAt
		}
	}
	return next, len(s.jobs) > 0
}

// Stats returns cumulative counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
