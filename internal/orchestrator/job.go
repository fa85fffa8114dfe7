package orchestrator

import (
	"context"
	"sync"
	"time"

	"content_syncer/internal/domain"
)

// Syncer runs one full sync pass for a single source.
type Syncer interface {
	Sync(ctx context.Context) (domain.SyncResult, error)
}

// JobSpec declares one source's sync job.
type JobSpec struct {
	Source   string
	Schedule Schedule
	Syncer   Syncer
	Enabled  bool
}

// job carries one source's schedule and run state. The lock set decides who
// may enter running; the state here is the reported view and keeps the last
// run's outcome until the next run starts.
type job struct {
	source   string
	schedule Schedule
	syncer   Syncer
	enabled  bool

	mu           sync.Mutex
	state        domain.JobState
	lastRun      *time.Time
	errorMessage string
}

func newJob(spec JobSpec) *job {
	return &job{
		source:   spec.Source,
		schedule: spec.Schedule,
		syncer:   spec.Syncer,
		enabled:  spec.Enabled,
		state:    domain.JobStateIdle,
	}
}

func (j *job) setRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.state = domain.JobStateRunning
}

func (j *job) finish(err error) {
	now := time.Now().UTC()

	j.mu.Lock()
	defer j.mu.Unlock()

	j.lastRun = &now
	if err != nil {
		j.state = domain.JobStateError
		j.errorMessage = err.Error()
		return
	}
	j.state = domain.JobStateSuccess
	j.errorMessage = ""
}

func (j *job) status(now time.Time) domain.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()

	status := domain.JobStatus{
		Source:       j.source,
		Schedule:     j.schedule.String(),
		Enabled:      j.enabled,
		State:        j.state,
		LastRun:      j.lastRun,
		ErrorMessage: j.errorMessage,
	}
	if j.enabled {
		next := j.schedule.Next(now)
		status.NextRun = &next
	}
	return status
}
