// Package orchestrator schedules and supervises the per-source sync jobs.
// Jobs for different sources run concurrently on independent timers; runs of
// the same source are serialized through a lock set, and an overlapping
// trigger is dropped rather than queued.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"content_syncer/internal/domain"
)

var ErrUnknownSource = errors.New("unknown source")

const defaultRunTimeout = 5 * time.Minute

// StatusLister reads the persisted per-source status rows.
type StatusLister interface {
	List(ctx context.Context) ([]domain.SyncStatusRecord, error)
}

// Config tunes process-wide orchestration behavior.
type Config struct {
	// Stagger spaces out the initial syncs at startup so the providers are
	// not all hit in the same instant. Job i waits i*Stagger before its
	// first run.
	Stagger time.Duration

	// RunTimeout bounds a single sync run.
	RunTimeout time.Duration

	// Jitter, when set, returns an extra delay applied before each scheduled
	// run. Startup staggering and forced runs are never jittered.
	Jitter func() time.Duration
}

type Orchestrator struct {
	jobs       map[string]*job
	order      []string
	locks      *lockSet
	status     StatusLister
	stagger    time.Duration
	runTimeout time.Duration
	jitter     func() time.Duration
	logger     *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds the job registry. The registry is fixed for the process
// lifetime; duplicate source names are rejected.
func New(cfg Config, specs []JobSpec, status StatusLister, logger *slog.Logger) (*Orchestrator, error) {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}

	o := &Orchestrator{
		jobs:       make(map[string]*job, len(specs)),
		order:      make([]string, 0, len(specs)),
		locks:      newLockSet(),
		status:     status,
		stagger:    cfg.Stagger,
		runTimeout: cfg.RunTimeout,
		jitter:     cfg.Jitter,
		logger:     logger,
	}

	for _, spec := range specs {
		if spec.Source == "" {
			return nil, errors.New("job spec missing source")
		}
		if _, ok := o.jobs[spec.Source]; ok {
			return nil, fmt.Errorf("duplicate source %q", spec.Source)
		}
		o.jobs[spec.Source] = newJob(spec)
		o.order = append(o.order, spec.Source)
	}

	return o, nil
}

// Start launches one goroutine per enabled job: a staggered initial sync,
// then a timer loop on the job's schedule. It returns immediately; Stop
// waits for the loops and any in-flight run.
func (o *Orchestrator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	started := 0
	for i, source := range o.order {
		j := o.jobs[source]
		if !j.enabled {
			o.logger.Info("source disabled, not scheduling", "source", source)
			continue
		}

		offset := time.Duration(i) * o.stagger
		o.wg.Add(1)
		go o.runLoop(runCtx, j, offset)
		started++
	}

	o.logger.Info("orchestrator started", "jobs", started, "stagger", o.stagger)
}

// Stop cancels the job loops and blocks until they and any in-flight runs
// have finished.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	o.logger.Info("orchestrator stopped")
}

func (o *Orchestrator) runLoop(ctx context.Context, j *job, offset time.Duration) {
	defer o.wg.Done()

	if !sleepCtx(ctx, offset) {
		return
	}
	o.runJob(ctx, j)

	for {
		wait := time.Until(j.schedule.Next(time.Now()))
		// A schedule that yields a past instant would make this loop spin.
		if wait <= 0 {
			wait = time.Second
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if o.jitter != nil && !sleepCtx(ctx, o.jitter()) {
				return
			}
			o.runJob(ctx, j)
		}
	}
}

// runJob executes one run of a job, holding the source lock for its whole
// duration. A locked source yields an immediate skipped result.
func (o *Orchestrator) runJob(ctx context.Context, j *job) domain.SyncResult {
	token, ok := o.locks.TryAcquire(j.source)
	if !ok {
		o.logger.Info("sync already in flight, skipping", "source", j.source)
		return domain.SyncResult{Source: j.source, Skipped: true}
	}
	defer o.locks.Release(j.source, token)

	j.setRunning()

	runCtx, cancel := context.WithTimeout(ctx, o.runTimeout)
	defer cancel()

	result, err := j.syncer.Sync(runCtx)
	j.finish(err)
	if err != nil {
		o.logger.Error("sync failed", "source", j.source, "error", err)
	}
	return result
}

// ForceSyncAll runs every enabled job once regardless of its cadence, with
// the same stagger as startup. Jobs whose source is currently locked report
// a skipped result.
func (o *Orchestrator) ForceSyncAll(ctx context.Context) map[string]domain.SyncResult {
	results := make(map[string]domain.SyncResult, len(o.order))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i, source := range o.order {
		j := o.jobs[source]
		if !j.enabled {
			continue
		}

		offset := time.Duration(i) * o.stagger
		wg.Add(1)
		go func() {
			defer wg.Done()

			var result domain.SyncResult
			if sleepCtx(ctx, offset) {
				result = o.runJob(ctx, j)
			} else {
				result = domain.SyncResult{Source: j.source, Errors: []string{ctx.Err().Error()}}
			}

			mu.Lock()
			results[j.source] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	return results
}

// ForceSyncOne runs a single job once, even when the source is disabled for
// scheduling. Unknown sources are an error; a locked source is a skip.
func (o *Orchestrator) ForceSyncOne(ctx context.Context, source string) (domain.SyncResult, error) {
	j, ok := o.jobs[source]
	if !ok {
		return domain.SyncResult{}, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	return o.runJob(ctx, j), nil
}

// Status merges the in-memory job states with the persisted status rows.
func (o *Orchestrator) Status(ctx context.Context) (domain.StatusReport, error) {
	now := time.Now()

	report := domain.StatusReport{Jobs: make([]domain.JobStatus, 0, len(o.order))}
	for _, source := range o.order {
		report.Jobs = append(report.Jobs, o.jobs[source].status(now))
	}

	persisted, err := o.status.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list sync status: %w", err)
	}
	report.Persisted = persisted

	return report, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
