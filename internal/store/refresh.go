package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/newsfeed/internal/ingest"
)

// Fetcher runs one fetch cycle across all sources. Implemented by
// ingest.Coordinator.
type Fetcher interface {
	// InitialFetch requests each source's most recent items.
	InitialFetch(ctx context.Context) ingest.Batch
	// IncrementalFetch requests items newer than each source's cursor.
	IncrementalFetch(ctx context.Context) ingest.Batch
}

// JobMetrics provides centralized background job metrics tracking.
type JobMetrics interface {
	IncJobsTotal(jobType, status string)
	ObserveJobDuration(jobType string, seconds float64)
	IncJobErrors(jobType, errorType string)
}

// Job type labels reported to metrics.
const (
	JobTypeInitialFetch = "initial_fetch"
	JobTypeRefreshCycle = "refresh_cycle"
)

// DefaultRefreshInterval is the default delay between cycle completions.
const DefaultRefreshInterval = 30 * time.Second

// DefaultCycleTimeout bounds a single refresh cycle.
const DefaultCycleTimeout = 2 * time.Minute

// RefreshJobConfig configures the background refresh job.
type RefreshJobConfig struct {
	// Interval is the delay between the end of one cycle and the start
	// of the next. A slow fetch delays the next cycle rather than
	// overlapping it.
	Interval time.Duration
	// Timeout bounds each cycle's fetch work.
	Timeout time.Duration
	// Logger for cycle activity.
	Logger *slog.Logger
	// Metrics for centralized background job tracking.
	Metrics JobMetrics
}

// RefreshJob periodically runs a fetch cycle and folds the accepted items
// into the store. Exactly one cycle runs at a time; request handlers read
// and write the store concurrently while a cycle's fetch work happens off
// the request path.
type RefreshJob struct {
	config  RefreshJobConfig
	fetcher Fetcher
	store   *Store

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRefreshJob creates a refresh job over the given fetcher and store.
func NewRefreshJob(config RefreshJobConfig, fetcher Fetcher, store *Store) *RefreshJob {
	if config.Interval == 0 {
		config.Interval = DefaultRefreshInterval
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultCycleTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &RefreshJob{
		config:  config,
		fetcher: fetcher,
		store:   store,
	}
}

// Start runs the initial fetch and then begins the periodic refresh loop.
// Returns immediately; the loop runs in a background goroutine.
func (j *RefreshJob) Start(ctx context.Context) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	go j.run(ctx)
}

// Stop signals the refresh loop to stop and waits for it to finish.
// An in-flight cycle is allowed to complete; no new cycle starts after
// stop is requested.
func (j *RefreshJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	stopCh := j.stopCh
	doneCh := j.doneCh
	j.mu.Unlock()

	close(stopCh)
	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// IsRunning reports whether the refresh loop is active.
func (j *RefreshJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// run is the refresh loop: one initial-fetch cycle, then incremental
// cycles separated by the configured interval, measured from cycle
// completion. The stop signal is checked at every cycle boundary.
func (j *RefreshJob) run(ctx context.Context) {
	defer close(j.doneCh)

	j.runCycle(ctx, JobTypeInitialFetch)

	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("refresh job stopping due to context cancellation")
			return
		case <-j.stopCh:
			j.config.Logger.Info("refresh job stopping due to stop signal")
			return
		case <-time.After(j.config.Interval):
		}

		select {
		case <-ctx.Done():
			return
		case <-j.stopCh:
			return
		default:
		}

		j.runCycle(ctx, JobTypeRefreshCycle)
	}
}

// RunCycleNow runs one incremental cycle immediately, outside the timer.
// Useful for tests and for forcing a refresh.
func (j *RefreshJob) RunCycleNow() {
	j.runCycle(context.Background(), JobTypeRefreshCycle)
}

// runCycle executes one full cycle: fetch, merge, rescore, trim. A panic
// escaping the cycle body is logged and counted so the loop re-arms for
// the next interval instead of dying.
func (j *RefreshJob) runCycle(parentCtx context.Context, jobType string) {
	ctx, cancel := context.WithTimeout(parentCtx, j.config.Timeout)
	defer cancel()

	start := time.Now()
	status := "success"

	defer func() {
		if r := recover(); r != nil {
			status = "failure"
			j.config.Logger.Error("refresh cycle panicked",
				"job_type", jobType,
				"panic", r)
			if j.config.Metrics != nil {
				j.config.Metrics.IncJobErrors(jobType, "panic")
			}
		}
		duration := time.Since(start).Seconds()
		if j.config.Metrics != nil {
			j.config.Metrics.IncJobsTotal(jobType, status)
			j.config.Metrics.ObserveJobDuration(jobType, duration)
		}
	}()

	var batch ingest.Batch
	if jobType == JobTypeInitialFetch {
		batch = j.fetcher.InitialFetch(ctx)
	} else {
		batch = j.fetcher.IncrementalFetch(ctx)
	}

	added := j.store.Apply(batch.Accepted, time.Now().UTC())

	j.config.Logger.Info("refresh cycle completed",
		"job_type", jobType,
		"accepted", len(batch.Accepted),
		"rejected", len(batch.Rejected),
		"added", added,
		"total", j.store.Len(),
		"duration_seconds", time.Since(start).Seconds())
}
