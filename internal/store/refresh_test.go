package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/newsfeed/internal/feed"
	"github.com/onnwee/newsfeed/internal/ingest"
)

// fakeFetcher records which cycle kinds ran and serves canned batches.
type fakeFetcher struct {
	mu           sync.Mutex
	initialCalls int
	incCalls     int
	initial      ingest.Batch
	incremental  ingest.Batch
	panicOnInc   bool
}

func (f *fakeFetcher) InitialFetch(ctx context.Context) ingest.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialCalls++
	return f.initial
}

func (f *fakeFetcher) IncrementalFetch(ctx context.Context) ingest.Batch {
	f.mu.Lock()
	f.incCalls++
	panicNow := f.panicOnInc
	f.mu.Unlock()
	if panicNow {
		panic("fetch blew up")
	}
	return f.incremental
}

func (f *fakeFetcher) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialCalls, f.incCalls
}

// fakeJobMetrics counts metric calls without a registry.
type fakeJobMetrics struct {
	mu        sync.Mutex
	jobs      map[string]int
	errors    map[string]int
	durations int
}

func newFakeJobMetrics() *fakeJobMetrics {
	return &fakeJobMetrics{
		jobs:   make(map[string]int),
		errors: make(map[string]int),
	}
}

func (m *fakeJobMetrics) IncJobsTotal(jobType, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[jobType+"/"+status]++
}

func (m *fakeJobMetrics) ObserveJobDuration(jobType string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations++
}

func (m *fakeJobMetrics) IncJobErrors(jobType, errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[jobType+"/"+errorType]++
}

func TestRefreshJob_InitialThenIncremental(t *testing.T) {
	fetcher := &fakeFetcher{
		initial: ingest.Batch{Accepted: []feed.Item{
			scoredItem("initial-1", 0.9, base),
		}},
		incremental: ingest.Batch{Accepted: []feed.Item{
			scoredItem("inc-1", 0.7, base.Add(time.Hour)),
		}},
	}
	s := newTestStore(100)
	job := NewRefreshJob(RefreshJobConfig{Interval: 10 * time.Millisecond}, fetcher, s)

	job.Start(context.Background())
	defer job.Stop()

	deadline := time.After(2 * time.Second)
	for {
		initial, inc := fetcher.calls()
		if initial >= 1 && inc >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for cycles: initial=%d incremental=%d", initial, inc)
		case <-time.After(5 * time.Millisecond):
		}
	}

	initial, _ := fetcher.calls()
	if initial != 1 {
		t.Errorf("expected exactly one initial fetch, got %d", initial)
	}
	if !s.Contains("initial-1") || !s.Contains("inc-1") {
		t.Error("expected accepted items from both cycle kinds in the store")
	}
}

func TestRefreshJob_StartIsIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{}
	job := NewRefreshJob(RefreshJobConfig{Interval: time.Hour}, fetcher, newTestStore(100))

	job.Start(context.Background())
	job.Start(context.Background())
	defer job.Stop()

	// Give the single loop time to run its initial cycle.
	deadline := time.After(2 * time.Second)
	for {
		initial, _ := fetcher.calls()
		if initial >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for initial cycle")
		case <-time.After(5 * time.Millisecond):
		}
	}

	initial, _ := fetcher.calls()
	if initial != 1 {
		t.Errorf("second Start spawned another loop: %d initial fetches", initial)
	}
}

func TestRefreshJob_StopPreventsFurtherCycles(t *testing.T) {
	fetcher := &fakeFetcher{}
	job := NewRefreshJob(RefreshJobConfig{Interval: 5 * time.Millisecond}, fetcher, newTestStore(100))

	job.Start(context.Background())
	time.Sleep(25 * time.Millisecond)
	job.Stop()

	if job.IsRunning() {
		t.Error("expected job not running after Stop")
	}

	_, incAtStop := fetcher.calls()
	time.Sleep(30 * time.Millisecond)
	_, incAfter := fetcher.calls()
	if incAfter != incAtStop {
		t.Errorf("cycles continued after Stop: %d then %d", incAtStop, incAfter)
	}
}

func TestRefreshJob_StopWithoutStart(t *testing.T) {
	job := NewRefreshJob(RefreshJobConfig{}, &fakeFetcher{}, newTestStore(100))
	job.Stop()
}

func TestRefreshJob_RunCycleNow(t *testing.T) {
	fetcher := &fakeFetcher{
		incremental: ingest.Batch{Accepted: []feed.Item{
			scoredItem("forced", 0.5, base),
		}},
	}
	s := newTestStore(100)
	job := NewRefreshJob(RefreshJobConfig{Interval: time.Hour}, fetcher, s)

	job.RunCycleNow()

	_, inc := fetcher.calls()
	if inc != 1 {
		t.Fatalf("expected one incremental cycle, got %d", inc)
	}
	if !s.Contains("forced") {
		t.Error("expected forced cycle's item in the store")
	}
}

func TestRefreshJob_CyclePanicIsRecovered(t *testing.T) {
	fetcher := &fakeFetcher{panicOnInc: true}
	metrics := newFakeJobMetrics()
	job := NewRefreshJob(RefreshJobConfig{
		Interval: time.Hour,
		Metrics:  metrics,
	}, fetcher, newTestStore(100))

	job.RunCycleNow()

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.errors[JobTypeRefreshCycle+"/panic"] != 1 {
		t.Errorf("expected one panic error recorded, got %v", metrics.errors)
	}
	if metrics.jobs[JobTypeRefreshCycle+"/failure"] != 1 {
		t.Errorf("expected one failure recorded, got %v", metrics.jobs)
	}
	if metrics.durations != 1 {
		t.Errorf("expected duration observed once, got %d", metrics.durations)
	}
}

func TestRefreshJob_MetricsOnSuccess(t *testing.T) {
	metrics := newFakeJobMetrics()
	job := NewRefreshJob(RefreshJobConfig{
		Interval: time.Hour,
		Metrics:  metrics,
	}, &fakeFetcher{}, newTestStore(100))

	job.RunCycleNow()

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.jobs[JobTypeRefreshCycle+"/success"] != 1 {
		t.Errorf("expected one success recorded, got %v", metrics.jobs)
	}
}
