// Package store owns the shared accepted-item collection and the
// background refresh scheduler that keeps it current. The collection is a
// single coarse-locked aggregate: every externally visible operation
// acquires the lock once, so readers never observe a partially merged or
// partially trimmed set.
package store

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/onnwee/newsfeed/internal/feed"
	"github.com/onnwee/newsfeed/internal/ranking"
)

// Config configures the accepted-item store.
type Config struct {
	// MaxItems caps the number of retained items. When an update pushes
	// the set over the cap, the lowest-scoring items are evicted.
	MaxItems int
	// Persistence is the recency decay time scale used when rescoring.
	Persistence time.Duration
	// Logger for merge and eviction activity.
	Logger *slog.Logger
}

// Store is the deduplicated, capacity-bounded collection of items that
// passed relevance filtering. Items leave only by capacity eviction,
// never by age.
type Store struct {
	config Config

	mu    sync.Mutex
	items []feed.Item
	ids   map[string]struct{}
}

// New creates an empty store.
func New(config Config) *Store {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Store{
		config: config,
		ids:    make(map[string]struct{}),
	}
}

// Apply merges a refresh cycle's accepted items, rescores every retained
// item against now, and enforces the capacity cap, all under one lock
// acquisition. Returns the number of newly added items.
func (s *Store) Apply(items []feed.Item, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := s.mergeLocked(items)
	s.rescoreLocked(now)
	s.trimLocked()
	return added
}

// Ingest appends directly submitted items under the same dedup rule and
// rescores. Submitted items are assumed pre-approved; no relevance
// threshold is applied.
func (s *Store) Ingest(items []feed.Item) int {
	return s.Apply(items, time.Now().UTC())
}

// Retrieve rescores every item against a fresh snapshot of now and
// returns a copy ordered by final score descending, publication time
// descending as a tie-break. Items without a final score sort last.
// An empty result is a valid result, never an error.
func (s *Store) Retrieve() []feed.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rescoreLocked(time.Now().UTC())

	out := make([]feed.Item, len(s.items))
	copy(out, s.items)
	sort.SliceStable(out, func(i, j int) bool {
		return feed.Less(&out[i], &out[j])
	})
	return out
}

// Len returns the current number of retained items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Contains reports whether an item with the given ID is retained.
func (s *Store) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// mergeLocked appends items whose ID is not already present. A duplicate
// ID is silently dropped; the first-seen entry is never overwritten.
// Callers must hold s.mu.
func (s *Store) mergeLocked(items []feed.Item) int {
	added := 0
	for _, it := range items {
		if _, exists := s.ids[it.ID]; exists {
			continue
		}
		s.items = append(s.items, it)
		s.ids[it.ID] = struct{}{}
		added++
	}
	return added
}

// rescoreLocked recomputes recency weights and final scores for all
// items against a single shared reference time. Callers must hold s.mu.
func (s *Store) rescoreLocked(now time.Time) {
	for i := range s.items {
		ranking.Rescore(&s.items[i], now, s.config.Persistence)
	}
}

// trimLocked evicts the lowest-scoring items until the set fits the cap.
// Items without a final score are evicted first. Callers must hold s.mu.
func (s *Store) trimLocked() {
	if s.config.MaxItems <= 0 || len(s.items) <= s.config.MaxItems {
		return
	}

	sort.SliceStable(s.items, func(i, j int) bool {
		return feed.Less(&s.items[i], &s.items[j])
	})

	evicted := len(s.items) - s.config.MaxItems
	s.items = s.items[:s.config.MaxItems]

	s.ids = make(map[string]struct{}, len(s.items))
	for _, it := range s.items {
		s.ids[it.ID] = struct{}{}
	}

	s.config.Logger.Info("trimmed accepted items",
		"evicted", evicted,
		"retained", len(s.items))
}
