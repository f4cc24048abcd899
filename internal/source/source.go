// Package source defines the collaborator interface for external feeds and
// the concrete sources the aggregator polls: RSS feeds, Reddit listings,
// and a static in-memory source for local runs and tests.
package source

import (
	"context"
	"time"

	"github.com/onnwee/newsfeed/internal/feed"
)

// FetchOptions bound a fetch call. Exactly one of Limit or Since is
// normally set: Limit for the initial fetch of the most recent items,
// Since for incremental fetches of strictly newer items.
type FetchOptions struct {
	// Limit caps the number of most-recent items returned.
	Limit *int
	// Since requests items published strictly after this instant.
	// Filtering by Since is advisory: the ingestion coordinator re-filters
	// defensively, so a source that returns older items is tolerated.
	Since *time.Time
}

// Source produces candidate items from an external feed or API.
// A failing source returns an error scoped to itself; the coordinator
// logs it and continues with the remaining sources.
type Source interface {
	// Name returns the stable origin tag stamped onto fetched items.
	Name() string
	// Fetch returns candidate items within the window described by opts.
	Fetch(ctx context.Context, opts FetchOptions) ([]feed.Item, error)
}

// Limit builds FetchOptions for an initial bounded fetch.
func Limit(n int) FetchOptions {
	return FetchOptions{Limit: &n}
}

// Since builds FetchOptions for an incremental fetch.
func Since(t time.Time) FetchOptions {
	return FetchOptions{Since: &t}
}
