// Package ingest drives the per-source fetch protocol: it owns each
// source's fetch cursor, classifies candidates through the relevance
// classifier, and splits every cycle's candidates into accepted and
// rejected items. One failing source or an unavailable classifier never
// aborts a cycle.
package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/newsfeed/internal/classify"
	"github.com/onnwee/newsfeed/internal/feed"
	"github.com/onnwee/newsfeed/internal/ranking"
	"github.com/onnwee/newsfeed/internal/source"
)

// failOpenScore is the confidence substituted when the classifier is
// unavailable: unclassifiable items are accepted rather than dropped.
const failOpenScore = 1.0

// Config configures the ingestion coordinator.
type Config struct {
	// MinScore is the relevance threshold; candidates scoring below it
	// are rejected.
	MinScore float64
	// InitialLimit caps the per-source item count of the initial fetch.
	InitialLimit int
	// Persistence is the recency decay time scale applied to accepted
	// items.
	Persistence time.Duration
	// Logger for per-source and per-item activity.
	Logger *slog.Logger
}

// Batch is the outcome of one fetch cycle across all sources.
type Batch struct {
	Accepted []feed.Item
	Rejected []feed.Item
}

// Coordinator fetches candidates from all configured sources and filters
// them through the relevance classifier. Cursors are guarded by the
// coordinator's own mutex so fetch cycles and test probes can overlap.
type Coordinator struct {
	sources    []source.Source
	classifier classify.Classifier
	config     Config

	mu      sync.Mutex
	cursors map[string]time.Time
}

// NewCoordinator creates a coordinator over the given sources and
// classifier.
func NewCoordinator(sources []source.Source, classifier classify.Classifier, config Config) *Coordinator {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Coordinator{
		sources:    sources,
		classifier: classifier,
		config:     config,
		cursors:    make(map[string]time.Time),
	}
}

// Cursor returns the last-seen watermark for a source, if one exists.
func (c *Coordinator) Cursor(sourceName string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cursor, ok := c.cursors[sourceName]
	return cursor, ok
}

// advanceCursor moves a source's cursor forward to at. Cursors are
// monotonically non-decreasing: a candidate set older than the current
// watermark leaves it unchanged.
func (c *Coordinator) advanceCursor(sourceName string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.cursors[sourceName]; ok && !at.After(current) {
		return
	}
	c.cursors[sourceName] = at
}

// InitialFetch requests each source's most recent items, bounded by the
// configured initial limit, and classifies every candidate. The cursor
// advances to the newest publication time among all candidates the
// source returned, accepted or not.
func (c *Coordinator) InitialFetch(ctx context.Context) Batch {
	var batch Batch
	for _, src := range c.sources {
		candidates, err := src.Fetch(ctx, source.Limit(c.config.InitialLimit))
		if err != nil {
			c.config.Logger.Error("initial fetch failed, skipping source",
				"source", src.Name(),
				"error", err)
			continue
		}
		if len(candidates) == 0 {
			c.config.Logger.Info("initial fetch returned no items", "source", src.Name())
			continue
		}

		if newest, ok := newestPublished(candidates); ok {
			c.advanceCursor(src.Name(), newest)
		}

		c.classifyInto(ctx, src.Name(), candidates, &batch)
	}

	c.config.Logger.Info("initial fetch completed",
		"accepted", len(batch.Accepted),
		"rejected", len(batch.Rejected))
	return batch
}

// IncrementalFetch requests items strictly newer than each source's
// cursor. Candidates at or before the cursor are discarded even if the
// source claims to have filtered them. The cursor advances to the newest
// publication time among the strictly-newer candidates, and only when
// that set is non-empty.
func (c *Coordinator) IncrementalFetch(ctx context.Context) Batch {
	var batch Batch
	for _, src := range c.sources {
		cursor, hasCursor := c.Cursor(src.Name())

		opts := source.FetchOptions{}
		if hasCursor {
			opts.Since = &cursor
		}

		candidates, err := src.Fetch(ctx, opts)
		if err != nil {
			c.config.Logger.Error("incremental fetch failed, skipping source",
				"source", src.Name(),
				"error", err)
			continue
		}

		if hasCursor {
			candidates = strictlyAfter(candidates, cursor)
		}
		if len(candidates) == 0 {
			c.config.Logger.Debug("no new items", "source", src.Name())
			continue
		}

		if newest, ok := newestPublished(candidates); ok {
			c.advanceCursor(src.Name(), newest)
		}

		c.classifyInto(ctx, src.Name(), candidates, &batch)
	}

	c.config.Logger.Info("incremental fetch completed",
		"accepted", len(batch.Accepted),
		"rejected", len(batch.Rejected))
	return batch
}

// classifyInto scores candidates and appends them to the batch. All
// accepted items in one call share a single reference time for recency
// scoring. Malformed candidates are dropped with a log line.
func (c *Coordinator) classifyInto(ctx context.Context, sourceName string, candidates []feed.Item, batch *Batch) {
	now := time.Now().UTC()

	for _, item := range candidates {
		if !item.Valid() {
			c.config.Logger.Warn("dropping malformed candidate",
				"source", sourceName,
				"id", item.ID,
				"title", item.Title)
			continue
		}

		result, err := c.classifier.Classify(ctx, item.Title+" "+item.Body)
		if err != nil {
			c.config.Logger.Warn("classifier unavailable, passing item by default",
				"source", sourceName,
				"id", item.ID,
				"error", err)
			result = classify.Result{Score: failOpenScore}
		}

		item.RelevanceScore = feed.Float(result.Score)
		item.TopLabel = result.Label

		if result.Score >= c.config.MinScore {
			ranking.Rescore(&item, now, c.config.Persistence)
			batch.Accepted = append(batch.Accepted, item)
			c.config.Logger.Debug("accepted",
				"source", sourceName,
				"id", item.ID,
				"score", result.Score,
				"label", result.Label)
		} else {
			batch.Rejected = append(batch.Rejected, item)
			c.config.Logger.Debug("rejected",
				"source", sourceName,
				"id", item.ID,
				"score", result.Score)
		}
	}
}

// newestPublished returns the latest publication time among the
// candidates, ignoring candidates without one.
func newestPublished(items []feed.Item) (time.Time, bool) {
	var newest time.Time
	for _, it := range items {
		if it.PublishedAt.After(newest) {
			newest = it.PublishedAt
		}
	}
	return newest, !newest.IsZero()
}

// strictlyAfter keeps candidates published strictly after the cursor.
func strictlyAfter(items []feed.Item, cursor time.Time) []feed.Item {
	kept := items[:0:0]
	for _, it := range items {
		if it.PublishedAt.After(cursor) {
			kept = append(kept, it)
		}
	}
	return kept
}
