package source

import (
	"context"
	"sort"
	"time"

	"github.com/onnwee/newsfeed/internal/feed"
)

// StaticSource serves a fixed set of items. It backs local runs without
// network access and provides deterministic fixtures for tests.
type StaticSource struct {
	name  string
	items []feed.Item
}

// NewStaticSource creates a source over the given items. Items are kept
// sorted by publication time ascending.
func NewStaticSource(name string, items []feed.Item) *StaticSource {
	sorted := make([]feed.Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.Before(sorted[j].PublishedAt)
	})
	return &StaticSource{name: name, items: sorted}
}

// Name returns the origin tag for this source.
func (s *StaticSource) Name() string {
	return s.name
}

// Fetch returns items strictly newer than Since, or the newest Limit items
// when no lower bound is given.
func (s *StaticSource) Fetch(_ context.Context, opts FetchOptions) ([]feed.Item, error) {
	if opts.Since != nil {
		var out []feed.Item
		for _, it := range s.items {
			if it.PublishedAt.After(*opts.Since) {
				out = append(out, it)
			}
		}
		return out, nil
	}

	if opts.Limit != nil && len(s.items) > *opts.Limit {
		return append([]feed.Item(nil), s.items[len(s.items)-*opts.Limit:]...), nil
	}
	return append([]feed.Item(nil), s.items...), nil
}

// DemoItems returns the synthetic incident items used when no real sources
// are configured.
func DemoItems(origin string) []feed.Item {
	day := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	return []feed.Item{
		{
			ID:          "synth-1",
			Source:      origin,
			Title:       "Critical Outage in Data Center",
			Body:        "A major outage has impacted the main data center, causing downtime for multiple services.",
			PublishedAt: at(10, 0),
		},
		{
			ID:          "synth-2",
			Source:      origin,
			Title:       "Severe Latency Issue Detected",
			Body:        "Users are experiencing severe latency spikes across the network.",
			PublishedAt: at(11, 30),
		},
		{
			ID:          "synth-3",
			Source:      origin,
			Title:       "Cloud Provider Outage Impacts Multiple Services",
			Body:        "A major cloud provider experiences a widespread outage affecting various customer services globally.",
			PublishedAt: at(9, 0),
		},
		{
			ID:          "synth-4",
			Source:      origin,
			Title:       "Database Bug Causes Data Corruption",
			Body:        "A bug in the database system has led to data corruption in several tables.",
			PublishedAt: at(12, 0),
		},
		{
			ID:          "synth-5",
			Source:      origin,
			Title:       "Major Data Breach Discovered",
			Body:        "Security firm reports a massive data breach affecting millions of users.",
			PublishedAt: at(13, 0),
		},
		{
			ID:          "synth-6",
			Source:      origin,
			Title:       "Performance Degradation in Web Services",
			Body:        "Web services are experiencing performance degradation due to high load.",
			PublishedAt: at(13, 15),
		},
	}
}
