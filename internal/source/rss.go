package source

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/onnwee/newsfeed/internal/feed"
)

// RSSSource fetches items from a single RSS or Atom feed.
type RSSSource struct {
	name    string
	feedURL string
	parser  *gofeed.Parser
	strip   *bluemonday.Policy
}

// NewRSSSource creates a source for the given feed URL. The name becomes
// the origin tag on fetched items.
func NewRSSSource(name, feedURL string) *RSSSource {
	return &RSSSource{
		name:    name,
		feedURL: feedURL,
		parser:  gofeed.NewParser(),
		strip:   bluemonday.StrictPolicy(),
	}
}

// Name returns the origin tag for this feed.
func (s *RSSSource) Name() string {
	return s.name
}

// Fetch parses the feed and converts entries to items. Feeds rarely
// support server-side windows, so both the since filter and the limit are
// applied client-side after parsing. Entries without a parseable
// publication time are skipped.
func (s *RSSSource) Fetch(ctx context.Context, opts FetchOptions) ([]feed.Item, error) {
	parsed, err := s.parser.ParseURLWithContext(s.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", s.feedURL, err)
	}

	items := make([]feed.Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		published := entry.PublishedParsed
		if published == nil {
			published = entry.UpdatedParsed
		}
		if published == nil {
			continue
		}

		if opts.Since != nil && !published.After(*opts.Since) {
			continue
		}

		id := entry.GUID
		if id == "" {
			id = entry.Link
		}

		body := entry.Description
		if body == "" {
			body = entry.Content
		}

		items = append(items, feed.Item{
			ID:          id,
			Source:      s.name,
			Title:       entry.Title,
			Body:        strings.TrimSpace(s.strip.Sanitize(body)),
			PublishedAt: published.UTC(),
		})
	}

	// Newest first so a limit keeps the most recent entries.
	sort.Slice(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if opts.Limit != nil && len(items) > *opts.Limit {
		items = items[:*opts.Limit]
	}

	return items, nil
}
