package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/newsfeed/internal/classify"
	"github.com/onnwee/newsfeed/internal/feed"
	"github.com/onnwee/newsfeed/internal/source"
)

var base = time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)

// scriptedSource returns canned items and records the options of each
// fetch call.
type scriptedSource struct {
	name  string
	items []feed.Item
	err   error
	calls []source.FetchOptions
}

func (s *scriptedSource) Name() string { return s.name }

func (s *scriptedSource) Fetch(ctx context.Context, opts source.FetchOptions) ([]feed.Item, error) {
	s.calls = append(s.calls, opts)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]feed.Item, len(s.items))
	copy(out, s.items)
	return out, nil
}

// scoreByTitle maps the leading word of the text to a fixed confidence.
type scoreByTitle struct {
	scores map[string]float64
	err    error
}

func (c *scoreByTitle) Classify(ctx context.Context, text string) (classify.Result, error) {
	if c.err != nil {
		return classify.Result{}, c.err
	}
	word, _, _ := strings.Cut(text, " ")
	return classify.Result{Score: c.scores[word], Label: "scripted"}, nil
}

func item(id string, publishedAt time.Time) feed.Item {
	return feed.Item{
		ID:          id,
		Source:      "scripted",
		Title:       id,
		PublishedAt: publishedAt,
	}
}

func TestInitialFetch_ClassifiesAndFilters(t *testing.T) {
	src := &scriptedSource{
		name: "scripted",
		items: []feed.Item{
			item("a", base),
			item("b", base.Add(time.Hour)),
			item("c", base.Add(30*time.Minute)),
		},
	}
	classifier := &scoreByTitle{scores: map[string]float64{"a": 0.5, "b": 0.9, "c": 0.02}}
	c := NewCoordinator([]source.Source{src}, classifier, Config{
		MinScore:     0.08,
		InitialLimit: 5,
		Persistence:  24 * time.Hour,
	})

	batch := c.InitialFetch(context.Background())

	if len(batch.Accepted) != 2 {
		t.Fatalf("expected 2 accepted, got %d", len(batch.Accepted))
	}
	if len(batch.Rejected) != 1 || batch.Rejected[0].ID != "c" {
		t.Fatalf("expected c rejected, got %+v", batch.Rejected)
	}

	for _, it := range batch.Accepted {
		if it.RelevanceScore == nil || it.RecencyWeight == nil || it.FinalScore == nil {
			t.Errorf("accepted item %s missing derived scores", it.ID)
		}
		if it.TopLabel != "scripted" {
			t.Errorf("accepted item %s missing label: %q", it.ID, it.TopLabel)
		}
	}

	// Rejected items keep their relevance score but no recency scoring.
	if batch.Rejected[0].RelevanceScore == nil || *batch.Rejected[0].RelevanceScore != 0.02 {
		t.Errorf("rejected item missing relevance score: %+v", batch.Rejected[0])
	}
	if batch.Rejected[0].FinalScore != nil {
		t.Errorf("rejected item should not carry a final score")
	}

	// Initial fetch passes the configured limit and no since bound.
	if len(src.calls) != 1 {
		t.Fatalf("expected one fetch, got %d", len(src.calls))
	}
	if src.calls[0].Limit == nil || *src.calls[0].Limit != 5 {
		t.Errorf("expected limit 5, got %v", src.calls[0].Limit)
	}
	if src.calls[0].Since != nil {
		t.Errorf("expected no since bound on initial fetch")
	}
}

func TestInitialFetch_CursorCoversRejectedCandidates(t *testing.T) {
	// The newest candidate is below threshold; the cursor must still
	// advance past it so the next cycle does not refetch it.
	src := &scriptedSource{
		name: "scripted",
		items: []feed.Item{
			item("a", base),
			item("c", base.Add(2*time.Hour)),
		},
	}
	classifier := &scoreByTitle{scores: map[string]float64{"a": 0.9, "c": 0.0}}
	c := NewCoordinator([]source.Source{src}, classifier, Config{MinScore: 0.08, InitialLimit: 5})

	c.InitialFetch(context.Background())

	cursor, ok := c.Cursor("scripted")
	if !ok {
		t.Fatal("expected a cursor after initial fetch")
	}
	if !cursor.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("expected cursor at newest candidate, got %v", cursor)
	}
}

func TestIncrementalFetch_AdvancesCursor(t *testing.T) {
	src := &scriptedSource{
		name: "scripted",
		items: []feed.Item{
			item("a", base),
			item("b", base.Add(time.Hour)),
		},
	}
	classifier := &scoreByTitle{scores: map[string]float64{"a": 0.5, "b": 0.9}}
	c := NewCoordinator([]source.Source{src}, classifier, Config{MinScore: 0.08, InitialLimit: 5})

	c.InitialFetch(context.Background())

	cursor, _ := c.Cursor("scripted")
	if !cursor.Equal(base.Add(time.Hour)) {
		t.Fatalf("expected cursor at 11:00, got %v", cursor)
	}

	// A replayed batch at or before the cursor must not move it and
	// must produce no candidates.
	batch := c.IncrementalFetch(context.Background())
	if len(batch.Accepted) != 0 || len(batch.Rejected) != 0 {
		t.Errorf("expected empty batch for replayed items, got %+v", batch)
	}
	cursor, _ = c.Cursor("scripted")
	if !cursor.Equal(base.Add(time.Hour)) {
		t.Errorf("cursor moved on replay: %v", cursor)
	}

	// The incremental fetch must have passed the cursor as the bound.
	last := src.calls[len(src.calls)-1]
	if last.Since == nil || !last.Since.Equal(base.Add(time.Hour)) {
		t.Errorf("expected since bound at cursor, got %v", last.Since)
	}

	// Genuinely newer items advance the cursor.
	src.items = append(src.items, item("d", base.Add(3*time.Hour)))
	classifier.scores["d"] = 0.6
	batch = c.IncrementalFetch(context.Background())
	if len(batch.Accepted) != 1 || batch.Accepted[0].ID != "d" {
		t.Fatalf("expected only d accepted, got %+v", batch.Accepted)
	}
	cursor, _ = c.Cursor("scripted")
	if !cursor.Equal(base.Add(3 * time.Hour)) {
		t.Errorf("expected cursor at 13:00, got %v", cursor)
	}
}

func TestIncrementalFetch_NoCursorFetchesUnbounded(t *testing.T) {
	src := &scriptedSource{
		name:  "scripted",
		items: []feed.Item{item("a", base)},
	}
	classifier := &scoreByTitle{scores: map[string]float64{"a": 0.9}}
	c := NewCoordinator([]source.Source{src}, classifier, Config{MinScore: 0.08})

	batch := c.IncrementalFetch(context.Background())

	if src.calls[0].Since != nil {
		t.Errorf("expected no since bound without a cursor, got %v", src.calls[0].Since)
	}
	if len(batch.Accepted) != 1 {
		t.Errorf("expected the candidate accepted, got %d", len(batch.Accepted))
	}
	if cursor, ok := c.Cursor("scripted"); !ok || !cursor.Equal(base) {
		t.Errorf("expected cursor established at %v, got %v (%v)", base, cursor, ok)
	}
}

func TestIncrementalFetch_DiscardsNonCompliantSourceItems(t *testing.T) {
	// The source ignores the since bound and replays old items mixed
	// with one new one. Only the strictly newer item may pass.
	src := &scriptedSource{
		name:  "scripted",
		items: []feed.Item{item("b", base.Add(time.Hour))},
	}
	classifier := &scoreByTitle{scores: map[string]float64{"b": 0.9, "e": 0.9}}
	c := NewCoordinator([]source.Source{src}, classifier, Config{MinScore: 0.08, InitialLimit: 5})
	c.InitialFetch(context.Background())

	src.items = []feed.Item{
		item("b", base.Add(time.Hour)),
		item("e", base.Add(2*time.Hour)),
	}
	batch := c.IncrementalFetch(context.Background())

	if len(batch.Accepted) != 1 || batch.Accepted[0].ID != "e" {
		t.Fatalf("expected only strictly newer item e, got %+v", batch.Accepted)
	}
}

func TestFetch_FailedSourceIsIsolated(t *testing.T) {
	broken := &scriptedSource{name: "broken", err: errors.New("connection refused")}
	healthy := &scriptedSource{name: "healthy", items: []feed.Item{item("a", base)}}
	classifier := &scoreByTitle{scores: map[string]float64{"a": 0.9}}
	c := NewCoordinator([]source.Source{broken, healthy}, classifier, Config{MinScore: 0.08, InitialLimit: 5})

	batch := c.InitialFetch(context.Background())

	if len(batch.Accepted) != 1 {
		t.Fatalf("expected the healthy source's item, got %d accepted", len(batch.Accepted))
	}
	if _, ok := c.Cursor("broken"); ok {
		t.Error("failed source must not gain a cursor")
	}
	if _, ok := c.Cursor("healthy"); !ok {
		t.Error("healthy source must gain a cursor")
	}
}

func TestClassify_FailOpen(t *testing.T) {
	src := &scriptedSource{name: "scripted", items: []feed.Item{item("a", base)}}
	classifier := &scoreByTitle{err: classify.ErrUnavailable}
	c := NewCoordinator([]source.Source{src}, classifier, Config{MinScore: 0.99, InitialLimit: 5})

	batch := c.InitialFetch(context.Background())

	if len(batch.Accepted) != 1 {
		t.Fatalf("expected fail-open acceptance, got %d accepted, %d rejected",
			len(batch.Accepted), len(batch.Rejected))
	}
	got := batch.Accepted[0]
	if got.RelevanceScore == nil || *got.RelevanceScore != 1.0 {
		t.Errorf("expected substituted confidence 1.0, got %v", got.RelevanceScore)
	}
	if got.TopLabel != "" {
		t.Errorf("expected no label on fail-open, got %q", got.TopLabel)
	}
}

func TestClassify_DropsMalformedCandidates(t *testing.T) {
	src := &scriptedSource{
		name: "scripted",
		items: []feed.Item{
			{ID: "", Source: "scripted", Title: "no id", PublishedAt: base},
			{ID: "no-time", Source: "scripted", Title: "no-time"},
			item("a", base),
		},
	}
	classifier := &scoreByTitle{scores: map[string]float64{"a": 0.9}}
	c := NewCoordinator([]source.Source{src}, classifier, Config{MinScore: 0.08, InitialLimit: 5})

	batch := c.InitialFetch(context.Background())

	if len(batch.Accepted) != 1 || batch.Accepted[0].ID != "a" {
		t.Fatalf("expected only the well-formed candidate, got %+v", batch.Accepted)
	}
	if len(batch.Rejected) != 0 {
		t.Errorf("malformed candidates must be dropped, not rejected: %+v", batch.Rejected)
	}
}

func TestCursor_MonotonicNonDecreasing(t *testing.T) {
	c := NewCoordinator(nil, &scoreByTitle{}, Config{})

	c.advanceCursor("s", base.Add(time.Hour))
	c.advanceCursor("s", base)

	cursor, _ := c.Cursor("s")
	if !cursor.Equal(base.Add(time.Hour)) {
		t.Errorf("cursor regressed to %v", cursor)
	}

	c.advanceCursor("s", base.Add(2*time.Hour))
	cursor, _ = c.Cursor("s")
	if !cursor.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("cursor failed to advance: %v", cursor)
	}
}
