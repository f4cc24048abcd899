// Package feed defines the news item data model shared by the ingestion
// pipeline, the accepted-item store, and the HTTP API.
package feed

import (
	"math"
	"time"
)

// Item represents a single piece of content produced by a source.
// The three score fields are pointers because they are genuinely optional:
// an item that has not been classified yet has no relevance score, and an
// item without a relevance score can never have a final score. A nil final
// score sorts below any real score, including legitimately low ones.
type Item struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Title  string `json:"title"`
	Body   string `json:"body,omitempty"`

	PublishedAt time.Time `json:"published_at"`

	// RelevanceScore is set once by the relevance classifier, in [0, 1].
	RelevanceScore *float64 `json:"relevance_score,omitempty"`
	// RecencyWeight is recomputed on every refresh, in (0, 1].
	RecencyWeight *float64 `json:"recency_weight,omitempty"`
	// FinalScore is RelevanceScore * RecencyWeight. It is defined exactly
	// when both operands are defined.
	FinalScore *float64 `json:"final_score,omitempty"`
	// TopLabel is the best-matching category reported by the classifier.
	TopLabel string `json:"top_label,omitempty"`
}

// Valid reports whether the item carries the fields required for ingestion.
// Candidates missing an ID or a publication time are dropped by the
// coordinator rather than aborting the cycle.
func (it *Item) Valid() bool {
	return it.ID != "" && !it.PublishedAt.IsZero()
}

// ScoreOrNegInf returns the final score, treating an undefined score as
// negative infinity so unscored items order below every scored item.
func (it *Item) ScoreOrNegInf() float64 {
	if it.FinalScore == nil {
		return math.Inf(-1)
	}
	return *it.FinalScore
}

// Less defines the ranked ordering used by retrieval and eviction:
// final score descending, publication time descending as a tie-break.
func Less(a, b *Item) bool {
	sa, sb := a.ScoreOrNegInf(), b.ScoreOrNegInf()
	if sa != sb {
		return sa > sb
	}
	return a.PublishedAt.After(b.PublishedAt)
}

// Float returns a pointer to v. Convenience for building items with
// literal scores.
func Float(v float64) *float64 {
	return &v
}
