// Package ranking provides the scoring calculations used to order news
// items: an exponential recency decay and the relevance-times-recency
// final score.
package ranking

import (
	"math"
	"time"

	"github.com/onnwee/newsfeed/internal/feed"
)

// RecencyWeight computes a time-based decay factor in (0, 1].
//
// Parameters:
//   - publishedAt: The publication time asserted by the item's origin
//   - now: The reference instant; one recompute pass shares a single now
//     so all items are compared on equal footing
//   - persistence: The decay time scale; lambda = 1/persistence
//
// Formula: exp(-lambda * deltaSeconds). A persistence <= 0 disables decay
// and yields a constant weight of 1.0. Items published in the future
// relative to now are clamped to weight 1.0.
func RecencyWeight(publishedAt, now time.Time, persistence time.Duration) float64 {
	if persistence <= 0 {
		return 1.0
	}

	deltaSeconds := now.Sub(publishedAt).Seconds()
	if deltaSeconds <= 0 {
		return 1.0
	}

	lambda := 1.0 / persistence.Seconds()
	return math.Exp(-lambda * deltaSeconds)
}

// FinalScore combines a relevance score with a recency weight.
// Returns nil when the relevance score is undefined: an unclassified item
// has no final score rather than a score of zero.
func FinalScore(relevance *float64, recency float64) *float64 {
	if relevance == nil {
		return nil
	}
	score := *relevance * recency
	return &score
}

// Rescore recomputes the two derived score fields on an item in place.
// It is idempotent and pure with respect to its inputs: the same item,
// now, and persistence always produce the same weights, and nothing
// besides RecencyWeight and FinalScore is touched.
func Rescore(it *feed.Item, now time.Time, persistence time.Duration) {
	if it.RelevanceScore == nil {
		it.RecencyWeight = nil
		it.FinalScore = nil
		return
	}

	weight := RecencyWeight(it.PublishedAt, now, persistence)
	it.RecencyWeight = &weight
	it.FinalScore = FinalScore(it.RelevanceScore, weight)
}
