// Package classify provides the relevance classifier interface and its
// implementations: a remote zero-shot inference client and a local keyword
// scorer. The aggregation pipeline treats a classifier as an opaque oracle;
// when it fails, the ingestion coordinator falls back to accepting the item
// with full confidence rather than blocking ingestion.
package classify

import (
	"context"
	"errors"
)

// Result is a single classification outcome.
type Result struct {
	// Score is the confidence that the text matches any relevant
	// category, in [0, 1].
	Score float64
	// Label is the best-matching category, empty when none applies.
	Label string
}

// Classifier scores free text for topical relevance.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// ErrUnavailable indicates the classifier backend cannot be reached or
// returned an unusable response. Callers apply the fail-open policy.
var ErrUnavailable = errors.New("classifier unavailable")

// RelevantLabels is the candidate category set scored against each item.
// The categories target incidents an IT operations team needs to act on.
var RelevantLabels = []string{
	"Outage",
	"Security Incident",
	"Vulnerability",
	"Major Bug",
	"Performance Degradation",
	"Data Loss",
	"Deprecation/EOL",
	"Malfunction/Issue",
	"Database Bug",
	"System/Servers Down",
	"Data corruption",
	"Latency Spikes",
	"Job Failure",
}
