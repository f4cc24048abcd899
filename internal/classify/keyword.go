package classify

import (
	"context"
	"strings"
)

// keywordTable maps each relevant category to the terms that suggest it.
// Scoring is intentionally coarse: the keyword classifier exists so the
// pipeline works without a model-serving backend, not to compete with one.
var keywordTable = map[string][]string{
	"Outage": {
		"outage", "downtime", "down for", "unavailable", "offline",
	},
	"Security Incident": {
		"breach", "security incident", "compromised", "ransomware", "attack",
	},
	"Vulnerability": {
		"vulnerability", "cve", "exploit", "zero-day", "patch",
	},
	"Major Bug": {
		"bug", "regression", "crash", "defect",
	},
	"Performance Degradation": {
		"degradation", "slow", "high load", "performance",
	},
	"Data Loss": {
		"data loss", "lost data", "deleted",
	},
	"Deprecation/EOL": {
		"deprecated", "deprecation", "end of life", "end-of-life", "eol", "sunset",
	},
	"Database Bug": {
		"database", "corruption", "corrupt",
	},
	"System/Servers Down": {
		"servers down", "server down", "data center", "datacenter",
	},
	"Latency Spikes": {
		"latency", "spike", "timeout",
	},
	"Job Failure": {
		"job failed", "job failure", "pipeline failed", "failed build",
	},
}

// KeywordClassifier scores text by keyword hits against the category
// table. It never errors, so its callers never exercise the fail-open
// path.
type KeywordClassifier struct{}

// NewKeywordClassifier creates the local keyword scorer.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify counts keyword hits per category and returns the best category
// with a score that saturates at 1.0. Text with no hits scores 0 with no
// label.
func (c *KeywordClassifier) Classify(_ context.Context, text string) (Result, error) {
	lowered := strings.ToLower(text)

	best := Result{}
	for label, terms := range keywordTable {
		hits := 0
		for _, term := range terms {
			if strings.Contains(lowered, term) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}

		// One hit is a weak signal, three or more a confident one.
		score := float64(hits) / 3.0
		if score > 1.0 {
			score = 1.0
		}
		if score > best.Score || (score == best.Score && best.Label == "") {
			best = Result{Score: score, Label: label}
		}
	}

	return best, nil
}
