package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single inference call so a stalled classifier
// backend cannot stall a whole refresh cycle.
const DefaultTimeout = 15 * time.Second

// ZeroShotClassifier calls a zero-shot classification inference service
// over HTTP. The service scores the text against a candidate label set and
// returns labels ordered by descending score.
type ZeroShotClassifier struct {
	endpoint string
	labels   []string
	client   *http.Client
}

// NewZeroShotClassifier creates a client for the inference endpoint.
// A nil or empty label set defaults to RelevantLabels.
func NewZeroShotClassifier(endpoint string, labels []string) *ZeroShotClassifier {
	if len(labels) == 0 {
		labels = RelevantLabels
	}
	return &ZeroShotClassifier{
		endpoint: endpoint,
		labels:   labels,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
}

type zeroShotRequest struct {
	Text   string   `json:"text"`
	Labels []string `json:"labels"`
}

type zeroShotResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// Classify posts the text to the inference service and returns the top
// label and its score. Transport failures and malformed responses are
// reported as ErrUnavailable so callers can fail open.
func (c *ZeroShotClassifier) Classify(ctx context.Context, text string) (Result, error) {
	payload, err := json.Marshal(zeroShotRequest{Text: text, Labels: c.labels})
	if err != nil {
		return Result{}, fmt.Errorf("encoding classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("building classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out zeroShotResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	if len(out.Labels) == 0 || len(out.Scores) == 0 {
		return Result{}, fmt.Errorf("%w: empty response", ErrUnavailable)
	}

	return Result{Score: out.Scores[0], Label: out.Labels[0]}, nil
}
