package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/onnwee/newsfeed/internal/feed"
)

const (
	redditBaseURL = "https://www.reddit.com"
	redditUA      = "newsfeed-bot/0.1"

	// incrementalBatchSize is the listing size requested on incremental
	// fetches. The listing endpoint has no since parameter, so a recent
	// batch is fetched and filtered client-side.
	incrementalBatchSize = 50
)

// RedditSource fetches new posts from a single subreddit's /new listing.
type RedditSource struct {
	subreddit string
	name      string
	baseURL   string
	client    *http.Client
}

// NewRedditSource creates a source for the given subreddit. The origin tag
// is "reddit/<subreddit>".
func NewRedditSource(subreddit string) *RedditSource {
	return &RedditSource{
		subreddit: subreddit,
		name:      "reddit/" + subreddit,
		baseURL:   redditBaseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the origin tag for this subreddit.
func (s *RedditSource) Name() string {
	return s.name
}

// Fetch requests the subreddit's newest posts. The since filter is applied
// client-side because the listing API cannot express it; the limit is
// passed through to the API on initial fetches.
func (s *RedditSource) Fetch(ctx context.Context, opts FetchOptions) ([]feed.Item, error) {
	limit := incrementalBatchSize
	if opts.Since == nil && opts.Limit != nil {
		limit = *opts.Limit
	}
	url := fmt.Sprintf("%s/r/%s/new.json?limit=%d", s.baseURL, s.subreddit, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building reddit request: %w", err)
	}
	req.Header.Set("User-Agent", redditUA)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching r/%s: %w", s.subreddit, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching r/%s: unexpected status %d", s.subreddit, resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decoding r/%s listing: %w", s.subreddit, err)
	}

	items := make([]feed.Item, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		published := time.Unix(int64(post.CreatedUTC), 0).UTC()

		if opts.Since != nil && !published.After(*opts.Since) {
			continue
		}

		items = append(items, feed.Item{
			ID:          post.ID,
			Source:      s.name,
			Title:       post.Title,
			Body:        post.SelfText,
			PublishedAt: published,
		})
	}

	return items, nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	SelfText   string  `json:"selftext"`
	CreatedUTC float64 `json:"created_utc"`
}
