// Package hackernews is a minimal client for the public Hacker News API,
// used by the mirror worker to hydrate new stories.
package hackernews

import (
	"context"
	"fmt"
	"time"

	"newsdesk/models"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is the public Firebase-hosted API endpoint.
const DefaultBaseURL = "https://hacker-news.firebaseio.com/v0"

// Item is the aggregator's wire shape for a single item.
type Item struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	By          string `json:"by"`
	Score       int    `json:"score"`
	Time        int64  `json:"time"`
	URL         string `json:"url"`
	Descendants int    `json:"descendants"`
}

// IsStory reports whether the item should be mirrored. Jobs, polls and
// comments are skipped.
func (i Item) IsStory() bool {
	return i.Type == "story" || i.Type == "link"
}

// Story normalizes the item into the app's story shape.
func (i Item) Story() models.Story {
	return models.Story{
		ID:           i.ID,
		Title:        i.Title,
		URL:          i.URL,
		Author:       i.By,
		Score:        i.Score,
		CommentCount: i.Descendants,
		PostedAt:     time.Unix(i.Time, 0).UTC(),
	}
}

type Client struct {
	rc *resty.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		rc: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second),
	}
}

// NewStories returns the ids of the newest stories, truncated to limit.
func (c *Client) NewStories(ctx context.Context, limit int) ([]int64, error) {
	var ids []int64
	resp, err := c.rc.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetResult(&ids).
		Get("/newstories.json")
	if err != nil {
		return nil, fmt.Errorf("fetch new stories: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch new stories: status %d", resp.StatusCode())
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Item fetches one item by id.
func (c *Client) Item(ctx context.Context, id int64) (Item, error) {
	var item Item
	resp, err := c.rc.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetResult(&item).
		Get(fmt.Sprintf("/item/%d.json", id))
	if err != nil {
		return Item{}, fmt.Errorf("fetch item %d: %w", id, err)
	}
	if resp.IsError() {
		return Item{}, fmt.Errorf("fetch item %d: status %d", id, resp.StatusCode())
	}
	return item, nil
}
