package hackernews_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"newsdesk/hackernews"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoriesTruncatesToLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/newstories.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]int64{5, 4, 3, 2, 1})
	}))
	defer ts.Close()

	client := hackernews.New(ts.URL)

	ids, err := client.NewStories(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 4, 3}, ids)

	all, err := client.NewStories(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestNewStoriesErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := hackernews.New(ts.URL).NewStories(context.Background(), 10)
	assert.Error(t, err)
}

func TestItemFetchesByID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/item/42.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":          42,
			"type":        "story",
			"title":       "Title",
			"by":          "pg",
			"score":       100,
			"time":        1756600000,
			"url":         "https://example.com",
			"descendants": 12,
		})
	}))
	defer ts.Close()

	item, err := hackernews.New(ts.URL).Item(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), item.ID)
	assert.Equal(t, "pg", item.By)
	assert.Equal(t, 12, item.Descendants)
}

func TestIsStory(t *testing.T) {
	assert.True(t, hackernews.Item{Type: "story"}.IsStory())
	assert.True(t, hackernews.Item{Type: "link"}.IsStory())
	assert.False(t, hackernews.Item{Type: "job"}.IsStory())
	assert.False(t, hackernews.Item{Type: "comment"}.IsStory())
	assert.False(t, hackernews.Item{}.IsStory())
}

func TestItemStoryNormalization(t *testing.T) {
	item := hackernews.Item{
		ID:          42,
		Type:        "story",
		Title:       "Title",
		By:          "pg",
		Score:       100,
		Time:        1756600000,
		URL:         "https://example.com",
		Descendants: 12,
	}

	story := item.Story()
	assert.Equal(t, int64(42), story.ID)
	assert.Equal(t, "pg", story.Author)
	assert.Equal(t, 12, story.CommentCount)
	assert.Equal(t, time.Unix(1756600000, 0).UTC(), story.PostedAt)
}
