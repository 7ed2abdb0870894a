package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// storeTimeLayout is the timestamp format the record store uses on the wire.
const storeTimeLayout = "2006-01-02 15:04:05.000Z"

// StoreTime wraps time.Time with the record store's JSON encoding.
type StoreTime struct {
	time.Time
}

func (t StoreTime) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.UTC().Format(storeTimeLayout))), nil
}

func (t *StoreTime) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(storeTimeLayout, s)
	if err != nil {
		// Older records may carry plain RFC 3339 timestamps
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
	}
	t.Time = parsed
	return nil
}

// Story is a single mirrored feed item, normalized from the store's
// news_feed collection. A missing URL means a discussion-only post.
type Story struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	URL          string    `json:"url,omitempty"`
	Author       string    `json:"author"`
	Score        int       `json:"score"`
	CommentCount int       `json:"commentCount"`
	PostedAt     time.Time `json:"postedAt"`
}

// StoryRecord is the wire shape of a mirrored story in the store.
// The aggregator id is stored as text in the storyId field.
type StoryRecord struct {
	ID           string    `json:"id,omitempty"`
	StoryID      string    `json:"storyId"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	Author       string    `json:"author"`
	Score        int       `json:"score"`
	CommentCount int       `json:"commentsCount"`
	PostedAt     StoreTime `json:"postedAt"`
}

// Story converts the record to the normalized item shape.
func (r StoryRecord) Story() Story {
	id, _ := strconv.ParseInt(r.StoryID, 10, 64)
	return Story{
		ID:           id,
		Title:        r.Title,
		URL:          r.URL,
		Author:       r.Author,
		Score:        r.Score,
		CommentCount: r.CommentCount,
		PostedAt:     r.PostedAt.Time,
	}
}

// User is the authenticated identity resolved from the session. Treated as
// present-or-absent; a nil *User means anonymous.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Relation is one row of a relation collection (favorites or deferred):
// a (user, story) pair plus a denormalized snapshot of the story captured
// when the relation was created. The snapshot is write-once.
type Relation struct {
	ID           string    `json:"id,omitempty"`
	UserID       string    `json:"user"`
	StoryID      string    `json:"storyId"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	Author       string    `json:"author"`
	Score        int       `json:"score"`
	CommentCount int       `json:"commentsCount"`
	PostedAt     StoreTime `json:"postedAt"`
}

// Story rebuilds a displayable story from the relation snapshot.
func (r Relation) Story() Story {
	id, _ := strconv.ParseInt(r.StoryID, 10, 64)
	return Story{
		ID:           id,
		Title:        r.Title,
		URL:          r.URL,
		Author:       r.Author,
		Score:        r.Score,
		CommentCount: r.CommentCount,
		PostedAt:     r.PostedAt.Time,
	}
}

// NewRelation builds the snapshot row for a story owned by user.
func NewRelation(userID string, story Story) Relation {
	return Relation{
		UserID:       userID,
		StoryID:      strconv.FormatInt(story.ID, 10),
		Title:        story.Title,
		URL:          story.URL,
		Author:       story.Author,
		Score:        story.Score,
		CommentCount: story.CommentCount,
		PostedAt:     StoreTime{story.PostedAt},
	}
}

// Membership maps story ids to presence in a relation collection. The map is
// sparse: absent keys mean "not a member", false is never stored.
type Membership map[int64]bool

// StoryIDs collects the ids for a page of stories, preserving order.
func StoryIDs(stories []Story) []int64 {
	ids := make([]int64, 0, len(stories))
	for _, story := range stories {
		ids = append(ids, story.ID)
	}
	return ids
}

// Hostname extracts a display host from a story URL, dropping the www prefix.
func Hostname(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	trimmed := rawURL
	for _, prefix := range []string{"https://", "http://"} {
		trimmed = strings.TrimPrefix(trimmed, prefix)
	}
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimPrefix(trimmed, "www.")
}
