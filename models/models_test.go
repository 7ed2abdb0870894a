package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"newsdesk/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreTimeRoundTrip(t *testing.T) {
	original := models.StoreTime{Time: time.Date(2026, 8, 30, 14, 5, 9, 120_000_000, time.UTC)}

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Equal(t, `"2026-08-30 14:05:09.120Z"`, string(data))

	var decoded models.StoreTime
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, original.Equal(decoded.Time))
}

func TestStoreTimeUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "store layout",
			input: `"2026-08-30 14:05:09.120Z"`,
			want:  time.Date(2026, 8, 30, 14, 5, 9, 120_000_000, time.UTC),
		},
		{
			name:  "rfc3339 fallback",
			input: `"2026-08-30T14:05:09Z"`,
			want:  time.Date(2026, 8, 30, 14, 5, 9, 0, time.UTC),
		},
		{
			name:  "empty string is zero time",
			input: `""`,
			want:  time.Time{},
		},
		{
			name:    "garbage",
			input:   `"yesterday"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got models.StoreTime
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got.Time))
		})
	}
}

func TestStoryRecordStory(t *testing.T) {
	record := models.StoryRecord{
		ID:           "rec1",
		StoryID:      "40001234",
		Title:        "Title",
		URL:          "https://example.com",
		Author:       "pg",
		Score:        128,
		CommentCount: 64,
		PostedAt:     models.StoreTime{Time: time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)},
	}

	story := record.Story()
	assert.Equal(t, int64(40001234), story.ID)
	assert.Equal(t, "Title", story.Title)
	assert.Equal(t, 128, story.Score)
	assert.Equal(t, 64, story.CommentCount)
}

func TestNewRelationSnapshotsStory(t *testing.T) {
	story := models.Story{
		ID:           7,
		Title:        "Title",
		URL:          "https://example.com",
		Author:       "pg",
		Score:        10,
		CommentCount: 3,
		PostedAt:     time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
	}

	relation := models.NewRelation("u1", story)
	assert.Equal(t, "u1", relation.UserID)
	assert.Equal(t, "7", relation.StoryID)
	assert.Equal(t, story, relation.Story())
}

func TestStoryIDsPreservesOrder(t *testing.T) {
	stories := []models.Story{{ID: 3}, {ID: 1}, {ID: 2}}
	assert.Equal(t, []int64{3, 1, 2}, models.StoryIDs(stories))
	assert.Empty(t, models.StoryIDs(nil))
}

func TestHostname(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.example.com/a/b", "example.com"},
		{"http://example.org", "example.org"},
		{"https://blog.example.net/post?id=1", "blog.example.net"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, models.Hostname(tt.url), tt.url)
	}
}
