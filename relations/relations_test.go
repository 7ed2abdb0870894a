package relations_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"newsdesk/models"
	"newsdesk/pocketbase"
	"newsdesk/relations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	userPattern    = regexp.MustCompile(`user="([^"]+)"`)
	storyIDPattern = regexp.MustCompile(`storyId="([^"]+)"`)
)

// fakeRelationStore is an in-memory stand-in for one relation collection,
// enforcing the (user, storyId) uniqueness constraint the real store has.
type fakeRelationStore struct {
	mu        sync.Mutex
	records   map[string]models.Relation
	nextID    int
	listCalls atomic.Int64
	failAll   bool
}

func newFakeRelationStore() *fakeRelationStore {
	return &fakeRelationStore{records: map[string]models.Relation{}}
}

func (f *fakeRelationStore) count(userID string, storyID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, record := range f.records {
		if record.UserID == userID && record.StoryID == storyID {
			n++
		}
	}
	return n
}

func (f *fakeRelationStore) serve(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.failAll {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")

		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == http.MethodPost:
			var record models.Relation
			require.NoError(t, json.NewDecoder(r.Body).Decode(&record))
			for _, existing := range f.records {
				if existing.UserID == record.UserID && existing.StoryID == record.StoryID {
					w.WriteHeader(http.StatusBadRequest)
					json.NewEncoder(w).Encode(map[string]any{
						"code":    400,
						"message": "Failed to create record.",
						"data": map[string]any{
							"storyId": map[string]any{"code": "validation_not_unique"},
						},
					})
					return
				}
			}
			f.nextID++
			record.ID = fmt.Sprintf("rel%d", f.nextID)
			f.records[record.ID] = record
			json.NewEncoder(w).Encode(record)

		case r.Method == http.MethodDelete:
			id := path.Base(r.URL.Path)
			if _, ok := f.records[id]; !ok {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(map[string]any{"message": "not found"})
				return
			}
			delete(f.records, id)
			w.WriteHeader(http.StatusNoContent)

		case r.Method == http.MethodGet:
			f.listCalls.Add(1)
			filter := r.URL.Query().Get("filter")
			user := ""
			if m := userPattern.FindStringSubmatch(filter); m != nil {
				user = m[1]
			}
			wanted := map[string]bool{}
			for _, m := range storyIDPattern.FindAllStringSubmatch(filter, -1) {
				wanted[m[1]] = true
			}

			matched := []models.Relation{}
			for _, record := range f.records {
				if user != "" && record.UserID != user {
					continue
				}
				if len(wanted) > 0 && !wanted[record.StoryID] {
					continue
				}
				matched = append(matched, record)
			}

			items := make([]json.RawMessage, 0, len(matched))
			for _, record := range matched {
				raw, err := json.Marshal(record)
				require.NoError(t, err)
				items = append(items, raw)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"page":       1,
				"perPage":    len(items),
				"totalItems": len(items),
				"items":      items,
			})
		}
	}))
}

type spyInvalidator struct {
	mu    sync.Mutex
	calls []string
}

func (s *spyInvalidator) Invalidate(userID string, collection relations.Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, userID+":"+string(collection))
}

func (s *spyInvalidator) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func userSession(url string, userID string) *pocketbase.Session {
	return &pocketbase.Session{
		Client: pocketbase.New(url),
		User:   &models.User{ID: userID, Email: userID + "@example.com"},
	}
}

func testStory(id int64) models.Story {
	return models.Story{
		ID:           id,
		Title:        "A story",
		URL:          "https://example.com",
		Author:       "author",
		Score:        42,
		CommentCount: 7,
		PostedAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAddCreatesSnapshotRecord(t *testing.T) {
	store := newFakeRelationStore()
	ts := store.serve(t)
	defer ts.Close()

	adapter := relations.NewAdapter(relations.Favorites, nil)
	sess := userSession(ts.URL, "u1")

	require.NoError(t, adapter.Add(context.Background(), sess, testStory(7)))

	assert.Equal(t, 1, store.count("u1", "7"))
	for _, record := range store.records {
		assert.Equal(t, "A story", record.Title)
		assert.Equal(t, 42, record.Score)
		assert.Equal(t, 7, record.CommentCount)
	}
}

func TestAddRequiresUser(t *testing.T) {
	store := newFakeRelationStore()
	ts := store.serve(t)
	defer ts.Close()

	adapter := relations.NewAdapter(relations.Favorites, nil)

	err := adapter.Add(context.Background(), pocketbase.Anonymous(pocketbase.New(ts.URL)), testStory(7))
	assert.ErrorIs(t, err, relations.ErrUnauthorized)
	// The check happens before any network call
	assert.Equal(t, int64(0), store.listCalls.Load())
	assert.Empty(t, store.records)
}

func TestDuplicateAddYieldsSingleRecord(t *testing.T) {
	store := newFakeRelationStore()
	ts := store.serve(t)
	defer ts.Close()

	adapter := relations.NewAdapter(relations.Favorites, nil)
	sess := userSession(ts.URL, "u1")

	require.NoError(t, adapter.Add(context.Background(), sess, testStory(7)))
	err := adapter.Add(context.Background(), sess, testStory(7))

	assert.ErrorIs(t, err, relations.ErrDuplicate)
	assert.Equal(t, 1, store.count("u1", "7"))
}

func TestAddThenRemoveLeavesNoRecords(t *testing.T) {
	store := newFakeRelationStore()
	ts := store.serve(t)
	defer ts.Close()

	adapter := relations.NewAdapter(relations.Favorites, nil)
	sess := userSession(ts.URL, "u1")

	require.NoError(t, adapter.Add(context.Background(), sess, testStory(7)))
	require.NoError(t, adapter.Remove(context.Background(), sess, 7))

	assert.Equal(t, 0, store.count("u1", "7"))
}

func TestRemoveMissingRelationReportsNotFound(t *testing.T) {
	store := newFakeRelationStore()
	ts := store.serve(t)
	defer ts.Close()

	adapter := relations.NewAdapter(relations.Favorites, nil)
	sess := userSession(ts.URL, "u1")

	err := adapter.Remove(context.Background(), sess, 99)
	assert.ErrorIs(t, err, relations.ErrNotFound)
}

func TestRemoveOnlyTouchesOwnUser(t *testing.T) {
	store := newFakeRelationStore()
	ts := store.serve(t)
	defer ts.Close()

	adapter := relations.NewAdapter(relations.Favorites, nil)

	require.NoError(t, adapter.Add(context.Background(), userSession(ts.URL, "u1"), testStory(7)))
	require.NoError(t, adapter.Add(context.Background(), userSession(ts.URL, "u2"), testStory(7)))

	require.NoError(t, adapter.Remove(context.Background(), userSession(ts.URL, "u1"), 7))

	assert.Equal(t, 0, store.count("u1", "7"))
	assert.Equal(t, 1, store.count("u2", "7"))
}

func TestMutationsNotifyInvalidator(t *testing.T) {
	store := newFakeRelationStore()
	ts := store.serve(t)
	defer ts.Close()

	spy := &spyInvalidator{}
	adapter := relations.NewAdapter(relations.Deferred, spy)
	sess := userSession(ts.URL, "u1")

	require.NoError(t, adapter.Add(context.Background(), sess, testStory(7)))
	require.NoError(t, adapter.Remove(context.Background(), sess, 7))

	assert.Equal(t, 2, spy.count())
	assert.Equal(t, "u1:deferred", spy.calls[0])
}

func TestDuplicateAddDoesNotNotifyInvalidator(t *testing.T) {
	store := newFakeRelationStore()
	ts := store.serve(t)
	defer ts.Close()

	spy := &spyInvalidator{}
	adapter := relations.NewAdapter(relations.Favorites, spy)
	sess := userSession(ts.URL, "u1")

	require.NoError(t, adapter.Add(context.Background(), sess, testStory(7)))
	require.ErrorIs(t, adapter.Add(context.Background(), sess, testStory(7)), relations.ErrDuplicate)

	assert.Equal(t, 1, spy.count())
}

func TestListPageRebuildsStoriesFromSnapshots(t *testing.T) {
	store := newFakeRelationStore()
	ts := store.serve(t)
	defer ts.Close()

	adapter := relations.NewAdapter(relations.Favorites, nil)
	sess := userSession(ts.URL, "u1")

	require.NoError(t, adapter.Add(context.Background(), sess, testStory(7)))

	stories, total := adapter.ListPage(context.Background(), sess, 1, 30)
	require.Len(t, stories, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, int64(7), stories[0].ID)
	assert.Equal(t, "A story", stories[0].Title)
	assert.Equal(t, 42, stories[0].Score)
}

func TestListPageDegradesOnStoreError(t *testing.T) {
	store := newFakeRelationStore()
	store.failAll = true
	ts := store.serve(t)
	defer ts.Close()

	adapter := relations.NewAdapter(relations.Favorites, nil)
	stories, total := adapter.ListPage(context.Background(), userSession(ts.URL, "u1"), 1, 30)

	assert.Empty(t, stories)
	assert.Zero(t, total)
}
