// Package relations manages the per-user relation collections: favorites and
// deferred (read later). Each relation row links a user to a story id plus a
// write-once snapshot of the story taken when the relation was created, so
// the lists stay renderable after the story scrolls out of the mirror.
package relations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"newsdesk/models"
	"newsdesk/pocketbase"

	log "github.com/sirupsen/logrus"
)

// Collection names a relation collection in the record store.
type Collection string

const (
	Favorites Collection = "favorites"
	Deferred  Collection = "deferred"
)

var (
	// ErrUnauthorized means no acting user was present. Checked before any
	// network call.
	ErrUnauthorized = errors.New("no authenticated user")

	// ErrDuplicate means the store rejected an add because the (user, story)
	// pair already exists. Benign under concurrent double submission.
	ErrDuplicate = errors.New("relation already exists")

	// ErrNotFound means a remove targeted a relation that does not exist.
	// Treated as a no-op by callers.
	ErrNotFound = errors.New("relation does not exist")
)

// Invalidator drops cached page renderings after a relation mutation, so the
// next navigation to the feed or the collection's listing reflects the
// change. Implemented by the server's page cache.
type Invalidator interface {
	Invalidate(userID string, collection Collection)
}

// Adapter performs relation operations against one collection. All
// operations act through the session's store handle, scoped to the session
// user by the store's own access rules.
type Adapter struct {
	collection  Collection
	invalidator Invalidator
}

func NewAdapter(collection Collection, invalidator Invalidator) *Adapter {
	return &Adapter{collection: collection, invalidator: invalidator}
}

func (a *Adapter) Collection() Collection {
	return a.collection
}

// Add creates a relation row with a snapshot of the story. Returns
// ErrUnauthorized without touching the network when the session is
// anonymous, ErrDuplicate when the store reports a uniqueness conflict.
func (a *Adapter) Add(ctx context.Context, sess *pocketbase.Session, story models.Story) error {
	if !sess.Authenticated() {
		return ErrUnauthorized
	}

	record := models.NewRelation(sess.User.ID, story)
	if err := sess.Client.Create(ctx, string(a.collection), record); err != nil {
		if pocketbase.IsConflict(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("add to %s: %w", a.collection, err)
	}

	log.WithFields(log.Fields{
		"collection": a.collection,
		"user":       sess.User.ID,
		"storyId":    record.StoryID,
	}).Info("Added relation")

	a.invalidate(sess.User.ID)
	return nil
}

// Remove looks up the unique relation row for (user, storyID) and deletes
// it. Returns ErrNotFound when no such row exists. The lookup and delete are
// two round trips; a concurrent removal between them also ends in
// ErrNotFound.
func (a *Adapter) Remove(ctx context.Context, sess *pocketbase.Session, storyID int64) error {
	if !sess.Authenticated() {
		return ErrUnauthorized
	}

	filter := fmt.Sprintf(`user="%s" && storyId="%d"`, sess.User.ID, storyID)
	raw, err := sess.Client.First(ctx, string(a.collection), filter)
	if err != nil {
		if pocketbase.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("find in %s: %w", a.collection, err)
	}

	var record models.Relation
	if err := json.Unmarshal(raw, &record); err != nil {
		return fmt.Errorf("decode %s record: %w", a.collection, err)
	}

	if err := sess.Client.Delete(ctx, string(a.collection), record.ID); err != nil {
		if pocketbase.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove from %s: %w", a.collection, err)
	}

	log.WithFields(log.Fields{
		"collection": a.collection,
		"user":       sess.User.ID,
		"storyId":    storyID,
	}).Info("Removed relation")

	a.invalidate(sess.User.ID)
	return nil
}

// ListPage returns one page of the user's relations as stories rebuilt from
// the snapshots, newest relation first, plus the total relation count. Reads
// degrade to an empty page on store failure.
func (a *Adapter) ListPage(ctx context.Context, sess *pocketbase.Session, page int, size int) ([]models.Story, int) {
	if !sess.Authenticated() {
		return []models.Story{}, 0
	}
	if page < 1 {
		page = 1
	}

	result, err := sess.Client.List(ctx, string(a.collection), pocketbase.ListOptions{
		Page:    page,
		PerPage: size,
		Sort:    "-created",
		Filter:  fmt.Sprintf(`user="%s"`, sess.User.ID),
	})
	if err != nil {
		log.WithFields(log.Fields{
			"collection": a.collection,
			"user":       sess.User.ID,
			"error":      err,
		}).Error("Error listing relations")
		return []models.Story{}, 0
	}

	records := pocketbase.DecodeItems[models.Relation](result.Items)
	stories := make([]models.Story, 0, len(records))
	for _, record := range records {
		stories = append(stories, record.Story())
	}
	return stories, result.TotalItems
}

func (a *Adapter) invalidate(userID string) {
	if a.invalidator != nil {
		a.invalidator.Invalidate(userID, a.collection)
	}
}
