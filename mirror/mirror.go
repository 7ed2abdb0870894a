// Package mirror keeps the record store's news_feed collection in sync with
// the news aggregator: it hydrates the newest stories through a worker pool,
// upserts them, and trims the collection to a configured maximum.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"newsdesk/config"
	"newsdesk/feed"
	"newsdesk/hackernews"
	"newsdesk/models"
	"newsdesk/pocketbase"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	storiesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsdesk_mirror_stories_created_total",
		Help: "The total number of stories created in the mirror collection",
	})

	storiesUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsdesk_mirror_stories_updated_total",
		Help: "The total number of stories updated in the mirror collection",
	})

	storiesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsdesk_mirror_stories_skipped_total",
		Help: "The total number of aggregator items skipped as non-stories",
	})

	syncErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsdesk_mirror_sync_errors_total",
		Help: "The total number of failed sync passes",
	})

	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "newsdesk_mirror_sync_duration_seconds",
		Help:    "Duration of mirror sync passes",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)

// Mirror runs sync and tidy passes against the record store. Store access
// uses a superuser token obtained fresh per pass, so an expired token never
// wedges the loop.
type Mirror struct {
	hn       *hackernews.Client
	pb       *pocketbase.Client
	cfg      config.Mirror
	identity string
	password string
}

func New(hn *hackernews.Client, pb *pocketbase.Client, cfg config.Mirror, identity string, password string) *Mirror {
	return &Mirror{
		hn:       hn,
		pb:       pb,
		cfg:      cfg,
		identity: identity,
		password: password,
	}
}

// authenticate returns a store handle for this pass. Without credentials the
// anonymous handle is used, which works against open dev instances.
func (m *Mirror) authenticate(ctx context.Context) (*pocketbase.Client, error) {
	if m.identity == "" || m.password == "" {
		return m.pb, nil
	}
	auth, err := m.pb.AuthWithPassword(ctx, pocketbase.SuperusersCollection, m.identity, m.password)
	if err != nil {
		return nil, fmt.Errorf("superuser auth: %w", err)
	}
	return m.pb.WithToken(auth.Token), nil
}

// Sync runs one mirror pass: fetch the newest story ids and upsert each
// through the worker pool. Individual story failures are logged and skipped;
// only a failure to list ids fails the pass.
func (m *Mirror) Sync(ctx context.Context) error {
	started := time.Now()

	client, err := m.authenticate(ctx)
	if err != nil {
		syncErrors.Inc()
		return err
	}

	ids, err := m.hn.NewStories(ctx, m.cfg.StoriesLimit)
	if err != nil {
		syncErrors.Inc()
		return fmt.Errorf("sync: %w", err)
	}

	log.WithFields(log.Fields{
		"count": len(ids),
	}).Info("Syncing stories from aggregator")

	jobs := make(chan int64, len(ids))
	var wg sync.WaitGroup
	wg.Add(m.cfg.Workers)

	for i := 0; i < m.cfg.Workers; i++ {
		go func() {
			defer wg.Done()
			for id := range jobs {
				m.syncStory(ctx, client, id)
			}
		}()
	}

	for _, id := range ids {
		jobs <- id
	}
	close(jobs)
	wg.Wait()

	syncDuration.Observe(time.Since(started).Seconds())
	return nil
}

func (m *Mirror) syncStory(ctx context.Context, client *pocketbase.Client, id int64) {
	item, err := m.hn.Item(ctx, id)
	if err != nil {
		log.WithFields(log.Fields{
			"id":    id,
			"error": err,
		}).Warn("Failed to fetch story")
		return
	}

	if !item.IsStory() {
		storiesSkipped.Inc()
		return
	}

	story := item.Story()
	body := models.StoryRecord{
		StoryID:      strconv.FormatInt(story.ID, 10),
		Title:        story.Title,
		URL:          story.URL,
		Author:       story.Author,
		Score:        story.Score,
		CommentCount: story.CommentCount,
		PostedAt:     models.StoreTime{Time: story.PostedAt},
	}

	filter := fmt.Sprintf(`storyId="%d"`, id)
	raw, err := client.First(ctx, feed.Collection, filter)
	switch {
	case err == nil:
		var existing models.StoryRecord
		if err := json.Unmarshal(raw, &existing); err != nil {
			log.WithFields(log.Fields{"id": id, "error": err}).Warn("Failed to decode mirrored story")
			return
		}
		if err := client.Update(ctx, feed.Collection, existing.ID, body); err != nil {
			log.WithFields(log.Fields{"id": id, "error": err}).Warn("Failed to update story")
			return
		}
		storiesUpdated.Inc()
	case pocketbase.IsNotFound(err):
		if err := client.Create(ctx, feed.Collection, body); err != nil {
			if pocketbase.IsConflict(err) {
				// Another worker created it between lookup and insert.
				return
			}
			log.WithFields(log.Fields{"id": id, "error": err}).Warn("Failed to create story")
			return
		}
		storiesCreated.Inc()
	default:
		log.WithFields(log.Fields{"id": id, "error": err}).Warn("Failed to check story existence")
	}
}

// Tidy deletes the oldest mirrored stories beyond MaxSavedStories.
func (m *Mirror) Tidy(ctx context.Context) error {
	if m.cfg.MaxSavedStories <= 0 {
		return nil
	}

	client, err := m.authenticate(ctx)
	if err != nil {
		return err
	}

	count, err := client.List(ctx, feed.Collection, pocketbase.ListOptions{
		Page:    1,
		PerPage: 1,
		Fields:  "id",
	})
	if err != nil {
		return fmt.Errorf("tidy: %w", err)
	}

	overflow := count.TotalItems - m.cfg.MaxSavedStories
	if overflow <= 0 {
		return nil
	}

	log.WithFields(log.Fields{
		"total":    count.TotalItems,
		"max":      m.cfg.MaxSavedStories,
		"overflow": overflow,
	}).Info("Tidying mirrored stories")

	perPage := overflow
	if perPage > 500 {
		perPage = 500
	}

	oldest, err := client.List(ctx, feed.Collection, pocketbase.ListOptions{
		Page:    1,
		PerPage: perPage,
		Sort:    "+postedAt",
		Fields:  "id",
	})
	if err != nil {
		return fmt.Errorf("tidy: %w", err)
	}

	deleted := 0
	for _, raw := range oldest.Items {
		var record struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &record); err != nil {
			continue
		}
		if err := client.Delete(ctx, feed.Collection, record.ID); err != nil {
			log.WithFields(log.Fields{
				"record": record.ID,
				"error":  err,
			}).Warn("Failed to delete old story")
			continue
		}
		deleted++
		// Throttle slightly so tidy does not starve the store
		time.Sleep(10 * time.Millisecond)
	}

	log.WithFields(log.Fields{
		"deleted": deleted,
	}).Info("Tidy finished")
	return nil
}

// Loop runs sync and tidy passes until the context is cancelled. Successful
// passes sleep a random duration between the configured bounds; failed
// passes back off exponentially.
func (m *Mirror) Loop(ctx context.Context) error {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = time.Second
	retry.MaxInterval = 5 * time.Minute
	retry.Multiplier = 1.5
	retry.MaxElapsedTime = 0 // Never stop retrying

	for {
		var wait time.Duration
		if err := m.runPass(ctx); err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Mirror pass failed")
			wait = retry.NextBackOff()
		} else {
			retry.Reset()
			span := m.cfg.IntervalMaxSeconds - m.cfg.IntervalMinSeconds
			wait = time.Duration(m.cfg.IntervalMinSeconds+rand.Intn(span)) * time.Second
		}

		log.WithFields(log.Fields{
			"wait": wait.String(),
		}).Info("Next mirror pass scheduled")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (m *Mirror) runPass(ctx context.Context) error {
	if err := m.Sync(ctx); err != nil {
		return err
	}
	if err := m.Tidy(ctx); err != nil {
		return err
	}
	return nil
}
