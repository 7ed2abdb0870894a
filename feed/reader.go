// Package feed reads pages of mirrored stories from the record store.
package feed

import (
	"context"
	"sync"
	"time"

	"newsdesk/models"
	"newsdesk/pocketbase"

	log "github.com/sirupsen/logrus"
)

// Collection is the record store collection the mirror worker fills.
const Collection = "news_feed"

// cacheTTL keeps pages warm between renders. The mirror only rewrites the
// collection every minute or so, so briefly stale pages are fine.
const cacheTTL = 45 * time.Second

// Page is one slice of the mirrored feed plus the collection's total size.
type Page struct {
	Stories []models.Story
	Total   int
}

type cacheKey struct {
	page int
	size int
}

type cacheEntry struct {
	page    Page
	fetched time.Time
}

// Reader fetches pages of stories ordered by posted time, newest first.
type Reader struct {
	pb *pocketbase.Client

	mu    sync.Mutex
	cache map[cacheKey]cacheEntry
	now   func() time.Time
}

func NewReader(pb *pocketbase.Client) *Reader {
	return &Reader{
		pb:    pb,
		cache: make(map[cacheKey]cacheEntry),
		now:   time.Now,
	}
}

// FetchPage returns the stories on the given 1-based page. Invalid page
// numbers are clamped to 1. Store failures are logged and degrade to an
// empty page so the caller can always render something.
func (r *Reader) FetchPage(ctx context.Context, page int, size int) Page {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 30
	}

	key := cacheKey{page: page, size: size}
	if cached, ok := r.lookup(key); ok {
		return cached
	}

	result, err := r.pb.List(ctx, Collection, pocketbase.ListOptions{
		Page:    page,
		PerPage: size,
		Sort:    "-postedAt",
	})
	if err != nil {
		log.WithFields(log.Fields{
			"page":  page,
			"size":  size,
			"error": err,
		}).Error("Error fetching feed page")
		return Page{Stories: []models.Story{}}
	}

	records := pocketbase.DecodeItems[models.StoryRecord](result.Items)
	stories := make([]models.Story, 0, len(records))
	for _, record := range records {
		stories = append(stories, record.Story())
	}

	fetched := Page{Stories: stories, Total: result.TotalItems}
	r.store(key, fetched)
	return fetched
}

func (r *Reader) lookup(key cacheKey) (Page, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache[key]
	if !ok || r.now().Sub(entry.fetched) > cacheTTL {
		return Page{}, false
	}
	return entry.page, true
}

func (r *Reader) store(key cacheKey, page Page) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, entry := range r.cache {
		if r.now().Sub(entry.fetched) > cacheTTL {
			delete(r.cache, k)
		}
	}
	r.cache[key] = cacheEntry{page: page, fetched: r.now()}
}
