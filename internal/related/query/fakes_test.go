package query

import (
	"context"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-content/internal/related/content"
	apperrors "github.com/Adithya-Monish-Kumar-K/related-content/pkg/errors"
)

type fakeStore struct {
	mu         sync.Mutex
	items      map[int64]content.Item
	categories map[int64][]int64
	tags       map[int64][]int64
	results    []int64
	searchErr  error

	// When set, GetItem signals entered and then waits for release.
	entered chan struct{}
	release chan struct{}

	searches   []content.SearchQuery
	calls      int
	loadedWith [][]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:      make(map[int64]content.Item),
		categories: make(map[int64][]int64),
		tags:       make(map[int64][]int64),
	}
}

func (f *fakeStore) GetItem(_ context.Context, id int64) (*content.Item, error) {
	if f.release != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	it, ok := f.items[id]
	if !ok {
		return nil, apperrors.ErrItemNotFound
	}
	return &it, nil
}

func (f *fakeStore) TaxonomyTerms(_ context.Context, itemID int64, taxonomy content.Taxonomy) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if taxonomy == content.TaxonomyCategory {
		return f.categories[itemID], nil
	}
	return f.tags[itemID], nil
}

func (f *fakeStore) Search(_ context.Context, q content.SearchQuery) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.searches = append(f.searches, q)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := f.results
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return append([]int64(nil), out...), nil
}

// ItemsByIDs answers in reverse to prove callers restore the order.
func (f *fakeStore) ItemsByIDs(_ context.Context, ids []int64) ([]content.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadedWith = append(f.loadedWith, ids)
	var out []content.Item
	for i := len(ids) - 1; i >= 0; i-- {
		if it, ok := f.items[ids[i]]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeStore) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches)
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type cacheEntry struct {
	ids []int64
	ttl time.Duration
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	getErr  error
	setErr  error
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]cacheEntry)}
}

func (c *fakeCache) Get(_ context.Context, key, namespace string) ([]int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	e, ok := c.entries[namespace+":"+key]
	if !ok {
		return nil, false, nil
	}
	return append([]int64(nil), e.ids...), true, nil
}

func (c *fakeCache) Set(_ context.Context, key, namespace string, ids []int64, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.sets++
	c.entries[namespace+":"+key] = cacheEntry{ids: append([]int64(nil), ids...), ttl: ttl}
	return nil
}
