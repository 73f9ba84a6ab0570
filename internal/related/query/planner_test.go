package query

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-content/internal/related/content"
	"github.com/Adithya-Monish-Kumar-K/related-content/internal/related/text"
	apperrors "github.com/Adithya-Monish-Kumar-K/related-content/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/tracing"
)

const foxBody = "The quick brown fox jumps over the lazy dog the fox runs"

func testConfig() Config {
	return Config{
		Defaults:        Defaults{PostsPerPage: 10},
		MaxPostsPerPage: 50,
		CacheTTL:        3600 * time.Second,
		CacheNamespace:  "mlt",
	}
}

func foxStore() *fakeStore {
	store := newFakeStore()
	store.items[1] = content.Item{ID: 1, Title: "Fox", Body: foxBody}
	store.categories[1] = []int64{30, 31}
	store.tags[1] = []int64{70}
	store.results = []int64{11, 12, 13, 14, 15}
	return store
}

func TestRunEndToEnd(t *testing.T) {
	store := foxStore()
	cache := newFakeCache()
	p := NewPlanner(store, cache, text.NewTokenizer(nil), testConfig())

	rs, err := p.Run(context.Background(), QueryArgs{PostsPerPage: 2}, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.searches) != 1 {
		t.Fatalf("expected 1 search, got %d", len(store.searches))
	}
	q := store.searches[0]
	if q.Text != "fox" || q.CategoryID != 30 || q.Limit != 3 {
		t.Errorf("search = %+v, want keyword fox, category 30, limit 3", q)
	}
	if want := []int64{11, 12}; !reflect.DeepEqual(rs.IDs, want) {
		t.Errorf("IDs = %v, want %v", rs.IDs, want)
	}
	if rs.CacheHit {
		t.Error("first run must not be a cache hit")
	}
	if rs.Keyword != "fox" || rs.CategoryID != 30 || rs.TagID != 70 {
		t.Errorf("metadata = %+v", rs)
	}

	entry, ok := cache.entries["mlt:"+rs.CacheKey]
	if !ok {
		t.Fatalf("result not cached under %s", rs.CacheKey)
	}
	if entry.ttl != time.Hour {
		t.Errorf("ttl = %s, want 1h", entry.ttl)
	}
	if !reflect.DeepEqual(entry.ids, rs.IDs) {
		t.Errorf("cached %v, returned %v", entry.ids, rs.IDs)
	}
}

func TestRunExcludesReferenceItem(t *testing.T) {
	store := foxStore()
	store.results = []int64{11, 1, 12, 13}
	p := NewPlanner(store, newFakeCache(), nil, testConfig())

	rs, err := p.Run(context.Background(), QueryArgs{PostsPerPage: 3}, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []int64{11, 12, 13}; !reflect.DeepEqual(rs.IDs, want) {
		t.Errorf("IDs = %v, want %v", rs.IDs, want)
	}
}

func TestRunCacheIdempotence(t *testing.T) {
	store := foxStore()
	cache := newFakeCache()
	p := NewPlanner(store, cache, nil, testConfig())
	ctx := context.Background()

	first, err := p.Run(ctx, QueryArgs{PostsPerPage: 2}, 1)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	callsAfterFirst := store.callCount()

	second, err := p.Run(ctx, QueryArgs{PostsPerPage: 2}, 1)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if store.callCount() != callsAfterFirst {
		t.Errorf("content store called again on cache hit (%d -> %d)", callsAfterFirst, store.callCount())
	}
	if !second.CacheHit {
		t.Error("second run should be a cache hit")
	}
	if !reflect.DeepEqual(first.IDs, second.IDs) {
		t.Errorf("cached %v differs from computed %v", second.IDs, first.IDs)
	}
	if hits, misses := p.Stats(); hits != 1 || misses != 1 {
		t.Errorf("Stats() = %d hits, %d misses", hits, misses)
	}
}

func TestRunExplicitReferenceOverridesContext(t *testing.T) {
	store := foxStore()
	store.items[2] = content.Item{ID: 2, Body: "Sailing sailing boats harbor"}
	store.categories[2] = []int64{40}
	p := NewPlanner(store, newFakeCache(), nil, testConfig())

	if _, err := p.Run(context.Background(), QueryArgs{P: 2}, 1); err != nil {
		t.Fatalf("Run: %v", err)
	}
	q := store.searches[0]
	if q.Text != "sailing" || q.CategoryID != 40 || q.Limit != 11 {
		t.Errorf("search = %+v", q)
	}
}

func TestRunEmptyCachedEntryRecomputes(t *testing.T) {
	store := foxStore()
	cache := newFakeCache()
	p := NewPlanner(store, cache, nil, testConfig())

	args := QueryArgs{PostsPerPage: 2}.Merge(testConfig().Defaults, 1)
	key, _ := CacheKey(args)
	cache.entries["mlt:"+key] = cacheEntry{ids: []int64{}}

	rs, err := p.Run(context.Background(), QueryArgs{PostsPerPage: 2}, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rs.CacheHit || len(store.searches) != 1 {
		t.Error("empty cache entry must not short-circuit")
	}
}

func TestRunAllModeFromCache(t *testing.T) {
	store := foxStore()
	store.items[11] = content.Item{ID: 11}
	store.items[12] = content.Item{ID: 12}
	p := NewPlanner(store, newFakeCache(), nil, testConfig())
	ctx := context.Background()

	if _, err := p.Run(ctx, QueryArgs{PostsPerPage: 2, Fields: FieldsAll}, 1); err != nil {
		t.Fatalf("Run: %v", err)
	}
	rs, err := p.Run(ctx, QueryArgs{PostsPerPage: 2, Fields: FieldsAll}, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rs.CacheHit || rs.Records == nil {
		t.Fatalf("expected cached all-mode result with records, got %+v", rs)
	}
	items, err := rs.Records.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(items) != 2 || items[0].ID != 11 || items[1].ID != 12 {
		t.Errorf("items = %+v", items)
	}
}

func TestRunErrors(t *testing.T) {
	collaboratorErr := errors.New("connection reset")
	tests := []struct {
		name    string
		mutate  func(*fakeStore, *fakeCache)
		wantErr error
	}{
		{
			name:    "missing reference item",
			mutate:  func(s *fakeStore, _ *fakeCache) { delete(s.items, 1) },
			wantErr: apperrors.ErrMissingReferenceItem,
		},
		{
			name:    "no primary category",
			mutate:  func(s *fakeStore, _ *fakeCache) { s.categories[1] = nil },
			wantErr: apperrors.ErrNoPrimaryCategory,
		},
		{
			name: "no keyword candidates",
			mutate: func(s *fakeStore, _ *fakeCache) {
				s.items[1] = content.Item{ID: 1, Body: "<p>it is, as we go.</p>"}
			},
			wantErr: apperrors.ErrEmptyInput,
		},
		{
			name:    "search failure",
			mutate:  func(s *fakeStore, _ *fakeCache) { s.searchErr = collaboratorErr },
			wantErr: collaboratorErr,
		},
		{
			name:    "cache read failure",
			mutate:  func(_ *fakeStore, c *fakeCache) { c.getErr = collaboratorErr },
			wantErr: collaboratorErr,
		},
		{
			name:    "cache write failure",
			mutate:  func(_ *fakeStore, c *fakeCache) { c.setErr = collaboratorErr },
			wantErr: collaboratorErr,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := foxStore()
			cache := newFakeCache()
			tt.mutate(store, cache)
			p := NewPlanner(store, cache, nil, testConfig())

			_, err := p.Run(context.Background(), QueryArgs{PostsPerPage: 2}, 1)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Run() error = %v, want %v", err, tt.wantErr)
			}
			if cache.sets != 0 {
				t.Error("failed query must not be cached")
			}
		})
	}
}

func TestRunMissingTagIsTolerated(t *testing.T) {
	store := foxStore()
	store.tags[1] = nil
	p := NewPlanner(store, newFakeCache(), nil, testConfig())

	rs, err := p.Run(context.Background(), QueryArgs{PostsPerPage: 2}, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rs.TagID != 0 {
		t.Errorf("TagID = %d, want 0", rs.TagID)
	}
}

func TestRunRejectsInvalidArgs(t *testing.T) {
	store := foxStore()
	p := NewPlanner(store, newFakeCache(), nil, testConfig())

	_, err := p.Run(context.Background(), QueryArgs{PostsPerPage: 500}, 1)
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if store.callCount() != 0 {
		t.Error("invalid args must not reach the store")
	}
}

func TestExplain(t *testing.T) {
	store := foxStore()
	p := NewPlanner(store, newFakeCache(), nil, testConfig())

	exp, err := p.Explain(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if exp.Keyword != "fox" || exp.TokenCount != 8 {
		t.Errorf("Explain() = %+v", exp)
	}
	want := []text.TermDensity{
		{Term: "fox", Count: 2, Density: 25},
		{Term: "quick", Count: 1, Density: 13},
	}
	if !reflect.DeepEqual(exp.Terms, want) {
		t.Errorf("Terms = %+v, want %+v", exp.Terms, want)
	}

	if _, err := p.Explain(context.Background(), 404, 0); !errors.Is(err, apperrors.ErrMissingReferenceItem) {
		t.Errorf("expected ErrMissingReferenceItem, got %v", err)
	}
}

func TestRunRecordsSpans(t *testing.T) {
	p := NewPlanner(foxStore(), newFakeCache(), nil, testConfig())
	ctx, root := tracing.StartSpan(context.Background(), "related", "req-1")
	if _, err := p.Run(ctx, QueryArgs{}, 1); err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, c := range root.Children() {
		names = append(names, c.Name)
	}
	want := []string{"cache.get", "store.reference", "text.keyword", "store.search", "cache.set"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("spans = %v, want %v", names, want)
	}
}

func TestRunEndsReferenceSpanOnError(t *testing.T) {
	p := NewPlanner(newFakeStore(), newFakeCache(), nil, testConfig())
	ctx, root := tracing.StartSpan(context.Background(), "related", "req-1")
	if _, err := p.Run(ctx, QueryArgs{}, 404); !errors.Is(err, apperrors.ErrMissingReferenceItem) {
		t.Fatalf("expected ErrMissingReferenceItem, got %v", err)
	}
	children := root.Children()
	if len(children) != 2 || children[1].Name != "store.reference" {
		t.Fatalf("unexpected spans: %v", children)
	}
	if children[1].Duration == 0 {
		t.Error("store.reference span was not ended")
	}
}

// gatedFoxStore blocks GetItem until release is closed.
func gatedFoxStore() *fakeStore {
	store := foxStore()
	store.entered = make(chan struct{}, 1)
	store.release = make(chan struct{})
	return store
}

func waitForMisses(t *testing.T, p *Planner, want int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, misses := p.Stats(); misses >= want {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d misses", want)
		}
		time.Sleep(time.Millisecond)
	}
	// misses is counted just before joining the in-flight group.
	time.Sleep(20 * time.Millisecond)
}

func TestRunCollapsesConcurrentMisses(t *testing.T) {
	const callers = 8
	store := gatedFoxStore()
	p := NewPlanner(store, newFakeCache(), nil, testConfig())

	type result struct {
		ids []int64
		err error
	}
	results := make(chan result, callers)
	for i := 0; i < callers; i++ {
		go func() {
			rs, err := p.Run(context.Background(), QueryArgs{}, 1)
			if err != nil {
				results <- result{err: err}
				return
			}
			results <- result{ids: rs.IDs}
		}()
	}

	<-store.entered
	waitForMisses(t, p, callers)
	close(store.release)

	want := []int64{11, 12, 13, 14, 15}
	for i := 0; i < callers; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("caller %d: %v", i, r.err)
		}
		if !reflect.DeepEqual(r.ids, want) {
			t.Errorf("caller %d ids = %v, want %v", i, r.ids, want)
		}
	}
	if n := store.searchCount(); n != 1 {
		t.Errorf("expected 1 search, got %d", n)
	}
	if _, misses := p.Stats(); misses != callers {
		t.Errorf("expected %d misses, got %d", callers, misses)
	}
}

func TestRunCancelledCallerDoesNotFailOthers(t *testing.T) {
	store := gatedFoxStore()
	p := NewPlanner(store, newFakeCache(), nil, testConfig())

	firstCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	firstErr := make(chan error, 1)
	go func() {
		_, err := p.Run(firstCtx, QueryArgs{}, 1)
		firstErr <- err
	}()
	<-store.entered

	type result struct {
		rs  *ResultSet
		err error
	}
	second := make(chan result, 1)
	go func() {
		rs, err := p.Run(context.Background(), QueryArgs{}, 1)
		second <- result{rs: rs, err: err}
	}()
	waitForMisses(t, p, 2)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("first caller: expected context.Canceled, got %v", err)
	}
	close(store.release)

	r := <-second
	if r.err != nil {
		t.Fatalf("second caller: %v", r.err)
	}
	if !reflect.DeepEqual(r.rs.IDs, []int64{11, 12, 13, 14, 15}) {
		t.Errorf("ids = %v", r.rs.IDs)
	}
	if n := store.searchCount(); n != 1 {
		t.Errorf("expected 1 search, got %d", n)
	}
}
