// Package query plans related-items queries: it merges options, derives
// the cache key, and on a miss extracts the reference item's keyword and
// primary category, searches the content store and shapes the result.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-content/internal/related/content"
	"github.com/Adithya-Monish-Kumar-K/related-content/internal/related/text"
	apperrors "github.com/Adithya-Monish-Kumar-K/related-content/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/tracing"
	"golang.org/x/sync/singleflight"
)

// ContentStore is the content storage the planner reads from. GetItem
// reports unknown IDs with apperrors.ErrItemNotFound.
type ContentStore interface {
	ItemLoader
	GetItem(ctx context.Context, id int64) (*content.Item, error)
	TaxonomyTerms(ctx context.Context, itemID int64, taxonomy content.Taxonomy) ([]int64, error)
	Search(ctx context.Context, q content.SearchQuery) ([]int64, error)
}

// Cache stores shaped ID lists. Get reports absence with ok == false.
type Cache interface {
	Get(ctx context.Context, key, namespace string) (ids []int64, ok bool, err error)
	Set(ctx context.Context, key, namespace string, ids []int64, ttl time.Duration) error
}

// Config controls a Planner.
type Config struct {
	Defaults        Defaults
	MaxPostsPerPage int
	CacheTTL        time.Duration
	CacheNamespace  string
}

type Planner struct {
	store     ContentStore
	cache     Cache
	tokenizer *text.Tokenizer
	cfg       Config
	group     singleflight.Group
	logger    *slog.Logger
	hits      atomic.Int64
	misses    atomic.Int64
}

func NewPlanner(store ContentStore, cache Cache, tokenizer *text.Tokenizer, cfg Config) *Planner {
	if tokenizer == nil {
		tokenizer = text.NewTokenizer(nil)
	}
	return &Planner{
		store:     store,
		cache:     cache,
		tokenizer: tokenizer,
		cfg:       cfg,
		logger:    slog.Default().With("component", "related-planner"),
	}
}

// Run answers a related-items query for args, using contextItemID when
// args names no reference item. A cached non-empty result is returned
// without touching the content store. Failures are never cached.
func (p *Planner) Run(ctx context.Context, args QueryArgs, contextItemID int64) (*ResultSet, error) {
	merged := args.Merge(p.cfg.Defaults, contextItemID)
	if err := merged.Validate(p.cfg.MaxPostsPerPage); err != nil {
		return nil, err
	}
	key, err := CacheKey(merged)
	if err != nil {
		return nil, err
	}

	_, span := tracing.StartChildSpan(ctx, "cache.get")
	ids, ok, err := p.cache.Get(ctx, key, p.cfg.CacheNamespace)
	span.SetAttr("hit", ok && len(ids) > 0)
	span.End()
	if err != nil {
		return nil, fmt.Errorf("reading cache key %s: %w", key, err)
	}
	if ok && len(ids) > 0 {
		p.hits.Add(1)
		rs := newResultSet(ids, merged.Fields, p.store)
		rs.CacheKey = key
		rs.CacheHit = true
		logger.FromContext(ctx).Debug("related cache hit", "key", key, "item_id", merged.P)
		return rs, nil
	}
	p.misses.Add(1)

	// The shared compute ignores any one caller's cancellation.
	ch := p.group.DoChan(key, func() (interface{}, error) {
		return p.compute(context.WithoutCancel(ctx), merged, key)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		shared := *res.Val.(*ResultSet)
		return &shared, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Planner) compute(ctx context.Context, args QueryArgs, key string) (*ResultSet, error) {
	log := logger.FromContext(ctx)

	item, categories, tag, err := p.reference(ctx, args.P)
	if err != nil {
		return nil, err
	}

	_, span := tracing.StartChildSpan(ctx, "text.keyword")
	tokens := p.tokenizer.Tokenize(item.Body)
	keyword, err := text.ExtractKeyword(tokens)
	span.SetAttr("tokens", len(tokens))
	span.End()
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", item.ID, err)
	}

	_, span = tracing.StartChildSpan(ctx, "store.search")
	candidates, err := p.store.Search(ctx, content.SearchQuery{
		Text:       keyword,
		CategoryID: categories[0],
		Limit:      args.PostsPerPage + 1,
	})
	span.SetAttr("candidates", len(candidates))
	span.End()
	if err != nil {
		return nil, fmt.Errorf("searching related items for %q: %w", keyword, err)
	}

	rs := Shape(candidates, args.P, args.Fields, p.store)
	_, span = tracing.StartChildSpan(ctx, "cache.set")
	err = p.cache.Set(ctx, key, p.cfg.CacheNamespace, rs.IDs, p.cfg.CacheTTL)
	span.End()
	if err != nil {
		return nil, fmt.Errorf("writing cache key %s: %w", key, err)
	}
	rs.CacheKey = key
	rs.Keyword = keyword
	rs.CategoryID = categories[0]
	rs.TagID = tag

	log.Info("related query computed",
		"item_id", args.P,
		"keyword", keyword,
		"category_id", categories[0],
		"tokens", len(tokens),
		"candidates", len(candidates),
		"returned", len(rs.IDs),
	)
	return rs, nil
}

// reference loads the reference item with its categories and first tag.
func (p *Planner) reference(ctx context.Context, id int64) (*content.Item, []int64, int64, error) {
	_, span := tracing.StartChildSpan(ctx, "store.reference")
	defer span.End()

	item, err := p.store.GetItem(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrItemNotFound) {
			return nil, nil, 0, fmt.Errorf("item %d: %w", id, apperrors.ErrMissingReferenceItem)
		}
		return nil, nil, 0, fmt.Errorf("fetching reference item %d: %w", id, err)
	}
	categories, err := p.store.TaxonomyTerms(ctx, item.ID, content.TaxonomyCategory)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("fetching categories of item %d: %w", item.ID, err)
	}
	if len(categories) == 0 {
		return nil, nil, 0, fmt.Errorf("item %d: %w", item.ID, apperrors.ErrNoPrimaryCategory)
	}
	tags, err := p.store.TaxonomyTerms(ctx, item.ID, content.TaxonomyTag)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("fetching tags of item %d: %w", item.ID, err)
	}
	var tag int64
	if len(tags) > 0 {
		tag = tags[0]
	}
	return item, categories, tag, nil
}

// Explanation shows how the keyword of an item was chosen.
type Explanation struct {
	ItemID     int64              `json:"item_id"`
	TokenCount int                `json:"token_count"`
	Keyword    string             `json:"keyword"`
	Terms      []text.TermDensity `json:"terms"`
}

// Explain runs the text pipeline on an item and returns up to top rows of
// its density table. top <= 0 returns every row.
func (p *Planner) Explain(ctx context.Context, itemID int64, top int) (*Explanation, error) {
	item, err := p.store.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, apperrors.ErrItemNotFound) {
			return nil, fmt.Errorf("item %d: %w", itemID, apperrors.ErrMissingReferenceItem)
		}
		return nil, fmt.Errorf("fetching item %d: %w", itemID, err)
	}
	tokens := p.tokenizer.Tokenize(item.Body)
	terms, err := text.Densities(tokens)
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", itemID, err)
	}
	if top > 0 && len(terms) > top {
		terms = terms[:top]
	}
	return &Explanation{
		ItemID:     itemID,
		TokenCount: len(tokens),
		Keyword:    terms[0].Term,
		Terms:      terms,
	}, nil
}

// Stats returns cache hit and miss counts since start.
func (p *Planner) Stats() (hits, misses int64) {
	return p.hits.Load(), p.misses.Load()
}
