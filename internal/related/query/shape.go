package query

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/related-content/internal/related/content"
)

// ItemLoader fetches full items by ID.
type ItemLoader interface {
	ItemsByIDs(ctx context.Context, ids []int64) ([]content.Item, error)
}

// ResultSet is the outcome of a related-items query.
type ResultSet struct {
	IDs []int64 `json:"ids"`
	// Records is set in "all" mode and loads items lazily.
	Records *Records `json:"-"`

	CacheKey   string `json:"-"`
	CacheHit   bool   `json:"cache_hit"`
	Keyword    string `json:"keyword,omitempty"`
	CategoryID int64  `json:"category_id,omitempty"`
	TagID      int64  `json:"tag_id,omitempty"`
}

// Records is a deferred fetch of full items in a fixed ID order.
type Records struct {
	loader ItemLoader
	ids    []int64
}

// IDs returns the order the records will be loaded in.
func (r *Records) IDs() []int64 {
	return append([]int64(nil), r.ids...)
}

// Load fetches the items and returns them in ID order. IDs the store no
// longer knows are skipped.
func (r *Records) Load(ctx context.Context) ([]content.Item, error) {
	if len(r.ids) == 0 {
		return []content.Item{}, nil
	}
	items, err := r.loader.ItemsByIDs(ctx, r.ids)
	if err != nil {
		return nil, fmt.Errorf("loading %d related items: %w", len(r.ids), err)
	}
	byID := make(map[int64]content.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	ordered := make([]content.Item, 0, len(r.ids))
	for _, id := range r.ids {
		if it, ok := byID[id]; ok {
			ordered = append(ordered, it)
		}
	}
	return ordered, nil
}

// Shape removes the reference item from candidates, or the last candidate
// when the reference item is absent. The search over-fetches by one, so
// either way the result is back at the requested size. candidates is not
// modified.
func Shape(candidates []int64, referenceID int64, mode FieldsMode, loader ItemLoader) *ResultSet {
	ids := make([]int64, 0, len(candidates))
	idx := indexOf(candidates, referenceID)
	switch {
	case idx >= 0:
		ids = append(ids, candidates[:idx]...)
		ids = append(ids, candidates[idx+1:]...)
	case len(candidates) > 0:
		ids = append(ids, candidates[:len(candidates)-1]...)
	}
	return newResultSet(ids, mode, loader)
}

func newResultSet(ids []int64, mode FieldsMode, loader ItemLoader) *ResultSet {
	rs := &ResultSet{IDs: ids}
	if mode == FieldsAll {
		rs.Records = &Records{loader: loader, ids: ids}
	}
	return rs
}

func indexOf(ids []int64, id int64) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
