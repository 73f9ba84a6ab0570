// Package content holds the item and query types shared by the content
// store and the related-items planner.
package content

import "time"

// Taxonomy names an ordered term collection attached to items.
type Taxonomy string

const (
	TaxonomyCategory Taxonomy = "category"
	TaxonomyTag      Taxonomy = "tag"
)

// Item is a published content item.
type Item struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body,omitempty"`
	Status      string    `json:"status"`
	PublishedAt time.Time `json:"published_at"`
}

// SearchQuery asks for item IDs relevant to Text within one category.
type SearchQuery struct {
	Text       string
	CategoryID int64
	Limit      int
}
