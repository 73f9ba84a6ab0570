package analytics

import "time"

type EventType string

const (
	EventRelatedQuery EventType = "related_query"
	EventQueryFailed  EventType = "related_query_failed"
)

// RelatedQueryEvent describes one related-items request.
type RelatedQueryEvent struct {
	Type       EventType `json:"type"`
	ItemID     int64     `json:"item_id"`
	Keyword    string    `json:"keyword,omitempty"`
	CategoryID int64     `json:"category_id,omitempty"`
	TagID      int64     `json:"tag_id,omitempty"`
	Fields     string    `json:"fields"`
	Returned   int       `json:"returned"`
	CacheHit   bool      `json:"cache_hit"`
	Error      string    `json:"error,omitempty"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}
