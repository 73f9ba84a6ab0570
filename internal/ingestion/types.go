// Package ingestion defines the request and response types of the item
// write API.
package ingestion

// SaveItemRequest is the JSON body accepted by the item write endpoints.
// The first category is the primary one.
type SaveItemRequest struct {
	Title      string  `json:"title"`
	Body       string  `json:"body"`
	Status     string  `json:"status,omitempty"`
	Categories []int64 `json:"categories"`
	Tags       []int64 `json:"tags,omitempty"`
}

// SaveItemResponse is returned after an item is stored. Notified reports
// whether the content-changed notification went out; when it did not,
// cached related sets may be stale until their TTL expires.
type SaveItemResponse struct {
	ItemID   int64  `json:"item_id"`
	Action   string `json:"action"`
	Notified bool   `json:"notified"`
}
