// Package invalidation flushes cached related-item sets when content
// changes. Any created, updated or deleted item may enter or leave an
// arbitrary cached set, so the whole namespace is dropped.
package invalidation

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/resilience"
)

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// ContentChangedEvent is published on the content-changed topic by
// whatever writes items.
type ContentChangedEvent struct {
	ItemID int64  `json:"item_id"`
	Action Action `json:"action"`
}

// Invalidator drops every entry of a cache namespace.
type Invalidator interface {
	Invalidate(ctx context.Context, namespace string) (int64, error)
}

const (
	TriggerAPI            = "api"
	TriggerContentChanged = "content_changed"
)

// Handler returns a kafka.MessageHandler that flushes namespace for each
// known content change. Malformed messages are logged and committed.
// A failing flush is retried in place with retry; once the attempts run
// out the error is returned, the consumer logs it and moves on, and stale
// sets remain until their TTL expires. m may be nil.
func Handler(inv Invalidator, namespace string, m *metrics.Metrics, retry resilience.RetryConfig) kafka.MessageHandler {
	log := logger.WithComponent("cache-invalidation")
	return func(ctx context.Context, _ []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ContentChangedEvent](value)
		if err != nil {
			log.Warn("skipping malformed content event", "error", err)
			return nil
		}
		switch event.Action {
		case ActionCreated, ActionUpdated, ActionDeleted:
		default:
			log.Warn("skipping content event with unknown action", "item_id", event.ItemID, "action", event.Action)
			return nil
		}

		var n int64
		err = resilience.Retry(ctx, "cache-invalidation", retry, func() error {
			var err error
			n, err = inv.Invalidate(ctx, namespace)
			return err
		})
		if err != nil {
			return fmt.Errorf("invalidating namespace %s after item %d %s: %w", namespace, event.ItemID, event.Action, err)
		}
		if m != nil {
			m.CacheInvalidations.WithLabelValues(TriggerContentChanged).Inc()
		}
		log.Info("cache namespace invalidated",
			"namespace", namespace,
			"item_id", event.ItemID,
			"action", event.Action,
			"deleted_keys", n,
		)
		return nil
	}
}
