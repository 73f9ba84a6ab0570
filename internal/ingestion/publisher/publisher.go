// Package publisher stores items and announces each change so cached
// related sets that may include or exclude the item are dropped.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-content/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/related-content/internal/related/content"
	"github.com/Adithya-Monish-Kumar-K/related-content/internal/related/invalidation"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/resilience"
)

const notifyTimeout = 3 * time.Second

// ItemWriter persists items. A zero item.ID inserts.
type ItemWriter interface {
	SaveItem(ctx context.Context, item content.Item, categories, tags []int64) (int64, error)
}

// Notifier announces a content change.
type Notifier interface {
	Notify(ctx context.Context, event invalidation.ContentChangedEvent) error
}

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// KafkaNotifier publishes content changes on the content-changed topic,
// keyed by item ID.
type KafkaNotifier struct {
	producer EventPublisher
}

func NewKafkaNotifier(producer EventPublisher) *KafkaNotifier {
	return &KafkaNotifier{producer: producer}
}

func (n *KafkaNotifier) Notify(ctx context.Context, event invalidation.ContentChangedEvent) error {
	return n.producer.Publish(ctx, kafka.Event{
		Key:   strconv.FormatInt(event.ItemID, 10),
		Value: event,
	})
}

// LocalNotifier flushes the cache namespace in-process. It stands in for
// Kafka when the broker is disabled.
type LocalNotifier struct {
	cache     invalidation.Invalidator
	namespace string
}

func NewLocalNotifier(cache invalidation.Invalidator, namespace string) *LocalNotifier {
	return &LocalNotifier{cache: cache, namespace: namespace}
}

func (n *LocalNotifier) Notify(ctx context.Context, _ invalidation.ContentChangedEvent) error {
	_, err := n.cache.Invalidate(ctx, n.namespace)
	return err
}

// Publisher coordinates item persistence and change notification.
type Publisher struct {
	store    ItemWriter
	notifier Notifier
	breaker  *resilience.CircuitBreaker
	logger   *slog.Logger
}

func New(store ItemWriter, notifier Notifier) *Publisher {
	return &Publisher{
		store:    store,
		notifier: notifier,
		breaker:  resilience.NewCircuitBreaker("content-notify", resilience.CircuitBreakerConfig{}),
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Save stores the item under id (0 creates a new one) and notifies the
// change. A failed notification is logged and reported in the response;
// the write itself stands.
func (p *Publisher) Save(ctx context.Context, id int64, req *ingestion.SaveItemRequest) (*ingestion.SaveItemResponse, error) {
	action := invalidation.ActionUpdated
	if id == 0 {
		action = invalidation.ActionCreated
	}
	item := content.Item{ID: id, Title: req.Title, Body: req.Body, Status: req.Status}
	storedID, err := p.store.SaveItem(ctx, item, req.Categories, req.Tags)
	if err != nil {
		return nil, fmt.Errorf("saving item: %w", err)
	}

	event := invalidation.ContentChangedEvent{ItemID: storedID, Action: action}
	err = p.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, notifyTimeout, "content notify", func(ctx context.Context) error {
			return p.notifier.Notify(ctx, event)
		})
	})
	if err != nil {
		p.logger.Error("failed to notify content change, cached related sets may be stale",
			"item_id", storedID,
			"action", action,
			"error", err,
		)
	}
	return &ingestion.SaveItemResponse{
		ItemID:   storedID,
		Action:   string(action),
		Notified: err == nil,
	}, nil
}
