package ports

import (
	"context"

	"github.com/samirrijal/geomeasure/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishRecordEvent(ctx context.Context, event *domain.RecordEvent) error
	PublishSessionView(ctx context.Context, view *domain.SessionView) error
}

// ViewPublisher receives the session view emitted after every mutation.
type ViewPublisher interface {
	PublishSessionView(ctx context.Context, view *domain.SessionView) error
}

// SensorFeed delivers location samples from an external sensor transport.
type SensorFeed interface {
	SubscribeSamples(ctx context.Context, handler func(ctx context.Context, sample *domain.SensorSample) error) error
	Close()
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
