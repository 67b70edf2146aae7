package events

import (
	"context"

	"berth/internal/api"
)

// Topic is a named, typed channel on the bus.
type Topic[T any] struct {
	name string
}

// NewTopic creates a topic. Two topics with the same name share subscribers,
// so names must be unique per payload type.
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

// Name returns the topic name.
func (t Topic[T]) Name() string {
	return t.name
}

// Well-known topics of the orchestration core.
var (
	LifecycleTopic = NewTopic[api.LifecycleEvent]("lifecycle")
	NoticeTopic    = NewTopic[api.Notice]("notice")
	ProgressTopic  = NewTopic[api.Progress]("progress")
	CatalogTopic   = NewTopic[api.CatalogChanged]("catalog")
)

// Subscriber handles events of one topic.
type Subscriber[T any] interface {
	Handle(ctx context.Context, event T)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc[T any] func(ctx context.Context, event T)

// Handle calls f.
func (f SubscriberFunc[T]) Handle(ctx context.Context, event T) {
	f(ctx, event)
}
