package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"berth/pkg/logging"
)

// Bus is a publish/subscribe hub keyed by topic name.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]map[uint64]*Subscription
	closed bool

	nextID atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
}

// NewBus creates an empty bus. Close releases every subscription.
func NewBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		topics: make(map[string]map[uint64]*Subscription),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Subscribe registers sub on topic and starts its dispatch goroutine.
// Subscribing on a closed bus returns an already released subscription.
func Subscribe[T any](b *Bus, topic Topic[T], sub Subscriber[T]) *Subscription {
	s := &Subscription{
		id:     b.nextID.Add(1),
		topic:  topic.name,
		bus:    b,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		deliver: func(ctx context.Context, event any) {
			sub.Handle(ctx, event.(T))
		},
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		s.released.Store(true)
		close(s.done)
		return s
	}
	subs, ok := b.topics[topic.name]
	if !ok {
		subs = make(map[uint64]*Subscription)
		b.topics[topic.name] = subs
	}
	subs[s.id] = s
	b.mu.Unlock()

	go s.run(b.ctx)

	logging.Debug("Bus", "Subscription %d registered on %s", s.id, topic.name)
	return s
}

// Publish enqueues event for every subscription currently registered on
// topic. It never waits for subscribers.
func Publish[T any](b *Bus, topic Topic[T], event T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, s := range b.topics[topic.name] {
		s.enqueue(event)
	}
}

// SubscriberCount returns the number of live subscriptions on a topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Close releases all subscriptions. Publishing afterwards is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var all []*Subscription
	for _, subs := range b.topics {
		for _, s := range subs {
			all = append(all, s)
		}
	}
	b.topics = make(map[string]map[uint64]*Subscription)
	b.mu.Unlock()

	for _, s := range all {
		s.stop()
	}
	b.cancel()
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[s.topic]
	delete(subs, s.id)
	if len(subs) == 0 {
		delete(b.topics, s.topic)
	}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id    uint64
	topic string
	bus   *Bus

	mu    sync.Mutex
	queue []any

	signal   chan struct{}
	done     chan struct{}
	released atomic.Bool

	deliver func(ctx context.Context, event any)
}

// Topic returns the topic name of the subscription.
func (s *Subscription) Topic() string {
	return s.topic
}

// Pending returns the number of events queued but not yet handled.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Release unregisters the subscription. It is idempotent and may be called
// from inside the subscriber itself.
func (s *Subscription) Release() {
	if s.stop() {
		s.bus.remove(s)
		logging.Debug("Bus", "Subscription %d on %s released", s.id, s.topic)
	}
}

// stop marks the subscription released and wakes its goroutine. It reports
// whether this call performed the release.
func (s *Subscription) stop() bool {
	if !s.released.CompareAndSwap(false, true) {
		return false
	}
	close(s.done)

	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()
	return true
}

func (s *Subscription) enqueue(event any) {
	if s.released.Load() {
		return
	}

	s.mu.Lock()
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// run drains the mailbox in FIFO order until released.
func (s *Subscription) run(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.signal:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			event := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()

			if s.released.Load() {
				return
			}
			s.dispatch(ctx, event)
		}
	}
}

func (s *Subscription) dispatch(ctx context.Context, event any) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Bus", fmt.Errorf("panic: %v", r),
				"Subscriber %d on %s panicked, event dropped", s.id, s.topic)
		}
	}()
	s.deliver(ctx, event)
}
