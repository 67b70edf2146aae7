package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"berth/internal/api"
)

var testTopic = NewTopic[int]("test")

// collector records every event it receives.
type collector struct {
	mu     sync.Mutex
	events []int
}

func (c *collector) Handle(_ context.Context, ev int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) snapshot() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, len(c.events))
	copy(out, c.events)
	return out
}

func (c *collector) waitFor(t *testing.T, n int) []int {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(c.snapshot()) >= n
	}, 2*time.Second, 5*time.Millisecond)
	return c.snapshot()
}

func TestPublish_DeliversOnlyToEarlierSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	early := &collector{}
	Subscribe(bus, testTopic, early)

	Publish(bus, testTopic, 7)

	late := &collector{}
	Subscribe(bus, testTopic, late)

	assert.Equal(t, []int{7}, early.waitFor(t, 1))

	// Give the late subscriber a chance to (wrongly) receive something.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, late.snapshot())
	assert.Equal(t, []int{7}, early.snapshot(), "event must be delivered exactly once")
}

func TestPublish_PreservesOrderPerTopic(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	c := &collector{}
	Subscribe(bus, testTopic, c)

	const n = 1000
	for i := 0; i < n; i++ {
		Publish(bus, testTopic, i)
	}

	got := c.waitFor(t, n)
	for i := 0; i < n; i++ {
		require.Equal(t, i, got[i])
	}
}

func TestPublish_TopicsAreIsolated(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	other := NewTopic[int]("other")
	c := &collector{}
	Subscribe(bus, other, c)

	Publish(bus, testTopic, 1)
	Publish(bus, other, 2)

	assert.Equal(t, []int{2}, c.waitFor(t, 1))
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	block := make(chan struct{})
	defer close(block)

	Subscribe(bus, testTopic, SubscriberFunc[int](func(ctx context.Context, _ int) {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}))

	fast := &collector{}
	Subscribe(bus, testTopic, fast)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			Publish(bus, testTopic, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher stalled by slow subscriber")
	}

	assert.Len(t, fast.waitFor(t, 100), 100)
}

func TestPanickingSubscriberKeepsReceiving(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	c := &collector{}
	Subscribe(bus, testTopic, SubscriberFunc[int](func(ctx context.Context, ev int) {
		if ev == 1 {
			panic("boom")
		}
		c.Handle(ctx, ev)
	}))

	Publish(bus, testTopic, 1)
	Publish(bus, testTopic, 2)

	assert.Equal(t, []int{2}, c.waitFor(t, 1))
}

func TestRelease(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	c := &collector{}
	sub := Subscribe(bus, testTopic, c)
	assert.Equal(t, 1, bus.SubscriberCount(testTopic.Name()))

	sub.Release()
	sub.Release()

	assert.Equal(t, 0, bus.SubscriberCount(testTopic.Name()))

	Publish(bus, testTopic, 1)
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, c.snapshot())
}

func TestReleaseConcurrentWithPublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		sub := Subscribe(bus, testTopic, &collector{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				Publish(bus, testTopic, j)
			}
		}()
		go func() {
			defer wg.Done()
			sub.Release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, bus.SubscriberCount(testTopic.Name()))
}

func TestReleaseFromInsideSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var sub *Subscription
	received := make(chan int, 10)
	ready := make(chan struct{})
	sub = Subscribe(bus, testTopic, SubscriberFunc[int](func(_ context.Context, ev int) {
		<-ready
		received <- ev
		sub.Release()
	}))
	close(ready)

	Publish(bus, testTopic, 1)
	assert.Equal(t, 1, <-received)

	require.Eventually(t, func() bool {
		return bus.SubscriberCount(testTopic.Name()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestClose(t *testing.T) {
	bus := NewBus()

	c := &collector{}
	Subscribe(bus, testTopic, c)
	bus.Close()
	bus.Close()

	Publish(bus, testTopic, 1)

	late := Subscribe(bus, testTopic, c)
	late.Release()

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, c.snapshot())
	assert.Equal(t, 0, bus.SubscriberCount(testTopic.Name()))
}

func TestWellKnownTopicsCarryTypedPayloads(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	got := make(chan api.LifecycleEvent, 1)
	Subscribe(bus, LifecycleTopic, SubscriberFunc[api.LifecycleEvent](func(_ context.Context, ev api.LifecycleEvent) {
		got <- ev
	}))

	Publish(bus, LifecycleTopic, api.NewLifecycleEvent("sid-1", "svcA", api.LifecycleAfterStarted, ""))

	select {
	case ev := <-got:
		assert.Equal(t, "sid-1", ev.SID)
		assert.Equal(t, api.StatusRunning, ev.Status)
	case <-time.After(time.Second):
		t.Fatal("lifecycle event not delivered")
	}
}
