package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsSubmittedTasks(t *testing.T) {
	p := NewPool(4, nil)
	p.Start(context.Background())
	defer p.Stop()

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit("count", func(context.Context) {
			defer wg.Done()
			count.Add(1)
		}))
	}
	wg.Wait()

	assert.Equal(t, int32(50), count.Load())
}

func TestPool_SingleWorkerIsFIFO(t *testing.T) {
	p := NewPool(1, nil)

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		i := i
		require.NoError(t, p.Submit("ordered", func(context.Context) {
			mu.Lock()
			order = append(order, i)
			n := len(order)
			mu.Unlock()
			if n == 20 {
				close(done)
			}
		}))
	}
	assert.Equal(t, 20, p.Pending())

	p.Start(context.Background())
	defer p.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not run")
	}
	for i := 0; i < 20; i++ {
		assert.Equal(t, i, order[i])
	}
}

func TestPool_SubmitDoesNotBlockWhenWorkersBusy(t *testing.T) {
	p := NewPool(1, nil)
	p.Start(context.Background())
	defer p.Stop()

	release := make(chan struct{})
	require.NoError(t, p.Submit("blocker", func(ctx context.Context) {
		select {
		case <-release:
		case <-ctx.Done():
		}
	}))

	submitted := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_ = p.Submit("queued", func(context.Context) {})
		}
		close(submitted)
	}()

	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a busy pool")
	}
	close(release)
}

func TestPool_RecoversPanics(t *testing.T) {
	p := NewPool(1, nil)
	p.Start(context.Background())
	defer p.Stop()

	require.NoError(t, p.Submit("panics", func(context.Context) { panic("boom") }))

	ran := make(chan struct{})
	require.NoError(t, p.Submit("after", func(context.Context) { close(ran) }))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker died after panic")
	}
}

func TestPool_StopCancelsAndRejects(t *testing.T) {
	p := NewPool(2, nil)
	p.Start(context.Background())

	started := make(chan struct{})
	cancelled := make(chan struct{})
	require.NoError(t, p.Submit("long", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}))
	<-started

	p.Stop()
	p.Stop()

	select {
	case <-cancelled:
	default:
		t.Fatal("running task was not cancelled")
	}

	err := p.Submit("late", func(context.Context) {})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestPool_StopDrainsQueuedTasks(t *testing.T) {
	p := NewPool(1, nil)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit("queued", func(context.Context) { ran.Add(1) }))
	}
	p.Start(context.Background())
	p.Stop()

	assert.Equal(t, int32(5), ran.Load())
}

func TestNewPool_DefaultSize(t *testing.T) {
	assert.Equal(t, DefaultSize, NewPool(0, nil).Size())
}
