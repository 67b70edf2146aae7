package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"berth/internal/metrics"
	"berth/pkg/logging"
)

// DefaultSize is the number of workers used when none is configured.
const DefaultSize = 8

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("worker pool stopped")

// TaskFunc is the body of a submitted task. ctx is cancelled when the pool
// stops.
type TaskFunc func(ctx context.Context)

// Pool runs submitted tasks on a fixed number of workers.
//
// Lifecycle commands and imports share one pool; Submit never blocks the
// caller, tasks wait in an unbounded FIFO queue until a worker is free.
type Pool struct {
	size    int
	queue   *taskQueue
	metrics *metrics.Recorder

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// NewPool creates a pool with size workers. Tasks submitted before Start
// are queued.
func NewPool(size int, recorder *metrics.Recorder) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{
		size:    size,
		queue:   newTaskQueue(),
		metrics: recorder,
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Start launches the workers. It is a no-op if the pool is running.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running || p.stopped {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.group, ctx = errgroup.WithContext(ctx)
	p.running = true

	for i := 0; i < p.size; i++ {
		id := i
		p.group.Go(func() error {
			p.worker(ctx, id)
			return nil
		})
	}
	logging.Debug("Workers", "Started %d workers", p.size)
}

// Submit queues fn under name. It never blocks.
func (p *Pool) Submit(name string, fn TaskFunc) error {
	if !p.queue.add(task{name: name, run: fn}) {
		return fmt.Errorf("submit %s: %w", name, ErrStopped)
	}
	p.metrics.SetQueueLength(p.queue.len())
	return nil
}

// Pending returns the number of queued tasks not yet picked up.
func (p *Pool) Pending() int {
	return p.queue.len()
}

// Stop cancels the task context, lets the workers drain the queue and
// waits for them to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	running := p.running
	p.running = false
	cancel := p.cancel
	group := p.group
	p.mu.Unlock()

	logging.Info("Workers", "Stopping worker pool...")

	if cancel != nil {
		cancel()
	}
	p.queue.shutdown()

	if running {
		_ = group.Wait()
	}
	logging.Info("Workers", "Worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	logging.Debug("Workers", "Worker %d started", id)

	for {
		t, ok := p.queue.get()
		if !ok {
			logging.Debug("Workers", "Worker %d shutting down", id)
			return
		}
		p.metrics.SetQueueLength(p.queue.len())
		p.execute(ctx, t)
	}
}

func (p *Pool) execute(ctx context.Context, t task) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Workers", fmt.Errorf("panic: %v", r), "Task %s panicked", t.name)
		}
	}()

	logging.Debug("Workers", "Running task %s", t.name)
	t.run(ctx)
}
