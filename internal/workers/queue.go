package workers

import (
	"sync"
)

// task is one unit of queued work.
type task struct {
	name string
	run  TaskFunc
}

// taskQueue is an unbounded FIFO queue. Get blocks until a task is
// available or the queue is shut down and empty.
type taskQueue struct {
	mu sync.Mutex

	// queue holds tasks in FIFO order
	queue []task

	// cond is used for blocking Get operations
	cond *sync.Cond

	// shuttingDown indicates the queue is stopping
	shuttingDown bool
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// add appends t. It reports false once the queue is shutting down.
func (q *taskQueue) add(t task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuttingDown {
		return false
	}
	q.queue = append(q.queue, t)
	q.cond.Signal()
	return true
}

// get pops the next task. After shutdown it keeps returning queued tasks
// until the queue is empty, then reports false.
func (q *taskQueue) get() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.queue) == 0 && !q.shuttingDown {
		q.cond.Wait()
	}
	if len(q.queue) == 0 {
		return task{}, false
	}

	t := q.queue[0]
	q.queue[0] = task{}
	q.queue = q.queue[1:]
	return t, true
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

func (q *taskQueue) shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shuttingDown = true
	q.cond.Broadcast()
}
