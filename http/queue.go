package http

import (
	"context"
	"net"
	"sync"
	"time"
)

// ConnTask is one accepted connection waiting for a worker. Whoever pops it
// from the Queue owns it and must close the connection.
type ConnTask struct {
	Conn     net.Conn
	Peer     net.Addr
	Accepted time.Time
}

// Queue is the bounded FIFO between the acceptor and the workers. A full
// queue blocks Push, which leaves new connections in the kernel backlog.
type Queue struct {
	tasks   chan ConnTask
	closed  chan struct{}
	once    sync.Once
	pending sync.WaitGroup
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}

	return &Queue{
		tasks:  make(chan ConnTask, capacity),
		closed: make(chan struct{}),
	}
}

// Push enqueues task, blocking while the queue is full. It gives up when ctx
// is done or the queue is closed; the caller keeps ownership in that case.
func (q *Queue) Push(ctx context.Context, task ConnTask) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	q.pending.Add(1)
	select {
	case q.tasks <- task:
		return nil
	case <-q.closed:
		q.pending.Done()
		return ErrQueueClosed
	case <-ctx.Done():
		q.pending.Done()
		return ctx.Err()
	}
}

// Pop waits up to timeout for the next task. ok is false on timeout.
func (q *Queue) Pop(timeout time.Duration) (task ConnTask, ok bool) {
	select {
	case task = <-q.tasks:
		return task, true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case task = <-q.tasks:
		return task, true
	case <-timer.C:
		return ConnTask{}, false
	}
}

// Done marks a popped task as finished.
func (q *Queue) Done() {
	q.pending.Done()
}

// Wait blocks until every pushed task was marked done.
func (q *Queue) Wait() {
	q.pending.Wait()
}

// Close makes every further Push fail. Tasks already queued stay poppable.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.closed)
	})
}

// Drain hands every queued task to fn and marks it done without waiting.
func (q *Queue) Drain(fn func(task ConnTask)) int {
	drained := 0
	for {
		select {
		case task := <-q.tasks:
			fn(task)
			q.pending.Done()
			drained++
		default:
			return drained
		}
	}
}

func (q *Queue) Len() int {
	return len(q.tasks)
}

func (q *Queue) Cap() int {
	return cap(q.tasks)
}
