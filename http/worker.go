package http

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// TaskHandler serves one connection to completion. It owns task.Conn.
type TaskHandler interface {
	ServeConn(ctx context.Context, task ConnTask)
}

type TaskHandlerFunc func(ctx context.Context, task ConnTask)

func (f TaskHandlerFunc) ServeConn(ctx context.Context, task ConnTask) {
	f(ctx, task)
}

// WorkerPool runs a fixed number of workers that pop connections off a Queue
// and serve them one at a time. Stop is cooperative: a worker finishes the
// task it holds and exits at its next pop attempt.
type WorkerPool struct {
	Size       int
	PopTimeout time.Duration

	queue   *Queue
	handler TaskHandler
	logger  *slog.Logger

	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewWorkerPool(size int, popTimeout time.Duration, queue *Queue, handler TaskHandler, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}

	return &WorkerPool{
		Size:       size,
		PopTimeout: popTimeout,
		queue:      queue,
		handler:    handler,
		logger:     logger,
		quit:       make(chan struct{}),
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for id := range wp.Size {
		wp.wg.Add(1)
		go wp.work(ctx, id)
	}
}

func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.quit)
	})
}

// Wait blocks until every worker has exited.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) work(ctx context.Context, id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.quit:
			return
		default:
		}

		task, ok := wp.queue.Pop(wp.PopTimeout)
		if !ok {
			continue
		}

		instruments.queueWait.Record(ctx, time.Since(task.Accepted).Seconds())
		wp.run(ctx, id, task)
	}
}

// run serves one task. A panic escaping the handler is logged and the
// connection closed; the worker keeps going.
func (wp *WorkerPool) run(ctx context.Context, id int, task ConnTask) {
	defer wp.queue.Done()
	defer func() {
		if recovered := recover(); recovered != nil {
			instruments.faults.Add(ctx, 1, metric.WithAttributes(attribute.String("fault.site", "worker")))
			wp.logger.ErrorContext(ctx, "unhandled error serving connection", "worker", id, "panic", recovered)
			if task.Conn != nil {
				_ = task.Conn.Close()
			}
		}
	}()

	wp.handler.ServeConn(ctx, task)
}
