package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/freekieb7/staticd/filesystem"
)

// Server is the acceptor: one goroutine accepting connections and pushing them
// onto the bounded queue that the worker pool drains.
type Server struct {
	Config Config

	logger *slog.Logger
	queue  *Queue
	pool   *WorkerPool

	mu       sync.Mutex
	listener net.Listener
	serving  sync.WaitGroup
	closing  atomic.Bool
}

// NewServer wires the local filesystem, the resolver, the connection handler,
// the queue and the worker pool from cfg.
func NewServer(cfg Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	fs := filesystem.NewLocalFileSystem()
	resolver, err := filesystem.NewResolver(fs, cfg.Root, logger)
	if err != nil {
		return nil, fmt.Errorf("http: document root: %w", err)
	}

	return NewServerWithHandler(cfg, NewConnHandler(cfg, resolver, fs, logger), logger), nil
}

// NewServerWithHandler builds a server around any TaskHandler.
func NewServerWithHandler(cfg Config, handler TaskHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	queue := NewQueue(cfg.QueueSize)
	return &Server{
		Config: cfg,
		logger: logger,
		queue:  queue,
		pool:   NewWorkerPool(cfg.Workers, cfg.PopTimeout, queue, handler, logger),
	}
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := listenConfig()
	listener, err := lc.Listen(ctx, "tcp", s.Config.Addr)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until it is closed. It blocks while
// the queue is full. After Shutdown it returns ErrServerClosed.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.serving.Add(1)
	defer s.serving.Done()

	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		_ = listener.Close()
		return ErrServerClosed
	}
	s.listener = listener
	s.mu.Unlock()

	s.pool.Start(ctx)
	s.logger.InfoContext(ctx, "listening", "addr", listener.Addr().String(), "workers", s.pool.Size, "queue", s.queue.Cap())

	var backoff time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}

			if temporaryAcceptError(err) {
				backoff = nextBackoff(backoff)
				s.logger.WarnContext(ctx, "failed to accept connection", "error", err, "retry_in", backoff)
				time.Sleep(backoff)
				continue
			}
			return err
		}
		backoff = 0

		task := ConnTask{Conn: conn, Peer: conn.RemoteAddr(), Accepted: time.Now()}
		s.logger.DebugContext(ctx, "new connection", "peer", task.Peer.String())

		if err := s.queue.Push(ctx, task); err != nil {
			_ = conn.Close()
			if errors.Is(err, ErrQueueClosed) {
				return ErrServerClosed
			}
			return err
		}
	}
}

// temporaryAcceptError reports whether Accept may succeed when retried later,
// e.g. after file descriptors were released.
func temporaryAcceptError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	for _, errno := range []syscall.Errno{syscall.EMFILE, syscall.ENFILE, syscall.ECONNABORTED, syscall.ECONNRESET, syscall.ENOBUFS, syscall.ENOMEM} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

func nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return 5 * time.Millisecond
	}
	if current *= 2; current > time.Second {
		return time.Second
	}
	return current
}

// Shutdown stops accepting, lets every worker finish the connection it holds
// and closes connections still waiting in the queue. It returns early with
// ctx's error if that takes too long.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing.Store(true)
	listener := s.listener
	s.mu.Unlock()

	var err error
	if listener != nil {
		if closeErr := listener.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			err = closeErr
		}
	}
	s.queue.Close()
	s.pool.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.serving.Wait()
		s.pool.Wait()
		if dropped := s.queue.Drain(func(task ConnTask) { _ = task.Conn.Close() }); dropped > 0 {
			s.logger.InfoContext(ctx, "closed queued connections on shutdown", "count", dropped)
		}
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
}
