package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/freekieb7/staticd/filesystem"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ConnHandler answers exactly one request per connection: parse, optional
// 100 Continue, drain the body, check the method, serve the file or an
// error, close.
type ConnHandler struct {
	cfg        Config
	resolver   *filesystem.Resolver
	filesystem filesystem.Filesystem
	logger     *slog.Logger
}

func NewConnHandler(cfg Config, resolver *filesystem.Resolver, fs filesystem.Filesystem, logger *slog.Logger) *ConnHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &ConnHandler{
		cfg:        cfg,
		resolver:   resolver,
		filesystem: fs,
		logger:     logger,
	}
}

// exchange is the state of one connection while it is being served.
type exchange struct {
	conn    net.Conn
	logger  *slog.Logger
	status  uint16
	replied bool
}

// ServeConn implements TaskHandler. The connection is closed on every path
// and nothing it does can take the calling worker down.
func (h *ConnHandler) ServeConn(ctx context.Context, task ConnTask) {
	start := time.Now()
	peer := peerAddr(task)

	ctx, span := tracer.Start(ctx, "staticd.connection",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("net.peer.addr", peer)))

	ex := &exchange{
		conn:   task.Conn,
		logger: h.logger.With("conn_id", uuid.NewString(), "peer", peer),
	}
	instruments.connections.Add(ctx, 1)

	defer func() {
		if recovered := recover(); recovered != nil {
			instruments.faults.Add(ctx, 1, metric.WithAttributes(attribute.String("fault.site", "handler")))
			ex.logger.ErrorContext(ctx, "unhandled error serving connection", "panic", recovered)
			span.SetStatus(codes.Error, fmt.Sprint(recovered))
			if !ex.replied {
				if err := h.reply(ctx, ex, NewTextResponse(StatusInternalServerError)); err != nil {
					ex.logger.DebugContext(ctx, "sending error response failed", "error", err)
				}
			}
		}

		if err := task.Conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			ex.logger.DebugContext(ctx, "closing connection error", "error", err)
		}

		if ex.status != 0 {
			span.SetAttributes(attribute.Int("http.status_code", int(ex.status)))
		}
		instruments.connDuration.Record(ctx, time.Since(start).Seconds())
		span.End()
	}()

	if err := h.serve(ctx, ex); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ex.logger.WarnContext(ctx, "connection aborted", "error", err)
	}
}

// serve runs the request state machine. A returned error is an I/O fault:
// the connection is dropped without another response.
func (h *ConnHandler) serve(ctx context.Context, ex *exchange) error {
	lines := NewLineReader(ex.conn, h.cfg.ReadChunkSize)
	lines.MaxLineBytes = h.cfg.MaxLineBytes

	req, err := ParseRequest(lines)
	if err != nil {
		if lines.Received() == 0 {
			ex.logger.DebugContext(ctx, "peer closed before sending a request")
			return nil
		}
		if errors.Is(err, ErrParse) {
			ex.logger.InfoContext(ctx, "failed to parse request", "error", err)
			return h.reply(ctx, ex, NewTextResponse(StatusBadRequest))
		}
		return fmt.Errorf("read request: %w", err)
	}

	ex.logger = ex.logger.With("method", req.Method, "path", req.Path)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.target", req.Path),
	)

	// A refused body gets no 100 Continue, the client must not start sending it.
	n := req.ContentLength()
	if h.cfg.MaxBodyBytes > 0 && n > h.cfg.MaxBodyBytes {
		ex.logger.InfoContext(ctx, "failed to read request body", "error", ErrBodyTooLarge, "content_length", n)
		return h.reply(ctx, ex, NewTextResponse(StatusBadRequest))
	}

	if req.ExpectsContinue() {
		if err := h.reply(ctx, ex, NewInterimResponse(StatusContinue)); err != nil {
			return err
		}
	}

	if n > 0 {
		drained, err := io.Copy(io.Discard, lines.Body(n))
		if err != nil {
			return fmt.Errorf("drain request body: %w", err)
		}
		ex.logger.DebugContext(ctx, "request body drained", "bytes", drained, "content_length", n)
	}

	if req.Method != MethodGet {
		ex.logger.InfoContext(ctx, "rejected request", "error", ErrMethodNotAllowed)
		return h.reply(ctx, ex, NewTextResponse(StatusMethodNotAllowed))
	}

	return h.serveFile(ctx, ex, req)
}

func (h *ConnHandler) serveFile(ctx context.Context, ex *exchange, req *Request) error {
	outcome := h.resolver.Resolve(req.Path)
	if !outcome.Found {
		ex.logger.InfoContext(ctx, "file not found")
		return h.reply(ctx, ex, NewTextResponse(StatusNotFound))
	}

	file, err := h.filesystem.Open(outcome.Path)
	if err != nil {
		ex.logger.InfoContext(ctx, "file not readable", "error", err)
		return h.reply(ctx, ex, NewTextResponse(StatusNotFound))
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			ex.logger.ErrorContext(ctx, "closing file error", "error", closeErr)
		}
	}()

	info, err := file.Stat()
	if err != nil {
		ex.logger.ErrorContext(ctx, "stat of opened file failed", "error", err)
		return h.reply(ctx, ex, NewTextResponse(StatusInternalServerError))
	}

	res := NewStreamResponse(StatusOK, h.filesystem.ContentType(outcome.Path), file, info.Size())
	return h.reply(ctx, ex, res)
}

// reply sends res and records it. Once a final response has been attempted
// no second one is sent on the connection.
func (h *ConnHandler) reply(ctx context.Context, ex *exchange, res *Response) error {
	if res.Status >= StatusOK {
		ex.replied = true
		ex.status = res.Status
		instruments.responses.Add(ctx, 1, metric.WithAttributes(attribute.Int("http.status_code", int(res.Status))))
	}

	n, err := res.Send(ex.conn)
	instruments.bytesWritten.Add(ctx, n)
	if err != nil {
		return fmt.Errorf("send %d response: %w", res.Status, err)
	}

	ex.logger.DebugContext(ctx, "response sent", "status", res.Status, "bytes", n)
	return nil
}

func peerAddr(task ConnTask) string {
	if task.Peer != nil {
		return task.Peer.String()
	}
	if task.Conn != nil && task.Conn.RemoteAddr() != nil {
		return task.Conn.RemoteAddr().String()
	}
	return "unknown"
}
