package http

import (
	"bytes"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/freekieb7/staticd/filesystem"
)

// fakeConn replays a fixed request and records everything written to it.
// Reads hit io.EOF once the request is consumed, like a peer that closed its
// sending side.
type fakeConn struct {
	r      io.Reader
	mu     sync.Mutex
	out    bytes.Buffer
	closed atomic.Bool
}

func newFakeConn(raw string) *fakeConn {
	return &fakeConn{r: strings.NewReader(raw)}
}

func (c *fakeConn) Read(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, net.ErrClosed
	}
	return c.r.Read(p)
}

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, net.ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *fakeConn) Written() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String()
}

func (c *fakeConn) LocalAddr() net.Addr                { return fakeAddr("server") }
func (c *fakeConn) RemoteAddr() net.Addr               { return fakeAddr("client") }
func (c *fakeConn) SetDeadline(t time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeFiles creates files (slash separated names) below dir.
func writeFiles(t testing.TB, dir string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestHandler(t testing.TB, files map[string]string, configure func(*Config)) *ConnHandler {
	t.Helper()

	root := t.TempDir()
	writeFiles(t, root, files)

	cfg := DefaultConfig()
	cfg.Root = root
	if configure != nil {
		configure(&cfg)
	}

	return newTestHandlerFS(t, cfg, filesystem.NewLocalFileSystem())
}

func newTestHandlerFS(t testing.TB, cfg Config, fs filesystem.Filesystem) *ConnHandler {
	t.Helper()

	resolver, err := filesystem.NewResolver(fs, cfg.Root, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	return NewConnHandler(cfg, resolver, fs, discardLogger())
}

// roundTrip serves raw on a fake connection and returns what was written.
func roundTrip(t testing.TB, handler TaskHandler, raw string) (string, *fakeConn) {
	t.Helper()

	conn := newFakeConn(raw)
	handler.ServeConn(t.Context(), ConnTask{Conn: conn, Peer: conn.RemoteAddr(), Accepted: time.Now()})
	return conn.Written(), conn
}
