package http

import (
	"errors"
	"strings"
	"testing"

	"github.com/freekieb7/staticd/test"
)

func parse(raw string) (*Request, error) {
	return ParseRequest(NewLineReader(strings.NewReader(raw), DefaultReadChunkSize))
}

func TestRequestParse(t *testing.T) {
	req, err := parse("GET /test HTTP/1.1\r\nAccept: text/css\r\nConnection: keep-alive\r\nContent-Length: 0\r\n\r\n")
	if err != nil {
		t.Fatal(err)
	}

	test.AssertEqual(t, "GET", req.Method)
	test.AssertEqual(t, "/test", req.Path)
	test.AssertEqual(t, "HTTP/1.1", req.Proto)

	h, found := req.Header("connection")
	if !found {
		t.Error("connection header not found")
	}
	test.AssertEqual(t, "keep-alive", h)

	h, _ = req.Header("ACCEPT")
	test.AssertEqual(t, "text/css", h)
}

func TestRequestParseMethodUpperCased(t *testing.T) {
	req, err := parse("get /index.html HTTP/1.1\r\n\r\n")
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, MethodGet, req.Method)
}

func TestRequestParseHeaders(t *testing.T) {
	req, err := parse("GET / HTTP/1.1\r\nX-Token:   abc  \r\nx-token: def\r\nEmpty:\r\nHost: a:b:c\r\n\r\n")
	if err != nil {
		t.Fatal(err)
	}

	test.AssertEqual(t, map[string]string{
		"x-token": "def",
		"empty":   "",
		"host":    "a:b:c",
	}, req.Headers())
}

func TestRequestParsePathIsRaw(t *testing.T) {
	req, err := parse("GET /a%20b/../c?x=1 HTTP/1.0\r\n\r\n")
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, "/a%20b/../c?x=1", req.Path)
	test.AssertEqual(t, "HTTP/1.0", req.Proto)
}

func TestRequestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"empty", "", "request line missing"},
		{"blank line only", "\r\n", "request line missing"},
		{"no terminator", "GET / HTTP/1.1", "request line missing"},
		{"two tokens", "GET /\r\n\r\n", "malformed request line"},
		{"four tokens", "GET / HTTP/1.1 extra\r\n\r\n", "malformed request line"},
		{"double space", "GET  / HTTP/1.1\r\n\r\n", "malformed request line"},
		{"trailing space", "GET / \r\n\r\n", "malformed request line"},
		{"tab separated", "GET\t/\tHTTP/1.1\r\n\r\n", "malformed request line"},
		{"header without colon", "GET / HTTP/1.1\r\nHost test\r\n\r\n", "malformed header line"},
		{"bad header after good", "GET / HTTP/1.1\r\nHost: test\r\nbroken\r\n\r\n", "malformed header line"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(tt.raw)
			if err == nil {
				t.Fatal("expected parse error")
			}
			if !errors.Is(err, ErrParse) {
				t.Fatalf("expected ErrParse, got %v", err)
			}

			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
			test.AssertEqual(t, tt.reason, parseErr.Reason)
		})
	}
}

func TestRequestParseLineTooLong(t *testing.T) {
	lr := NewLineReader(strings.NewReader("GET /"+strings.Repeat("a", 64)+" HTTP/1.1\r\n\r\n"), 16)
	lr.MaxLineBytes = 32

	_, err := ParseRequest(lr)
	if !errors.Is(err, ErrParse) || !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("expected parse error wrapping ErrLineTooLong, got %v", err)
	}
}

func TestRequestParseHeadersEndWithStream(t *testing.T) {
	req, err := parse("GET / HTTP/1.1\r\nHost: test\r\n")
	if err != nil {
		t.Fatal(err)
	}
	h, _ := req.Header("host")
	test.AssertEqual(t, "test", h)
}

func TestRequestContentLength(t *testing.T) {
	tests := map[string]int64{
		"":                     0,
		"content-length: 5":    5,
		"content-length: 0":    0,
		"content-length: x":    0,
		"content-length: -3":   0,
		"Content-Length:  12 ": 12,
	}

	for header, want := range tests {
		raw := "POST / HTTP/1.1\r\n"
		if header != "" {
			raw += header + "\r\n"
		}
		req, err := parse(raw + "\r\n")
		if err != nil {
			t.Fatal(err)
		}
		if got := req.ContentLength(); got != want {
			t.Errorf("%q: expected %d, got %d", header, want, got)
		}
	}
}

func TestRequestExpectsContinue(t *testing.T) {
	tests := map[string]bool{
		"":                          false,
		"Expect: 100-continue":      true,
		"expect: 100-Continue":      true,
		"expect: foo, 100-continue": true,
		"expect: 200-ok":            false,
	}

	for header, want := range tests {
		raw := "GET / HTTP/1.1\r\n"
		if header != "" {
			raw += header + "\r\n"
		}
		req, err := parse(raw + "\r\n")
		if err != nil {
			t.Fatal(err)
		}
		if got := req.ExpectsContinue(); got != want {
			t.Errorf("%q: expected %v, got %v", header, want, got)
		}
	}
}

func BenchmarkRequestParse(b *testing.B) {
	reqMsg := "GET /test HTTP/1.1\r\nAccept: text/css\r\nConnection: keep-alive\r\nContent-Length: 0\r\n\r\n"

	for b.Loop() {
		if _, err := parse(reqMsg); err != nil {
			b.Error(err)
		}
	}
}
