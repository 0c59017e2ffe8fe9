package http

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// Request is the parsed request line and header block of one connection.
// Header names are stored lower-cased; the last value wins on duplicates.
type Request struct {
	Method string
	Path   string
	Proto  string

	headers map[string]string
}

// ParseError reports a request that cannot be understood. It always maps to
// a 400 response.
type ParseError struct {
	Reason string
	Line   string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line != "" {
		return fmt.Sprintf("http: %s: %q", e.Reason, e.Line)
	}
	return "http: " + e.Reason
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseRequest consumes the line sequence up to the blank line and builds a
// Request. It never reads the body. Read failures are returned as they are;
// anything wrong with the bytes themselves is a *ParseError.
func ParseRequest(lines *LineReader) (*Request, error) {
	line, ok, err := lines.Next()
	if err != nil {
		return nil, lineError(err)
	}
	if !ok {
		return nil, &ParseError{Reason: "request line missing"}
	}

	requestLine := string(line)
	parts := strings.Split(requestLine, " ")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, &ParseError{Reason: "malformed request line", Line: requestLine}
	}

	req := Request{
		Method:  strings.ToUpper(parts[0]),
		Path:    parts[1],
		Proto:   parts[2],
		headers: make(map[string]string),
	}

	for {
		line, ok, err := lines.Next()
		if err != nil {
			return nil, lineError(err)
		}
		if !ok {
			break
		}

		name, value, found := strings.Cut(string(line), ":")
		if !found {
			return nil, &ParseError{Reason: "malformed header line", Line: string(line)}
		}
		req.headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}

	return &req, nil
}

func lineError(err error) error {
	if errors.Is(err, ErrLineTooLong) {
		return &ParseError{Reason: "line too long", Err: err}
	}
	return err
}

// Header returns the value of the named header; the lookup is case-insensitive.
func (req *Request) Header(name string) (string, bool) {
	value, found := req.headers[strings.ToLower(name)]
	return value, found
}

// Headers returns a copy of the header map.
func (req *Request) Headers() map[string]string {
	return maps.Clone(req.headers)
}

// ContentLength returns the declared body size. A missing, negative or
// non-numeric content-length counts as zero rather than as an error.
func (req *Request) ContentLength() int64 {
	value, found := req.headers[headerContentLength]
	if !found {
		return 0
	}

	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ExpectsContinue reports whether the client waits for a 100 Continue before
// sending its body.
func (req *Request) ExpectsContinue() bool {
	return strings.Contains(strings.ToLower(req.headers[headerExpect]), expectContinue)
}
