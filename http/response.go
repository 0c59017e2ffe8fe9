package http

import (
	"errors"
	"io"
	"maps"
	"net"
	"slices"
	"strconv"
	"strings"
)

// Response is a status, a header set and a body that is either held in memory
// or streamed from a reader of known length. The content-length header is
// always derived from the body; a value set by hand is ignored.
type Response struct {
	Status  uint16
	Headers map[string]string

	body   []byte
	stream io.Reader
	size   int64
}

func NewResponse(status uint16, contentType string, body []byte) *Response {
	res := &Response{
		Status:  status,
		Headers: map[string]string{},
		body:    body,
	}
	res.SetHeader(headerContentType, contentType)
	return res
}

// NewTextResponse builds the plain text response whose body is the reason
// phrase, e.g. "404 Not Found" with body "Not Found".
func NewTextResponse(status uint16) *Response {
	return NewResponse(status, contentTypeText, []byte(StatusText(status)))
}

func NewStreamResponse(status uint16, contentType string, stream io.Reader, size int64) *Response {
	res := &Response{
		Status:  status,
		Headers: map[string]string{},
		stream:  stream,
		size:    size,
	}
	res.SetHeader(headerContentType, contentType)
	return res
}

// NewInterimResponse builds a 1xx response. It has neither body nor
// content-length.
func NewInterimResponse(status uint16) *Response {
	return &Response{
		Status:  status,
		Headers: map[string]string{},
	}
}

func (res *Response) SetHeader(name, value string) {
	res.Headers[strings.ToLower(name)] = value
}

func (res *Response) interim() bool {
	return res.Status < StatusOK
}

// ContentLength is the exact number of body bytes Send writes.
func (res *Response) ContentLength() int64 {
	switch {
	case res.interim():
		return 0
	case res.stream != nil:
		return res.size
	default:
		return int64(len(res.body))
	}
}

// Send writes the whole response to w and returns the number of bytes
// written. Any failure fails the send; a half written response is not
// resumable. Streams are copied straight into w so that a *net.TCPConn can
// hand an *os.File to sendfile.
func (res *Response) Send(w io.Writer) (int64, error) {
	head := res.appendHead(make([]byte, 0, 256))

	buffers := net.Buffers{head}
	if !res.interim() && res.stream == nil && len(res.body) > 0 {
		buffers = append(buffers, res.body)
	}

	written, err := buffers.WriteTo(w)
	if err != nil {
		return written, err
	}

	if res.interim() || res.stream == nil || res.size == 0 {
		return written, nil
	}

	copied, err := io.CopyN(w, res.stream, res.size)
	written += copied
	if errors.Is(err, io.EOF) {
		return written, ErrShortBody
	}
	return written, err
}

func (res *Response) appendHead(b []byte) []byte {
	b = append(b, protocolHttp11...)
	b = append(b, ' ')
	b = strconv.AppendUint(b, uint64(res.Status), 10)
	b = append(b, ' ')
	b = append(b, StatusText(res.Status)...)
	b = append(b, crlf...)

	if !res.interim() {
		if contentType, found := res.Headers[headerContentType]; found && contentType != "" {
			b = appendHeader(b, headerContentType, contentType)
		}
		b = appendHeader(b, headerContentLength, strconv.FormatInt(res.ContentLength(), 10))
	}

	for _, name := range slices.Sorted(maps.Keys(res.Headers)) {
		if name == headerContentType || name == headerContentLength {
			continue
		}
		if name = sanitizeHeaderName(name); name == "" {
			continue
		}
		b = appendHeader(b, name, res.Headers[name])
	}

	return append(b, crlf...)
}

func appendHeader(b []byte, name, value string) []byte {
	b = append(b, name...)
	b = append(b, ':', ' ')
	b = appendSanitizedValue(b, value)
	return append(b, crlf...)
}

// sanitizeHeaderName returns name if it is a valid token, otherwise "".
func sanitizeHeaderName(name string) string {
	if name == "" {
		return ""
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			continue
		}
		switch c {
		case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
			continue
		default:
			return ""
		}
	}
	return name
}

// appendSanitizedValue drops CR, LF and other control bytes except HTAB so a
// header value can never split the head.
func appendSanitizedValue(b []byte, value string) []byte {
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c == 0x7f || (c < 0x20 && c != '\t') {
			continue
		}
		b = append(b, c)
	}
	return b
}
