package http

import "errors"

const (
	DefaultReadChunkSize = 16 * 1024 // 16kB, one recv per chunk
	DefaultMaxLineBytes  = 8 * 1024  // 8kB per request or header line
	DefaultMaxBodyBytes  = 2 * 1024 * 1024
)

const (
	MethodGet = "GET"

	protocolHttp11 = "HTTP/1.1"

	headerContentType   = "content-type"
	headerContentLength = "content-length"
	headerExpect        = "expect"

	expectContinue = "100-continue"

	contentTypeText = "text/plain"
)

var crlf = []byte("\r\n")

var (
	ErrParse            = errors.New("http: malformed request")
	ErrLineTooLong      = errors.New("http: line too long")
	ErrBodyTooLarge     = errors.New("http: request body too large")
	ErrMethodNotAllowed = errors.New("http: method not allowed")
	ErrShortBody        = errors.New("http: body shorter than content-length")
	ErrQueueClosed      = errors.New("http: queue closed")
	ErrServerClosed     = errors.New("http: server closed")
)
