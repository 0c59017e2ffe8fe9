package http

import (
	"bytes"
	"io"
)

// LineReader pulls CRLF terminated lines off a byte stream. It reads in
// chunks and only as often as needed to surface the next line. The sequence
// ends at the first empty line (end of the header block) or when the peer
// closes the stream; after that every call to Next reports no line.
type LineReader struct {
	// MaxLineBytes bounds a single line, zero disables the check.
	MaxLineBytes int

	r        io.Reader
	chunk    []byte
	buf      []byte
	received int64
	readErr  error
	done     bool
}

func NewLineReader(r io.Reader, chunkSize int) *LineReader {
	if chunkSize <= 0 {
		chunkSize = DefaultReadChunkSize
	}

	return &LineReader{
		MaxLineBytes: DefaultMaxLineBytes,
		r:            r,
		chunk:        make([]byte, chunkSize),
	}
}

// Next returns the next line without its delimiter. ok is false once the
// blank terminator line was consumed or the stream ended. err is only set
// for read failures other than io.EOF and for ErrLineTooLong.
func (lr *LineReader) Next() (line []byte, ok bool, err error) {
	for !lr.done {
		if i := bytes.Index(lr.buf, crlf); i >= 0 {
			if lr.MaxLineBytes > 0 && i > lr.MaxLineBytes {
				lr.done = true
				return nil, false, ErrLineTooLong
			}
			line, lr.buf = lr.buf[:i:i], lr.buf[i+len(crlf):]
			if len(line) == 0 {
				lr.done = true
				return nil, false, nil
			}
			return line, true, nil
		}

		// A trailing CR may be the first half of the delimiter.
		if pending := len(bytes.TrimSuffix(lr.buf, crlf[:1])); lr.MaxLineBytes > 0 && pending > lr.MaxLineBytes {
			lr.done = true
			return nil, false, ErrLineTooLong
		}

		if lr.readErr != nil {
			lr.done = true
			if lr.readErr == io.EOF {
				return nil, false, nil
			}
			return nil, false, lr.readErr
		}

		n, err := lr.r.Read(lr.chunk)
		if n > 0 {
			lr.received += int64(n)
			lr.buf = append(lr.buf, lr.chunk[:n]...)
		}
		switch {
		case err != nil:
			lr.readErr = err
		case n == 0:
			// Nothing read and no error: the peer is gone.
			lr.readErr = io.EOF
		}
	}

	return nil, false, nil
}

// Remainder returns the bytes buffered past the blank line. They are the
// first bytes of the request body.
func (lr *LineReader) Remainder() []byte {
	return lr.buf
}

// Received reports how many bytes were read from the underlying stream.
func (lr *LineReader) Received() int64 {
	return lr.received
}

// Body returns a reader over the next n body bytes: the buffered remainder
// first, then the underlying stream. The remainder is handed over, so the
// LineReader must not be used for lines afterwards.
func (lr *LineReader) Body(n int64) io.Reader {
	remainder := lr.buf
	lr.buf = nil
	lr.done = true

	if lr.readErr != nil {
		return io.LimitReader(bytes.NewReader(remainder), n)
	}
	return io.LimitReader(io.MultiReader(bytes.NewReader(remainder), lr.r), n)
}
