// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package http

const (
	StatusContinue uint16 = 100 // RFC 7231, 6.2.1

	StatusOK uint16 = 200 // RFC 7231, 6.3.1

	StatusBadRequest       uint16 = 400 // RFC 7231, 6.5.1
	StatusNotFound         uint16 = 404 // RFC 7231, 6.5.4
	StatusMethodNotAllowed uint16 = 405 // RFC 7231, 6.5.5

	StatusInternalServerError uint16 = 500 // RFC 7231, 6.6.1
)

var (
	unknownStatusCode = "Unknown Status Code"

	statusMessages = map[uint16]string{
		StatusContinue: "Continue",

		StatusOK: "OK",

		StatusBadRequest:       "Bad Request",
		StatusNotFound:         "Not Found",
		StatusMethodNotAllowed: "Method Not Allowed",

		StatusInternalServerError: "Internal Server Error",
	}
)

// StatusText returns the reason phrase sent on the status line for code.
func StatusText(code uint16) string {
	if msg, ok := statusMessages[code]; ok {
		return msg
	}
	return unknownStatusCode
}
