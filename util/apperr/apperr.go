// Package apperr carries the coded errors the lending core reports to its
// callers. Controllers switch on the code; the message keeps enough context
// (typically the current record state) to be useful in responses and logs.
package apperr

import (
	"errors"
	"fmt"
)

type Code string

const (
	NotFound     Code = "NOT_FOUND"
	OutOfStock   Code = "OUT_OF_STOCK"
	Conflict     Code = "CONFLICT"
	InvalidState Code = "INVALID_STATE"
)

type Error struct {
	code Code
	msg  string
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Code() Code    { return e.code }

func New(code Code, format string, args ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code, or "" for plain errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ""
}
