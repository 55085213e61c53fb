package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrUnavailable  = errors.New("service unavailable")
)

// opError tags an error with the handler operation and its API kind.
type opError struct {
	op   string
	kind error
	err  error
}

func (e *opError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.op, e.kind, e.err)
}

func (e *opError) Unwrap() []error { return []error{e.kind, e.err} }

// WrapKind attaches an operation and kind to err.
func WrapKind(op string, kind, err error) error {
	return &opError{op: op, kind: kind, err: err}
}
