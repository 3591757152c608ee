package toolclient

import (
	"errors"
	"fmt"
)

// ErrorKind separates failures the retry loop may repeat from failures that
// will never succeed no matter how often they are retried.
type ErrorKind string

const (
	KindTransient ErrorKind = "transient"
	KindPermanent ErrorKind = "permanent"
)

// Error is the only error type Invoke returns to callers.
type Error struct {
	Tool string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool %s: %s error: %v", e.Tool, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newTransient(tool string, err error) *Error {
	return &Error{Tool: tool, Kind: KindTransient, Err: err}
}

func newPermanent(tool string, err error) *Error {
	return &Error{Tool: tool, Kind: KindPermanent, Err: err}
}

func IsTransient(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == KindTransient
}

func IsPermanent(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == KindPermanent
}
