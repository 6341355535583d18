package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorQuery  ErrorCode = "QUERY_FAILED"
	ErrorCommit ErrorCode = "COMMIT_FAILED"
)

// Sentinels for errors.Is; any *Error with the same code matches.
var (
	ErrQuery  = &Error{Code: ErrorQuery}
	ErrCommit = &Error{Code: ErrorCommit}
)

// Error is a failed sweep. Query failures leave the store untouched; commit
// failures leave the failing batch untouched.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if e == nil || !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
