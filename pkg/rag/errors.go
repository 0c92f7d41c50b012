package rag

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the turn pipeline. Classification and
// retrieval failures are recovered inside their components; completion and
// persistence failures reach the caller.
type ErrorKind string

const (
	KindClassification ErrorKind = "classification"
	KindRetrieval      ErrorKind = "retrieval"
	KindCompletion     ErrorKind = "completion"
	KindPersistence    ErrorKind = "persistence"
)

type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether any error in err's chain is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
