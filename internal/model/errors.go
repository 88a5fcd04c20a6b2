package model

import (
	"errors"
	"fmt"
)

// Kind classifies engine errors for callers.
type Kind string

const (
	KindDataValidation      Kind = "DataValidationError"
	KindDuplicateRecord     Kind = "DuplicateRecordError"
	KindInsufficientData    Kind = "InsufficientDataError"
	KindUnknownStrategy     Kind = "UnknownStrategyError"
	KindInvalidParameter    Kind = "InvalidParameterError"
	KindInsufficientCapital Kind = "InsufficientCapitalError"
	KindComputationTimeout  Kind = "ComputationTimeoutError"
	KindInternal            Kind = "InternalError"
)

// Error is a structured engine failure: a kind plus the offending identifier.
type Error struct {
	Kind   Kind
	ID     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.ID != "" {
		msg += " [" + e.ID + "]"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.ID == "" || t.ID == e.ID)
}

// Sentinels for errors.Is.
var (
	ErrDataValidation      = &Error{Kind: KindDataValidation}
	ErrDuplicateRecord     = &Error{Kind: KindDuplicateRecord}
	ErrInsufficientData    = &Error{Kind: KindInsufficientData}
	ErrUnknownStrategy     = &Error{Kind: KindUnknownStrategy}
	ErrInvalidParameter    = &Error{Kind: KindInvalidParameter}
	ErrInsufficientCapital = &Error{Kind: KindInsufficientCapital}
	ErrComputationTimeout  = &Error{Kind: KindComputationTimeout}
)

// Errorf builds an *Error with a formatted detail.
func Errorf(kind Kind, id, format string, args ...any) *Error {
	return &Error{Kind: kind, ID: id, Detail: fmt.Sprintf(format, args...)}
}

// Timeout wraps a context error.
func Timeout(id string, cause error) *Error {
	return &Error{Kind: KindComputationTimeout, ID: id, Detail: "computation cancelled", Err: cause}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Payload converts err into the caller-facing error body.
func Payload(err error) ErrorPayload {
	return ErrorPayload{Error: KindOf(err), Details: err.Error()}
}
