package domain

import (
	"errors"
	"fmt"
)

type FetchErrorKind int

const (
	Unreachable FetchErrorKind = iota + 1
	BadStatus
	ParseError
)

func (k FetchErrorKind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case BadStatus:
		return "bad_status"
	case ParseError:
		return "parse_error"
	default:
		return "unknown"
	}
}

type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == BadStatus {
		return fmt.Sprintf("fetch rates: %s %d", e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("fetch rates: %s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type StoreErrorKind int

const (
	IOFailure StoreErrorKind = iota + 1
	ConstraintViolation
)

func (k StoreErrorKind) String() string {
	switch k {
	case IOFailure:
		return "io_failure"
	case ConstraintViolation:
		return "constraint_violation"
	default:
		return "unknown"
	}
}

type StoreError struct {
	Kind StoreErrorKind
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func IsFetchError(err error, kind FetchErrorKind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == kind
}

func IsStoreError(err error, kind StoreErrorKind) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == kind
}
