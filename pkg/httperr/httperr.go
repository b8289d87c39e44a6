// Package httperr holds request errors that carry their HTTP meaning.
package httperr

import (
	"errors"
	"net/http"
)

type BadRequestError struct {
	msg string
}

func (e *BadRequestError) Error() string { return e.msg }

func NewBadRequest(msg string) error { return &BadRequestError{msg: msg} }

func IsBadRequest(err error) bool {
	_, ok := errors.AsType[*BadRequestError](err)
	return ok
}

type NotFoundError struct {
	msg string
}

func (e *NotFoundError) Error() string { return e.msg }

func NewNotFound(msg string) error { return &NotFoundError{msg: msg} }

func IsNotFound(err error) bool {
	_, ok := errors.AsType[*NotFoundError](err)
	return ok
}

type ConflictError struct {
	msg string
}

func (e *ConflictError) Error() string { return e.msg }

func NewConflict(msg string) error { return &ConflictError{msg: msg} }

func IsConflict(err error) bool {
	_, ok := errors.AsType[*ConflictError](err)
	return ok
}

// LockedError marks a record that may not be changed or removed.
type LockedError struct {
	msg string
}

func (e *LockedError) Error() string { return e.msg }

func NewLocked(msg string) error { return &LockedError{msg: msg} }

func IsLocked(err error) bool {
	_, ok := errors.AsType[*LockedError](err)
	return ok
}

// Status maps err to an HTTP status; unknown errors are 500.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsBadRequest(err):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsLocked(err):
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}
