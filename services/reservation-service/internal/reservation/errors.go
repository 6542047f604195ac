package reservation

import (
	"errors"
	"fmt"
)

// Error kinds the engine can return. Callers classify with the Is*
// helpers; the wrapped message is safe to surface to clients verbatim.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrBadRequest   = errors.New("bad request")
	ErrForbidden    = errors.New("forbidden")
)

func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
func IsConflict(err error) bool     { return errors.Is(err, ErrConflict) }
func IsBadRequest(err error) bool   { return errors.Is(err, ErrBadRequest) }
func IsForbidden(err error) bool    { return errors.Is(err, ErrForbidden) }

type kindError struct {
	kind error
	msg  string
}

func (e kindError) Error() string { return e.msg }
func (e kindError) Unwrap() error { return e.kind }

func notFound(format string, args ...any) error {
	return kindError{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

func invalidInput(format string, args ...any) error {
	return kindError{kind: ErrInvalidInput, msg: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) error {
	return kindError{kind: ErrConflict, msg: fmt.Sprintf(format, args...)}
}

func badRequest(format string, args ...any) error {
	return kindError{kind: ErrBadRequest, msg: fmt.Sprintf(format, args...)}
}

func forbidden(format string, args ...any) error {
	return kindError{kind: ErrForbidden, msg: fmt.Sprintf(format, args...)}
}
