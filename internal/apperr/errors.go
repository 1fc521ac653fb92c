// Package apperr defines the error kinds shared by the campaign and invitation services.
package apperr

import (
	"errors"
	"strings"
)

// Kind classifies a domain failure.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindValidation      Kind = "validation"
	KindForbidden       Kind = "forbidden"
	KindAlreadyConsumed Kind = "already_consumed"
	KindRevoked         Kind = "revoked"
	KindConfiguration   Kind = "configuration"
)

// Sentinels for errors.Is checks. Matching is by kind only.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrAlreadyConsumed = &Error{Kind: KindAlreadyConsumed}
	ErrRevoked         = &Error{Kind: KindRevoked}
	ErrConfiguration   = &Error{Kind: KindConfiguration}
)

// Error is the domain error carried across service boundaries.
type Error struct {
	Kind Kind
	// Op names the failing operation, e.g. "invitation.redeem".
	Op  string
	Msg string
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "":
		b.WriteString(e.Msg)
	default:
		b.WriteString(strings.ReplaceAll(string(e.Kind), "_", " "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target has the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Code is picked up by the telegram router for the err_code log field.
func (e *Error) Code() string { return string(e.Kind) }

// New builds an error of the given kind.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func NotFound(op, msg string) *Error        { return New(KindNotFound, op, msg) }
func Validation(op, msg string) *Error      { return New(KindValidation, op, msg) }
func Forbidden(op, msg string) *Error       { return New(KindForbidden, op, msg) }
func AlreadyConsumed(op, msg string) *Error { return New(KindAlreadyConsumed, op, msg) }
func Revoked(op, msg string) *Error         { return New(KindRevoked, op, msg) }
func Configuration(op, msg string) *Error   { return New(KindConfiguration, op, msg) }

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
