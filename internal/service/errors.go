// Package service holds the business rules behind the HTTP API: authentication,
// the password reset ledger, contact submissions and administration.
package service

import (
	"errors"
	"fmt"

	"github.com/hongminglow/istc-be/internal/storage"
)

// Kind classifies failures so transports can pick a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error is a classified failure. Message is safe to show to clients; Err is not.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same Kind and, when set, the same Message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func newError(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func badRequest(msg string, details ...string) *Error {
	return &Error{Kind: KindBadRequest, Message: msg, Details: details}
}

func internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// Sentinels for errors.Is checks in callers and tests.
var (
	ErrInvalidCredentials = newError(KindUnauthorized, "invalid credentials")
	ErrAccountDisabled    = newError(KindForbidden, "account is deactivated")
	ErrUserNotFound       = newError(KindNotFound, "user not found")
	ErrRoleNotFound       = newError(KindNotFound, "role not found")
	ErrInvalidResetToken  = newError(KindBadRequest, "invalid or expired reset token")
	ErrResetRateLimited   = newError(KindRateLimited, "please check your email or wait before requesting another reset")
	ErrContactRateLimited = newError(KindRateLimited, "please wait before submitting another message")
	ErrPasswordUnchanged  = newError(KindBadRequest, "new password cannot be the same as the current password")
	ErrPasswordMismatch   = newError(KindBadRequest, "passwords do not match")
	ErrWrongPassword      = newError(KindUnauthorized, "current password is incorrect")
)

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// fromStore classifies a storage error about entity ("user", "role", ...).
func fromStore(err error, entity, op string) error {
	var dup *storage.DuplicateKeyError
	var invalid *storage.ValidationError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &dup):
		msg := entity + " already exists"
		if dup.Field != "" {
			msg = fmt.Sprintf("%s with this %s already exists", entity, dup.Field)
		}
		return &Error{Kind: KindConflict, Message: msg, Err: err}
	case errors.As(err, &invalid):
		return &Error{Kind: KindBadRequest, Message: "validation error", Details: invalid.Messages, Err: err}
	case errors.Is(err, storage.ErrNotFound):
		return &Error{Kind: KindNotFound, Message: entity + " not found", Err: err}
	default:
		return internal(op+" failed", err)
	}
}
