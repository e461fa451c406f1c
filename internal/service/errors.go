// Package service implements identity, catalog, order placement and
// reporting.  Every protected operation takes an explicit model.Principal;
// failures are typed values classified by Kind.
package service

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalid
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindRetryable
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindRetryable:
		return "retryable_contention"
	}
	return "internal"
}

// Error is a classified sentinel failure.
type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Kind returns the failure class.
func (e *Error) Kind() Kind { return e.kind }

var (
	ErrInvalidInput         = &Error{KindInvalid, "invalid input"}
	ErrEmailExists          = &Error{KindConflict, "email already exists"}
	ErrAuthenticationFailed = &Error{KindUnauthorized, "invalid credentials"}
	ErrRefreshTokenNotFound = &Error{KindNotFound, "refresh token not found"}
	ErrRefreshTokenExpired  = &Error{KindUnauthorized, "refresh token expired"}
	ErrInvalidToken         = &Error{KindUnauthorized, "invalid token"}
	ErrExpiredToken         = &Error{KindUnauthorized, "token expired"}
	ErrAccessDenied         = &Error{KindForbidden, "access denied"}
	ErrLockTimeout          = &Error{KindRetryable, "stock is busy, retry the order"}
)

// invalidf wraps ErrInvalidInput with a message describing the field.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// NotFoundError reports a missing book, order or user.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found: %s", e.Resource, e.ID) }

// Kind returns KindNotFound.
func (e *NotFoundError) Kind() Kind { return KindNotFound }

// Resource names used in NotFoundError.
const (
	ResourceBook  = "book"
	ResourceOrder = "order"
	ResourceUser  = "user"
)

// InsufficientStockError aborts an order when a line asks for more copies
// than the locked book row holds.
type InsufficientStockError struct {
	BookID    string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for book %s: requested %d, available %d", e.BookID, e.Requested, e.Available)
}

// Kind returns KindConflict.
func (e *InsufficientStockError) Kind() Kind { return KindConflict }

// KindOf classifies err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// IsNotFound reports whether err is a NotFoundError for resource.
func IsNotFound(err error, resource string) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) && nf.Resource == resource
}
