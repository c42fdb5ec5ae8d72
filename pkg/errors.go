// Package pkg holds utilities shared across the project.
// This file defines the domain-level errors.
//
// Errors are plain values created once with errors.New, so callers compare
// them by identity instead of by message text:
//
//	if errors.Is(err, pkg.ErrNotFound) { ... }
//
// Services wrap them with context ("%w: phone is required"); handlers map
// them to HTTP status codes in response.go.
package pkg

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrAlreadyExists   = errors.New("already exists")
	ErrBadRequest      = errors.New("bad request")
	ErrTooManyRequests = errors.New("too many requests")
	ErrUpstream        = errors.New("upstream error")
	ErrInternal        = errors.New("internal error")
)
