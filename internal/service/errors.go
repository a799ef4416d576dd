// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"errors"
	"fmt"

	"github.com/olegiv/blockpress/internal/store"
	"github.com/olegiv/blockpress/internal/validation"
)

// Service errors. Handlers map them to HTTP status codes with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ValidationError carries every field problem found in a request.
type ValidationError struct {
	Errors validation.Errors
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Errors.Error()
}

// Unwrap exposes the field errors.
func (e *ValidationError) Unwrap() error { return e.Errors }

// newValidationError returns nil when errs is empty.
func newValidationError(errs validation.Errors) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Errors: errs}
}

// invalidField builds a single-field validation error.
func invalidField(field, message string) error {
	return &ValidationError{Errors: validation.Errors{{Field: field, Message: message}}}
}

// UpstreamError reports a failure in storage or another dependency.
// It is never retried by the service.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *UpstreamError) Unwrap() error { return e.Err }

// fromStore maps store errors onto service errors. Anything unknown becomes
// an UpstreamError for op.
func fromStore(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return &UpstreamError{Op: op, Err: err}
	}
}
