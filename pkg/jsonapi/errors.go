package jsonapi

import (
	"fmt"
	"strconv"
)

// ErrorBuilder provides a fluent API for building Error objects.
type ErrorBuilder struct {
	err Error
}

// NewError creates a new ErrorBuilder with the given status, code, and title.
func NewError(status int, code, title string) *ErrorBuilder {
	return &ErrorBuilder{
		err: Error{
			Status: strconv.Itoa(status),
			Code:   code,
			Title:  title,
		},
	}
}

// Detail sets the error detail message.
func (b *ErrorBuilder) Detail(detail string) *ErrorBuilder {
	b.err.Detail = detail
	return b
}

// Detailf sets the error detail message with formatting.
func (b *ErrorBuilder) Detailf(format string, args ...any) *ErrorBuilder {
	b.err.Detail = fmt.Sprintf(format, args...)
	return b
}

// ID sets the error occurrence ID, usually the request ID.
func (b *ErrorBuilder) ID(id string) *ErrorBuilder {
	b.err.ID = id
	return b
}

// Parameter marks the request parameter that caused the error.
func (b *ErrorBuilder) Parameter(param string) *ErrorBuilder {
	if b.err.Source == nil {
		b.err.Source = &ErrorSource{}
	}
	b.err.Source.Parameter = param
	return b
}

// Meta adds metadata to the error.
func (b *ErrorBuilder) Meta(key string, value any) *ErrorBuilder {
	if b.err.Meta == nil {
		b.err.Meta = make(Meta)
	}
	b.err.Meta[key] = value
	return b
}

// Build returns the constructed Error.
func (b *ErrorBuilder) Build() Error {
	return b.err
}

// StatusCode returns the HTTP status code as an int.
func (e Error) StatusCode() int {
	code, _ := strconv.Atoi(e.Status)
	return code
}

// The constructors below return builders so callers can attach the request
// ID or metadata before building.

// ErrBadRequest creates a 400 Bad Request error.
func ErrBadRequest(detail string) *ErrorBuilder {
	return NewError(400, "bad_request", "Bad Request").Detail(detail)
}

// ErrUnauthorized creates a 401 Unauthorized error.
func ErrUnauthorized(detail string) *ErrorBuilder {
	if detail == "" {
		detail = "Authentication required"
	}
	return NewError(401, "unauthorized", "Unauthorized").Detail(detail)
}

// ErrForbidden creates a 403 Forbidden error.
func ErrForbidden(detail string) *ErrorBuilder {
	if detail == "" {
		detail = "Access denied"
	}
	return NewError(403, "forbidden", "Forbidden").Detail(detail)
}

// ErrInvalidParameter creates a 400 error naming the offending parameter.
func ErrInvalidParameter(param, reason string) *ErrorBuilder {
	return NewError(400, "invalid_parameter", "Bad Request").
		Detailf("%s is invalid: %s", param, reason).
		Parameter(param)
}

// ErrNotFound creates a 404 Not Found error.
func ErrNotFound(resourceType string) *ErrorBuilder {
	return NewError(404, "not_found", "Not Found").
		Detailf("The requested %s was not found", resourceType)
}

// ErrNotFoundWithID creates a 404 Not Found error with resource ID.
func ErrNotFoundWithID(resourceType, id string) *ErrorBuilder {
	return NewError(404, "not_found", "Not Found").
		Detailf("The %s with ID '%s' was not found", resourceType, id)
}

// ErrInternal creates a 500 Internal Server Error.
func ErrInternal(detail string) *ErrorBuilder {
	if detail == "" {
		detail = "An internal error occurred"
	}
	return NewError(500, "internal_error", "Internal Server Error").Detail(detail)
}

// ErrServiceUnavailable creates a 503 Service Unavailable error.
func ErrServiceUnavailable(detail string) *ErrorBuilder {
	if detail == "" {
		detail = "Service temporarily unavailable"
	}
	return NewError(503, "service_unavailable", "Service Unavailable").Detail(detail)
}
