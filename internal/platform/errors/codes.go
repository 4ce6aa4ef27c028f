// Package errors provides structured error handling for the postfold services.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Content errors
	CodeContentTitleEmpty  Code = "CONTENT_TITLE_EMPTY"
	CodeContentBodyEmpty   Code = "CONTENT_BODY_EMPTY"
	CodeContentAuthorEmpty Code = "CONTENT_AUTHOR_EMPTY"

	// Post errors
	CodePostNotCreated     Code = "POST_NOT_CREATED"
	CodePostAlreadyExists  Code = "POST_ALREADY_EXISTS"
	CodePostCommandInvalid Code = "POST_COMMAND_INVALID"

	// Storage errors
	CodeNotFound        Code = "NOT_FOUND"
	CodeVersionConflict Code = "VERSION_CONFLICT"

	// Request errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Infrastructure errors
	CodeUnavailable Code = "UNAVAILABLE"
	CodeInternal    Code = "INTERNAL"
)

// HTTPStatus maps the code to an HTTP status for API responses.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound, CodePostNotCreated:
		return http.StatusNotFound
	case CodePostAlreadyExists, CodeVersionConflict:
		return http.StatusConflict
	case CodeContentTitleEmpty, CodeContentBodyEmpty, CodeContentAuthorEmpty,
		CodePostCommandInvalid, CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
