package common

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	CodeValidation     ErrorCode = "VALIDATION"
	CodeAuthorization  ErrorCode = "AUTHORIZATION"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeConflict       ErrorCode = "CONFLICT"
	CodeInfrastructure ErrorCode = "INFRASTRUCTURE"
)

// AppError is the error type crossing service boundaries. Cause is kept for
// wrapping but never serialized to clients.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func ValidationError(format string, args ...interface{}) error {
	return &AppError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func AuthorizationError(format string, args ...interface{}) error {
	return &AppError{Code: CodeAuthorization, Message: fmt.Sprintf(format, args...)}
}

func NotFoundError(resource, id string) error {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s not found: %s", resource, id)}
}

func ConflictError(format string, args ...interface{}) error {
	return &AppError{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

func InfrastructureError(message string, cause error) error {
	return &AppError{Code: CodeInfrastructure, Message: message, Cause: cause}
}

func codeOf(err error) (ErrorCode, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, true
	}
	return "", false
}

func IsValidation(err error) bool     { c, ok := codeOf(err); return ok && c == CodeValidation }
func IsAuthorization(err error) bool  { c, ok := codeOf(err); return ok && c == CodeAuthorization }
func IsNotFound(err error) bool       { c, ok := codeOf(err); return ok && c == CodeNotFound }
func IsConflict(err error) bool       { c, ok := codeOf(err); return ok && c == CodeConflict }
func IsInfrastructure(err error) bool { c, ok := codeOf(err); return ok && c == CodeInfrastructure }

// HTTPStatus maps the error taxonomy onto response codes for the HTTP layer.
func HTTPStatus(err error) int {
	switch c, ok := codeOf(err); {
	case !ok:
		return http.StatusInternalServerError
	case c == CodeValidation:
		return http.StatusBadRequest
	case c == CodeAuthorization:
		return http.StatusForbidden
	case c == CodeNotFound:
		return http.StatusNotFound
	case c == CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
