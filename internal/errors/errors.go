package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"popconn/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context, keeping the code of an
// AppError or a domain error found in the chain
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    GetCode(err),
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the code of the outermost AppError, or the code of the
// domain error in the chain, or CodeInternalError
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return domainCode(err)
}

// Predefined error codes
const (
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeSchemaError        = "SCHEMA_ERROR"
	CodeShapeError         = "SHAPE_ERROR"
	CodeIncompleteData     = "INCOMPLETE_DATA"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInsufficientData   = "INSUFFICIENT_DATA"
	CodeDegenerateVariance = "DEGENERATE_VARIANCE"
	CodeShapeMismatch      = "SHAPE_MISMATCH"
	CodeIncompleteRun      = "INCOMPLETE_RUN"
	CodeInternalError      = "INTERNAL_ERROR"
)

var domainCodes = []struct {
	sentinel error
	code     string
}{
	{core.ErrSchema, CodeSchemaError},
	{core.ErrShape, CodeShapeError},
	{core.ErrIncompleteData, CodeIncompleteData},
	{core.ErrInvalidArgument, CodeInvalidInput},
	{core.ErrInsufficientData, CodeInsufficientData},
	{core.ErrDegenerateVariance, CodeDegenerateVariance},
	{core.ErrShapeMismatch, CodeShapeMismatch},
	{core.ErrIncompleteRun, CodeIncompleteRun},
}

func domainCode(err error) string {
	for _, dc := range domainCodes {
		if stderrors.Is(err, dc.sentinel) {
			return dc.code
		}
	}
	return CodeInternalError
}

// FromDomain converts any error into an AppError whose code reflects the
// domain taxonomy
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return &AppError{Code: domainCode(err), Message: err.Error(), Cause: err}
}

// HTTPStatus maps an error code to a response status
func HTTPStatus(code string) int {
	switch code {
	case CodeSchemaError, CodeShapeError, CodeIncompleteData, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeInsufficientData, CodeDegenerateVariance, CodeShapeMismatch:
		return http.StatusUnprocessableEntity
	case CodeIncompleteRun:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}
