package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ValidationError     ErrorCode = "validation_error"
	InvalidAmount       ErrorCode = "invalid_amount"
	NotFound            ErrorCode = "not_found"
	Conflict            ErrorCode = "conflict"
	ChannelNotFound     ErrorCode = "channel_not_found"
	UnsupportedProvider ErrorCode = "unsupported_provider"
	ProviderFailure     ErrorCode = "provider_failure"
	DuplicateReference  ErrorCode = "duplicate_reference"
	Unauthorized        ErrorCode = "unauthorized"
	InternalError       ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an AppError carrying the same code, so
// predefined errors match copies returned by WithDetails.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetails returns a copy of e carrying details. The receiver is left
// untouched so the package level errors stay immutable.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// HTTPStatus maps the error code to the status code written by the boundary layer.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ValidationError, InvalidAmount:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case ChannelNotFound, UnsupportedProvider:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict, DuplicateReference:
		return http.StatusConflict
	case ProviderFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Predefined errors for common cases
var (
	ErrInvalidAmount          = NewAppError(InvalidAmount, "amount must be greater than zero")
	ErrTransactionNotFound    = NewAppError(NotFound, "transaction not found")
	ErrInvalidTransition      = NewAppError(Conflict, "transaction status does not allow this operation")
	ErrChannelNotFound        = NewAppError(ChannelNotFound, "channel does not exist")
	ErrUnsupportedProvider    = NewAppError(UnsupportedProvider, "provider not supported")
	ErrProviderFailure        = NewAppError(ProviderFailure, "failed to process transaction")
	ErrDuplicateReference     = NewAppError(DuplicateReference, "transaction reference already exists")
	ErrAPIKeyRequired         = NewAppError(Unauthorized, "API key is required")
	ErrInvalidAPIKey          = NewAppError(Unauthorized, "Invalid API key")
	ErrCannotBeginTransaction = NewAppError(InternalError, "store cannot begin a transaction")
)

// As returns the AppError inside err, wrapping anything else as an internal error.
func As(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return NewAppError(InternalError, "an unexpected error occurred").WithDetails(err.Error())
}
