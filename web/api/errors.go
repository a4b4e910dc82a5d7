package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/screwyprof/hivestake/ledger"
)

// Error represents a structured API error response
type Error struct {
	cause    error  // The original error (for logging/debugging)
	message  string // Safe user-facing message
	httpCode int    // HTTP status code (also used as API error code)
}

// HTTPCode returns the HTTP status code for this error
func (e *Error) HTTPCode() int {
	return e.httpCode
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.message
}

// Unwrap returns the underlying cause for error unwrapping
func (e *Error) Unwrap() error {
	return e.cause
}

// Is implements error checking for sentinel errors
func (e *Error) Is(target error) bool {
	return errors.Is(e.cause, target)
}

// Cause returns the original error for logging purposes
func (e *Error) Cause() error {
	return e.cause
}

// MarshalJSON implements json.Marshaler interface
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"code":    e.httpCode,
		"message": e.message,
	})
}

// Constructor functions for different error types.
// 4xx messages carry the cause; 5xx messages never do.

func BadRequest(cause error) *Error {
	return clientError(cause, http.StatusBadRequest)
}

func Forbidden(cause error) *Error {
	return clientError(cause, http.StatusForbidden)
}

func NotFound(cause error) *Error {
	return clientError(cause, http.StatusNotFound)
}

func Conflict(cause error) *Error {
	return clientError(cause, http.StatusConflict)
}

// BadGateway reports a failed collaborator call; message names the failure without its details
func BadGateway(cause error, message string) *Error {
	return &Error{
		cause:    cause,
		message:  message,
		httpCode: http.StatusBadGateway,
	}
}

func ServiceUnavailable(cause error) *Error {
	return serverError(cause, http.StatusServiceUnavailable)
}

func InternalServerError(cause error) *Error {
	return serverError(cause, http.StatusInternalServerError)
}

func clientError(cause error, code int) *Error {
	return &Error{
		cause:    cause,
		message:  cause.Error(),
		httpCode: code,
	}
}

func serverError(cause error, code int) *Error {
	return &Error{
		cause:    cause,
		message:  http.StatusText(code),
		httpCode: code,
	}
}

// gatewayFailures are collaborator failures surfaced as 502 under their own name
var gatewayFailures = []error{
	ledger.ErrVerificationFailed,
	ledger.ErrFundingTransferFailed,
	ledger.ErrTransferFailed,
}

// Wrap transforms any error into a safe API error.
// If the error is already an API error, it returns it unchanged
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, ledger.ErrPersistFailed):
		return InternalServerError(err)
	case errors.Is(err, ledger.ErrValidation):
		return BadRequest(err)
	case errors.Is(err, ledger.ErrAuthorization):
		return Forbidden(err)
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, ledger.ErrStakerNotFound):
		return NotFound(err)
	case errors.Is(err, ledger.ErrAlreadyStaked),
		errors.Is(err, ledger.ErrLockupNotComplete),
		errors.Is(err, ledger.ErrNoRewardsAvailable):
		return Conflict(err)
	case errors.Is(err, ledger.ErrShuttingDown):
		return ServiceUnavailable(err)
	}

	for _, failure := range gatewayFailures {
		if errors.Is(err, failure) {
			return BadGateway(err, failure.Error())
		}
	}

	return InternalServerError(err)
}
