package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies an error for transport mapping and retry decisions
type ErrorType string

const (
	// Composition errors (caller/data problems, never retried)
	ErrorTypeInsufficientInput     ErrorType = "INSUFFICIENT_INPUT"
	ErrorTypeUnresolvedPlaceholder ErrorType = "UNRESOLVED_PLACEHOLDER"
	ErrorTypeLabelBindingMismatch  ErrorType = "LABEL_BINDING_MISMATCH"
	ErrorTypeValidation            ErrorType = "VALIDATION"
	ErrorTypeNotFound              ErrorType = "NOT_FOUND"

	// Deployment errors
	ErrorTypeDeploymentInProgress ErrorType = "DEPLOYMENT_IN_PROGRESS"
	ErrorTypeDeploymentFailed     ErrorType = "DEPLOYMENT_FAILED"
	ErrorTypeActivationUnverified ErrorType = "ACTIVATION_UNVERIFIED"

	// Infrastructure errors
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeInternal     ErrorType = "INTERNAL"
	ErrorTypeDatabase     ErrorType = "DATABASE"
	ErrorTypeExternal     ErrorType = "EXTERNAL"
)

// AppError is the application-wide error carrier
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails adds error details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// NewInsufficientInputError signals an empty or invalid category selection.
// This is a caller bug and must never be retried.
func NewInsufficientInputError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInsufficientInput,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewUnresolvedPlaceholderError names the exact token that had no binding.
func NewUnresolvedPlaceholderError(token string) *AppError {
	return &AppError{
		Type:       ErrorTypeUnresolvedPlaceholder,
		Message:    fmt.Sprintf("no binding supplied for placeholder %q", token),
		Details:    map[string]interface{}{"token": token},
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewLabelBindingMismatchError lists every intent key whose label is not
// provisioned for the tenant. Batched so one fix cycle covers all of them.
func NewLabelBindingMismatchError(intentKeys []string) *AppError {
	return &AppError{
		Type:       ErrorTypeLabelBindingMismatch,
		Message:    fmt.Sprintf("labels not provisioned for intent keys: %v", intentKeys),
		Details:    map[string]interface{}{"intentKeys": intentKeys},
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewDeploymentInProgressError signals single-flight contention; callers
// should back off and retry later.
func NewDeploymentInProgressError(profileID string) *AppError {
	return &AppError{
		Type:       ErrorTypeDeploymentInProgress,
		Message:    fmt.Sprintf("a deployment is already in flight for profile %s", profileID),
		Details:    map[string]interface{}{"profileId": profileID},
		HTTPStatus: http.StatusConflict,
	}
}

// NewDeploymentFailedError wraps the last underlying cause after retries
// are exhausted or a permanent engine error occurs.
func NewDeploymentFailedError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeDeploymentFailed,
		Message:    message,
		Cause:      cause,
		HTTPStatus: http.StatusBadGateway,
	}
}

// NewActivationUnverifiedError reports a graph that deployed but could not
// be confirmed live. Distinct from deploy failure: the graph exists.
func NewActivationUnverifiedError(externalID string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeActivationUnverified,
		Message:    fmt.Sprintf("graph %s deployed but activation could not be verified", externalID),
		Details:    map[string]interface{}{"externalGraphId": externalID},
		Cause:      cause,
		HTTPStatus: http.StatusBadGateway,
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeDatabase,
		Message:    fmt.Sprintf("database operation '%s' failed", operation),
		Cause:      err,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewExternalError creates an external service error
func NewExternalError(service string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Message:    fmt.Sprintf("external service '%s' error", service),
		Cause:      err,
		HTTPStatus: http.StatusBadGateway,
	}
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsInsufficientInput checks for an empty-selection error
func IsInsufficientInput(err error) bool {
	return IsType(err, ErrorTypeInsufficientInput)
}

// IsUnresolvedPlaceholder checks for a missing-binding error
func IsUnresolvedPlaceholder(err error) bool {
	return IsType(err, ErrorTypeUnresolvedPlaceholder)
}

// IsLabelBindingMismatch checks for a stale-label error
func IsLabelBindingMismatch(err error) bool {
	return IsType(err, ErrorTypeLabelBindingMismatch)
}

// IsDeploymentInProgress checks for single-flight contention
func IsDeploymentInProgress(err error) bool {
	return IsType(err, ErrorTypeDeploymentInProgress)
}

// IsDeploymentFailed checks for a terminal deployment failure
func IsDeploymentFailed(err error) bool {
	return IsType(err, ErrorTypeDeploymentFailed)
}

// IsActivationUnverified checks for an unconfirmed activation
func IsActivationUnverified(err error) bool {
	return IsType(err, ErrorTypeActivationUnverified)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, keep its type and prepend context
	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
