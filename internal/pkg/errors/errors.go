// Package errors provides custom error types and error handling utilities.
package errors

import (
	"fmt"
)

// Error codes.
const (
	// Caller errors.
	CodeValidation     = "VALIDATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeEmptyInput     = "EMPTY_INPUT"
	CodeInvalidRequest = "INVALID_REQUEST"

	// Expected pipeline outcomes.
	CodeNoExtractableDiagnosis = "NO_EXTRACTABLE_DIAGNOSIS"

	// Operator-facing failures.
	CodeInsufficientCategorySize = "INSUFFICIENT_CATEGORY_SIZE"
	CodePredictionInvalid        = "PREDICTION_RESPONSE_INVALID"

	// Infrastructure failures.
	CodeInternal    = "INTERNAL_ERROR"
	CodeUnavailable = "SERVICE_UNAVAILABLE"
	CodeTimeout     = "TIMEOUT"
	CodeRateLimited = "RATE_LIMITED"
)

// AppError represents an application error with code and details.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError.
func Wrap(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Convenience constructors.

// ValidationError creates a validation error.
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// NotFoundError creates a not found error.
func NotFoundError(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// EmptyInputError creates an empty input error. Raised when a component that
// requires non-blank text is handed blank or whitespace-only input; callers
// are expected to filter such input upstream.
func EmptyInputError(component string) *AppError {
	return New(CodeEmptyInput, fmt.Sprintf("%s given blank input", component))
}

// NoExtractableDiagnosisError marks a case whose query text contains
// clarification language but no checked diagnosis. This is a valid, expected
// outcome: the case is excluded from metrics and counted separately.
func NoExtractableDiagnosisError(caseID string) *AppError {
	return New(CodeNoExtractableDiagnosis, "no extractable diagnosis").
		WithDetail("case_id", caseID)
}

// InsufficientCategorySizeError is returned when a stratified split cannot
// place at least one member of a category in every partition.
func InsufficientCategorySizeError(category string, size, splits int) *AppError {
	return New(CodeInsufficientCategorySize,
		fmt.Sprintf("category %q has %d cases, need at least %d for one per split", category, size, splits))
}

// PredictionInvalidError marks an unparseable prediction response. Kept
// distinct from a legitimate empty prediction so failed cases are counted,
// never scored as zero false positives.
func PredictionInvalidError(message string, err error) *AppError {
	return Wrap(CodePredictionInvalid, message, err)
}

// InternalError creates an internal error.
func InternalError(message string, err error) *AppError {
	return Wrap(CodeInternal, message, err)
}

// InvalidRequestError creates an invalid request error.
func InvalidRequestError(message string) *AppError {
	return New(CodeInvalidRequest, message)
}

// RateLimitedError creates a rate limited error with retry information.
func RateLimitedError(retryAfterSeconds int) *AppError {
	err := New(CodeRateLimited, "rate limit exceeded")
	if retryAfterSeconds > 0 {
		err = err.WithDetail("retry_after", fmt.Sprintf("%d", retryAfterSeconds))
	}
	return err
}

// TimeoutError creates a timeout error for a specific operation.
func TimeoutError(operation string) *AppError {
	message := "operation timed out"
	if operation != "" {
		message = fmt.Sprintf("%s timed out", operation)
	}
	return New(CodeTimeout, message)
}

// ServiceUnavailableError creates a service unavailable error.
func ServiceUnavailableError(service string) *AppError {
	message := "service unavailable"
	if service != "" {
		message = fmt.Sprintf("%s is unavailable", service)
	}
	return New(CodeUnavailable, message)
}

// IsCode checks if err is an AppError with the given code.
func IsCode(err error, code string) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is a not found error.
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// IsValidation checks if error is a validation error.
func IsValidation(err error) bool {
	return IsCode(err, CodeValidation)
}

// IsEmptyInput checks if error is an empty input error.
func IsEmptyInput(err error) bool {
	return IsCode(err, CodeEmptyInput)
}

// IsNoExtractableDiagnosis checks for the not-evaluable case outcome.
func IsNoExtractableDiagnosis(err error) bool {
	return IsCode(err, CodeNoExtractableDiagnosis)
}

// IsPredictionInvalid checks if error marks an unparseable prediction response.
func IsPredictionInvalid(err error) bool {
	return IsCode(err, CodePredictionInvalid)
}
