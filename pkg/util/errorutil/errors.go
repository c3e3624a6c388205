package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to clients.
const (
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeBadRequest          = "BAD_REQUEST"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeConflict            = "CONFLICT"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeAccountDeactivated  = "ACCOUNT_DEACTIVATED"
	CodePasswordMismatch    = "PASSWORD_MISMATCH"
	CodeInvalidOrExpiredOTP = "INVALID_OR_EXPIRED_OTP"
	CodeEmailDeliveryFailed = "EMAIL_DELIVERY_FAILED"
	CodeTooManyRequests     = "TOO_MANY_REQUESTS"
	CodeInternal            = "INTERNAL_ERROR"
)

// FieldError describes a single invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Fields     []FieldError
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status the error maps to.
func (e *DomainError) StatusCode() int {
	return e.HTTPStatus
}

// Is matches another DomainError by code so errors.Is works against the
// exported sentinels below.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// Sentinels for errors.Is comparisons. Do not mutate.
var (
	ErrEmailTaken          = NewDomainError(CodeConflict, "User with this email already exists", http.StatusConflict, nil)
	ErrInvalidCredentials  = NewDomainError(CodeInvalidCredentials, "Invalid email or password", http.StatusUnauthorized, nil)
	ErrAccountDeactivated  = NewDomainError(CodeAccountDeactivated, "Your account has been deactivated. Please contact support.", http.StatusForbidden, nil)
	ErrPasswordMismatch    = NewDomainError(CodePasswordMismatch, "Passwords do not match", http.StatusBadRequest, nil)
	ErrInvalidOrExpiredOTP = NewDomainError(CodeInvalidOrExpiredOTP, "Invalid OTP or OTP has expired", http.StatusBadRequest, nil)
	ErrEmailDeliveryFailed = NewDomainError(CodeEmailDeliveryFailed, "Email could not be sent. Please try again later.", http.StatusBadGateway, nil)
	ErrTooManyRequests     = NewDomainError(CodeTooManyRequests, "Too many requests. Please try again later.", http.StatusTooManyRequests, nil)
)

func NewValidationError(message string, fields []FieldError) error {
	return &DomainError{
		Code:       CodeValidationFailed,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Fields:     fields,
	}
}

func NewBadRequest(message string) error {
	return NewDomainError(CodeBadRequest, message, http.StatusBadRequest, nil)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "Internal server error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError. Anything that is not
// already a DomainError becomes an internal error whose cause is kept for
// logging only.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return NewInternalError(err).(*DomainError)
}
