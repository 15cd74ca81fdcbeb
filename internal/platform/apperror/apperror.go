// Package apperror defines the error taxonomy shared by the identity
// federation core. Callers classify failures with errors.Is against the
// sentinel errors below; AppError carries request-facing context.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound: a referenced clinic, login account, or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidClinic: a clinic reference is invalid or mismatched.
	ErrInvalidClinic = errors.New("invalid clinic")
	// ErrCrossTenantViolation: an operation would link records from two
	// different clinics. Fatal to the sub-operation, never silently fixed.
	ErrCrossTenantViolation = errors.New("cross-tenant violation")
	// ErrTransientStore: a retryable store-level failure.
	ErrTransientStore = errors.New("transient store error")
)

// AppError wraps a sentinel error with a stable code and HTTP status for
// the thin API layer.
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	HTTPStatus int               `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound builds a NotFound error for a missing resource.
func NotFound(resource string, id string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Code:       "NOT_FOUND",
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]string{"resource": resource, "id": id},
	}
}

// InvalidClinic builds an InvalidClinic error for a bad clinic reference.
func InvalidClinic(clinicID string) *AppError {
	return &AppError{
		Err:        ErrInvalidClinic,
		Message:    "clinic reference is invalid",
		Code:       "INVALID_CLINIC",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]string{"clinic_id": clinicID},
	}
}

// CrossTenant builds a CrossTenantViolation error naming the clinics that
// disagree. It indicates a data-integrity anomaly, not a transient condition.
func CrossTenant(detail string) *AppError {
	return &AppError{
		Err:        ErrCrossTenantViolation,
		Message:    "operation would link records from different clinics",
		Code:       "CROSS_TENANT_VIOLATION",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]string{"detail": detail},
	}
}

// Transient wraps a retryable store failure.
func Transient(err error) *AppError {
	return &AppError{
		Err:        ErrTransientStore,
		Message:    fmt.Sprintf("store operation failed: %v", err),
		Code:       "TRANSIENT_STORE_ERROR",
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// HTTPStatus maps an error to a response status, defaulting to 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidClinic):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrCrossTenantViolation):
		return http.StatusConflict
	case errors.Is(err, ErrTransientStore):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
