package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrNotFound record not found
	ErrNotFound = errors.New("record not found")

	// ErrInvalidRequest operation not allowed for the current plan or state
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUpstreamFailure billing provider call failed
	ErrUpstreamFailure = errors.New("billing provider unavailable")

	// ErrVerificationTimeout polling finished without the payment confirming;
	// a retry-later condition, not an upstream fault
	ErrVerificationTimeout = errors.New("payment not completed")

	// ErrSignatureInvalid webhook authenticity check failed
	ErrSignatureInvalid = errors.New("invalid webhook signature")

	// ErrPlanUnresolved an order carried no usable plan information
	ErrPlanUnresolved = errors.New("cannot determine plan")

	// ErrNotCancelable the plan has nothing to cancel upstream
	ErrNotCancelable = errors.New("subscription is not cancelable")

	// ErrMissingVariant no variant is configured for the requested plan
	ErrMissingVariant = errors.New("no billing variant configured for plan")
)

// SubscriptionError carries context about a failed subscription operation
type SubscriptionError struct {
	Code           string
	Message        string
	SubscriptionID string
	OriginalErr    error
}

// Error implements the error interface
func (e *SubscriptionError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("subscription error [%s]: %s: %v (subscription_id: %s)", e.Code, e.Message, e.OriginalErr, e.SubscriptionID)
	}
	return fmt.Sprintf("subscription error [%s]: %s (subscription_id: %s)", e.Code, e.Message, e.SubscriptionID)
}

// Unwrap returns the original error
func (e *SubscriptionError) Unwrap() error {
	return e.OriginalErr
}

// NewSubscriptionError creates a new subscription error
func NewSubscriptionError(code, message, subscriptionID string, err error) *SubscriptionError {
	return &SubscriptionError{
		Code:           code,
		Message:        message,
		SubscriptionID: subscriptionID,
		OriginalErr:    err,
	}
}

// ExternalServiceError wraps a failed call to the billing provider
type ExternalServiceError struct {
	Service     string
	Code        string
	Message     string
	StatusCode  int
	OriginalErr error
}

// Error implements the error interface
func (e *ExternalServiceError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("%s service error [%s]: %s: %v", e.Service, e.Code, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("%s service error [%s]: %s", e.Service, e.Code, e.Message)
}

// Unwrap returns the original error
func (e *ExternalServiceError) Unwrap() error {
	return e.OriginalErr
}

// Is matches against the upstream-failure sentinel
func (e *ExternalServiceError) Is(target error) bool {
	return target == ErrUpstreamFailure
}

// NewExternalServiceError creates a new external service error
func NewExternalServiceError(service, code, message string, statusCode int, err error) *ExternalServiceError {
	return &ExternalServiceError{
		Service:     service,
		Code:        code,
		Message:     message,
		StatusCode:  statusCode,
		OriginalErr: err,
	}
}

// NotFoundError identifies which entity was missing
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Entity, e.ID)
}

// Is matches against the not-found sentinel
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new not-found error
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}
