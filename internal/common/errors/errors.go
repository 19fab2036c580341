// Package errors provides standardized error handling for the notification pipeline.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeNotificationStoreFailed ErrorCode = "NOTIFICATION_STORE_FAILED"
	ErrCodeNotificationNotFound    ErrorCode = "NOTIFICATION_NOT_FOUND"

	ErrCodeEmailSendFailed  ErrorCode = "EMAIL_SEND_FAILED"
	ErrCodeEmailSendTimeout ErrorCode = "EMAIL_SEND_TIMEOUT"
	ErrCodeEmailQueueFailed ErrorCode = "EMAIL_QUEUE_FAILED"

	ErrCodePushEndpointGone ErrorCode = "PUSH_ENDPOINT_GONE"
	ErrCodePushSendFailed   ErrorCode = "PUSH_SEND_FAILED"

	ErrCodeQueueConnectionFailed ErrorCode = "QUEUE_CONNECTION_FAILED"

	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewNotificationStoreFailedError reports a failed durable write of a
// notification record. This is the alert-level condition: the order flow
// continues, but the record is the pipeline's core guarantee.
func NewNotificationStoreFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationStoreFailed,
		Message:   "Failed to persist order notification record",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationNotFoundError creates a non-retryable lookup error.
func NewNotificationNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationNotFound,
		Message:   "Notification record not found",
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmailSendFailedError creates a retryable relay error; the message is
// expected to land in the email queue.
func NewEmailSendFailedError(to string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmailSendFailed,
		Message:   "Email relay send failed",
		Details:   fmt.Sprintf("to: %s, error: %s", to, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmailSendTimeoutError creates a retryable timeout error. The in-flight
// send is abandoned, not cancelled.
func NewEmailSendTimeoutError(to string, timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmailSendTimeout,
		Message:   "Email send timed out",
		Details:   fmt.Sprintf("to: %s, timeout: %s", to, timeout),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmailQueueFailedError reports a failed fallback write to the email queue.
func NewEmailQueueFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmailQueueFailed,
		Message:   "Failed to enqueue email for retry",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPushEndpointGoneError marks a permanently invalid push endpoint. Not
// retryable: the subscription is pruned instead.
func NewPushEndpointGoneError(endpoint string, statusCode int) *StandardError {
	return &StandardError{
		Code:      ErrCodePushEndpointGone,
		Message:   "Push endpoint permanently gone",
		Details:   fmt.Sprintf("endpoint: %s, status: %d", endpoint, statusCode),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPushSendFailedError creates a transient per-subscription push error.
// The subscription must not be removed for this condition.
func NewPushSendFailedError(endpoint string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePushSendFailed,
		Message:   "Push notification delivery failed",
		Details:   fmt.Sprintf("endpoint: %s, error: %s", endpoint, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueueConnectionFailedError reports that the processor could not reach
// the relay at all; the whole run aborts with every item left pending.
func NewQueueConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueueConnectionFailed,
		Message:   "Mail relay connection failed for queue run",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError creates a non-retryable input validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// IsCode reports whether err is a StandardError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := err.(*StandardError)
	return ok && stdErr.Code == code
}
