package s3client

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/aws/smithy-go"
)

// ErrorType classifies transport errors surfaced by the AWS SDK.
type ErrorType string

const (
	// ErrorTypeConnection indicates network or DNS errors
	ErrorTypeConnection ErrorType = "connection"

	// ErrorTypeTimeout indicates request timeout or deadline exceeded
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeAuth indicates authentication failure (invalid or expired credentials, access denied)
	ErrorTypeAuth ErrorType = "auth"

	// ErrorTypeThrottle indicates request throttling by the service
	ErrorTypeThrottle ErrorType = "throttle"

	// ErrorTypeServer indicates service-side errors
	ErrorTypeServer ErrorType = "server"

	// ErrorTypeClient indicates caller errors (non-retryable)
	ErrorTypeClient ErrorType = "client"

	// ErrorTypeCancelled indicates context cancellation
	ErrorTypeCancelled ErrorType = "cancelled"
)

// TransportError is the single error kind the operation layer sees from the
// S3 collaborator. All SDK failures are folded into it so that callers can
// log and report a uniform shape.
type TransportError struct {
	// Type classifies the error.
	Type ErrorType

	// Message is a user-facing error message, safe to log and to return
	// in HTTP responses.
	Message string

	// Retryable indicates whether the error is transient.
	Retryable bool

	// Cause is the underlying SDK error.
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsType returns true if the error is of the given type.
func (e *TransportError) IsType(t ErrorType) bool {
	return e.Type == t
}

// classify folds an AWS SDK error into a TransportError.
func classify(err error) *TransportError {
	if errors.Is(err, context.Canceled) {
		return &TransportError{
			Type:    ErrorTypeCancelled,
			Message: "request cancelled",
			Cause:   err,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{
			Type:      ErrorTypeTimeout,
			Message:   "request deadline exceeded",
			Retryable: true,
			Cause:     err,
		}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		t := ErrorTypeConnection
		if netErr.Timeout() {
			t = ErrorTypeTimeout
		}
		return &TransportError{
			Type:      t,
			Message:   netErr.Error(),
			Retryable: true,
			Cause:     err,
		}
	}

	return &TransportError{
		Type:      ErrorTypeConnection,
		Message:   err.Error(),
		Retryable: true,
		Cause:     err,
	}
}

// classifyAPIError maps service error codes onto transport error types.
func classifyAPIError(apiErr smithy.APIError) *TransportError {
	te := &TransportError{
		Message: apiErr.ErrorMessage(),
		Cause:   apiErr,
	}
	if te.Message == "" {
		te.Message = apiErr.ErrorCode()
	}

	switch apiErr.ErrorCode() {
	case "AccessDenied", "AccessDeniedException", "InvalidAccessKeyId",
		"ExpiredToken", "SignatureDoesNotMatch", "UnrecognizedClientException":
		te.Type = ErrorTypeAuth
	case "Throttling", "ThrottlingException", "SlowDown",
		"TooManyRequestsException", "RequestLimitExceeded":
		te.Type = ErrorTypeThrottle
		te.Retryable = true
	case "RequestTimeout", "RequestTimeoutException":
		te.Type = ErrorTypeTimeout
		te.Retryable = true
	case "InternalError", "ServiceUnavailable":
		te.Type = ErrorTypeServer
		te.Retryable = true
	default:
		switch apiErr.ErrorFault() {
		case smithy.FaultServer:
			te.Type = ErrorTypeServer
			te.Retryable = true
		default:
			te.Type = ErrorTypeClient
		}
	}

	return te
}
