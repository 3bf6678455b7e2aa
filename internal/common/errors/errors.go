// Package errors provides standardized error handling for the enquiry pipeline
// and its mapping onto HTTP responses.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Inbound
	ErrCodeMalformedRequest   ErrorCode = "MALFORMED_REQUEST"
	ErrCodeInvalidRecipient   ErrorCode = "INVALID_RECIPIENT"
	ErrCodeInvalidMessageBody ErrorCode = "INVALID_MESSAGE_BODY"

	// Composition
	ErrCodeCompositionFailed  ErrorCode = "COMPOSITION_FAILED"
	ErrCodeCompositionTimeout ErrorCode = "COMPOSITION_TIMEOUT"

	// Delivery
	ErrCodeChannelUnavailable ErrorCode = "CHANNEL_UNAVAILABLE"
	ErrCodeDeliveryFailed     ErrorCode = "DELIVERY_FAILED"

	// Supporting infrastructure
	ErrCodeKnowledgeBaseLoadFailed ErrorCode = "KNOWLEDGE_BASE_LOAD_FAILED"
	ErrCodeCRMLeadCreateFailed     ErrorCode = "CRM_LEAD_CREATE_FAILED"
	ErrCodeAlertSendFailed         ErrorCode = "ALERT_SEND_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns a copy of e carrying key=value in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	cp := *e
	cp.Metadata = make(map[string]interface{}, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		cp.Metadata[k] = v
	}
	cp.Metadata[key] = value
	return &cp
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 2. Error Constructors
// ==========================

// NewMalformedRequestError reports an inbound payload that is missing fields or has the wrong shape.
func NewMalformedRequestError(details string) *StandardError {
	return newError(ErrCodeMalformedRequest, "Malformed enquiry request", details, false)
}

// NewInvalidRecipientError reports a phone number that cannot be delivered to.
func NewInvalidRecipientError(details string) *StandardError {
	return newError(ErrCodeInvalidRecipient, "Invalid recipient phone number", details, false)
}

func NewInvalidMessageBodyError() *StandardError {
	return newError(ErrCodeInvalidMessageBody, "Message body is empty", "", false)
}

// NewCompositionFailedError wraps an upstream language model failure.
func NewCompositionFailedError(err error) *StandardError {
	return newError(ErrCodeCompositionFailed, "Reply composition failed", errDetails(err), true)
}

func NewCompositionTimeoutError() *StandardError {
	return newError(ErrCodeCompositionTimeout, "Reply composition timed out", "", true)
}

// NewChannelUnavailableError reports a recoverable provider or network failure on one channel.
// Retryable marks it as eligible for the fallback channel.
func NewChannelUnavailableError(channel string, err error) *StandardError {
	return newError(ErrCodeChannelUnavailable, "Messaging channel unavailable", fmt.Sprintf("channel: %s, error: %s", channel, errDetails(err)), true).
		WithMetadata("channel", channel)
}

// NewDeliveryFailedError reports that no channel delivered the reply.
func NewDeliveryFailedError(cause *StandardError) *StandardError {
	e := newError(ErrCodeDeliveryFailed, "Reply could not be delivered on any channel", "", false)
	if cause != nil {
		e.Details = cause.Details
		e = e.WithMetadata("cause", string(cause.Code))
	}
	return e
}

func NewKnowledgeBaseLoadFailedError(source string, err error) *StandardError {
	return newError(ErrCodeKnowledgeBaseLoadFailed, "Knowledge base could not be loaded", fmt.Sprintf("source: %s, error: %s", source, errDetails(err)), true)
}

func NewCRMLeadCreateFailedError(err error) *StandardError {
	return newError(ErrCodeCRMLeadCreateFailed, "CRM lead creation failed", errDetails(err), true)
}

func NewAlertSendFailedError(err error) *StandardError {
	return newError(ErrCodeAlertSendFailed, "Staff alert could not be sent", errDetails(err), true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", errDetails(err), false)
}

// ==========================
// 3. Classification
// ==========================

// As unwraps err into a *StandardError.
func As(err error) (*StandardError, bool) {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Normalize converts any error into a StandardError. Unknown errors become INTERNAL_ERROR.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	if se, ok := As(err); ok {
		return se
	}
	return NewInternalError(err)
}

// IsTimeout reports whether err is a deadline or cancellation.
func IsTimeout(err error) bool {
	return stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled)
}

// HTTPStatus maps an error code onto the HTTP status returned to the webhook caller.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeMalformedRequest:
		return http.StatusBadRequest
	case ErrCodeInvalidRecipient, ErrCodeInvalidMessageBody:
		return http.StatusUnprocessableEntity
	case ErrCodeCompositionFailed, ErrCodeCompositionTimeout,
		ErrCodeChannelUnavailable, ErrCodeDeliveryFailed:
		return http.StatusBadGateway
	case ErrCodeKnowledgeBaseLoadFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory groups codes for logging and metrics.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeMalformedRequest, ErrCodeInvalidRecipient, ErrCodeInvalidMessageBody:
		return "VALIDATION"
	case ErrCodeCompositionFailed, ErrCodeCompositionTimeout:
		return "COMPOSITION"
	case ErrCodeChannelUnavailable, ErrCodeDeliveryFailed:
		return "DELIVERY"
	case ErrCodeKnowledgeBaseLoadFailed:
		return "DATA_ACCESS"
	case ErrCodeCRMLeadCreateFailed, ErrCodeAlertSendFailed:
		return "INTEGRATION"
	default:
		if strings.HasSuffix(string(code), "_TIMEOUT") {
			return "TIMEOUT"
		}
		return "SYSTEM"
	}
}
