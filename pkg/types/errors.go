package types

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable machine-readable identifier carried by every
// CheckoutError. Callers branch on codes, never on message text.
type ErrorCode string

const (
	// Validation errors: bad input, reported before any gateway call.
	CodeConflictingFlowFields  ErrorCode = "PAYPAL_CONFLICTING_FLOW_FIELDS"
	CodeMissingRequiredField   ErrorCode = "PAYPAL_MISSING_REQUIRED_FIELD"
	CodeInvalidField           ErrorCode = "PAYPAL_INVALID_FIELD"
	CodeShippingOptionConflict ErrorCode = "PAYPAL_SHIPPING_OPTION_CONFLICT"

	// Transport/server failure during session open or token exchange.
	CodeGatewayError ErrorCode = "PAYPAL_GATEWAY_ERROR"

	// The buyer closed the hosted UI without approving. Deliberately a
	// distinct code so callers can skip their error UI for it.
	CodePopupClosed ErrorCode = "PAYPAL_POPUP_CLOSED"

	// Protocol and state violations.
	CodeUnknownShippingOption  ErrorCode = "PAYPAL_UNKNOWN_SHIPPING_OPTION"
	CodeDuplicateApprovalEvent ErrorCode = "PAYPAL_DUPLICATE_APPROVAL_EVENT"
	CodeAlreadyTokenized       ErrorCode = "PAYPAL_ALREADY_TOKENIZED"
	CodeSessionAlreadyInFlight ErrorCode = "PAYPAL_SESSION_ALREADY_IN_FLIGHT"
	CodeSessionTornDown        ErrorCode = "PAYPAL_SESSION_TORN_DOWN"
	CodeApprovalNotYetReceived ErrorCode = "PAYPAL_APPROVAL_NOT_YET_RECEIVED"
)

// CheckoutError is the tagged error type surfaced by every operation of the
// orchestrator and its collaborators.
type CheckoutError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *CheckoutError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CheckoutError) Unwrap() error {
	return e.Cause
}

// CodeOf extracts the error code from err, or "" if err carries none.
func CodeOf(err error) ErrorCode {
	var ce *CheckoutError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsValidationError reports whether err was raised by pure input validation,
// meaning no collaborator was contacted.
func IsValidationError(err error) bool {
	switch CodeOf(err) {
	case CodeConflictingFlowFields, CodeMissingRequiredField, CodeInvalidField, CodeShippingOptionConflict:
		return true
	default:
		return false
	}
}

// Error constructors

func NewConflictingFlowFieldsError(flow Flow, field string) *CheckoutError {
	return &CheckoutError{
		Code:    CodeConflictingFlowFields,
		Message: fmt.Sprintf("%s is not allowed when flow is %q", field, flow),
	}
}

func NewMissingRequiredFieldError(field string) *CheckoutError {
	return &CheckoutError{
		Code:    CodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

func NewInvalidFieldError(field, reason string) *CheckoutError {
	return &CheckoutError{
		Code:    CodeInvalidField,
		Message: fmt.Sprintf("%s is invalid: %s", field, reason),
	}
}

func NewShippingOptionConflictError(message string) *CheckoutError {
	return &CheckoutError{
		Code:    CodeShippingOptionConflict,
		Message: message,
	}
}

func NewUnknownShippingOptionError(id string) *CheckoutError {
	return &CheckoutError{
		Code:    CodeUnknownShippingOption,
		Message: fmt.Sprintf("shipping option %q is not part of this session", id),
	}
}

func NewGatewayError(operation string, cause error) *CheckoutError {
	return &CheckoutError{
		Code:    CodeGatewayError,
		Message: fmt.Sprintf("gateway %s failed", operation),
		Cause:   cause,
	}
}

func NewPopupClosedError() *CheckoutError {
	return &CheckoutError{
		Code:    CodePopupClosed,
		Message: "the buyer closed the hosted flow before approving",
	}
}

func NewDuplicateApprovalEventError(sessionID string) *CheckoutError {
	return &CheckoutError{
		Code:    CodeDuplicateApprovalEvent,
		Message: fmt.Sprintf("a terminal event was already delivered for session %s", sessionID),
	}
}

func NewAlreadyTokenizedError() *CheckoutError {
	return &CheckoutError{
		Code:    CodeAlreadyTokenized,
		Message: "this session has already been tokenized",
	}
}

func NewSessionAlreadyInFlightError() *CheckoutError {
	return &CheckoutError{
		Code:    CodeSessionAlreadyInFlight,
		Message: "a payment session is already in flight on this instance",
	}
}

func NewSessionTornDownError() *CheckoutError {
	return &CheckoutError{
		Code:    CodeSessionTornDown,
		Message: "this instance has been torn down",
	}
}

func NewApprovalNotYetReceivedError() *CheckoutError {
	return &CheckoutError{
		Code:    CodeApprovalNotYetReceived,
		Message: "the hosted flow has not reported a buyer decision yet",
	}
}
