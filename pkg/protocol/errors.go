package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// The engine error contract is a colon-delimited string taxonomy so callers
// can pattern-match on prefixes. Constructors below are the only places these
// strings are assembled.
var (
	ErrExecutionCapExceeded = errors.New("execution_cap_exceeded")
)

func NewInvalidActionError(detail string) error {
	return fmt.Errorf("invalid_action:%s", detail)
}

func NewInvalidActionPayloadError(nodeID, action string) error {
	return fmt.Errorf("invalid_action_payload:%s:%s", nodeID, action)
}

func NewUnsupportedActionError(action string) error {
	return fmt.Errorf("unsupported_action:%s", action)
}

func NewUnsupportedNodeTypeError(nodeType string) error {
	return fmt.Errorf("unsupported_node_type:%s", nodeType)
}

func NewCredentialMissingError(provider, field string) error {
	return fmt.Errorf("credential_missing:%s.%s", provider, field)
}

func NewIntegrationNotReadyError(reason string) error {
	return fmt.Errorf("integration_not_ready:%s", reason)
}

func NewSendFailedError(provider string, httpStatus int) error {
	return fmt.Errorf("%s_send_failed:%d", provider, httpStatus)
}

func NewIdempotencyPriorFailureError(original string) error {
	return fmt.Errorf("idempotency_prior_failure:%s", original)
}

// HasErrorPrefix reports whether err's message starts with the given taxonomy
// prefix (exact match or prefix followed by a colon).
func HasErrorPrefix(err error, prefix string) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	return msg == prefix || strings.HasPrefix(msg, prefix+":")
}

// IsValidationError reports caller mistakes in workflow authoring. These are
// never retried.
func IsValidationError(err error) bool {
	return HasErrorPrefix(err, "invalid_action") ||
		HasErrorPrefix(err, "invalid_action_payload") ||
		HasErrorPrefix(err, "unsupported_action") ||
		HasErrorPrefix(err, "unsupported_node_type")
}

// IsReadinessError reports operator-fixable precondition failures. Retrying
// without fixing the precondition wastes the attempt budget, so the worker
// fails the execution immediately.
func IsReadinessError(err error) bool {
	return HasErrorPrefix(err, "credential_missing") ||
		HasErrorPrefix(err, "integration_not_ready")
}

// IsTransientSendError reports provider send failures that the queue retry
// policy may re-attempt.
func IsTransientSendError(err error) bool {
	if err == nil {
		return false
	}

	idx := strings.Index(err.Error(), "_send_failed:")

	return idx > 0
}

// IsIdempotencyPriorFailure reports a replay hitting an actionKey already
// marked failed. Deliberately non-retryable: re-running requires a new
// execution id.
func IsIdempotencyPriorFailure(err error) bool {
	return HasErrorPrefix(err, "idempotency_prior_failure")
}

// IsBlockedError reports a safety-gate rejection.
func IsBlockedError(err error) bool {
	return HasErrorPrefix(err, "blocked")
}

// IsRetryable decides whether the worker should let the queue redeliver the
// job. Only transient provider errors and unknown infrastructure errors
// qualify; every taxonomy error above is terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if IsValidationError(err) || IsReadinessError(err) || IsIdempotencyPriorFailure(err) || IsBlockedError(err) {
		return false
	}

	if errors.Is(err, ErrExecutionCapExceeded) {
		return false
	}

	return true
}
