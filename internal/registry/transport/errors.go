package transport

import (
	"errors"
	"fmt"

	"tckt/pkg/domain"
)

// ErrorCategory is the normalised failure taxonomy for chain node calls.
type ErrorCategory string

const (
	// ErrorTimeout: the node did not answer before the call deadline.
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorCanceled: the caller gave up; says nothing about node health.
	ErrorCanceled ErrorCategory = "canceled"

	// ErrorProviderOutage: connection failure, 5xx, or a node-side JSON-RPC error.
	ErrorProviderOutage ErrorCategory = "provider_outage"

	// ErrorRateLimited: the node answered 429.
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorAuthentication: the node rejected our credentials (401/403).
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorReverted: the contract call executed and reverted.
	ErrorReverted ErrorCategory = "reverted"

	// ErrorBadData: the node answered with data that cannot be decoded.
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorUnknownChain: no node is configured for the chain.
	ErrorUnknownChain ErrorCategory = "unknown_chain"

	// ErrorCircuitOpen: the chain's breaker is open and the call was not sent.
	ErrorCircuitOpen ErrorCategory = "circuit_open"

	ErrorInternal ErrorCategory = "internal"
)

// CallError is a classified node call failure.
type CallError struct {
	Category   ErrorCategory
	ChainID    domain.ChainID
	Message    string
	Underlying error
	Retryable  bool
}

func (e *CallError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("chain %s [%s]: %s: %v", e.ChainID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("chain %s [%s]: %s", e.ChainID, e.Category, e.Message)
}

func (e *CallError) Unwrap() error {
	return e.Underlying
}

// NewCallError classifies transient categories as retryable. The client does
// not retry; the flag is exposed for callers that do.
func NewCallError(category ErrorCategory, chainID domain.ChainID, message string, underlying error) *CallError {
	retryable := category == ErrorTimeout ||
		category == ErrorProviderOutage ||
		category == ErrorRateLimited ||
		category == ErrorCircuitOpen

	return &CallError{
		Category:   category,
		ChainID:    chainID,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable reports whether err is a transient CallError.
func IsRetryable(err error) bool {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// GetCategory extracts the category of a CallError, or ErrorInternal.
func GetCategory(err error) ErrorCategory {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ErrorInternal
}

// countsAgainstNode reports whether a failure says the node is unhealthy.
// Reverts and bad data come from a node that answered.
func countsAgainstNode(category ErrorCategory) bool {
	switch category {
	case ErrorTimeout, ErrorProviderOutage, ErrorRateLimited, ErrorAuthentication:
		return true
	default:
		return false
	}
}
