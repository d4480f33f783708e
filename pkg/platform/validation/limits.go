package validation

import (
	"fmt"

	dErrors "tckt/pkg/domain-errors"
)

// HTTP body limits
const (
	// MaxBodySize is the maximum allowed request body size (64 KB).
	MaxBodySize = 64 * 1024
)

// Slice element count limits
const (
	// MaxSigners is the maximum number of signers per check. One check is one
	// JSON-RPC batch.
	MaxSigners = 100
)

// String element length limits
const (
	// MaxHexArgLength bounds hex path and body arguments: a 32-byte word
	// with 0x prefix.
	MaxHexArgLength = 66
)

// BodyTooLarge is the error for a request body over limit bytes.
func BodyTooLarge(limit int64) error {
	return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("request body exceeds %d bytes", limit))
}

// CheckSliceCount validates that a slice does not exceed the maximum count.
func CheckSliceCount(fieldName string, count, max int) error {
	if count > max {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("too many %s: max %d allowed", fieldName, max))
	}
	return nil
}

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}
