// errors.go: comprehensive error handling for Xanthos estimators
//
// This file provides structured error types using the go-errors library,
// enabling rich error context, categorization, and standardized error codes
// for all estimator operations.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package xanthos

import (
	goerrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes for Xanthos operations
const (
	// Configuration errors
	ErrCodeInvalidConfig     errors.ErrorCode = "XANTHOS_INVALID_CONFIG"
	ErrCodeInvalidPrecision  errors.ErrorCode = "XANTHOS_INVALID_PRECISION"
	ErrCodeInvalidBlockRange errors.ErrorCode = "XANTHOS_INVALID_BLOCK_RANGE"
	ErrCodeInvalidSampling   errors.ErrorCode = "XANTHOS_INVALID_SAMPLING"

	// Contract violations - the run is invalid once one occurs
	ErrCodeZeroStackDistance errors.ErrorCode = "XANTHOS_ZERO_STACK_DISTANCE"
	ErrCodeIndexMismatch     errors.ErrorCode = "XANTHOS_INDEX_MISMATCH"
	ErrCodeBatchTooLarge     errors.ErrorCode = "XANTHOS_BATCH_TOO_LARGE"
	ErrCodeEstimatorFailed   errors.ErrorCode = "XANTHOS_ESTIMATOR_FAILED"

	// Capacity errors
	ErrCodeCounterOverflow errors.ErrorCode = "XANTHOS_COUNTER_OVERFLOW"

	// Codec errors
	ErrCodeCorruptedSketch errors.ErrorCode = "XANTHOS_CORRUPTED_SKETCH"
	ErrCodeCorruptedTrace  errors.ErrorCode = "XANTHOS_CORRUPTED_TRACE"
	ErrCodeShortRead       errors.ErrorCode = "XANTHOS_SHORT_READ"
)

// Common error messages
const (
	msgInvalidConfig     = "invalid configuration"
	msgInvalidPrecision  = "invalid precision: must be between 4 and 16"
	msgInvalidBlockRange = "invalid block range: min_block must not exceed max_block"
	msgInvalidSampling   = "invalid sampling rate: must be in (0, 1]"
	msgZeroStackDistance = "zero stack distance on a hit"
	msgIndexMismatch     = "tree and key-map sizes diverged"
	msgBatchTooLarge     = "batch exceeds the decodable record bound"
	msgEstimatorFailed   = "estimator previously hit a fatal error"
	msgCounterOverflow   = "counter array is full and pruning freed no slot"
	msgCorruptedSketch   = "corrupted sketch data"
	msgCorruptedTrace    = "corrupted trace data"
	msgShortRead         = "trace is truncated"
)

// =============================================================================
// CONFIGURATION ERRORS
// =============================================================================

// NewErrInvalidConfig creates an error for an invalid configuration field
func NewErrInvalidConfig(field string, reason string) error {
	return errors.NewWithContext(ErrCodeInvalidConfig, msgInvalidConfig, map[string]interface{}{
		"field":  field,
		"reason": reason,
	})
}

// NewErrInvalidPrecision creates an error for an out-of-range HLL precision
func NewErrInvalidPrecision(precision int) error {
	return errors.NewWithContext(ErrCodeInvalidPrecision, msgInvalidPrecision, map[string]interface{}{
		"provided_precision": precision,
		"valid_range":        "4-16",
	})
}

// NewErrInvalidBlockRange creates an error for an inverted block-size range
func NewErrInvalidBlockRange(minBlock, maxBlock uint64) error {
	return errors.NewWithContext(ErrCodeInvalidBlockRange, msgInvalidBlockRange, map[string]interface{}{
		"min_block": minBlock,
		"max_block": maxBlock,
	})
}

// NewErrInvalidSampling creates an error for an out-of-range sampling rate
func NewErrInvalidSampling(rate float64) error {
	return errors.NewWithContext(ErrCodeInvalidSampling, msgInvalidSampling, map[string]interface{}{
		"provided_rate": rate,
		"valid_range":   "(0, 1]",
	})
}

// =============================================================================
// CONTRACT VIOLATIONS
// =============================================================================

// NewErrZeroStackDistance creates an error for the impossible zero-distance hit
func NewErrZeroStackDistance(keyHash uint64, timestamp uint32) error {
	return errors.NewWithContext(ErrCodeZeroStackDistance, msgZeroStackDistance, map[string]interface{}{
		"key_hash":  keyHash,
		"timestamp": timestamp,
	}).WithSeverity("critical")
}

// NewErrIndexMismatch creates an error when tree and map sizes diverge
func NewErrIndexMismatch(treeSize, mapSize int) error {
	return errors.NewWithContext(ErrCodeIndexMismatch, msgIndexMismatch, map[string]interface{}{
		"tree_size": treeSize,
		"map_size":  mapSize,
	}).WithSeverity("critical")
}

// NewErrBatchTooLarge creates an error for an oversized decode request
func NewErrBatchTooLarge(records int, limit int) error {
	return errors.NewWithContext(ErrCodeBatchTooLarge, msgBatchTooLarge, map[string]interface{}{
		"records": records,
		"limit":   limit,
	})
}

// NewErrEstimatorFailed wraps the original fatal error for later operations
func NewErrEstimatorFailed(cause error) error {
	return errors.Wrap(cause, ErrCodeEstimatorFailed, msgEstimatorFailed).
		WithSeverity("critical")
}

// =============================================================================
// CAPACITY ERRORS
// =============================================================================

// NewErrCounterOverflow creates an error when closest-pair pruning fails to
// free a counter slot
func NewErrCounterOverflow(capacity int) error {
	return errors.NewWithField(ErrCodeCounterOverflow, msgCounterOverflow, "capacity", capacity).
		WithSeverity("critical")
}

// =============================================================================
// CODEC ERRORS
// =============================================================================

// NewErrCorruptedSketch creates an error for sketch deserialization failures
func NewErrCorruptedSketch(details string) error {
	return errors.NewWithField(ErrCodeCorruptedSketch, msgCorruptedSketch, "details", details)
}

// NewErrCorruptedTrace creates an error for malformed trace bytes
func NewErrCorruptedTrace(details string) error {
	return errors.NewWithField(ErrCodeCorruptedTrace, msgCorruptedTrace, "details", details)
}

// NewErrShortRead creates an error for a truncated trace
func NewErrShortRead(want, got int) error {
	return errors.NewWithContext(ErrCodeShortRead, msgShortRead, map[string]interface{}{
		"want_bytes": want,
		"got_bytes":  got,
	})
}

// =============================================================================
// ERROR CHECKING HELPERS
// =============================================================================

// IsConfigError checks if error is a configuration error
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		code := coder.ErrorCode()
		return code == ErrCodeInvalidConfig || code == ErrCodeInvalidPrecision ||
			code == ErrCodeInvalidBlockRange || code == ErrCodeInvalidSampling
	}
	return false
}

// IsContractViolation checks if error marks the run invalid
func IsContractViolation(err error) bool {
	if err == nil {
		return false
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		code := coder.ErrorCode()
		return code == ErrCodeZeroStackDistance || code == ErrCodeIndexMismatch ||
			code == ErrCodeBatchTooLarge || code == ErrCodeEstimatorFailed
	}
	return false
}

// IsCodecError checks if error is a serialization or trace decode error
func IsCodecError(err error) bool {
	if err == nil {
		return false
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		code := coder.ErrorCode()
		return code == ErrCodeCorruptedSketch || code == ErrCodeCorruptedTrace ||
			code == ErrCodeShortRead
	}
	return false
}

// IsCounterOverflow checks if error is a counter-array overflow
func IsCounterOverflow(err error) bool {
	return errors.HasCode(err, ErrCodeCounterOverflow)
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) errors.ErrorCode {
	if err == nil {
		return ""
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ""
}

// GetErrorContext extracts context from an error
func GetErrorContext(err error) map[string]interface{} {
	if err == nil {
		return nil
	}
	var xerr *errors.Error
	if goerrors.As(err, &xerr) {
		return xerr.Context
	}
	return nil
}
