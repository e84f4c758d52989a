// interfaces.go: public interfaces and the trace data model for Xanthos
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import "context"

// RequestType enumerates trace record kinds. Only Get requests participate
// in the analytics; other kinds are accepted and ignored.
type RequestType uint8

const (
	RequestGet RequestType = iota
	RequestSet
	RequestDelete
)

// Request is an immutable cache-access record. KeyHash must already be the
// output of a scrambling hash (see Murmur64); timestamps are trace seconds
// and are non-decreasing within a batch.
type Request struct {
	Timestamp    uint32
	KeyHash      uint64
	ValueSize    uint32
	EvictionTime uint32
	Type         RequestType
}

// Live reports whether the record still counts at trace time now.
func (r Request) Live(now uint32) bool {
	return r.EvictionTime > now
}

// RequestReader produces batches of trace records. Implementations live in
// the orchestrator; Xanthos only consumes them. A reader returns an empty
// batch and a nil error to signal end of trace.
type RequestReader interface {
	// NextBatch reads up to max records. Records must be sorted by
	// timestamp and sizes must already be clamped (see DecodeRequests).
	NextBatch(ctx context.Context, max int) ([]Request, error)
}

// MRCSource is the capability set shared by all miss-ratio-curve
// estimators (Olken, SHARDS fixed-rate, SHARDS fixed-size, CounterStacks).
type MRCSource interface {
	// AddRequest feeds one record to the estimator.
	AddRequest(req Request) error

	// AddRequests feeds a batch in order. Stops at the first fatal error.
	AddRequests(batch []Request) error

	// MRCFixedBlock builds the curve using the configured fixed block size.
	MRCFixedBlock() (MRC, error)

	// MRCRunningAvg builds the curve using the running-mean block size.
	MRCRunningAvg() (MRC, error)
}

// WSSSource is the capability set shared by working-set-size estimators.
type WSSSource interface {
	AddRequest(req Request) error
	AddRequests(batch []Request) error

	// WSS returns the estimated working set in bytes at trace time now.
	WSS(now uint32) (uint64, error)
}

// Logger defines a minimal logging interface with zero overhead.
// Implementations should use structured logging and be allocation-free.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, keyvals ...interface{})

	// Info logs an info message with optional key-value pairs.
	Info(msg string, keyvals ...interface{})

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, keyvals ...interface{})

	// Error logs an error message with optional key-value pairs.
	Error(msg string, keyvals ...interface{})
}

// NoOpLogger is a logger that does nothing. Used as default to avoid nil checks.
type NoOpLogger struct{}

func (NoOpLogger) Debug(msg string, keyvals ...interface{}) {}
func (NoOpLogger) Info(msg string, keyvals ...interface{})  {}
func (NoOpLogger) Warn(msg string, keyvals ...interface{})  {}
func (NoOpLogger) Error(msg string, keyvals ...interface{}) {}

// TimeProvider provides current wall-clock time. Trace time drives all
// estimator semantics; the provider only feeds run statistics.
type TimeProvider interface {
	// Now returns the current time in nanoseconds since epoch.
	// This method must be very fast and allocation-free.
	Now() int64
}

// MetricsCollector receives operation metrics from estimators.
// All methods must be fast and non-blocking.
type MetricsCollector interface {
	// RecordBatch is called after a batch of n records is consumed.
	RecordBatch(n int, latencyNs int64)

	// RecordProcessStack is called after a CounterStacks trigger completes.
	RecordProcessStack(latencyNs int64)

	// RecordTTLEvictions is called with the number of keys expired in a sweep.
	RecordTTLEvictions(n int)

	// RecordPrune is called with the number of counters pruned.
	RecordPrune(n int)
}

// NoOpMetricsCollector discards all metrics. Used as default (zero overhead).
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordBatch(n int, latencyNs int64) {}
func (NoOpMetricsCollector) RecordProcessStack(latencyNs int64) {}
func (NoOpMetricsCollector) RecordTTLEvictions(n int)           {}
func (NoOpMetricsCollector) RecordPrune(n int)                  {}
