// Package xanthos computes TTL-aware cache-sizing analytics from access
// traces: Working-Set Size estimates and Miss-Ratio Curves, each in exact
// and approximate variants.
//
// Example usage:
//
//	est, _ := xanthos.NewOlken(xanthos.Config{
//		Precision: 12,
//	})
//	est.AddRequests(batch)
//	mrc, _ := est.MRCFixedBlock()
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package xanthos

const (
	// Version of the Xanthos analytics library
	Version = "v0.1.0-dev"

	// DefaultPrecision is the default HyperLogLog precision (m = 2^12 registers)
	DefaultPrecision = 12

	// DefaultSamplingRate is the default SHARDS fixed-rate spatial sampling rate
	DefaultSamplingRate = 0.01

	// DefaultSampleCap is the default SHARDS fixed-size sample bound
	DefaultSampleCap = 8192

	// DefaultCounterCapacity is the default CounterStacks counter-array capacity
	DefaultCounterCapacity = 64

	// DefaultMaxDistinctObjects bounds the exact calculators' key maps
	DefaultMaxDistinctObjects = 600_000_000

	// samplingModulus is the SHARDS spatial hash modulus P = 2^24
	samplingModulus = 1 << 24
)
