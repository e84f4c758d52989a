// config.go: configuration for Xanthos estimators
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"github.com/agilira/go-timecache"
	"github.com/c2h5oh/datasize"
)

// Fidelity selects the CounterStacks preset trading accuracy for memory.
type Fidelity uint8

const (
	// HiFi: 60 s stack period, prune delta 0.02, 30 s eviction rounding.
	HiFi Fidelity = iota

	// LoFi: 3600 s stack period, prune delta 0.1, 60 s eviction rounding.
	LoFi
)

// period returns the trace-time trigger interval in seconds.
func (f Fidelity) period() uint32 {
	if f == LoFi {
		return 3600
	}
	return 60
}

// pruneDelta returns the counter-pruning threshold.
func (f Fidelity) pruneDelta() float64 {
	if f == LoFi {
		return 0.1
	}
	return 0.02
}

// evictionRounding returns the expiry coarsening in seconds.
func (f Fidelity) evictionRounding() uint32 {
	if f == LoFi {
		return 60
	}
	return 30
}

// Config holds construction parameters for all estimators. It is copied at
// construction; estimators never share mutable configuration state.
type Config struct {
	// MaxCacheBytes is the largest cache size the MRC covers.
	// Default: 2 TiB.
	MaxCacheBytes datasize.ByteSize

	// BucketWidthBytes is the stack-distance histogram bucket width.
	// Default: 32 MiB.
	BucketWidthBytes datasize.ByteSize

	// FixedBlockBytes is the block size used by fixed-block curves.
	// Default: 4 KiB.
	FixedBlockBytes datasize.ByteSize

	// MinBlockBytes and MaxBlockBytes clamp record sizes on ingestion and
	// bound the variable-block WSS bank. Defaults: 4 B and 1 MiB.
	MinBlockBytes datasize.ByteSize
	MaxBlockBytes datasize.ByteSize

	// Precision is the HyperLogLog precision b; m = 2^b registers.
	// Must be in [4, 16]. Default: DefaultPrecision.
	Precision int

	// MaxLeadingZeros caps the rank stored per register (Z). If 0 it is
	// derived as 64-Precision, bounded to 52.
	MaxLeadingZeros int

	// SamplingRate is the SHARDS fixed-rate spatial rate R in (0, 1].
	// Default: DefaultSamplingRate.
	SamplingRate float64

	// SampleCap is the SHARDS fixed-size sample bound S_max.
	// Default: DefaultSampleCap.
	SampleCap int

	// AdjustedSampling redistributes the expected-vs-observed sampled
	// count difference into bucket 1 when building fixed-rate curves.
	AdjustedSampling bool

	// CounterCapacity is the CounterStacks counter-array capacity.
	// Default: DefaultCounterCapacity.
	CounterCapacity int

	// Fidelity selects the CounterStacks preset. Default: HiFi.
	Fidelity Fidelity

	// Workers is the CounterStacks merge fan-out degree. Default: 1 (serial).
	Workers int

	// MaxDistinctObjects bounds the exact calculators' key maps. When the
	// bound is reached, Olken evicts its LRU entry and the exact WSS
	// calculator silently drops new keys. Default: DefaultMaxDistinctObjects.
	MaxDistinctObjects int

	// TTLAware enables eviction-time semantics. When false, expiry fields
	// are ignored and the plain sketches are used.
	TTLAware bool

	// Logger is used for capacity and pruning events.
	// If nil, NoOpLogger is used. Default: NoOpLogger.
	Logger Logger

	// TimeProvider provides wall-clock time for run statistics.
	// If nil, a go-timecache backed implementation is used.
	TimeProvider TimeProvider

	// MetricsCollector receives operation metrics.
	// If nil, NoOpMetricsCollector is used (zero overhead).
	MetricsCollector MetricsCollector
}

// Validate normalizes the configuration, applying defaults where a field is
// unset, and returns a coded error for impossible settings.
//
// It is called automatically by every constructor; it is public so callers
// can inspect the normalized configuration up front.
func (c *Config) Validate() error {
	if c.MaxCacheBytes == 0 {
		c.MaxCacheBytes = 2 * datasize.TB
	}
	if c.BucketWidthBytes == 0 {
		c.BucketWidthBytes = 32 * datasize.MB
	}
	if c.FixedBlockBytes == 0 {
		c.FixedBlockBytes = 4 * datasize.KB
	}
	if c.MinBlockBytes == 0 {
		c.MinBlockBytes = 4 * datasize.B
	}
	if c.MaxBlockBytes == 0 {
		c.MaxBlockBytes = datasize.MB
	}
	if c.MinBlockBytes > c.MaxBlockBytes {
		return NewErrInvalidBlockRange(uint64(c.MinBlockBytes), uint64(c.MaxBlockBytes))
	}
	if c.BucketWidthBytes > c.MaxCacheBytes {
		return NewErrInvalidConfig("bucket_width_bytes", "must not exceed max_cache_bytes")
	}

	if c.Precision == 0 {
		c.Precision = DefaultPrecision
	}
	if c.Precision < 4 || c.Precision > 16 {
		return NewErrInvalidPrecision(c.Precision)
	}
	if c.MaxLeadingZeros == 0 {
		c.MaxLeadingZeros = 64 - c.Precision
		if c.MaxLeadingZeros > 52 {
			c.MaxLeadingZeros = 52
		}
	}
	if c.MaxLeadingZeros < 1 || c.MaxLeadingZeros > 64-c.Precision {
		return NewErrInvalidConfig("max_leading_zeros", "must be in [1, 64-precision]")
	}

	if c.SamplingRate == 0 {
		c.SamplingRate = DefaultSamplingRate
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return NewErrInvalidSampling(c.SamplingRate)
	}
	if c.SampleCap <= 0 {
		c.SampleCap = DefaultSampleCap
	}
	if c.CounterCapacity <= 0 {
		c.CounterCapacity = DefaultCounterCapacity
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.MaxDistinctObjects <= 0 {
		c.MaxDistinctObjects = DefaultMaxDistinctObjects
	}

	if c.Logger == nil {
		c.Logger = NoOpLogger{}
	}
	if c.TimeProvider == nil {
		c.TimeProvider = &systemTimeProvider{}
	}
	if c.MetricsCollector == nil {
		c.MetricsCollector = NoOpMetricsCollector{}
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	c := Config{}
	_ = c.Validate()
	return c
}

// clampBlock clamps an ingested record size into [MinBlockBytes, MaxBlockBytes].
func (c *Config) clampBlock(size uint32) uint32 {
	if uint64(size) < uint64(c.MinBlockBytes) {
		return uint32(c.MinBlockBytes)
	}
	if uint64(size) > uint64(c.MaxBlockBytes) {
		return uint32(c.MaxBlockBytes)
	}
	return size
}

// numBuckets is the histogram length: last index = max_cache / bucket_width.
func (c *Config) numBuckets() int {
	return int(uint64(c.MaxCacheBytes)/uint64(c.BucketWidthBytes)) + 1
}

// systemTimeProvider is the default time provider using go-timecache.
// This provides far faster time access than time.Now() with zero allocations.
type systemTimeProvider struct{}

func (t *systemTimeProvider) Now() int64 {
	return timecache.CachedTimeNano()
}
