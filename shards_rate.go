// shards_rate.go: fixed-rate SHARDS miss-ratio curve estimation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import "math"

// ShardsFixedRate estimates miss-ratio curves from a deterministic spatial
// sample of the key space: a key participates iff
// hash mod P < T with T = round(R * P). Distances measured inside the
// sample are scaled by 1/R, as is every credited hit.
type ShardsFixedRate struct {
	cfg  Config
	core *reuseCore

	threshold uint32
	rate      float64

	histFixed *histogram
	histAvg   *histogram
	mean      runningMean

	totalGets uint64
	sampled   uint64

	failed error
}

// NewShardsFixedRate creates the fixed-rate sampler with cfg.SamplingRate.
func NewShardsFixedRate(cfg Config) (*ShardsFixedRate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := uint32(math.Round(cfg.SamplingRate * samplingModulus))
	if t == 0 {
		t = 1
	}
	width := uint64(cfg.BucketWidthBytes)
	return &ShardsFixedRate{
		cfg:       cfg,
		core:      newReuseCore(cfg.TTLAware),
		threshold: t,
		rate:      float64(t) / samplingModulus,
		histFixed: newHistogram(cfg.numBuckets(), width),
		histAvg:   newHistogram(cfg.numBuckets(), width),
	}, nil
}

// AddRequest feeds one record; unsampled records only grow the denominator.
func (s *ShardsFixedRate) AddRequest(req Request) error {
	if s.failed != nil {
		return s.failed
	}
	if req.Type != RequestGet {
		return nil
	}

	s.totalGets++
	s.histFixed.addRequests(1)
	s.histAvg.addRequests(1)

	block := s.cfg.clampBlock(req.ValueSize)
	s.mean.observe(block)

	if uint32(req.KeyHash&(samplingModulus-1)) >= s.threshold {
		return nil
	}
	s.sampled++

	s.core.expire(req.Timestamp)

	dist, hit := s.core.touch(req.KeyHash, req.EvictionTime, 0)
	if hit {
		if dist == 0 {
			s.failed = NewErrZeroStackDistance(req.KeyHash, req.Timestamp)
			return s.failed
		}
		scaled := uint64(float64(dist)/s.rate + 0.5)
		s.histFixed.creditHit(scaled, uint32(s.cfg.FixedBlockBytes), 1/s.rate)
		s.histAvg.creditHit(scaled, meanBlock(s.mean), 1/s.rate)
	}

	if !s.core.consistent() {
		s.failed = NewErrIndexMismatch(s.core.tree.Size(), len(s.core.keys))
		return s.failed
	}
	return nil
}

// AddRequests feeds a batch in order, stopping at the first fatal error.
func (s *ShardsFixedRate) AddRequests(batch []Request) error {
	for _, req := range batch {
		if err := s.AddRequest(req); err != nil {
			return err
		}
	}
	return nil
}

// finalizeHist applies the adjusted-mode correction: the difference between
// the expected sampled count R*N and the observed one is credited to bucket
// 1 in request units. The difference can be negative.
func (s *ShardsFixedRate) finalizeHist(h *histogram) *histogram {
	if !s.cfg.AdjustedSampling {
		return h
	}
	out := h.clone()
	diff := (s.rate*float64(s.totalGets) - float64(s.sampled)) / s.rate
	if len(out.buckets) > 1 {
		out.buckets[1] += diff
	}
	return out
}

// MRCFixedBlock builds the curve using the configured fixed block size.
func (s *ShardsFixedRate) MRCFixedBlock() (MRC, error) {
	if s.failed != nil {
		return nil, s.failed
	}
	return buildMRC(s.finalizeHist(s.histFixed)), nil
}

// MRCRunningAvg builds the curve using the running mean block size.
func (s *ShardsFixedRate) MRCRunningAvg() (MRC, error) {
	if s.failed != nil {
		return nil, s.failed
	}
	return buildMRC(s.finalizeHist(s.histAvg)), nil
}

// SampledCount returns how many requests passed the spatial filter.
func (s *ShardsFixedRate) SampledCount() uint64 { return s.sampled }

// Rate returns the effective sampling rate T/P.
func (s *ShardsFixedRate) Rate() float64 { return s.rate }
