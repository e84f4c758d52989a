// wss.go: working-set-size estimators - exact map and geometric sketch bank
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import "math/bits"

// WSSMode selects how a sketch-backed estimator turns cardinality into bytes.
type WSSMode uint8

const (
	// WSSModeFixed multiplies one sketch's cardinality by the fixed block size.
	WSSModeFixed WSSMode = iota

	// WSSModeVariable routes keys into one sketch per power-of-two block
	// class and sums per-class byte contributions.
	WSSModeVariable

	// WSSModeRunningAvg multiplies one sketch's cardinality by the running
	// mean block size.
	WSSModeRunningAvg
)

// log2NextPow2 returns log2 of the next power of two at or above v.
func log2NextPow2(v uint32) int {
	if v <= 1 {
		return 0
	}
	return bits.Len32(v - 1)
}

// runningMean is the incremental mean block size shared by the estimators.
type runningMean struct {
	mean  float64
	count uint64
}

func (r *runningMean) observe(block uint32) {
	r.count++
	r.mean += (float64(block) - r.mean) / float64(r.count)
}

// SketchWSS estimates the working-set size from a bank of HyperLogLog
// sketches. In TTL mode the bank is HLL-TTL and estimates only live keys;
// otherwise plain HLLs count everything ever observed.
type SketchWSS struct {
	cfg  Config
	mode WSSMode

	// single sketch for fixed and running-avg modes
	ttlSketch   *HLLTTL
	plainSketch *HLL

	// one sketch per power-of-two class for variable mode
	ttlBank   []*HLLTTL
	plainBank []*HLL
	classOff  int

	mean runningMean
}

// NewSketchWSS creates a sketch-backed WSS estimator in the given mode.
func NewSketchWSS(cfg Config, mode WSSMode) (*SketchWSS, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &SketchWSS{cfg: cfg, mode: mode}

	if mode == WSSModeVariable {
		lo := log2NextPow2(uint32(cfg.MinBlockBytes))
		hi := log2NextPow2(uint32(cfg.MaxBlockBytes))
		classes := hi - lo + 1
		s.classOff = lo - 1
		if cfg.TTLAware {
			s.ttlBank = make([]*HLLTTL, classes)
			for i := range s.ttlBank {
				h, err := NewHLLTTL(cfg.Precision, cfg.MaxLeadingZeros, uint32(cfg.FixedBlockBytes))
				if err != nil {
					return nil, err
				}
				s.ttlBank[i] = h
			}
		} else {
			s.plainBank = make([]*HLL, classes)
			for i := range s.plainBank {
				h, err := NewHLL(cfg.Precision, uint32(cfg.FixedBlockBytes))
				if err != nil {
					return nil, err
				}
				s.plainBank[i] = h
			}
		}
		return s, nil
	}

	var err error
	if cfg.TTLAware {
		s.ttlSketch, err = NewHLLTTL(cfg.Precision, cfg.MaxLeadingZeros, uint32(cfg.FixedBlockBytes))
	} else {
		s.plainSketch, err = NewHLL(cfg.Precision, uint32(cfg.FixedBlockBytes))
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// AddRequest feeds one record. Non-Get records are ignored.
func (s *SketchWSS) AddRequest(req Request) error {
	if req.Type != RequestGet {
		return nil
	}
	block := s.cfg.clampBlock(req.ValueSize)
	s.mean.observe(block)

	if s.mode == WSSModeVariable {
		idx := log2NextPow2(block) - 1 - s.classOff
		if idx < 0 {
			idx = 0
		}
		if s.ttlBank != nil {
			if idx >= len(s.ttlBank) {
				idx = len(s.ttlBank) - 1
			}
			s.ttlBank[idx].Add(req.KeyHash, req.EvictionTime)
		} else {
			if idx >= len(s.plainBank) {
				idx = len(s.plainBank) - 1
			}
			s.plainBank[idx].Add(req.KeyHash)
		}
		return nil
	}

	if s.ttlSketch != nil {
		s.ttlSketch.Add(req.KeyHash, req.EvictionTime)
	} else {
		s.plainSketch.Add(req.KeyHash)
	}
	return nil
}

// AddRequests feeds a batch in order.
func (s *SketchWSS) AddRequests(batch []Request) error {
	for _, req := range batch {
		if err := s.AddRequest(req); err != nil {
			return err
		}
	}
	return nil
}

func (s *SketchWSS) singleCount(now uint32) uint64 {
	if s.ttlSketch != nil {
		return s.ttlSketch.EvictExpiredAndCount(now)
	}
	return s.plainSketch.Count()
}

// WSS returns the estimated working set in bytes at trace time now.
func (s *SketchWSS) WSS(now uint32) (uint64, error) {
	switch s.mode {
	case WSSModeVariable:
		var total uint64
		if s.ttlBank != nil {
			for i, h := range s.ttlBank {
				total += h.EvictExpiredAndCount(now) << uint(i+1+s.classOff)
			}
		} else {
			for i, h := range s.plainBank {
				total += h.Count() << uint(i+1+s.classOff)
			}
		}
		return total, nil
	case WSSModeRunningAvg:
		return uint64(float64(s.singleCount(now)) * s.mean.mean), nil
	default:
		return s.singleCount(now) * uint64(s.cfg.FixedBlockBytes), nil
	}
}

// wssEntry is one live object in the exact calculator.
type wssEntry struct {
	expiry uint32
	block  uint32
}

// ExactWSS tracks every distinct live key in a map. Memory is bounded by
// MaxDistinctObjects; once full, new keys are silently dropped (the drop is
// counted and logged once).
type ExactWSS struct {
	cfg Config

	entries    map[uint64]wssEntry
	totalBytes uint64
	mean       runningMean

	lastEvict   uint32
	dropped     uint64
	droppedOnce bool
}

// NewExactWSS creates the exact working-set calculator.
func NewExactWSS(cfg Config) (*ExactWSS, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ExactWSS{
		cfg:     cfg,
		entries: make(map[uint64]wssEntry),
	}, nil
}

// AddRequest inserts a key or upgrades its expiry and size.
func (e *ExactWSS) AddRequest(req Request) error {
	if req.Type != RequestGet {
		return nil
	}
	block := e.cfg.clampBlock(req.ValueSize)
	e.mean.observe(block)

	evictionTime := req.EvictionTime
	if !e.cfg.TTLAware {
		evictionTime = ^uint32(0)
	}

	if old, ok := e.entries[req.KeyHash]; ok {
		expiry := old.expiry
		if evictionTime > expiry {
			expiry = evictionTime
		}
		e.totalBytes += uint64(block) - uint64(old.block)
		e.entries[req.KeyHash] = wssEntry{expiry: expiry, block: block}
		return nil
	}

	if len(e.entries) >= e.cfg.MaxDistinctObjects {
		e.dropped++
		if !e.droppedOnce {
			e.droppedOnce = true
			e.cfg.Logger.Warn("exact WSS at capacity, dropping new keys",
				"max_distinct_objects", e.cfg.MaxDistinctObjects)
		}
		return nil
	}
	e.entries[req.KeyHash] = wssEntry{expiry: evictionTime, block: block}
	e.totalBytes += uint64(block)
	return nil
}

// AddRequests feeds a batch in order.
func (e *ExactWSS) AddRequests(batch []Request) error {
	for _, req := range batch {
		if err := e.AddRequest(req); err != nil {
			return err
		}
	}
	return nil
}

// Evict drops entries expired at trace time now. Guarded by the last
// eviction time so out-of-order calls are idempotent.
func (e *ExactWSS) Evict(now uint32) {
	if now <= e.lastEvict {
		return
	}
	e.lastEvict = now
	for keyHash, entry := range e.entries {
		if entry.expiry <= now {
			e.totalBytes -= uint64(entry.block)
			delete(e.entries, keyHash)
		}
	}
}

// Cardinality returns the number of live keys at trace time now.
func (e *ExactWSS) Cardinality(now uint32) uint64 {
	e.Evict(now)
	return uint64(len(e.entries))
}

// WSS returns the exact live byte total at trace time now.
func (e *ExactWSS) WSS(now uint32) (uint64, error) {
	e.Evict(now)
	return e.totalBytes, nil
}

// WSSRunningAvg returns cardinality times the running mean block size.
func (e *ExactWSS) WSSRunningAvg(now uint32) uint64 {
	e.Evict(now)
	return uint64(float64(len(e.entries)) * e.mean.mean)
}

// Dropped returns how many new keys were refused at capacity.
func (e *ExactWSS) Dropped() uint64 { return e.dropped }
