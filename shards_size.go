// shards_size.go: fixed-size SHARDS with dynamic threshold adaptation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import "container/heap"

// sampleNode is one sampled key. Nodes live in a slab and are referenced by
// stable integer handles; the two priority queues store handles only, so no
// node<->queue pointer cycles exist.
type sampleNode struct {
	keyHash uint64
	ti      uint32 // hash mod P, the key's personal sampling threshold
	expiry  uint32

	samplePos int32 // position in the sample queue, -1 when absent
	evictPos  int32 // position in the eviction queue, -1 when absent
}

// ShardsFixedSize keeps an always-bounded sample of at most SampleCap keys.
// When the sample overflows, the least-promising key (largest ti) is shed
// and the global threshold T shrinks to its ti, lowering the effective
// sampling rate; previously-credited histogram buckets are rescaled
// retroactively by T_new / T_old.
type ShardsFixedSize struct {
	cfg  Config
	core *reuseCore

	slab    []sampleNode
	free    []int32
	handles map[uint64]int32

	samplePQ sampleQueue
	evictPQ  expiryQueue

	threshold uint32

	histFixed *scaledHistogram
	histAvg   *scaledHistogram
	mean      runningMean

	totalGets uint64

	failed error
}

// NewShardsFixedSize creates the bounded-sample estimator.
func NewShardsFixedSize(cfg Config) (*ShardsFixedSize, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	width := uint64(cfg.BucketWidthBytes)
	s := &ShardsFixedSize{
		cfg: cfg,
		// TTL removal goes through the paired eviction queue, not the
		// core's own index.
		core:      newReuseCore(false),
		handles:   make(map[uint64]int32, cfg.SampleCap),
		threshold: samplingModulus,
		histFixed: newScaledHistogram(cfg.numBuckets(), width),
		histAvg:   newScaledHistogram(cfg.numBuckets(), width),
	}
	s.samplePQ.slab = &s.slab
	s.evictPQ.slab = &s.slab
	return s, nil
}

func (s *ShardsFixedSize) alloc(keyHash uint64, ti, expiry uint32) int32 {
	if n := len(s.free); n > 0 {
		h := s.free[n-1]
		s.free = s.free[:n-1]
		s.slab[h] = sampleNode{keyHash: keyHash, ti: ti, expiry: expiry, samplePos: -1, evictPos: -1}
		return h
	}
	s.slab = append(s.slab, sampleNode{keyHash: keyHash, ti: ti, expiry: expiry, samplePos: -1, evictPos: -1})
	return int32(len(s.slab) - 1)
}

// drop removes a sampled key from every structure. The node's
// samplePos/evictPos report which queues still hold it.
func (s *ShardsFixedSize) drop(h int32) {
	node := &s.slab[h]
	if node.samplePos >= 0 {
		heap.Remove(&s.samplePQ, int(node.samplePos))
	}
	if node.evictPos >= 0 {
		heap.Remove(&s.evictPQ, int(node.evictPos))
	}
	s.core.remove(node.keyHash)
	delete(s.handles, node.keyHash)
	s.free = append(s.free, h)
}

// expire sheds sampled keys whose eviction time has passed.
func (s *ShardsFixedSize) expire(now uint32) {
	n := 0
	for s.evictPQ.Len() > 0 {
		h := s.evictPQ.items[0]
		if s.slab[h].expiry > now {
			break
		}
		s.drop(h)
		n++
	}
	if n > 0 {
		s.cfg.MetricsCollector.RecordTTLEvictions(n)
	}
}

// shed removes the least-promising key and every tie, shrinking the
// threshold to the removed ti.
func (s *ShardsFixedSize) shed() {
	if s.samplePQ.Len() == 0 {
		return
	}
	newT := s.slab[s.samplePQ.items[0]].ti
	for s.samplePQ.Len() > 0 && s.slab[s.samplePQ.items[0]].ti == newT {
		s.drop(s.samplePQ.items[0])
	}
	s.threshold = newT
	s.cfg.Logger.Debug("sample threshold shrunk",
		"threshold", newT, "rate", float64(newT)/samplingModulus)
}

// AddRequest feeds one record; unsampled records only grow the denominator.
func (s *ShardsFixedSize) AddRequest(req Request) error {
	if s.failed != nil {
		return s.failed
	}
	if req.Type != RequestGet {
		return nil
	}

	s.totalGets++
	s.histFixed.requests++
	s.histAvg.requests++

	block := s.cfg.clampBlock(req.ValueSize)
	s.mean.observe(block)

	if s.cfg.TTLAware {
		s.expire(req.Timestamp)
	}

	ti := uint32(req.KeyHash & (samplingModulus - 1))
	if ti >= s.threshold {
		return nil
	}

	dist, hit := s.core.touch(req.KeyHash, 0, 0)
	if hit {
		if dist == 0 {
			s.failed = NewErrZeroStackDistance(req.KeyHash, req.Timestamp)
			return s.failed
		}
		s.histFixed.credit(dist, uint32(s.cfg.FixedBlockBytes), s.threshold)
		s.histAvg.credit(dist, meanBlock(s.mean), s.threshold)
		return nil
	}

	h := s.alloc(req.KeyHash, ti, req.EvictionTime)
	s.handles[req.KeyHash] = h
	heap.Push(&s.samplePQ, h)
	if s.cfg.TTLAware {
		heap.Push(&s.evictPQ, h)
	}

	if s.core.size() > s.cfg.SampleCap {
		s.shed()
	}

	if !s.core.consistent() {
		s.failed = NewErrIndexMismatch(s.core.tree.Size(), len(s.core.keys))
		return s.failed
	}
	return nil
}

// AddRequests feeds a batch in order, stopping at the first fatal error.
func (s *ShardsFixedSize) AddRequests(batch []Request) error {
	for _, req := range batch {
		if err := s.AddRequest(req); err != nil {
			return err
		}
	}
	return nil
}

// MRCFixedBlock builds the curve using the configured fixed block size.
func (s *ShardsFixedSize) MRCFixedBlock() (MRC, error) {
	if s.failed != nil {
		return nil, s.failed
	}
	return buildMRC(s.histFixed.finalize(s.threshold)), nil
}

// MRCRunningAvg builds the curve using the running mean block size.
func (s *ShardsFixedSize) MRCRunningAvg() (MRC, error) {
	if s.failed != nil {
		return nil, s.failed
	}
	return buildMRC(s.histAvg.finalize(s.threshold)), nil
}

// Rate returns the current effective sampling rate T/P.
func (s *ShardsFixedSize) Rate() float64 {
	return float64(s.threshold) / samplingModulus
}

// SampleSize returns the current number of sampled keys.
func (s *ShardsFixedSize) SampleSize() int { return s.core.size() }

// sampleQueue dequeues the sampled key with the largest ti first, i.e. the
// entry holding the smallest margin below the threshold.
type sampleQueue struct {
	slab  *[]sampleNode
	items []int32
}

func (q sampleQueue) Len() int { return len(q.items) }
func (q sampleQueue) Less(i, j int) bool {
	return (*q.slab)[q.items[i]].ti > (*q.slab)[q.items[j]].ti
}
func (q sampleQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	(*q.slab)[q.items[i]].samplePos = int32(i)
	(*q.slab)[q.items[j]].samplePos = int32(j)
}
func (q *sampleQueue) Push(x interface{}) {
	h := x.(int32)
	(*q.slab)[h].samplePos = int32(len(q.items))
	q.items = append(q.items, h)
}
func (q *sampleQueue) Pop() interface{} {
	old := q.items
	n := len(old)
	h := old[n-1]
	(*q.slab)[h].samplePos = -1
	q.items = old[:n-1]
	return h
}

// expiryQueue dequeues the sampled key with the earliest eviction time.
type expiryQueue struct {
	slab  *[]sampleNode
	items []int32
}

func (q expiryQueue) Len() int { return len(q.items) }
func (q expiryQueue) Less(i, j int) bool {
	return (*q.slab)[q.items[i]].expiry < (*q.slab)[q.items[j]].expiry
}
func (q expiryQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	(*q.slab)[q.items[i]].evictPos = int32(i)
	(*q.slab)[q.items[j]].evictPos = int32(j)
}
func (q *expiryQueue) Push(x interface{}) {
	h := x.(int32)
	(*q.slab)[h].evictPos = int32(len(q.items))
	q.items = append(q.items, h)
}
func (q *expiryQueue) Pop() interface{} {
	old := q.items
	n := len(old)
	h := old[n-1]
	(*q.slab)[h].evictPos = -1
	q.items = old[:n-1]
	return h
}
