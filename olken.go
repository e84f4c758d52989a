// olken.go: exact miss-ratio curves via full stack-distance tracking
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

// reuseCore is the shared stack-distance machinery: the order-statistic
// tree over sequence numbers, the key-to-sequence map, and the TTL eviction
// index. Olken uses it over the full stream; the SHARDS variants over their
// sampled subsets.
type reuseCore struct {
	tree   orderStatTree
	keys   map[uint64]uint64 // keyHash -> live sequence number
	evict  *evictionIndex
	nextSN uint64
}

func newReuseCore(ttlAware bool) *reuseCore {
	c := &reuseCore{keys: make(map[uint64]uint64), nextSN: 1}
	if ttlAware {
		c.evict = newEvictionIndex(0, 0)
	}
	return c
}

// expire removes every key whose registered eviction time has passed.
// Returns the number of keys removed.
func (c *reuseCore) expire(now uint32) int {
	if c.evict == nil || !c.evict.Due(now) {
		return 0
	}
	n := 0
	for _, keyHash := range c.evict.PopDue(now) {
		if sn, ok := c.keys[keyHash]; ok {
			c.tree.Delete(sn)
			delete(c.keys, keyHash)
			n++
		}
	}
	return n
}

// touch processes one access for keyHash. On a hit it returns the reuse
// distance (>= 1) and true; on a miss it admits the key and returns false.
// evictionTime is registered only on a miss.
func (c *reuseCore) touch(keyHash uint64, evictionTime uint32, maxDistinct int) (uint64, bool) {
	if oldSN, ok := c.keys[keyHash]; ok {
		dist := c.tree.RankFrom(oldSN)
		c.tree.Delete(oldSN)
		sn := c.nextSN
		c.nextSN++
		c.tree.Insert(sn, keyHash)
		c.keys[keyHash] = sn
		return dist, true
	}

	// At capacity the LRU key - the oldest sequence number - makes room.
	if maxDistinct > 0 && len(c.keys) >= maxDistinct {
		if sn, lruKey, ok := c.tree.Min(); ok {
			c.tree.Delete(sn)
			delete(c.keys, lruKey)
		}
	}

	sn := c.nextSN
	c.nextSN++
	c.tree.Insert(sn, keyHash)
	c.keys[keyHash] = sn
	if c.evict != nil {
		c.evict.Add(evictionTime, keyHash)
	}
	return 0, false
}

// remove deletes a key outright (used by the fixed-size sampler when it
// sheds entries on threshold shrink).
func (c *reuseCore) remove(keyHash uint64) {
	if sn, ok := c.keys[keyHash]; ok {
		c.tree.Delete(sn)
		delete(c.keys, keyHash)
	}
}

func (c *reuseCore) size() int { return len(c.keys) }

func (c *reuseCore) consistent() bool { return c.tree.Size() == len(c.keys) }

// Olken computes exact miss-ratio curves by tracking the reuse distance of
// every access. Memory is bounded by MaxDistinctObjects with LRU shedding.
type Olken struct {
	cfg  Config
	core *reuseCore

	histFixed *histogram
	histAvg   *histogram
	mean      runningMean

	failed error
}

// NewOlken creates the exact estimator.
func NewOlken(cfg Config) (*Olken, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	width := uint64(cfg.BucketWidthBytes)
	return &Olken{
		cfg:       cfg,
		core:      newReuseCore(cfg.TTLAware),
		histFixed: newHistogram(cfg.numBuckets(), width),
		histAvg:   newHistogram(cfg.numBuckets(), width),
	}, nil
}

// AddRequest feeds one record. Non-Get records are ignored. A contract
// violation marks the estimator failed; every later call returns that error.
func (o *Olken) AddRequest(req Request) error {
	if o.failed != nil {
		return o.failed
	}
	if req.Type != RequestGet {
		return nil
	}

	o.core.expire(req.Timestamp)

	block := o.cfg.clampBlock(req.ValueSize)
	o.mean.observe(block)
	o.histFixed.addRequests(1)
	o.histAvg.addRequests(1)

	dist, hit := o.core.touch(req.KeyHash, req.EvictionTime, o.cfg.MaxDistinctObjects)
	if hit {
		if dist == 0 {
			o.failed = NewErrZeroStackDistance(req.KeyHash, req.Timestamp)
			return o.failed
		}
		o.histFixed.creditHit(dist, uint32(o.cfg.FixedBlockBytes), 1)
		o.histAvg.creditHit(dist, meanBlock(o.mean), 1)
	}

	if !o.core.consistent() {
		o.failed = NewErrIndexMismatch(o.core.tree.Size(), len(o.core.keys))
		return o.failed
	}
	return nil
}

// AddRequests feeds a batch in order, stopping at the first fatal error.
func (o *Olken) AddRequests(batch []Request) error {
	for _, req := range batch {
		if err := o.AddRequest(req); err != nil {
			return err
		}
	}
	return nil
}

// MRCFixedBlock builds the curve using the configured fixed block size.
func (o *Olken) MRCFixedBlock() (MRC, error) {
	if o.failed != nil {
		return nil, o.failed
	}
	return buildMRC(o.histFixed), nil
}

// MRCRunningAvg builds the curve using the running mean block size.
func (o *Olken) MRCRunningAvg() (MRC, error) {
	if o.failed != nil {
		return nil, o.failed
	}
	return buildMRC(o.histAvg), nil
}

// meanBlock rounds the running mean into a usable block size.
func meanBlock(m runningMean) uint32 {
	b := uint32(m.mean + 0.5)
	if b == 0 {
		b = 1
	}
	return b
}
