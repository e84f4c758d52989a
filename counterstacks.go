// counterstacks.go: approximate miss-ratio curves from a bank of HLL-TTLs
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import "golang.org/x/sync/errgroup"

const (
	// downsample bounds for the request-count trigger
	minDownsample = 10_000
	maxDownsample = 1_000_000

	// maxEvictionEpochs caps distinct expiry epochs in the trigger index;
	// overflow retains the smallest 90%.
	maxEvictionEpochs = 8000
)

// CounterStacks approximates miss-ratio curves with a bounded array of
// HLL-TTL counters. Counter j estimates the distinct-key cardinality of the
// window starting at epoch j; fresh accesses flow into an always-new
// counter that is merged into every live counter when a trigger fires.
// Column deltas between consecutive triggers yield per-distance hit counts.
type CounterStacks struct {
	cfg Config

	counters []*HLLTTL // slots 0..used-1 live, slot used = the new counter
	used     int
	recycled []*HLLTTL

	prev []float64 // per live counter, count at the previous trigger

	histFixed *histogram
	histAvg   *histogram
	mean      runningMean

	evict *evictionIndex

	reqSinceTrigger int
	downsample      int
	lastTrigger     uint32
	lastTS          uint32
	started         bool

	mergeSN   uint64
	totalGets uint64

	failed error
}

// NewCounterStacks creates the estimator with cfg.CounterCapacity slots and
// the fidelity preset's period, pruning delta and eviction rounding.
func NewCounterStacks(cfg Config) (*CounterStacks, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.CounterCapacity < 2 {
		return nil, NewErrInvalidConfig("counter_capacity", "must be at least 2")
	}
	width := uint64(cfg.BucketWidthBytes)
	cs := &CounterStacks{
		cfg:        cfg,
		counters:   make([]*HLLTTL, cfg.CounterCapacity),
		histFixed:  newHistogram(cfg.numBuckets(), width),
		histAvg:    newHistogram(cfg.numBuckets(), width),
		downsample: minDownsample,
	}
	if cfg.TTLAware {
		cs.evict = newEvictionIndex(cfg.Fidelity.evictionRounding(), maxEvictionEpochs)
	}
	fresh, err := cs.newCounter()
	if err != nil {
		return nil, err
	}
	cs.counters[0] = fresh
	return cs, nil
}

func (cs *CounterStacks) newCounter() (*HLLTTL, error) {
	if n := len(cs.recycled); n > 0 {
		c := cs.recycled[n-1]
		cs.recycled = cs.recycled[:n-1]
		return c, nil
	}
	return NewHLLTTL(cs.cfg.Precision, cs.cfg.MaxLeadingZeros, uint32(cs.cfg.FixedBlockBytes))
}

// AddRequest feeds one record. Non-Get records are ignored.
func (cs *CounterStacks) AddRequest(req Request) error {
	if cs.failed != nil {
		return cs.failed
	}
	if req.Type != RequestGet {
		return nil
	}

	if !cs.started {
		cs.started = true
		cs.lastTrigger = req.Timestamp
	}
	cs.lastTS = req.Timestamp

	block := cs.cfg.clampBlock(req.ValueSize)
	cs.mean.observe(block)
	cs.totalGets++
	cs.histFixed.addRequests(1)
	cs.histAvg.addRequests(1)

	expiry := req.EvictionTime
	if !cs.cfg.TTLAware {
		expiry = ^uint32(0)
	}
	cs.counters[cs.used].Add(req.KeyHash, expiry)
	cs.reqSinceTrigger++
	if cs.evict != nil {
		cs.evict.AddEpoch(req.EvictionTime)
	}

	if cs.reqSinceTrigger >= cs.downsample ||
		req.Timestamp-cs.lastTrigger >= cs.cfg.Fidelity.period() ||
		(cs.evict != nil && cs.evict.Due(req.Timestamp)) {
		return cs.processStack(req.Timestamp)
	}
	return nil
}

// AddRequests feeds a batch in order, stopping at the first fatal error.
func (cs *CounterStacks) AddRequests(batch []Request) error {
	for _, req := range batch {
		if err := cs.AddRequest(req); err != nil {
			return err
		}
	}
	return nil
}

// processStack runs one trigger: evict the new counter, fan it out into
// every live counter, derive per-row hit counts from the column deltas,
// promote the new counter, prune, and swap the column snapshots.
func (cs *CounterStacks) processStack(now uint32) error {
	start := cs.cfg.TimeProvider.Now()

	if cs.evict != nil {
		cs.evict.PopDue(now)
	}

	newCounter := cs.counters[cs.used]
	countBefore := float64(newCounter.Count())
	countAfter := float64(newCounter.EvictExpiredAndCount(now))
	cs.cfg.MetricsCollector.RecordTTLEvictions(int(countBefore - countAfter))

	// Fan the evicted new counter into every live prior counter. The
	// merge sequence number makes re-delivery within this trigger a no-op;
	// counters are pairwise disjoint so the merges can run concurrently.
	cs.mergeSN++
	cur := make([]float64, cs.used+1)
	if cs.used > 0 {
		if cs.cfg.Workers > 1 {
			var g errgroup.Group
			g.SetLimit(cs.cfg.Workers)
			for j := 0; j < cs.used; j++ {
				j := j
				g.Go(func() error {
					cur[j] = float64(cs.counters[j].MergeCount(newCounter, cs.mergeSN, false))
					if cs.cfg.TTLAware {
						cur[j] = float64(cs.counters[j].EvictExpiredAndCount(now))
					}
					return nil
				})
			}
			_ = g.Wait()
		} else {
			for j := 0; j < cs.used; j++ {
				cur[j] = float64(cs.counters[j].MergeCount(newCounter, cs.mergeSN, false))
				if cs.cfg.TTLAware {
					cur[j] = float64(cs.counters[j].EvictExpiredAndCount(now))
				}
			}
		}
	}
	cur[cs.used] = countBefore

	// Row j sits between windows j (wider) and j+1 (narrower): accesses new
	// to the narrow window but already in the wide one are hits whose stack
	// distance is bounded by the narrow window's cardinality. The last row
	// compares against the just-filled new counter.
	for j := 0; j < cs.used; j++ {
		hits := (cur[j+1] - cs.prevAt(j+1)) - (cur[j] - cs.prevAt(j))
		if hits == 0 {
			continue
		}
		sd := uint64(cur[j+1])
		if sd == 0 {
			sd = 1
		}
		cs.histFixed.creditHit(sd, uint32(cs.cfg.FixedBlockBytes), hits)
		cs.histAvg.creditHit(sd, meanBlock(cs.mean), hits)
	}

	// Promote: the new counter becomes the newest live one; its
	// post-eviction count is the snapshot carried forward.
	cs.prev = append(cur[:cs.used:cs.used], countAfter)
	cs.used++

	cs.prune(cs.cfg.Fidelity.pruneDelta())
	if cs.used >= len(cs.counters) {
		cs.closestPairPrune()
		if cs.used >= len(cs.counters) {
			cs.failed = NewErrCounterOverflow(len(cs.counters))
			return cs.failed
		}
	}

	fresh, err := cs.newCounter()
	if err != nil {
		cs.failed = err
		return err
	}
	cs.counters[cs.used] = fresh

	// Downsample tracks the working set of the oldest counter, within caps.
	ds := int(cs.prev[0])
	if ds < minDownsample {
		ds = minDownsample
	}
	if ds > maxDownsample {
		ds = maxDownsample
	}
	cs.downsample = ds

	cs.reqSinceTrigger = 0
	cs.lastTrigger = now
	cs.cfg.MetricsCollector.RecordProcessStack(cs.cfg.TimeProvider.Now() - start)
	return nil
}

func (cs *CounterStacks) prevAt(j int) float64 {
	if j < len(cs.prev) {
		return cs.prev[j]
	}
	return 0
}

// prune keeps counter k only while its count is meaningfully below the last
// kept one; near-duplicates are recycled. Counter 0 is always kept.
func (cs *CounterStacks) prune(delta float64) {
	if cs.used < 2 {
		return
	}
	kept := 1
	lastKept := 0
	for k := 1; k < cs.used; k++ {
		if cs.prev[k] < (1-delta)*cs.prev[lastKept] {
			cs.counters[kept] = cs.counters[k]
			cs.prev[kept] = cs.prev[k]
			lastKept = kept
			kept++
			continue
		}
		cs.counters[k].Reset()
		cs.recycled = append(cs.recycled, cs.counters[k])
	}
	if pruned := cs.used - kept; pruned > 0 {
		cs.cfg.MetricsCollector.RecordPrune(pruned)
		cs.cfg.Logger.Debug("counters pruned", "pruned", pruned, "live", kept)
		for k := kept; k < cs.used; k++ {
			cs.counters[k] = nil
		}
		cs.used = kept
		cs.prev = cs.prev[:kept]
	}
}

// closestPairPrune finds the smallest relative gap between neighbouring
// counters and prunes at that delta, guaranteeing room for one more slot.
func (cs *CounterStacks) closestPairPrune() {
	if cs.used < 2 {
		return
	}
	minGap := 1.0
	for k := 1; k < cs.used; k++ {
		if cs.prev[k-1] <= 0 {
			continue
		}
		gap := 1 - cs.prev[k]/cs.prev[k-1]
		if gap < minGap {
			minGap = gap
		}
	}
	cs.prune(minGap)
}

// flush forces a final trigger covering the tail of the trace.
func (cs *CounterStacks) flush() error {
	if cs.failed != nil {
		return cs.failed
	}
	if cs.reqSinceTrigger == 0 {
		return nil
	}
	return cs.processStack(cs.lastTS)
}

// MRCFixedBlock builds the curve using the configured fixed block size.
func (cs *CounterStacks) MRCFixedBlock() (MRC, error) {
	if err := cs.flush(); err != nil {
		return nil, err
	}
	return buildMRC(cs.histFixed), nil
}

// MRCRunningAvg builds the curve using the running mean block size.
func (cs *CounterStacks) MRCRunningAvg() (MRC, error) {
	if err := cs.flush(); err != nil {
		return nil, err
	}
	return buildMRC(cs.histAvg), nil
}

// LiveCounters returns the number of live counters (excluding the new one).
func (cs *CounterStacks) LiveCounters() int { return cs.used }

// Downsample returns the current request-count trigger threshold.
func (cs *CounterStacks) Downsample() int { return cs.downsample }
