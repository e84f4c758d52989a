// eviction.go: TTL eviction index - expiry min-heap plus expiry bucket key sets
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"container/heap"
	"sort"
)

// evictionIndex tracks absolute expiry times. A min-heap orders the
// distinct expiries; a side map from expiry to key set allows bulk removal
// when the heap root fires. CounterStacks uses the index without keys, as a
// trigger source, with coarsened expiries and a bounded epoch count.
type evictionIndex struct {
	heap expiryHeap
	keys map[uint32]map[uint64]struct{}

	// rounding coarsens expiries up to its multiple; 0 disables.
	rounding uint32

	// maxEpochs bounds the distinct expiry count; on overflow the smallest
	// 90% are retained. 0 disables.
	maxEpochs int
}

func newEvictionIndex(rounding uint32, maxEpochs int) *evictionIndex {
	return &evictionIndex{
		keys:      make(map[uint32]map[uint64]struct{}),
		rounding:  rounding,
		maxEpochs: maxEpochs,
	}
}

func (e *evictionIndex) round(expiry uint32) uint32 {
	if e.rounding == 0 {
		return expiry
	}
	r := e.rounding
	return ((expiry + r - 1) / r) * r
}

// Add registers a key under its (possibly coarsened) expiry.
func (e *evictionIndex) Add(expiry uint32, keyHash uint64) {
	expiry = e.round(expiry)
	set, ok := e.keys[expiry]
	if !ok {
		e.addEpoch(expiry)
		set = make(map[uint64]struct{})
		e.keys[expiry] = set
	}
	set[keyHash] = struct{}{}
}

// AddEpoch registers a bare expiry with no key attached.
func (e *evictionIndex) AddEpoch(expiry uint32) {
	expiry = e.round(expiry)
	if _, ok := e.keys[expiry]; ok {
		return
	}
	e.addEpoch(expiry)
	e.keys[expiry] = nil
}

func (e *evictionIndex) addEpoch(expiry uint32) {
	if e.maxEpochs > 0 && len(e.heap) >= e.maxEpochs {
		e.shrink()
	}
	heap.Push(&e.heap, expiry)
}

// shrink retains the smallest 90% of epochs; keys under dropped epochs are
// forgotten and will never fire through the index.
func (e *evictionIndex) shrink() {
	sorted := make([]uint32, len(e.heap))
	copy(sorted, e.heap)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	keep := len(sorted) * 9 / 10
	for _, expiry := range sorted[keep:] {
		delete(e.keys, expiry)
	}
	e.heap = e.heap[:0]
	for _, expiry := range sorted[:keep] {
		e.heap = append(e.heap, expiry)
	}
	heap.Init(&e.heap)
}

// Due reports whether any epoch has expired at trace time now.
func (e *evictionIndex) Due(now uint32) bool {
	return len(e.heap) > 0 && e.heap[0] <= now
}

// PopDue removes every epoch at or before now and returns the union of
// their key sets. The slice is nil when no keys were registered.
func (e *evictionIndex) PopDue(now uint32) []uint64 {
	var popped []uint64
	for len(e.heap) > 0 && e.heap[0] <= now {
		expiry := heap.Pop(&e.heap).(uint32)
		for keyHash := range e.keys[expiry] {
			popped = append(popped, keyHash)
		}
		delete(e.keys, expiry)
	}
	return popped
}

// Remove drops a single key from its expiry bucket, if both still exist.
// The epoch stays in the heap and fires empty.
func (e *evictionIndex) Remove(expiry uint32, keyHash uint64) {
	expiry = e.round(expiry)
	if set, ok := e.keys[expiry]; ok && set != nil {
		delete(set, keyHash)
	}
}

// Len returns the number of distinct pending epochs.
func (e *evictionIndex) Len() int {
	return len(e.heap)
}

// expiryHeap is a min-heap of absolute expiry seconds.
type expiryHeap []uint32

func (h expiryHeap) Len() int            { return len(h) }
func (h expiryHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h expiryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x interface{}) { *h = append(*h, x.(uint32)) }
func (h *expiryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
