// shards_test.go: unit tests for both SHARDS sampling estimators
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"math"
	"math/rand"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"
)

func TestShardsFixedRate_SamplingPredicate(t *testing.T) {
	s, err := NewShardsFixedRate(Config{SamplingRate: 0.1})
	require.NoError(t, err)

	const n = 100_000
	for k := uint64(0); k < n; k++ {
		require.NoError(t, s.AddRequest(getReq(Murmur64Uint64(k), 0, never(), 4096)))
	}

	// The spatial filter is deterministic; murmur output is uniform, so the
	// sampled share must be close to R.
	share := float64(s.SampledCount()) / n
	require.InDelta(t, 0.1, share, 0.01)
	require.EqualValues(t, n, s.totalGets)
}

func TestShardsFixedRate_AdjustedAccounting(t *testing.T) {
	cfg := Config{SamplingRate: 0.1, AdjustedSampling: true}
	s, err := NewShardsFixedRate(cfg)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 50_000; i++ {
		k := uint64(rng.Intn(2000))
		require.NoError(t, s.AddRequest(getReq(Murmur64Uint64(k), uint32(i), never(), 4096)))
	}

	// The adjustment credits (R*N - n_sampled)/R request units into bucket
	// 1, so the effective sampled count matches R*N exactly.
	adjusted := s.finalizeHist(s.histFixed)
	diff := adjusted.buckets[1] - s.histFixed.buckets[1]
	effective := float64(s.sampled) + diff*s.rate
	require.InDelta(t, s.rate*float64(s.totalGets), effective, 1.0)
}

func TestShardsFixedRate_MatchesOlkenOnZipf(t *testing.T) {
	if testing.Short() {
		t.Skip("zipf comparison is slow")
	}
	cfg := Config{
		MaxCacheBytes:    256 * datasize.MB,
		BucketWidthBytes: datasize.MB,
		SamplingRate:     0.1,
	}
	olken, err := NewOlken(cfg)
	require.NoError(t, err)
	shards, err := NewShardsFixedRate(cfg)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	zipf := rand.NewZipf(rng, 1.2, 1, 200_000)
	const n = 500_000
	for i := 0; i < n; i++ {
		req := getReq(Murmur64Uint64(zipf.Uint64()), uint32(i/100), never(), 4096)
		require.NoError(t, olken.AddRequest(req))
		require.NoError(t, shards.AddRequest(req))
	}

	exact, err := olken.MRCFixedBlock()
	require.NoError(t, err)
	approx, err := shards.MRCFixedBlock()
	require.NoError(t, err)

	var sum, maxDev float64
	points := 0
	for size := uint64(0); size <= uint64(cfg.MaxCacheBytes); size += uint64(cfg.BucketWidthBytes) {
		dev := math.Abs(exact.MissRatioAt(size) - approx.MissRatioAt(size))
		sum += dev
		if dev > maxDev {
			maxDev = dev
		}
		points++
	}
	mae := sum / float64(points)
	require.LessOrEqual(t, mae, 0.02, "mean absolute error vs exact curve")
	require.LessOrEqual(t, maxDev, 0.08, "max deviation vs exact curve")
}

func TestShardsFixedRate_TTLForcesMiss(t *testing.T) {
	// Rate 1.0 samples everything, reducing to the Olken behavior.
	s, err := NewShardsFixedRate(Config{SamplingRate: 1.0, TTLAware: true})
	require.NoError(t, err)
	require.NoError(t, s.AddRequest(getReq(0xA, 0, 5, 4096)))
	require.NoError(t, s.AddRequest(getReq(0xA, 10, 15, 4096)))
	for _, count := range s.histFixed.buckets {
		require.Zero(t, count)
	}
}

func TestShardsFixedSize_BoundedSample(t *testing.T) {
	cfg := Config{SampleCap: 64}
	s, err := NewShardsFixedSize(cfg)
	require.NoError(t, err)

	for k := uint64(0); k < 10_000; k++ {
		require.NoError(t, s.AddRequest(getReq(Murmur64Uint64(k), 0, never(), 4096)))
	}
	require.LessOrEqual(t, s.SampleSize(), 64, "sample must stay bounded")
	require.Less(t, s.Rate(), 1.0, "threshold must have shrunk")
}

func TestShardsFixedSize_ThresholdShrinksOnOverflow(t *testing.T) {
	cfg := Config{SampleCap: 4}
	s, err := NewShardsFixedSize(cfg)
	require.NoError(t, err)

	// Craft keys with controlled ti = hash mod P: the high bits make the
	// keys distinct, the low 24 bits are the priority.
	mk := func(high uint64, ti uint32) uint64 {
		return high<<24 | uint64(ti)
	}
	for i, ti := range []uint32{10, 20, 30, 40} {
		require.NoError(t, s.AddRequest(getReq(mk(uint64(i+1), ti), 0, never(), 4096)))
	}
	require.Equal(t, 4, s.SampleSize())

	// A fifth key overflows; ti=40 is the least promising and sets T=40.
	require.NoError(t, s.AddRequest(getReq(mk(9, 25), 0, never(), 4096)))
	require.Equal(t, uint32(40), s.threshold)
	require.Equal(t, 4, s.SampleSize())

	// A key at ti=40 no longer passes the predicate.
	require.NoError(t, s.AddRequest(getReq(mk(10, 40), 0, never(), 4096)))
	require.Equal(t, 4, s.SampleSize())
}

func TestShardsFixedSize_TTLEviction(t *testing.T) {
	cfg := Config{SampleCap: 100, TTLAware: true}
	s, err := NewShardsFixedSize(cfg)
	require.NoError(t, err)

	require.NoError(t, s.AddRequest(getReq(0x1, 0, 5, 4096)))
	require.NoError(t, s.AddRequest(getReq(0x2, 0, 50, 4096)))
	require.Equal(t, 2, s.SampleSize())

	// Key 1 expires before its reuse: the second access is a miss.
	require.NoError(t, s.AddRequest(getReq(0x1, 10, 100, 4096)))
	require.Equal(t, 2, s.SampleSize())
	for _, count := range s.histFixed.counts {
		require.Zero(t, count)
	}
}

func TestShardsFixedSize_CurveSanity(t *testing.T) {
	cfg := Config{
		MaxCacheBytes:    64 * datasize.MB,
		BucketWidthBytes: datasize.MB,
		SampleCap:        512,
	}
	s, err := NewShardsFixedSize(cfg)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200_000; i++ {
		k := uint64(rng.Intn(5000))
		require.NoError(t, s.AddRequest(getReq(Murmur64Uint64(k), uint32(i/50), never(), 4096)))
	}

	mrc, err := s.MRCFixedBlock()
	require.NoError(t, err)
	require.Equal(t, MRCPoint{Bytes: 0, MissRatio: 1.0}, mrc[0])
	prev := 1.0
	for _, p := range mrc[1:] {
		require.LessOrEqual(t, p.MissRatio, prev, "curve must not rise")
		prev = p.MissRatio
	}
	// 5000 hot keys at 4KiB fit in ~20MiB; the tail must show real hits.
	require.Less(t, mrc.MissRatioAt(uint64(cfg.MaxCacheBytes)), 0.3)
}
