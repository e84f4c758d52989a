// mrc.go: miss-ratio curve construction and CSV emission
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"fmt"
	"io"
)

// MRCPoint is one (cache size, miss ratio) sample of the curve.
type MRCPoint struct {
	Bytes     uint64
	MissRatio float64
}

// MRC is a miss-ratio curve: non-increasing miss ratios over growing cache
// sizes, starting at (0, 1).
type MRC []MRCPoint

// buildMRC converts a stack-distance histogram into a curve. The first
// point is always (0, 1). Buckets are scanned up to the last non-zero one;
// a point is emitted whenever the cumulative hit total strictly increases.
// Ratios are clamped into [0, 1].
func buildMRC(h *histogram) MRC {
	curve := MRC{{Bytes: 0, MissRatio: 1.0}}
	if h.requests == 0 {
		return curve
	}

	last := -1
	for i := len(h.buckets) - 1; i >= 0; i-- {
		if h.buckets[i] != 0 {
			last = i
			break
		}
	}

	total := 0.0
	n := float64(h.requests)
	for i := 0; i <= last; i++ {
		prev := total
		total += h.buckets[i]
		if total <= prev {
			continue
		}
		ratio := 1.0 - total/n
		if ratio < 0 {
			ratio = 0
		}
		if ratio > 1 {
			ratio = 1
		}
		curve = append(curve, MRCPoint{
			Bytes:     uint64(i) * h.bucketWidth,
			MissRatio: ratio,
		})
	}
	return curve
}

// WriteCSV emits one "bytes,miss_ratio" pair per line, newline terminated,
// with no trailing whitespace.
func (m MRC) WriteCSV(w io.Writer) error {
	for _, p := range m {
		if _, err := fmt.Fprintf(w, "%d,%.6f\n", p.Bytes, p.MissRatio); err != nil {
			return err
		}
	}
	return nil
}

// MissRatioAt returns the curve value at the given cache size: the ratio of
// the last point at or before size, or 1 for sizes before the first point.
func (m MRC) MissRatioAt(size uint64) float64 {
	ratio := 1.0
	for _, p := range m {
		if p.Bytes > size {
			break
		}
		ratio = p.MissRatio
	}
	return ratio
}
