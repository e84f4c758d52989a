// serialize_test.go: round-trip tests for the sketch wire encodings
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fillTTL(t *testing.T, n uint64, expiryMod uint32) *HLLTTL {
	t.Helper()
	h, err := NewHLLTTL(12, 52, 4096)
	require.NoError(t, err)
	for k := uint64(0); k < n; k++ {
		h.Add(Murmur64Uint64(k), uint32(k)%expiryMod+1)
	}
	return h
}

// countsAt evaluates the sketch at several times without mutating it.
func countsAt(h *HLLTTL, times []uint32) []uint64 {
	out := make([]uint64, len(times))
	for i, now := range times {
		out[i] = h.Clone().EvictExpiredAndCount(now)
	}
	return out
}

func TestSerialize_StaticRoundTrip(t *testing.T) {
	h := fillTTL(t, 150_000, 5000) // dense
	require.False(t, h.IsSparse())

	times := []uint32{0, 100, 2500, 4999, 5001}
	want := countsAt(h, times)

	got, err := DeserializeHLLTTL(h.SerializeStatic(), 52)
	require.NoError(t, err)
	require.Equal(t, want, countsAt(got, times))
}

func TestSerialize_DynamicRoundTrip(t *testing.T) {
	h := fillTTL(t, 150_000, 5000)
	require.False(t, h.IsSparse())

	times := []uint32{0, 100, 2500, 4999, 5001}
	want := countsAt(h, times)

	got, err := DeserializeHLLTTL(h.SerializeDynamic(), 52)
	require.NoError(t, err)
	require.Equal(t, want, countsAt(got, times))
}

func TestSerialize_StaticAndDynamicAgree(t *testing.T) {
	h := fillTTL(t, 150_000, 5000)
	// Partially evict so the dynamic form actually prunes cells.
	h.EvictExpiredAndCount(2500)

	times := []uint32{0, 2600, 4000, 6000}
	fromStatic, err := DeserializeHLLTTL(h.SerializeStatic(), 52)
	require.NoError(t, err)
	fromDynamic, err := DeserializeHLLTTL(h.SerializeDynamic(), 52)
	require.NoError(t, err)
	require.Equal(t, countsAt(fromStatic, times), countsAt(fromDynamic, times))
}

func TestSerialize_SparseRoundTrip(t *testing.T) {
	h := fillTTL(t, 200, 100) // stays sparse
	require.True(t, h.IsSparse())

	times := []uint32{0, 50, 99, 200}
	want := countsAt(h, times)

	got, err := DeserializeHLLTTL(h.SerializeStatic(), 52)
	require.NoError(t, err)
	require.True(t, got.IsSparse())
	require.Equal(t, want, countsAt(got, times))

	// The sparse form is representation-independent of the request.
	require.Equal(t, h.SerializeStatic()[4:11], h.SerializeDynamic()[4:11])
}

func TestSerialize_DynamicSmallerAfterEviction(t *testing.T) {
	h := fillTTL(t, 150_000, 5000)
	h.EvictExpiredAndCount(4900)
	if len(h.SerializeDynamic()) >= len(h.SerializeStatic()) {
		t.Error("dynamic encoding should shrink once most cells expired")
	}
}

func TestSerialize_CorruptedInputs(t *testing.T) {
	h := fillTTL(t, 300, 100)
	data := h.SerializeStatic()

	badPrecision := append([]byte(nil), data...)
	badPrecision[8] = 99

	cases := map[string][]byte{
		"empty":         {},
		"short header":  data[:6],
		"bad length":    append([]byte{0xff, 0xff, 0xff, 0x7f}, data[4:]...),
		"truncated":     data[:len(data)-3],
		"zeroed buffer": make([]byte, len(data)),
		"bad precision": badPrecision,
	}
	for name, corrupt := range cases {
		if _, err := DeserializeHLLTTL(corrupt, 52); err == nil {
			t.Errorf("%s: expected deserialization error", name)
		} else if !IsCodecError(err) {
			t.Errorf("%s: expected a codec error, got %v", name, err)
		}
	}
}

func TestSerialize_PlainHLLRoundTrip(t *testing.T) {
	for _, n := range []uint64{50, 80_000} {
		h, err := NewHLL(12, 4096)
		require.NoError(t, err)
		for k := uint64(0); k < n; k++ {
			h.Add(Murmur64Uint64(k))
		}
		got, err := DeserializeHLL(h.Serialize())
		require.NoError(t, err)
		require.Equal(t, h.Count(), got.Count())
		require.Equal(t, h.IsSparse(), got.IsSparse())
	}
}

func TestSerialize_PlainHLLCorrupted(t *testing.T) {
	h, _ := NewHLL(12, 4096)
	h.Add(Murmur64Uint64(1))
	data := h.Serialize()
	if _, err := DeserializeHLL(data[:10]); err == nil {
		t.Error("expected error for truncated plain sketch")
	}
	bad := append([]byte(nil), data...)
	bad[8] = 7 // precision no longer matches the register count field
	if _, err := DeserializeHLL(bad); err == nil {
		t.Error("expected error for header mismatch")
	}
}
