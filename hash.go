// hash.go: 64-bit MurmurHash2A variant used as the sketch input hash
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import "encoding/binary"

const (
	murmurMix   = 0xc6a4a7935bd1e995
	murmurShift = 47
	murmurSeed  = 0x9747b28c
)

// Murmur64 computes the 64-bit MurmurHash2A variant of data with the given
// seed. Trace keys must be passed through this hash before entering any
// sketch; the register-index and rank conventions of the HLL family assume
// its output distribution and must stay bit-equivalent with persisted
// sketches, which is why the function is pinned here instead of delegated
// to a hashing library.
func Murmur64(data []byte, seed uint64) uint64 {
	h := seed ^ (uint64(len(data)) * murmurMix)

	n := len(data) &^ 7
	for i := 0; i < n; i += 8 {
		k := binary.LittleEndian.Uint64(data[i:])
		k *= murmurMix
		k ^= k >> murmurShift
		k *= murmurMix
		h ^= k
		h *= murmurMix
	}

	tail := data[n:]
	switch len(tail) {
	case 7:
		h ^= uint64(tail[6]) << 48
		fallthrough
	case 6:
		h ^= uint64(tail[5]) << 40
		fallthrough
	case 5:
		h ^= uint64(tail[4]) << 32
		fallthrough
	case 4:
		h ^= uint64(tail[3]) << 24
		fallthrough
	case 3:
		h ^= uint64(tail[2]) << 16
		fallthrough
	case 2:
		h ^= uint64(tail[1]) << 8
		fallthrough
	case 1:
		h ^= uint64(tail[0])
		h *= murmurMix
	}

	h ^= h >> murmurShift
	h *= murmurMix
	h ^= h >> murmurShift
	return h
}

// Murmur64Uint64 hashes an unsigned 64-bit key with the default seed.
// Equivalent to Murmur64 over the key's little-endian bytes, kept as a
// separate path to avoid the slice round-trip on the hot path.
func Murmur64Uint64(key uint64) uint64 {
	var mix uint64 = murmurMix
	h := uint64(murmurSeed) ^ (8 * mix)

	k := key
	k *= murmurMix
	k ^= k >> murmurShift
	k *= murmurMix
	h ^= k
	h *= murmurMix

	h ^= h >> murmurShift
	h *= murmurMix
	h ^= h >> murmurShift
	return h
}
