// hash_test.go: unit tests for the MurmurHash2A variant
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"encoding/binary"
	"testing"
)

func TestMurmur64_Deterministic(t *testing.T) {
	data := []byte("xanthos trace key")
	if Murmur64(data, murmurSeed) != Murmur64(data, murmurSeed) {
		t.Error("expected identical hashes for identical input")
	}
	if Murmur64(data, murmurSeed) == Murmur64(data, murmurSeed+1) {
		t.Error("expected different hashes for different seeds")
	}
}

func TestMurmur64_TailLengths(t *testing.T) {
	// Every tail length 0..7 must hash and differ from its neighbours.
	base := []byte("0123456789abcdef")
	seen := make(map[uint64]int)
	for n := 0; n <= len(base); n++ {
		h := Murmur64(base[:n], murmurSeed)
		if prev, dup := seen[h]; dup {
			t.Errorf("lengths %d and %d collided", prev, n)
		}
		seen[h] = n
	}
}

func TestMurmur64Uint64_MatchesByteForm(t *testing.T) {
	keys := []uint64{0, 1, 42, 1 << 31, ^uint64(0), 0xdeadbeefcafebabe}
	for _, k := range keys {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], k)
		if got, want := Murmur64Uint64(k), Murmur64(buf[:], murmurSeed); got != want {
			t.Errorf("key %x: fast path %x, byte path %x", k, got, want)
		}
	}
}

func TestMurmur64Uint64_SpreadsRegisters(t *testing.T) {
	// Sequential keys must land across registers: the top bits of the hash
	// select the register, so a counter-like key space has to scatter.
	const n = 4096
	registers := make(map[uint32]struct{})
	for k := uint64(0); k < n; k++ {
		registers[registerIndex(Murmur64Uint64(k), 12)] = struct{}{}
	}
	// With 4096 keys over 4096 registers, expect roughly 1-1/e occupancy.
	if len(registers) < 2000 {
		t.Errorf("sequential keys occupy only %d registers", len(registers))
	}
}
