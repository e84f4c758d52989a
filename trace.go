// trace.go: binary trace record codec and in-memory reader
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"context"
	"encoding/binary"
	"math"
)

// RecordSize is the fixed on-disk footprint of one trace record.
const RecordSize = 20

// maxDecodeRecords bounds a single decode call so the byte count can never
// overflow a 32-bit length downstream.
const maxDecodeRecords = math.MaxInt32 / RecordSize

// DecodeRequests parses little-endian 20-byte trace records:
// timestamp:u32 key_hash:u64 value_size:u32 eviction_time:u32. Sizes are
// clamped into the configured block range; the filtered trace format
// carries Get requests only. The byte length must be a whole number of
// records; anything else means the trace is truncated.
func DecodeRequests(data []byte, cfg *Config) ([]Request, error) {
	if len(data)%RecordSize != 0 {
		return nil, NewErrShortRead(((len(data)/RecordSize)+1)*RecordSize, len(data))
	}
	n := len(data) / RecordSize
	if n > maxDecodeRecords {
		return nil, NewErrBatchTooLarge(n, maxDecodeRecords)
	}
	out := make([]Request, n)
	for i := 0; i < n; i++ {
		rec := data[i*RecordSize:]
		req := Request{
			Timestamp:    binary.LittleEndian.Uint32(rec[0:]),
			KeyHash:      binary.LittleEndian.Uint64(rec[4:]),
			ValueSize:    binary.LittleEndian.Uint32(rec[12:]),
			EvictionTime: binary.LittleEndian.Uint32(rec[16:]),
			Type:         RequestGet,
		}
		if req.EvictionTime < req.Timestamp {
			return nil, NewErrCorruptedTrace("eviction time precedes timestamp")
		}
		req.ValueSize = cfg.clampBlock(req.ValueSize)
		out[i] = req
	}
	return out, nil
}

// AppendRequest encodes one record onto dst in the trace wire format.
func AppendRequest(dst []byte, req Request) []byte {
	var rec [RecordSize]byte
	binary.LittleEndian.PutUint32(rec[0:], req.Timestamp)
	binary.LittleEndian.PutUint64(rec[4:], req.KeyHash)
	binary.LittleEndian.PutUint32(rec[12:], req.ValueSize)
	binary.LittleEndian.PutUint32(rec[16:], req.EvictionTime)
	return append(dst, rec[:]...)
}

// SliceReader serves pre-decoded records as batches. It is the in-memory
// RequestReader used by tests and small traces; file-backed readers live in
// the orchestrator.
type SliceReader struct {
	requests []Request
	pos      int
}

// NewSliceReader wraps a record slice.
func NewSliceReader(requests []Request) *SliceReader {
	return &SliceReader{requests: requests}
}

// NextBatch returns up to max records, or an empty batch at end of trace.
func (r *SliceReader) NextBatch(ctx context.Context, max int) ([]Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.pos >= len(r.requests) {
		return nil, nil
	}
	end := r.pos + max
	if end > len(r.requests) {
		end = len(r.requests)
	}
	batch := r.requests[r.pos:end]
	r.pos = end
	return batch, nil
}
