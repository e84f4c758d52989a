// serialize.go: wire encodings for the HLL family
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import "encoding/binary"

// Sketch wire layout (all little-endian):
//
//	HLL-TTL: length:u32, then block_size:u32 precision:u8 is_sparse:u8
//	is_static:u8, then one of
//	  sparse:  n:u32, n x (hash:u64, expiry:u32)
//	  static:  m x Z expiry cells (u32), row-major
//	  dynamic: (row:u32, n_nonzero:u32, n x (rank:u8, expiry:u32))*,
//	           rows with no live cells omitted, cells above top pruned
//
//	HLL: length:u32, then block_size:u32 precision:u8 is_sparse:u8
//	is_static:u8 insertions:u32 registers:u32, then either n:u32 + n raw
//	hashes (u64) or m register bytes.
//
// The length prefix covers everything after itself. Deserialization
// validates the header before touching the payload.

const (
	ttlHeaderSize   = 7
	plainHeaderSize = 15
)

func putTTLHeader(buf []byte, blockSize uint32, precision uint8, isSparse, isStatic bool) {
	binary.LittleEndian.PutUint32(buf[0:], blockSize)
	buf[4] = precision
	buf[5] = 0
	if isSparse {
		buf[5] = 1
	}
	buf[6] = 0
	if isStatic {
		buf[6] = 1
	}
}

// SerializeStatic encodes the sketch with the fixed-size dense layout. A
// sketch still in sparse form is encoded sparse; the representation is part
// of the wire format, not a request to convert.
func (h *HLLTTL) SerializeStatic() []byte {
	if h.buckets == nil {
		return h.serializeSparse()
	}
	payload := len(h.buckets) * 4
	out := make([]byte, 4+ttlHeaderSize+payload)
	binary.LittleEndian.PutUint32(out[0:], uint32(ttlHeaderSize+payload))
	putTTLHeader(out[4:], h.blockSize, h.precision, false, true)
	off := 4 + ttlHeaderSize
	for _, cell := range h.buckets {
		binary.LittleEndian.PutUint32(out[off:], cell)
		off += 4
	}
	return out
}

// SerializeDynamic encodes the sketch with the run-length dense layout,
// emitting only live cells at or below each register's top.
func (h *HLLTTL) SerializeDynamic() []byte {
	if h.buckets == nil {
		return h.serializeSparse()
	}
	z := int(h.maxRank)

	size := 0
	for i := 0; i < int(h.m); i++ {
		if h.top[i] == 0 {
			continue
		}
		size += 8
		row := h.buckets[i*z : (i+1)*z]
		for r := 1; r <= int(h.top[i]); r++ {
			if row[r] != 0 {
				size += 5
			}
		}
	}

	out := make([]byte, 4+ttlHeaderSize+size)
	binary.LittleEndian.PutUint32(out[0:], uint32(ttlHeaderSize+size))
	putTTLHeader(out[4:], h.blockSize, h.precision, false, false)
	off := 4 + ttlHeaderSize
	for i := 0; i < int(h.m); i++ {
		if h.top[i] == 0 {
			continue
		}
		row := h.buckets[i*z : (i+1)*z]
		n := 0
		for r := 1; r <= int(h.top[i]); r++ {
			if row[r] != 0 {
				n++
			}
		}
		binary.LittleEndian.PutUint32(out[off:], uint32(i))
		binary.LittleEndian.PutUint32(out[off+4:], uint32(n))
		off += 8
		for r := 1; r <= int(h.top[i]); r++ {
			if row[r] == 0 {
				continue
			}
			out[off] = uint8(r)
			binary.LittleEndian.PutUint32(out[off+1:], row[r])
			off += 5
		}
	}
	return out
}

func (h *HLLTTL) serializeSparse() []byte {
	payload := 4 + len(h.sparse)*12
	out := make([]byte, 4+ttlHeaderSize+payload)
	binary.LittleEndian.PutUint32(out[0:], uint32(ttlHeaderSize+payload))
	putTTLHeader(out[4:], h.blockSize, h.precision, true, false)
	off := 4 + ttlHeaderSize
	binary.LittleEndian.PutUint32(out[off:], uint32(len(h.sparse)))
	off += 4
	for hash, expiry := range h.sparse {
		binary.LittleEndian.PutUint64(out[off:], hash)
		binary.LittleEndian.PutUint32(out[off+8:], expiry)
		off += 12
	}
	return out
}

// DeserializeHLLTTL rebuilds a sketch from its wire form. maxRank must match
// the Z the sketch was built with; for the static layout it is derived from
// the payload and validated against the argument when both are present
// (pass 0 to accept the derived value).
func DeserializeHLLTTL(data []byte, maxRank int) (*HLLTTL, error) {
	if len(data) < 4+ttlHeaderSize {
		return nil, NewErrCorruptedSketch("buffer shorter than header")
	}
	length := int(binary.LittleEndian.Uint32(data[0:]))
	if length != len(data)-4 {
		return nil, NewErrCorruptedSketch("length prefix does not match buffer")
	}
	blockSize := binary.LittleEndian.Uint32(data[4:])
	precision := int(data[8])
	isSparse := data[9] == 1
	isStatic := data[10] == 1
	if precision < 4 || precision > 16 {
		return nil, NewErrCorruptedSketch("precision out of range")
	}
	m := 1 << precision
	payload := data[4+ttlHeaderSize:]

	switch {
	case isSparse:
		if maxRank == 0 {
			maxRank = 64 - precision
			if maxRank > 52 {
				maxRank = 52
			}
		}
		h, err := NewHLLTTL(precision, maxRank, blockSize)
		if err != nil {
			return nil, err
		}
		if len(payload) < 4 {
			return nil, NewErrCorruptedSketch("sparse payload shorter than count")
		}
		n := int(binary.LittleEndian.Uint32(payload))
		if len(payload) != 4+n*12 {
			return nil, NewErrCorruptedSketch("sparse payload size mismatch")
		}
		off := 4
		for i := 0; i < n; i++ {
			hash := binary.LittleEndian.Uint64(payload[off:])
			expiry := binary.LittleEndian.Uint32(payload[off+8:])
			h.Add(hash, expiry)
			off += 12
		}
		return h, nil

	case isStatic:
		if len(payload)%(4*m) != 0 || len(payload) == 0 {
			return nil, NewErrCorruptedSketch("static payload is not an m x Z matrix")
		}
		z := len(payload) / (4 * m)
		if maxRank != 0 && maxRank != z {
			return nil, NewErrCorruptedSketch("static payload disagrees with max rank")
		}
		h, err := NewHLLTTL(precision, z, blockSize)
		if err != nil {
			return nil, err
		}
		h.buckets = make([]uint32, m*z)
		h.top = make([]uint8, m)
		h.sparse = nil
		for cell := range h.buckets {
			h.buckets[cell] = binary.LittleEndian.Uint32(payload[cell*4:])
		}
		for i := 0; i < m; i++ {
			for r := z - 1; r >= 1; r-- {
				if h.buckets[i*z+r] != 0 {
					h.top[i] = uint8(r)
					break
				}
			}
		}
		return h, nil

	default: // dynamic dense
		if maxRank == 0 {
			maxRank = 64 - precision
			if maxRank > 52 {
				maxRank = 52
			}
		}
		h, err := NewHLLTTL(precision, maxRank, blockSize)
		if err != nil {
			return nil, err
		}
		h.buckets = make([]uint32, m*maxRank)
		h.top = make([]uint8, m)
		h.sparse = nil
		off := 0
		for off < len(payload) {
			if len(payload)-off < 8 {
				return nil, NewErrCorruptedSketch("dynamic payload truncated at row header")
			}
			row := int(binary.LittleEndian.Uint32(payload[off:]))
			n := int(binary.LittleEndian.Uint32(payload[off+4:]))
			off += 8
			if row >= m {
				return nil, NewErrCorruptedSketch("dynamic payload row out of range")
			}
			if len(payload)-off < n*5 {
				return nil, NewErrCorruptedSketch("dynamic payload truncated at cells")
			}
			for i := 0; i < n; i++ {
				r := int(payload[off])
				expiry := binary.LittleEndian.Uint32(payload[off+1:])
				off += 5
				if r < 1 || r >= maxRank {
					return nil, NewErrCorruptedSketch("dynamic payload rank out of range")
				}
				h.buckets[row*maxRank+r] = expiry
				if uint8(r) > h.top[row] {
					h.top[row] = uint8(r)
				}
			}
		}
		return h, nil
	}
}

// Serialize encodes a plain sketch.
func (h *HLL) Serialize() []byte {
	var payload int
	if h.registers == nil {
		payload = 4 + len(h.sparse)*8
	} else {
		payload = len(h.registers)
	}
	out := make([]byte, 4+plainHeaderSize+payload)
	binary.LittleEndian.PutUint32(out[0:], uint32(plainHeaderSize+payload))
	binary.LittleEndian.PutUint32(out[4:], h.blockSize)
	out[8] = h.precision
	if h.registers == nil {
		out[9] = 1
	}
	out[10] = 1 // plain registers are always fixed-size
	binary.LittleEndian.PutUint32(out[11:], uint32(h.insertions))
	binary.LittleEndian.PutUint32(out[15:], h.m)
	off := 4 + plainHeaderSize
	if h.registers == nil {
		binary.LittleEndian.PutUint32(out[off:], uint32(len(h.sparse)))
		off += 4
		for hash := range h.sparse {
			binary.LittleEndian.PutUint64(out[off:], hash)
			off += 8
		}
		return out
	}
	copy(out[off:], h.registers)
	return out
}

// DeserializeHLL rebuilds a plain sketch from its wire form.
func DeserializeHLL(data []byte) (*HLL, error) {
	if len(data) < 4+plainHeaderSize {
		return nil, NewErrCorruptedSketch("buffer shorter than header")
	}
	length := int(binary.LittleEndian.Uint32(data[0:]))
	if length != len(data)-4 {
		return nil, NewErrCorruptedSketch("length prefix does not match buffer")
	}
	blockSize := binary.LittleEndian.Uint32(data[4:])
	precision := int(data[8])
	isSparse := data[9] == 1
	insertions := binary.LittleEndian.Uint32(data[11:])
	m := binary.LittleEndian.Uint32(data[15:])
	if precision < 4 || precision > 16 || m != uint32(1)<<precision {
		return nil, NewErrCorruptedSketch("precision and register count disagree")
	}
	h, err := NewHLL(precision, blockSize)
	if err != nil {
		return nil, err
	}
	payload := data[4+plainHeaderSize:]
	if isSparse {
		if len(payload) < 4 {
			return nil, NewErrCorruptedSketch("sparse payload shorter than count")
		}
		n := int(binary.LittleEndian.Uint32(payload))
		if len(payload) != 4+n*8 {
			return nil, NewErrCorruptedSketch("sparse payload size mismatch")
		}
		for i := 0; i < n; i++ {
			h.Add(binary.LittleEndian.Uint64(payload[4+i*8:]))
		}
		h.insertions = uint64(insertions)
		return h, nil
	}
	if len(payload) != int(m) {
		return nil, NewErrCorruptedSketch("register payload size mismatch")
	}
	h.registers = make([]uint8, m)
	copy(h.registers, payload)
	h.sparse = nil
	h.insertions = uint64(insertions)
	return h, nil
}
