// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bitidx

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/ozbcdb/bitidx/internal/subindex"
)

// File layout (little-endian throughout, per spec.md §6):
//
//	[ header ]
//	[ chunk_0 ][ chunk_1 ] ... [ chunk_{m-1} ]
//	[ footer payload ]
//	[ footer trailer ]
//
// header, chunk, and footer formats follow. This mirrors the shape of
// sstable/table.go's trailing footer: a small fixed-size trailer at the
// very end of the file (footerTrailerLen bytes) points back at a
// variable-length footer payload, the same way pebble's RocksDB-format
// footer embeds block handles pointing back at the index/meta blocks.

var fileMagic = [8]byte{'O', 'Z', 'B', 'C', 'I', 'D', 'X', '1'}

const formatVersion = uint16(1)

// header is the fixed-size prefix of an index file, followed by NumGroups
// bytes of per-group bit widths.
type header struct {
	magic       [8]byte
	version     uint16
	width       uint16
	numGroups   uint16
	chunkLen    uint32
	compression CompressionKind
	groupBits   []uint8
}

const headerFixedLen = 8 + 2 + 2 + 2 + 4 + 1

func encodeHeader(h header) []byte {
	buf := make([]byte, headerFixedLen+len(h.groupBits))
	copy(buf[0:8], h.magic[:])
	binary.LittleEndian.PutUint16(buf[8:10], h.version)
	binary.LittleEndian.PutUint16(buf[10:12], h.width)
	binary.LittleEndian.PutUint16(buf[12:14], h.numGroups)
	binary.LittleEndian.PutUint32(buf[14:18], h.chunkLen)
	buf[18] = byte(h.compression)
	copy(buf[headerFixedLen:], h.groupBits)
	return buf
}

func decodeHeader(r io.Reader) (header, error) {
	var fixed [headerFixedLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return header{}, storageErrorf(err, "reading header")
	}
	var h header
	copy(h.magic[:], fixed[0:8])
	if h.magic != fileMagic {
		return header{}, formatErrorf("bad magic in header")
	}
	h.version = binary.LittleEndian.Uint16(fixed[8:10])
	if h.version != formatVersion {
		return header{}, formatErrorf("unsupported format version %d", h.version)
	}
	h.width = binary.LittleEndian.Uint16(fixed[10:12])
	h.numGroups = binary.LittleEndian.Uint16(fixed[12:14])
	h.chunkLen = binary.LittleEndian.Uint32(fixed[14:18])
	h.compression = CompressionKind(fixed[18])
	h.groupBits = make([]uint8, h.numGroups)
	if h.numGroups > 0 {
		if _, err := io.ReadFull(r, h.groupBits); err != nil {
			return header{}, storageErrorf(err, "reading header group widths")
		}
	}
	return h, nil
}

func (h header) byteLen() int { return headerFixedLen + len(h.groupBits) }

// chunkPrefix precedes every chunk's (possibly compressed) body.
type chunkPrefix struct {
	bodyLen    uint64 // byte length of the body as written (post-compression)
	logicalLen uint32 // number of positions this chunk covers, <= header.chunkLen
}

const chunkPrefixLen = 8 + 4
const checksumLen = 8

func encodeChunkPrefix(p chunkPrefix) []byte {
	buf := make([]byte, chunkPrefixLen)
	binary.LittleEndian.PutUint64(buf[0:8], p.bodyLen)
	binary.LittleEndian.PutUint32(buf[8:12], p.logicalLen)
	return buf
}

func decodeChunkPrefix(buf []byte) chunkPrefix {
	return chunkPrefix{
		bodyLen:    binary.LittleEndian.Uint64(buf[0:8]),
		logicalLen: binary.LittleEndian.Uint32(buf[8:12]),
	}
}

// encodeChunkBody serializes groups (in group order, each via
// subindex.Array.Serialize) and applies the configured compression.
func encodeChunkBody(groups []*subindex.Array, compression CompressionKind) ([]byte, error) {
	var raw bytes.Buffer
	for _, g := range groups {
		if err := g.Serialize(&raw); err != nil {
			return nil, err
		}
	}
	switch compression {
	case NoCompression:
		return raw.Bytes(), nil
	case SnappyCompression:
		return snappy.Encode(nil, raw.Bytes()), nil
	case ZstdCompression:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(raw.Bytes(), nil), nil
	default:
		return nil, formatErrorf("unknown compression kind %d", compression)
	}
}

// decodeChunkBody reverses encodeChunkBody and deserializes the resulting
// raw bytes into G sub-arrays, one per groupBits entry.
func decodeChunkBody(body []byte, compression CompressionKind, groupBits []uint8) ([]*subindex.Array, error) {
	var raw []byte
	switch compression {
	case NoCompression:
		raw = body
	case SnappyCompression:
		decoded, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, formatErrorf("snappy decode: %v", err)
		}
		raw = decoded
	case ZstdCompression:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		decoded, err := dec.DecodeAll(body, nil)
		if err != nil {
			return nil, formatErrorf("zstd decode: %v", err)
		}
		raw = decoded
	default:
		return nil, formatErrorf("unknown compression kind %d", compression)
	}

	r := bytes.NewReader(raw)
	groups := make([]*subindex.Array, len(groupBits))
	for i, bits := range groupBits {
		arr, err := subindex.Deserialize(r, int(bits))
		if err != nil {
			return nil, formatErrorf("decoding group %d: %v", i, err)
		}
		groups[i] = arr
	}
	return groups, nil
}

func checksum(b []byte) uint64 { return xxhash.Sum64(b) }
