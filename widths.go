// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bitidx

import (
	"context"
	"encoding/binary"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// EncodeValue returns v's little-endian byte representation, sized to
// T's width, in the form PushValue and QueryRange expect. It generalizes
// sstable/colblk's readLittleEndianNonaligned in the opposite direction:
// that function reads a T out of a byte slice by T's size; this one
// writes one.
func EncodeValue[T constraints.Integer](v T) []byte {
	sz := unsafe.Sizeof(v)
	buf := make([]byte, sz)
	switch sz {
	case 1:
		buf[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(buf, uint64(v))
	default:
		panic("bitidx: EncodeValue: unsupported integer width")
	}
	return buf
}

// WidthOf returns the bit width of T, suitable for Options.Width.
func WidthOf[T constraints.Integer]() int {
	var zero T
	return int(unsafe.Sizeof(zero)) * 8
}

// Push encodes v and pushes it onto idx. It is a generic convenience
// wrapper around Index.PushValue for any fixed-width builtin integer type
// up to 64 bits; for 128-bit values use PushUint128.
func Push[T constraints.Integer](idx *Index, v T) error {
	return idx.PushValue(EncodeValue(v))
}

// QueryEqual encodes probe and returns the ascending positions of every
// value pushed onto idx equal to it.
func QueryEqual[T constraints.Integer](ctx context.Context, idx *Index, probe T) ([]uint64, error) {
	return idx.Query(ctx, EncodeValue(probe))
}

// PushAll is the batch form of Push: it encodes and pushes each value in
// vs onto idx in order, stopping at the first error.
func PushAll[T constraints.Integer](idx *Index, vs []T) error {
	for _, v := range vs {
		if err := Push(idx, v); err != nil {
			return err
		}
	}
	return nil
}

// Uint128 is a 128-bit unsigned integer split into two 64-bit halves,
// since no builtin Go integer type reaches 128 bits and so constraints.
// Integer cannot express it.
type Uint128 struct {
	Hi, Lo uint64
}

// EncodeUint128 returns v's little-endian byte representation: Lo's 8
// bytes followed by Hi's 8 bytes.
func EncodeUint128(v Uint128) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], v.Lo)
	binary.LittleEndian.PutUint64(buf[8:16], v.Hi)
	return buf
}

// DecodeUint128 reverses EncodeUint128.
func DecodeUint128(buf []byte) Uint128 {
	return Uint128{
		Lo: binary.LittleEndian.Uint64(buf[0:8]),
		Hi: binary.LittleEndian.Uint64(buf[8:16]),
	}
}

// PushUint128 pushes a 128-bit value onto idx.
func (idx *Index) PushUint128(v Uint128) error {
	return idx.PushValue(EncodeUint128(v))
}

// QueryUint128 returns the ascending positions of every value pushed onto
// idx equal to probe.
func (idx *Index) QueryUint128(ctx context.Context, probe Uint128) ([]uint64, error) {
	return idx.Query(ctx, EncodeUint128(probe))
}

// Int128 is a 128-bit signed integer split into two 64-bit halves, using
// the same Hi:Lo two's-complement layout as Uint128. Equality queries
// only ever compare raw bit patterns, so the signed/unsigned distinction
// only matters to callers decoding the halves back into a value.
type Int128 struct {
	Hi int64
	Lo uint64
}

// EncodeInt128 returns v's little-endian byte representation: Lo's 8
// bytes followed by Hi's 8 bytes.
func EncodeInt128(v Int128) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], v.Lo)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(v.Hi))
	return buf
}

// DecodeInt128 reverses EncodeInt128.
func DecodeInt128(buf []byte) Int128 {
	return Int128{
		Lo: binary.LittleEndian.Uint64(buf[0:8]),
		Hi: int64(binary.LittleEndian.Uint64(buf[8:16])),
	}
}

// PushInt128 pushes a 128-bit signed value onto idx.
func (idx *Index) PushInt128(v Int128) error {
	return idx.PushValue(EncodeInt128(v))
}

// QueryInt128 returns the ascending positions of every value pushed onto
// idx equal to probe.
func (idx *Index) QueryInt128(ctx context.Context, probe Int128) ([]uint64, error) {
	return idx.Query(ctx, EncodeInt128(probe))
}

// CreateUint8, CreateUint16, CreateUint32, CreateUint64, and
// CreateUint128 are convenience wrappers around Create that set
// opts.Width for the caller.
func CreateUint8(opts Options) (*Index, error)  { opts.Width = 8; return Create(opts) }
func CreateUint16(opts Options) (*Index, error) { opts.Width = 16; return Create(opts) }
func CreateUint32(opts Options) (*Index, error) { opts.Width = 32; return Create(opts) }
func CreateUint64(opts Options) (*Index, error) { opts.Width = 64; return Create(opts) }
func CreateUint128(opts Options) (*Index, error) {
	opts.Width = 128
	return Create(opts)
}

// CreateInt8, CreateInt16, CreateInt32, CreateInt64, and CreateInt128 are
// the signed counterparts of CreateUint8/16/32/64/128. The underlying
// column storage is identical either way; Width only fixes how many
// bytes PushValue expects, not signedness.
func CreateInt8(opts Options) (*Index, error)  { opts.Width = 8; return Create(opts) }
func CreateInt16(opts Options) (*Index, error) { opts.Width = 16; return Create(opts) }
func CreateInt32(opts Options) (*Index, error) { opts.Width = 32; return Create(opts) }
func CreateInt64(opts Options) (*Index, error) { opts.Width = 64; return Create(opts) }
func CreateInt128(opts Options) (*Index, error) {
	opts.Width = 128
	return Create(opts)
}
