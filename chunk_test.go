// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bitidx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ozbcdb/bitidx/internal/ozbc"
	"github.com/ozbcdb/bitidx/internal/subindex"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := header{
		magic:       fileMagic,
		version:     formatVersion,
		width:       32,
		numGroups:   4,
		chunkLen:    1 << 20,
		compression: SnappyCompression,
		groupBits:   []uint8{8, 8, 8, 8},
	}
	buf := encodeHeader(h)
	got, err := decodeHeader(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, h, got)
	require.Equal(t, len(buf), h.byteLen())
}

func TestDecodeHeaderRejectsBadMagic(t *testing.T) {
	h := header{magic: [8]byte{'X'}, version: formatVersion, groupBits: []uint8{8}}
	buf := encodeHeader(h)
	_, err := decodeHeader(bytes.NewReader(buf))
	require.ErrorIs(t, err, ErrFormatError)
}

func TestDecodeHeaderRejectsBadVersion(t *testing.T) {
	h := header{magic: fileMagic, version: 99, groupBits: []uint8{8}}
	buf := encodeHeader(h)
	_, err := decodeHeader(bytes.NewReader(buf))
	require.ErrorIs(t, err, ErrFormatError)
}

func TestChunkPrefixRoundTrip(t *testing.T) {
	p := chunkPrefix{bodyLen: 12345, logicalLen: 1 << 19}
	got := decodeChunkPrefix(encodeChunkPrefix(p))
	require.Equal(t, p, got)
}

func TestEncodeDecodeChunkBodyNoCompression(t *testing.T) {
	groups := []*subindex.Array{subindex.New(8), subindex.New(8)}
	require.NoError(t, groups[0].Append(5, 0))
	require.NoError(t, groups[1].Append(9, 0))

	body, err := encodeChunkBody(groups, NoCompression)
	require.NoError(t, err)
	decoded, err := decodeChunkBody(body, NoCompression, []uint8{8, 8})
	require.NoError(t, err)
	require.Equal(t, []uint32{0}, collectIterPositions(decoded[0].Select(5)))
	require.Equal(t, []uint32{0}, collectIterPositions(decoded[1].Select(9)))
}

func TestEncodeDecodeChunkBodySnappy(t *testing.T) {
	groups := []*subindex.Array{subindex.New(8)}
	require.NoError(t, groups[0].Append(1, 0))
	require.NoError(t, groups[0].Append(1, 200))

	body, err := encodeChunkBody(groups, SnappyCompression)
	require.NoError(t, err)
	decoded, err := decodeChunkBody(body, SnappyCompression, []uint8{8})
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 200}, collectIterPositions(decoded[0].Select(1)))
}

func TestEncodeDecodeChunkBodyZstd(t *testing.T) {
	groups := []*subindex.Array{subindex.New(8)}
	require.NoError(t, groups[0].Append(7, 3))

	body, err := encodeChunkBody(groups, ZstdCompression)
	require.NoError(t, err)
	decoded, err := decodeChunkBody(body, ZstdCompression, []uint8{8})
	require.NoError(t, err)
	require.Equal(t, []uint32{3}, collectIterPositions(decoded[0].Select(7)))
}

func TestChecksumDetectsCorruption(t *testing.T) {
	a := checksum([]byte("hello"))
	b := checksum([]byte("hellp"))
	require.NotEqual(t, a, b)
}

func collectIterPositions(bm *ozbc.Bitmap) []uint32 {
	var out []uint32
	for pos := range bm.IterSetPositions() {
		out = append(out, pos)
	}
	return out
}
