// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package slicer

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func le(width int, v uint64) []byte {
	buf := make([]byte, width/8)
	full := make([]byte, 8)
	binary.LittleEndian.PutUint64(full, v)
	copy(buf, full)
	return buf
}

func toUint64(buf []byte) uint64 {
	full := make([]byte, 8)
	copy(full, buf)
	return binary.LittleEndian.Uint64(full)
}

func TestDefaultLayout(t *testing.T) {
	require.Equal(t, []int{8}, DefaultLayout(8).Groups)
	require.Equal(t, []int{8, 8}, DefaultLayout(16).Groups)
	require.Equal(t, []int{8, 8, 8, 8}, DefaultLayout(32).Groups)
	require.Equal(t, 16, len(DefaultLayout(128).Groups))
}

func TestLayoutValidate(t *testing.T) {
	require.NoError(t, Layout{Width: 16, Groups: []int{8, 8}}.Validate())
	require.ErrorIs(t, Layout{Width: 16, Groups: []int{8, 4}}.Validate(), ErrInvalidLayout)
	require.ErrorIs(t, Layout{Width: 8, Groups: []int{0, 8}}.Validate(), ErrInvalidLayout)
}

func TestSliceS2Scenario(t *testing.T) {
	layout := Layout{Width: 16, Groups: []int{8, 8}}
	sub := Slice(le(16, 0x0101), layout)
	require.Equal(t, []uint32{0x01, 0x01}, sub)

	sub = Slice(le(16, 0x0100), layout)
	require.Equal(t, []uint32{0x00, 0x01}, sub)

	sub = Slice(le(16, 0x0001), layout)
	require.Equal(t, []uint32{0x01, 0x00}, sub)
}

func TestSliceReconstructIdentity(t *testing.T) {
	layout := DefaultLayout(32)
	for _, v := range []uint64{0, 1, 0xDEADBEEF, 0xFFFFFFFF, 0x12345678} {
		got := toUint64(Reconstruct(Slice(le(32, v), layout), layout))
		require.Equal(t, v, got)
	}
}

func TestSliceReconstructIdentityAllBytes8Bit(t *testing.T) {
	layout := DefaultLayout(8)
	for v := uint64(0); v < 256; v++ {
		got := toUint64(Reconstruct(Slice(le(8, v), layout), layout))
		require.Equal(t, v, got)
	}
}

func TestCustomLayoutNonUniformGroups(t *testing.T) {
	layout := Layout{Width: 8, Groups: []int{3, 5}}
	require.NoError(t, layout.Validate())
	for v := uint64(0); v < 256; v++ {
		got := toUint64(Reconstruct(Slice(le(8, v), layout), layout))
		require.Equal(t, v, got)
	}
}
