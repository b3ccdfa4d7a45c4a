// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bitidx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ozbcdb/bitidx/internal/slicer"
	"github.com/ozbcdb/bitidx/internal/subindex"
)

func TestPlanQueryOrdersSmallestGroupFirst(t *testing.T) {
	layout := slicer.Layout{Width: 16, Groups: []int{3, 13}}
	plan := planQuery([]byte{0, 0}, layout)
	require.Equal(t, []int{0, 1}, plan.order)

	layout2 := slicer.Layout{Width: 16, Groups: []int{13, 3}}
	plan2 := planQuery([]byte{0, 0}, layout2)
	require.Equal(t, []int{1, 0}, plan2.order)
}

func TestMatchChunkIntersectsAcrossGroups(t *testing.T) {
	layout := slicer.DefaultLayout(16)
	groups := []*subindex.Array{subindex.New(8), subindex.New(8)}
	// value 0x0105 appears at positions 0 and 2; 0x0205 only at position 1.
	require.NoError(t, groups[0].Append(0x05, 0))
	require.NoError(t, groups[1].Append(0x01, 0))
	require.NoError(t, groups[0].Append(0x05, 1))
	require.NoError(t, groups[1].Append(0x02, 1))
	require.NoError(t, groups[0].Append(0x05, 2))
	require.NoError(t, groups[1].Append(0x01, 2))

	plan := planQuery([]byte{0x05, 0x01}, layout)
	matched := matchChunk(groups, plan)
	require.Equal(t, []uint32{0, 2}, collectIterPositions(matched))
}
