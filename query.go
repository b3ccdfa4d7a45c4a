// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bitidx

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ozbcdb/bitidx/internal/ozbc"
	"github.com/ozbcdb/bitidx/internal/slicer"
	"github.com/ozbcdb/bitidx/internal/subindex"
)

// chunkSource is the minimal surface the query scan needs from either a
// storage (file-backed) index or the in-memory sub-array slice, so the
// same scan logic serves both modes, the way sstable/reader_iter.go's
// iterator logic is blind to whether its blocks come from the block cache
// or a fresh read.
type chunkSource interface {
	numChunks() int
	chunkGroups(i int) ([]*subindex.Array, error)
}

// queryPlan is a probe value sliced into per-group sub-values, ordered so
// the AND in matchChunk starts with the group whose selected bitmap is
// expected to be cheapest to walk (spec.md §4.F).
type queryPlan struct {
	subvalues []uint32
	order     []int // group indices, ascending by group bit width
}

func planQuery(probe []byte, layout slicer.Layout) queryPlan {
	sub := slicer.Slice(probe, layout)
	order := make([]int, len(sub))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return layout.Groups[order[a]] < layout.Groups[order[b]] })
	return queryPlan{subvalues: sub, order: order}
}

// matchChunk ANDs together the bitmaps selected by plan's sub-values
// across one chunk's groups, in plan.order.
func matchChunk(groups []*subindex.Array, plan queryPlan) *ozbc.Bitmap {
	var acc *ozbc.Bitmap
	for _, g := range plan.order {
		bm := groups[g].Select(plan.subvalues[g])
		if acc == nil {
			acc = bm
			continue
		}
		acc = ozbc.And(acc, bm)
	}
	if acc == nil {
		return ozbc.New()
	}
	return acc
}

// scanRange walks chunks [first, last] of src, matching plan against each
// and collecting absolute positions (chunkIndex*chunkLen + relative
// position) in ascending order. When concurrency > 1, chunk loads and
// matches run concurrently via an errgroup, with results merged back in
// chunk order afterward — the same "decode out of order, emit in order"
// shape as a merging iterator.
func scanRange(ctx context.Context, src chunkSource, plan queryPlan, first, last int, chunkLen uint32, concurrency int) ([]uint64, error) {
	if first < 0 || last >= src.numChunks() || first > last {
		return nil, invalidRangef("chunk range [%d, %d] invalid for %d chunks", first, last, src.numChunks())
	}
	n := last - first + 1
	perChunk := make([][]uint64, n)

	if concurrency <= 1 {
		for i := 0; i < n; i++ {
			positions, err := scanOneChunk(src, plan, first+i, chunkLen)
			if err != nil {
				return nil, err
			}
			perChunk[i] = positions
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for i := 0; i < n; i++ {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				positions, err := scanOneChunk(src, plan, first+i, chunkLen)
				if err != nil {
					return err
				}
				perChunk[i] = positions
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	total := 0
	for _, p := range perChunk {
		total += len(p)
	}
	out := make([]uint64, 0, total)
	for _, p := range perChunk {
		out = append(out, p...)
	}
	return out, nil
}

func scanOneChunk(src chunkSource, plan queryPlan, chunkIdx int, chunkLen uint32) ([]uint64, error) {
	groups, err := src.chunkGroups(chunkIdx)
	if err != nil {
		return nil, err
	}
	matched := matchChunk(groups, plan)
	base := uint64(chunkIdx) * uint64(chunkLen)
	var positions []uint64
	for pos := range matched.IterSetPositions() {
		positions = append(positions, base+uint64(pos))
	}
	return positions, nil
}
