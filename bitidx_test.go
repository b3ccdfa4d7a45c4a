// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bitidx

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ozbcdb/bitidx/internal/vfs"
	"github.com/ozbcdb/bitidx/metrics"
)

func TestInMemoryPushAndQuery(t *testing.T) {
	idx, err := Create(Options{Width: 8})
	require.NoError(t, err)

	values := []byte{5, 9, 5, 2, 9, 9}
	for _, v := range values {
		require.NoError(t, Push(idx, v))
	}
	require.EqualValues(t, len(values), idx.Len())

	positions, err := QueryEqual(context.Background(), idx, byte(9))
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 4, 5}, positions)

	positions, err = QueryEqual(context.Background(), idx, byte(7))
	require.NoError(t, err)
	require.Empty(t, positions)
}

func TestStorageModePushAcrossChunkBoundary(t *testing.T) {
	fs := vfs.NewMem()
	idx, err := Create(Options{Width: 16, ChunkLen: 128, FS: fs, Path: "/col"})
	require.NoError(t, err)

	// 130 pushes: chunk 0 gets the first 128, chunk 1 gets the last two and
	// stays in-progress (unflushed).
	values := make([]uint16, 130)
	for i := range values {
		values[i] = 20
	}
	values[0], values[2], values[128] = 10, 10, 10
	for _, v := range values {
		require.NoError(t, Push(idx, v))
	}
	require.EqualValues(t, 130, idx.Len())

	positions, err := QueryEqual(context.Background(), idx, uint16(10))
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 2, 128}, positions)

	require.NoError(t, idx.Flush())
	require.NoError(t, idx.Close())
}

func TestStorageModeReopenAndContinue(t *testing.T) {
	fs := vfs.NewMem()
	idx, err := Create(Options{Width: 8, ChunkLen: 128, FS: fs, Path: "/col"})
	require.NoError(t, err)
	for _, v := range []byte{1, 2, 1} {
		require.NoError(t, Push(idx, v))
	}
	require.NoError(t, idx.Flush())
	require.NoError(t, idx.Close())

	reopened, err := Open(Options{FS: fs, Path: "/col"})
	require.NoError(t, err)
	require.EqualValues(t, 3, reopened.Len())

	require.NoError(t, Push(reopened, byte(1)))
	require.EqualValues(t, 4, reopened.Len())

	positions, err := QueryEqual(context.Background(), reopened, byte(1))
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 2, 3}, positions)
	require.NoError(t, reopened.Flush())
	require.NoError(t, reopened.Close())
}

func TestPushValueRejectsMismatchedLayout(t *testing.T) {
	idx, err := Create(Options{Width: 16})
	require.NoError(t, err)
	err = idx.PushValue([]byte{1})
	require.ErrorIs(t, err, ErrInvariantViolation)
}

func TestQueryConcurrentMatchesSequential(t *testing.T) {
	fs := vfs.NewMem()
	idx, err := Create(Options{Width: 8, ChunkLen: 128, FS: fs, Path: "/col", QueryConcurrency: 4})
	require.NoError(t, err)
	for i := 0; i < 400; i++ {
		require.NoError(t, Push(idx, byte(i%5)))
	}
	require.NoError(t, idx.Flush())

	positions, err := QueryEqual(context.Background(), idx, byte(3))
	require.NoError(t, err)
	require.Len(t, positions, 80)
	for i, p := range positions {
		require.EqualValues(t, 3+5*i, p)
	}
}

func TestQueryRangeRejectsInvalidWindow(t *testing.T) {
	idx, err := Create(Options{Width: 8})
	require.NoError(t, err)
	require.NoError(t, Push(idx, byte(1)))
	_, err = idx.QueryRange(context.Background(), []byte{1}, 2, 1)
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestPoisonedIndexRejectsFurtherOperations(t *testing.T) {
	idx, err := Create(Options{Width: 8})
	require.NoError(t, err)
	idx.poisoned = true
	require.ErrorIs(t, idx.PushValue([]byte{1}), ErrStorageError)
	_, err = idx.Query(context.Background(), []byte{1})
	require.ErrorIs(t, err, ErrStorageError)
}

func TestCreateRejectsInvalidChunkLen(t *testing.T) {
	_, err := Create(Options{Width: 8, ChunkLen: 100})
	require.ErrorIs(t, err, ErrInvariantViolation)

	_, err = Create(Options{Width: 8, ChunkLen: 129})
	require.ErrorIs(t, err, ErrInvariantViolation)
}

func TestPushValuesStopsAtFirstError(t *testing.T) {
	idx, err := Create(Options{Width: 8})
	require.NoError(t, err)
	err = idx.PushValues([][]byte{{1}, {2}, {1, 2}, {3}})
	require.ErrorIs(t, err, ErrInvariantViolation)
	require.EqualValues(t, 2, idx.Len())
}

func TestPushAllGeneric(t *testing.T) {
	idx, err := Create(Options{Width: 16})
	require.NoError(t, err)
	require.NoError(t, PushAll(idx, []uint16{10, 20, 10}))

	positions, err := QueryEqual(context.Background(), idx, uint16(10))
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 2}, positions)
}

func TestMemoryBytesGrowsWithPushes(t *testing.T) {
	idx, err := Create(Options{Width: 8})
	require.NoError(t, err)
	before := idx.MemoryBytes()
	require.NoError(t, Push(idx, byte(1)))
	require.NoError(t, Push(idx, byte(200)))
	require.Greater(t, idx.MemoryBytes(), before)
}

func TestQueryValueRangeFiltersAcrossChunks(t *testing.T) {
	fs := vfs.NewMem()
	idx, err := Create(Options{Width: 8, ChunkLen: 128, FS: fs, Path: "/col"})
	require.NoError(t, err)
	for i := 0; i < 260; i++ {
		require.NoError(t, Push(idx, byte(7)))
	}
	require.NoError(t, idx.Flush())

	positions, err := idx.QueryValueRange(context.Background(), []byte{7}, 126, 130)
	require.NoError(t, err)
	require.Equal(t, []uint64{126, 127, 128, 129, 130}, positions)

	_, err = idx.QueryValueRange(context.Background(), []byte{7}, 130, 126)
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestQueryFileOneShot(t *testing.T) {
	fs := vfs.NewMem()
	idx, err := Create(Options{Width: 8, ChunkLen: 128, FS: fs, Path: "/col"})
	require.NoError(t, err)
	for _, v := range []byte{1, 2, 1, 1} {
		require.NoError(t, Push(idx, v))
	}
	require.NoError(t, idx.Flush())
	require.NoError(t, idx.Close())

	positions, err := QueryFile(context.Background(), fs, "/col", []byte{1}, 0, 3)
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 2, 3}, positions)
}

func TestInt128RoundTrip(t *testing.T) {
	idx, err := CreateInt128(Options{})
	require.NoError(t, err)
	require.NoError(t, idx.PushInt128(Int128{Hi: -1, Lo: 2}))
	require.NoError(t, idx.PushInt128(Int128{Hi: 0, Lo: 9}))
	require.NoError(t, idx.PushInt128(Int128{Hi: -1, Lo: 2}))

	positions, err := idx.QueryInt128(context.Background(), Int128{Hi: -1, Lo: 2})
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 2}, positions)
}

func TestMetricsRecordPushAndQueryLatency(t *testing.T) {
	m := metrics.New()
	idx, err := Create(Options{Width: 8, Metrics: m})
	require.NoError(t, err)
	require.NoError(t, Push(idx, byte(1)))
	require.NoError(t, Push(idx, byte(2)))
	_, err = idx.Query(context.Background(), []byte{1})
	require.NoError(t, err)

	require.GreaterOrEqual(t, m.PushValueLatencyPercentile(50), int64(0))
	require.GreaterOrEqual(t, m.QueryLatencyPercentile(50), int64(0))
}

func TestMetricsRecordStorageErrorOnPoisonedIndex(t *testing.T) {
	m := metrics.New()
	idx, err := Create(Options{Width: 8, Metrics: m})
	require.NoError(t, err)
	idx.poisoned = true

	require.ErrorIs(t, idx.PushValue([]byte{1}), ErrStorageError)
	_, err = idx.Query(context.Background(), []byte{1})
	require.ErrorIs(t, err, ErrStorageError)
	require.EqualValues(t, 2, testutil.ToFloat64(m.StorageErrorsTotal))
}

func TestUint128RoundTrip(t *testing.T) {
	idx, err := CreateUint128(Options{})
	require.NoError(t, err)
	require.NoError(t, idx.PushUint128(Uint128{Hi: 1, Lo: 2}))
	require.NoError(t, idx.PushUint128(Uint128{Hi: 0, Lo: 9}))
	require.NoError(t, idx.PushUint128(Uint128{Hi: 1, Lo: 2}))

	positions, err := idx.QueryUint128(context.Background(), Uint128{Hi: 1, Lo: 2})
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 2}, positions)
}
