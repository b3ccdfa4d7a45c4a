// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package bitidx implements a serializable bitmap index for equality
// queries over fixed-width integer columns. A column value is split into
// bit groups; each group gets its own array of per-sub-value bitmaps
// (internal/subindex), and an equality probe is answered by ANDing the
// groups' selected bitmaps together (query.go). Values accumulate into
// fixed-length chunks that flush to storage independently, the way
// sstable flushes memtables into self-contained files.
package bitidx

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ozbcdb/bitidx/internal/ratelimit"
	"github.com/ozbcdb/bitidx/internal/slicer"
	"github.com/ozbcdb/bitidx/internal/subindex"
	"github.com/ozbcdb/bitidx/internal/vfs"
	"github.com/ozbcdb/bitidx/metrics"
)

// recordErrorMetric increments the error counter matching err's kind. It
// is a no-op for nil err or a nil Metrics.
func recordErrorMetric(m *metrics.Metrics, err error) {
	if m == nil || err == nil {
		return
	}
	switch {
	case errors.Is(err, ErrFormatError):
		m.FormatErrorsTotal.Inc()
	case errors.Is(err, ErrStorageError):
		m.StorageErrorsTotal.Inc()
	}
}

// Index is a bitmap index over one fixed-width integer column. The zero
// value is not ready for use; construct one with Create or Open.
type Index struct {
	opts Options

	groups      []*subindex.Array // the in-progress (unflushed) chunk
	n           uint64            // total values pushed, across all chunks
	curChunkLen uint64            // values pushed into the current in-progress chunk

	storage  *storage // nil in in-memory mode
	poisoned bool
}

// Create initializes a new Index. If opts.FS and opts.Path are set, the
// index is file-backed (storage_mode); otherwise it is held entirely in
// memory with no chunking.
func Create(opts Options) (*Index, error) {
	opts = opts.EnsureDefaults()
	if !chunkLenValid(opts.ChunkLen) {
		return nil, invariantViolationf("ChunkLen %d must be a power of two >= 128", opts.ChunkLen)
	}
	if err := opts.Layout.Validate(); err != nil {
		return nil, invariantViolationf("%v", err)
	}
	idx := &Index{opts: opts}
	idx.resetGroups()

	if opts.FS != nil && opts.Path != "" {
		hdr := header{
			magic:       fileMagic,
			version:     formatVersion,
			width:       uint16(opts.Width),
			numGroups:   uint16(len(opts.Layout.Groups)),
			chunkLen:    opts.ChunkLen,
			compression: opts.Compression,
			groupBits:   groupBitsOf(opts.Layout),
		}
		st, err := createStorage(opts.FS, opts.Path, hdr, opts.FlushBytesPerSecond, opts.ChunkCacheBytes)
		if err != nil {
			return nil, err
		}
		idx.storage = st
	}
	return idx, nil
}

// Open reopens a previously created file-backed Index. opts.Width,
// opts.Layout, opts.ChunkLen, and opts.Compression are read back from the
// file's header and override any values the caller set; opts.FS and
// opts.Path must still be supplied.
func Open(opts Options) (*Index, error) {
	if opts.FS == nil || opts.Path == "" {
		return nil, invariantViolationf("Open requires a non-nil FS and a non-empty Path")
	}
	st, err := openStorage(opts.FS, opts.Path, opts.RecoverByScan, opts.ChunkCacheBytes)
	if err != nil {
		return nil, err
	}
	opts.Width = int(st.hdr.width)
	opts.Layout = slicer.Layout{Width: int(st.hdr.width), Groups: groupsFromBits(st.hdr.groupBits)}
	opts.ChunkLen = st.hdr.chunkLen
	opts.Compression = st.hdr.compression
	opts = opts.EnsureDefaults()
	if !chunkLenValid(opts.ChunkLen) {
		return nil, formatErrorf("chunk length %d in file header is not a power of two >= 128", opts.ChunkLen)
	}
	st.limiter = ratelimit.NewLimiter(float64(opts.FlushBytesPerSecond), float64(opts.ChunkLen)*2)

	idx := &Index{opts: opts, storage: st}
	idx.resetGroups()

	var total uint64
	for i := 0; i < st.numChunks(); i++ {
		l, err := st.chunkLogicalLen(i)
		if err != nil {
			return nil, err
		}
		total += uint64(l)
	}
	idx.n = total
	return idx, nil
}

func groupBitsOf(layout slicer.Layout) []uint8 {
	out := make([]uint8, len(layout.Groups))
	for i, b := range layout.Groups {
		out[i] = uint8(b)
	}
	return out
}

func groupsFromBits(bits []uint8) []int {
	out := make([]int, len(bits))
	for i, b := range bits {
		out[i] = int(b)
	}
	return out
}

func (idx *Index) resetGroups() {
	idx.groups = make([]*subindex.Array, len(idx.opts.Layout.Groups))
	for g, bits := range idx.opts.Layout.Groups {
		idx.groups[g] = subindex.New(bits)
	}
	idx.curChunkLen = 0
}

// Len reports the total number of values pushed so far, across all
// chunks.
func (idx *Index) Len() uint64 { return idx.n }

// MemoryBytes returns the estimated serialized size, in bytes, of the
// current in-progress (unflushed) chunk's sub-index arrays. It does not
// account for chunks already durably flushed to storage.
func (idx *Index) MemoryBytes() int {
	n := 0
	for _, g := range idx.groups {
		n += g.EncodedSize()
	}
	return n
}

// PushValue appends one column value, given as its little-endian byte
// representation (see CreateUint8/CreateUint16/... in widths.go for
// typed convenience wrappers). It must be called with values whose
// positions are implicitly 0, 1, 2, ... in push order; there is no way to
// overwrite or delete a previously pushed value.
func (idx *Index) PushValue(value []byte) (err error) {
	start := time.Now()
	defer func() {
		if idx.opts.Metrics == nil {
			return
		}
		if err == nil {
			idx.opts.Metrics.RecordPushValue(time.Since(start).Nanoseconds())
		} else {
			recordErrorMetric(idx.opts.Metrics, err)
		}
	}()

	if idx.poisoned {
		return errPoisoned
	}
	wantLen := (idx.opts.Layout.Width + 7) / 8
	if len(value) != wantLen {
		return invariantViolationf("value is %d bytes, want %d for a %d-bit column", len(value), wantLen, idx.opts.Layout.Width)
	}
	sub := slicer.Slice(value, idx.opts.Layout)

	var pos uint64
	if idx.storage != nil {
		pos = idx.curChunkLen
	} else {
		pos = idx.n
	}
	for g, sv := range sub {
		if appendErr := idx.groups[g].Append(sv, pos); appendErr != nil {
			return invariantViolationf("pushing value at position %d: %v", idx.n, appendErr)
		}
	}
	idx.n++
	if idx.opts.Metrics != nil {
		idx.opts.Metrics.InsertsTotal.Inc()
	}

	if idx.storage == nil {
		return nil
	}
	idx.curChunkLen++
	if idx.curChunkLen == uint64(idx.opts.ChunkLen) {
		if flushErr := idx.flushChunk(uint32(idx.opts.ChunkLen)); flushErr != nil {
			idx.poisoned = true
			return flushErr
		}
	}
	return nil
}

// PushValues appends multiple column values in order, stopping at and
// returning the first error (matching PushValue's own no-partial-retry
// contract: positions already assigned before the failing value stay
// assigned).
func (idx *Index) PushValues(values [][]byte) error {
	for _, v := range values {
		if err := idx.PushValue(v); err != nil {
			return err
		}
	}
	return nil
}

func (idx *Index) flushChunk(logicalLen uint32) error {
	if err := idx.storage.appendChunk(idx.groups, logicalLen); err != nil {
		return err
	}
	if idx.opts.Metrics != nil {
		idx.opts.Metrics.ChunksFlushedTotal.Inc()
	}
	idx.resetGroups()
	return nil
}

// Flush forces the current in-progress chunk (if non-empty) to storage
// and (re)writes the footer, so the file is independently openable
// without RecoverByScan even if the process exits immediately afterward.
// It is a no-op in in-memory mode.
func (idx *Index) Flush() (err error) {
	defer func() { recordErrorMetric(idx.opts.Metrics, err) }()

	if idx.poisoned {
		return errPoisoned
	}
	if idx.storage == nil {
		return nil
	}
	if idx.curChunkLen > 0 {
		if flushErr := idx.flushChunk(uint32(idx.curChunkLen)); flushErr != nil {
			idx.poisoned = true
			return flushErr
		}
	}
	if footerErr := idx.storage.writeFooter(); footerErr != nil {
		idx.poisoned = true
		return footerErr
	}
	return nil
}

// Close releases the Index's underlying file handle and advisory lock, if
// any. It does not implicitly Flush; call Flush first if durability is
// required.
func (idx *Index) Close() error {
	if idx.storage == nil {
		return nil
	}
	return idx.storage.close()
}

func (idx *Index) numChunks() int {
	if idx.storage == nil {
		if idx.n == 0 {
			return 0
		}
		return 1
	}
	n := idx.storage.numChunks()
	if idx.curChunkLen > 0 {
		n++
	}
	return n
}

func (idx *Index) chunkGroups(i int) ([]*subindex.Array, error) {
	if idx.storage == nil {
		if i != 0 {
			return nil, invalidRangef("chunk index %d out of range [0, 1)", i)
		}
		return idx.groups, nil
	}
	if i < idx.storage.numChunks() {
		groups, _, err := idx.storage.readChunk(i)
		return groups, err
	}
	if i == idx.storage.numChunks() && idx.curChunkLen > 0 {
		return idx.groups, nil
	}
	return nil, invalidRangef("chunk index %d out of range [0, %d)", i, idx.numChunks())
}

// Query returns, in ascending order, the positions of every pushed value
// equal to probe (probe's little-endian byte representation, same layout
// as PushValue's argument). It scans every chunk; see QueryRange to
// restrict the scan to a sub-range of chunks.
func (idx *Index) Query(ctx context.Context, probe []byte) ([]uint64, error) {
	n := idx.numChunks()
	if n == 0 && !idx.poisoned {
		return nil, nil
	}
	return idx.QueryRange(ctx, probe, 0, n-1)
}

// QueryRange is like Query but restricts the scan to chunks
// [firstChunk, lastChunk] inclusive, returning ErrInvalidRange if the
// window is out of bounds or inverted.
func (idx *Index) QueryRange(ctx context.Context, probe []byte, firstChunk, lastChunk int) (positions []uint64, err error) {
	start := time.Now()
	defer func() {
		if idx.opts.Metrics == nil {
			return
		}
		if err == nil {
			idx.opts.Metrics.RecordQuery(time.Since(start).Nanoseconds())
		} else {
			recordErrorMetric(idx.opts.Metrics, err)
		}
	}()

	if idx.poisoned {
		return nil, errPoisoned
	}
	plan := planQuery(probe, idx.opts.Layout)
	positions, err = scanRange(ctx, idx, plan, firstChunk, lastChunk, idx.opts.ChunkLen, idx.opts.QueryConcurrency)
	if err != nil {
		return nil, err
	}
	if idx.opts.Metrics != nil {
		idx.opts.Metrics.QueriesTotal.Inc()
	}
	return positions, nil
}

// QueryValueRange is like Query but restricts matches to the value
// position window [startPos, endPos] inclusive, filtering within and
// across chunk boundaries rather than by whole chunks the way QueryRange
// does.
func (idx *Index) QueryValueRange(ctx context.Context, probe []byte, startPos, endPos uint64) ([]uint64, error) {
	if startPos > endPos {
		return nil, invalidRangef("start position %d is after end position %d", startPos, endPos)
	}
	n := idx.numChunks()
	if n == 0 {
		return nil, nil
	}
	firstChunk, lastChunk := 0, n-1
	if idx.storage != nil {
		chunkLen := uint64(idx.opts.ChunkLen)
		firstChunk = int(startPos / chunkLen)
		if firstChunk >= n {
			return nil, nil
		}
		if l := int(endPos / chunkLen); l < lastChunk {
			lastChunk = l
		}
	}
	positions, err := idx.QueryRange(ctx, probe, firstChunk, lastChunk)
	if err != nil {
		return nil, err
	}
	out := positions[:0:0]
	for _, p := range positions {
		if p >= startPos && p <= endPos {
			out = append(out, p)
		}
	}
	return out, nil
}

// QueryFile opens the file-backed index at path, runs one
// QueryValueRange, and closes it again. It is a one-shot convenience for
// callers that only need a single answer and would otherwise Open,
// Query, and Close by hand.
func QueryFile(ctx context.Context, fs vfs.FS, path string, probe []byte, startPos, endPos uint64) (_ []uint64, err error) {
	idx, err := Open(Options{FS: fs, Path: path})
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := idx.Close(); err == nil {
			err = closeErr
		}
	}()
	return idx.QueryValueRange(ctx, probe, startPos, endPos)
}

var _ chunkSource = (*Index)(nil)

// Width returns the bit width of the column this Index indexes.
func (idx *Index) Width() int { return idx.opts.Width }

// ChunkLen returns the fixed logical chunk length C.
func (idx *Index) ChunkLen() uint32 { return idx.opts.ChunkLen }

// NumChunks returns the number of chunks currently visible to a scan,
// including any non-empty in-progress (unflushed) trailing chunk.
func (idx *Index) NumChunks() int { return idx.numChunks() }

// ChunkOffsets returns the byte offset of every chunk that has been
// durably flushed to storage. It is empty in in-memory mode or before
// the first flush.
func (idx *Index) ChunkOffsets() []uint64 {
	if idx.storage == nil {
		return nil
	}
	out := make([]uint64, len(idx.storage.offsets))
	copy(out, idx.storage.offsets)
	return out
}

// GroupCardinalities returns, for the given bit-group index, the number
// of pushed values whose sub-value in that group equals each of
// [0, 2^groupBits), aggregated across every chunk (flushed and
// in-progress).
func (idx *Index) GroupCardinalities(group int) ([]int, error) {
	if group < 0 || group >= len(idx.opts.Layout.Groups) {
		return nil, invalidRangef("group index %d out of range [0, %d)", group, len(idx.opts.Layout.Groups))
	}
	counts := make([]int, 1<<uint(idx.opts.Layout.Groups[group]))
	for i := 0; i < idx.numChunks(); i++ {
		groups, err := idx.chunkGroups(i)
		if err != nil {
			return nil, err
		}
		for s := range counts {
			for range groups[group].Select(uint32(s)).IterSetPositions() {
				counts[s]++
			}
		}
	}
	return counts, nil
}
