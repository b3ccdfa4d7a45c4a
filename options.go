// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bitidx

import (
	"github.com/ozbcdb/bitidx/internal/slicer"
	"github.com/ozbcdb/bitidx/internal/vfs"
	"github.com/ozbcdb/bitidx/metrics"
)

// CompressionKind selects the algorithm used to compress each flushed
// chunk's body, mirroring pebble's own block.Compression enum
// (sstable/block/compression.go) scaled down to no compression plus the
// two pure-Go codecs bitidx wires, snappy and zstd.
type CompressionKind uint8

const (
	NoCompression CompressionKind = iota
	SnappyCompression
	ZstdCompression
)

// Options configures a new or reopened Index. The zero value is invalid;
// call EnsureDefaults (Create and Open do this automatically).
type Options struct {
	// Width is the bit width W of the value type, one of 8, 16, 32, 64, 128.
	Width int

	// Layout is the bit-group layout; leave the zero value to get
	// slicer.DefaultLayout(Width).
	Layout slicer.Layout

	// ChunkLen is the fixed logical chunk length C, a power of two >= 128.
	// Create validates it in every mode, but in in-memory mode it is
	// otherwise unused: the whole index is one unflushed chunk.
	ChunkLen uint32

	// FS and Path select storage_mode. A nil FS means in-memory mode. A
	// non-nil FS with a non-empty Path means file-backed mode.
	FS   vfs.FS
	Path string

	// Compression selects the chunk-body compression codec. Defaults to
	// NoCompression, the correct choice for index columns whose bitmaps are
	// already sparse.
	Compression CompressionKind

	// FlushBytesPerSecond, when non-zero, paces chunk-flush writes through
	// a token bucket so a large flush cannot monopolize disk bandwidth.
	FlushBytesPerSecond int64

	// QueryConcurrency, when > 1, fans chunk loads for a Query out across
	// up to this many goroutines (spec.md §5 permits this as long as
	// results are merged back in chunk order).
	QueryConcurrency int

	// RecoverByScan, when true, lets Open recover a file whose footer was
	// never written (e.g. the process crashed before Flush/Close) by
	// rescanning chunks from the header instead of returning ErrFormatError.
	RecoverByScan bool

	// ChunkCacheBytes, when > 0, keeps up to this many bytes of decoded
	// sealed-chunk bodies in an LRU cache, so repeat queries against hot
	// chunks skip re-decompression and re-deserialization. 0 disables the
	// cache. Ignored in in-memory mode, where chunkGroups never decodes
	// anything to begin with.
	ChunkCacheBytes int64

	// Metrics, when non-nil, receives counters for every PushValue, Query,
	// and flush, plus latency samples for PushValue and Query. A nil
	// Metrics disables collection.
	Metrics *metrics.Metrics
}

// EnsureDefaults fills in zero-valued fields with spec.md §6's defaults and
// returns the (possibly modified) Options.
func (o Options) EnsureDefaults() Options {
	if o.Layout.Width == 0 {
		o.Layout = slicer.DefaultLayout(o.Width)
	}
	if o.ChunkLen == 0 {
		o.ChunkLen = defaultChunkLen
	}
	if o.QueryConcurrency == 0 {
		o.QueryConcurrency = 1
	}
	return o
}

const defaultChunkLen = 1 << 20

// chunkLenValid reports whether c satisfies ChunkLen's documented
// invariant: a power of two no smaller than 128.
func chunkLenValid(c uint32) bool {
	return c >= 128 && c&(c-1) == 0
}
