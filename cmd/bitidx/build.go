// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ozbcdb/bitidx"
	"github.com/ozbcdb/bitidx/internal/vfs"
)

var (
	buildWidth       int
	buildChunkLen    uint32
	buildCompression string
)

var buildCmd = &cobra.Command{
	Use:   "build <input> <output>",
	Short: "build a bitmap index from a file of one decimal integer per line",
	Long:  ``,
	Args:  cobra.ExactArgs(2),
	Run:   runBuild,
}

func init() {
	buildCmd.Flags().IntVar(&buildWidth, "width", 32, "column bit width (8, 16, 32, 64, 128)")
	buildCmd.Flags().Uint32Var(&buildChunkLen, "chunk-len", 1<<20, "fixed chunk length")
	buildCmd.Flags().StringVar(&buildCompression, "compression", "none", "chunk compression: none, snappy, zstd")
}

func parseCompression(s string) (bitidx.CompressionKind, error) {
	switch s {
	case "none":
		return bitidx.NoCompression, nil
	case "snappy":
		return bitidx.SnappyCompression, nil
	case "zstd":
		return bitidx.ZstdCompression, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

func runBuild(cmd *cobra.Command, args []string) {
	in, err := os.Open(args[0])
	if err != nil {
		log.Fatal(err)
	}
	defer in.Close()

	compression, err := parseCompression(buildCompression)
	if err != nil {
		log.Fatal(err)
	}

	idx, err := bitidx.Create(bitidx.Options{
		Width:       buildWidth,
		ChunkLen:    buildChunkLen,
		Compression: compression,
		FS:          vfs.Default,
		Path:        args[1],
	})
	if err != nil {
		log.Fatal(err)
	}

	scanner := bufio.NewScanner(in)
	n := 0
	for scanner.Scan() {
		v, err := strconv.ParseUint(scanner.Text(), 10, 64)
		if err != nil {
			log.Fatalf("line %d: %v", n+1, err)
		}
		if err := pushByWidth(idx, buildWidth, v); err != nil {
			log.Fatal(err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		log.Fatal(err)
	}
	if err := idx.Flush(); err != nil {
		log.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("pushed %d values into %s\n", n, args[1])
}

func pushByWidth(idx *bitidx.Index, width int, v uint64) error {
	switch width {
	case 8:
		return bitidx.Push(idx, uint8(v))
	case 16:
		return bitidx.Push(idx, uint16(v))
	case 32:
		return bitidx.Push(idx, uint32(v))
	case 64:
		return bitidx.Push(idx, v)
	case 128:
		return idx.PushUint128(bitidx.Uint128{Lo: v})
	default:
		return fmt.Errorf("unsupported width %d", width)
	}
}
