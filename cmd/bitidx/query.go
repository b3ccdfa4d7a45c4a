// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ozbcdb/bitidx"
	"github.com/ozbcdb/bitidx/internal/vfs"
)

var queryConcurrency int

var queryCmd = &cobra.Command{
	Use:   "query <index> <value>",
	Short: "print the positions of every pushed value equal to <value>",
	Long:  ``,
	Args:  cobra.ExactArgs(2),
	Run:   runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryConcurrency, "concurrency", "c", 1, "number of chunks to scan concurrently")
}

func runQuery(cmd *cobra.Command, args []string) {
	idx, err := bitidx.Open(bitidx.Options{FS: vfs.Default, Path: args[0], QueryConcurrency: queryConcurrency})
	if err != nil {
		log.Fatal(err)
	}
	defer idx.Close()

	v, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		log.Fatal(err)
	}
	probe, err := probeByWidth(idx.Width(), v)
	if err != nil {
		log.Fatal(err)
	}

	positions, err := idx.Query(context.Background(), probe)
	if err != nil {
		log.Fatal(err)
	}
	for _, p := range positions {
		fmt.Println(p)
	}
}

func probeByWidth(width int, v uint64) ([]byte, error) {
	switch width {
	case 8:
		return bitidx.EncodeValue(uint8(v)), nil
	case 16:
		return bitidx.EncodeValue(uint16(v)), nil
	case 32:
		return bitidx.EncodeValue(uint32(v)), nil
	case 64:
		return bitidx.EncodeValue(v), nil
	case 128:
		return bitidx.EncodeUint128(bitidx.Uint128{Lo: v}), nil
	default:
		return nil, fmt.Errorf("unsupported width %d", width)
	}
}
