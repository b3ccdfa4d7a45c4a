// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ozbcdb/bitidx"
	"github.com/ozbcdb/bitidx/internal/vfs"
)

var inspectGroup int

var inspectCmd = &cobra.Command{
	Use:   "inspect <index>",
	Short: "print header info, chunk offsets, and a per-sub-value cardinality graph",
	Long:  ``,
	Args:  cobra.ExactArgs(1),
	Run:   runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectGroup, "group", 0, "which bit group's cardinalities to graph")
}

func runInspect(cmd *cobra.Command, args []string) {
	idx, err := bitidx.Open(bitidx.Options{FS: vfs.Default, Path: args[0]})
	if err != nil {
		log.Fatal(err)
	}
	defer idx.Close()

	fmt.Printf("width: %d\nchunk length: %d\nvalues pushed: %d\nchunks: %d\n",
		idx.Width(), idx.ChunkLen(), idx.Len(), idx.NumChunks())

	offsets := idx.ChunkOffsets()
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"chunk", "offset"})
	for i, off := range offsets {
		table.Append([]string{strconv.Itoa(i), strconv.FormatUint(off, 10)})
	}
	table.Render()

	counts, err := idx.GroupCardinalities(inspectGroup)
	if err != nil {
		log.Fatal(err)
	}
	data := make([]float64, len(counts))
	for i, c := range counts {
		data[i] = float64(c)
	}
	fmt.Println(asciigraph.Plot(data, asciigraph.Height(10), asciigraph.Caption(fmt.Sprintf("group %d cardinality by sub-value", inspectGroup))))
}
