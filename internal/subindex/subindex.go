// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package subindex implements the per-group sub-index array: the 2^B
// bitmaps associated with one bit-group of a sliced value, addressed by
// sub-value. It mirrors the lazily-materialized, slot-per-possible-value
// shape of sstable/colblk/presence_bitmap.go's PresenceWithDefault, but
// indexes OZBC bitmaps instead of column values.
package subindex

import (
	"io"

	"github.com/ozbcdb/bitidx/internal/ozbc"
)

// Array holds one ozbc.Bitmap per possible sub-value in [0, 2^bits). Slots
// are allocated lazily: a slot that has never been appended to is nil and
// behaves as an empty bitmap.
type Array struct {
	bits  int
	slots []*ozbc.Bitmap
}

// New allocates an Array for a group of the given bit width.
func New(bits int) *Array {
	return &Array{bits: bits, slots: make([]*ozbc.Bitmap, 1<<uint(bits))}
}

// Bits returns the sub-value width this array was constructed with.
func (a *Array) Bits() int { return a.bits }

// Len returns the number of addressable slots, 2^bits.
func (a *Array) Len() int { return len(a.slots) }

// Append appends a set bit at pos to the bitmap selected by sub-value s.
func (a *Array) Append(s uint32, pos uint64) error {
	slot := a.slots[s]
	if slot == nil {
		slot = ozbc.New()
		a.slots[s] = slot
	}
	return slot.Append(pos)
}

// Select returns the bitmap for sub-value s. It is never nil: an
// unmaterialized slot lazily becomes an empty bitmap so callers can always
// iterate or AND the result.
func (a *Array) Select(s uint32) *ozbc.Bitmap {
	if a.slots[s] == nil {
		a.slots[s] = ozbc.New()
	}
	return a.slots[s]
}

// Reset clears every slot back to empty, for reuse across chunk boundaries.
func (a *Array) Reset() {
	for i := range a.slots {
		a.slots[i] = nil
	}
}

// Serialize writes the array's 2^bits bitmaps, in sub-value order, each
// length-prefixed by ozbc.Bitmap.Serialize.
func (a *Array) Serialize(w io.Writer) error {
	for _, slot := range a.slots {
		if slot == nil {
			slot = ozbc.New()
		}
		if err := slot.Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize reads an Array previously written by Serialize, for a group
// of the given bit width.
func Deserialize(r io.Reader, bits int) (*Array, error) {
	a := New(bits)
	for i := range a.slots {
		bm, err := ozbc.Deserialize(r)
		if err != nil {
			return nil, err
		}
		a.slots[i] = bm
	}
	return a, nil
}

// EncodedSize returns the total serialized size in bytes across all slots.
func (a *Array) EncodedSize() int {
	n := 0
	for _, slot := range a.slots {
		if slot == nil {
			n += 4 // empty bitmap's length prefix
			continue
		}
		n += slot.EncodedSize()
	}
	return n
}
