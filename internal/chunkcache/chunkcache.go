// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package chunkcache caches decoded chunk bodies so repeated queries against
// hot chunks skip re-decompression and re-deserialization. It is an LRU list
// keyed by chunk index, adapted from pebble's cache.BlockCache (cache.go):
// the same doubly-linked entry list and size-bounded eviction, generalized
// from a []byte block payload to a decoded []*subindex.Array chunk body.
package chunkcache

import (
	"sync"

	"github.com/ozbcdb/bitidx/internal/subindex"
)

type entry struct {
	chunk      int
	groups     []*subindex.Array
	size       int64
	next, prev *entry
}

type entryList struct {
	root entry
}

func (l *entryList) init() {
	l.root.next = &l.root
	l.root.prev = &l.root
}

func (l *entryList) empty() bool {
	return l.root.next == &l.root
}

func (l *entryList) back() *entry {
	return l.root.prev
}

func (l *entryList) insertAfter(e, at *entry) {
	n := at.next
	at.next = e
	e.prev = at
	e.next = n
	n.prev = e
}

func (l *entryList) remove(e *entry) *entry {
	if e == &l.root {
		panic("cannot remove root list node")
	}
	e.prev.next = e.next
	e.next.prev = e.prev
	e.next = nil
	e.prev = nil
	return e
}

func (l *entryList) pushFront(e *entry) {
	l.insertAfter(e, &l.root)
}

func (l *entryList) moveToFront(e *entry) {
	if l.root.next == e {
		return
	}
	l.insertAfter(l.remove(e), &l.root)
}

// Cache is a size-bounded LRU cache of decoded chunk bodies. The zero value
// is not ready for use; call New. A nil *Cache is valid and
// behaves as disabled, mirroring BlockCache's nil-receiver Get/Insert.
type Cache struct {
	maxSize int64

	mu   sync.Mutex
	m    map[int]*entry
	size int64
	lru  entryList
}

// New returns a Cache that evicts entries once their combined size exceeds
// maxSize bytes. A maxSize <= 0 disables caching.
func New(maxSize int64) *Cache {
	if maxSize <= 0 {
		return nil
	}
	c := &Cache{
		maxSize: maxSize,
		m:       make(map[int]*entry),
	}
	c.lru.init()
	return c
}

// Get returns the cached groups for chunk, if present.
func (c *Cache) Get(chunk int) ([]*subindex.Array, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if e := c.m[chunk]; e != nil {
		c.lru.moveToFront(e)
		return e.groups, true
	}
	return nil, false
}

// Insert adds groups for chunk to the cache, sized at size bytes, evicting
// the least recently used entries as needed to stay within maxSize.
func (c *Cache) Insert(chunk int, groups []*subindex.Array, size int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if e := c.m[chunk]; e != nil {
		return
	}
	e := &entry{chunk: chunk, groups: groups, size: size}
	c.m[chunk] = e
	c.lru.pushFront(e)
	c.size += size
	c.evict()
}

func (c *Cache) evict() {
	for c.size > c.maxSize && !c.lru.empty() {
		e := c.lru.back()
		c.lru.remove(e)
		delete(c.m, e.chunk)
		c.size -= e.size
	}
}
