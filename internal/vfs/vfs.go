// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package vfs provides the storage backend abstraction bitidx opens its
// index files through. It is a trimmed-down adaptation of pebble's own vfs
// package: directory operations, hard links, and listing are dropped since
// a bitidx store is always exactly one file; what remains is enough to
// satisfy spec.md's storage_mode axis (in-memory vs. file-backed) with a
// single interface.
package vfs

import (
	"io"
	"os"
)

// File is a readable, writable, seekable sequence of bytes. Typically an
// *os.File, but MemFS substitutes a memory-backed implementation.
type File interface {
	io.Closer
	io.Reader
	io.ReaderAt
	io.Writer
	io.Seeker
	Truncate(size int64) error
	Stat() (os.FileInfo, error)
	Sync() error
}

// FS is a namespace for index files.
type FS interface {
	// Create creates the named file for reading and writing, truncating it
	// if it already exists.
	Create(name string) (File, error)

	// Open opens the named file for reading and writing. It must already
	// exist.
	Open(name string) (File, error)

	// Remove removes the named file. It is not an error if the file does
	// not exist.
	Remove(name string) error

	// Stat returns file metadata for the named file.
	Stat(name string) (os.FileInfo, error)

	// Lock acquires an advisory exclusive lock on the named file, creating
	// it if necessary. Close the returned io.Closer to release the lock.
	// Opening the same file for a second concurrent exclusive lock is the
	// scenario spec.md §5 leaves undefined; Lock is how an implementation
	// may choose to deny it instead.
	Lock(name string) (io.Closer, error)
}

// Default is the FS implementation backed by the operating system.
var Default FS = defaultFS{}
