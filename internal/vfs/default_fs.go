// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package vfs

import (
	"io"
	"os"
)

type defaultFS struct{}

func (defaultFS) Create(name string) (File, error) {
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

func (defaultFS) Open(name string) (File, error) {
	return os.OpenFile(name, os.O_RDWR, 0666)
}

func (defaultFS) Remove(name string) error {
	err := os.Remove(name)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (defaultFS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

// Lock takes an advisory exclusive lock on name, creating it if necessary.
// The platform-specific locking primitive lives in lock_unix.go /
// lock_other.go, the same split pebble's own vfs uses for
// default_linux.go/default_unix.go.
func (defaultFS) Lock(name string) (io.Closer, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, err
	}
	return &fileLock{f: f}, nil
}

type fileLock struct{ f *os.File }

func (l *fileLock) Close() error {
	_ = unlockFile(l.f)
	return l.f.Close()
}
