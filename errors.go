// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bitidx

import "github.com/cockroachdb/errors"

// The four error kinds spec.md §7 enumerates. Callers distinguish them with
// errors.Is, either the standard library's or cockroachdb/errors'; each
// sentinel is attached to a richer, context-specific error by withKind
// below, which marks it via errors.Mark the way error_handler.go marks
// pebble's own base errors.
var (
	// ErrInvariantViolation indicates the caller supplied data that broke a
	// documented precondition: a non-monotonic append position, or a
	// mismatched bit-group layout.
	ErrInvariantViolation = errors.New("bitidx: invariant violation")

	// ErrFormatError indicates on-disk bytes failed validation: bad magic,
	// unsupported version, a corrupt chunk, or a checksum mismatch.
	ErrFormatError = errors.New("bitidx: format error")

	// ErrStorageError indicates an underlying I/O failure. The triggering
	// cause is available via errors.Cause / errors.UnwrapOnce.
	ErrStorageError = errors.New("bitidx: storage error")

	// ErrInvalidRange indicates a query's [firstChunk, lastChunk] window is
	// out of bounds or inverted.
	ErrInvalidRange = errors.New("bitidx: invalid range")

	// errPoisoned is returned by PushValue, Flush, Query, and QueryRange on
	// an Index that has been poisoned by a prior flush failure (spec.md §7:
	// "the builder ... marks itself unusable for further appends until the
	// caller resolves the I/O condition").
	errPoisoned = withKind(errors.New("bitidx: index is unusable after a prior storage error; re-open to continue"), ErrStorageError)
)

// kindError attaches one of the sentinel kinds above to err. The wrapped
// error carries an errors.Mark for cockroachdb/errors' errors.Is, and the
// Is method lets the standard library's errors.Is match the kind too.
type kindError struct {
	cause error
	kind  error
}

func (e *kindError) Error() string        { return e.cause.Error() }
func (e *kindError) Unwrap() error        { return e.cause }
func (e *kindError) Is(target error) bool { return target == e.kind }

func withKind(err, kind error) error {
	return &kindError{cause: errors.Mark(err, kind), kind: kind}
}

func invariantViolationf(format string, args ...interface{}) error {
	return withKind(errors.Newf("bitidx: "+format, args...), ErrInvariantViolation)
}

func formatErrorf(format string, args ...interface{}) error {
	return withKind(errors.Newf("bitidx: "+format, args...), ErrFormatError)
}

func storageErrorf(cause error, format string, args ...interface{}) error {
	return withKind(errors.Wrapf(cause, "bitidx: "+format, args...), ErrStorageError)
}

func invalidRangef(format string, args ...interface{}) error {
	return withKind(errors.Newf("bitidx: "+format, args...), ErrInvalidRange)
}
