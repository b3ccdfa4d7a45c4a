// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package ratelimit paces chunk flushes against a byte-per-second budget.
package ratelimit

import (
	"sync"
	"time"

	"github.com/cockroachdb/tokenbucket"
)

// Limiter throttles flush writes to at most r bytes/second, with bursts of
// up to b bytes. The zero value is not ready for use; call NewLimiter.
type Limiter struct {
	mu struct {
		sync.Mutex
		tb tokenbucket.TokenBucket
	}
}

// NewLimiter returns a Limiter admitting r bytes/second with burst b. A rate
// of zero means unlimited: WaitN on such a Limiter always returns
// immediately.
func NewLimiter(r float64, b float64) *Limiter {
	l := &Limiter{}
	if r <= 0 {
		r = 1e18
		b = 1e18
	}
	l.mu.tb.Init(tokenbucket.TokensPerSecond(r), tokenbucket.Tokens(b))
	return l
}

// WaitN blocks until n bytes' worth of tokens are available.
func (l *Limiter) WaitN(n int) {
	for {
		l.mu.Lock()
		ok, d := l.mu.tb.TryToFulfill(tokenbucket.Tokens(n))
		l.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(d)
	}
}
