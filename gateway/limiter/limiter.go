// Copyright 2025 The evm-gateway Authors
// This file is part of the evm-gateway library.
//
// The evm-gateway library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The evm-gateway library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the evm-gateway library. If not, see <http://www.gnu.org/licenses/>.

// Package limiter implements per-(ip, method) fixed-window rate
// limiting with interchangeable in-process and shared backing stores.
package limiter

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// CounterStore increments the counter for key within the current
// fixed window and returns the post-increment count. Implementations
// must make increment-and-read atomic so that instances sharing a
// store observe one combined counter. Keys expire at window end.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter is the fixed-window rate limiter shared by all requests.
type Limiter struct {
	store    CounterStore
	window   time.Duration
	fallback int // threshold used when the caller passes none
	log      log.Logger
}

// New builds a limiter over store with the given window width and
// default threshold.
func New(store CounterStore, window time.Duration, defaultLimit int) *Limiter {
	return &Limiter{
		store:    store,
		window:   window,
		fallback: defaultLimit,
		log:      log.New("component", "ratelimit"),
	}
}

// ShouldRateLimit atomically counts the request and reports whether
// the (ip, method) pair exceeded its threshold in the current window.
// Store failures fail open: the request is admitted and the failure
// logged.
func (l *Limiter) ShouldRateLimit(ctx context.Context, ip, method string, limit int) bool {
	if l == nil || ip == "" {
		return false
	}
	if limit <= 0 {
		limit = l.fallback
	}
	count, err := l.store.Incr(ctx, ip+":"+method, l.window)
	if err != nil {
		l.log.Warn("rate limit store failure, admitting request", "ip", ip, "method", method, "err", err)
		return false
	}
	if count > int64(limit) {
		l.log.Debug("rate limit exceeded", "ip", ip, "method", method, "count", count, "limit", limit)
		return true
	}
	return false
}
