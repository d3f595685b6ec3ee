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

package limiter

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count    int64
	deadline time.Time
}

// MemoryStore is the single-instance counter store: a mutex-guarded
// map of window counters. Stale windows are dropped on touch and by a
// periodic sweep so idle keys do not accumulate.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewMemoryStore creates an in-process counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window), now: time.Now}
}

func (s *MemoryStore) Incr(_ context.Context, key string, width time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	w, ok := s.windows[key]
	if !ok || now.After(w.deadline) {
		w = &window{deadline: now.Add(width)}
		s.windows[key] = w
	}
	w.count++
	return w.count, nil
}

// Sweep removes expired windows. Call it periodically from a
// housekeeping goroutine.
func (s *MemoryStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, w := range s.windows {
		if now.After(w.deadline) {
			delete(s.windows, k)
		}
	}
}
