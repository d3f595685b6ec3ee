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

package cache

import (
	"context"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type l1entry struct {
	val      json.RawMessage
	deadline time.Time
}

// L1 is the process-local tier: a size-bounded LRU with per-entry TTL.
// Expiry is lazy; an expired entry is dropped on the Get that finds it.
type L1 struct {
	lru *lru.Cache[string, l1entry]
	now func() time.Time
}

// NewL1 creates the process-local cache holding at most size entries.
func NewL1(size int) *L1 {
	c, err := lru.New[string, l1entry](size)
	if err != nil {
		panic(err) // only on non-positive size
	}
	return &L1{lru: c, now: time.Now}
}

func (c *L1) Get(_ context.Context, key string) (json.RawMessage, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().After(e.deadline) {
		c.lru.Remove(key)
		return nil, false
	}
	return e.val, true
}

func (c *L1) Set(_ context.Context, key string, val json.RawMessage, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.lru.Add(key, l1entry{val: val, deadline: c.now().Add(ttl)})
}

func (c *L1) Delete(_ context.Context, key string) {
	c.lru.Remove(key)
}

func (c *L1) Clear(_ context.Context) {
	c.lru.Purge()
}
