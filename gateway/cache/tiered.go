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
)

// Tiered composes L1 with an optional shared L2. Reads are L1-first
// with L2 repopulating L1 on miss; writes go L1-then-L2.
type Tiered struct {
	l1 *L1
	l2 Store // nil when no shared store is configured
}

// NewTiered builds the two-tier cache. l2 may be nil.
func NewTiered(l1 *L1, l2 Store) *Tiered {
	return &Tiered{l1: l1, l2: l2}
}

// GetTier reads from the tiers selected by tier.
func (c *Tiered) GetTier(ctx context.Context, key string, tier Tier) (json.RawMessage, bool) {
	if v, ok := c.l1.Get(ctx, key); ok {
		return v, true
	}
	if tier == TierShared && c.l2 != nil {
		if v, ok := c.l2.Get(ctx, key); ok {
			// Repopulate L1 with a short horizon; the authoritative TTL
			// lives with the shared entry.
			c.l1.Set(ctx, key, v, time.Second)
			return v, true
		}
	}
	return nil, false
}

// SetTier writes to the tiers selected by tier.
func (c *Tiered) SetTier(ctx context.Context, key string, val json.RawMessage, ttl time.Duration, tier Tier) {
	c.l1.Set(ctx, key, val, ttl)
	if tier == TierShared && c.l2 != nil {
		c.l2.Set(ctx, key, val, ttl)
	}
}

// Get implements Store over both tiers.
func (c *Tiered) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	return c.GetTier(ctx, key, TierShared)
}

// Set implements Store over both tiers.
func (c *Tiered) Set(ctx context.Context, key string, val json.RawMessage, ttl time.Duration) {
	c.SetTier(ctx, key, val, ttl, TierShared)
}

func (c *Tiered) Delete(ctx context.Context, key string) {
	c.l1.Delete(ctx, key)
	if c.l2 != nil {
		c.l2.Delete(ctx, key)
	}
}

func (c *Tiered) Clear(ctx context.Context) {
	c.l1.Clear(ctx)
	if c.l2 != nil {
		c.l2.Clear(ctx)
	}
}
