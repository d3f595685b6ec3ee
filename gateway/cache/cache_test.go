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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyBuilder(t *testing.T) {
	assert.Equal(t, "eth_getBlockByNumber:0x1:false", Key("eth_getBlockByNumber", "0x1", "false"))

	// Long arguments collapse to a 40-char sha1 hex digest.
	long := strings.Repeat("ab", 200)
	k := Key("eth_call", "0xto", long)
	parts := strings.Split(k, ":")
	require.Len(t, parts, 3)
	assert.Len(t, parts[2], 40)

	// Same input, same key.
	assert.Equal(t, k, Key("eth_call", "0xto", long))
}

func TestPolicyCacheable(t *testing.T) {
	p := &Policy{
		TTL: time.Second,
		Skip: []SkipRule{
			{Param: 0, Values: []string{"latest", "pending", "safe", "finalized"}, Hashes: true},
		},
	}
	assert.True(t, p.Cacheable([]string{"0x10", "true"}))
	assert.False(t, p.Cacheable([]string{"latest", "true"}))
	assert.False(t, p.Cacheable([]string{"PENDING", "true"}))
	assert.False(t, p.Cacheable([]string{"0x" + strings.Repeat("ab", 32), "true"}))

	var none *Policy
	assert.False(t, none.Cacheable(nil))
	assert.False(t, (&Policy{}).Cacheable(nil))
}

func TestL1SetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewL1(16)
	val := json.RawMessage(`{"number":"0x1"}`)
	c.Set(ctx, "k", val, time.Minute)

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, val, got)
}

func TestL1TTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewL1(16)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Set(ctx, "k", json.RawMessage(`1`), 10*time.Second)
	_, ok := c.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(11 * time.Second)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestL1Eviction(t *testing.T) {
	ctx := context.Background()
	c := NewL1(2)
	c.Set(ctx, "a", json.RawMessage(`1`), time.Minute)
	c.Set(ctx, "b", json.RawMessage(`2`), time.Minute)
	c.Set(ctx, "c", json.RawMessage(`3`), time.Minute)

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
}

// flakyStore simulates a failing shared tier.
type flakyStore struct{ sets, gets int }

func (f *flakyStore) Get(context.Context, string) (json.RawMessage, bool) { f.gets++; return nil, false }
func (f *flakyStore) Set(context.Context, string, json.RawMessage, time.Duration) {
	f.sets++
}
func (f *flakyStore) Delete(context.Context, string) {}
func (f *flakyStore) Clear(context.Context)          {}

// memStore is a working in-memory stand-in for the shared tier.
type memStore struct{ m map[string]json.RawMessage }

func (s *memStore) Get(_ context.Context, k string) (json.RawMessage, bool) {
	v, ok := s.m[k]
	return v, ok
}
func (s *memStore) Set(_ context.Context, k string, v json.RawMessage, _ time.Duration) {
	s.m[k] = v
}
func (s *memStore) Delete(_ context.Context, k string) { delete(s.m, k) }
func (s *memStore) Clear(context.Context)              { s.m = map[string]json.RawMessage{} }

func TestTieredWriteThroughAndRepopulate(t *testing.T) {
	ctx := context.Background()
	l2 := &memStore{m: map[string]json.RawMessage{}}
	c := NewTiered(NewL1(16), l2)

	val := json.RawMessage(`"0x12a"`)
	c.Set(ctx, "eth_chainId", val, time.Minute)
	_, ok := l2.m["eth_chainId"]
	assert.True(t, ok, "write must reach L2")

	// Drop L1; the read must repopulate from L2.
	c.l1.Clear(ctx)
	got, ok := c.Get(ctx, "eth_chainId")
	require.True(t, ok)
	assert.Equal(t, val, got)
	_, ok = c.l1.Get(ctx, "eth_chainId")
	assert.True(t, ok, "L1 must be repopulated after an L2 hit")
}

func TestTieredProcessTierSkipsL2(t *testing.T) {
	ctx := context.Background()
	l2 := &flakyStore{}
	c := NewTiered(NewL1(16), l2)

	c.SetTier(ctx, "k", json.RawMessage(`1`), time.Minute, TierProcess)
	assert.Zero(t, l2.sets)

	c.l1.Clear(ctx)
	_, ok := c.GetTier(ctx, "k", TierProcess)
	assert.False(t, ok)
	assert.Zero(t, l2.gets)
}

func TestTieredL2FailureIsMiss(t *testing.T) {
	ctx := context.Background()
	c := NewTiered(NewL1(16), &flakyStore{})
	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestTieredWithoutL2(t *testing.T) {
	ctx := context.Background()
	c := NewTiered(NewL1(16), nil)
	c.Set(ctx, "k", json.RawMessage(`true`), time.Minute)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, json.RawMessage(`true`), got)
}
