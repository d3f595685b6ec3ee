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

// Package cache implements the gateway's two-tier response cache: a
// process-local bounded LRU (L1) and an optional shared redis store
// (L2). Values are JSON documents; keys are method-scoped and
// colon-separated. L2 failures degrade to misses, never to request
// failures.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// Store is the common contract of both tiers.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool)
	Set(ctx context.Context, key string, val json.RawMessage, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
}

// Tier selects which tiers a method's cache policy consults.
type Tier int

const (
	// TierProcess uses L1 only.
	TierProcess Tier = iota
	// TierShared uses L1 backed by the shared store when configured.
	TierShared
)

// SkipRule disables caching when a call parameter matches. Values are
// compared lowercased; Hashes additionally matches any 32-byte hex.
type SkipRule struct {
	Param  int
	Values []string
	Hashes bool
}

// Policy is the per-method cache policy consulted by the dispatcher.
type Policy struct {
	TTL  time.Duration
	Tier Tier
	Skip []SkipRule
}

// Cacheable reports whether a call with the given rendered parameters
// may be served from / written to the cache under this policy.
func (p *Policy) Cacheable(params []string) bool {
	if p == nil || p.TTL <= 0 {
		return false
	}
	for _, rule := range p.Skip {
		if rule.Param >= len(params) {
			continue
		}
		v := strings.ToLower(params[rule.Param])
		if rule.Hashes && len(v) == 66 && strings.HasPrefix(v, "0x") {
			return false
		}
		for _, bad := range rule.Values {
			if v == bad {
				return false
			}
		}
	}
	return true
}

// maxKeyArg bounds the rendered length of a single key argument; longer
// arguments are replaced by their SHA-1 to keep keys short.
const maxKeyArg = 64

// Key builds a method-scoped cache key from rendered arguments.
func Key(method string, args ...string) string {
	var b strings.Builder
	b.WriteString(method)
	for _, a := range args {
		b.WriteByte(':')
		if len(a) > maxKeyArg {
			sum := sha1.Sum([]byte(a))
			b.WriteString(hex.EncodeToString(sum[:]))
		} else {
			b.WriteString(a)
		}
	}
	return b.String()
}
