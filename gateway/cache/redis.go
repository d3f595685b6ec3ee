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

	"github.com/ethereum/go-ethereum/log"
	"github.com/redis/go-redis/v9"
)

// Redis is the shared L2 tier. Every failure is logged and reported as
// a miss; the shared cache is expendable and must never fail a request.
type Redis struct {
	rdb redis.UniversalClient
	log log.Logger
}

// NewRedis wraps an existing redis client as an L2 store.
func NewRedis(rdb redis.UniversalClient) *Redis {
	return &Redis{rdb: rdb, log: log.New("component", "cache-l2")}
}

func (c *Redis) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	v, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("shared cache get failed", "key", key, "err", err)
		}
		return nil, false
	}
	return v, true
}

func (c *Redis) Set(ctx context.Context, key string, val json.RawMessage, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := c.rdb.Set(ctx, key, []byte(val), ttl).Err(); err != nil {
		c.log.Warn("shared cache set failed", "key", key, "err", err)
	}
}

func (c *Redis) Delete(ctx context.Context, key string) {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		c.log.Warn("shared cache delete failed", "key", key, "err", err)
	}
}

func (c *Redis) Clear(ctx context.Context) {
	if err := c.rdb.FlushDB(ctx).Err(); err != nil {
		c.log.Warn("shared cache clear failed", "err", err)
	}
}
