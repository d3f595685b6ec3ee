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
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the shared counter store. INCR is atomic server-side,
// so gateway instances sharing the store observe one combined counter
// per (ip, method) window.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore wraps a redis client as a shared counter store.
func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "ratelimit:"}
}

func (s *RedisStore) Incr(ctx context.Context, key string, width time.Duration) (int64, error) {
	k := s.prefix + key
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	// NX keeps the window anchored at the first request; later
	// increments must not push the deadline.
	pipe.ExpireNX(ctx, k, width)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
