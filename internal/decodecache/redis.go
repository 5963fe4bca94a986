// SPDX-License-Identifier: AGPL-3.0-or-later
// shackctl - local control plane for decoder-app instances
// Copyright (C) 2026 shackctl contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package decodecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/n5dr/shackctl/internal/config"
	"github.com/redis/go-redis/v9"
)

const connsPerCPU = 10
const maxIdleTime = 5 * time.Minute
const keyPrefix = "shackctl:decodecache:"

func newRedisCache(ctx context.Context, cfg *config.Config) (*redisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:        cfg.Redis.Password,
		PoolFIFO:        true,
		PoolSize:        runtime.GOMAXPROCS(0) * connsPerCPU,
		MinIdleConns:    runtime.GOMAXPROCS(0),
		ConnMaxIdleTime: maxIdleTime,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &redisCache{client: client, window: DefaultWindow}, nil
}

// redisCache keeps each instance's sliding window as a capped Redis list,
// so multiple shackctl processes (or an external reader) can share the
// same recent-decode view the in-memory ring buffer otherwise keeps local.
type redisCache struct {
	client *redis.Client
	window int
}

func (c *redisCache) Record(ctx context.Context, instanceID string, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("decodecache: marshal entry: %w", err)
	}
	key := keyPrefix + instanceID
	pipe := c.client.TxPipeline()
	pipe.RPush(ctx, key, raw)
	pipe.LTrim(ctx, key, int64(-c.window), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("decodecache: record %s: %w", instanceID, err)
	}
	return nil
}

func (c *redisCache) Recent(ctx context.Context, instanceID string) ([]Entry, error) {
	raws, err := c.client.LRange(ctx, keyPrefix+instanceID, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("decodecache: recent %s: %w", instanceID, err)
	}
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decodecache: unmarshal entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (c *redisCache) Forget(ctx context.Context, instanceID string) error {
	if err := c.client.Del(ctx, keyPrefix+instanceID).Err(); err != nil {
		return fmt.Errorf("decodecache: forget %s: %w", instanceID, err)
	}
	return nil
}

func (c *redisCache) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}
