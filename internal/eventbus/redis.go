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

package eventbus

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/n5dr/shackctl/internal/config"
	"github.com/redis/go-redis/v9"
)

const connsPerCPU = 10
const maxIdleTime = 5 * time.Minute

func newRedisBus(ctx context.Context, cfg *config.Config) (*redisBus, error) {
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
	return &redisBus{client: client}, nil
}

type redisBus struct {
	client *redis.Client
}

func (b *redisBus) Publish(topic string, message []byte) error {
	ctx := context.Background()
	if err := b.client.Publish(ctx, topic, message).Err(); err != nil {
		return fmt.Errorf("publish to topic %s: %w", topic, err)
	}
	return nil
}

func (b *redisBus) Subscribe(topic string) Subscription {
	ctx := context.Background()
	sub := b.client.Subscribe(ctx, topic)
	return &redisSubscription{ch: sub.Channel(), sub: sub}
}

func (b *redisBus) Close() error {
	if err := b.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

type redisSubscription struct {
	ch  <-chan *redis.Message
	sub *redis.PubSub
}

func (s *redisSubscription) Close() error {
	if err := s.sub.Close(); err != nil {
		return fmt.Errorf("close redis subscription: %w", err)
	}
	return nil
}

func (s *redisSubscription) Channel() <-chan []byte {
	out := make(chan []byte)
	go func() {
		defer close(out)
		for msg := range s.ch {
			out <- []byte(msg.Payload)
		}
	}()
	return out
}
