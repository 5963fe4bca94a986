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

// Package decodecache keeps the last N decodes per instance in memory so
// the dashboard can list recent decodes without archiving them
// indefinitely (spec.md §1 Non-goals: no persistent archival beyond a
// sliding window). The snr_weak_threshold/snr_strong_threshold config
// keys are not applied here.
package decodecache

import (
	"context"
	"fmt"
	"time"

	"github.com/n5dr/shackctl/internal/config"
)

// DefaultWindow is the number of most-recent decodes retained per instance.
const DefaultWindow = 50

// Entry is one recorded decode.
type Entry struct {
	Text       string
	SNRDb      int32
	TimeMs     uint32
	Mode       string
	ReceivedAt time.Time
}

// Cache stores a sliding window of decodes per instance.
type Cache interface {
	Record(ctx context.Context, instanceID string, e Entry) error
	Recent(ctx context.Context, instanceID string) ([]Entry, error)
	Forget(ctx context.Context, instanceID string) error
	Close() error
}

// New builds a Cache from configuration: Redis-backed when
// cfg.Redis.Enabled, in-memory otherwise.
func New(ctx context.Context, cfg *config.Config) (Cache, error) {
	if cfg.Redis.Enabled {
		c, err := newRedisCache(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("decodecache: %w", err)
		}
		return c, nil
	}
	return newMemoryCache(DefaultWindow), nil
}
