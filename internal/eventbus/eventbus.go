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

// Package eventbus fans out dashboard-facing events (decode, status,
// instance-launched, instance-stopped, slice-updated, qso-complete,
// qso-failed — spec.md §6) by topic. The in-memory implementation is the
// default for a single-binary deployment; the Redis-backed one lets
// multiple shackctl processes (or an external subscriber) share the same
// event stream.
package eventbus

import (
	"context"
	"fmt"

	"github.com/n5dr/shackctl/internal/config"
)

// Bus is a topic-based publish/subscribe fanout.
type Bus interface {
	Publish(topic string, message []byte) error
	Subscribe(topic string) Subscription
	Close() error
}

// Subscription is one subscriber's view of a topic.
type Subscription interface {
	Close() error
	Channel() <-chan []byte
}

// New builds a Bus from configuration: Redis-backed when cfg.Redis.Enabled,
// in-memory otherwise.
func New(ctx context.Context, cfg *config.Config) (Bus, error) {
	if cfg.Redis.Enabled {
		bus, err := newRedisBus(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("eventbus: %w", err)
		}
		return bus, nil
	}
	return newMemoryBus(), nil
}
