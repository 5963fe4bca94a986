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
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

func newMemoryCache(window int) *memoryCache {
	return &memoryCache{window: window, perInstance: xsync.NewMap[string, *ring]()}
}

// memoryCache keeps one fixed-capacity ring buffer per instance id.
type memoryCache struct {
	window      int
	perInstance *xsync.Map[string, *ring]
}

type ring struct {
	mu      sync.Mutex
	entries []Entry
	cap     int
	next    int
	full    bool
}

func newRing(cap int) *ring {
	return &ring{entries: make([]Entry, cap), cap: cap}
}

func (r *ring) push(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = e
	r.next = (r.next + 1) % r.cap
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		out := make([]Entry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]Entry, r.cap)
	copy(out, r.entries[r.next:])
	copy(out[r.cap-r.next:], r.entries[:r.next])
	return out
}

func (c *memoryCache) Record(_ context.Context, instanceID string, e Entry) error {
	ringForInstance, _ := c.perInstance.LoadOrCompute(instanceID, func() (*ring, bool) {
		return newRing(c.window), false
	})
	ringForInstance.push(e)
	return nil
}

func (c *memoryCache) Recent(_ context.Context, instanceID string) ([]Entry, error) {
	ringForInstance, ok := c.perInstance.Load(instanceID)
	if !ok {
		return nil, nil
	}
	return ringForInstance.snapshot(), nil
}

func (c *memoryCache) Forget(_ context.Context, instanceID string) error {
	c.perInstance.Delete(instanceID)
	return nil
}

func (c *memoryCache) Close() error { return nil }
