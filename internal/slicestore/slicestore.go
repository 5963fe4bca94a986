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

// Package slicestore is the Slice State Store (SSS): the single
// authoritative, single-writer map of radio slices. Reads are lock-free
// snapshots (github.com/puzpuzpuz/xsync/v4); every mutating operation
// serializes through a short critical section and then publishes the
// resulting events to subscribers in the order the operation produced them,
// matching spec.md §4.2's consistency guarantee.
package slicestore

import (
	"sort"
	"sync"

	"github.com/n5dr/shackctl/internal/wire"
	"github.com/puzpuzpuz/xsync/v4"
)

// Slice is the authoritative record for one radio slice (spec.md §3).
type Slice struct {
	Index       int
	FrequencyHz int64
	Mode        wire.Mode
	Transmit    bool
	InUse       bool
	DaxChannel  int
	InstanceID  string
}

// EventKind tags the variant carried by an Event, replacing the source's
// event-emitter classes with a small closed enum (spec.md §9).
type EventKind int

const (
	EventSliceAdded EventKind = iota
	EventSliceUpdated
	EventSliceRemoved
)

// Event is published to every subscriber after a single logical SSS
// operation, in the order that operation produced them.
type Event struct {
	Kind  EventKind
	Index int
	State Slice
}

// Delta carries the fields apply_push wants to merge; a nil pointer field
// means "leave unchanged" so RBC push handlers don't have to read-then-write.
type Delta struct {
	FrequencyHz *int64
	Mode        *wire.Mode
	InUse       *bool
	DaxChannel  *int
	InstanceID  *string
}

const defaultSubscriberBuffer = 32

// Store is the Slice State Store.
type Store struct {
	mu     sync.Mutex // serializes apply_push/set_tx; reads never take it
	slices *xsync.Map[int, Slice]

	subMu     sync.Mutex
	subs      map[int]chan Event
	nextSubID int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		slices: xsync.NewMap[int, Slice](),
		subs:   make(map[int]chan Event),
	}
}

// Subscribe returns a channel of every Event published from this point
// forward and an unsubscribe function. The channel is buffered; once a slow
// subscriber's buffer is full, newly published events are dropped for it rather than blocking
// the writer, since SSS mutation must never stall on a CAT peer or
// dashboard consumer.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Event, defaultSubscriberBuffer)
	s.subs[id] = ch
	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Store) publish(events ...Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		for _, ev := range events {
			select {
			case ch <- ev:
			default:
				// Drop rather than block; a stalled subscriber must never
				// stop the single-writer SSS from making progress.
			}
		}
	}
}

// Snapshot returns a consistent copy of one slice's state, plus whether the
// index has ever been initialized.
func (s *Store) Snapshot(index int) (Slice, bool) {
	return s.slices.Load(index)
}

// All returns a consistent copy of every known slice, ordered by index.
func (s *Store) All() []Slice {
	var out []Slice
	s.slices.Range(func(_ int, v Slice) bool {
		out = append(out, v)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func (s *Store) load(index int) Slice {
	sl, ok := s.slices.Load(index)
	if !ok {
		return Slice{Index: index, DaxChannel: index + 1}
	}
	return sl
}

// ApplyPush idempotently merges deltas from an RBC push into slice index,
// per spec.md §4.2. It emits slice-added exactly once on a false→true
// transition of InUse, slice-removed exactly once on true→false, and always
// emits slice-updated after any mutation.
func (s *Store) ApplyPush(index int, d Delta) Slice {
	s.mu.Lock()
	cur := s.load(index)
	wasInUse := cur.InUse

	if d.FrequencyHz != nil {
		cur.FrequencyHz = *d.FrequencyHz
	}
	if d.Mode != nil {
		cur.Mode = *d.Mode
	}
	if d.InUse != nil {
		cur.InUse = *d.InUse
	}
	if d.DaxChannel != nil {
		cur.DaxChannel = *d.DaxChannel
	}
	if d.InstanceID != nil {
		cur.InstanceID = *d.InstanceID
	}
	cur.Index = index
	s.slices.Store(index, cur)

	events := []Event{{Kind: EventSliceUpdated, Index: index, State: cur}}
	if !wasInUse && cur.InUse {
		events = append([]Event{{Kind: EventSliceAdded, Index: index, State: cur}}, events...)
	} else if wasInUse && !cur.InUse {
		events = append([]Event{{Kind: EventSliceRemoved, Index: index, State: cur}}, events...)
	}
	s.mu.Unlock()

	s.publish(events...)
	return cur
}

// SetFrequency optimistically applies a CAT-origin frequency set so an
// immediate re-read is consistent, ahead of the RBC round trip (spec.md
// §4.4).
func (s *Store) SetFrequency(index int, hz int64) Slice {
	s.mu.Lock()
	cur := s.load(index)
	cur.FrequencyHz = hz
	s.slices.Store(index, cur)
	s.mu.Unlock()

	ev := Event{Kind: EventSliceUpdated, Index: index, State: cur}
	s.publish(ev)
	return cur
}

// SetMode optimistically applies a CAT-origin mode set.
func (s *Store) SetMode(index int, mode wire.Mode) Slice {
	s.mu.Lock()
	cur := s.load(index)
	cur.Mode = mode
	s.slices.Store(index, cur)
	s.mu.Unlock()

	ev := Event{Kind: EventSliceUpdated, Index: index, State: cur}
	s.publish(ev)
	return cur
}

// SetTX enforces the single-transmitter invariant (spec.md §4.2, §8): when
// setting true, every other slice's Transmit is cleared first, in the same
// critical section, so no observer ever sees two slices transmitting. It
// returns the set of indices whose Transmit value changed, in index order,
// so the caller can mirror exactly the affected slices to the radio
// backend.
func (s *Store) SetTX(index int, tx bool) []int {
	s.mu.Lock()
	var changed []int
	var events []Event

	if tx {
		s.slices.Range(func(i int, sl Slice) bool {
			if i != index && sl.Transmit {
				sl.Transmit = false
				s.slices.Store(i, sl)
				changed = append(changed, i)
				events = append(events, Event{Kind: EventSliceUpdated, Index: i, State: sl})
			}
			return true
		})
	}

	cur := s.load(index)
	if cur.Transmit != tx {
		cur.Transmit = tx
		s.slices.Store(index, cur)
		changed = append(changed, index)
		events = append(events, Event{Kind: EventSliceUpdated, Index: index, State: cur})
	}
	s.mu.Unlock()

	sort.Ints(changed)
	s.publish(events...)
	return changed
}

// EmergencyStop clears Transmit on every slice and returns the indices that
// changed, for the caller to send at most one "xmit 0" per slice (spec.md
// §8 scenario 6). It is idempotent: calling it again with nothing
// transmitting returns an empty slice.
func (s *Store) EmergencyStop() []int {
	s.mu.Lock()
	var changed []int
	var events []Event
	s.slices.Range(func(i int, sl Slice) bool {
		if sl.Transmit {
			sl.Transmit = false
			s.slices.Store(i, sl)
			changed = append(changed, i)
			events = append(events, Event{Kind: EventSliceUpdated, Index: i, State: sl})
		}
		return true
	})
	s.mu.Unlock()

	s.publish(events...)
	return changed
}
