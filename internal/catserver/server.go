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

// Package catserver is the CAT Server: one TCP listener per slice, each
// accepted connection auto-detecting its dialect and then running a
// stateless per-dialect command loop against the Slice State Store
// (spec.md §4.4). All three dialects share the same SSS-backed handlers in
// internal/wire; this package only owns the sockets and the event fan-out
// to the Slice→Instance Coordinator.
package catserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/n5dr/shackctl/internal/slicestore"
	"github.com/n5dr/shackctl/internal/wire"
)

// EventKind tags a CAT-origin mutation request forwarded to the Coordinator.
type EventKind int

const (
	EventFrequencyChange EventKind = iota
	EventModeChange
	EventPTTChange
)

// Event is published for every set-command a CAT client issues, so the
// Coordinator can mirror it to the radio backend (spec.md §4.4).
type Event struct {
	Kind        EventKind
	Index       int
	FrequencyHz int64
	Mode        wire.Mode
	PTT         bool
}

const eventBuffer = 64

// ConnectionMetrics receives CAT accept/close events, so a caller can feed
// them to the prometheus exporter (internal/metrics.Metrics implements
// this) without this package importing that one. Nil disables recording.
type ConnectionMetrics interface {
	RecordCATConnection(dialect string, slice int)
	RecordCATDisconnect(slice int)
}

// Server owns one TCP listener per slice index, bound to loopback at
// BasePort+index (spec.md §4.4, §6).
type Server struct {
	BasePort int
	store    *slicestore.Store
	logger   *slog.Logger
	metrics  ConnectionMetrics

	events chan Event

	mu        sync.Mutex
	listeners map[int]net.Listener
}

// New creates a Server. basePort is the first slice's TCP port (default
// 7809 per spec.md §6); slice index i binds basePort+i.
func New(basePort int, store *slicestore.Store, logger *slog.Logger) *Server {
	return &Server{
		BasePort:  basePort,
		store:     store,
		logger:    logger,
		events:    make(chan Event, eventBuffer),
		listeners: make(map[int]net.Listener),
	}
}

// SetMetrics installs the metrics sink every subsequently accepted
// connection records its accept/close against. Call it before StartListener;
// it is not safe to change while listeners are running.
func (s *Server) SetMetrics(m ConnectionMetrics) {
	s.metrics = m
}

// Events returns the channel of CAT-origin mutation requests.
func (s *Server) Events() <-chan Event { return s.events }

// StartListener binds and accepts connections for slice index until ctx is
// canceled or StopListener is called. It is safe to call once per index;
// the Coordinator calls this from slice-added and StopListener from
// slice-removed (spec.md §4.7).
func (s *Server) StartListener(ctx context.Context, index int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.BasePort+index)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("catserver: listen slice %d: %w", index, err)
	}

	s.mu.Lock()
	s.listeners[index] = ln
	s.mu.Unlock()

	go s.acceptLoop(ctx, index, ln)
	return nil
}

// StopListener closes the listener for index, if any. Accepted connections
// already in flight finish on their own; disconnection never mutates slice
// state (spec.md §4.4).
func (s *Server) StopListener(index int) {
	s.mu.Lock()
	ln, ok := s.listeners[index]
	delete(s.listeners, index)
	s.mu.Unlock()
	if ok {
		_ = ln.Close()
	}
}

func (s *Server) acceptLoop(ctx context.Context, index int, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("catserver: accept failed", "slice", index, "error", err)
			return
		}
		go s.handleConn(ctx, index, conn)
	}
}

func (s *Server) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("catserver: event channel full, dropping", "kind", ev.Kind, "slice", ev.Index)
	}
}
