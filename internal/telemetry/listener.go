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

// Package telemetry is the Telemetry Listener (TL): a single UDP socket
// that demultiplexes decoder-app frames by instance id and fans each out as
// a typed event on a per-instance channel (spec.md §4.5). Parse errors in
// one datagram never stall the next: each datagram is decoded synchronously
// but independently, and a malformed one is counted and dropped.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/n5dr/shackctl/internal/wire"
)

const maxDatagramSize = 65535

// Counters tracks the drop reasons spec.md §8 requires to be observable.
type Counters struct {
	mu           sync.Mutex
	ShortFrames  uint64
	BadMagic     uint64
	DecodeErrors uint64
}

func (c *Counters) incr(field *uint64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// Snapshot returns a copy of the current counts.
func (c *Counters) Snapshot() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Counters{ShortFrames: c.ShortFrames, BadMagic: c.BadMagic, DecodeErrors: c.DecodeErrors}
}

// EventMetrics receives every dispatched telemetry event by kind, so a
// caller can feed it to the prometheus exporter (internal/metrics.Metrics
// implements this) without this package importing that one. Nil disables
// recording.
type EventMetrics interface {
	RecordTelemetryEvent(kind string)
}

// Listener owns the single UDP socket the decoder-app instances send
// telemetry to and fans out decoded events by instance id.
type Listener struct {
	port     int
	logger   *slog.Logger
	Counters Counters
	metrics  EventMetrics

	mu       sync.Mutex
	conn     *net.UDPConn
	perInst  map[string]chan wire.TelemetryEvent
	fallback chan wire.TelemetryEvent
	lastSeen map[string]time.Time
}

// SetMetrics installs the sink every dispatched event is recorded against.
// Call it before Run; nil (the default) disables recording.
func (l *Listener) SetMetrics(m EventMetrics) {
	l.metrics = m
}

const perInstanceBuffer = 64

// New creates a Listener bound to the given UDP port (default 2237 per
// spec.md §6).
func New(port int, logger *slog.Logger) *Listener {
	return &Listener{
		port:     port,
		logger:   logger,
		perInst:  make(map[string]chan wire.TelemetryEvent),
		fallback: make(chan wire.TelemetryEvent, perInstanceBuffer),
		lastSeen: make(map[string]time.Time),
	}
}

// LastSeen returns the time of the most recent datagram received from
// instanceID, and whether any has been received at all.
func (l *Listener) LastSeen(instanceID string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.lastSeen[instanceID]
	return t, ok
}

// Stale returns the instance ids whose last datagram arrived more than
// threshold ago, for the Process Supervisor's periodic reaper (spec.md §4.6
// "resilient to double-stop" implies a caller can always safely name a
// possibly-already-dead instance).
func (l *Listener) Stale(threshold time.Duration) []string {
	cutoff := time.Now().Add(-threshold)
	l.mu.Lock()
	defer l.mu.Unlock()
	var stale []string
	for id, seen := range l.lastSeen {
		if seen.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	return stale
}

// Events returns the per-instance event channel, creating it if this is the
// first subscription for instanceID. Events for an instance are delivered
// in arrival order (spec.md §5).
func (l *Listener) Events(instanceID string) <-chan wire.TelemetryEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.perInst[instanceID]
	if !ok {
		ch = make(chan wire.TelemetryEvent, perInstanceBuffer)
		l.perInst[instanceID] = ch
	}
	return ch
}

// Unregister drops the per-instance channel, e.g. when its decoder-app
// instance is torn down.
func (l *Listener) Unregister(instanceID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ch, ok := l.perInst[instanceID]; ok {
		delete(l.perInst, instanceID)
		close(ch)
	}
	delete(l.lastSeen, instanceID)
}

// Unmatched returns events for instance ids with no registered subscriber,
// e.g. a heartbeat that arrives before the Coordinator has bound the slice.
func (l *Listener) Unmatched() <-chan wire.TelemetryEvent { return l.fallback }

// Run owns the UDP socket until ctx is canceled (spec.md §5: non-blocking,
// one task per long-lived I/O endpoint).
func (l *Listener) Run(ctx context.Context) error {
	addr := &net.UDPAddr{Port: l.port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("telemetry: listen: %w", err)
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("telemetry: read: %w", err)
		}
		l.handleDatagram(append([]byte(nil), buf[:n]...))
	}
}

func (l *Listener) handleDatagram(datagram []byte) {
	ev, err := wire.DecodeTelemetry(datagram)
	if err != nil {
		switch {
		case err == wire.ErrShortDatagram:
			l.Counters.incr(&l.Counters.ShortFrames)
		case err == wire.ErrBadMagic:
			l.Counters.incr(&l.Counters.BadMagic)
		default:
			l.Counters.incr(&l.Counters.DecodeErrors)
		}
		return
	}
	l.dispatch(*ev)
}

func (l *Listener) dispatch(ev wire.TelemetryEvent) {
	if l.metrics != nil {
		l.metrics.RecordTelemetryEvent(ev.Kind.String())
	}
	l.mu.Lock()
	l.lastSeen[ev.InstanceID] = time.Now()
	ch, ok := l.perInst[ev.InstanceID]
	l.mu.Unlock()
	if !ok {
		select {
		case l.fallback <- ev:
		default:
			l.logger.Warn("telemetry: unmatched event dropped, fallback full", "instance", ev.InstanceID)
		}
		return
	}
	select {
	case ch <- ev:
	default:
		l.logger.Warn("telemetry: per-instance channel full, dropping event", "instance", ev.InstanceID)
	}
}
