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

package radiobackend

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/n5dr/shackctl/internal/queue"
	"github.com/n5dr/shackctl/internal/slicestore"
	"github.com/n5dr/shackctl/internal/wire"
)

const (
	baseBackoff      = 1 * time.Second
	maxBackoff       = 60 * time.Second
	dialTimeout      = 5 * time.Second
	outboundQueueCap = 64
)

// Client is the Radio Backend Client (RBC). It owns a single persistent TCP
// session, mirrors push messages into the Slice State Store, and exposes a
// soft-failing command path for CAT-origin mutations (spec.md §4.3, §5).
type Client struct {
	addr   string
	store  *slicestore.Store
	logger *slog.Logger

	seq   atomic.Uint64
	queue *queue.Queue

	mu        sync.Mutex
	conn      net.Conn
	connected atomic.Bool

	reconnects atomic.Uint64
}

// New creates an RBC client for the given "host:port" backend address.
func New(addr string, store *slicestore.Store, logger *slog.Logger) *Client {
	return &Client{
		addr:   addr,
		store:  store,
		logger: logger,
		queue:  queue.NewQueue(outboundQueueCap),
	}
}

// Connected reports whether the session is currently established.
func (c *Client) Connected() bool { return c.connected.Load() }

// Reconnects returns the number of successful reconnections, for metrics.
func (c *Client) Reconnects() uint64 { return c.reconnects.Load() }

// Run owns the connect/read/reconnect loop until ctx is canceled. It should
// be run in its own goroutine (spec.md §5: "one task per long-lived I/O
// endpoint").
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	connectedBefore := false
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := net.DialTimeout("tcp", c.addr, dialTimeout)
		if err != nil {
			c.logger.Warn("radiobackend: dial failed", "addr", c.addr, "error", err, "attempt", attempt)
			if !sleepBackoff(ctx, attempt) {
				return ctx.Err()
			}
			attempt++
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.connected.Store(true)
		if connectedBefore {
			c.reconnects.Add(1)
		}
		connectedBefore = true
		c.logger.Info("radiobackend: connected", "addr", c.addr)

		c.onConnect()
		err = c.readLoop(ctx, conn)
		c.connected.Store(false)
		_ = conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("radiobackend: session ended, reconnecting", "error", err)
		attempt = 0 // a successful session resets the backoff schedule
		if !sleepBackoff(ctx, attempt) {
			return ctx.Err()
		}
	}
}

// sleepBackoff waits base*2^attempt capped at maxBackoff with full jitter
// (spec.md §4.3), returning false if ctx was canceled first.
func sleepBackoff(ctx context.Context, attempt int) bool {
	d := baseBackoff << attempt //nolint:gosec
	if d <= 0 || d > maxBackoff {
		d = maxBackoff
	}
	jittered := time.Duration(rand.Int64N(int64(d))) //nolint:gosec
	select {
	case <-time.After(jittered):
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) onConnect() {
	_ = c.send(SubscribeCommand)
	_ = c.send(SliceListCommand)
	for _, raw := range c.queue.Drain(pendingKey) {
		_ = c.send(string(raw))
	}
}

const pendingKey = "pending"

func (c *Client) readLoop(ctx context.Context, conn net.Conn) error {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Text()
		msg, ok := ParsePushLine(line)
		if !ok {
			continue
		}
		c.applyPush(msg)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("radiobackend: read: %w", err)
	}
	return fmt.Errorf("radiobackend: connection closed by peer")
}

func (c *Client) applyPush(msg PushMessage) {
	delta := slicestore.Delta{}
	if v, ok := msg.Fields["RF_frequency"]; ok {
		if hz, err := FrequencyHz(v); err == nil {
			delta.FrequencyHz = &hz
		}
	}
	if v, ok := msg.Fields["mode"]; ok {
		m := Mode(v)
		delta.Mode = &m
	}
	if v, ok := msg.Fields["in_use"]; ok {
		inUse := v == "1"
		delta.InUse = &inUse
	}
	if v, ok := msg.Fields["dax"]; ok {
		if dax, err := parseInt(v); err == nil {
			delta.DaxChannel = &dax
		}
	}
	// rxant is recognized but not modeled in Slice; spec.md §4.3 only
	// requires it be tolerated, not acted upon.
	c.store.ApplyPush(msg.Index, delta)
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

// send writes one framed command over the live connection. It is not
// exported; callers use Tune/SetMode/Xmit, which also handle the
// disconnected case.
func (c *Client) send(command string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("radiobackend: not connected")
	}
	seq := c.seq.Add(1)
	_, err := conn.Write([]byte(BuildCommand(seq, command)))
	if err != nil {
		return fmt.Errorf("radiobackend: write: %w", err)
	}
	return nil
}

// Tune sends a slice-tune command, or soft-fails if disconnected (spec.md
// §5: CAT sets are rejected with a soft error rather than buffered
// unboundedly).
func (c *Client) Tune(index int, hz int64) error {
	return c.enqueueOrSend(TuneCommand(index, hz))
}

// SetMode sends a slice mode-set command.
func (c *Client) SetMode(index int, mode wire.Mode) error {
	return c.enqueueOrSend(ModeCommand(index, mode))
}

// Xmit sends the global transmit toggle.
func (c *Client) Xmit(on bool) error {
	return c.enqueueOrSend(XmitCommand(on))
}

// ErrBackendDisconnected and ErrQueueFull are the soft errors
// enqueueOrSend returns; the Coordinator surfaces these to the CAT peer
// rather than blocking or panicking (spec.md §7 BackendDisconnected).
var (
	ErrBackendDisconnected = fmt.Errorf("radiobackend: backend disconnected, command queued")
	ErrQueueFull           = fmt.Errorf("radiobackend: backend disconnected and command queue is full")
)

func (c *Client) enqueueOrSend(command string) error {
	if c.connected.Load() {
		if err := c.send(command); err == nil {
			return nil
		}
	}
	if _, err := c.queue.Push(pendingKey, []byte(command)); err != nil {
		c.logger.Warn("radiobackend: dropping command, queue full", "command", command)
		return ErrQueueFull
	}
	return ErrBackendDisconnected
}
