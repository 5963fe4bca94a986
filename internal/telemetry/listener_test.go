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

package telemetry_test

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/n5dr/shackctl/internal/telemetry"
	"github.com/n5dr/shackctl/internal/wire"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const telemetryMagic uint32 = 0xADBCCBDA
const telemetrySchema uint32 = 2

func putU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func putQString(buf []byte, s string) []byte {
	units := utf16.Encode([]rune(s))
	buf = putU32(buf, uint32(len(units)*2)) //nolint:gosec
	for _, u := range units {
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], u)
		buf = append(buf, tmp[:]...)
	}
	return buf
}

func heartbeatFrame(instanceID string) []byte {
	buf := putU32(nil, telemetryMagic)
	buf = putU32(buf, telemetrySchema)
	buf = putU32(buf, wire.TypeHeartbeat)
	buf = putQString(buf, instanceID)
	return buf
}

func startListener(t *testing.T) (*telemetry.Listener, int, func()) {
	t.Helper()
	ln, err := net.ListenUDP("udp", &net.UDPAddr{})
	require.NoError(t, err)
	port := ln.Addr().(*net.UDPAddr).Port
	require.NoError(t, ln.Close())

	lst := telemetry.New(port, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = lst.Run(ctx) }()
	// Give the listener a moment to bind.
	time.Sleep(20 * time.Millisecond)
	return lst, port, cancel
}

func sendUDP(t *testing.T, port int, payload []byte) {
	t.Helper()
	dst := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
	c, err := net.DialUDP("udp", nil, dst)
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Write(payload)
	require.NoError(t, err)
}

func TestListenerDispatchesHeartbeatToRegisteredInstance(t *testing.T) {
	lst, port, cancel := startListener(t)
	defer cancel()

	ch := lst.Events("Slice-A")
	sendUDP(t, port, heartbeatFrame("Slice-A"))

	select {
	case ev := <-ch:
		require.Equal(t, wire.KindHeartbeat, ev.Kind)
		require.Equal(t, "Slice-A", ev.InstanceID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for heartbeat event")
	}
}

func TestListenerRoutesUnmatchedInstanceToFallback(t *testing.T) {
	lst, port, cancel := startListener(t)
	defer cancel()

	sendUDP(t, port, heartbeatFrame("Slice-Z"))

	select {
	case ev := <-lst.Unmatched():
		require.Equal(t, "Slice-Z", ev.InstanceID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for unmatched event")
	}
}

func TestListenerCountsShortAndBadMagicDatagrams(t *testing.T) {
	lst, port, cancel := startListener(t)
	defer cancel()

	sendUDP(t, port, []byte{0x01, 0x02})
	sendUDP(t, port, putU32(putU32(putU32(nil, 0xDEADBEEF), telemetrySchema), wire.TypeHeartbeat))

	require.Eventually(t, func() bool {
		snap := lst.Counters.Snapshot()
		return snap.ShortFrames == 1 && snap.BadMagic == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestListenerOrdersMultipleDecodesForSameInstance(t *testing.T) {
	lst, port, cancel := startListener(t)
	defer cancel()

	ch := lst.Events("Slice-A")
	sendUDP(t, port, heartbeatFrame("Slice-A"))
	sendUDP(t, port, heartbeatFrame("Slice-A"))
	sendUDP(t, port, heartbeatFrame("Slice-A"))

	for i := 0; i < 3; i++ {
		select {
		case ev := <-ch:
			require.Equal(t, "Slice-A", ev.InstanceID)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestListenerTracksLastSeenAndStaleness(t *testing.T) {
	lst, port, cancel := startListener(t)
	defer cancel()

	_, ok := lst.LastSeen("Slice-A")
	require.False(t, ok)
	require.Empty(t, lst.Stale(0))

	lst.Events("Slice-A")
	sendUDP(t, port, heartbeatFrame("Slice-A"))

	require.Eventually(t, func() bool {
		_, ok := lst.LastSeen("Slice-A")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	require.Empty(t, lst.Stale(time.Minute))
	require.Contains(t, lst.Stale(0), "Slice-A")

	lst.Unregister("Slice-A")
	_, ok = lst.LastSeen("Slice-A")
	require.False(t, ok)
}
