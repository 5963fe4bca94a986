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

package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/n5dr/shackctl/internal/config"
	"github.com/n5dr/shackctl/internal/eventbus"
	"github.com/stretchr/testify/require"
)

func makeBus(t *testing.T) eventbus.Bus {
	t.Helper()
	bus, err := eventbus.New(context.Background(), &config.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestPublishAndSubscribe(t *testing.T) {
	bus := makeBus(t)

	sub := bus.Subscribe("decode")
	defer func() { _ = sub.Close() }()

	require.NoError(t, bus.Publish("decode", []byte("hello")))

	select {
	case msg := <-sub.Channel():
		require.Equal(t, "hello", string(msg))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestSubscribersOnDifferentTopicsDontCrossTalk(t *testing.T) {
	bus := makeBus(t)

	decodeSub := bus.Subscribe("decode")
	defer func() { _ = decodeSub.Close() }()
	statusSub := bus.Subscribe("status")
	defer func() { _ = statusSub.Close() }()

	require.NoError(t, bus.Publish("decode", []byte("for-decode")))
	require.NoError(t, bus.Publish("status", []byte("for-status")))

	select {
	case msg := <-decodeSub.Channel():
		require.Equal(t, "for-decode", string(msg))
	case <-time.After(time.Second):
		t.Fatal("timed out on decode topic")
	}
	select {
	case msg := <-statusSub.Channel():
		require.Equal(t, "for-status", string(msg))
	case <-time.After(time.Second):
		t.Fatal("timed out on status topic")
	}
}

func TestMultipleSubscribersReceiveTheSamePublish(t *testing.T) {
	bus := makeBus(t)

	subA := bus.Subscribe("qso-complete")
	defer func() { _ = subA.Close() }()
	subB := bus.Subscribe("qso-complete")
	defer func() { _ = subB.Close() }()

	require.NoError(t, bus.Publish("qso-complete", []byte("W1ABC DL1XYZ")))

	for _, sub := range []eventbus.Subscription{subA, subB} {
		select {
		case msg := <-sub.Channel():
			require.Equal(t, "W1ABC DL1XYZ", string(msg))
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fanout delivery")
		}
	}
}

func TestSubscribeAfterCloseReturnsClosedChannel(t *testing.T) {
	bus, err := eventbus.New(context.Background(), &config.Config{})
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	sub := bus.Subscribe("late")
	_, ok := <-sub.Channel()
	require.False(t, ok)
}

func TestPublishAfterCloseIsANoOp(t *testing.T) {
	bus := makeBus(t)
	sub := bus.Subscribe("topic")
	defer func() { _ = sub.Close() }()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Publish("topic", []byte("ignored")))
}
