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

package queue_test

import (
	"testing"

	"github.com/n5dr/shackctl/internal/queue"
	"github.com/stretchr/testify/require"
)

func TestNewQueue(t *testing.T) {
	t.Parallel()
	q := queue.NewQueue(0)
	require.NotNil(t, q)
}

func TestPushAndDrain(t *testing.T) {
	t.Parallel()
	q := queue.NewQueue(0)

	count, err := q.Push("key1", []byte("value1"))
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = q.Push("key1", []byte("value2"))
	require.NoError(t, err)
	require.Equal(t, 2, count)

	values := q.Drain("key1")
	require.Len(t, values, 2)
	require.Equal(t, "value1", string(values[0]))
	require.Equal(t, "value2", string(values[1]))
}

func TestDrainEmptiesQueue(t *testing.T) {
	t.Parallel()
	q := queue.NewQueue(0)

	_, _ = q.Push("key1", []byte("value1"))

	values := q.Drain("key1")
	require.Len(t, values, 1)

	values = q.Drain("key1")
	require.Nil(t, values)
}

func TestDrainNonexistentKey(t *testing.T) {
	t.Parallel()
	q := queue.NewQueue(0)

	require.Nil(t, q.Drain("nonexistent"))
}

func TestDelete(t *testing.T) {
	t.Parallel()
	q := queue.NewQueue(0)

	_, _ = q.Push("key1", []byte("value1"))
	_, _ = q.Push("key1", []byte("value2"))

	require.NoError(t, q.Delete("key1"))
	require.Nil(t, q.Drain("key1"))
}

func TestDeleteNonexistentKey(t *testing.T) {
	t.Parallel()
	q := queue.NewQueue(0)

	require.NoError(t, q.Delete("nonexistent"))
}

func TestMultipleKeys(t *testing.T) {
	t.Parallel()
	q := queue.NewQueue(0)

	_, _ = q.Push("key1", []byte("a"))
	_, _ = q.Push("key2", []byte("b"))
	_, _ = q.Push("key1", []byte("c"))

	require.Len(t, q.Drain("key1"), 2)
	require.Len(t, q.Drain("key2"), 1)
}

func TestPushBinaryData(t *testing.T) {
	t.Parallel()
	q := queue.NewQueue(0)

	data := []byte{0x00, 0xFF, 0xAB, 0xCD}
	_, err := q.Push("binary", data)
	require.NoError(t, err)

	values := q.Drain("binary")
	require.Len(t, values, 1)
	require.Equal(t, data, values[0])
}

func TestPushRejectsWhenBoundReached(t *testing.T) {
	t.Parallel()
	q := queue.NewQueue(2)

	_, err := q.Push("key1", []byte("a"))
	require.NoError(t, err)
	_, err = q.Push("key1", []byte("b"))
	require.NoError(t, err)

	_, err = q.Push("key1", []byte("c"))
	require.ErrorIs(t, err, queue.ErrFull)
	require.Equal(t, 2, q.Len("key1"))
}
