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

package radiobackend_test

import (
	"testing"

	"github.com/n5dr/shackctl/internal/radiobackend"
	"github.com/stretchr/testify/require"
)

func TestParsePushLine(t *testing.T) {
	msg, ok := radiobackend.ParsePushLine("S1|slice 0 in_use=1 RF_frequency=14.074000 mode=USB")
	require.True(t, ok)
	require.Equal(t, 0, msg.Index)
	require.Equal(t, "1", msg.Fields["in_use"])
	require.Equal(t, "14.074000", msg.Fields["RF_frequency"])
	require.Equal(t, "USB", msg.Fields["mode"])
}

func TestParsePushLineUnrecognizedShape(t *testing.T) {
	_, ok := radiobackend.ParsePushLine("OK")
	require.False(t, ok)
}

func TestFrequencyHzNoFloatDrift(t *testing.T) {
	hz, err := radiobackend.FrequencyHz("14.0740000")
	require.NoError(t, err)
	require.Equal(t, int64(14074000), hz)
}

func TestTuneCommandSixFractionalDigits(t *testing.T) {
	require.Equal(t, "slice tune 0 14.076000", radiobackend.TuneCommand(0, 14076000))
}

func TestBuildCommandFraming(t *testing.T) {
	require.Equal(t, "C5|slice list\n", radiobackend.BuildCommand(5, "slice list"))
}

func TestXmitCommand(t *testing.T) {
	require.Equal(t, "xmit 1", radiobackend.XmitCommand(true))
	require.Equal(t, "xmit 0", radiobackend.XmitCommand(false))
}
