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

package wire_test

import (
	"encoding/binary"
	"testing"

	"github.com/n5dr/shackctl/internal/wire"
	"github.com/stretchr/testify/require"
)

func TestEncodeReplyModifierBothValues(t *testing.T) {
	for _, modifier := range []byte{wire.ReplyModifierArmed, wire.ReplyModifierUnset} {
		buf := wire.EncodeReply(wire.Reply{
			InstanceID: "Slice-A",
			TimeMs:     1000,
			SNRDb:      -5,
			DtSec:      0.2,
			DfHz:       1500,
			Mode:       "FT8",
			Message:    "W1ABC DL1XYZ -05",
			Modifiers:  modifier,
		})
		require.Equal(t, modifier, buf[len(buf)-1])
		require.Equal(t, wire.TelemetryMagic, binary.BigEndian.Uint32(buf[0:]))
		require.Equal(t, wire.TypeReply, binary.BigEndian.Uint32(buf[8:]))
	}
}

func TestEncodeHaltTx(t *testing.T) {
	buf := wire.EncodeHaltTx("Slice-A", true)
	require.Equal(t, wire.TypeHaltTx, binary.BigEndian.Uint32(buf[8:]))
	require.Equal(t, byte(1), buf[len(buf)-1])
}

func TestEncodeFreeText(t *testing.T) {
	buf := wire.EncodeFreeText("Slice-A", "GL", true)
	require.Equal(t, wire.TypeFreeText, binary.BigEndian.Uint32(buf[8:]))
	require.Equal(t, byte(1), buf[len(buf)-1])
}

func TestEncodeConfigurePreservesNoChangeSentinels(t *testing.T) {
	buf := wire.EncodeConfigure("Slice-A", wire.Configure{
		Mode:          "",
		FreqTolerance: wire.NoChangeU32,
		Submode:       "",
		TRPeriod:      wire.NoChangeU32,
		RxDf:          wire.NoChangeU32,
		DXCall:        "DL1XYZ",
		DXGrid:        "",
		Generate:      true,
	})
	require.Equal(t, wire.TypeConfigure, binary.BigEndian.Uint32(buf[8:]))
	// mode QString follows the 4+14-byte "Slice-A" id at offset 12: empty (length 0)
	require.Equal(t, uint32(0), binary.BigEndian.Uint32(buf[30:]))
}

func TestEncodeClearWindow(t *testing.T) {
	buf := wire.EncodeClear("Slice-A", wire.ClearWindowTX)
	require.Equal(t, wire.TypeClear, binary.BigEndian.Uint32(buf[8:]))
	require.Equal(t, byte(wire.ClearWindowTX), buf[len(buf)-1])
}

func TestEncodeLocation(t *testing.T) {
	buf := wire.EncodeLocation("Slice-A", "FN20")
	require.Equal(t, wire.TypeLocation, binary.BigEndian.Uint32(buf[8:]))
}

func TestEncodeHighlightCallsign(t *testing.T) {
	buf := wire.EncodeHighlightCallsign("Slice-A", "DL1XYZ",
		wire.Color{A: 0xFFFF, R: 0, G: 0, B: 0},
		wire.Color{A: 0xFFFF, R: 0xFFFF, G: 0xFFFF, B: 0xFFFF},
		true)
	require.Equal(t, wire.TypeHighlightCallsign, binary.BigEndian.Uint32(buf[8:]))
	require.Equal(t, byte(1), buf[len(buf)-1])
}

func TestEncodeRigControlHasNoIDString(t *testing.T) {
	buf := wire.EncodeRigControl(14074000, "USB")
	require.Equal(t, wire.TelemetryMagic, binary.BigEndian.Uint32(buf[0:]))
	require.Equal(t, wire.TypeRigControl, binary.BigEndian.Uint32(buf[8:]))
	require.Equal(t, int64(14074000), int64(binary.BigEndian.Uint64(buf[12:])))
	mode, _, err := wire.ReadQStringForTest(buf, 20)
	require.NoError(t, err)
	require.Equal(t, "USB", mode)
}
