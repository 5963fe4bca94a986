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
	"testing"

	"github.com/n5dr/shackctl/internal/wire"
	"github.com/stretchr/testify/require"
)

func TestDetectDialectHRDBinary(t *testing.T) {
	head := []byte{0x20, 0x00, 0x00, 0x00, 0xCD, 0xAB, 0x34, 0x12}
	require.Equal(t, wire.DialectHRDBinary, wire.DetectDialect(head, false))
}

func TestDetectDialectHRDBinaryNativeEndianMagic(t *testing.T) {
	head := []byte{0x20, 0x00, 0x00, 0x00, 0x12, 0x34, 0xAB, 0xCD}
	require.Equal(t, wire.DialectHRDBinary, wire.DetectDialect(head, false))
}

func TestDetectDialectKenwood(t *testing.T) {
	head := []byte("FA;")
	require.Equal(t, wire.DialectKenwood, wire.DetectDialect(head, true))
}

func TestDetectDialectHRDText(t *testing.T) {
	head := []byte("get frequency\r")
	require.Equal(t, wire.DialectHRDText, wire.DetectDialect(head, false))
}

func TestKenwoodIFWidth(t *testing.T) {
	line := wire.KenwoodIF(14074000, false, wire.ModeUSB)
	require.Equal(t, "IF00014074000     +00000000"+"0"+"2"+"0000  ;", line)
}

func TestKenwoodIDQuery(t *testing.T) {
	reply, mut := wire.KenwoodHandle(wire.KenwoodRequest{Verb: "ID"}, wire.SliceState{})
	require.Equal(t, "ID019;", reply)
	require.Equal(t, wire.MutationNone, mut.Kind)
}

func TestKenwoodFAQuerySetRoundTrip(t *testing.T) {
	st := wire.SliceState{FrequencyHz: 14074000, Mode: wire.ModeUSB}
	reply, _ := wire.KenwoodHandle(wire.KenwoodRequest{Verb: "FA"}, st)
	require.Equal(t, "FA00014074000;", reply)

	_, mut := wire.KenwoodHandle(wire.KenwoodRequest{Verb: "FA", Param: "00014076000"}, st)
	require.Equal(t, wire.MutationFrequency, mut.Kind)
	require.Equal(t, int64(14076000), mut.FrequencyHz)
}

func TestKenwoodMD2PreservesDataModeFlavor(t *testing.T) {
	st := wire.SliceState{Mode: wire.ModeDIGU}
	_, mut := wire.KenwoodHandle(wire.KenwoodRequest{Verb: "MD", Param: "2"}, st)
	require.Equal(t, wire.MutationMode, mut.Kind)
	require.Equal(t, wire.ModeDIGU, mut.Mode)
}

func TestKenwoodUnknownVerbNegativeAck(t *testing.T) {
	reply, mut := wire.KenwoodHandle(wire.KenwoodRequest{Verb: "ZZ"}, wire.SliceState{})
	require.Empty(t, reply)
	require.Equal(t, wire.MutationNone, mut.Kind)
}

func TestSplitKenwoodFrames(t *testing.T) {
	reqs, rest := wire.SplitKenwoodFrames([]byte("FA;MD2;F"))
	require.Len(t, reqs, 2)
	require.Equal(t, "FA", reqs[0].Verb)
	require.Equal(t, "MD", reqs[1].Verb)
	require.Equal(t, "2", reqs[1].Param)
	require.Equal(t, []byte("F"), rest)
}

func TestHRDGetFrequency(t *testing.T) {
	resp, mut := wire.HRDHandle(wire.ParseHRDLine("get frequency"), wire.SliceState{FrequencyHz: 14074000})
	require.Equal(t, "14074000", resp)
	require.Equal(t, wire.MutationNone, mut.Kind)
}

func TestHRDSetFrequencyHz(t *testing.T) {
	_, mut := wire.HRDHandle(wire.ParseHRDLine("set frequency-hz 14076000"), wire.SliceState{})
	require.Equal(t, wire.MutationFrequency, mut.Kind)
	require.Equal(t, int64(14076000), mut.FrequencyHz)
}

func TestHRDContextPrefixStripped(t *testing.T) {
	resp, _ := wire.HRDHandle(wire.ParseHRDLine("[Radio A] get frequency"), wire.SliceState{FrequencyHz: 7074000})
	require.Equal(t, "7074000", resp)
}

func TestHRDBinaryFrameRoundTrip(t *testing.T) {
	encoded := wire.EncodeHRDBinaryFrame("get frequency")
	decoded, err := wire.DecodeHRDBinaryFrame(encoded)
	require.NoError(t, err)
	require.Equal(t, "get frequency", decoded)
}

func TestHRDBinaryFrameBadMagic(t *testing.T) {
	encoded := wire.EncodeHRDBinaryFrame("get frequency")
	encoded[4] = 0x00
	_, err := wire.DecodeHRDBinaryFrame(encoded)
	require.ErrorIs(t, err, wire.ErrHRDBinaryMagic)
}
