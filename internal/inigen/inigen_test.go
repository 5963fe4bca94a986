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

package inigen_test

import (
	"path/filepath"
	"testing"

	"github.com/n5dr/shackctl/internal/inigen"
	"github.com/stretchr/testify/require"
)

func TestGenerateRendersStableKeyOrder(t *testing.T) {
	doc := inigen.Generate(inigen.InstanceConfig{
		RigName:           "Kenwood TS-2000",
		CATNetworkPort:    7809,
		UDPServerPort:     2237,
		UDPServer:         "127.0.0.1",
		AcceptUDPRequests: true,
		SoundInName:       "default",
		SoundOutName:      "default",
	})

	want := "[Configuration]\n" +
		"Rig=Kenwood TS-2000\n" +
		"CATNetworkPort=7809\n" +
		"PTTMethod=CAT\n" +
		"SplitMode=Rig\n" +
		"UDPServerPort=2237\n" +
		"UDPServer=127.0.0.1\n" +
		"AcceptUDPRequests=true\n" +
		"SoundInName=default\n" +
		"SoundOutName=default\n"

	require.Equal(t, want, doc.Render())
}

func TestGenerateIncludesSortedWideGraphSection(t *testing.T) {
	doc := inigen.Generate(inigen.InstanceConfig{
		WideGraphParams: map[string]string{"PlotZero": "10", "Gain": "0"},
	})

	rendered := doc.Render()
	require.Contains(t, rendered, "[WideGraph]\nGain=0\nPlotZero=10\n")
}

func TestDocumentWriteFile(t *testing.T) {
	doc := inigen.NewDocument()
	doc.Section("Configuration").Set("Rig", "Kenwood TS-2000")

	path := filepath.Join(t.TempDir(), "Slice-A.ini")
	require.NoError(t, doc.WriteFile(path))
}
