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

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/n5dr/shackctl/internal/config"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "shackctl.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `{"station":{"callsign":"W1ABC","grid":"FN20"}}`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, config.ModeStandard, cfg.Mode)
	require.Equal(t, 7809, cfg.Flex.CATBasePort)
	require.Equal(t, 4992, cfg.Flex.BackendPort)
	require.Equal(t, 2237, cfg.Telemetry.Port)
	require.Equal(t, 90, cfg.Telemetry.StaleAfterS)
	require.Equal(t, 30, cfg.Telemetry.ReapIntervalS)
	require.Equal(t, 15, cfg.QSM.StateTimeoutS)
	require.Equal(t, 3, cfg.QSM.MaxRetries)
}

func TestLoadUnknownKeysIgnored(t *testing.T) {
	path := writeConfig(t, `{"station":{"callsign":"W1ABC"},"bogus_key":true}`)
	_, err := config.Load(path)
	require.NoError(t, err)
}

func TestLoadMissingCallsign(t *testing.T) {
	path := writeConfig(t, `{}`)
	_, err := config.Load(path)
	require.ErrorIs(t, err, config.ErrInvalidStationCallsign)
}

func TestLoadFlexRequiresHost(t *testing.T) {
	path := writeConfig(t, `{"mode":"FLEX","station":{"callsign":"W1ABC"},"flex":{"host":""}}`)
	_, err := config.Load(path)
	require.ErrorIs(t, err, config.ErrInvalidFlexHost)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `{"mode":"STANDARD","station":{"callsign":"W1ABC"},"flex":{"host":"10.0.0.5"},"standard":{"rig_name":"Kenwood TS-2000"}}`)
	t.Setenv("MODE", "FLEX")
	t.Setenv("FLEX_HOST", "192.168.1.50")
	t.Setenv("RIG_NAME", "Ham Radio Deluxe")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, config.ModeFlex, cfg.Mode)
	require.Equal(t, "192.168.1.50", cfg.Flex.Host)
	require.Equal(t, "Ham Radio Deluxe", cfg.Standard.RigName)
}

func TestDefaultBandsRoundTrip(t *testing.T) {
	path := writeConfig(t, `{"mode":"FLEX","station":{"callsign":"W1ABC"},"flex":{"host":"10.0.0.5","default_bands":[1840000,3573000,7074000,14074000]}}`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, []int64{1840000, 3573000, 7074000, 14074000}, cfg.Flex.DefaultBands)
}
