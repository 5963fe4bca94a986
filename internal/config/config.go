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

// Package config loads the JSON configuration document described in the
// external interfaces of the control plane: mode selection, station
// identity, per-backend wiring, and the dashboard's display thresholds.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// WSJTX holds the location of the decoder-app binary the supervisor spawns.
type WSJTX struct {
	Path string `json:"path"`
}

// Station holds the operator's identity, used by the QSO state machine.
type Station struct {
	Callsign string `json:"callsign"`
	Grid     string `json:"grid"`
}

// Standard configures CAT translation when Mode is ModeStandard.
type Standard struct {
	RigName string `json:"rig_name"`
}

// Flex configures the radio-backend session when Mode is ModeFlex.
type Flex struct {
	Host          string  `json:"host"`
	CATBasePort   int     `json:"cat_base_port"`
	BackendPort   int     `json:"backend_port"`
	DefaultBands  []int64 `json:"default_bands"`
	DiscoveryOnly bool    `json:"discovery_only"`
}

// Dashboard configures the out-of-core WebSocket dashboard's display rules.
type Dashboard struct {
	StationLifetimeS   int     `json:"station_lifetime_s"`
	SNRWeakThreshold   float64 `json:"snr_weak_threshold"`
	SNRStrongThreshold float64 `json:"snr_strong_threshold"`
	ADIFLogPath        string  `json:"adif_log_path"`
}

// Web configures the dashboard HTTP/WS listener.
type Web struct {
	Port int `json:"port"`
}

// Redis configures the optional shared backing store for the event bus and
// decode cache. Both default to in-memory implementations when disabled.
type Redis struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
}

// Metrics configures the prometheus HTTP exporter.
type Metrics struct {
	Enabled bool   `json:"enabled"`
	Bind    string `json:"bind"`
	Port    int    `json:"port"`
}

// Telemetry configures the decoder-app UDP telemetry listener and the
// Process Supervisor's periodic stale-instance reaper.
type Telemetry struct {
	Port          int `json:"port"`
	StaleAfterS   int `json:"stale_after_s"`
	ReapIntervalS int `json:"reap_interval_s"`
}

// QSM configures default QSO state machine timing.
type QSM struct {
	StateTimeoutS int `json:"state_timeout_s"`
	MaxRetries    int `json:"max_retries"`
}

// Config is the root configuration document (spec.md §6).
type Config struct {
	Mode      Mode      `json:"mode"`
	LogLevel  LogLevel  `json:"log_level"`
	WSJTX     WSJTX     `json:"wsjtx"`
	Station   Station   `json:"station"`
	Standard  Standard  `json:"standard"`
	Flex      Flex      `json:"flex"`
	Dashboard Dashboard `json:"dashboard"`
	Web       Web       `json:"web"`
	Telemetry Telemetry `json:"telemetry"`
	Redis     Redis     `json:"redis"`
	Metrics   Metrics   `json:"metrics"`
	QSM       QSM       `json:"qsm"`
}

func defaults() Config {
	return Config{
		Mode:     ModeStandard,
		LogLevel: LogLevelInfo,
		Standard: Standard{
			RigName: "Kenwood TS-2000",
		},
		Flex: Flex{
			Host:        "127.0.0.1",
			CATBasePort: 7809,
			BackendPort: 4992,
		},
		Dashboard: Dashboard{
			StationLifetimeS:   3600,
			SNRWeakThreshold:   -15,
			SNRStrongThreshold: 0,
		},
		Web: Web{
			Port: 8090,
		},
		Telemetry: Telemetry{
			Port:          2237,
			StaleAfterS:   90,
			ReapIntervalS: 30,
		},
		Metrics: Metrics{
			Bind: "127.0.0.1",
			Port: 9090,
		},
		QSM: QSM{
			StateTimeoutS: 15,
			MaxRetries:    3,
		},
	}
}

// Load reads the JSON document at path, merges it over the defaults, applies
// the MODE/FLEX_HOST/RIG_NAME environment overrides, and validates the
// result. Unknown JSON keys are ignored; missing keys keep their default.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if mode := os.Getenv("MODE"); mode != "" {
		cfg.Mode = Mode(mode)
	}
	if host := os.Getenv("FLEX_HOST"); host != "" {
		cfg.Flex.Host = host
	}
	if rig := os.Getenv("RIG_NAME"); rig != "" {
		cfg.Standard.RigName = rig
	}
}
