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

package config

import "errors"

var (
	// ErrInvalidMode indicates that the configured mode is neither STANDARD nor FLEX.
	ErrInvalidMode = errors.New("invalid mode provided, must be STANDARD or FLEX")
	// ErrInvalidLogLevel indicates that the provided log level is not valid.
	ErrInvalidLogLevel = errors.New("invalid log level provided")
	// ErrInvalidStationCallsign indicates the station callsign is required.
	ErrInvalidStationCallsign = errors.New("station callsign is required")
	// ErrInvalidFlexHost indicates the configured FlexRadio host is empty.
	ErrInvalidFlexHost = errors.New("flex host is required when mode is FLEX")
	// ErrInvalidFlexCATBasePort indicates the CAT base port is out of range.
	ErrInvalidFlexCATBasePort = errors.New("flex cat_base_port must be between 1 and 65535")
	// ErrInvalidFlexBackendPort indicates the radio-backend port is out of range.
	ErrInvalidFlexBackendPort = errors.New("flex backend_port must be between 1 and 65535")
	// ErrInvalidWebPort indicates the dashboard's web port is out of range.
	ErrInvalidWebPort = errors.New("web port must be between 1 and 65535")
	// ErrInvalidTelemetryPort indicates the telemetry listener port is out of range.
	ErrInvalidTelemetryPort = errors.New("telemetry port must be between 1 and 65535")
	// ErrInvalidQSMStateTimeout indicates a non-positive QSO state timeout.
	ErrInvalidQSMStateTimeout = errors.New("qsm state_timeout_s must be positive")
	// ErrInvalidQSMMaxRetries indicates a negative retry count.
	ErrInvalidQSMMaxRetries = errors.New("qsm max_retries must not be negative")
	// ErrInvalidRedisPort indicates the configured redis port is out of range.
	ErrInvalidRedisPort = errors.New("redis port must be between 1 and 65535 when enabled")
	// ErrInvalidMetricsPort indicates the configured metrics port is out of range.
	ErrInvalidMetricsPort = errors.New("metrics port must be between 1 and 65535 when enabled")
)

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

// Validate checks the loaded configuration for internal consistency.
func (c Config) Validate() error {
	if !c.Mode.Valid() {
		return ErrInvalidMode
	}
	if c.LogLevel != "" && !c.LogLevel.Valid() {
		return ErrInvalidLogLevel
	}
	if c.Station.Callsign == "" {
		return ErrInvalidStationCallsign
	}
	if !validPort(c.Web.Port) {
		return ErrInvalidWebPort
	}
	if !validPort(c.Telemetry.Port) {
		return ErrInvalidTelemetryPort
	}
	if c.QSM.StateTimeoutS <= 0 {
		return ErrInvalidQSMStateTimeout
	}
	if c.QSM.MaxRetries < 0 {
		return ErrInvalidQSMMaxRetries
	}
	if err := c.Flex.Validate(c.Mode); err != nil {
		return err
	}
	if c.Redis.Enabled && !validPort(c.Redis.Port) {
		return ErrInvalidRedisPort
	}
	if c.Metrics.Enabled && !validPort(c.Metrics.Port) {
		return ErrInvalidMetricsPort
	}
	return nil
}

// Validate checks the Flex section, only requiring a host when selected.
func (f Flex) Validate(mode Mode) error {
	if mode != ModeFlex {
		return nil
	}
	if f.Host == "" {
		return ErrInvalidFlexHost
	}
	if !validPort(f.CATBasePort) {
		return ErrInvalidFlexCATBasePort
	}
	if !validPort(f.BackendPort) {
		return ErrInvalidFlexBackendPort
	}
	return nil
}
