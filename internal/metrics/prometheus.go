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

// Package metrics gives every counted quantity spec.md §7/§8 talks about
// ("drops counted by TL", RBC reconnects, QSO terminal outcomes) a
// prometheus metric, following DMRHub's internal/metrics registry shape.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the process-wide prometheus registry for the control plane.
type Metrics struct {
	TelemetryDropsTotal   *prometheus.CounterVec
	TelemetryEventsTotal  *prometheus.CounterVec
	RBCReconnectsTotal    prometheus.Counter
	RBCConnected          prometheus.Gauge
	CATConnectionsTotal   *prometheus.CounterVec
	CATConnectionsCurrent *prometheus.GaugeVec
	QSOOutcomesTotal      *prometheus.CounterVec
	InstancesRunning      prometheus.Gauge
}

// NewMetrics builds and registers every metric against the default registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		TelemetryDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shackctl_telemetry_drops_total",
			Help: "Datagrams the Telemetry Listener dropped, by reason (short_frame, bad_magic, decode_error).",
		}, []string{"reason"}),
		TelemetryEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shackctl_telemetry_events_total",
			Help: "Telemetry events dispatched, by kind (heartbeat, status, decode, close, ignored).",
		}, []string{"kind"}),
		RBCReconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shackctl_rbc_reconnects_total",
			Help: "Successful radio-backend reconnections.",
		}),
		RBCConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shackctl_rbc_connected",
			Help: "1 if the radio-backend session is currently established, 0 otherwise.",
		}),
		CATConnectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shackctl_cat_connections_total",
			Help: "CAT connections accepted, by detected dialect.",
		}, []string{"dialect"}),
		CATConnectionsCurrent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "shackctl_cat_connections_current",
			Help: "CAT connections currently open, by slice index.",
		}, []string{"slice"}),
		QSOOutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shackctl_qso_outcomes_total",
			Help: "Completed QSO state machine runs, by outcome (complete, failed).",
		}, []string{"outcome", "reason"}),
		InstancesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shackctl_instances_running",
			Help: "Decoder-app child processes currently tracked as alive.",
		}),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	prometheus.MustRegister(
		m.TelemetryDropsTotal,
		m.TelemetryEventsTotal,
		m.RBCReconnectsTotal,
		m.RBCConnected,
		m.CATConnectionsTotal,
		m.CATConnectionsCurrent,
		m.QSOOutcomesTotal,
		m.InstancesRunning,
	)
}

// RecordTelemetryDrop increments the drop counter for reason.
func (m *Metrics) RecordTelemetryDrop(reason string) {
	m.TelemetryDropsTotal.WithLabelValues(reason).Inc()
}

// RecordTelemetryEvent increments the dispatched-event counter for kind.
func (m *Metrics) RecordTelemetryEvent(kind string) {
	m.TelemetryEventsTotal.WithLabelValues(kind).Inc()
}

// RecordRBCReconnect increments the radio-backend reconnect counter.
func (m *Metrics) RecordRBCReconnect() {
	m.RBCReconnectsTotal.Inc()
}

// SetRBCConnected reflects the radio-backend session's current state.
func (m *Metrics) SetRBCConnected(connected bool) {
	if connected {
		m.RBCConnected.Set(1)
		return
	}
	m.RBCConnected.Set(0)
}

// RecordCATConnection increments the per-dialect accepted-connection counter
// and the per-slice current-connection gauge.
func (m *Metrics) RecordCATConnection(dialect string, slice int) {
	m.CATConnectionsTotal.WithLabelValues(dialect).Inc()
	m.CATConnectionsCurrent.WithLabelValues(sliceLabel(slice)).Inc()
}

// RecordCATDisconnect decrements the per-slice current-connection gauge.
func (m *Metrics) RecordCATDisconnect(slice int) {
	m.CATConnectionsCurrent.WithLabelValues(sliceLabel(slice)).Dec()
}

// RecordQSOOutcome increments the terminal-outcome counter (spec.md §8:
// "exactly one of qso-complete or qso-failed is emitted").
func (m *Metrics) RecordQSOOutcome(outcome, reason string) {
	m.QSOOutcomesTotal.WithLabelValues(outcome, reason).Inc()
}

// SetInstancesRunning reflects the Process Supervisor's current live count.
func (m *Metrics) SetInstancesRunning(n int) {
	m.InstancesRunning.Set(float64(n))
}

func sliceLabel(index int) string {
	if index < 0 {
		return "?"
	}
	return string(rune('A' + index))
}
