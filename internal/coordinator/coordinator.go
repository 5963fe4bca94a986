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

// Package coordinator is the Slice→Instance Coordinator (SIC): it watches
// the Slice State Store for slice-added/updated/removed events and drives
// the CAT Server and Process Supervisor accordingly, and mirrors CAT-origin
// mutations back to the radio backend (spec.md §4.7).
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/n5dr/shackctl/internal/adif"
	"github.com/n5dr/shackctl/internal/catserver"
	"github.com/n5dr/shackctl/internal/qsm"
	"github.com/n5dr/shackctl/internal/radiobackend"
	"github.com/n5dr/shackctl/internal/slicestore"
	"github.com/n5dr/shackctl/internal/supervisor"
	"github.com/n5dr/shackctl/internal/telemetry"
	"github.com/n5dr/shackctl/internal/wire"
)

// InstanceNamer derives the decoder-app instance id for a slice, by
// default "Slice-<Letter>" with A for index 0 (spec.md §4.7).
func InstanceNamer(index int) string {
	return fmt.Sprintf("Slice-%c", rune('A'+index))
}

// Binding is what a LaunchSpec returns: the child-process spawn spec plus
// the decoder-app instance's telemetry UDP address, which the Coordinator
// dials to realize QSM transmit intents (spec.md §5: "single writer per
// instance").
type Binding struct {
	Spec          supervisor.Spec
	TelemetryAddr string
}

// LaunchSpec builds the Supervisor spawn spec for a newly bound instance.
// The Coordinator calls it once per slice-added transition; callers
// customize it to point at the decoder-app binary and per-instance
// generated INI (spec.md §4.7, §7 — INI generation is a documented
// contract, not implemented by this package).
type LaunchSpec func(instanceID string, slice slicestore.Slice) Binding

// ErrInstanceNotBound is returned by StartQSO for a slice index with no
// running instance.
var ErrInstanceNotBound = errors.New("coordinator: slice has no bound instance")

// QSOMetrics receives a QSO's terminal outcome, so a caller can feed it to
// the prometheus exporter (internal/metrics.Metrics implements this)
// without this package importing that one. Nil disables recording.
type QSOMetrics interface {
	RecordQSOOutcome(outcome, reason string)
}

type instanceState struct {
	id     string
	tx     *udpTransmitter
	qso    *qsm.Machine
	cancel context.CancelFunc
}

// Coordinator wires the SSS, CAT Server, Process Supervisor, Telemetry
// Listener, and radio backend client together.
type Coordinator struct {
	store   *slicestore.Store
	cat     *catserver.Server
	sup     *supervisor.Supervisor
	backend *radiobackend.Client
	tl      *telemetry.Listener
	launch  LaunchSpec
	logger  *slog.Logger

	mu        sync.Mutex
	instances map[int]*instanceState // slice index -> instance state

	adifLogger *adif.Logger
	onQSOEvent func(instanceID string, ev qsm.Event)
	metrics    QSOMetrics
}

// SetADIFLogger installs the logger that completed QSOs are recorded to.
// Call it before Run; it is not safe to change concurrently with a running
// QSO. A nil logger (the default) disables ADIF logging entirely.
func (c *Coordinator) SetADIFLogger(l *adif.Logger) {
	c.adifLogger = l
}

// SetMetrics installs the sink every QSO's terminal outcome is recorded
// against. Call it before StartQSO; nil (the default) disables recording.
func (c *Coordinator) SetMetrics(m QSOMetrics) {
	c.metrics = m
}

// OnQSOEvent installs a callback invoked with every QSO's terminal event,
// e.g. so the dashboard event bus can relay qso-complete/qso-failed to
// connected browsers. Call it before Run.
func (c *Coordinator) OnQSOEvent(fn func(instanceID string, ev qsm.Event)) {
	c.onQSOEvent = fn
}

// New creates a Coordinator. launch may be nil, in which case instances are
// tracked and CAT listeners are started/stopped but no child process is
// spawned and QSOs cannot be started (useful for tests and for
// dashboard-only deployments). tl may be nil if QSO support is not needed.
func New(store *slicestore.Store, cat *catserver.Server, sup *supervisor.Supervisor, backend *radiobackend.Client, tl *telemetry.Listener, launch LaunchSpec, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:     store,
		cat:       cat,
		sup:       sup,
		backend:   backend,
		tl:        tl,
		launch:    launch,
		logger:    logger,
		instances: make(map[int]*instanceState),
	}
}

// Run consumes SSS and CAT Server events until ctx is canceled. It is meant
// to be run as one goroutine in an errgroup alongside the Telemetry
// Listener, RBC client, and CAT Server's own accept loops.
func (c *Coordinator) Run(ctx context.Context) error {
	sssEvents, unsubscribe := c.store.Subscribe()
	defer unsubscribe()
	catEvents := c.cat.Events()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sssEvents:
			if !ok {
				return nil
			}
			c.handleSliceEvent(ctx, ev)
		case ev, ok := <-catEvents:
			if !ok {
				return nil
			}
			c.handleCATEvent(ev)
		}
	}
}

func (c *Coordinator) handleSliceEvent(ctx context.Context, ev slicestore.Event) {
	switch ev.Kind {
	case slicestore.EventSliceAdded:
		c.onSliceAdded(ev.Index, ev.State)
	case slicestore.EventSliceRemoved:
		c.onSliceRemoved(ctx, ev.Index)
	case slicestore.EventSliceUpdated:
		// CAT listeners read current state from the SSS on every request;
		// no push is needed here beyond what's already in the store.
	}
}

func (c *Coordinator) onSliceAdded(index int, slice slicestore.Slice) {
	instanceID := InstanceNamer(index)
	st := &instanceState{id: instanceID}

	c.mu.Lock()
	c.instances[index] = st
	c.mu.Unlock()

	if err := c.cat.StartListener(context.Background(), index); err != nil {
		c.logger.Error("coordinator: failed to start CAT listener", "slice", index, "error", err)
		return
	}

	if c.launch != nil {
		binding := c.launch(instanceID, slice)
		if err := c.sup.Start(binding.Spec); err != nil {
			c.logger.Error("coordinator: failed to start instance", "instance", instanceID, "error", err)
			return
		}
		if binding.TelemetryAddr != "" {
			tx, err := newUDPTransmitter(instanceID, binding.TelemetryAddr)
			if err != nil {
				c.logger.Error("coordinator: failed to dial instance telemetry socket", "instance", instanceID, "error", err)
			} else {
				c.mu.Lock()
				if cur, ok := c.instances[index]; ok {
					cur.tx = tx
				}
				c.mu.Unlock()
			}
		}
	}

	c.logger.Info("coordinator: instance bound", "slice", index, "instance", instanceID)
}

func (c *Coordinator) onSliceRemoved(ctx context.Context, index int) {
	c.mu.Lock()
	st, ok := c.instances[index]
	delete(c.instances, index)
	c.mu.Unlock()
	if !ok {
		return
	}

	c.cat.StopListener(index)

	if st.cancel != nil {
		st.cancel()
	}
	if st.tx != nil {
		_ = st.tx.Close()
	}
	if c.tl != nil {
		c.tl.Unregister(st.id)
	}

	if c.launch != nil {
		if err := c.sup.Stop(ctx, st.id); err != nil {
			c.logger.Warn("coordinator: failed to stop instance", "instance", st.id, "error", err)
		}
	}

	c.logger.Info("coordinator: instance torn down", "slice", index, "instance", st.id)
}

// StartQSO begins a QSO on the instance bound to slice index, feeding it
// decode events from the Telemetry Listener and transmitting intents
// through the instance's telemetry UDP socket. It returns
// ErrInstanceNotBound if no instance is bound to index, and
// qsm.ErrQSOInProgress if a QSO is already running there.
func (c *Coordinator) StartQSO(ctx context.Context, index int, cfg qsm.Config) error {
	c.mu.Lock()
	st, ok := c.instances[index]
	c.mu.Unlock()
	if !ok {
		return ErrInstanceNotBound
	}
	if st.tx == nil {
		return fmt.Errorf("coordinator: instance %s has no telemetry transmitter bound", st.id)
	}

	c.mu.Lock()
	if st.qso != nil && st.qso.IsRunning() {
		c.mu.Unlock()
		return qsm.ErrQSOInProgress
	}
	machine := qsm.New(cfg, st.tx, c.logger.With("instance", st.id))
	qctx, cancel := context.WithCancel(ctx)
	st.qso = machine
	st.cancel = cancel
	c.mu.Unlock()

	if c.tl != nil {
		go c.pumpDecodes(qctx, st.id, machine)
	}
	go c.logQSOOutcome(index, st.id, machine)

	return machine.Start(qctx)
}

// logQSOOutcome logs the terminal event of one QSO, tagged with its
// lifecycle id, once the Machine publishes it, and on completion appends an
// ADIF record if an ADIF logger has been installed (spec.md §6).
func (c *Coordinator) logQSOOutcome(index int, instanceID string, machine *qsm.Machine) {
	ev, ok := <-machine.Events()
	if !ok {
		return
	}
	switch ev.Kind {
	case qsm.EventComplete:
		c.logger.Info("qso complete", "instance", instanceID, "qso_id", ev.QSOID)
		c.recordADIF(index, machine.Config())
		if c.metrics != nil {
			c.metrics.RecordQSOOutcome("complete", "")
		}
	case qsm.EventFailed:
		c.logger.Warn("qso failed", "instance", instanceID, "qso_id", ev.QSOID, "reason", ev.Reason)
		if c.metrics != nil {
			c.metrics.RecordQSOOutcome("failed", string(ev.Reason))
		}
	}
	if c.onQSOEvent != nil {
		c.onQSOEvent(instanceID, ev)
	}
}

func (c *Coordinator) recordADIF(index int, cfg qsm.Config) {
	if c.adifLogger == nil {
		return
	}
	sl, _ := c.store.Snapshot(index)
	rec := adif.Record{
		Call:            cfg.TargetCall,
		GridSquare:      cfg.MyGrid,
		Mode:            string(sl.Mode),
		Band:            bandForHz(sl.FrequencyHz),
		FreqMHz:         float64(sl.FrequencyHz) / 1e6,
		QSODate:         time.Now(),
		StationCallsign: cfg.MyCall,
		MyGridSquare:    cfg.MyGrid,
	}
	if err := c.adifLogger.Append(rec); err != nil {
		c.logger.Warn("coordinator: failed to append adif record", "error", err)
	}
}

// bandForHz maps a frequency to its amateur-radio band name, returning ""
// for anything outside the common HF/6m allocations the decoder apps this
// control plane supervises operate on.
func bandForHz(hz int64) string {
	switch {
	case hz >= 1_800_000 && hz <= 2_000_000:
		return "160m"
	case hz >= 3_500_000 && hz <= 4_000_000:
		return "80m"
	case hz >= 5_330_000 && hz <= 5_410_000:
		return "60m"
	case hz >= 7_000_000 && hz <= 7_300_000:
		return "40m"
	case hz >= 10_100_000 && hz <= 10_150_000:
		return "30m"
	case hz >= 14_000_000 && hz <= 14_350_000:
		return "20m"
	case hz >= 18_068_000 && hz <= 18_168_000:
		return "17m"
	case hz >= 21_000_000 && hz <= 21_450_000:
		return "15m"
	case hz >= 24_890_000 && hz <= 24_990_000:
		return "12m"
	case hz >= 28_000_000 && hz <= 29_700_000:
		return "10m"
	case hz >= 50_000_000 && hz <= 54_000_000:
		return "6m"
	default:
		return ""
	}
}

// StopQSO cancels any QSO running on the instance bound to slice index.
func (c *Coordinator) StopQSO(index int) {
	c.mu.Lock()
	st, ok := c.instances[index]
	c.mu.Unlock()
	if !ok || st.qso == nil {
		return
	}
	st.qso.Stop()
}

// QSOFor returns the QSM driving the instance bound to slice index, if any.
func (c *Coordinator) QSOFor(index int) (*qsm.Machine, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.instances[index]
	if !ok || st.qso == nil {
		return nil, false
	}
	return st.qso, true
}

func (c *Coordinator) pumpDecodes(ctx context.Context, instanceID string, machine *qsm.Machine) {
	events := c.tl.Events(instanceID)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Decode == nil {
				continue
			}
			machine.Decode(qsm.Decode{
				Text:   ev.Decode.Text,
				SNRDb:  ev.Decode.SNRDb,
				TimeMs: ev.Decode.TimeMs,
				DtSec:  ev.Decode.DtSec,
				DfHz:   ev.Decode.DfHz,
				Mode:   ev.Decode.Mode,
			})
		}
	}
}

// handleCATEvent mirrors a CAT-origin mutation to the radio backend. The
// SSS was already optimistically updated by the CAT Server itself, so this
// only needs to push the same change downstream (spec.md §4.4).
func (c *Coordinator) handleCATEvent(ev catserver.Event) {
	var err error
	switch ev.Kind {
	case catserver.EventFrequencyChange:
		err = c.backend.Tune(ev.Index, ev.FrequencyHz)
	case catserver.EventModeChange:
		err = c.backend.SetMode(ev.Index, ev.Mode)
	case catserver.EventPTTChange:
		changed := c.store.SetTX(ev.Index, ev.PTT)
		if len(changed) == 0 {
			return
		}
		err = c.backend.Xmit(ev.PTT)
	}
	if err != nil {
		c.logger.Warn("coordinator: failed to mirror CAT mutation to backend", "slice", ev.Index, "kind", ev.Kind, "error", err)
	}
}

// InstanceFor returns the instance id bound to slice index, if any.
func (c *Coordinator) InstanceFor(index int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.instances[index]
	if !ok {
		return "", false
	}
	return st.id, true
}

// SetFrequency applies an operator-origin (MCP tool or dashboard) frequency
// change: the SSS is updated first so any concurrent reader sees it
// immediately, then the change is mirrored to the radio backend exactly as
// a CAT-origin one would be (spec.md §4.4, §6).
func (c *Coordinator) SetFrequency(index int, hz int64) error {
	c.store.SetFrequency(index, hz)
	if err := c.backend.Tune(index, hz); err != nil {
		return fmt.Errorf("coordinator: tune slice %d: %w", index, err)
	}
	return nil
}

// SetMode applies an operator-origin mode change, mirrored the same way as
// SetFrequency.
func (c *Coordinator) SetMode(index int, mode wire.Mode) error {
	c.store.SetMode(index, mode)
	if err := c.backend.SetMode(index, mode); err != nil {
		return fmt.Errorf("coordinator: set mode slice %d: %w", index, err)
	}
	return nil
}

// HaltTx enforces an immediate, operator-origin stop of any transmitting
// slice: EmergencyStop clears Transmit on every slice in the SSS, and if
// any slice changed, one global "xmit 0" is sent to the radio backend.
// Calling it with nothing transmitting returns nil. An error from the
// backend send is returned after the SSS has already been cleared.
func (c *Coordinator) HaltTx() error {
	changed := c.store.EmergencyStop()
	if len(changed) == 0 {
		return nil
	}
	if err := c.backend.Xmit(false); err != nil {
		return fmt.Errorf("coordinator: halt tx: %w", err)
	}
	return nil
}

// SendFreeText transmits arbitrary text through the instance bound to
// slice index, for an operator reply that isn't driven by the QSO state
// machine (spec.md §6's reply_to_station tool).
func (c *Coordinator) SendFreeText(ctx context.Context, index int, text string) error {
	c.mu.Lock()
	st, ok := c.instances[index]
	c.mu.Unlock()
	if !ok {
		return ErrInstanceNotBound
	}
	if st.tx == nil {
		return fmt.Errorf("coordinator: instance %s has no telemetry transmitter bound", st.id)
	}
	return st.tx.SendFreeText(ctx, text)
}
