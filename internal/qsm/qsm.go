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

// Package qsm is the autonomous QSO state machine (QSM): a deterministic,
// timed sequencer bound to one decoder-app instance. It consumes decodes,
// matches patterns against the current state, decides transmissions, and
// enforces timeouts/retries, emitting exactly one terminal event per QSO
// lifecycle (spec.md §4.8).
package qsm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is one node of the QSO sequencer (spec.md §4.8).
type State int

const (
	StateIdle State = iota
	StateCalling
	StateWaitingReply
	StateSendingReport
	StateWaitingReport
	StateSendingConfirm
	StateWaitingFinal
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCalling:
		return "calling"
	case StateWaitingReply:
		return "waiting_reply"
	case StateSendingReport:
		return "sending_report"
	case StateWaitingReport:
		return "waiting_report"
	case StateSendingConfirm:
		return "sending_confirm"
	case StateWaitingFinal:
		return "waiting_final"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailReason tags why a QSO ended in StateFailed.
type FailReason string

const (
	ReasonMaxRetries FailReason = "max_retries"
)

// ErrQSOInProgress is returned by Start when a QSO is already running on
// this instance (spec.md §4.8: "concurrent start requests... rejected").
var ErrQSOInProgress = errors.New("qsm: qso already in progress")

// Config is the per-instance QSM configuration (spec.md §4.8, §6).
type Config struct {
	MyCall       string
	TargetCall   string
	MyGrid       string
	StateTimeout time.Duration
	MaxRetries   int
}

func (c Config) withDefaults() Config {
	if c.StateTimeout <= 0 {
		c.StateTimeout = 15 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}

// Decode carries the fields of a decoded telemetry message the QSM needs:
// Text/SNRDb for pattern matching (spec.md §4.8: "space-split raw_text"),
// and the remaining fields so a Reply command can be constructed from the
// matched decode (spec.md §4.1.2).
type Decode struct {
	Text   string
	SNRDb  int32
	TimeMs uint32
	DtSec  float64
	DfHz   uint32
	Mode   string
}

// Transmitter sends a realized transmit intent to the bound decoder-app
// instance. The Coordinator supplies the concrete implementation (an
// outbound UDP write using internal/wire's command encoders).
type Transmitter interface {
	SendFreeText(ctx context.Context, text string) error
	SendReply(ctx context.Context, d Decode, message string) error
}

// EventKind tags a terminal QSM event.
type EventKind int

const (
	EventComplete EventKind = iota
	EventFailed
)

// Event is published exactly once per QSO lifecycle (spec.md §4.8).
type Event struct {
	Kind   EventKind
	Reason FailReason
	QSOID  string
}

// Machine runs one QSO's state sequencer. It is not reusable across QSOs:
// a new Machine is created per Start per spec.md §3's "destroyed on
// Complete or Failed; replaced only after terminal state."
type Machine struct {
	cfg    Config
	tx     Transmitter
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	retries    int
	running    bool
	qsoID      string
	lastDecode *Decode
	events     chan Event
	decodeCh   chan Decode
	cancel     context.CancelFunc
}

// New creates a Machine bound to one instance. Call Start to begin a QSO.
func New(cfg Config, tx Transmitter, logger *slog.Logger) *Machine {
	return &Machine{
		cfg:      cfg.withDefaults(),
		tx:       tx,
		logger:   logger,
		state:    StateIdle,
		events:   make(chan Event, 1),
		decodeCh: make(chan Decode, 32),
	}
}

// Events returns the channel the terminal event is published on.
func (m *Machine) Events() <-chan Event { return m.events }

// Config returns the configuration this Machine was created with, so a
// caller logging the terminal event can name the station worked.
func (m *Machine) Config() Config { return m.cfg }

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsRunning reports whether a QSO is currently in progress on this Machine.
func (m *Machine) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start begins a QSO. It returns ErrQSOInProgress if one is already
// running on this Machine.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrQSOInProgress
	}
	m.running = true
	m.state = StateCalling
	m.retries = 0
	m.qsoID = uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// QSOID returns the identifier of the most recently started QSO, empty if
// none has started yet. It distinguishes one Machine's successive QSOs in
// logs and dashboard events (spec.md §9).
func (m *Machine) QSOID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.qsoID
}

// Decode feeds a decoded telemetry message to the running QSO, in arrival
// order. It is a no-op once the QSO has reached a terminal state.
func (m *Machine) Decode(d Decode) {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if !running {
		return
	}
	select {
	case m.decodeCh <- d:
	default:
		m.logger.Warn("qsm: decode channel full, dropping")
	}
}

// Stop cancels a running QSO without emitting a terminal event. It exists
// for instance teardown, not for normal QSO completion.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Machine) run(ctx context.Context) {
	m.enterCalling(ctx)

	for {
		state := m.State()
		switch state {
		case StateComplete:
			m.finish(Event{Kind: EventComplete})
			return
		case StateFailed:
			m.finish(Event{Kind: EventFailed, Reason: ReasonMaxRetries})
			return
		}

		timer := time.NewTimer(m.cfg.StateTimeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case d := <-m.decodeCh:
			timer.Stop()
			m.onDecode(ctx, d)
		case <-timer.C:
			m.onTimeout(ctx)
		}
	}
}

func (m *Machine) finish(ev Event) {
	m.mu.Lock()
	m.running = false
	ev.QSOID = m.qsoID
	m.mu.Unlock()
	select {
	case m.events <- ev:
	default:
	}
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// resetRetries is called whenever the QSO advances to a new phase on
// matched progress, so each phase gets its own max_retries budget rather
// than sharing one counter across the whole lifecycle (spec.md §4.8's
// per-row "re-send up to max_retries").
func (m *Machine) resetRetries() {
	m.mu.Lock()
	m.retries = 0
	m.mu.Unlock()
}

func (m *Machine) enterCalling(ctx context.Context) {
	m.setState(StateCalling)
	text := fmt.Sprintf("CQ %s %s", m.cfg.MyCall, m.cfg.MyGrid)
	if err := m.tx.SendFreeText(ctx, text); err != nil {
		m.logger.Warn("qsm: failed to send CQ", "error", err)
	}
}

func (m *Machine) enterSendingReport(ctx context.Context, d Decode) {
	m.setState(StateSendingReport)
	m.mu.Lock()
	m.lastDecode = &d
	m.mu.Unlock()
	report := formatSNR(d.SNRDb)
	message := fmt.Sprintf("%s %s %s", m.cfg.MyCall, m.cfg.TargetCall, report)
	if err := m.tx.SendReply(ctx, d, message); err != nil {
		m.logger.Warn("qsm: failed to send report", "error", err)
	}
}

func (m *Machine) enterSendingConfirm(ctx context.Context, d Decode) {
	m.setState(StateSendingConfirm)
	m.mu.Lock()
	m.lastDecode = &d
	m.mu.Unlock()
	message := fmt.Sprintf("%s %s RR73", m.cfg.MyCall, m.cfg.TargetCall)
	if err := m.tx.SendReply(ctx, d, message); err != nil {
		m.logger.Warn("qsm: failed to send RR73", "error", err)
	}
}

func formatSNR(snr int32) string {
	if snr >= 0 {
		return fmt.Sprintf("+%02d", snr)
	}
	return fmt.Sprintf("-%02d", -snr)
}

// onDecode matches the decode against the pattern for the current state
// and advances, re-sends, or leaves the state unchanged (spec.md §4.8).
func (m *Machine) onDecode(ctx context.Context, d Decode) {
	state := m.State()
	tokens := tokenize(d.Text)

	switch state {
	case StateCalling, StateWaitingReply:
		if matchesCallExchange(tokens, m.cfg.MyCall, m.cfg.TargetCall) {
			m.resetRetries()
			m.enterSendingReport(ctx, d)
		} else {
			m.setState(StateWaitingReply)
		}
	case StateSendingReport, StateWaitingReport:
		if matchesReportExchange(tokens, m.cfg.MyCall, m.cfg.TargetCall) {
			m.resetRetries()
			m.enterSendingConfirm(ctx, d)
		} else {
			m.setState(StateWaitingReport)
		}
	case StateSendingConfirm, StateWaitingFinal:
		if matchesFinalExchange(tokens, m.cfg.MyCall, m.cfg.TargetCall) {
			m.setState(StateComplete)
		} else {
			m.setState(StateWaitingFinal)
		}
	}
}

// onTimeout re-sends the current state's transmission up to MaxRetries,
// then fails (spec.md §4.8's timeout column).
func (m *Machine) onTimeout(ctx context.Context) {
	state := m.State()

	m.mu.Lock()
	m.retries++
	retries := m.retries
	m.mu.Unlock()

	if retries >= m.cfg.MaxRetries {
		m.setState(StateFailed)
		return
	}

	m.mu.Lock()
	last := m.lastDecode
	m.mu.Unlock()

	switch state {
	case StateCalling, StateWaitingReply:
		m.enterCalling(ctx)
	case StateSendingReport, StateWaitingReport:
		if last != nil {
			m.enterSendingReport(ctx, *last)
		} else {
			m.setState(StateFailed)
		}
	case StateSendingConfirm:
		if last != nil {
			m.enterSendingConfirm(ctx, *last)
		} else {
			m.setState(StateFailed)
		}
	case StateWaitingFinal:
		// Tolerant: a missed final confirmation still counts as a completed QSO.
		m.setState(StateComplete)
	default:
		m.setState(StateFailed)
	}
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToUpper(text))
}

var suffixStrip = regexp.MustCompile(`/(P|M|MM|QRP|[0-9])$`)

func normalizeCall(call string) string {
	call = strings.ToUpper(strings.TrimSpace(call))
	return suffixStrip.ReplaceAllString(call, "")
}

var reportPattern = regexp.MustCompile(`^R?[+-]\d{1,2}$`)

// Decoded station-to-station exchanges are addressed target-first, own
// call second (e.g. "DL1XYZ W1ABC -05" when we are W1ABC working DL1XYZ),
// per spec.md §8 scenario 3.
func matchesCallExchange(tokens []string, myCall, targetCall string) bool {
	if len(tokens) < 2 {
		return false
	}
	a, b := normalizeCall(tokens[0]), normalizeCall(tokens[1])
	return a == normalizeCall(targetCall) && b == normalizeCall(myCall)
}

func matchesReportExchange(tokens []string, myCall, targetCall string) bool {
	if len(tokens) < 3 {
		return false
	}
	a, b := normalizeCall(tokens[0]), normalizeCall(tokens[1])
	if a != normalizeCall(targetCall) || b != normalizeCall(myCall) {
		return false
	}
	for _, tok := range tokens[2:] {
		if reportPattern.MatchString(tok) {
			return true
		}
	}
	return false
}

func matchesFinalExchange(tokens []string, myCall, targetCall string) bool {
	if len(tokens) < 3 {
		return false
	}
	a, b := normalizeCall(tokens[0]), normalizeCall(tokens[1])
	if a != normalizeCall(targetCall) || b != normalizeCall(myCall) {
		return false
	}
	for _, tok := range tokens[2:] {
		if tok == "73" || tok == "RR73" {
			return true
		}
	}
	return false
}
