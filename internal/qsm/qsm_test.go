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

package qsm_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/n5dr/shackctl/internal/qsm"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingTransmitter struct {
	mu        sync.Mutex
	freeTexts []string
	replies   []string
}

func (r *recordingTransmitter) SendFreeText(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.freeTexts = append(r.freeTexts, text)
	return nil
}

func (r *recordingTransmitter) SendReply(_ context.Context, _ qsm.Decode, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, message)
	return nil
}

func (r *recordingTransmitter) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.freeTexts...), append([]string(nil), r.replies...)
}

func TestQSOHappyPath(t *testing.T) {
	tx := &recordingTransmitter{}
	m := qsm.New(qsm.Config{
		MyCall:       "W1ABC",
		TargetCall:   "DL1XYZ",
		MyGrid:       "FN20",
		StateTimeout: time.Minute,
		MaxRetries:   3,
	}, tx, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))
	require.NotEmpty(t, m.QSOID())

	require.Eventually(t, func() bool {
		free, _ := tx.snapshot()
		return len(free) == 1
	}, time.Second, 5*time.Millisecond)
	free, _ := tx.snapshot()
	require.Equal(t, "CQ W1ABC FN20", free[0])

	m.Decode(qsm.Decode{Text: "DL1XYZ W1ABC -05", SNRDb: -5})
	require.Eventually(t, func() bool {
		_, replies := tx.snapshot()
		return len(replies) == 1
	}, time.Second, 5*time.Millisecond)
	_, replies := tx.snapshot()
	require.Equal(t, "W1ABC DL1XYZ -05", replies[0])
	require.Equal(t, qsm.StateSendingReport, m.State())

	m.Decode(qsm.Decode{Text: "DL1XYZ W1ABC R-07", SNRDb: -7})
	require.Eventually(t, func() bool {
		_, replies := tx.snapshot()
		return len(replies) == 2
	}, time.Second, 5*time.Millisecond)
	_, replies = tx.snapshot()
	require.Equal(t, "W1ABC DL1XYZ RR73", replies[1])
	require.Equal(t, qsm.StateSendingConfirm, m.State())

	m.Decode(qsm.Decode{Text: "DL1XYZ W1ABC 73", SNRDb: -7})
	select {
	case ev := <-m.Events():
		require.Equal(t, qsm.EventComplete, ev.Kind)
		require.Equal(t, m.QSOID(), ev.QSOID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for qso-complete")
	}
}

func TestQSOTimesOutAfterMaxRetries(t *testing.T) {
	tx := &recordingTransmitter{}
	m := qsm.New(qsm.Config{
		MyCall:       "W1ABC",
		TargetCall:   "DL1XYZ",
		MyGrid:       "FN20",
		StateTimeout: 20 * time.Millisecond,
		MaxRetries:   3,
	}, tx, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))

	select {
	case ev := <-m.Events():
		require.Equal(t, qsm.EventFailed, ev.Kind)
		require.Equal(t, qsm.ReasonMaxRetries, ev.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for qso-failed")
	}

	free, _ := tx.snapshot()
	require.GreaterOrEqual(t, len(free), 3)
}

func TestSendingConfirmResendsRR73OnTimeoutThenFails(t *testing.T) {
	tx := &recordingTransmitter{}
	m := qsm.New(qsm.Config{
		MyCall:       "W1ABC",
		TargetCall:   "DL1XYZ",
		MyGrid:       "FN20",
		StateTimeout: 20 * time.Millisecond,
		MaxRetries:   3,
	}, tx, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))

	m.Decode(qsm.Decode{Text: "DL1XYZ W1ABC -05", SNRDb: -5})
	require.Eventually(t, func() bool {
		return m.State() == qsm.StateSendingReport
	}, time.Second, 5*time.Millisecond)

	m.Decode(qsm.Decode{Text: "DL1XYZ W1ABC R-07", SNRDb: -7})
	require.Eventually(t, func() bool {
		return m.State() == qsm.StateSendingConfirm
	}, time.Second, 5*time.Millisecond)

	select {
	case ev := <-m.Events():
		require.Equal(t, qsm.EventFailed, ev.Kind)
		require.Equal(t, qsm.ReasonMaxRetries, ev.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for qso-failed")
	}

	_, replies := tx.snapshot()
	var rr73 int
	for _, r := range replies {
		if r == "W1ABC DL1XYZ RR73" {
			rr73++
		}
	}
	require.GreaterOrEqual(t, rr73, 2, "RR73 must be re-sent on timeout, not just sent once")
}

func TestWaitingFinalTimeoutCompletesTolerantly(t *testing.T) {
	tx := &recordingTransmitter{}
	m := qsm.New(qsm.Config{
		MyCall:       "W1ABC",
		TargetCall:   "DL1XYZ",
		MyGrid:       "FN20",
		StateTimeout: 20 * time.Millisecond,
		MaxRetries:   3,
	}, tx, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))

	m.Decode(qsm.Decode{Text: "DL1XYZ W1ABC -05", SNRDb: -5})
	require.Eventually(t, func() bool {
		return m.State() == qsm.StateSendingReport
	}, time.Second, 5*time.Millisecond)

	m.Decode(qsm.Decode{Text: "DL1XYZ W1ABC R-07", SNRDb: -7})
	require.Eventually(t, func() bool {
		return m.State() == qsm.StateSendingConfirm
	}, time.Second, 5*time.Millisecond)

	// An unmatched decode moves SendingConfirm to WaitingFinal; from there a
	// timeout is tolerant-complete, not a re-send, per spec.md §4.8.
	m.Decode(qsm.Decode{Text: "SOME OTHER QSO", SNRDb: -5})
	require.Eventually(t, func() bool {
		return m.State() == qsm.StateWaitingFinal
	}, time.Second, 5*time.Millisecond)

	select {
	case ev := <-m.Events():
		require.Equal(t, qsm.EventComplete, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for qso-complete")
	}
}

func TestStartRejectsConcurrentQSO(t *testing.T) {
	tx := &recordingTransmitter{}
	m := qsm.New(qsm.Config{
		MyCall:     "W1ABC",
		TargetCall: "DL1XYZ",
		MyGrid:     "FN20",
	}, tx, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))
	err := m.Start(ctx)
	require.ErrorIs(t, err, qsm.ErrQSOInProgress)
}

func TestCallsignSuffixIsIgnoredInMatching(t *testing.T) {
	tx := &recordingTransmitter{}
	m := qsm.New(qsm.Config{
		MyCall:       "W1ABC",
		TargetCall:   "DL1XYZ",
		MyGrid:       "FN20",
		StateTimeout: time.Minute,
	}, tx, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))

	m.Decode(qsm.Decode{Text: "DL1XYZ/P W1ABC -05", SNRDb: -5})
	require.Eventually(t, func() bool {
		return m.State() == qsm.StateSendingReport
	}, time.Second, 5*time.Millisecond)
}
