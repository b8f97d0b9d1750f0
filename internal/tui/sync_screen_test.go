// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package tui

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/MKhiriev/go-cache-sync/internal/adapter"
	"github.com/MKhiriev/go-cache-sync/models"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBuildInfo = models.NewAppBuildInfo("1.2.0", "2026-10-01", "abc123")

func update(t *testing.T, m syncModel, msg tea.Msg) (syncModel, tea.Cmd) {
	t.Helper()

	next, cmd := m.Update(msg)
	out, ok := next.(syncModel)
	require.True(t, ok)
	return out, cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

// ── Progress ──

func TestSyncModel_RendersProgress(t *testing.T) {
	m := newSyncModel("Sync", testBuildInfo)

	m, cmd := update(t, m, progressMsg{
		Label:       "refresh",
		Fraction:    0.5,
		Instances:   models.Counter{Current: 3, Total: 6},
		Bytes:       models.Counter{Current: 2048, Total: 4096},
		CurrentFile: "Photo:7",
		File:        models.Counter{Current: 1024, Total: 2048},
	})
	assert.Nil(t, cmd)

	view := m.View()
	assert.Contains(t, view, "Sync")
	assert.Contains(t, view, "refresh")
	assert.Contains(t, view, "Instances: 3 / 6")
	assert.Contains(t, view, "Transferred: 2.0 KiB / 4.0 KiB")
	assert.Contains(t, view, "File: Photo:7")
	assert.Contains(t, view, "go-cache-sync 1.2.0 (abc123, 2026-10-01)")
	assert.Contains(t, view, "q: interrupt")
}

func TestSyncModel_HidesByteCountersWithoutFiles(t *testing.T) {
	m := newSyncModel("Sync", testBuildInfo)
	m, _ = update(t, m, progressMsg{Label: "push", Instances: models.Counter{Current: 1, Total: 2}})

	view := m.View()
	assert.Contains(t, view, "Instances: 1 / 2")
	assert.NotContains(t, view, "Transferred")
	assert.NotContains(t, view, "File:")
}

// ── Completion ──

func TestSyncModel_Done(t *testing.T) {
	tests := []struct {
		name   string
		result models.SyncResult
		err    error
		want   string
	}{
		{name: "ok", want: "Sync complete"},
		{
			name: "failures",
			result: models.SyncResult{Failures: []models.FailureRecord{{
				Key:      models.EntityKey{Class: "Plant", ID: 4},
				Kind:     models.KindReceived,
				ServerID: "NotEnoughRights",
				Message:  "no rights",
			}}},
			want: "Plant:4 received_error NotEnoughRights: no rights",
		},
		{name: "connection", err: fmt.Errorf("refresh: %w", adapter.ErrConnection), want: "Server unavailable or no network"},
		{name: "expired token", err: adapter.ErrExpiredToken, want: "Access token expired"},
		{name: "other", err: errors.New("disk full"), want: "Sync stopped: disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newSyncModel("Sync", testBuildInfo)

			m, cmd := update(t, m, syncDoneMsg{result: tt.result, err: tt.err})
			assert.False(t, isQuit(cmd))
			assert.True(t, m.done)

			view := m.View()
			assert.Contains(t, view, tt.want)
			assert.Contains(t, view, "enter / esc / q: close")
		})
	}
}

func TestSyncModel_TruncatesFailureList(t *testing.T) {
	var result models.SyncResult
	for i := 0; i < maxShownFailures+3; i++ {
		result.Add(models.FailureRecord{Key: models.EntityKey{Class: "Plant", ID: int64(i + 1)}, Kind: models.KindDependencyNotSynced})
	}

	m := newSyncModel("Sync", testBuildInfo)
	m, _ = update(t, m, syncDoneMsg{result: result})

	view := m.View()
	assert.Contains(t, view, "Sync finished with 13 failures")
	assert.Contains(t, view, "... 3 more")
	assert.Equal(t, maxShownFailures, strings.Count(view, "dependency_not_synced"))
}

func TestSyncModel_RemotePreferredInFailure(t *testing.T) {
	line := renderFailure(models.FailureRecord{
		Key:    models.EntityKey{Class: "Plant", ID: 4},
		Remote: models.RemoteRef{Schema: "Garden", Class: "Plant", ID: "r-4"},
		Kind:   models.KindConnection,
	})
	assert.Equal(t, "Garden.Plant:r-4 connection_error", line)
}

// ── Keys ──

func TestSyncModel_Keys(t *testing.T) {
	t.Run("quit while running", func(t *testing.T) {
		m := newSyncModel("Sync", testBuildInfo)
		m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
		assert.True(t, m.quitByUser)
		assert.True(t, isQuit(cmd))
	})

	t.Run("enter ignored while running", func(t *testing.T) {
		m := newSyncModel("Sync", testBuildInfo)
		_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
		assert.Nil(t, cmd)
	})

	t.Run("enter closes summary", func(t *testing.T) {
		m := newSyncModel("Sync", testBuildInfo)
		m, _ = update(t, m, syncDoneMsg{})
		_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
		assert.True(t, isQuit(cmd))
	})

	t.Run("esc closes summary", func(t *testing.T) {
		m := newSyncModel("Sync", testBuildInfo)
		m, _ = update(t, m, syncDoneMsg{})
		_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
		assert.True(t, isQuit(cmd))
	})
}

// ── Helpers ──

func TestHumanizeBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{in: 0, want: "0 B"},
		{in: 1023, want: "1023 B"},
		{in: 1024, want: "1.0 KiB"},
		{in: 1536, want: "1.5 KiB"},
		{in: 5 * 1024 * 1024, want: "5.0 MiB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, humanizeBytes(tt.in))
		})
	}
}

func TestFitText(t *testing.T) {
	assert.Equal(t, "short", fitText("short", 10))
	assert.Equal(t, "long te...", fitText("long text here", 10))
	assert.Equal(t, "lo", fitText("long", 2))
}

func TestValueOrNA(t *testing.T) {
	assert.Equal(t, "N/A", valueOrNA("  "))
	assert.Equal(t, "v1", valueOrNA(" v1 "))
}
