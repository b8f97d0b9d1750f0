// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package tui renders interactive sync runs in the terminal.
package tui

import (
	"context"
	"errors"

	"github.com/MKhiriev/go-cache-sync/models"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrUserQuit is returned when the user interrupts a sync from the UI.
var ErrUserQuit = errors.New("sync interrupted by user")

// SyncFunc is a sync run reporting progress to sink.
type SyncFunc func(ctx context.Context, sink models.ProgressSink) (models.SyncResult, error)

// TUI runs sync screens on the terminal.
type TUI struct {
	buildInfo models.AppBuildInfo
	options   []tea.ProgramOption
}

// New creates a TUI showing buildInfo in its footer.
func New(buildInfo models.AppBuildInfo, options ...tea.ProgramOption) *TUI {
	return &TUI{buildInfo: buildInfo, options: options}
}

// SyncFlow runs fn while rendering its progress. It blocks until fn has
// returned and the user has left the screen. Quitting early cancels fn and
// returns [ErrUserQuit].
func (t *TUI) SyncFlow(ctx context.Context, title string, fn SyncFunc) (models.SyncResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newSyncModel(title, t.buildInfo), t.options...)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		result, err := fn(ctx, func(pr models.Progress) { p.Send(progressMsg(pr)) })
		p.Send(syncDoneMsg{result: result, err: err})
	}()

	finalModel, runErr := p.Run()
	cancel()
	<-finished
	if runErr != nil {
		return models.SyncResult{}, runErr
	}

	result, ok := finalModel.(syncModel)
	if !ok {
		return models.SyncResult{}, tea.ErrProgramKilled
	}
	if result.quitByUser && !result.done {
		return models.SyncResult{}, ErrUserQuit
	}
	return result.result, result.err
}
