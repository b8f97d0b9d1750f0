// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package tui

import (
	"fmt"
	"strings"

	"github.com/MKhiriev/go-cache-sync/models"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// maxShownFailures bounds the failure list of the summary.
const maxShownFailures = 10

type syncModel struct {
	title     string
	buildInfo models.AppBuildInfo

	spinner spinner.Model
	bar     progress.Model
	last    models.Progress

	done       bool
	quitByUser bool
	result     models.SyncResult
	err        error
}

func newSyncModel(title string, buildInfo models.AppBuildInfo) syncModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot

	return syncModel{
		title:     title,
		buildInfo: buildInfo,
		spinner:   s,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m syncModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m syncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.quit):
			m.quitByUser = true
			return m, tea.Quit
		case m.done && (key.Matches(msg, keys.enter) || key.Matches(msg, keys.esc)):
			return m, tea.Quit
		}
		return m, nil

	case progressMsg:
		m.last = models.Progress(msg)
		return m, nil

	case syncDoneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		if m.quitByUser {
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m syncModel) View() string {
	var b strings.Builder

	if m.done {
		b.WriteString(m.summary())
	} else {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(valueOrNA(m.last.Label))
		b.WriteString("\n\n")
		b.WriteString(m.bar.ViewAs(m.last.Fraction))
		b.WriteString("\n\n")
		b.WriteString(m.counters())
	}

	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render(renderBuildInfo(m.buildInfo)))

	hotKeys := "q: interrupt"
	if m.done {
		hotKeys = "enter / esc / q: close"
	}
	return renderPage(m.title, b.String(), hotKeys)
}

func (m syncModel) counters() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Instances: %d / %d", m.last.Instances.Current, m.last.Instances.Total)
	if m.last.Bytes.Total > 0 {
		fmt.Fprintf(&b, "\nTransferred: %s / %s", humanizeBytes(m.last.Bytes.Current), humanizeBytes(m.last.Bytes.Total))
	}
	if m.last.CurrentFile != "" {
		fmt.Fprintf(&b, "\nFile: %s (%s / %s)",
			fitText(m.last.CurrentFile, 40), humanizeBytes(m.last.File.Current), humanizeBytes(m.last.File.Total))
	}
	return b.String()
}

func (m syncModel) summary() string {
	var b strings.Builder

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("Sync stopped: " + humanizeSyncError(m.err)))
	case m.result.OK():
		b.WriteString(okStyle.Render("Sync complete"))
	default:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Sync finished with %d failures", len(m.result.Failures))))
	}

	for i, f := range m.result.Failures {
		if i == maxShownFailures {
			fmt.Fprintf(&b, "\n  ... %d more", len(m.result.Failures)-maxShownFailures)
			break
		}
		b.WriteString("\n  ")
		b.WriteString(renderFailure(f))
	}
	return b.String()
}

func renderFailure(f models.FailureRecord) string {
	name := f.Key.String()
	if f.Remote.IsSynced() {
		name = f.Remote.String()
	}

	line := name + " " + f.Kind.String()
	if f.ServerID != "" {
		line += " " + f.ServerID
	}
	if f.Message != "" {
		line += ": " + f.Message
	}
	return fitText(line, 100)
}
