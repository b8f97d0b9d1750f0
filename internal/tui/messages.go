// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package tui

import "github.com/MKhiriev/go-cache-sync/models"

type progressMsg models.Progress

type syncDoneMsg struct {
	result models.SyncResult
	err    error
}
