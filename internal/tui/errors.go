// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package tui

import (
	"context"
	"errors"

	"github.com/MKhiriev/go-cache-sync/internal/adapter"
)

func humanizeSyncError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, adapter.ErrExpiredToken):
		return "Access token expired, sign in again"
	case errors.Is(err, adapter.ErrConnection):
		return "Server unavailable or no network"
	case errors.Is(err, context.Canceled):
		return "Sync cancelled"
	default:
		return err.Error()
	}
}
