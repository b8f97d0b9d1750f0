// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import "errors"

// ErrSyncInProgress is returned when a sync run is requested while another
// one has not finished yet.
var ErrSyncInProgress = errors.New("sync already in progress")
