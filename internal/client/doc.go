// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package client implements the client process runtime.
//
// It runs the first sync in the terminal UI and then hands the cache over
// to the periodic sync job until the process is interrupted.
package client
