// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// Counter is a current/total pair.
type Counter struct {
	Current int64
	Total   int64
}

// Progress is one progress report of a push or refresh run.
type Progress struct {
	Fraction    float64
	Instances   Counter
	Bytes       Counter
	CurrentFile string
	File        Counter
	Label       string
}

// ProgressSink receives progress reports. Calls never overlap.
type ProgressSink func(Progress)

// TransferProgress receives raw byte progress of one file transfer.
type TransferProgress func(current, total int64)
