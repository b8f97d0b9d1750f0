// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package push uploads pending local changes to the remote object store.
//
// A push run reads the ready change set from the ledger, arranges it into a
// dependency forest ([graph]) and walks that forest depth first. Nodes are
// packed into size and count bounded changeset batches; objects carrying a
// file go through the single-record path instead. Batches are strictly
// sequential: a batch is planned only after the result of the previous one
// has been committed, so later batches can reference earlier creations by
// remote id.
package push

import (
	"time"

	"github.com/MKhiriev/go-cache-sync/models"
)

// FileMode selects how a created object travels with its file.
type FileMode int

const (
	// FileFollowUp creates the bare object first and uploads the file with
	// a separate file update.
	FileFollowUp FileMode = iota
	// FileWithEntity sends the object and its file in one request.
	FileWithEntity
)

// FilePolicy decides the file mode from the server capabilities.
type FilePolicy interface {
	FileMode(caps models.ServerCapabilities) FileMode
}

// FilePolicyFunc adapts a function to [FilePolicy].
type FilePolicyFunc func(caps models.ServerCapabilities) FileMode

// FileMode calls f.
func (f FilePolicyFunc) FileMode(caps models.ServerCapabilities) FileMode {
	return f(caps)
}

// DefaultFilePolicy sends files with their entity whenever the server says
// it accepts them.
var DefaultFilePolicy FilePolicy = FilePolicyFunc(func(caps models.ServerCapabilities) FileMode {
	if caps.FileWithCreate {
		return FileWithEntity
	}
	return FileFollowUp
})

// Options tune one push run.
type Options struct {
	// MaxBatchSize is the estimated serialized size budget of a batch in
	// bytes. Zero means unbounded.
	MaxBatchSize int
	// MaxBatchInstances bounds the number of instance nodes in a batch,
	// existing anchors included. Zero means unbounded.
	MaxBatchInstances int
	// FailureStrategy is passed to the server with every batch.
	FailureStrategy models.FailureStrategy
	// Progress receives progress reports. May be nil.
	Progress models.ProgressSink
	// ProgressThrottle is the minimum interval between raw byte reports.
	ProgressThrottle time.Duration
}
