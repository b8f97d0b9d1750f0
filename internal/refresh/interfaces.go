// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package refresh re-validates a cached subtree against the server.
//
// A refresh run starts from seed instances and seed queries and expands
// them to a fixpoint: every query result is cached page by page under its
// response key, every newly reached instance is offered to the query
// providers, and the further queries they return are executed in turn.
// Files the providers ask for are downloaded on a bounded worker pool.
// Instances that dropped out of a refreshed response are pruned at the end.
package refresh

import (
	"context"
	"time"

	"github.com/MKhiriev/go-cache-sync/models"
)

// QueryProvider decides what else to cache for a cached instance.
// Implementations are called on the goroutine running the refresh and must
// not block on network calls.
type QueryProvider interface {
	// Queries returns the queries to run for inst. Their results are
	// cached under the returned response keys.
	Queries(ctx context.Context, inst models.Instance) []models.QueryRequest
	// FileNeed tells whether the file of inst should be downloaded.
	FileNeed(ctx context.Context, inst models.Instance) models.FileNeed
}

// Request lists the starting points of a refresh.
type Request struct {
	// Seeds are refreshed by remote id and expanded recursively.
	Seeds []models.EntityKey
	// Queries are executed as given.
	Queries []models.QueryRequest
}

// Options tune one refresh run.
type Options struct {
	// Progress receives progress reports. May be nil.
	Progress models.ProgressSink
	// ProgressThrottle is the minimum interval between raw byte reports.
	ProgressThrottle time.Duration
}
