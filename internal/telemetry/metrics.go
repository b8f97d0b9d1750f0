// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package telemetry provides OpenTelemetry instruments for sync runs.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MKhiriev/go-cache-sync/models"
)

// SyncMetricsMeterName is the name of the sync metrics meter.
const SyncMetricsMeterName = "github.com/MKhiriev/go-cache-sync/sync"

// Run kinds reported in the "run" attribute.
const (
	RunPush    = "push"
	RunRefresh = "refresh"
)

// SyncMetrics holds the instruments of push and refresh runs. A nil
// *SyncMetrics records nothing.
type SyncMetrics struct {
	duration  metric.Float64Histogram
	requests  metric.Int64Counter
	transfers metric.Int64Counter
	failures  metric.Int64Counter
}

// NewSyncMetrics creates the instruments on provider. If provider is nil,
// it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	duration, err := meter.Float64Histogram(
		"cache_sync_run_duration_seconds",
		metric.WithDescription("Duration of push and refresh runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	requests, err := meter.Int64Counter(
		"cache_sync_requests_total",
		metric.WithDescription("Changeset batches and queries sent by sync runs"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	transfers, err := meter.Int64Counter(
		"cache_sync_file_transfers_total",
		metric.WithDescription("File downloads completed by sync runs"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"cache_sync_failures_total",
		metric.WithDescription("Failure records reported by sync runs"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		duration:  duration,
		requests:  requests,
		transfers: transfers,
		failures:  failures,
	}, nil
}

// RecordPush records a finished push run.
func (m *SyncMetrics) RecordPush(ctx context.Context, duration time.Duration, batches int, failures []models.FailureRecord) {
	m.record(ctx, RunPush, duration, batches, 0, failures)
}

// RecordRefresh records a finished refresh run.
func (m *SyncMetrics) RecordRefresh(ctx context.Context, duration time.Duration, queries, downloads int, failures []models.FailureRecord) {
	m.record(ctx, RunRefresh, duration, queries, downloads, failures)
}

func (m *SyncMetrics) record(ctx context.Context, run string, duration time.Duration, requests, transfers int, failures []models.FailureRecord) {
	if m == nil {
		return
	}

	runAttr := attribute.String("run", run)

	m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		runAttr,
		attribute.Bool("success", len(failures) == 0),
	))
	m.requests.Add(ctx, int64(requests), metric.WithAttributes(runAttr))
	if transfers > 0 {
		m.transfers.Add(ctx, int64(transfers), metric.WithAttributes(runAttr))
	}

	byKind := make(map[models.ErrorKind]int64)
	for _, f := range failures {
		byKind[f.Kind]++
	}
	for kind, n := range byKind {
		m.failures.Add(ctx, n, metric.WithAttributes(runAttr, attribute.String("kind", kind.String())))
	}
}
