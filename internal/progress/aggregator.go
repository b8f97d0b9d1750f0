// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package progress merges instance and byte progress of concurrent work into
// one stream of reports.
package progress

import (
	"sync"
	"time"

	"github.com/MKhiriev/go-cache-sync/models"
)

type fileCounter struct {
	current int64
	total   int64
}

// Aggregator turns record completions and raw transfer events into progress
// reports. It is safe for concurrent use; reports are delivered one at a
// time, never concurrently.
//
// The instance total only grows. It can be raised explicitly with AddTotal
// or implicitly when more instances complete than were announced.
type Aggregator struct {
	mu sync.Mutex

	sink     models.ProgressSink
	throttle time.Duration
	now      func() time.Time
	lastByte time.Time

	label          string
	instancesDone  int64
	instancesTotal int64
	files          map[string]fileCounter
}

// New creates an aggregator reporting to sink. Raw byte events closer than
// throttle to the previous one are dropped; a zero throttle forwards every
// event. A nil sink is allowed.
func New(sink models.ProgressSink, throttle time.Duration) *Aggregator {
	return &Aggregator{
		sink:     sink,
		throttle: throttle,
		now:      time.Now,
		files:    make(map[string]fileCounter),
	}
}

// Start announces the initial instance total and fires the zero report.
func (a *Aggregator) Start(label string, instancesTotal int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.label = label
	if instancesTotal > a.instancesTotal {
		a.instancesTotal = instancesTotal
	}
	a.emit(a.snapshot("", fileCounter{}))
}

// AddTotal raises the instance total by n without reporting.
func (a *Aggregator) AddTotal(n int64) {
	if n <= 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.instancesTotal += n
}

// InstanceDone records n completed instances, successful or not, and
// reports.
func (a *Aggregator) InstanceDone(n int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.instancesDone += n
	if a.instancesDone > a.instancesTotal {
		a.instancesTotal = a.instancesDone
	}
	a.emit(a.snapshot("", fileCounter{}))
}

// FileProgress forwards a raw transfer event of file id. The event is
// reported verbatim, including drops caused by a restarted transfer.
func (a *Aggregator) FileProgress(id string, current, total int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	prev := a.files[id]
	counter := fileCounter{current: current, total: max(total, prev.total)}
	a.files[id] = counter

	final := total > 0 && current >= total
	now := a.now()
	if !final && a.throttle > 0 && !a.lastByte.IsZero() && now.Sub(a.lastByte) < a.throttle {
		return
	}
	a.lastByte = now

	a.emit(a.snapshot(id, fileCounter{current: current, total: total}))
}

// TransferProgress returns a callback feeding FileProgress for file id.
func (a *Aggregator) TransferProgress(id string) models.TransferProgress {
	return func(current, total int64) {
		a.FileProgress(id, current, total)
	}
}

// Snapshot returns the current state without reporting it.
func (a *Aggregator) Snapshot() models.Progress {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.snapshot("", fileCounter{})
}

func (a *Aggregator) snapshot(file string, fc fileCounter) models.Progress {
	var bytesDone, bytesTotal int64
	for _, f := range a.files {
		bytesTotal += f.total
		bytesDone += min(max(f.current, 0), f.total)
	}

	p := models.Progress{
		Instances:   models.Counter{Current: a.instancesDone, Total: a.instancesTotal},
		Bytes:       models.Counter{Current: bytesDone, Total: bytesTotal},
		CurrentFile: file,
		File:        models.Counter{Current: fc.current, Total: fc.total},
		Label:       a.label,
	}

	switch {
	case a.instancesTotal > 0:
		p.Fraction = float64(a.instancesDone) / float64(a.instancesTotal)
	case bytesTotal > 0:
		p.Fraction = float64(bytesDone) / float64(bytesTotal)
	}

	return p
}

func (a *Aggregator) emit(p models.Progress) {
	if a.sink != nil {
		a.sink(p)
	}
}
