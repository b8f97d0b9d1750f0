// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package refresh

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MKhiriev/go-cache-sync/internal/adapter"
	"github.com/MKhiriev/go-cache-sync/internal/failure"
	"github.com/MKhiriev/go-cache-sync/internal/ledger"
	"github.com/MKhiriev/go-cache-sync/internal/logger"
	"github.com/MKhiriev/go-cache-sync/internal/progress"
	"github.com/MKhiriev/go-cache-sync/internal/telemetry"
	"github.com/MKhiriev/go-cache-sync/internal/utils"
	"github.com/MKhiriev/go-cache-sync/internal/workers"
	"github.com/MKhiriev/go-cache-sync/models"
)

// Progress labels.
const (
	refreshLabel = "refresh"
	filesLabel   = "files"
)

// Frontier runs refreshes of one local cache.
type Frontier struct {
	ledger    *ledger.Ledger
	adapter   adapter.ServerAdapter
	pool      *workers.Pool
	providers []QueryProvider
	filesDir  string
	names     *utils.UUIDGenerator
	metrics   *telemetry.SyncMetrics
}

// NewFrontier creates a refresh frontier. Downloaded files are stored in
// filesDir under generated names; metrics may be nil.
func NewFrontier(l *ledger.Ledger, a adapter.ServerAdapter, pool *workers.Pool, filesDir string, metrics *telemetry.SyncMetrics, providers ...QueryProvider) *Frontier {
	return &Frontier{
		ledger:    l,
		adapter:   a,
		pool:      pool,
		providers: providers,
		filesDir:  filesDir,
		names:     utils.NewUUIDGenerator(),
		metrics:   metrics,
	}
}

// Refresh re-validates everything reachable from req.
//
// Per-instance and per-query problems are reported in the result. The
// error is set when the run stopped early: ctx was cancelled, the server
// could not be reached, or the local cache failed.
func (f *Frontier) Refresh(ctx context.Context, req Request, opts Options) (models.SyncResult, error) {
	log := logger.FromContext(ctx)
	started := time.Now()

	r := f.newRun(opts, refreshLabel, int64(len(req.Seeds)+len(req.Queries)))

	err := r.refreshSeeds(ctx, req.Seeds)
	if err == nil {
		for _, q := range req.Queries {
			r.enqueue(q, true)
		}
		err = r.expand(ctx)
	}
	if err == nil {
		err = r.prune(ctx)
	}

	if waitErr := r.downloads.Wait(); err == nil && waitErr != nil {
		err = waitErr
	}

	result := r.snapshot()
	f.metrics.RecordRefresh(ctx, time.Since(started), int(r.requests.Load()), int(r.transfers.Load()), result.Failures)

	if err != nil {
		log.Warn().Err(err).Str("func", "refresh.Frontier.Refresh").Msg("refresh stopped")
		return result, err
	}

	log.Info().
		Str("func", "refresh.Frontier.Refresh").
		Int("instances", len(r.seen)).
		Int64("requests", r.requests.Load()).
		Int("failures", len(result.Failures)).
		Msg("refresh finished")

	return result, nil
}

// CacheFiles downloads the files of keys. tokens, keyed by local id, may
// cancel single transfers.
func (f *Frontier) CacheFiles(ctx context.Context, keys []models.EntityKey, tokens map[int64]*models.FileToken, opts Options) (models.SyncResult, error) {
	started := time.Now()
	r := f.newRun(opts, filesLabel, 0)

	insts, err := r.load(ctx, keys)
	if err != nil {
		return models.SyncResult{}, err
	}
	for _, inst := range insts {
		r.download(ctx, inst, tokens[inst.Key.ID])
	}

	err = r.downloads.Wait()
	result := r.snapshot()
	f.metrics.RecordRefresh(ctx, time.Since(started), 0, int(r.transfers.Load()), result.Failures)
	return result, err
}

// ── Run ──

type entity struct {
	id        int64
	recursive bool
}

type run struct {
	f   *Frontier
	agg *progress.Aggregator

	queue    []models.QueryRequest
	entities []entity

	seen        map[int64]struct{}
	seenQueries map[string]struct{}
	candidates  map[int64]struct{}

	downloads *workers.Group
	requests  atomic.Int64
	transfers atomic.Int64

	mu     sync.Mutex
	result models.SyncResult
}

func (f *Frontier) newRun(opts Options, label string, total int64) *run {
	r := &run{
		f:           f,
		agg:         progress.New(opts.Progress, opts.ProgressThrottle),
		seen:        make(map[int64]struct{}),
		seenQueries: make(map[string]struct{}),
		candidates:  make(map[int64]struct{}),
		downloads:   f.pool.Group(),
	}
	r.agg.Start(label, total)
	return r
}

func (r *run) fail(inst models.Instance, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Add(failure.New(inst, err))
}

func (r *run) snapshot() models.SyncResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.SyncResult{Failures: append([]models.FailureRecord(nil), r.result.Failures...)}
}

// enqueue schedules a query unless its response key was already handled in
// this run. Queries known when the run started are already counted.
func (r *run) enqueue(q models.QueryRequest, counted bool) {
	key := q.Key.String()
	if _, ok := r.seenQueries[key]; ok {
		if counted {
			r.agg.InstanceDone(1)
		}
		return
	}
	r.seenQueries[key] = struct{}{}

	if !counted {
		r.agg.AddTotal(1)
	}
	r.queue = append(r.queue, q)
}

// reach schedules instances for expansion. Instances already reached in
// this run are skipped.
func (r *run) reach(ids []int64, recursive bool) {
	for _, id := range ids {
		if _, ok := r.seen[id]; ok {
			continue
		}
		r.seen[id] = struct{}{}
		r.agg.AddTotal(1)
		r.entities = append(r.entities, entity{id: id, recursive: recursive})
	}
}

// expand runs the worklist until no query and no instance is left.
func (r *run) expand(ctx context.Context) error {
	for len(r.queue) > 0 || len(r.entities) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		if len(r.queue) > 0 {
			q := r.queue[0]
			r.queue = r.queue[1:]

			members, err := r.execute(ctx, q)
			if err != nil {
				return err
			}
			r.reach(members, q.Recursive)
			r.agg.InstanceDone(1)
			continue
		}

		e := r.entities[0]
		r.entities = r.entities[1:]
		if err := r.offer(ctx, e); err != nil {
			return err
		}
		r.agg.InstanceDone(1)
	}
	return nil
}

// offer asks every provider about one instance.
func (r *run) offer(ctx context.Context, e entity) error {
	insts, err := r.load(ctx, []models.EntityKey{{ID: e.id}})
	if err != nil {
		return err
	}
	if len(insts) == 0 {
		// removed earlier in this run
		return nil
	}
	inst := insts[0]

	var need models.FileNeed
	for _, p := range r.f.providers {
		if e.recursive {
			for _, q := range p.Queries(ctx, inst) {
				r.enqueue(q, false)
			}
		}

		n := p.FileNeed(ctx, inst)
		if n.Required {
			need.Required = true
			if need.Token == nil {
				need.Token = n.Token
			}
		}
	}

	if need.Required {
		r.download(ctx, inst, need.Token)
	}
	return nil
}

func (r *run) load(ctx context.Context, keys []models.EntityKey) ([]models.Instance, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, k.ID)
	}

	var insts []models.Instance
	err := r.f.ledger.Transact(ctx, func(ctx context.Context, tx *ledger.Tx) error {
		var err error
		insts, err = tx.InstancesByIDs(ctx, ids)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load instances: %w", err)
	}
	return insts, nil
}

// ── Seeds ──

// refreshSeeds reads the seed instances again, one query per class
// filtered by remote id. Seeds missing from the answer are checked one by
// one.
func (r *run) refreshSeeds(ctx context.Context, keys []models.EntityKey) error {
	insts, err := r.load(ctx, keys)
	if err != nil {
		return err
	}

	// unknown seeds are done right away
	if missing := len(keys) - len(insts); missing > 0 {
		r.agg.InstanceDone(int64(missing))
	}

	type group struct {
		schema, class string
		insts         []models.Instance
	}
	groups := make(map[string]*group)
	var order []string
	var local []models.Instance

	for _, inst := range insts {
		if !inst.Remote.IsSynced() {
			local = append(local, inst)
			continue
		}
		name := inst.Remote.Schema + "." + inst.Key.Class
		g, ok := groups[name]
		if !ok {
			g = &group{schema: inst.Remote.Schema, class: inst.Key.Class}
			groups[name] = g
			order = append(order, name)
		}
		g.insts = append(g.insts, inst)
	}
	sort.Strings(order)

	var alive []int64
	for _, inst := range local {
		alive = append(alive, inst.Key.ID)
	}

	for _, name := range order {
		g := groups[name]
		ids, err := r.refreshGroup(ctx, g.schema, g.class, g.insts)
		if err != nil {
			return err
		}
		alive = append(alive, ids...)
	}

	// seeds are already counted: reach them without growing the total
	removed := len(insts) - len(alive)
	if removed > 0 {
		r.agg.InstanceDone(int64(removed))
	}
	for _, id := range alive {
		if _, ok := r.seen[id]; ok {
			r.agg.InstanceDone(1)
			continue
		}
		r.seen[id] = struct{}{}
		r.entities = append(r.entities, entity{id: id, recursive: true})
	}
	return nil
}

// refreshGroup refreshes seeds of one class and returns the local ids of
// the seeds still cached.
func (r *run) refreshGroup(ctx context.Context, schema, class string, insts []models.Instance) ([]int64, error) {
	remoteIDs := make([]string, 0, len(insts))
	for _, inst := range insts {
		remoteIDs = append(remoteIDs, inst.Remote.ID)
	}

	q := models.Query{Schema: schema, Classes: []string{class}, Filter: models.IDsFilter(remoteIDs)}

	found := make(map[string]struct{}, len(insts))
	cursor := ""
	for {
		r.requests.Add(1)
		page, err := r.f.adapter.Query(ctx, q, "", cursor)
		if err != nil {
			if stop := r.stopping(ctx, err); stop != nil {
				return nil, stop
			}
			logger.FromContext(ctx).Warn().Err(err).Str("func", "refresh.run.refreshGroup").Str("query", q.String()).Msg("seed query failed, checking seeds one by one")
			break
		}

		if err = r.upsert(ctx, page.Instances); err != nil {
			return nil, err
		}
		for _, ri := range page.Instances {
			found[ri.Ref.ID] = struct{}{}
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	var alive []int64
	for _, inst := range insts {
		if _, ok := found[inst.Remote.ID]; ok {
			alive = append(alive, inst.Key.ID)
			continue
		}
		ok, err := r.check(ctx, inst)
		if err != nil {
			return nil, err
		}
		if ok {
			alive = append(alive, inst.Key.ID)
		}
	}
	return alive, nil
}

// check reads a single instance from the server. It re-fetches the
// instance when it is still accessible and removes it when it is gone.
// It reports whether the instance is still cached.
func (r *run) check(ctx context.Context, inst models.Instance) (bool, error) {
	r.requests.Add(1)
	ri, err := r.f.adapter.GetObject(ctx, inst.Remote)
	if err == nil {
		return true, r.upsert(ctx, []models.RemoteInstance{ri})
	}

	if stop := r.stopping(ctx, err); stop != nil {
		return false, stop
	}

	if !failure.NoLongerAccessible(err) {
		r.fail(inst, err)
		return true, nil
	}

	r.fail(inst, err)
	if inst.HasPendingChange() {
		return true, nil
	}

	var dropped []int64
	err = r.f.ledger.Transact(ctx, func(ctx context.Context, tx *ledger.Tx) error {
		var err error
		dropped, err = tx.RemoveCached(ctx, inst.Key)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("remove %s: %w", inst.Key, err)
	}

	logger.FromContext(ctx).Debug().
		Str("func", "refresh.run.check").
		Stringer("key", inst.Key).
		Msg("instance no longer accessible, removed")

	r.addCandidates(dropped)
	return false, nil
}

func (r *run) upsert(ctx context.Context, instances []models.RemoteInstance) error {
	if len(instances) == 0 {
		return nil
	}
	err := r.f.ledger.Transact(ctx, func(ctx context.Context, tx *ledger.Tx) error {
		for _, ri := range instances {
			if _, err := tx.UpsertRemote(ctx, ri); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store instances: %w", err)
	}
	return nil
}

func (r *run) addCandidates(ids []int64) {
	for _, id := range ids {
		r.candidates[id] = struct{}{}
	}
}

// stopping returns the error that ends the run, or nil when err only
// concerns one request: cancellation and unreachable servers stop the run.
func (r *run) stopping(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, adapter.ErrConnection) {
		return err
	}
	return nil
}
