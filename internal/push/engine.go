// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package push

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/MKhiriev/go-cache-sync/internal/adapter"
	"github.com/MKhiriev/go-cache-sync/internal/failure"
	"github.com/MKhiriev/go-cache-sync/internal/ledger"
	"github.com/MKhiriev/go-cache-sync/internal/logger"
	"github.com/MKhiriev/go-cache-sync/internal/progress"
	"github.com/MKhiriev/go-cache-sync/internal/telemetry"
	"github.com/MKhiriev/go-cache-sync/models"
)

// progressLabel is reported with every push progress event.
const progressLabel = "push"

// Engine uploads the pending changes of one local cache. The server
// capability answer is cached for the lifetime of the engine.
type Engine struct {
	ledger  *ledger.Ledger
	adapter adapter.ServerAdapter
	policy  FilePolicy
	metrics *telemetry.SyncMetrics

	capsMu sync.Mutex
	caps   *models.ServerCapabilities
}

// NewEngine creates a push engine. A nil policy selects
// [DefaultFilePolicy]; metrics may be nil.
func NewEngine(l *ledger.Ledger, a adapter.ServerAdapter, policy FilePolicy, metrics *telemetry.SyncMetrics) *Engine {
	if policy == nil {
		policy = DefaultFilePolicy
	}
	return &Engine{ledger: l, adapter: a, policy: policy, metrics: metrics}
}

// Push uploads every ready pending change.
//
// Per-record problems are reported in the result and never returned as an
// error. The error is set only when the run itself stopped: ctx was
// cancelled or the local cache failed. Records not reached by then stay
// pending.
func (e *Engine) Push(ctx context.Context, opts Options) (models.SyncResult, error) {
	log := logger.FromContext(ctx)
	started := time.Now()

	cs, err := e.ledger.Changes(ctx)
	if err != nil {
		log.Err(err).Str("func", "push.Engine.Push").Msg("failed to read pending changes")
		return models.SyncResult{}, fmt.Errorf("read pending changes: %w", err)
	}

	agg := progress.New(opts.Progress, opts.ProgressThrottle)
	agg.Start(progressLabel, int64(cs.Len()))

	if cs.IsEmpty() {
		log.Debug().Str("func", "push.Engine.Push").Msg("nothing to push")
		return models.SyncResult{}, nil
	}

	r := newRun(e, buildGraph(cs), opts, agg)
	err = r.run(ctx)

	e.metrics.RecordPush(ctx, time.Since(started), r.batches, r.result.Failures)

	log.Info().
		Str("func", "push.Engine.Push").
		Int("records", cs.Len()).
		Int("batches", r.batches).
		Int("failures", len(r.result.Failures)).
		Msg("push finished")

	return r.result, err
}

// capabilities returns the capability answer, asking the server only once.
func (e *Engine) capabilities(ctx context.Context) (models.ServerCapabilities, error) {
	e.capsMu.Lock()
	defer e.capsMu.Unlock()

	if e.caps != nil {
		return *e.caps, nil
	}

	caps, err := e.adapter.Capabilities(ctx)
	if err != nil {
		return models.ServerCapabilities{}, fmt.Errorf("capability request: %w", err)
	}
	e.caps = &caps
	return caps, nil
}

// ── Run ──

type state int

const (
	pending state = iota
	synced
	failed
)

// run is the state of one push. It is only touched by the goroutine
// calling Push.
type run struct {
	e       *Engine
	g       *graph
	agg     *progress.Aggregator
	options *models.ChangesetOptions

	maxSize  int
	maxCount int
	envelope int

	nodeState  []state
	edgeState  []state
	looseState []state

	cur     *batch
	batches int
	result  models.SyncResult
}

func newRun(e *Engine, g *graph, opts Options, agg *progress.Aggregator) *run {
	var options *models.ChangesetOptions
	if opts.FailureStrategy != "" {
		options = &models.ChangesetOptions{FailureStrategy: opts.FailureStrategy}
	}

	r := &run{
		e:          e,
		g:          g,
		agg:        agg,
		options:    options,
		maxSize:    opts.MaxBatchSize,
		maxCount:   opts.MaxBatchInstances,
		envelope:   envelopeSize(options),
		nodeState:  make([]state, len(g.nodes)),
		edgeState:  make([]state, len(g.edges)),
		looseState: make([]state, len(g.loose)),
	}
	for n := range g.nodes {
		if g.nodes[n].anchor {
			r.nodeState[n] = synced
		}
	}
	r.cur = newBatch(r.envelope)
	return r
}

func (r *run) run(ctx context.Context) error {
	for _, rel := range r.g.unsendable {
		r.report(rel, fmt.Errorf("%w: endpoint of %s is not synced", failure.ErrDependencyNotSynced, rel.Key))
		r.agg.InstanceDone(1)
	}

	for _, root := range r.g.roots {
		if err := r.visit(ctx, root); err != nil {
			return err
		}
	}

	for i := range r.g.loose {
		if err := r.sendLoose(ctx, i); err != nil {
			return err
		}
	}

	return r.flush(ctx)
}

// visit walks the subtree of n in pre-order.
func (r *run) visit(ctx context.Context, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	nd := r.g.nodes[n]
	if nd.parent >= 0 && r.nodeState[nd.parent] == failed {
		r.block(n)
		return nil
	}

	if nd.inst.File.Status != models.NoChange {
		if err := r.uploadFileNode(ctx, n); err != nil {
			return err
		}
	} else if err := r.place(ctx, n, r.fragment(n, true)); err != nil {
		return err
	}

	for _, c := range nd.children {
		if r.g.nodes[c].anchor {
			continue
		}
		if err := r.visit(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// fragment renders node n. With anchors set, the unchanged synced
// endpoints of its created relationships travel with it as leaves.
func (r *run) fragment(n int, anchors bool) fragment {
	inst := r.g.nodes[n].inst

	root := &wireNode{node: n}
	switch {
	case r.g.nodes[n].anchor:
		root.inst = wireExisting(inst)
	case inst.Change.Status == models.NoChange:
		root.inst = wireExisting(inst)
	default:
		root.inst = wireChange(inst)
		root.record = record{kind: nodeRecord, idx: n}
	}

	f := fragment{root: root}
	f.addNode(root)

	if !anchors {
		return f
	}
	for _, c := range r.g.nodes[n].children {
		if !r.g.nodes[c].anchor {
			continue
		}
		f.addLink(root, r.viaLink(c))
	}
	return f
}

// viaLink renders the relationship linking n to its parent, as seen from
// the parent.
func (r *run) viaLink(n int) *wireLink {
	via := r.g.nodes[n].via
	e := r.g.edges[via]
	return &wireLink{
		rel:    wireRelationship(e.rel, e.direction),
		record: record{kind: edgeRecord, idx: via},
		target: &wireNode{node: n, inst: wireExisting(r.g.nodes[n].inst)},
	}
}

// place adds a fragment of node n to the current batch. A child goes below
// its parent when the parent is part of the batch; otherwise the synced
// ancestor chain is re-emitted in existing form to carry it.
func (r *run) place(ctx context.Context, n int, f fragment) error {
	nd := r.g.nodes[n]

	if nd.parent < 0 {
		if !r.fits(r.cur, f.size, f.count) {
			if err := r.flush(ctx); err != nil {
				return err
			}
		}
		if !r.fits(r.cur, f.size, f.count) {
			r.overBudget(ctx, n, f)
			return nil
		}
		r.cur.insert(f, nil, nil)
		return nil
	}

	link := r.viaLink(n)
	linkSize := sizeOf(link.rel)

	if parent, ok := r.cur.byNode[nd.parent]; ok {
		if r.fits(r.cur, f.size+linkSize, f.count) {
			r.cur.insert(f, parent, link)
			return nil
		}
		if err := r.flush(ctx); err != nil {
			return err
		}
		if r.nodeState[nd.parent] == failed {
			r.block(n)
			return nil
		}
	}

	if r.nodeState[nd.parent] != synced || !r.g.nodes[nd.parent].inst.Remote.IsSynced() {
		r.failNode(n, fmt.Errorf("%w: parent of %s has no remote id", failure.ErrInternalCache, nd.inst.Key))
		return nil
	}

	chain, attach, attachLink := r.anchorChain(nd.parent)
	total, count := chain.size+linkSize+f.size, chain.count+f.count
	if attach != nil {
		total += sizeOf(attachLink.rel)
	}

	if !r.fits(r.cur, total, count) {
		if err := r.flush(ctx); err != nil {
			return err
		}
		chain, attach, attachLink = r.anchorChain(nd.parent)
		total, count = chain.size+linkSize+f.size, chain.count+f.count
		if attach != nil {
			total += sizeOf(attachLink.rel)
		}
		if !r.fits(r.cur, total, count) {
			r.overBudget(ctx, n, f)
			return nil
		}
	}

	r.cur.insert(chain, attach, attachLink)
	r.cur.insert(f, r.cur.byNode[nd.parent], link)
	return nil
}

// anchorChain renders the synced ancestors of p, p included, as existing
// instances. The chain climbs while both the ancestor and the relationship
// leading to it have a remote id. When it reaches an ancestor already in
// the current batch, it is attached there through the returned node and
// link instead of becoming a new root.
func (r *run) anchorChain(p int) (fragment, *wireNode, *wireLink) {
	bottom := &wireNode{node: p, inst: wireExisting(r.g.nodes[p].inst)}
	members := []*wireNode{bottom}
	top := bottom
	size := sizeOf(bottom.inst)

	cur := p
	for {
		nd := r.g.nodes[cur]
		if nd.parent < 0 {
			break
		}
		e := r.g.edges[nd.via]
		if r.edgeState[nd.via] != synced || !e.rel.Remote.IsSynced() {
			break
		}

		link := &wireLink{rel: wireExistingRelationship(e.rel, e.direction), target: top}
		if existing, ok := r.cur.byNode[nd.parent]; ok {
			return fragment{root: top, nodes: members, size: size, count: len(members)}, existing, link
		}

		q := nd.parent
		if r.nodeState[q] != synced || !r.g.nodes[q].inst.Remote.IsSynced() {
			break
		}

		parent := &wireNode{node: q, inst: wireExisting(r.g.nodes[q].inst), links: []*wireLink{link}}
		members = append(members, parent)
		size += sizeOf(link.rel) + sizeOf(parent.inst)
		top = parent
		cur = q
	}

	return fragment{root: top, nodes: members, size: size, count: len(members)}, nil, nil
}

func (r *run) fits(b *batch, size, count int) bool {
	if r.maxSize > 0 && b.size+size > r.maxSize {
		return false
	}
	if r.maxCount > 0 && b.count+count > r.maxCount {
		return false
	}
	return true
}

// overBudget fails a node that does not fit even into an empty batch.
func (r *run) overBudget(ctx context.Context, n int, f fragment) {
	err := fmt.Errorf("%w: %s needs %d bytes in %d instances, batch budget is %d bytes in %d instances",
		failure.ErrInternalCache, r.g.nodes[n].inst.Key, f.size+r.envelope, f.count, r.maxSize, r.maxCount)

	logger.FromContext(ctx).Error().
		Err(err).
		Str("func", "push.run.overBudget").
		Msg("record does not fit into a batch")

	r.failNode(n, err)
}

// ── Failure propagation ──

// report adds a failure record without touching record states.
func (r *run) report(inst models.Instance, err error) {
	r.result.Add(failure.New(inst, err))
}

func (r *run) failNodeRecord(n int, err error) {
	if r.nodeState[n] != pending {
		return
	}
	r.nodeState[n] = failed
	r.report(r.g.nodes[n].inst, err)
	r.agg.InstanceDone(1)
}

func (r *run) failEdgeRecord(e int, err error) {
	if r.edgeState[e] != pending {
		return
	}
	r.edgeState[e] = failed
	r.report(r.g.edges[e].rel, err)
	r.agg.InstanceDone(1)
}

func (r *run) failLooseRecord(i int, err error) {
	if r.looseState[i] != pending {
		return
	}
	r.looseState[i] = failed
	r.report(r.g.loose[i].rel, err)
	r.agg.InstanceDone(1)
}

func (r *run) failRecord(rec record, err error) {
	switch rec.kind {
	case nodeRecord:
		r.failNodeRecord(rec.idx, err)
	case edgeRecord:
		r.failEdgeRecord(rec.idx, err)
	case looseRecord:
		r.failLooseRecord(rec.idx, err)
	}
}

// failNode fails n with err. The relationship linking it to its parent and
// the relationships to its anchors depend on it and are held back.
func (r *run) failNode(n int, err error) {
	nd := r.g.nodes[n]
	if nd.anchor {
		r.failEdgeRecord(nd.via, err)
		return
	}

	r.failNodeRecord(n, err)

	blocked := fmt.Errorf("%w: %s failed", failure.ErrDependencyNotSynced, nd.inst.Key)
	if nd.via >= 0 {
		r.failEdgeRecord(nd.via, blocked)
	}
	for _, c := range nd.children {
		if r.g.nodes[c].anchor {
			r.failEdgeRecord(r.g.nodes[c].via, blocked)
		}
	}
}

// block holds back n and everything below it because an ancestor failed.
func (r *run) block(n int) {
	parent := r.g.nodes[r.g.nodes[n].parent].inst.Key
	err := fmt.Errorf("%w: %s did not reach the server", failure.ErrDependencyNotSynced, parent)

	for _, m := range r.g.subtree(n) {
		nd := r.g.nodes[m]
		if !nd.anchor {
			r.failNodeRecord(m, err)
		}
		if nd.via >= 0 {
			r.failEdgeRecord(nd.via, err)
		}
	}
}

// ── Loose relationships ──

// sendLoose adds a relationship that is not part of the object forest.
func (r *run) sendLoose(ctx context.Context, i int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l := r.g.loose[i]
	rec := record{kind: looseRecord, idx: i}

	if l.rel.Change.Status != models.Created {
		w := &wireNode{node: -1, record: rec}
		w.inst = wireChange(l.rel)
		f := fragment{root: w}
		f.addNode(w)
		return r.placeLoose(ctx, i, f, nil, nil)
	}

	if r.cur.holdsRecord(l.source) || r.cur.holdsRecord(l.target) {
		if err := r.flush(ctx); err != nil {
			return err
		}
	}

	for _, endpoint := range []int{l.source, l.target} {
		if r.nodeState[endpoint] == synced && r.g.nodes[endpoint].inst.Remote.IsSynced() {
			continue
		}
		err := fmt.Errorf("%w: endpoint %s did not reach the server", failure.ErrDependencyNotSynced, r.g.nodes[endpoint].inst.Key)
		r.failLooseRecord(i, err)
		return nil
	}

	link := &wireLink{
		rel:    wireRelationship(l.rel, models.Forward),
		record: rec,
		target: &wireNode{node: l.target, inst: wireExisting(r.g.nodes[l.target].inst)},
	}

	if source, ok := r.cur.byNode[l.source]; ok {
		f := fragment{root: link.target}
		f.addNode(link.target)
		return r.placeLoose(ctx, i, f, source, link)
	}

	root := &wireNode{node: l.source, inst: wireExisting(r.g.nodes[l.source].inst)}
	f := fragment{root: root}
	f.addNode(root)
	f.addLink(root, link)
	return r.placeLoose(ctx, i, f, nil, nil)
}

func (r *run) placeLoose(ctx context.Context, i int, f fragment, parent *wireNode, link *wireLink) error {
	extra := 0
	if link != nil {
		extra = sizeOf(link.rel)
	}

	if r.fits(r.cur, f.size+extra, f.count) {
		r.cur.insert(f, parent, link)
		return nil
	}

	if err := r.flush(ctx); err != nil {
		return err
	}

	if parent != nil {
		// the source went out with the flushed batch: send it as a new root
		root := &wireNode{node: r.g.loose[i].source, inst: parent.inst}
		root.inst.Relationships = nil
		f = fragment{root: root}
		f.addNode(root)
		f.addLink(root, link)
		parent, link = nil, nil
	}

	if !r.fits(r.cur, f.size, f.count) {
		err := fmt.Errorf("%w: %s does not fit into an empty batch", failure.ErrInternalCache, r.g.loose[i].rel.Key)
		logger.FromContext(ctx).Error().Err(err).Str("func", "push.run.placeLoose").Msg("record does not fit into a batch")
		r.failLooseRecord(i, err)
		return nil
	}
	r.cur.insert(f, parent, link)
	return nil
}

// fileLabel names a file transfer in progress reports.
func fileLabel(inst models.Instance) string {
	if inst.File.Path == "" {
		return inst.Key.String()
	}
	return filepath.Base(inst.File.Path)
}
