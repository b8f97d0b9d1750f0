// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package push

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-cache-sync/internal/adapter"
	"github.com/MKhiriev/go-cache-sync/internal/failure"
	"github.com/MKhiriev/go-cache-sync/internal/ledger"
	"github.com/MKhiriev/go-cache-sync/internal/logger"
	"github.com/MKhiriev/go-cache-sync/models"
)

// outcome is the result of one record of a sent batch.
type outcome struct {
	record record
	ref    models.RemoteRef
	err    error
	key    models.EntityKey
}

// flush sends the current batch and applies its result. A transport
// failure fails every record of the batch; the run goes on.
func (r *run) flush(ctx context.Context) error {
	b := r.cur
	if b.empty() {
		return nil
	}
	r.cur = newBatch(r.envelope)

	log := logger.FromContext(ctx)
	keys := r.keys(b.records)

	r.e.ledger.SetUploadActive(keys, true)
	resp, err := r.e.adapter.SendChangeset(ctx, b.request(r.options))
	r.e.ledger.SetUploadActive(keys, false)
	r.batches++

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if err != nil {
		log.Warn().
			Err(err).
			Str("func", "push.run.flush").
			Int("records", len(b.records)).
			Msg("changeset request failed")
		for _, rec := range b.records {
			r.failRecord(rec, err)
		}
		return nil
	}

	log.Debug().
		Str("func", "push.run.flush").
		Int("records", len(b.records)).
		Int("instances", b.count).
		Int("size", b.size).
		Msg("changeset sent")

	return r.apply(ctx, b, resp)
}

// apply maps the response onto the batch records, commits every success
// in one transaction and then reports every outcome.
func (r *run) apply(ctx context.Context, b *batch, resp models.ChangesetResponse) error {
	var outcomes []outcome
	for i, root := range b.roots {
		var res *models.ResultInstance
		if i < len(resp.Instances) {
			res = &resp.Instances[i]
		}
		r.collect(root, res, false, &outcomes)
	}

	err := r.e.ledger.Transact(ctx, func(ctx context.Context, tx *ledger.Tx) error {
		for i := range outcomes {
			if outcomes[i].err != nil {
				continue
			}
			if err := r.commit(ctx, tx, &outcomes[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "push.run.apply").Msg("failed to commit batch result")
		return fmt.Errorf("commit batch result: %w", err)
	}

	for _, o := range outcomes {
		if o.err != nil {
			r.failRecord(o.record, o.err)
			continue
		}
		r.markSynced(o)
	}
	return nil
}

// collect walks a request node and its mirrored result. A record with
// neither an error nor a remote id was not processed by the server: below
// a failed record it is held back, anywhere else the response is broken.
func (r *run) collect(w *wireNode, res *models.ResultInstance, ancestorFailed bool, out *[]outcome) {
	failedHere := ancestorFailed

	if res != nil && res.Error != nil {
		failedHere = true
	}

	if w.record.kind != noRecord {
		var serverErr *models.ServerError
		ref := models.RemoteRef{}
		if res != nil {
			serverErr, ref = res.Error, res.Ref()
		}
		o := r.outcome(w.record, w.inst.ChangeState, res != nil, serverErr, ref, ancestorFailed)
		failedHere = failedHere || o.err != nil
		*out = append(*out, o)
	}

	for j, l := range w.links {
		var rel *models.ResultRelationship
		if res != nil && j < len(res.Relationships) {
			rel = &res.Relationships[j]
		}

		linkFailed := failedHere
		if rel != nil && rel.Error != nil {
			linkFailed = true
		}

		if l.record.kind != noRecord {
			var serverErr *models.ServerError
			ref := models.RemoteRef{}
			if rel != nil {
				serverErr, ref = rel.Error, rel.Ref()
			}
			o := r.outcome(l.record, l.rel.ChangeState, rel != nil, serverErr, ref, failedHere)
			linkFailed = linkFailed || o.err != nil
			*out = append(*out, o)
		}

		var related *models.ResultInstance
		if rel != nil {
			related = &rel.Related
		}
		r.collect(l.target, related, linkFailed, out)
	}
}

func (r *run) outcome(rec record, st models.ChangeState, present bool, serverErr *models.ServerError, ref models.RemoteRef, ancestorFailed bool) outcome {
	o := outcome{record: rec, ref: ref}

	switch {
	case serverErr != nil:
		o.err = adapter.NewReceivedError(*serverErr)
	case present && (st != models.StateNew || ref.IsSynced()):
	case ancestorFailed:
		o.err = fmt.Errorf("%w: record was not processed", failure.ErrDependencyNotSynced)
	default:
		o.err = fmt.Errorf("%w: no result for %s record", failure.ErrInternalCache, st)
	}
	return o
}

// commit writes one confirmed record into the ledger.
func (r *run) commit(ctx context.Context, tx *ledger.Tx, o *outcome) error {
	inst := r.recordInstance(o.record)

	switch inst.Change.Status {
	case models.Created:
		key, err := tx.CommitCreated(ctx, inst.Key, o.ref, inst.Change.Revision)
		if err != nil {
			return err
		}
		o.key = key
	case models.Modified:
		o.key = inst.Key
		return tx.CommitModified(ctx, inst.Key, inst.Change.Revision)
	case models.Deleted:
		o.key = inst.Key
		return tx.CommitDeleted(ctx, inst.Key)
	default:
		o.key = inst.Key
	}
	return nil
}

// markSynced records a committed outcome in the run state so later batches
// can reference it by remote id.
func (r *run) markSynced(o outcome) {
	switch o.record.kind {
	case nodeRecord:
		r.nodeState[o.record.idx] = synced
		syncInstance(&r.g.nodes[o.record.idx].inst, o)
	case edgeRecord:
		r.edgeState[o.record.idx] = synced
		syncInstance(&r.g.edges[o.record.idx].rel, o)
	case looseRecord:
		r.looseState[o.record.idx] = synced
		syncInstance(&r.g.loose[o.record.idx].rel, o)
	}
	r.agg.InstanceDone(1)
}

func syncInstance(inst *models.Instance, o outcome) {
	if inst.Change.Status != models.Created {
		return
	}
	inst.Key = o.key
	inst.Remote.ID = o.ref.ID
	inst.Remote.Class = o.key.Class
	if o.ref.Schema != "" {
		inst.Remote.Schema = o.ref.Schema
	}
}

func (r *run) recordInstance(rec record) models.Instance {
	switch rec.kind {
	case nodeRecord:
		return r.g.nodes[rec.idx].inst
	case edgeRecord:
		return r.g.edges[rec.idx].rel
	default:
		return r.g.loose[rec.idx].rel
	}
}

func (r *run) keys(records []record) []models.EntityKey {
	keys := make([]models.EntityKey, 0, len(records))
	for _, rec := range records {
		keys = append(keys, r.recordInstance(rec).Key)
	}
	return keys
}
