// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-cache-sync/internal/adapter"
	"github.com/MKhiriev/go-cache-sync/internal/failure"
	"github.com/MKhiriev/go-cache-sync/internal/ledger"
	"github.com/MKhiriev/go-cache-sync/internal/logger"
	"github.com/MKhiriev/go-cache-sync/models"
)

// uploadFileNode sends an object with a pending file through the
// single-record path. Any buffered batch goes out first.
func (r *run) uploadFileNode(ctx context.Context, n int) error {
	if err := r.flush(ctx); err != nil {
		return err
	}

	nd := r.g.nodes[n]
	if nd.parent >= 0 && r.nodeState[nd.parent] == failed {
		r.block(n)
		return nil
	}

	if nd.inst.Change.Status == models.Created {
		return r.createWithFile(ctx, n)
	}

	if nd.inst.Change.Status == models.Modified || nd.via >= 0 || r.hasAnchors(n) {
		if err := r.place(ctx, n, r.fragment(n, true)); err != nil {
			return err
		}
		if err := r.flush(ctx); err != nil {
			return err
		}
		if r.nodeState[n] == failed {
			return nil
		}
	}

	inst := r.g.nodes[n].inst
	res, err := r.updateFile(ctx, inst)
	if err != nil {
		return r.fileFailed(ctx, n, err)
	}

	err = r.e.ledger.Transact(ctx, func(ctx context.Context, tx *ledger.Tx) error {
		return tx.CommitFile(ctx, inst.Key, inst.File.Number, res.Tag)
	})
	if err != nil {
		return fmt.Errorf("commit file of %s: %w", inst.Key, err)
	}

	if r.nodeState[n] == pending {
		r.nodeState[n] = synced
		r.agg.InstanceDone(1)
	}
	return nil
}

// createWithFile creates an object that carries a file. Depending on the
// file policy the file travels in the creating request or follows in a
// file update. One relationship is nested into the request only when the
// server answers creations with typed results; every other relationship of
// the object follows in a regular batch.
func (r *run) createWithFile(ctx context.Context, n int) error {
	log := logger.FromContext(ctx)
	nd := r.g.nodes[n]

	caps, err := r.e.capabilities(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		r.failNode(n, err)
		return nil
	}
	mode := r.e.policy.FileMode(caps)

	req := models.CreateObjectRequest{Instance: wireChange(nd.inst)}
	keys := []models.EntityKey{nd.inst.Key}
	nested := -1
	if caps.TypedCreate {
		nested = r.nestedEdge(n)
	}
	if nested >= 0 {
		req.Instance.Relationships = []models.WireRelationship{r.nestedRelationship(n, nested)}
		keys = append(keys, r.g.edges[nested].rel.Key)
	}

	var onProgress models.TransferProgress
	if mode == FileWithEntity {
		req.FilePath = nd.inst.File.Path
		onProgress = r.agg.TransferProgress(fileLabel(nd.inst))
	}

	r.e.ledger.SetUploadActive(keys, true)
	resp, err := r.e.adapter.CreateObject(ctx, req, onProgress)
	r.e.ledger.SetUploadActive(keys, false)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		log.Warn().Err(err).Str("func", "push.run.createWithFile").Stringer("key", nd.inst.Key).Msg("single record creation failed")
		r.failNode(n, err)
		return nil
	}

	ref, err := r.resolveType(ctx, nd.inst, resp)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		r.failNode(n, err)
		return nil
	}

	var relRef models.RemoteRef
	var relErr error
	if nested >= 0 {
		relRef, relErr = r.nestedResult(nested, resp)
	}

	var key models.EntityKey
	err = r.e.ledger.Transact(ctx, func(ctx context.Context, tx *ledger.Tx) error {
		var err error
		key, err = tx.CommitCreated(ctx, nd.inst.Key, ref, nd.inst.Change.Revision)
		if err != nil {
			return err
		}
		if nested >= 0 && relErr == nil {
			rel := r.g.edges[nested].rel
			if _, err = tx.CommitCreated(ctx, rel.Key, relRef, rel.Change.Revision); err != nil {
				return err
			}
		}
		if mode == FileWithEntity {
			return tx.CommitFile(ctx, key, nd.inst.File.Number, resp.FileTag)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit creation of %s: %w", nd.inst.Key, err)
	}

	r.markSynced(outcome{record: record{kind: nodeRecord, idx: n}, ref: ref, key: key})
	if nested >= 0 {
		if relErr != nil {
			log.Error().Err(relErr).Str("func", "push.run.createWithFile").Stringer("key", r.g.edges[nested].rel.Key).Msg("nested relationship not created")
			r.failEdgeRecord(nested, relErr)
		} else {
			relKey := r.g.edges[nested].rel.Key
			relKey.Class = relRef.Class
			r.markSynced(outcome{record: record{kind: edgeRecord, idx: nested}, ref: relRef, key: relKey})
		}
	}

	if mode == FileFollowUp {
		inst := r.g.nodes[n].inst
		res, err := r.updateFile(ctx, inst)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			r.report(inst, err)
		} else {
			err = r.e.ledger.Transact(ctx, func(ctx context.Context, tx *ledger.Tx) error {
				return tx.CommitFile(ctx, inst.Key, inst.File.Number, res.Tag)
			})
			if err != nil {
				return fmt.Errorf("commit file of %s: %w", inst.Key, err)
			}
		}
	}

	// The parent relationship goes out in the next batch, rooted at the
	// parent and ending at the now synced object.
	if nd.via >= 0 && nd.via != nested {
		f := fragment{}
		root := &wireNode{node: n, inst: wireExisting(r.g.nodes[n].inst)}
		f.root = root
		f.addNode(root)
		if err = r.place(ctx, n, f); err != nil {
			return err
		}
	}

	for _, c := range nd.children {
		cn := r.g.nodes[c]
		if !cn.anchor || cn.via == nested {
			continue
		}
		f := fragment{}
		leaf := &wireNode{node: c, inst: wireExisting(cn.inst)}
		f.root = leaf
		f.addNode(leaf)
		if err = r.place(ctx, c, f); err != nil {
			return err
		}
	}
	return nil
}

// nestedEdge picks the relationship to nest into the creation of n: the one
// from its parent, else the first one to an anchor. It returns -1 when n
// has neither.
func (r *run) nestedEdge(n int) int {
	nd := r.g.nodes[n]
	if nd.via >= 0 {
		return nd.via
	}
	for _, c := range nd.children {
		if r.g.nodes[c].anchor {
			return r.g.nodes[c].via
		}
	}
	return -1
}

// nestedRelationship renders edge e as seen from n, pointing at the synced
// object on its other end.
func (r *run) nestedRelationship(n, e int) models.WireRelationship {
	ed := r.g.edges[e]
	if ed.to == n {
		rel := wireRelationship(ed.rel, ed.direction.Reverse())
		rel.Related = wireExisting(r.g.nodes[ed.from].inst)
		return rel
	}
	rel := wireRelationship(ed.rel, ed.direction)
	rel.Related = wireExisting(r.g.nodes[ed.to].inst)
	return rel
}

// resolveType returns the remote reference of a created object. The server
// may register a more specific class than requested: unless the response
// carried the typed instance, a polymorphic query by the new id reads the
// class back.
func (r *run) resolveType(ctx context.Context, inst models.Instance, resp models.CreateObjectResponse) (models.RemoteRef, error) {
	log := logger.FromContext(ctx)

	if resp.Instance != nil && resp.Instance.ClassName != "" && resp.Instance.InstanceID != "" {
		return resp.Instance.Ref(), nil
	}

	id := resp.RemoteID
	if id == "" && resp.Instance != nil {
		id = resp.Instance.InstanceID
	}
	if id == "" {
		return models.RemoteRef{}, fmt.Errorf("%w: creation of %s returned no remote id", failure.ErrInternalCache, inst.Key)
	}

	ref := models.RemoteRef{Schema: inst.Remote.Schema, Class: classOf(inst), ID: id}

	q := models.Query{
		Schema:      inst.Remote.Schema,
		Classes:     []string{classOf(inst)},
		Polymorphic: true,
		Filter:      models.IDFilter(id),
	}
	res, err := r.e.adapter.Query(ctx, q, "", "")
	if err != nil {
		if ctx.Err() != nil {
			return models.RemoteRef{}, ctx.Err()
		}
		log.Warn().Err(err).Str("func", "push.run.resolveType").Str("query", q.String()).Msg("type read-back failed, keeping requested class")
		return ref, nil
	}

	for _, found := range res.Instances {
		if found.Ref.ID == id && found.Ref.Class != "" {
			if found.Ref.Schema == "" {
				found.Ref.Schema = ref.Schema
			}
			return found.Ref, nil
		}
	}
	return ref, nil
}

// nestedResult reads the result of the relationship nested into a creation.
// A response without a remote id for it leaves the relationship created.
func (r *run) nestedResult(e int, resp models.CreateObjectResponse) (models.RemoteRef, error) {
	rel := r.g.edges[e].rel
	if resp.Instance == nil || len(resp.Instance.Relationships) == 0 {
		return models.RemoteRef{}, fmt.Errorf("%w: creation response has no result for nested relationship %s", failure.ErrInternalCache, rel.Key)
	}

	res := resp.Instance.Relationships[0]
	if res.Error != nil {
		return models.RemoteRef{}, adapter.NewReceivedError(*res.Error)
	}
	if res.InstanceID == "" {
		return models.RemoteRef{}, fmt.Errorf("%w: creation response has no remote id for nested relationship %s", failure.ErrInternalCache, rel.Key)
	}

	ref := res.Ref()
	if ref.Class == "" {
		ref.Class = classOf(rel)
	}
	if ref.Schema == "" {
		ref.Schema = rel.Remote.Schema
	}
	return ref, nil
}

// updateFile uploads the file of a synced object.
func (r *run) updateFile(ctx context.Context, inst models.Instance) (models.FileResponse, error) {
	keys := []models.EntityKey{inst.Key}

	r.e.ledger.SetUploadActive(keys, true)
	defer r.e.ledger.SetUploadActive(keys, false)

	res, err := r.e.adapter.UpdateFile(ctx, inst.Remote, inst.File.Path, r.agg.TransferProgress(fileLabel(inst)))
	if err != nil {
		return models.FileResponse{}, fmt.Errorf("update file of %s: %w", inst.Key, err)
	}
	return res, nil
}

// fileFailed records a failed file update of an object that was not
// created in this run.
func (r *run) fileFailed(ctx context.Context, n int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr
	}

	logger.FromContext(ctx).Warn().
		Err(err).
		Str("func", "push.run.fileFailed").
		Stringer("key", r.g.nodes[n].inst.Key).
		Msg("file update failed")

	if r.nodeState[n] == pending {
		r.failNodeRecord(n, err)
		return nil
	}
	r.report(r.g.nodes[n].inst, err)
	return nil
}

func (r *run) hasAnchors(n int) bool {
	for _, c := range r.g.nodes[n].children {
		if r.g.nodes[c].anchor {
			return true
		}
	}
	return false
}
