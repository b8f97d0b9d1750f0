// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package refresh

import (
	"context"
	"fmt"
	"sort"

	"github.com/MKhiriev/go-cache-sync/internal/ledger"
	"github.com/MKhiriev/go-cache-sync/models"
)

// prune checks instances that left a cached response. Instances still
// needed locally are kept; the others are read from the server and removed
// when they are gone. Removals may drop further responses, so pruning runs
// until no candidate is left.
func (r *run) prune(ctx context.Context) error {
	checked := make(map[int64]struct{})

	for len(r.candidates) > 0 {
		ids := make([]int64, 0, len(r.candidates))
		for id := range r.candidates {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		clear(r.candidates)

		for _, id := range ids {
			if _, ok := checked[id]; ok {
				continue
			}
			checked[id] = struct{}{}

			if err := ctx.Err(); err != nil {
				return err
			}

			inst, ok, err := r.removable(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}

			if _, err = r.check(ctx, inst); err != nil {
				return err
			}
		}
	}
	return nil
}

// removable loads a candidate and reports whether it may be dropped.
func (r *run) removable(ctx context.Context, id int64) (models.Instance, bool, error) {
	var (
		inst models.Instance
		ok   bool
	)
	err := r.f.ledger.Transact(ctx, func(ctx context.Context, tx *ledger.Tx) error {
		insts, err := tx.InstancesByIDs(ctx, []int64{id})
		if err != nil || len(insts) == 0 {
			return err
		}
		inst = insts[0]
		if inst.IsRelationship() || !inst.Remote.IsSynced() {
			return nil
		}
		ok, err = tx.Removable(ctx, inst.Key)
		return err
	})
	if err != nil {
		return models.Instance{}, false, fmt.Errorf("check candidate %d: %w", id, err)
	}
	return inst, ok, nil
}
