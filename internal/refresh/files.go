// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package refresh

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/MKhiriev/go-cache-sync/internal/failure"
	"github.com/MKhiriev/go-cache-sync/internal/ledger"
	"github.com/MKhiriev/go-cache-sync/internal/logger"
	"github.com/MKhiriev/go-cache-sync/models"
)

// download schedules the file transfer of inst on the pool. Instances
// without a remote id or with a pending local file are skipped.
func (r *run) download(ctx context.Context, inst models.Instance, token *models.FileToken) {
	if !inst.Remote.IsSynced() || inst.File.Status != models.NoChange {
		return
	}
	if token.Canceled() {
		r.fail(inst, failure.ErrFileCancelled)
		return
	}

	r.downloads.Go(ctx, func(ctx context.Context) error {
		return r.transfer(ctx, inst, token)
	})
}

// transfer downloads one file. Only run cancellation is returned; every
// other problem becomes a failure record.
func (r *run) transfer(ctx context.Context, inst models.Instance, token *models.FileToken) error {
	log := logger.FromContext(ctx)

	fileCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-token.Done():
			cancel()
		case <-fileCtx.Done():
		}
	}()

	dest := inst.File.Path
	if dest == "" || inst.File.Tag == "" {
		dest = filepath.Join(r.f.filesDir, r.f.names.Generate())
	}

	id := inst.Key.String()
	r.transfers.Add(1)
	resp, err := r.f.adapter.DownloadFile(fileCtx, inst.Remote, dest, inst.File.Tag, r.agg.TransferProgress(id))
	switch {
	case err == nil:
	case token.Canceled():
		r.fail(inst, fmt.Errorf("%w: %w", failure.ErrFileCancelled, err))
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		log.Warn().Err(err).Str("func", "refresh.run.transfer").Stringer("key", inst.Key).Msg("file download failed")
		r.fail(inst, err)
		return nil
	}

	if resp.NotModified {
		return nil
	}

	if resp.Path != "" {
		dest = resp.Path
	}
	err = r.f.ledger.Transact(ctx, func(ctx context.Context, tx *ledger.Tx) error {
		return tx.SetCachedFile(ctx, inst.Key, dest, resp.Size, resp.Tag)
	})
	if errors.Is(err, context.Canceled) {
		return err
	}
	if err != nil {
		r.fail(inst, err)
	}
	return nil
}
