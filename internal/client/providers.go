// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import (
	"context"

	"github.com/MKhiriev/go-cache-sync/internal/refresh"
	"github.com/MKhiriev/go-cache-sync/models"
)

type fileCacheProvider struct{}

// FileCacheProvider returns a query provider that keeps the file of every
// refreshed object that has one. It never adds queries.
func FileCacheProvider() refresh.QueryProvider {
	return fileCacheProvider{}
}

func (fileCacheProvider) Queries(context.Context, models.Instance) []models.QueryRequest {
	return nil
}

func (fileCacheProvider) FileNeed(_ context.Context, inst models.Instance) models.FileNeed {
	return models.FileNeed{Required: !inst.IsRelationship() && inst.File.Size > 0}
}
