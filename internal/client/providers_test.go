// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import (
	"context"
	"testing"

	"github.com/MKhiriev/go-cache-sync/models"
	"github.com/stretchr/testify/assert"
)

func TestFileCacheProvider(t *testing.T) {
	p := FileCacheProvider()
	ctx := context.Background()

	tests := []struct {
		name string
		inst models.Instance
		want bool
	}{
		{name: "object with file", inst: models.Instance{Key: models.EntityKey{Class: "Photo", ID: 1}, File: models.FileState{Size: 10}}, want: true},
		{name: "object without file", inst: models.Instance{Key: models.EntityKey{Class: "Folder", ID: 2}}},
		{
			name: "relationship",
			inst: models.Instance{
				Key:    models.EntityKey{Class: "Contains", ID: 3},
				Source: models.EntityKey{Class: "Folder", ID: 2},
				Target: models.EntityKey{Class: "Photo", ID: 1},
				File:   models.FileState{Size: 10},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.FileNeed(ctx, tt.inst).Required)
			assert.Nil(t, p.FileNeed(ctx, tt.inst).Token)
			assert.Empty(t, p.Queries(ctx, tt.inst))
		})
	}
}
