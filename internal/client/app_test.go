// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import (
	"testing"

	"github.com/MKhiriev/go-cache-sync/internal/config"
	"github.com/MKhiriev/go-cache-sync/internal/logger"
	"github.com/MKhiriev/go-cache-sync/internal/service"
	"github.com/MKhiriev/go-cache-sync/internal/tui"
	"github.com/MKhiriev/go-cache-sync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewApp(t *testing.T) {
	ui := tui.New(models.AppBuildInfo{})
	services := &service.ClientServices{}

	_, err := NewApp(nil, ui, config.ClientWorkers{}, logger.Nop())
	require.Error(t, err)

	_, err = NewApp(services, nil, config.ClientWorkers{}, logger.Nop())
	require.Error(t, err)

	app, err := NewApp(services, ui, config.ClientWorkers{}, logger.Nop())
	require.NoError(t, err)
	assert.NotNil(t, app)
}
