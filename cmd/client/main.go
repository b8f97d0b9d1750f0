// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package main

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-cache-sync/internal/adapter"
	"github.com/MKhiriev/go-cache-sync/internal/client"
	"github.com/MKhiriev/go-cache-sync/internal/config"
	"github.com/MKhiriev/go-cache-sync/internal/logger"
	"github.com/MKhiriev/go-cache-sync/internal/service"
	"github.com/MKhiriev/go-cache-sync/internal/store"
	"github.com/MKhiriev/go-cache-sync/internal/telemetry"
	"github.com/MKhiriev/go-cache-sync/internal/tui"
	"github.com/MKhiriev/go-cache-sync/models"
	tea "github.com/charmbracelet/bubbletea"
	"go.opentelemetry.io/otel"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	buildInfo := models.NewAppBuildInfo(buildVersion, buildDate, buildCommit)
	fmt.Println(buildInfo)

	log := logger.NewClientLogger("go-cache-sync")
	cfg, err := config.GetClientConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}
	if cfg.App.Version == "" {
		cfg.App.Version = buildInfo.BuildVersion()
	}

	serverAdapter, err := adapter.NewHTTPServerAdapter(cfg.Adapter, cfg.App, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create server adapter")
	}

	storages, err := store.NewClientStorages(context.Background(), cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create local storage")
	}
	defer storages.Close()

	metrics, err := telemetry.NewSyncMetrics(otel.GetMeterProvider())
	if err != nil {
		log.Fatal().Err(err).Msg("create sync metrics")
	}

	services := service.NewClientServices(storages, serverAdapter, cfg, metrics, client.FileCacheProvider())
	ui := tui.New(buildInfo, tea.WithAltScreen())

	app, err := client.NewApp(services, ui, cfg.Workers, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init client app error")
	}

	if err = app.Run(); err != nil {
		log.Error().Err(err).Msg("client run error")
	}
}
