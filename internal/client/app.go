// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MKhiriev/go-cache-sync/internal/config"
	"github.com/MKhiriev/go-cache-sync/internal/logger"
	"github.com/MKhiriev/go-cache-sync/internal/service"
	"github.com/MKhiriev/go-cache-sync/internal/tui"
)

// App runs one interactive sync and then keeps the cache in sync in the
// background until the process is interrupted.
type App struct {
	services *service.ClientServices
	ui       *tui.TUI
	workers  config.ClientWorkers
	logger   *logger.Logger
}

// NewApp creates an App. services and ui must not be nil.
func NewApp(services *service.ClientServices, ui *tui.TUI, workers config.ClientWorkers, logger *logger.Logger) (*App, error) {
	if services == nil || ui == nil {
		return nil, fmt.Errorf("client app needs services and ui")
	}
	return &App{services: services, ui: ui, workers: workers, logger: logger}, nil
}

// Run implements [Client].
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	ctx = a.logger.WithContext(ctx)

	result, err := a.ui.SyncFlow(ctx, "Initial sync", a.services.SyncService.FullSync)
	switch {
	case errors.Is(err, tui.ErrUserQuit):
		a.logger.Info().Str("func", "App.Run").Msg("initial sync interrupted, exiting")
		return nil
	case err != nil:
		// the periodic job retries, so a failed first run is not fatal
		a.logger.Warn().Err(err).Str("func", "App.Run").Msg("initial sync failed")
	case !result.OK():
		a.logger.Warn().Str("func", "App.Run").Int("failures", len(result.Failures)).Msg("initial sync finished with failures")
	}

	a.services.SyncJob.Start(ctx, a.workers.SyncInterval)
	defer a.services.SyncJob.Stop()

	a.logger.Info().Str("func", "App.Run").Dur("interval", a.workers.SyncInterval).Msg("periodic sync started")
	<-ctx.Done()
	a.logger.Info().Str("func", "App.Run").Msg("shutting down")

	return nil
}
