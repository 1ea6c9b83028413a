// Package app builds the CARD:Live dashboard application served from a home
// directory prepared by cardlive-init.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"card_live_dashboard/internal/config"
	"card_live_dashboard/internal/ingest"
	"card_live_dashboard/internal/model"
	"card_live_dashboard/internal/taxonomy"
	"card_live_dashboard/internal/workspace"
)

type Options struct {
	Logger *slog.Logger
	// Workers bounds concurrent file parsing on reload; zero means NumCPU.
	Workers int
}

type App struct {
	layout  workspace.Layout
	cfg     config.Config
	logger  *slog.Logger
	workers int
	taxa    *taxonomy.DB

	mu       sync.RWMutex
	data     *model.Data
	loadedAt time.Time
}

// Build loads configuration and data from home. A missing taxonomy database
// only disables the taxonomy endpoints.
func Build(home string, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	layout := workspace.LayoutFor(home)
	if _, err := os.Stat(layout.Home); err != nil {
		return nil, fmt.Errorf("home directory: %w", err)
	}

	cfg, err := config.Load(layout.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &App{
		layout:  layout,
		cfg:     cfg,
		logger:  logger,
		workers: opts.Workers,
	}
	if err := a.Reload(context.Background()); err != nil {
		return nil, err
	}

	taxa, err := taxonomy.Open(layout.TaxonomyDB)
	switch {
	case err == nil:
		a.taxa = taxa
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("taxonomy database not found, taxonomy lookups disabled", "path", layout.TaxonomyDB)
	default:
		return nil, fmt.Errorf("open taxonomy database: %w", err)
	}
	return a, nil
}

func (a *App) Config() config.Config {
	return a.cfg
}

func (a *App) Layout() workspace.Layout {
	return a.layout
}

func (a *App) Data() *model.Data {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.data
}

// Reload re-reads the data directory. On failure the previous data stays in
// place.
func (a *App) Reload(ctx context.Context) error {
	start := time.Now()
	samples, err := ingest.LoadDir(ctx, a.layout.DataDir, a.workers)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}
	data := model.NewData(samples).AddTaxonomy()
	if threshold := a.cfg.AntarcticaThreshold(); !threshold.IsZero() {
		data = data.ReplaceAntarcticaWithNA(threshold)
	}

	a.mu.Lock()
	a.data = data
	a.loadedAt = time.Now()
	a.mu.Unlock()

	a.logger.Info("loaded CARD:Live data", "samples", data.Len(), "dir", a.layout.DataDir, "took", time.Since(start))
	return nil
}

func (a *App) Close() error {
	if a.taxa == nil {
		return nil
	}
	return a.taxa.Close()
}

func (a *App) snapshot() (*model.Data, time.Time) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.data, a.loadedAt
}
