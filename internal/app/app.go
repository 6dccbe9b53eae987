package app

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"jigctl/internal/app/bus"
	"jigctl/internal/app/errors"
	"jigctl/internal/app/manager"
	"jigctl/internal/app/watcher"
	"jigctl/internal/config"
	"jigctl/internal/config/logger"
)

// App is the composition root: it adds every configured directory to the
// Watcher on startup, and on shutdown (driven by fx.App.Run's own signal
// handling) deactivates every live unit before the process exits (§5
// Shutdown, §6).
type App struct {
	cfg *config.Config
	bus bus.EventBus
	w   watcher.Watcher
	mgr *manager.Manager
	log logger.Logger
}

// NewApp builds an App over its already-wired dependencies.
func NewApp(cfg *config.Config, b bus.EventBus, w watcher.Watcher, mgr *manager.Manager, log logger.Logger) *App {
	return &App{
		cfg: cfg,
		bus: b,
		w:   w,
		mgr: mgr,
		log: log.WithComponent("APP"),
	}
}

// Start adds every configured root to the watcher. A config directory that
// can't be opened is a Fatal error (§7): reported and the process exits
// non-zero.
func (a *App) Start(context.Context) error {
	if len(a.cfg.ConfigDirs) == 0 {
		return errors.ErrNoConfigDir
	}

	for _, dir := range a.cfg.ConfigDirs {
		if err := a.w.AddPath(dir); err != nil {
			a.log.Error().Err(err).Str("dir", dir).Msg("failed to open config directory")
			return fmt.Errorf("%w: %s", errors.ErrFailedToOpenConfigDir, dir)
		}
	}

	return nil
}

// Stop deactivates every live unit in reverse dependency order (§5
// "Shutdown... triggers manager to deactivate every live unit in reverse
// dependency order") and closes the watcher.
func (a *App) Stop(ctx context.Context) error {
	a.mgr.Shutdown(ctx)

	return a.w.Close()
}

// Register hooks App's Start/Stop into fx's lifecycle.
func Register(lifecycle fx.Lifecycle, app *App) {
	lifecycle.Append(fx.Hook{
		OnStart: app.Start,
		OnStop:  app.Stop,
	})
}
