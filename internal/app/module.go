package app

import (
	"go.uber.org/fx"

	"jigctl/internal/app/bus"
	"jigctl/internal/app/library"
	"jigctl/internal/app/manager"
	"jigctl/internal/app/procstats"
	"jigctl/internal/app/quiescer"
	"jigctl/internal/app/registry"
	"jigctl/internal/app/watcher"
)

// Module provides the fx dependency injection options for the app package.
var Module = fx.Options(
	bus.Module,
	watcher.Module,
	quiescer.Module,
	registry.Module,
	procstats.Module,
	manager.Module,
	library.Module,
	fx.Provide(NewApp),
	fx.Invoke(Register),
)
