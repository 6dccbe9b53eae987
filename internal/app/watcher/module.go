package watcher

import "go.uber.org/fx"

// Module provides the Watcher for dependency injection.
var Module = fx.Module("watcher",
	fx.Provide(NewWatcher),
)
