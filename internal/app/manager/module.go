package manager

import (
	"context"

	"go.uber.org/fx"
)

// Module provides the Manager and starts its event loop for the lifetime of
// the application.
var Module = fx.Module("manager",
	fx.Provide(New),
	fx.Invoke(register),
)

func register(lc fx.Lifecycle, m *Manager) {
	var cancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())

			go m.Run(runCtx)

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}

			return nil
		},
	})
}
