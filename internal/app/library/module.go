package library

import (
	"context"

	"go.uber.org/fx"

	"jigctl/internal/app/manager"
)

// Module provides the Library and starts its event-loop goroutine for the
// lifetime of the application. The adapter below satisfies Library's local
// Manager interface from the concrete *manager.Manager fx already builds,
// without library importing manager's full package surface.
var Module = fx.Module("library",
	fx.Provide(func(m *manager.Manager) Manager { return m }),
	fx.Provide(New),
	fx.Invoke(register),
)

func register(lc fx.Lifecycle, l *Library) {
	var cancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())

			go l.Run(runCtx)

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
