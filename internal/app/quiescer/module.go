package quiescer

import (
	"context"

	"go.uber.org/fx"

	"jigctl/internal/app/bus"
	"jigctl/internal/config"
	"jigctl/internal/config/logger"
)

// Module provides the Quiescer and starts its worker goroutine for the
// lifetime of the application.
var Module = fx.Module("quiescer",
	fx.Provide(New),
	fx.Invoke(register),
)

func register(lc fx.Lifecycle, cfg *config.Config, b bus.EventBus, log logger.Logger, q *Quiescer) {
	var cancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())

			go q.Run(runCtx)

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
