package bus

import (
	"go.uber.org/fx"

	"jigctl/internal/config"
	"jigctl/internal/config/logger"
)

// Module provides the EventBus for dependency injection.
var Module = fx.Module("bus",
	fx.Provide(func(cfg *config.Config, log logger.Logger) EventBus {
		return New(cfg, log.WithComponent("BUS"))
	}),
)
