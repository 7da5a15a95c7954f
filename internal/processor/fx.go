package processor

import (
	"context"

	"github.com/smallbiznis/dealbill/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("processor",
	fx.Provide(New),
	fx.Invoke(start),
)

func start(lc fx.Lifecycle, cfg config.Config, proc *Processor) {
	if !cfg.ProcessorEnabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go proc.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
