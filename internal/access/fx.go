package access

import "go.uber.org/fx"

var Module = fx.Module("access.service",
	fx.Provide(New),
)
