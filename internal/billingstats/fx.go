package billingstats

import (
	"github.com/smallbiznis/dealbill/internal/billingstats/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingstats.service",
	fx.Provide(service.New),
)
