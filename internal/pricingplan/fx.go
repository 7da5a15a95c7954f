package pricingplan

import (
	"github.com/smallbiznis/dealbill/internal/pricingplan/repository"
	"github.com/smallbiznis/dealbill/internal/pricingplan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricingplan.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.New),
)
