package outcomeevent

import (
	"github.com/smallbiznis/dealbill/internal/outcomeevent/domain"
	"github.com/smallbiznis/dealbill/internal/outcomeevent/repository"
	"github.com/smallbiznis/dealbill/internal/outcomeevent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("outcomeevent.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.New),
	fx.Provide(func(s domain.Service) domain.Recorder { return s }),
)
