package organization

import (
	"github.com/smallbiznis/dealbill/internal/organization/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.NewRepository),
)
