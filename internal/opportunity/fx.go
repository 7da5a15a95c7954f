package opportunity

import (
	"github.com/smallbiznis/dealbill/internal/opportunity/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("opportunity.service",
	fx.Provide(repository.NewRepository),
)
