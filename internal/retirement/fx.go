package retirement

import (
	"github.com/smallbiznis/carbonvault/internal/retirement/repository"
	"github.com/smallbiznis/carbonvault/internal/retirement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("retirement.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
