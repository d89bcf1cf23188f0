package marketplace

import (
	"github.com/smallbiznis/carbonvault/internal/marketplace/service"
	"go.uber.org/fx"
)

var Module = fx.Module("marketplace.service",
	fx.Provide(service.NewService),
)
