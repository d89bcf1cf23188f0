package ingestion

import (
	"github.com/smallbiznis/carbonvault/internal/ingestion/repository"
	"github.com/smallbiznis/carbonvault/internal/ingestion/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ingestion.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
