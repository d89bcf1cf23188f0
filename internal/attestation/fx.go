package attestation

import (
	"net/http"

	"github.com/smallbiznis/carbonvault/internal/attestation/domain"
	"github.com/smallbiznis/carbonvault/internal/attestation/provider"
	"github.com/smallbiznis/carbonvault/internal/attestation/service"
	"github.com/smallbiznis/carbonvault/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("attestation",
	fx.Provide(
		fx.Annotate(
			func() domain.Provider { return provider.NewLocal() },
			fx.ResultTags(`group:"attestation_providers"`),
		),
		fx.Annotate(
			func() domain.Provider { return provider.NewDisabled() },
			fx.ResultTags(`group:"attestation_providers"`),
		),
		fx.Annotate(
			func(cfg *config.LedgerConfigHolder) domain.Provider {
				return provider.NewHTTP(cfg, &http.Client{})
			},
			fx.ResultTags(`group:"attestation_providers"`),
		),
		service.NewService,
	),
)
