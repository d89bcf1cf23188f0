package observability

import (
	"github.com/smallbiznis/carbonvault/internal/observability/logger"
	"github.com/smallbiznis/carbonvault/internal/observability/metrics"
	"github.com/smallbiznis/carbonvault/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.Logger,
		Config.Tracing,
		Config.Metrics,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	// Force the tracer provider so the global propagator is installed.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
