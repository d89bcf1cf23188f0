package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
}

// Metrics exposes ledger-level instruments.
type Metrics struct {
	ingestions         metric.Int64Counter
	transitions        metric.Int64Counter
	casConflicts       metric.Int64Counter
	attestations       metric.Int64Counter
	attestationLatency metric.Float64Histogram
	rateLimited        metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New registers the carbon ledger instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "carbonvault"
	}
	meter := provider.Meter(name)

	ingestions, err := meter.Int64Counter("carbonvault_ingestions_total",
		metric.WithDescription("Emission records submitted by devices"))
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter("carbonvault_asset_transitions_total",
		metric.WithDescription("Asset lifecycle transitions by event and outcome"))
	if err != nil {
		return nil, err
	}
	casConflicts, err := meter.Int64Counter("carbonvault_cas_conflicts_total",
		metric.WithDescription("Version mismatches observed on conditional asset writes"))
	if err != nil {
		return nil, err
	}
	attestations, err := meter.Int64Counter("carbonvault_attestations_total")
	if err != nil {
		return nil, err
	}
	attestationLatency, err := meter.Float64Histogram("carbonvault_attestation_duration_seconds",
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	rateLimited, err := meter.Int64Counter("carbonvault_rate_limited_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ingestions:         ingestions,
		transitions:        transitions,
		casConflicts:       casConflicts,
		attestations:       attestations,
		attestationLatency: attestationLatency,
		rateLimited:        rateLimited,
	}, nil
}

// RecordIngestion counts a submitted emission record.
func (m *Metrics) RecordIngestion(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.ingestions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTransition counts an asset lifecycle event attempt.
func (m *Metrics) RecordTransition(ctx context.Context, event, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event", strings.TrimSpace(event)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.transitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordConflict counts a lost compare-and-swap.
func (m *Metrics) RecordConflict(ctx context.Context, event string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("event", strings.TrimSpace(event)))
	m.casConflicts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAttestation records the outcome and latency of an attestation call.
func (m *Metrics) RecordAttestation(ctx context.Context, provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.attestations.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.attestationLatency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRateLimited counts a throttled marketplace request.
func (m *Metrics) RecordRateLimited(ctx context.Context, actorRole, event string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("actor_role", strings.TrimSpace(actorRole)),
		attribute.String("event", strings.TrimSpace(event)),
	)
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Asset, device and actor identifiers never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"event":       {},
	"outcome":     {},
	"provider":    {},
	"actor_role":  {},
	"method":      {},
	"route":       {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
