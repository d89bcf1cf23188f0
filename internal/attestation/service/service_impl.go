package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smallbiznis/carbonvault/internal/attestation/domain"
	"github.com/smallbiznis/carbonvault/internal/config"
	"github.com/smallbiznis/carbonvault/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Config    *config.LedgerConfigHolder
	Providers []domain.Provider `group:"attestation_providers"`
	Metrics   *metrics.Metrics  `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	config    *config.LedgerConfigHolder
	providers map[string]domain.Provider
	metrics   *metrics.Metrics

	mu      sync.Mutex
	workers int
	sem     *semaphore.Weighted
}

func NewService(p Params) (domain.Service, error) {
	index := make(map[string]domain.Provider, len(p.Providers))
	for _, provider := range p.Providers {
		if provider == nil {
			return nil, errors.New("attestation provider is nil")
		}
		name := provider.Name()
		if _, exists := index[name]; exists {
			return nil, fmt.Errorf("duplicate attestation provider %q", name)
		}
		index[name] = provider
	}

	return &Service{
		log:       p.Log.Named("attestation.service"),
		config:    p.Config,
		providers: index,
		metrics:   p.Metrics,
	}, nil
}

func (s *Service) Attest(ctx context.Context, req domain.Request) (string, error) {
	payload, err := domain.BuildPayload(req)
	if err != nil {
		return "", err
	}

	cfg := s.config.Get().Attestation
	provider, ok := s.providers[cfg.Provider]
	if !ok {
		s.log.Error("attestation provider not registered", zap.String("provider", cfg.Provider))
		return "", fmt.Errorf("%w: provider %q not registered", domain.ErrAttestationUnavailable, cfg.Provider)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	start := time.Now()
	sem := s.limiter(cfg.Workers)
	if err := sem.Acquire(ctx, 1); err != nil {
		s.record(ctx, provider.Name(), "saturated", start)
		return "", fmt.Errorf("%w: %v", domain.ErrAttestationUnavailable, err)
	}
	hash, err := provider.Attest(ctx, payload)
	sem.Release(1)

	if err == nil && hash == "" {
		err = errors.New("empty attestation hash")
	}
	if err != nil {
		outcome := "error"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		s.record(ctx, provider.Name(), outcome, start)
		s.log.Warn("attestation failed",
			zap.String("provider", provider.Name()),
			zap.String("operation", string(payload.Operation)),
			zap.String("asset_id", payload.AssetID),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %v", domain.ErrAttestationUnavailable, err)
	}

	s.record(ctx, provider.Name(), "ok", start)
	return hash, nil
}

// limiter returns the worker semaphore, resizing it when the configured
// worker count changes. In-flight calls keep the semaphore they acquired.
func (s *Service) limiter(workers int) *semaphore.Weighted {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sem == nil || s.workers != workers {
		s.workers = workers
		s.sem = semaphore.NewWeighted(int64(workers))
	}
	return s.sem
}

func (s *Service) record(ctx context.Context, provider, outcome string, start time.Time) {
	s.metrics.RecordAttestation(context.WithoutCancel(ctx), provider, outcome, time.Since(start))
}
