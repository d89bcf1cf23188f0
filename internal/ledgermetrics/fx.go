package ledgermetrics

import (
	"context"
	"time"

	assetdomain "github.com/smallbiznis/carbonvault/internal/asset/domain"
	"github.com/smallbiznis/carbonvault/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const minPushInterval = 10 * time.Second

var Module = fx.Module("ledger.metrics",
	fx.Provide(NewSummary),
	fx.Provide(NewPusher),
	fx.Invoke(registerWorker),
)

type workerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	Summary   *Summary
	Pusher    Pusher `optional:"true"`
	AssetSvc  assetdomain.Service
}

func registerWorker(p workerParams) {
	if p.Pusher == nil {
		return
	}
	w := &worker{
		log:      p.Log.Named("ledger.metrics"),
		summary:  p.Summary,
		pusher:   p.Pusher,
		assets:   p.AssetSvc,
		interval: pushInterval(p.Config.MetricsPushInterval),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			w.log.Info("starting ledger metrics worker", zap.Duration("interval", w.interval))
			go func() {
				defer close(done)
				w.run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func pushInterval(seconds int) time.Duration {
	interval := time.Duration(seconds) * time.Second
	if interval < minPushInterval {
		return minPushInterval
	}
	return interval
}

type worker struct {
	log      *zap.Logger
	summary  *Summary
	pusher   Pusher
	assets   assetdomain.Service
	interval time.Duration
}

func (w *worker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.pushOnce(ctx)
	for {
		select {
		case <-ticker.C:
			w.pushOnce(ctx)
		case <-ctx.Done():
			w.log.Info("stopping ledger metrics worker")
			return
		}
	}
}

func (w *worker) pushOnce(ctx context.Context) error {
	if err := w.summary.Refresh(ctx, w.assets); err != nil {
		w.log.Warn("ledger summary refresh failed", zap.Error(err))
		return err
	}
	if err := w.pusher.Push(ctx, w.summary.Registry()); err != nil {
		w.log.Warn("ledger metrics push failed", zap.Error(err))
		return err
	}
	return nil
}
