package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/carbonvault/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyMarketplaceActor = "carbonvault:marketplace:actor:%s"

// NewRedisClient returns nil when no REDIS_ADDR is configured.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

// MarketplaceLimiter throttles trading operations per actor. A nil limiter
// allows everything.
type MarketplaceLimiter struct {
	bucket *TokenBucket
	config *config.LedgerConfigHolder
	log    *zap.Logger
}

type LimiterParams struct {
	fx.In

	Client *redis.Client `optional:"true"`
	Config *config.LedgerConfigHolder
	Log    *zap.Logger
}

func NewMarketplaceLimiter(p LimiterParams) *MarketplaceLimiter {
	if p.Client == nil {
		return nil
	}
	return newMarketplaceLimiter(p.Client, p.Config, p.Log)
}

func newMarketplaceLimiter(client redis.Scripter, cfg *config.LedgerConfigHolder, log *zap.Logger) *MarketplaceLimiter {
	return &MarketplaceLimiter{
		bucket: NewTokenBucket(client),
		config: cfg,
		log:    log.Named("ratelimit.marketplace"),
	}
}

// Allow reports whether actorID may perform another trading operation.
// Redis failures are logged and let the request through.
func (l *MarketplaceLimiter) Allow(ctx context.Context, actorID string) bool {
	if l == nil {
		return true
	}
	cfg := l.config.Get().RateLimit
	if !cfg.Enabled {
		return true
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return true
	}

	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyMarketplaceActor, actorID), cfg.Rate, cfg.Burst)
	if err != nil {
		l.log.Warn("rate limit check failed", zap.String("actor_id", actorID), zap.Error(err))
		return true
	}
	if !res.Allowed {
		l.log.Debug("rate limited",
			zap.String("actor_id", actorID),
			zap.Duration("retry_after", res.RetryAfter),
		)
	}
	return res.Allowed
}
