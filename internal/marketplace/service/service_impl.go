package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	assetdomain "github.com/smallbiznis/carbonvault/internal/asset/domain"
	"github.com/smallbiznis/carbonvault/internal/authorization"
	marketplacedomain "github.com/smallbiznis/carbonvault/internal/marketplace/domain"
	"github.com/smallbiznis/carbonvault/internal/observability/metrics"
	"github.com/smallbiznis/carbonvault/internal/ratelimit"
	retirementdomain "github.com/smallbiznis/carbonvault/internal/retirement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log           *zap.Logger
	AssetSvc      assetdomain.Service
	RetirementSvc retirementdomain.Service
	Authz         authorization.Service
	Limiter       *ratelimit.MarketplaceLimiter `optional:"true"`
	Metrics       *metrics.Metrics              `optional:"true"`
}

type Service struct {
	log           *zap.Logger
	assetSvc      assetdomain.Service
	retirementSvc retirementdomain.Service
	authz         authorization.Service
	limiter       *ratelimit.MarketplaceLimiter
	metrics       *metrics.Metrics
}

func NewService(p Params) marketplacedomain.Service {
	return &Service{
		log:           p.Log.Named("marketplace.service"),
		assetSvc:      p.AssetSvc,
		retirementSvc: p.RetirementSvc,
		authz:         p.Authz,
		limiter:       p.Limiter,
		metrics:       p.Metrics,
	}
}

func (s *Service) Buy(ctx context.Context, req marketplacedomain.TradeRequest) (*assetdomain.Asset, error) {
	actor, assetID, err := s.admit(ctx, req.Actor, req.AssetID, authorization.ActionAssetBuy, assetdomain.EventBuy)
	if err != nil {
		return nil, err
	}
	return s.assetSvc.Transition(ctx, assetdomain.TransitionRequest{
		AssetID: assetID,
		Event:   assetdomain.EventBuy,
		Actor:   actor.ID,
		Guard: func(_ context.Context, _ *gorm.DB, current *assetdomain.Asset) error {
			if current.Status != assetdomain.StatusAvailable && current.Owner() == actor.ID {
				return marketplacedomain.ErrAlreadyOwner
			}
			return nil
		},
	})
}

func (s *Service) Sell(ctx context.Context, req marketplacedomain.TradeRequest) (*assetdomain.Asset, error) {
	actor, assetID, err := s.admit(ctx, req.Actor, req.AssetID, authorization.ActionAssetSell, assetdomain.EventSell)
	if err != nil {
		return nil, err
	}
	return s.assetSvc.Transition(ctx, assetdomain.TransitionRequest{
		AssetID: assetID,
		Event:   assetdomain.EventSell,
		Actor:   actor.ID,
	})
}

func (s *Service) Transfer(ctx context.Context, req marketplacedomain.TransferRequest) (*assetdomain.Asset, error) {
	actor, assetID, err := s.admit(ctx, req.Actor, req.AssetID, authorization.ActionAssetTransfer, assetdomain.EventTransfer)
	if err != nil {
		return nil, err
	}
	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" {
		return nil, assetdomain.ErrInvalidRecipient
	}
	return s.assetSvc.Transition(ctx, assetdomain.TransitionRequest{
		AssetID:   assetID,
		Event:     assetdomain.EventTransfer,
		Actor:     actor.ID,
		Recipient: recipient,
	})
}

func (s *Service) RequestRetirement(ctx context.Context, req marketplacedomain.TradeRequest) (*retirementdomain.RequestResult, error) {
	actor, assetID, err := s.admit(ctx, req.Actor, req.AssetID, authorization.ActionAssetRetire, assetdomain.EventRequestRetirement)
	if err != nil {
		return nil, err
	}
	return s.retirementSvc.Request(ctx, assetID, actor.ID)
}

// admit authorizes and throttles the caller, then parses the asset id.
func (s *Service) admit(ctx context.Context, actor authorization.Actor, rawID string, action string, event assetdomain.Event) (authorization.Actor, snowflake.ID, error) {
	actor = actor.Normalize()
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectAsset, action); err != nil {
		return actor, 0, err
	}
	if !s.limiter.Allow(ctx, actor.ID) {
		s.metrics.RecordRateLimited(ctx, actor.Role, string(event))
		return actor, 0, marketplacedomain.ErrRateLimited
	}
	assetID, err := assetdomain.ParseID(strings.TrimSpace(rawID))
	if err != nil {
		return actor, 0, err
	}
	return actor, assetID, nil
}
