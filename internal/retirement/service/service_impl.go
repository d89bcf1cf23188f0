package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	assetdomain "github.com/smallbiznis/carbonvault/internal/asset/domain"
	"github.com/smallbiznis/carbonvault/internal/authorization"
	"github.com/smallbiznis/carbonvault/internal/clock"
	obslogger "github.com/smallbiznis/carbonvault/internal/observability/logger"
	"github.com/smallbiznis/carbonvault/internal/retirement/domain"
	"github.com/smallbiznis/carbonvault/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	AssetSvc assetdomain.Service
	Authz    authorization.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	assetSvc assetdomain.Service
	authz    authorization.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("retirement.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		assetSvc: p.AssetSvc,
		authz:    p.Authz,
	}
}

func (s *Service) Request(ctx context.Context, assetID snowflake.ID, ownerID string) (*domain.RequestResult, error) {
	ownerID = strings.TrimSpace(ownerID)
	requestID := s.genID.Generate()

	var opened *domain.RetirementRequest
	asset, err := s.assetSvc.Transition(ctx, assetdomain.TransitionRequest{
		AssetID:             assetID,
		Event:               assetdomain.EventRequestRetirement,
		Actor:               ownerID,
		RetirementRequestID: &requestID,
		Within: func(ctx context.Context, tx *gorm.DB, before, after *assetdomain.Asset, _ string) error {
			req := &domain.RetirementRequest{
				ID:                 requestID,
				AssetID:            after.ID,
				RequestedBy:        ownerID,
				RequestedAt:        after.UpdatedAt,
				ConfirmationStatus: domain.StatusPending,
			}
			if err := s.repo.Insert(ctx, tx, req); err != nil {
				if db.IsDuplicateKeyErr(err) {
					return domain.ErrAlreadyPending
				}
				return err
			}
			opened = req
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	obslogger.WithContext(ctx, s.log).Info("retirement requested",
		zap.String("asset_id", asset.ID.String()),
		zap.String("retirement_request_id", requestID.String()),
	)
	return &domain.RequestResult{Asset: asset, Request: opened}, nil
}

func (s *Service) Confirm(ctx context.Context, req domain.ResolveRequest) (*assetdomain.Asset, error) {
	if err := s.authz.Authorize(ctx, req.Actor, authorization.ObjectRetirement, authorization.ActionRetirementConfirm); err != nil {
		return nil, err
	}
	return s.resolve(ctx, req, assetdomain.EventConfirmRetirement, domain.StatusConfirmed)
}

func (s *Service) Reject(ctx context.Context, req domain.ResolveRequest) (*assetdomain.Asset, error) {
	if err := s.authz.Authorize(ctx, req.Actor, authorization.ObjectRetirement, authorization.ActionRetirementReject); err != nil {
		return nil, err
	}
	return s.resolve(ctx, req, assetdomain.EventRejectRetirement, domain.StatusRejected)
}

func (s *Service) resolve(ctx context.Context, req domain.ResolveRequest, event assetdomain.Event, status domain.ConfirmationStatus) (*assetdomain.Asset, error) {
	id, err := domain.ParseID(strings.TrimSpace(req.ID))
	if err != nil {
		return nil, err
	}
	pending, err := s.loadPending(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	actor := req.Actor.Normalize().ID
	var reason *string
	if r := strings.TrimSpace(req.Reason); r != "" {
		reason = &r
	}
	metadata := map[string]any{}
	if reason != nil {
		metadata["reason"] = *reason
	}

	asset, err := s.assetSvc.Transition(ctx, assetdomain.TransitionRequest{
		AssetID:             pending.AssetID,
		Event:               event,
		Actor:               actor,
		RetirementRequestID: &id,
		Metadata:            metadata,
		// A concurrent resolution moves the asset first; re-checking the
		// request on every attempt reports it as resolved, not as a bad transition.
		Guard: func(ctx context.Context, conn *gorm.DB, _ *assetdomain.Asset) error {
			_, err := s.loadPending(ctx, conn, id)
			return err
		},
		Within: func(ctx context.Context, tx *gorm.DB, _, after *assetdomain.Asset, _ string) error {
			ok, err := s.repo.Resolve(ctx, tx, id, status, actor, reason, after.UpdatedAt)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrAlreadyResolved
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	obslogger.WithContext(ctx, s.log).Info("retirement resolved",
		zap.String("retirement_request_id", id.String()),
		zap.String("asset_id", asset.ID.String()),
		zap.String("status", string(status)),
	)
	return asset, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.RetirementRequest, error) {
	requestID, err := domain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	req, err := s.repo.FindByID(ctx, s.db, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, domain.ErrNotFound
	}
	return req, nil
}

func (s *Service) ListPending(ctx context.Context) ([]domain.RetirementRequest, error) {
	return s.repo.ListPending(ctx, s.db)
}

func (s *Service) loadPending(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.RetirementRequest, error) {
	req, err := s.repo.FindByID(ctx, conn, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, domain.ErrNotFound
	}
	if req.ConfirmationStatus != domain.StatusPending {
		return nil, domain.ErrAlreadyResolved
	}
	return req, nil
}
