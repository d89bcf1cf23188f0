package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	approvaldomain "github.com/smallbiznis/carbonvault/internal/approval/domain"
	assetdomain "github.com/smallbiznis/carbonvault/internal/asset/domain"
	auditdomain "github.com/smallbiznis/carbonvault/internal/audit/domain"
	"github.com/smallbiznis/carbonvault/internal/authorization"
	"github.com/smallbiznis/carbonvault/internal/clock"
	ingestiondomain "github.com/smallbiznis/carbonvault/internal/ingestion/domain"
	obslogger "github.com/smallbiznis/carbonvault/internal/observability/logger"
	"github.com/smallbiznis/carbonvault/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Clock         clock.Clock
	IngestionRepo ingestiondomain.Repository
	AssetSvc      assetdomain.Service
	AuditSvc      auditdomain.Service
	Authz         authorization.Service
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	clock         clock.Clock
	ingestionRepo ingestiondomain.Repository
	assetSvc      assetdomain.Service
	auditSvc      auditdomain.Service
	authz         authorization.Service
}

func NewService(p Params) approvaldomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("approval.service"),
		clock:         p.Clock,
		ingestionRepo: p.IngestionRepo,
		assetSvc:      p.AssetSvc,
		auditSvc:      p.AuditSvc,
		authz:         p.Authz,
	}
}

func (s *Service) Approve(ctx context.Context, req approvaldomain.ApproveRequest) (*assetdomain.Asset, error) {
	if err := s.authz.Authorize(ctx, req.Actor, authorization.ObjectIngestion, authorization.ActionIngestionApprove); err != nil {
		return nil, err
	}
	record, err := s.loadPending(ctx, req.IngestionID)
	if err != nil {
		return nil, err
	}

	actor := req.Actor.Normalize().ID
	asset, err := s.assetSvc.Mint(ctx, assetdomain.MintRequest{
		Actor:             actor,
		Tonnes:            record.Tonnes,
		SourceIngestionID: &record.ID,
		RegistrySerial:    req.RegistrySerial,
		Metadata: map[string]any{
			"device_id": record.DeviceID,
		},
		Within: func(ctx context.Context, tx *gorm.DB, asset *assetdomain.Asset) error {
			ok, err := s.ingestionRepo.Decide(ctx, tx, record.ID, ingestiondomain.StatusApproved, actor, nil, asset.CreatedAt)
			if err != nil {
				return err
			}
			if !ok {
				return ingestiondomain.ErrAlreadyDecided
			}
			return nil
		},
	})
	if errors.Is(err, assetdomain.ErrAlreadyMinted) {
		return nil, ingestiondomain.ErrAlreadyDecided
	}
	if err != nil {
		return nil, err
	}

	obslogger.WithContext(ctx, s.log).Info("ingestion approved",
		zap.String("ingestion_id", record.ID.String()),
		zap.String("asset_id", asset.ID.String()),
	)
	return asset, nil
}

func (s *Service) Reject(ctx context.Context, req approvaldomain.RejectRequest) (*ingestiondomain.IngestionRecord, error) {
	if err := s.authz.Authorize(ctx, req.Actor, authorization.ObjectIngestion, authorization.ActionIngestionReject); err != nil {
		return nil, err
	}
	record, err := s.loadPending(ctx, req.IngestionID)
	if err != nil {
		return nil, err
	}

	actor := req.Actor.Normalize().ID
	now := s.clock.Now()
	var reason *string
	metadata := map[string]any{"device_id": record.DeviceID}
	if r := strings.TrimSpace(req.Reason); r != "" {
		reason = &r
		metadata["reason"] = r
	}

	_, err = db.WithRetry(ctx, db.DefaultRetryPolicy(), func() (struct{}, error) {
		return struct{}{}, s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ok, err := s.ingestionRepo.Decide(ctx, tx, record.ID, ingestiondomain.StatusRejected, actor, reason, now)
			if err != nil {
				return err
			}
			if !ok {
				return ingestiondomain.ErrAlreadyDecided
			}
			_, err = s.auditSvc.Record(ctx, tx, auditdomain.RecordRequest{
				Actor:       actor,
				Action:      auditdomain.ActionIngestionRejected,
				IngestionID: &record.ID,
				FromStatus:  string(ingestiondomain.StatusPending),
				ToStatus:    string(ingestiondomain.StatusRejected),
				Metadata:    metadata,
			})
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	obslogger.WithContext(ctx, s.log).Info("ingestion rejected", zap.String("ingestion_id", record.ID.String()))
	return s.find(ctx, record.ID)
}

func (s *Service) loadPending(ctx context.Context, rawID string) (*ingestiondomain.IngestionRecord, error) {
	id, err := ingestiondomain.ParseID(strings.TrimSpace(rawID))
	if err != nil {
		return nil, err
	}
	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.ApprovalStatus != ingestiondomain.StatusPending {
		return nil, ingestiondomain.ErrAlreadyDecided
	}
	return record, nil
}

func (s *Service) find(ctx context.Context, id snowflake.ID) (*ingestiondomain.IngestionRecord, error) {
	record, err := s.ingestionRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ingestiondomain.ErrNotFound
	}
	return record, nil
}
