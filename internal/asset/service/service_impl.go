package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	assetdomain "github.com/smallbiznis/carbonvault/internal/asset/domain"
	attestationdomain "github.com/smallbiznis/carbonvault/internal/attestation/domain"
	auditdomain "github.com/smallbiznis/carbonvault/internal/audit/domain"
	"github.com/smallbiznis/carbonvault/internal/clock"
	"github.com/smallbiznis/carbonvault/internal/config"
	obslogger "github.com/smallbiznis/carbonvault/internal/observability/logger"
	"github.com/smallbiznis/carbonvault/internal/observability/metrics"
	"github.com/smallbiznis/carbonvault/pkg/db"
	"github.com/smallbiznis/carbonvault/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// errVersionMoved marks a lost compare-and-swap inside the commit transaction.
var errVersionMoved = errors.New("version_moved")

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      *config.LedgerConfigHolder
	Repo        assetdomain.Repository
	AuditSvc    auditdomain.Service
	Attestation attestationdomain.Service
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	config      *config.LedgerConfigHolder
	repo        assetdomain.Repository
	auditSvc    auditdomain.Service
	attestation attestationdomain.Service
	metrics     *metrics.Metrics
}

func NewService(p Params) assetdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("asset.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		config:      p.Config,
		repo:        p.Repo,
		auditSvc:    p.AuditSvc,
		attestation: p.Attestation,
		metrics:     p.Metrics,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*assetdomain.Asset, error) {
	assetID, err := assetdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	return s.load(ctx, assetID)
}

func (s *Service) List(ctx context.Context, req assetdomain.ListRequest) (assetdomain.ListResponse, error) {
	filter := assetdomain.ListFilter{
		Status:  assetdomain.Status(strings.ToLower(strings.TrimSpace(req.Status))),
		OwnerID: strings.TrimSpace(req.OwnerID),
		Limit:   req.Size(),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return assetdomain.ListResponse{}, assetdomain.ErrInvalidStatus
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return assetdomain.ListResponse{}, assetdomain.ErrInvalidPageToken
		}
		before, err := snowflake.ParseString(cursor.ID)
		if err != nil || before == 0 {
			return assetdomain.ListResponse{}, assetdomain.ErrInvalidPageToken
		}
		filter.Before = before
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return assetdomain.ListResponse{}, err
	}
	items, pageInfo := pagination.Trim(items, filter.Limit, func(item *assetdomain.Asset) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: item.ID.String()})
		return token
	})

	assets := make([]assetdomain.Asset, 0, len(items))
	for _, item := range items {
		assets = append(assets, *item)
	}
	return assetdomain.ListResponse{PageInfo: pageInfo, Assets: assets}, nil
}

func (s *Service) Summary(ctx context.Context) (*assetdomain.Summary, error) {
	return s.repo.Summary(ctx, s.db)
}

func (s *Service) Mint(ctx context.Context, req assetdomain.MintRequest) (*assetdomain.Asset, error) {
	actor := strings.TrimSpace(req.Actor)
	if actor == "" {
		return nil, assetdomain.ErrInvalidActor
	}
	if !req.Tonnes.IsPositive() {
		return nil, assetdomain.ErrInvalidTonnes
	}

	now := s.clock.Now()
	asset := &assetdomain.Asset{
		ID:                s.genID.Generate(),
		Tonnes:            req.Tonnes,
		SourceIngestionID: req.SourceIngestionID,
		Status:            assetdomain.StatusAvailable,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if serial := strings.TrimSpace(req.RegistrySerial); serial != "" {
		asset.RegistrySerial = &serial
	}

	payload := map[string]any{
		"tonnes":  asset.Tonnes.String(),
		"status":  string(asset.Status),
		"version": asset.Version,
	}
	if asset.SourceIngestionID != nil {
		payload["source_ingestion_id"] = asset.SourceIngestionID.String()
	}
	hash, err := s.attestation.Attest(ctx, attestationdomain.Request{
		Operation: attestationdomain.OperationMint,
		AssetID:   asset.ID.String(),
		Payload:   payload,
	})
	if err != nil {
		s.metrics.RecordTransition(ctx, "mint", "attestation_failed")
		return nil, err
	}

	_, err = db.WithRetry(ctx, s.retryPolicy(), func() (struct{}, error) {
		return struct{}{}, s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if req.Within != nil {
				if err := req.Within(ctx, tx, asset); err != nil {
					return err
				}
			}
			if err := s.repo.Insert(ctx, tx, asset); err != nil {
				if db.IsDuplicateKeyErr(err) {
					return assetdomain.ErrAlreadyMinted
				}
				return err
			}
			_, err := s.auditSvc.Record(ctx, tx, auditdomain.RecordRequest{
				Actor:           actor,
				Action:          auditdomain.ActionMinted,
				AssetID:         &asset.ID,
				IngestionID:     asset.SourceIngestionID,
				ToStatus:        string(asset.Status),
				Version:         asset.Version,
				AttestationHash: hash,
				Metadata:        withTonnes(req.Metadata, asset),
			})
			return err
		})
	})
	if err != nil {
		s.metrics.RecordTransition(ctx, "mint", outcomeOf(err))
		return nil, err
	}

	s.metrics.RecordTransition(ctx, "mint", "ok")
	obslogger.WithContext(ctx, s.log).Info("asset minted",
		zap.String("asset_id", asset.ID.String()),
		zap.String("tonnes", asset.Tonnes.String()),
	)
	return s.verify(ctx, asset)
}

func (s *Service) Transition(ctx context.Context, req assetdomain.TransitionRequest) (*assetdomain.Asset, error) {
	if req.AssetID == 0 {
		return nil, assetdomain.ErrInvalidID
	}
	if !req.Event.Valid() {
		return nil, assetdomain.ErrInvalidEvent
	}
	req.Actor = strings.TrimSpace(req.Actor)
	if req.Actor == "" {
		return nil, assetdomain.ErrInvalidActor
	}

	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("asset_id", req.AssetID.String()),
		zap.String("event", string(req.Event)),
	)
	attempts := s.config.Get().Concurrency.CASAttempts

	for attempt := 1; attempt <= attempts; attempt++ {
		current, err := s.load(ctx, req.AssetID)
		if err != nil {
			return nil, err
		}
		if req.Guard != nil {
			if err := req.Guard(ctx, s.db, current); err != nil {
				s.metrics.RecordTransition(ctx, string(req.Event), "rejected")
				return nil, err
			}
		}

		next, err := assetdomain.Apply(*current, assetdomain.Command{
			Event:     req.Event,
			Actor:     req.Actor,
			Recipient: req.Recipient,
		}, s.clock.Now())
		if err != nil {
			s.metrics.RecordTransition(ctx, string(req.Event), "rejected")
			return nil, err
		}

		hash, err := s.attest(ctx, req.Event, current, &next)
		if err != nil {
			s.metrics.RecordTransition(ctx, string(req.Event), "attestation_failed")
			return nil, err
		}

		applied, err := db.WithRetry(ctx, s.retryPolicy(), func() (bool, error) {
			return s.commit(ctx, req, current, &next, hash)
		})
		if err != nil {
			s.metrics.RecordTransition(ctx, string(req.Event), outcomeOf(err))
			return nil, err
		}
		if !applied {
			s.metrics.RecordConflict(ctx, string(req.Event))
			log.Debug("version moved, retrying", zap.Int("attempt", attempt), zap.Int64("version", current.Version))
			continue
		}

		s.metrics.RecordTransition(ctx, string(req.Event), "ok")
		log.Info("asset transitioned",
			zap.String("from_status", string(current.Status)),
			zap.String("to_status", string(next.Status)),
			zap.Int64("version", next.Version),
		)
		return s.verify(ctx, &next)
	}

	s.metrics.RecordTransition(ctx, string(req.Event), "conflict")
	log.Warn("gave up after repeated version conflicts", zap.Int("attempts", attempts))
	return nil, assetdomain.ErrConflict
}

func (s *Service) commit(ctx context.Context, req assetdomain.TransitionRequest, current, next *assetdomain.Asset, hash string) (bool, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.CompareAndSwap(ctx, tx, next, current.Version)
		if err != nil {
			return err
		}
		if !ok {
			return errVersionMoved
		}
		if req.Within != nil {
			if err := req.Within(ctx, tx, current, next, hash); err != nil {
				return err
			}
		}
		_, err = s.auditSvc.Record(ctx, tx, auditdomain.RecordRequest{
			Actor:               req.Actor,
			Action:              actionFor(req.Event),
			AssetID:             &next.ID,
			RetirementRequestID: req.RetirementRequestID,
			FromStatus:          string(current.Status),
			ToStatus:            string(next.Status),
			FromOwner:           current.Owner(),
			ToOwner:             next.Owner(),
			Version:             next.Version,
			AttestationHash:     hash,
			Metadata:            req.Metadata,
		})
		return err
	})
	if errors.Is(err, errVersionMoved) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) attest(ctx context.Context, event assetdomain.Event, current, next *assetdomain.Asset) (string, error) {
	return s.attestation.Attest(ctx, attestationdomain.Request{
		Operation: attestationdomain.Operation(event),
		AssetID:   next.ID.String(),
		Payload: map[string]any{
			"from_status": string(current.Status),
			"to_status":   string(next.Status),
			"from_owner":  current.Owner(),
			"to_owner":    next.Owner(),
			"version":     next.Version,
			"tonnes":      next.Tonnes.String(),
		},
	})
}

// verify re-reads the asset after commit. A newer version is fine: another
// writer may already have moved it on.
func (s *Service) verify(ctx context.Context, committed *assetdomain.Asset) (*assetdomain.Asset, error) {
	fresh, err := s.load(ctx, committed.ID)
	if err != nil {
		return nil, err
	}
	if fresh.Version < committed.Version {
		s.log.Error("committed version not visible",
			zap.String("asset_id", committed.ID.String()),
			zap.Int64("expected", committed.Version),
			zap.Int64("found", fresh.Version),
		)
		return nil, fmt.Errorf("%w: committed version %d not visible", assetdomain.ErrConflict, committed.Version)
	}
	if fresh.Version == committed.Version {
		return fresh, nil
	}
	return committed, nil
}

func (s *Service) load(ctx context.Context, id snowflake.ID) (*assetdomain.Asset, error) {
	asset, err := db.WithRetry(ctx, s.retryPolicy(), func() (*assetdomain.Asset, error) {
		return s.repo.FindByID(ctx, s.db, id)
	})
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, assetdomain.ErrNotFound
	}
	return asset, nil
}

func (s *Service) retryPolicy() db.RetryPolicy {
	policy := db.DefaultRetryPolicy()
	policy.MaxTries = uint(s.config.Get().Concurrency.StorageRetries)
	return policy
}

func actionFor(event assetdomain.Event) auditdomain.Action {
	switch event {
	case assetdomain.EventBuy:
		return auditdomain.ActionBought
	case assetdomain.EventSell:
		return auditdomain.ActionSold
	case assetdomain.EventTransfer:
		return auditdomain.ActionTransferred
	case assetdomain.EventRequestRetirement:
		return auditdomain.ActionRetirementRequested
	case assetdomain.EventConfirmRetirement:
		return auditdomain.ActionRetirementConfirmed
	case assetdomain.EventRejectRetirement:
		return auditdomain.ActionRetirementRejected
	}
	return ""
}

func outcomeOf(err error) string {
	if db.IsTransient(err) {
		return "storage_unavailable"
	}
	return "error"
}

func withTonnes(metadata map[string]any, asset *assetdomain.Asset) map[string]any {
	out := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out["tonnes"] = asset.Tonnes.String()
	return out
}
