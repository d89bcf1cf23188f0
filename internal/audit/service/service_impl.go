package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/carbonvault/internal/audit/domain"
	"github.com/smallbiznis/carbonvault/internal/clock"
	obscontext "github.com/smallbiznis/carbonvault/internal/observability/context"
	"github.com/smallbiznis/carbonvault/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const systemActor = "system"

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, req auditdomain.RecordRequest) (*auditdomain.AuditLogEntry, error) {
	if !req.Action.Valid() {
		return nil, auditdomain.ErrInvalidAction
	}
	if tx == nil {
		tx = s.db
	}

	actor := strings.TrimSpace(req.Actor)
	if actor == "" {
		actor, _ = obscontext.ActorFromContext(ctx)
	}
	if actor == "" {
		actor = systemActor
	}

	payload := map[string]any{}
	for key, value := range req.Metadata {
		if strings.TrimSpace(key) == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	entry := &auditdomain.AuditLogEntry{
		ID:                  s.genID.Generate(),
		Actor:               actor,
		Action:              req.Action,
		AssetID:             req.AssetID,
		IngestionID:         req.IngestionID,
		RetirementRequestID: req.RetirementRequestID,
		FromStatus:          optional(req.FromStatus),
		ToStatus:            optional(req.ToStatus),
		FromOwner:           optional(req.FromOwner),
		ToOwner:             optional(req.ToOwner),
		AttestationHash:     optional(req.AttestationHash),
		CreatedAt:           s.clock.Now(),
	}
	if req.Version > 0 {
		version := req.Version
		entry.Version = &version
	}
	if len(payload) > 0 {
		entry.Metadata = datatypes.JSONMap(payload)
	}

	if err := s.repo.Insert(ctx, tx, entry); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", string(req.Action)), zap.Error(err))
		return nil, err
	}
	return entry, nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	filter := auditdomain.ListFilter{
		Action: auditdomain.Action(strings.TrimSpace(req.Action)),
		Actor:  strings.TrimSpace(req.Actor),
		Limit:  req.Size(),
	}
	if filter.Action != "" && !filter.Action.Valid() {
		return auditdomain.ListResponse{}, auditdomain.ErrInvalidAction
	}
	if raw := strings.TrimSpace(req.AssetID); raw != "" {
		assetID, err := snowflake.ParseString(raw)
		if err != nil || assetID == 0 {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidAssetID
		}
		filter.AssetID = &assetID
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		before, err := snowflake.ParseString(strings.TrimSpace(cursor.ID))
		if err != nil || before == 0 {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		filter.Before = before
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, filter.Limit, func(item *auditdomain.AuditLogEntry) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: item.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})

	entries := make([]auditdomain.AuditLogEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, *item)
	}
	return auditdomain.ListResponse{PageInfo: pageInfo, Entries: entries}, nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
