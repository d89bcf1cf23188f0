package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carbonvault/internal/clock"
	"github.com/smallbiznis/carbonvault/internal/config"
	ingestiondomain "github.com/smallbiznis/carbonvault/internal/ingestion/domain"
	"github.com/smallbiznis/carbonvault/internal/observability/metrics"
	"github.com/smallbiznis/carbonvault/pkg/db"
	"github.com/smallbiznis/carbonvault/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Config  *config.LedgerConfigHolder
	Repo    ingestiondomain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	config  *config.LedgerConfigHolder
	repo    ingestiondomain.Repository
	metrics *metrics.Metrics
}

func NewService(p Params) ingestiondomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("ingestion.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		config:  p.Config,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) Submit(ctx context.Context, req ingestiondomain.SubmitRequest) (*ingestiondomain.IngestionRecord, error) {
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		s.metrics.RecordIngestion(ctx, "invalid")
		return nil, ingestiondomain.ErrInvalidDevice
	}
	if err := ingestiondomain.ValidateTonnes(req.Tonnes); err != nil {
		s.metrics.RecordIngestion(ctx, "invalid")
		return nil, err
	}

	now := s.clock.Now()
	capturedAt := now
	if req.CapturedAt != nil && !req.CapturedAt.IsZero() {
		capturedAt = req.CapturedAt.UTC()
		if capturedAt.After(now.Add(ingestiondomain.MaxClockSkew)) {
			s.metrics.RecordIngestion(ctx, "invalid")
			return nil, ingestiondomain.ErrInvalidCapturedAt
		}
	}

	record := &ingestiondomain.IngestionRecord{
		ID:             s.genID.Generate(),
		DeviceID:       deviceID,
		Tonnes:         req.Tonnes,
		CapturedAt:     capturedAt,
		ApprovalStatus: ingestiondomain.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := db.WithRetry(ctx, s.retryPolicy(), func() (struct{}, error) {
		return struct{}{}, s.repo.Insert(ctx, s.db, record)
	})
	if err != nil {
		s.metrics.RecordIngestion(ctx, "error")
		s.log.Error("failed to store ingestion record", zap.String("device_id", deviceID), zap.Error(err))
		return nil, err
	}

	s.metrics.RecordIngestion(ctx, "ok")
	s.log.Info("ingestion record submitted",
		zap.String("ingestion_id", record.ID.String()),
		zap.String("device_id", deviceID),
		zap.String("tonnes", record.Tonnes.String()),
	)
	return record, nil
}

func (s *Service) Get(ctx context.Context, id string) (*ingestiondomain.IngestionRecord, error) {
	recordID, err := ingestiondomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	record, err := s.repo.FindByID(ctx, s.db, recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ingestiondomain.ErrNotFound
	}
	return record, nil
}

func (s *Service) ListPending(ctx context.Context) ([]ingestiondomain.IngestionRecord, error) {
	return s.repo.ListPending(ctx, s.db)
}

func (s *Service) List(ctx context.Context, req ingestiondomain.ListRequest) (ingestiondomain.ListResponse, error) {
	filter := ingestiondomain.ListFilter{
		DeviceID: strings.TrimSpace(req.DeviceID),
		Status:   ingestiondomain.ApprovalStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		Limit:    req.Size(),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return ingestiondomain.ListResponse{}, ingestiondomain.ErrInvalidStatus
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return ingestiondomain.ListResponse{}, ingestiondomain.ErrInvalidPageToken
		}
		before, err := snowflake.ParseString(cursor.ID)
		if err != nil || before == 0 {
			return ingestiondomain.ListResponse{}, ingestiondomain.ErrInvalidPageToken
		}
		filter.Before = before
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return ingestiondomain.ListResponse{}, err
	}
	items, pageInfo := pagination.Trim(items, filter.Limit, func(item *ingestiondomain.IngestionRecord) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: item.ID.String()})
		return token
	})

	records := make([]ingestiondomain.IngestionRecord, 0, len(items))
	for _, item := range items {
		records = append(records, *item)
	}
	return ingestiondomain.ListResponse{PageInfo: pageInfo, Records: records}, nil
}

func (s *Service) retryPolicy() db.RetryPolicy {
	policy := db.DefaultRetryPolicy()
	policy.MaxTries = uint(s.config.Get().Concurrency.StorageRetries)
	return policy
}
