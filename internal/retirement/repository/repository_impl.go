package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carbonvault/internal/retirement/domain"
	"gorm.io/gorm"
)

const selectColumns = `id, asset_id, requested_by, requested_at, confirmation_status,
	resolved_by, resolved_at, resolution_reason`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, req *domain.RetirementRequest) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO retirement_requests (id, asset_id, requested_by, requested_at, confirmation_status)
		 VALUES (?, ?, ?, ?, ?)`,
		req.ID,
		req.AssetID,
		req.RequestedBy,
		req.RequestedAt,
		req.ConfirmationStatus,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.RetirementRequest, error) {
	var req domain.RetirementRequest
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM retirement_requests WHERE id = ?`,
		id,
	).Scan(&req).Error
	if err != nil {
		return nil, err
	}
	if req.ID == 0 {
		return nil, nil
	}
	return &req, nil
}

func (r *repo) ListPending(ctx context.Context, db *gorm.DB) ([]domain.RetirementRequest, error) {
	var reqs []domain.RetirementRequest
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM retirement_requests
		 WHERE confirmation_status = ?
		 ORDER BY requested_at ASC, id ASC`,
		domain.StatusPending,
	).Scan(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *repo) Resolve(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.ConfirmationStatus, actor string, reason *string, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE retirement_requests
		 SET confirmation_status = ?, resolved_by = ?, resolved_at = ?, resolution_reason = ?
		 WHERE id = ? AND confirmation_status = ?`,
		status,
		actor,
		at,
		reason,
		id,
		domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
