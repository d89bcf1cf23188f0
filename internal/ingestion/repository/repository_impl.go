package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carbonvault/internal/ingestion/domain"
	"gorm.io/gorm"
)

const selectColumns = `id, device_id, tonnes, captured_at, approval_status, decided_by,
	decided_at, rejection_reason, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.IngestionRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO ingestion_records (id, device_id, tonnes, captured_at, approval_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.DeviceID,
		record.Tonnes,
		record.CapturedAt,
		record.ApprovalStatus,
		record.CreatedAt,
		record.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.IngestionRecord, error) {
	var record domain.IngestionRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM ingestion_records WHERE id = ?`,
		id,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.IngestionRecord, error) {
	var records []*domain.IngestionRecord
	stmt := db.WithContext(ctx).Model(&domain.IngestionRecord{})

	if deviceID := strings.TrimSpace(filter.DeviceID); deviceID != "" {
		stmt = stmt.Where("device_id = ?", deviceID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("approval_status = ?", filter.Status)
	}
	if filter.Before != 0 {
		stmt = stmt.Where("id < ?", filter.Before)
	}
	stmt = stmt.Order("id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) ListPending(ctx context.Context, db *gorm.DB) ([]domain.IngestionRecord, error) {
	var records []domain.IngestionRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM ingestion_records
		 WHERE approval_status = ?
		 ORDER BY id ASC`,
		domain.StatusPending,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) Decide(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.ApprovalStatus, actor string, reason *string, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE ingestion_records
		 SET approval_status = ?, decided_by = ?, decided_at = ?, rejection_reason = ?, updated_at = ?
		 WHERE id = ? AND approval_status = ?`,
		status,
		actor,
		at,
		reason,
		at,
		id,
		domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
