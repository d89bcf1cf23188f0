package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/carbonvault/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLogEntry) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO audit_logs (
			id, actor, action, asset_id, ingestion_id, retirement_request_id,
			from_status, to_status, from_owner, to_owner, version,
			attestation_hash, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Actor,
		entry.Action,
		entry.AssetID,
		entry.IngestionID,
		entry.RetirementRequestID,
		entry.FromStatus,
		entry.ToStatus,
		entry.FromOwner,
		entry.ToOwner,
		entry.Version,
		entry.AttestationHash,
		entry.Metadata,
		entry.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLogEntry, error) {
	var entries []*domain.AuditLogEntry
	stmt := db.WithContext(ctx).Model(&domain.AuditLogEntry{})

	if filter.AssetID != nil {
		stmt = stmt.Where("asset_id = ?", *filter.AssetID)
	}
	if action := strings.TrimSpace(string(filter.Action)); action != "" {
		stmt = stmt.Where("action = ?", action)
	}
	if actor := strings.TrimSpace(filter.Actor); actor != "" {
		stmt = stmt.Where("actor = ?", actor)
	}
	if filter.Before != 0 {
		stmt = stmt.Where("id < ?", filter.Before)
	}

	stmt = stmt.Order("id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
