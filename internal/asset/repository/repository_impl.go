package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/carbonvault/internal/asset/domain"
	"gorm.io/gorm"
)

const selectColumns = `id, tonnes, source_ingestion_id, registry_serial, status, owner_id,
	version, created_at, updated_at, retired_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, asset *domain.Asset) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO assets (
			id, tonnes, source_ingestion_id, registry_serial, status, owner_id,
			version, created_at, updated_at, retired_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.ID,
		asset.Tonnes,
		asset.SourceIngestionID,
		asset.RegistrySerial,
		asset.Status,
		asset.OwnerID,
		asset.Version,
		asset.CreatedAt,
		asset.UpdatedAt,
		asset.RetiredAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Asset, error) {
	var asset domain.Asset
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM assets WHERE id = ?`,
		id,
	).Scan(&asset).Error
	if err != nil {
		return nil, err
	}
	if asset.ID == 0 {
		return nil, nil
	}
	return &asset, nil
}

// Tonnes, source and serial are deliberately absent from the SET list.
func (r *repo) CompareAndSwap(ctx context.Context, db *gorm.DB, next *domain.Asset, expectedVersion int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE assets
		 SET status = ?, owner_id = ?, version = ?, updated_at = ?, retired_at = ?
		 WHERE id = ? AND version = ? AND status <> ?`,
		next.Status,
		next.OwnerID,
		next.Version,
		next.UpdatedAt,
		next.RetiredAt,
		next.ID,
		expectedVersion,
		domain.StatusRetired,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Asset, error) {
	var assets []*domain.Asset
	stmt := db.WithContext(ctx).Model(&domain.Asset{})

	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if ownerID := strings.TrimSpace(filter.OwnerID); ownerID != "" {
		stmt = stmt.Where("owner_id = ?", ownerID)
	}
	if filter.Before != 0 {
		stmt = stmt.Where("id < ?", filter.Before)
	}
	stmt = stmt.Order("id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

func (r *repo) Summary(ctx context.Context, db *gorm.DB) (*domain.Summary, error) {
	var rows []struct {
		Status string
		Count  int64
		Tonnes decimal.Decimal
	}
	err := db.WithContext(ctx).Raw(
		`SELECT status, COUNT(*) AS count, COALESCE(SUM(tonnes), 0) AS tonnes
		 FROM assets
		 GROUP BY status`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	summary := &domain.Summary{
		ByStatus:      make(map[domain.Status]domain.StatusTotal, len(rows)),
		TotalTonnes:   decimal.Zero,
		RetiredTonnes: decimal.Zero,
	}
	for _, row := range rows {
		status := domain.Status(row.Status)
		summary.ByStatus[status] = domain.StatusTotal{Count: row.Count, Tonnes: row.Tonnes}
		summary.TotalAssets += row.Count
		summary.TotalTonnes = summary.TotalTonnes.Add(row.Tonnes)
		if status == domain.StatusRetired {
			summary.RetiredTonnes = row.Tonnes
		}
	}
	return summary, nil
}
