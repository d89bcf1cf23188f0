package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *IngestionRecord) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*IngestionRecord, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*IngestionRecord, error)
	ListPending(ctx context.Context, db *gorm.DB) ([]IngestionRecord, error)
	// Decide moves a pending record to status. It reports false when the
	// record was no longer pending.
	Decide(ctx context.Context, db *gorm.DB, id snowflake.ID, status ApprovalStatus, actor string, reason *string, at time.Time) (bool, error)
}
