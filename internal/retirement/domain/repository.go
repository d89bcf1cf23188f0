package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, req *RetirementRequest) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*RetirementRequest, error)
	ListPending(ctx context.Context, db *gorm.DB) ([]RetirementRequest, error)
	// Resolve settles a pending request. It reports false when the request
	// had already been resolved.
	Resolve(ctx context.Context, db *gorm.DB, id snowflake.ID, status ConfirmationStatus, actor string, reason *string, at time.Time) (bool, error)
}
