package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, asset *Asset) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Asset, error)
	// CompareAndSwap writes next only if the stored row still carries
	// expectedVersion. It reports false when another writer got there first.
	CompareAndSwap(ctx context.Context, db *gorm.DB, next *Asset, expectedVersion int64) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Asset, error)
	Summary(ctx context.Context, db *gorm.DB) (*Summary, error)
}
