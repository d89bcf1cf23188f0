package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carbonvault/pkg/db/pagination"
	"gorm.io/gorm"
)

// RecordRequest describes an entry to append. Empty strings are stored as NULL.
type RecordRequest struct {
	Actor               string
	Action              Action
	AssetID             *snowflake.ID
	IngestionID         *snowflake.ID
	RetirementRequestID *snowflake.ID
	FromStatus          string
	ToStatus            string
	FromOwner           string
	ToOwner             string
	Version             int64
	AttestationHash     string
	Metadata            map[string]any
}

type ListRequest struct {
	pagination.Pagination
	AssetID string `form:"asset_id"`
	Action  string `form:"action"`
	Actor   string `form:"actor"`
}

type ListResponse struct {
	pagination.PageInfo
	Entries []AuditLogEntry `json:"entries"`
}

type Service interface {
	// Record appends an entry using tx, so the write commits or rolls back
	// together with the change it describes.
	Record(ctx context.Context, tx *gorm.DB, req RecordRequest) (*AuditLogEntry, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLogEntry) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLogEntry, error)
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidActor     = errors.New("invalid_actor")
	ErrInvalidAssetID   = errors.New("invalid_asset_id")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
