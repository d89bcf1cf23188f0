package domain

import (
	"context"

	assetdomain "github.com/smallbiznis/carbonvault/internal/asset/domain"
	"github.com/smallbiznis/carbonvault/internal/authorization"
	ingestiondomain "github.com/smallbiznis/carbonvault/internal/ingestion/domain"
)

// Service turns pending ingestion records into assets or rejects them.
// Each record is decided at most once.
type Service interface {
	Approve(ctx context.Context, req ApproveRequest) (*assetdomain.Asset, error)
	Reject(ctx context.Context, req RejectRequest) (*ingestiondomain.IngestionRecord, error)
}

type ApproveRequest struct {
	IngestionID    string
	Actor          authorization.Actor
	RegistrySerial string
}

type RejectRequest struct {
	IngestionID string
	Actor       authorization.Actor
	Reason      string
}
