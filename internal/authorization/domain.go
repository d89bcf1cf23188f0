package authorization

import (
	"context"
	"errors"
	"strings"
)

const (
	RoleAdmin   = "admin"
	RoleCompany = "company"
	RoleDevice  = "device"
)

const (
	ObjectIngestion  = "ingestion"
	ObjectAsset      = "asset"
	ObjectRetirement = "retirement"
	ObjectAuditLog   = "audit_log"
)

const (
	ActionIngestionSubmit  = "ingestion.submit"
	ActionIngestionView    = "ingestion.view"
	ActionIngestionApprove = "ingestion.approve"
	ActionIngestionReject  = "ingestion.reject"

	ActionAssetView     = "asset.view"
	ActionAssetBuy      = "asset.buy"
	ActionAssetSell     = "asset.sell"
	ActionAssetTransfer = "asset.transfer"
	ActionAssetRetire   = "asset.retire"

	ActionRetirementView    = "retirement.view"
	ActionRetirementConfirm = "retirement.confirm"
	ActionRetirementReject  = "retirement.reject"

	ActionAuditLogView = "audit_log.view"
)

// Actor is the caller identity asserted by the authenticating proxy.
type Actor struct {
	ID   string
	Role string
}

func (a Actor) Normalize() Actor {
	return Actor{
		ID:   strings.TrimSpace(a.ID),
		Role: strings.ToLower(strings.TrimSpace(a.Role)),
	}
}

type Service interface {
	Authorize(ctx context.Context, actor Actor, object string, action string) error
}

var (
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidActor = errors.New("invalid_actor")
	ErrInvalidRole  = errors.New("invalid_role")
)
