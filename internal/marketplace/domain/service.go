package domain

import (
	"context"
	"errors"

	assetdomain "github.com/smallbiznis/carbonvault/internal/asset/domain"
	"github.com/smallbiznis/carbonvault/internal/authorization"
	retirementdomain "github.com/smallbiznis/carbonvault/internal/retirement/domain"
)

// Service is the company-facing trading surface over the asset ledger.
type Service interface {
	Buy(ctx context.Context, req TradeRequest) (*assetdomain.Asset, error)
	// Sell puts an owned asset back on the market.
	Sell(ctx context.Context, req TradeRequest) (*assetdomain.Asset, error)
	Transfer(ctx context.Context, req TransferRequest) (*assetdomain.Asset, error)
	RequestRetirement(ctx context.Context, req TradeRequest) (*retirementdomain.RequestResult, error)
}

type TradeRequest struct {
	AssetID string
	Actor   authorization.Actor
}

type TransferRequest struct {
	AssetID   string
	Actor     authorization.Actor
	Recipient string `json:"recipient"`
}

var (
	ErrAlreadyOwner = errors.New("already_owner")
	ErrRateLimited  = errors.New("rate_limited")
)
