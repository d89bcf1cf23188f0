package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	assetdomain "github.com/smallbiznis/carbonvault/internal/asset/domain"
	"github.com/smallbiznis/carbonvault/internal/authorization"
)

type Service interface {
	// Request moves an owned asset to pending_retirement and opens a request.
	Request(ctx context.Context, assetID snowflake.ID, ownerID string) (*RequestResult, error)
	Confirm(ctx context.Context, req ResolveRequest) (*assetdomain.Asset, error)
	Reject(ctx context.Context, req ResolveRequest) (*assetdomain.Asset, error)
	Get(ctx context.Context, id string) (*RetirementRequest, error)
	ListPending(ctx context.Context) ([]RetirementRequest, error)
}

type ResolveRequest struct {
	ID     string
	Actor  authorization.Actor
	Reason string
}

type RequestResult struct {
	Asset   *assetdomain.Asset `json:"asset"`
	Request *RetirementRequest `json:"retirement_request"`
}

var (
	ErrAlreadyResolved = errors.New("already_resolved")
	ErrAlreadyPending  = errors.New("retirement_already_pending")
	ErrNotFound        = errors.New("not_found")
	ErrInvalidID       = errors.New("invalid_id")
)

func ParseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(value)
	if err != nil || id == 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}
