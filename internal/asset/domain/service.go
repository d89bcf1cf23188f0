package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/carbonvault/pkg/db/pagination"
	"gorm.io/gorm"
)

type Service interface {
	Get(ctx context.Context, id string) (*Asset, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Summary(ctx context.Context) (*Summary, error)
	// Mint creates a new available asset, attested and audited.
	Mint(ctx context.Context, req MintRequest) (*Asset, error)
	// Transition applies a lifecycle event with optimistic concurrency.
	Transition(ctx context.Context, req TransitionRequest) (*Asset, error)
}

// GuardFunc runs at the start of every attempt, before the state machine.
// Returning an error aborts the operation without retrying.
type GuardFunc func(ctx context.Context, db *gorm.DB, current *Asset) error

// WithinFunc runs inside the committing transaction after the asset row is
// written. Returning an error rolls the whole change back.
type WithinFunc func(ctx context.Context, tx *gorm.DB, before, after *Asset, attestationHash string) error

type MintRequest struct {
	Actor             string
	Tonnes            decimal.Decimal
	SourceIngestionID *snowflake.ID
	RegistrySerial    string
	Metadata          map[string]any
	Within            func(ctx context.Context, tx *gorm.DB, asset *Asset) error
}

type TransitionRequest struct {
	AssetID             snowflake.ID
	Event               Event
	Actor               string
	Recipient           string
	RetirementRequestID *snowflake.ID
	Metadata            map[string]any
	Guard               GuardFunc
	Within              WithinFunc
}

type ListRequest struct {
	pagination.Pagination
	Status  string `form:"status"`
	OwnerID string `form:"owner_id"`
}

type ListResponse struct {
	pagination.PageInfo
	Assets []Asset `json:"assets"`
}

var (
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrNotAvailable      = errors.New("not_available")
	ErrNotOwner          = errors.New("not_owner")
	ErrConflict          = errors.New("conflict")
	ErrInvalidRecipient  = errors.New("invalid_recipient")
	ErrInvalidEvent      = errors.New("invalid_event")
	ErrInvalidActor      = errors.New("invalid_actor")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidTonnes     = errors.New("invalid_tonnes")
	ErrInvalidPageToken  = errors.New("invalid_page_token")
	ErrAlreadyMinted     = errors.New("already_minted")
	ErrNotFound          = errors.New("not_found")
	ErrInvalidID         = errors.New("invalid_id")
)

func ParseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(value)
	if err != nil || id == 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}
