package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/carbonvault/pkg/db/pagination"
)

type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (*IngestionRecord, error)
	Get(ctx context.Context, id string) (*IngestionRecord, error)
	ListPending(ctx context.Context) ([]IngestionRecord, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

type SubmitRequest struct {
	DeviceID   string          `json:"device_id"`
	Tonnes     decimal.Decimal `json:"tonnes"`
	CapturedAt *time.Time      `json:"captured_at,omitempty"`
}

type ListRequest struct {
	pagination.Pagination
	DeviceID string `form:"device_id"`
	Status   string `form:"status"`
}

type ListResponse struct {
	pagination.PageInfo
	Records []IngestionRecord `json:"records"`
}

const (
	// MaxClockSkew is how far into the future a device timestamp may be.
	MaxClockSkew = 5 * time.Minute
	// TonnesScale is the number of decimal places stored for tonnes.
	TonnesScale = 6
)

// MaxTonnes is the largest quantity a NUMERIC(20,6) column holds.
var MaxTonnes = decimal.New(1, 14)

var (
	ErrInvalidMeasurement = errors.New("invalid_measurement")
	ErrInvalidDevice      = errors.New("invalid_device")
	ErrInvalidCapturedAt  = errors.New("invalid_captured_at")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidPageToken   = errors.New("invalid_page_token")
	ErrAlreadyDecided     = errors.New("already_decided")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidID          = errors.New("invalid_id")
)

func ParseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(value)
	if err != nil || id == 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}

// ValidateTonnes accepts positive quantities representable in the ledger.
func ValidateTonnes(tonnes decimal.Decimal) error {
	if !tonnes.IsPositive() {
		return ErrInvalidMeasurement
	}
	if tonnes.GreaterThanOrEqual(MaxTonnes) {
		return ErrInvalidMeasurement
	}
	if !tonnes.Equal(tonnes.Truncate(TonnesScale)) {
		return ErrInvalidMeasurement
	}
	return nil
}
