package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusAvailable         Status = "available"
	StatusOwned             Status = "owned"
	StatusPendingRetirement Status = "pending_retirement"
	StatusRetired           Status = "retired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusOwned, StatusPendingRetirement, StatusRetired:
		return true
	}
	return false
}

// Asset is one minted carbon credit. Tonnes never change after mint and a
// retired asset never changes at all.
type Asset struct {
	ID                snowflake.ID    `json:"id" gorm:"primaryKey"`
	Tonnes            decimal.Decimal `json:"tonnes"`
	SourceIngestionID *snowflake.ID   `json:"source_ingestion_id,omitempty"`
	RegistrySerial    *string         `json:"registry_serial,omitempty"`
	Status            Status          `json:"status"`
	OwnerID           *string         `json:"owner_id,omitempty"`
	Version           int64           `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	RetiredAt         *time.Time      `json:"retired_at,omitempty"`
}

func (Asset) TableName() string { return "assets" }

// Owner returns the owner id or "" when the asset is unowned.
func (a Asset) Owner() string {
	if a.OwnerID == nil {
		return ""
	}
	return *a.OwnerID
}

type ListFilter struct {
	Status  Status
	OwnerID string
	Before  snowflake.ID
	Limit   int
}

type StatusTotal struct {
	Count  int64           `json:"count"`
	Tonnes decimal.Decimal `json:"tonnes"`
}

// Summary aggregates the ledger by status.
type Summary struct {
	ByStatus      map[Status]StatusTotal `json:"by_status"`
	TotalAssets   int64                  `json:"total_assets"`
	TotalTonnes   decimal.Decimal        `json:"total_tonnes"`
	RetiredTonnes decimal.Decimal        `json:"retired_tonnes"`
}
