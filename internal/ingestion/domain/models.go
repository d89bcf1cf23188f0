package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IngestionRecord is a raw device measurement awaiting an approval decision.
// Once approved or rejected it never changes again.
type IngestionRecord struct {
	ID              snowflake.ID    `json:"id" gorm:"primaryKey"`
	DeviceID        string          `json:"device_id"`
	Tonnes          decimal.Decimal `json:"tonnes"`
	CapturedAt      time.Time       `json:"captured_at"`
	ApprovalStatus  ApprovalStatus  `json:"approval_status"`
	DecidedBy       *string         `json:"decided_by,omitempty"`
	DecidedAt       *time.Time      `json:"decided_at,omitempty"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (IngestionRecord) TableName() string { return "ingestion_records" }

type ListFilter struct {
	DeviceID string
	Status   ApprovalStatus
	Before   snowflake.ID
	Limit    int
}
