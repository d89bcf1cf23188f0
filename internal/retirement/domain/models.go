package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ConfirmationStatus string

const (
	StatusPending   ConfirmationStatus = "pending"
	StatusConfirmed ConfirmationStatus = "confirmed"
	StatusRejected  ConfirmationStatus = "rejected"
)

// RetirementRequest asks an administrator to retire an owned asset. It is
// resolved exactly once; rejected requests stay as history.
type RetirementRequest struct {
	ID                 snowflake.ID       `json:"id" gorm:"primaryKey"`
	AssetID            snowflake.ID       `json:"asset_id"`
	RequestedBy        string             `json:"requested_by"`
	RequestedAt        time.Time          `json:"requested_at"`
	ConfirmationStatus ConfirmationStatus `json:"confirmation_status"`
	ResolvedBy         *string            `json:"resolved_by,omitempty"`
	ResolvedAt         *time.Time         `json:"resolved_at,omitempty"`
	ResolutionReason   *string            `json:"resolution_reason,omitempty"`
}

func (RetirementRequest) TableName() string { return "retirement_requests" }
