package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Action string

const (
	ActionMinted              Action = "minted"
	ActionBought              Action = "bought"
	ActionSold                Action = "sold"
	ActionTransferred         Action = "transferred"
	ActionRetirementRequested Action = "retirement_requested"
	ActionRetirementConfirmed Action = "retirement_confirmed"
	ActionRetirementRejected  Action = "retirement_rejected"
	ActionIngestionRejected   Action = "ingestion_rejected"
)

// Valid reports whether a is one of the recorded lifecycle actions.
func (a Action) Valid() bool {
	switch a {
	case ActionMinted, ActionBought, ActionSold, ActionTransferred,
		ActionRetirementRequested, ActionRetirementConfirmed, ActionRetirementRejected,
		ActionIngestionRejected:
		return true
	}
	return false
}

// AuditLogEntry is an append-only record of one state-changing operation.
type AuditLogEntry struct {
	ID                  snowflake.ID      `json:"id" gorm:"primaryKey"`
	Actor               string            `json:"actor"`
	Action              Action            `json:"action"`
	AssetID             *snowflake.ID     `json:"asset_id,omitempty"`
	IngestionID         *snowflake.ID     `json:"ingestion_id,omitempty"`
	RetirementRequestID *snowflake.ID     `json:"retirement_request_id,omitempty"`
	FromStatus          *string           `json:"from_status,omitempty"`
	ToStatus            *string           `json:"to_status,omitempty"`
	FromOwner           *string           `json:"from_owner,omitempty"`
	ToOwner             *string           `json:"to_owner,omitempty"`
	Version             *int64            `json:"version,omitempty"`
	AttestationHash     *string           `json:"attestation_hash,omitempty"`
	Metadata            datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
}

func (AuditLogEntry) TableName() string { return "audit_logs" }

type ListFilter struct {
	AssetID *snowflake.ID
	Action  Action
	Actor   string
	Before  snowflake.ID
	Limit   int
}
