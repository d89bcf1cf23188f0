// Package assettest wires a ledger over an in-memory database for tests of
// the packages built on top of it.
package assettest

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	assetdomain "github.com/smallbiznis/carbonvault/internal/asset/domain"
	assetrepo "github.com/smallbiznis/carbonvault/internal/asset/repository"
	assetservice "github.com/smallbiznis/carbonvault/internal/asset/service"
	attestationdomain "github.com/smallbiznis/carbonvault/internal/attestation/domain"
	"github.com/smallbiznis/carbonvault/internal/attestation/provider"
	attestationservice "github.com/smallbiznis/carbonvault/internal/attestation/service"
	auditdomain "github.com/smallbiznis/carbonvault/internal/audit/domain"
	auditrepo "github.com/smallbiznis/carbonvault/internal/audit/repository"
	auditservice "github.com/smallbiznis/carbonvault/internal/audit/service"
	"github.com/smallbiznis/carbonvault/internal/clock"
	"github.com/smallbiznis/carbonvault/internal/config"
	"github.com/smallbiznis/carbonvault/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Now is the fixed time reported by the ledger clock.
var Now = time.Date(2026, 4, 22, 9, 0, 0, 0, time.UTC)

// Switchable is an attestation service whose failure mode can be toggled.
type Switchable struct {
	Inner attestationdomain.Service
	Fail  bool
}

func (s *Switchable) Attest(ctx context.Context, req attestationdomain.Request) (string, error) {
	if s.Fail {
		return "", attestationdomain.ErrAttestationUnavailable
	}
	return s.Inner.Attest(ctx, req)
}

type Ledger struct {
	DB          *gorm.DB
	GenID       *snowflake.Node
	Clock       *clock.FakeClock
	Config      *config.LedgerConfigHolder
	Audit       auditdomain.Service
	Attestation *Switchable
	Assets      assetdomain.Service
}

func NewLedger(t *testing.T) *Ledger {
	t.Helper()

	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(Now)
	cfg := config.NewStaticLedgerConfig(config.DefaultLedgerConfig())
	log := zap.NewNop()

	audit := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  auditrepo.Provide(),
	})
	inner, err := attestationservice.NewService(attestationservice.Params{
		Log:       log,
		Config:    cfg,
		Providers: []attestationdomain.Provider{provider.NewLocal()},
	})
	if err != nil {
		t.Fatalf("attestation service: %v", err)
	}
	attest := &Switchable{Inner: inner}

	assets := assetservice.NewService(assetservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Config:      cfg,
		Repo:        assetrepo.Provide(),
		AuditSvc:    audit,
		Attestation: attest,
	})

	return &Ledger{
		DB:          db,
		GenID:       node,
		Clock:       clk,
		Config:      cfg,
		Audit:       audit,
		Attestation: attest,
		Assets:      assets,
	}
}

// AuditActions lists the recorded actions for asset, oldest first.
func (l *Ledger) AuditActions(t *testing.T, assetID snowflake.ID) []auditdomain.Action {
	t.Helper()
	resp, err := l.Audit.List(context.Background(), auditdomain.ListRequest{AssetID: assetID.String()})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	actions := make([]auditdomain.Action, 0, len(resp.Entries))
	for i := len(resp.Entries) - 1; i >= 0; i-- {
		actions = append(actions, resp.Entries[i].Action)
	}
	return actions
}
