package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	approvaldomain "github.com/smallbiznis/carbonvault/internal/approval/domain"
	"github.com/smallbiznis/carbonvault/internal/approval/service"
	"github.com/smallbiznis/carbonvault/internal/asset/assettest"
	assetdomain "github.com/smallbiznis/carbonvault/internal/asset/domain"
	attestationdomain "github.com/smallbiznis/carbonvault/internal/attestation/domain"
	auditdomain "github.com/smallbiznis/carbonvault/internal/audit/domain"
	"github.com/smallbiznis/carbonvault/internal/authorization"
	ingestiondomain "github.com/smallbiznis/carbonvault/internal/ingestion/domain"
	ingestionrepo "github.com/smallbiznis/carbonvault/internal/ingestion/repository"
	ingestionservice "github.com/smallbiznis/carbonvault/internal/ingestion/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var admin = authorization.Actor{ID: "admin-1", Role: authorization.RoleAdmin}

type fixture struct {
	ledger    *assettest.Ledger
	ingestion ingestiondomain.Service
	approval  approvaldomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := assettest.NewLedger(t)
	repo := ingestionrepo.Provide()

	enforcer, err := authorization.NewEnforcer(nil)
	require.NoError(t, err)

	return &fixture{
		ledger: l,
		ingestion: ingestionservice.NewService(ingestionservice.Params{
			DB:     l.DB,
			Log:    zap.NewNop(),
			GenID:  l.GenID,
			Clock:  l.Clock,
			Config: l.Config,
			Repo:   repo,
		}),
		approval: service.NewService(service.Params{
			DB:            l.DB,
			Log:           zap.NewNop(),
			Clock:         l.Clock,
			IngestionRepo: repo,
			AssetSvc:      l.Assets,
			AuditSvc:      l.Audit,
			Authz:         authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		}),
	}
}

func (f *fixture) submit(t *testing.T, tonnes string) *ingestiondomain.IngestionRecord {
	t.Helper()
	record, err := f.ingestion.Submit(context.Background(), ingestiondomain.SubmitRequest{
		DeviceID: "sensor-1",
		Tonnes:   decimal.RequireFromString(tonnes),
	})
	require.NoError(t, err)
	return record
}

func TestApproveMintsAsset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.submit(t, "7.5")

	asset, err := f.approval.Approve(ctx, approvaldomain.ApproveRequest{
		IngestionID:    record.ID.String(),
		Actor:          admin,
		RegistrySerial: "VCS-001",
	})
	require.NoError(t, err)
	assert.Equal(t, assetdomain.StatusAvailable, asset.Status)
	assert.True(t, asset.Tonnes.Equal(decimal.RequireFromString("7.5")))
	require.NotNil(t, asset.SourceIngestionID)
	assert.Equal(t, record.ID, *asset.SourceIngestionID)
	require.NotNil(t, asset.RegistrySerial)
	assert.Equal(t, "VCS-001", *asset.RegistrySerial)

	got, err := f.ingestion.Get(ctx, record.ID.String())
	require.NoError(t, err)
	assert.Equal(t, ingestiondomain.StatusApproved, got.ApprovalStatus)
	require.NotNil(t, got.DecidedBy)
	assert.Equal(t, "admin-1", *got.DecidedBy)

	pending, err := f.ingestion.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Equal(t, []auditdomain.Action{auditdomain.ActionMinted}, f.ledger.AuditActions(t, asset.ID))
}

func TestApproveTwiceIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.submit(t, "1")

	_, err := f.approval.Approve(ctx, approvaldomain.ApproveRequest{IngestionID: record.ID.String(), Actor: admin})
	require.NoError(t, err)

	_, err = f.approval.Approve(ctx, approvaldomain.ApproveRequest{IngestionID: record.ID.String(), Actor: admin})
	assert.ErrorIs(t, err, ingestiondomain.ErrAlreadyDecided)
	_, err = f.approval.Reject(ctx, approvaldomain.RejectRequest{IngestionID: record.ID.String(), Actor: admin})
	assert.ErrorIs(t, err, ingestiondomain.ErrAlreadyDecided)

	summary, err := f.ledger.Assets.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.TotalAssets)
}

func TestConcurrentApprovalsMintOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.submit(t, "2")

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.approval.Approve(ctx, approvaldomain.ApproveRequest{IngestionID: record.ID.String(), Actor: admin})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ingestiondomain.ErrAlreadyDecided)
	}
	assert.Equal(t, 1, succeeded)

	summary, err := f.ledger.Assets.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.TotalAssets)
}

func TestRejectRecordsDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.submit(t, "3")

	rejected, err := f.approval.Reject(ctx, approvaldomain.RejectRequest{
		IngestionID: record.ID.String(),
		Actor:       admin,
		Reason:      "sensor drift",
	})
	require.NoError(t, err)
	assert.Equal(t, ingestiondomain.StatusRejected, rejected.ApprovalStatus)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "sensor drift", *rejected.RejectionReason)

	resp, err := f.ledger.Audit.List(ctx, auditdomain.ListRequest{Action: string(auditdomain.ActionIngestionRejected)})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
	require.NotNil(t, resp.Entries[0].IngestionID)
	assert.Equal(t, record.ID, *resp.Entries[0].IngestionID)
	assert.Nil(t, resp.Entries[0].AssetID)

	_, err = f.approval.Approve(ctx, approvaldomain.ApproveRequest{IngestionID: record.ID.String(), Actor: admin})
	assert.ErrorIs(t, err, ingestiondomain.ErrAlreadyDecided)

	summary, err := f.ledger.Assets.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalAssets)
}

func TestApproveRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.submit(t, "1")

	device := authorization.Actor{ID: "sensor-1", Role: authorization.RoleDevice}
	_, err := f.approval.Approve(ctx, approvaldomain.ApproveRequest{IngestionID: record.ID.String(), Actor: device})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
	_, err = f.approval.Reject(ctx, approvaldomain.RejectRequest{IngestionID: record.ID.String(), Actor: device})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestApproveUnknownRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.approval.Approve(ctx, approvaldomain.ApproveRequest{IngestionID: f.ledger.GenID.Generate().String(), Actor: admin})
	assert.ErrorIs(t, err, ingestiondomain.ErrNotFound)
	_, err = f.approval.Approve(ctx, approvaldomain.ApproveRequest{IngestionID: "x", Actor: admin})
	assert.ErrorIs(t, err, ingestiondomain.ErrInvalidID)
}

func TestApproveAttestationFailureLeavesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.submit(t, "1")

	f.ledger.Attestation.Fail = true
	_, err := f.approval.Approve(ctx, approvaldomain.ApproveRequest{IngestionID: record.ID.String(), Actor: admin})
	assert.ErrorIs(t, err, attestationdomain.ErrAttestationUnavailable)

	got, err := f.ingestion.Get(ctx, record.ID.String())
	require.NoError(t, err)
	assert.Equal(t, ingestiondomain.StatusPending, got.ApprovalStatus)
}
