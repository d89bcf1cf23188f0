package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/carbonvault/internal/asset/assettest"
	assetdomain "github.com/smallbiznis/carbonvault/internal/asset/domain"
	assetrepo "github.com/smallbiznis/carbonvault/internal/asset/repository"
	assetservice "github.com/smallbiznis/carbonvault/internal/asset/service"
	attestationdomain "github.com/smallbiznis/carbonvault/internal/attestation/domain"
	auditdomain "github.com/smallbiznis/carbonvault/internal/audit/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func mint(t *testing.T, l *assettest.Ledger, tonnes string) *assetdomain.Asset {
	t.Helper()
	asset, err := l.Assets.Mint(context.Background(), assetdomain.MintRequest{
		Actor:  "admin-1",
		Tonnes: decimal.RequireFromString(tonnes),
	})
	require.NoError(t, err)
	return asset
}

func transition(l *assettest.Ledger, id snowflake.ID, event assetdomain.Event, actor string) (*assetdomain.Asset, error) {
	return l.Assets.Transition(context.Background(), assetdomain.TransitionRequest{
		AssetID: id,
		Event:   event,
		Actor:   actor,
	})
}

func TestMintCreatesAvailableAsset(t *testing.T) {
	l := assettest.NewLedger(t)
	asset := mint(t, l, "3.25")

	got, err := l.Assets.Get(context.Background(), asset.ID.String())
	require.NoError(t, err)
	assert.Equal(t, assetdomain.StatusAvailable, got.Status)
	assert.Nil(t, got.OwnerID)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, got.Tonnes.Equal(decimal.RequireFromString("3.25")))

	resp, err := l.Audit.List(context.Background(), auditdomain.ListRequest{AssetID: asset.ID.String()})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
	entry := resp.Entries[0]
	assert.Equal(t, auditdomain.ActionMinted, entry.Action)
	require.NotNil(t, entry.AttestationHash)
	assert.NotEmpty(t, *entry.AttestationHash)
}

func TestMintWithinFailureLeavesNoAsset(t *testing.T) {
	l := assettest.NewLedger(t)
	boom := errors.New("boom")

	_, err := l.Assets.Mint(context.Background(), assetdomain.MintRequest{
		Actor:  "admin-1",
		Tonnes: decimal.NewFromInt(1),
		Within: func(ctx context.Context, tx *gorm.DB, asset *assetdomain.Asset) error { return boom },
	})
	assert.ErrorIs(t, err, boom)

	summary, err := l.Assets.Summary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.TotalAssets)
}

func TestMintRejectsDuplicateSource(t *testing.T) {
	l := assettest.NewLedger(t)
	source := snowflake.ID(555)

	_, err := l.Assets.Mint(context.Background(), assetdomain.MintRequest{Actor: "a", Tonnes: decimal.NewFromInt(1), SourceIngestionID: &source})
	require.NoError(t, err)
	_, err = l.Assets.Mint(context.Background(), assetdomain.MintRequest{Actor: "a", Tonnes: decimal.NewFromInt(1), SourceIngestionID: &source})
	assert.ErrorIs(t, err, assetdomain.ErrAlreadyMinted)
}

func TestTransitionLifecycle(t *testing.T) {
	l := assettest.NewLedger(t)
	asset := mint(t, l, "10")

	got, err := transition(l, asset.ID, assetdomain.EventBuy, "alice")
	require.NoError(t, err)
	assert.Equal(t, assetdomain.StatusOwned, got.Status)
	assert.Equal(t, "alice", got.Owner())
	assert.Equal(t, int64(2), got.Version)

	_, err = transition(l, asset.ID, assetdomain.EventSell, "bob")
	assert.ErrorIs(t, err, assetdomain.ErrNotOwner)

	_, err = transition(l, asset.ID, assetdomain.EventBuy, "bob")
	assert.ErrorIs(t, err, assetdomain.ErrNotAvailable)

	got, err = l.Assets.Transition(context.Background(), assetdomain.TransitionRequest{
		AssetID:   asset.ID,
		Event:     assetdomain.EventTransfer,
		Actor:     "alice",
		Recipient: "carol",
	})
	require.NoError(t, err)
	assert.Equal(t, "carol", got.Owner())

	_, err = transition(l, asset.ID, assetdomain.EventRequestRetirement, "carol")
	require.NoError(t, err)
	got, err = transition(l, asset.ID, assetdomain.EventConfirmRetirement, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, assetdomain.StatusRetired, got.Status)
	assert.Equal(t, int64(5), got.Version)
	require.NotNil(t, got.RetiredAt)

	for _, event := range []assetdomain.Event{
		assetdomain.EventSell, assetdomain.EventTransfer, assetdomain.EventRequestRetirement,
		assetdomain.EventConfirmRetirement, assetdomain.EventRejectRetirement,
	} {
		_, err := l.Assets.Transition(context.Background(), assetdomain.TransitionRequest{
			AssetID: asset.ID, Event: event, Actor: "carol", Recipient: "dave",
		})
		assert.ErrorIs(t, err, assetdomain.ErrInvalidTransition, string(event))
	}

	final, err := l.Assets.Get(context.Background(), asset.ID.String())
	require.NoError(t, err)
	assert.True(t, final.Tonnes.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "carol", final.Owner())

	assert.Equal(t, []auditdomain.Action{
		auditdomain.ActionMinted,
		auditdomain.ActionBought,
		auditdomain.ActionTransferred,
		auditdomain.ActionRetirementRequested,
		auditdomain.ActionRetirementConfirmed,
	}, l.AuditActions(t, asset.ID))
}

func TestTransitionAttestationFailureLeavesStateUnchanged(t *testing.T) {
	l := assettest.NewLedger(t)
	asset := mint(t, l, "1")

	l.Attestation.Fail = true
	_, err := transition(l, asset.ID, assetdomain.EventBuy, "alice")
	assert.ErrorIs(t, err, attestationdomain.ErrAttestationUnavailable)

	got, err := l.Assets.Get(context.Background(), asset.ID.String())
	require.NoError(t, err)
	assert.Equal(t, assetdomain.StatusAvailable, got.Status)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, []auditdomain.Action{auditdomain.ActionMinted}, l.AuditActions(t, asset.ID))
}

func TestTransitionWithinErrorRollsBack(t *testing.T) {
	l := assettest.NewLedger(t)
	asset := mint(t, l, "1")
	boom := errors.New("boom")

	_, err := l.Assets.Transition(context.Background(), assetdomain.TransitionRequest{
		AssetID: asset.ID,
		Event:   assetdomain.EventBuy,
		Actor:   "alice",
		Within: func(ctx context.Context, tx *gorm.DB, before, after *assetdomain.Asset, hash string) error {
			assert.NotEmpty(t, hash)
			return boom
		},
	})
	assert.ErrorIs(t, err, boom)

	got, err := l.Assets.Get(context.Background(), asset.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, []auditdomain.Action{auditdomain.ActionMinted}, l.AuditActions(t, asset.ID))
}

func TestTransitionGuardAborts(t *testing.T) {
	l := assettest.NewLedger(t)
	asset := mint(t, l, "1")
	stop := errors.New("stop")

	_, err := l.Assets.Transition(context.Background(), assetdomain.TransitionRequest{
		AssetID: asset.ID,
		Event:   assetdomain.EventBuy,
		Actor:   "alice",
		Guard: func(ctx context.Context, db *gorm.DB, current *assetdomain.Asset) error {
			return stop
		},
	})
	assert.ErrorIs(t, err, stop)
}

func TestTransitionValidatesRequest(t *testing.T) {
	l := assettest.NewLedger(t)
	asset := mint(t, l, "1")

	_, err := transition(l, 0, assetdomain.EventBuy, "alice")
	assert.ErrorIs(t, err, assetdomain.ErrInvalidID)
	_, err = transition(l, asset.ID, "burn", "alice")
	assert.ErrorIs(t, err, assetdomain.ErrInvalidEvent)
	_, err = transition(l, asset.ID, assetdomain.EventBuy, " ")
	assert.ErrorIs(t, err, assetdomain.ErrInvalidActor)
	_, err = transition(l, 12345, assetdomain.EventBuy, "alice")
	assert.ErrorIs(t, err, assetdomain.ErrNotFound)
}

func TestConcurrentBuysHaveSingleWinner(t *testing.T) {
	l := assettest.NewLedger(t)
	asset := mint(t, l, "7")

	const buyers = 8
	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		winner  atomic.Value
		start   = make(chan struct{})
		results = make(chan error, buyers)
	)
	for i := 0; i < buyers; i++ {
		buyer := string(rune('a' + i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := transition(l, asset.ID, assetdomain.EventBuy, buyer)
			if err == nil {
				wins.Add(1)
				winner.Store(buyer)
			}
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	assert.Equal(t, int32(1), wins.Load())
	for err := range results {
		if err == nil {
			continue
		}
		assert.True(t,
			errors.Is(err, assetdomain.ErrNotAvailable) || errors.Is(err, assetdomain.ErrConflict),
			"unexpected error: %v", err)
	}

	got, err := l.Assets.Get(context.Background(), asset.ID.String())
	require.NoError(t, err)
	assert.Equal(t, winner.Load(), got.Owner())
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, []auditdomain.Action{auditdomain.ActionMinted, auditdomain.ActionBought}, l.AuditActions(t, asset.ID))
}

type losingRepo struct {
	assetdomain.Repository
	swaps atomic.Int32
}

func (r *losingRepo) CompareAndSwap(context.Context, *gorm.DB, *assetdomain.Asset, int64) (bool, error) {
	r.swaps.Add(1)
	return false, nil
}

func TestTransitionSurfacesConflictAfterBudget(t *testing.T) {
	l := assettest.NewLedger(t)
	asset := mint(t, l, "1")

	repo := &losingRepo{Repository: assetrepo.Provide()}
	svc := assetservice.NewService(assetservice.Params{
		DB:          l.DB,
		Log:         zap.NewNop(),
		GenID:       l.GenID,
		Clock:       l.Clock,
		Config:      l.Config,
		Repo:        repo,
		AuditSvc:    l.Audit,
		Attestation: l.Attestation,
	})

	_, err := svc.Transition(context.Background(), assetdomain.TransitionRequest{
		AssetID: asset.ID,
		Event:   assetdomain.EventBuy,
		Actor:   "alice",
	})
	assert.ErrorIs(t, err, assetdomain.ErrConflict)
	assert.Equal(t, int32(3), repo.swaps.Load())
}

func TestListAndSummary(t *testing.T) {
	l := assettest.NewLedger(t)
	a := mint(t, l, "1.5")
	b := mint(t, l, "2.5")
	c := mint(t, l, "4")

	_, err := transition(l, a.ID, assetdomain.EventBuy, "alice")
	require.NoError(t, err)
	_, err = transition(l, b.ID, assetdomain.EventBuy, "alice")
	require.NoError(t, err)
	_, err = transition(l, b.ID, assetdomain.EventRequestRetirement, "alice")
	require.NoError(t, err)
	_, err = transition(l, b.ID, assetdomain.EventConfirmRetirement, "admin")
	require.NoError(t, err)

	owned, err := l.Assets.List(context.Background(), assetdomain.ListRequest{OwnerID: "alice"})
	require.NoError(t, err)
	assert.Len(t, owned.Assets, 2)

	available, err := l.Assets.List(context.Background(), assetdomain.ListRequest{Status: "available"})
	require.NoError(t, err)
	require.Len(t, available.Assets, 1)
	assert.Equal(t, c.ID, available.Assets[0].ID)

	_, err = l.Assets.List(context.Background(), assetdomain.ListRequest{Status: "burned"})
	assert.ErrorIs(t, err, assetdomain.ErrInvalidStatus)

	summary, err := l.Assets.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TotalAssets)
	assert.True(t, summary.TotalTonnes.Equal(decimal.NewFromInt(8)), summary.TotalTonnes.String())
	assert.True(t, summary.RetiredTonnes.Equal(decimal.RequireFromString("2.5")), summary.RetiredTonnes.String())
	assert.Equal(t, int64(1), summary.ByStatus[assetdomain.StatusOwned].Count)
}
