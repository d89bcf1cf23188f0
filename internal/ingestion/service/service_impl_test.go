package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/carbonvault/internal/clock"
	"github.com/smallbiznis/carbonvault/internal/config"
	ingestiondomain "github.com/smallbiznis/carbonvault/internal/ingestion/domain"
	"github.com/smallbiznis/carbonvault/internal/ingestion/repository"
	"github.com/smallbiznis/carbonvault/internal/testutil"
	"github.com/smallbiznis/carbonvault/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) ingestiondomain.Service {
	t.Helper()
	return NewService(Params{
		DB:     testutil.NewDB(t),
		Log:    zap.NewNop(),
		GenID:  testutil.NewNode(t),
		Clock:  clock.NewFakeClock(testNow),
		Config: config.NewStaticLedgerConfig(config.DefaultLedgerConfig()),
		Repo:   repository.Provide(),
	})
}

func TestSubmitStoresPendingRecord(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	record, err := svc.Submit(ctx, ingestiondomain.SubmitRequest{
		DeviceID: "sensor-7",
		Tonnes:   decimal.RequireFromString("12.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, ingestiondomain.StatusPending, record.ApprovalStatus)
	assert.True(t, record.CapturedAt.Equal(testNow))

	got, err := svc.Get(ctx, record.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "sensor-7", got.DeviceID)
	assert.True(t, got.Tonnes.Equal(decimal.RequireFromString("12.5")), got.Tonnes.String())
	assert.Equal(t, ingestiondomain.StatusPending, got.ApprovalStatus)
	assert.Nil(t, got.DecidedBy)
}

func TestSubmitValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	future := testNow.Add(time.Hour)
	slightlyAhead := testNow.Add(time.Minute)

	cases := []struct {
		name string
		req  ingestiondomain.SubmitRequest
		err  error
	}{
		{"zero tonnes", ingestiondomain.SubmitRequest{DeviceID: "d", Tonnes: decimal.Zero}, ingestiondomain.ErrInvalidMeasurement},
		{"negative tonnes", ingestiondomain.SubmitRequest{DeviceID: "d", Tonnes: decimal.NewFromInt(-3)}, ingestiondomain.ErrInvalidMeasurement},
		{"too precise", ingestiondomain.SubmitRequest{DeviceID: "d", Tonnes: decimal.RequireFromString("0.0000001")}, ingestiondomain.ErrInvalidMeasurement},
		{"too large", ingestiondomain.SubmitRequest{DeviceID: "d", Tonnes: decimal.New(1, 15)}, ingestiondomain.ErrInvalidMeasurement},
		{"blank device", ingestiondomain.SubmitRequest{DeviceID: "  ", Tonnes: decimal.NewFromInt(1)}, ingestiondomain.ErrInvalidDevice},
		{"future capture", ingestiondomain.SubmitRequest{DeviceID: "d", Tonnes: decimal.NewFromInt(1), CapturedAt: &future}, ingestiondomain.ErrInvalidCapturedAt},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tc.req)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	_, err := svc.Submit(ctx, ingestiondomain.SubmitRequest{DeviceID: "d", Tonnes: decimal.NewFromInt(1), CapturedAt: &slightlyAhead})
	assert.NoError(t, err)
}

func TestGetErrors(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ingestiondomain.ErrInvalidID)
	_, err = svc.Get(context.Background(), "123456")
	assert.ErrorIs(t, err, ingestiondomain.ErrNotFound)
}

func TestListFiltersAndPaginates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.Submit(ctx, ingestiondomain.SubmitRequest{DeviceID: "a", Tonnes: decimal.NewFromInt(int64(i + 1))})
		require.NoError(t, err)
	}
	_, err := svc.Submit(ctx, ingestiondomain.SubmitRequest{DeviceID: "b", Tonnes: decimal.NewFromInt(9)})
	require.NoError(t, err)

	pending, err := svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 4)
	assert.Less(t, pending[0].ID, pending[1].ID)

	first, err := svc.List(ctx, ingestiondomain.ListRequest{
		DeviceID:   "a",
		Pagination: pagination.Pagination{PageSize: 2},
	})
	require.NoError(t, err)
	require.Len(t, first.Records, 2)
	assert.True(t, first.HasMore)

	second, err := svc.List(ctx, ingestiondomain.ListRequest{
		DeviceID:   "a",
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, second.Records, 1)
	assert.False(t, second.HasMore)

	_, err = svc.List(ctx, ingestiondomain.ListRequest{Status: "archived"})
	assert.ErrorIs(t, err, ingestiondomain.ErrInvalidStatus)

	approved, err := svc.List(ctx, ingestiondomain.ListRequest{Status: "approved"})
	require.NoError(t, err)
	assert.Empty(t, approved.Records)
}
