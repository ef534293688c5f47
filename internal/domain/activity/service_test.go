package activity_test

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/blossom/internal/domain/activity"
	"github.com/rpggio/blossom/internal/ledger"
	"github.com/rpggio/blossom/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestActivityService_LogAndList(t *testing.T) {
	ctx := context.Background()

	repo := &mocks.ActivityRepository{}
	entry := &activity.ActivityEntry{
		TxID:      "tx1",
		Operation: "CreateAsset",
		Caller:    "AdminMSP",
		Summary:   "created",
	}

	repo.On("Log", ctx, entry).Return(nil)
	repo.On("List", ctx, activity.ListActivityOptions{Operation: "CreateAsset", Limit: 500}).Return([]activity.ActivityEntry{*entry}, nil)

	svc := activity.NewService(repo, nil)
	require.NoError(t, svc.LogActivity(ctx, entry))
	require.False(t, entry.CreatedAt.IsZero())

	entries, err := svc.GetRecentActivity(ctx, activity.ListActivityOptions{Operation: "CreateAsset"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	repo.AssertExpectations(t)
}

func TestActivityService_LogTransaction(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	repo := &mocks.ActivityRepository{}
	repo.On("Log", ctx, mock.MatchedBy(func(e *activity.ActivityEntry) bool {
		return e.TxID == "tx9" && e.Operation == "AllocateLicenses" && e.Caller == "AdminMSP" &&
			e.Event == "LicensesAllocated" && e.CreatedAt.Equal(ts)
	})).Return(nil)

	svc := activity.NewService(repo, nil)
	err := svc.LogTransaction(ctx, ledger.Receipt{
		TxID:      "tx9",
		Operation: "AllocateLicenses",
		Caller:    ledger.Identity{MSPID: "AdminMSP"},
		Timestamp: ts,
		Writes:    3,
		Event:     &ledger.Event{Name: "LicensesAllocated"},
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestActivityService_RejectsEmptyEntry(t *testing.T) {
	svc := activity.NewService(&mocks.ActivityRepository{}, nil)
	require.ErrorIs(t, svc.LogActivity(context.Background(), &activity.ActivityEntry{}), activity.ErrInvalidInput)
	require.ErrorIs(t, svc.LogActivity(context.Background(), nil), activity.ErrInvalidInput)
}
