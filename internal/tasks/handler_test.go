package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-sewa/internal/availability"
	"github.com/noah-isme/backend-sewa/internal/pricing"
)

func expiredHold(t *testing.T) (*availability.Ledger, availability.Reservation) {
	t.Helper()
	store := availability.NewMemStore()
	subjectID := uuid.New()
	store.PutSubject(availability.Subject{ID: subjectID, TotalQty: 1})

	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	ledger := &availability.Ledger{Store: store, Now: func() time.Time { return now.Add(time.Hour) }}
	held := availability.Reservation{
		ID:        uuid.New(),
		SubjectID: subjectID,
		Qty:       1,
		Window:    pricing.Window{Start: now, End: now.AddDate(0, 0, 2)},
		State:     availability.StateHeld,
		ExpiresAt: now.Add(10 * time.Minute),
		CreatedAt: now,
	}
	require.NoError(t, store.Insert(context.Background(), held))
	return ledger, held
}

func TestHandleHoldReleaseFreesLapsedHold(t *testing.T) {
	ledger, held := expiredHold(t)
	h := &Handler{Ledger: ledger}

	task, _, err := NewHoldReleaseTask(held.ID)
	require.NoError(t, err)
	require.NoError(t, h.HandleHoldRelease(context.Background(), task))

	res, err := ledger.Store.Get(context.Background(), held.ID)
	require.NoError(t, err)
	require.Equal(t, availability.StateReleased, res.State)

	// Second delivery is a no-op.
	require.NoError(t, h.HandleHoldRelease(context.Background(), task))
}

func TestHandleHoldSweepReleasesBatch(t *testing.T) {
	ledger, held := expiredHold(t)
	h := &Handler{Ledger: ledger, SweepBatch: 50}

	task, err := NewHoldSweepTask(0)
	require.NoError(t, err)
	require.NoError(t, h.HandleHoldSweep(context.Background(), task))

	res, err := ledger.Store.Get(context.Background(), held.ID)
	require.NoError(t, err)
	require.Equal(t, availability.StateReleased, res.State)
}
