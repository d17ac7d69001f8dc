package availability

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-sewa/internal/pricing"
)

func day(n int) time.Time {
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n-1)
}

func span(startDay, endDay int) pricing.Window {
	return pricing.Window{Start: day(startDay), End: day(endDay)}
}

func newLedger(total int) (*Ledger, uuid.UUID, *MemStore) {
	store := NewMemStore()
	subject := uuid.New()
	store.PutSubject(Subject{ID: subject, TotalQty: total})
	ledger := &Ledger{Store: store, DefaultTTL: time.Hour}
	return ledger, subject, store
}

func TestReserveRejectsOverlapBeyondCapacity(t *testing.T) {
	// total 3; qty 2 on Jan 1-5, then qty 2 on Jan 3-7 must be rejected
	// with exactly 1 unit reported available.
	ledger, subject, _ := newLedger(3)
	ctx := context.Background()

	_, err := ledger.Reserve(ctx, subject, 2, span(1, 5), 0)
	require.NoError(t, err)

	_, err = ledger.Reserve(ctx, subject, 2, span(3, 7), 0)
	require.ErrorIs(t, err, ErrInsufficientAvailability)
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	require.Equal(t, 1, capErr.Available)
	require.Equal(t, 3, capErr.Total)
	require.Equal(t, 2, capErr.Requested)
}

func TestDisjointWindowsShareOneUnit(t *testing.T) {
	ledger, subject, _ := newLedger(1)
	ctx := context.Background()

	_, err := ledger.Reserve(ctx, subject, 1, span(1, 3), 0)
	require.NoError(t, err)
	_, err = ledger.Reserve(ctx, subject, 1, span(3, 5), 0)
	require.NoError(t, err, "touching windows are half-open and must not conflict")

	_, err = ledger.Reserve(ctx, subject, 1, span(4, 6), 0)
	require.ErrorIs(t, err, ErrInsufficientAvailability)
}

func TestOverlappingOnOneUnitExactlyOneSucceeds(t *testing.T) {
	ledger, subject, _ := newLedger(1)
	ctx := context.Background()
	w := span(1, 5)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = ledger.Reserve(ctx, subject, 1, w, 0)
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range results {
		if err == nil {
			ok++
		} else if errors.Is(err, ErrInsufficientAvailability) {
			rejected++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, rejected)
}

func TestCheckIsReadOnly(t *testing.T) {
	ledger, subject, _ := newLedger(2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		avail, err := ledger.Check(ctx, subject, 2, span(1, 4))
		require.NoError(t, err)
		require.True(t, avail.Available)
		require.Equal(t, 2, avail.AvailableQty)
		require.Equal(t, 2, avail.TotalQty)
	}
}

func TestCheckUnknownSubject(t *testing.T) {
	ledger, _, _ := newLedger(1)
	_, err := ledger.Check(context.Background(), uuid.New(), 1, span(1, 2))
	require.ErrorIs(t, err, ErrSubjectNotFound)
}

func TestConfirmAndExpiryAreMutuallyExclusive(t *testing.T) {
	now := day(1)
	ledger, subject, _ := newLedger(1)
	ledger.Now = func() time.Time { return now }

	held, err := ledger.Reserve(context.Background(), subject, 1, span(2, 4), 30*time.Minute)
	require.NoError(t, err)

	// Past the TTL the hold can no longer be confirmed.
	now = now.Add(31 * time.Minute)
	_, err = ledger.Confirm(context.Background(), held.ID, uuid.New())
	require.ErrorIs(t, err, ErrReservationExpired)

	released, err := ledger.ReleaseExpiredHold(context.Background(), held.ID)
	require.NoError(t, err)
	require.True(t, released)
}

func TestConfirmedBlocksUntilReleased(t *testing.T) {
	ledger, subject, _ := newLedger(1)
	ctx := context.Background()
	orderID := uuid.New()

	held, err := ledger.Reserve(ctx, subject, 1, span(1, 5), 0)
	require.NoError(t, err)
	confirmed, err := ledger.Confirm(ctx, held.ID, orderID)
	require.NoError(t, err)
	require.Equal(t, StateConfirmed, confirmed.State)
	require.Equal(t, orderID, confirmed.OrderID)

	_, err = ledger.Reserve(ctx, subject, 1, span(2, 3), 0)
	require.ErrorIs(t, err, ErrInsufficientAvailability)

	require.NoError(t, ledger.ReleaseForOrder(ctx, orderID))

	_, err = ledger.Reserve(ctx, subject, 1, span(2, 3), 0)
	require.NoError(t, err)
}

func TestConfirmTwiceIsIllegal(t *testing.T) {
	ledger, subject, _ := newLedger(1)
	ctx := context.Background()

	held, err := ledger.Reserve(ctx, subject, 1, span(1, 2), 0)
	require.NoError(t, err)
	_, err = ledger.Confirm(ctx, held.ID, uuid.New())
	require.NoError(t, err)
	_, err = ledger.Confirm(ctx, held.ID, uuid.New())
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestExpiredHoldFreesCapacity(t *testing.T) {
	now := day(1)
	ledger, subject, _ := newLedger(1)
	ledger.Now = func() time.Time { return now }
	ctx := context.Background()

	_, err := ledger.Reserve(ctx, subject, 1, span(2, 6), 10*time.Minute)
	require.NoError(t, err)
	_, err = ledger.Reserve(ctx, subject, 1, span(2, 6), 10*time.Minute)
	require.ErrorIs(t, err, ErrInsufficientAvailability)

	// Abandoned cart: the hold lapses and stock is usable again even
	// before the sweep runs, because expired holds never block.
	now = now.Add(11 * time.Minute)
	_, err = ledger.Reserve(ctx, subject, 1, span(2, 6), 10*time.Minute)
	require.NoError(t, err)

	released, err := ledger.ReleaseExpired(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, released)
}

func TestReserveHonorsCallerTimeout(t *testing.T) {
	ledger, subject, _ := newLedger(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ledger.Reserve(ctx, subject, 1, span(1, 2), 0)
	require.ErrorIs(t, err, context.Canceled)
}

// TestSweepLineInvariantRandom drives the ledger with random overlapping
// requests and asserts the core invariant: at no instant does the accepted
// reserved quantity exceed the subject's total.
func TestSweepLineInvariantRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const totalQty = 4
	const days = 30

	for round := 0; round < 20; round++ {
		ledger, subject, store := newLedger(totalQty)
		ctx := context.Background()

		for i := 0; i < 60; i++ {
			start := 1 + rng.Intn(days-1)
			end := start + 1 + rng.Intn(days-start)
			qty := 1 + rng.Intn(totalQty)
			_, _ = ledger.Reserve(ctx, subject, qty, span(start, end), 0)
		}

		// Accepted set must satisfy the capacity bound at every day
		// boundary (all breakpoints fall on day boundaries here).
		for d := 1; d <= days; d++ {
			instant := pricing.Window{Start: day(d), End: day(d).Add(time.Nanosecond)}
			active, err := store.ActiveOverlapping(ctx, subject, instant, time.Now())
			require.NoError(t, err)
			sum := 0
			for _, r := range active {
				sum += r.Qty
			}
			require.LessOrEqual(t, sum, totalQty, "round %d day %d", round, d)
		}
	}
}

func TestReserveValidatesInput(t *testing.T) {
	ledger, subject, _ := newLedger(1)
	ctx := context.Background()

	_, err := ledger.Reserve(ctx, subject, 0, span(1, 2), 0)
	require.ErrorIs(t, err, pricing.ErrInvalidQuantity)

	_, err = ledger.Reserve(ctx, subject, 1, pricing.Window{Start: day(2), End: day(1)}, 0)
	require.ErrorIs(t, err, pricing.ErrInvalidWindow)

	_, err = ledger.Reserve(ctx, uuid.New(), 1, span(1, 2), 0)
	require.ErrorIs(t, err, ErrSubjectNotFound)
}
