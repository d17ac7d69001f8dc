package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-sewa/internal/availability"
	"github.com/noah-isme/backend-sewa/internal/cart"
	"github.com/noah-isme/backend-sewa/internal/order"
	"github.com/noah-isme/backend-sewa/internal/pricing"
)

type fixture struct {
	svc      *Service
	ledger   *availability.Ledger
	carts    *cart.MemStore
	orders   *order.MemStore
	subjects *availability.MemStore
	now      time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		carts:    cart.NewMemStore(),
		orders:   order.NewMemStore(),
		subjects: availability.NewMemStore(),
		now:      time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC),
	}
	f.ledger = &availability.Ledger{Store: f.subjects, Now: func() time.Time { return f.now }}
	f.svc = &Service{
		Carts:  f.carts,
		Orders: f.orders,
		Ledger: f.ledger,
		TaxBps: 1000,
		Now:    func() time.Time { return f.now },
	}
	return f
}

// addLine reserves a hold and stores a matching cart item. Items list in
// title order, so titles double as checkout ordering in tests.
func (f *fixture) addLine(t *testing.T, cartID uuid.UUID, title string, qty int, days int, ttl time.Duration) cart.Item {
	t.Helper()
	subjectID := uuid.New()
	f.subjects.PutSubject(availability.Subject{ID: subjectID, TotalQty: qty})
	w := pricing.Window{Start: f.now.Add(time.Hour), End: f.now.Add(time.Hour).AddDate(0, 0, days)}
	held, err := f.ledger.Reserve(context.Background(), subjectID, qty, w, ttl)
	require.NoError(t, err)
	item := cart.Item{
		ID:            uuid.New(),
		CartID:        cartID,
		ReservationID: held.ID,
		Title:         title,
		Line: pricing.Line{
			SubjectID:     subjectID,
			Qty:           qty,
			Window:        w,
			Unit:          pricing.UnitDaily,
			UnitPrice:     10000,
			DurationUnits: int64(days),
			Subtotal:      10000 * pricing.Money(days) * pricing.Money(qty),
			Deposit:       20000 * pricing.Money(qty),
		},
	}
	require.NoError(t, f.carts.CreateItem(context.Background(), item))
	return item
}

func (f *fixture) newCart(t *testing.T) cart.Cart {
	t.Helper()
	c := cart.Cart{ID: uuid.New(), AnonID: "anon", ExpiresAt: f.now.Add(time.Hour), CreatedAt: f.now, UpdatedAt: f.now}
	require.NoError(t, f.carts.CreateCart(context.Background(), c))
	return c
}

func TestPlaceOrderConfirmsHoldsAndFreezesPricing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.newCart(t)
	a := f.addLine(t, c.ID, "Bike", 1, 2, time.Hour)
	b := f.addLine(t, c.ID, "Tent", 1, 5, time.Hour)

	o, err := f.svc.PlaceOrder(ctx, Input{CartID: c.ID, Settlement: pricing.SettleFull})
	require.NoError(t, err)
	require.Equal(t, order.StatusConfirmed, o.Status)
	require.Len(t, o.Lines, 2)
	// subtotal 20000 + 50000, tax 10% of 70000, deposits 40000
	require.Equal(t, pricing.Money(70000), o.Pricing.Subtotal)
	require.Equal(t, pricing.Money(7000), o.Pricing.Tax)
	require.Equal(t, pricing.Money(40000), o.Pricing.Deposit)
	require.Equal(t, o.Pricing.Total, o.Pricing.AmountDueNow)
	require.Equal(t, b.Line.Window.End, o.ExpectedReturnAt)

	for _, id := range []uuid.UUID{a.ReservationID, b.ReservationID} {
		res, err := f.subjects.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, availability.StateConfirmed, res.State)
		require.Equal(t, o.ID, res.OrderID)
	}

	items, err := f.carts.ListItems(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestPlaceOrderRollsBackWhenAHoldLapsed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.newCart(t)
	live := f.addLine(t, c.ID, "A live hold", 1, 2, 2*time.Hour)
	lapsed := f.addLine(t, c.ID, "B lapsed hold", 1, 2, time.Minute)

	f.now = f.now.Add(30 * time.Minute)
	_, err := f.svc.PlaceOrder(ctx, Input{CartID: c.ID, Settlement: pricing.SettleFull})
	require.ErrorIs(t, err, availability.ErrReservationExpired)

	// The hold confirmed before the failure must be rolled back.
	res, err := f.subjects.Get(ctx, live.ReservationID)
	require.NoError(t, err)
	require.Equal(t, availability.StateReleased, res.State)

	lapsedRes, err := f.subjects.Get(ctx, lapsed.ReservationID)
	require.NoError(t, err)
	require.NotEqual(t, availability.StateConfirmed, lapsedRes.State)
}

// spyRunner marks the span of InTx so stores can verify their writes land
// inside it.
type spyRunner struct {
	active bool
	runs   int
}

func (r *spyRunner) InTx(ctx context.Context, fn func(context.Context) error) error {
	r.runs++
	r.active = true
	defer func() { r.active = false }()
	return fn(ctx)
}

// txOrders fails Create unless the runner is mid-transaction.
type txOrders struct {
	order.Store
	runner  *spyRunner
	inTx    bool
	failure error
}

func (s *txOrders) Create(ctx context.Context, o order.Order) error {
	s.inTx = s.runner.active
	if s.failure != nil {
		return s.failure
	}
	return s.Store.Create(ctx, o)
}

// txSubjects records whether confirmations happen inside the transaction.
type txSubjects struct {
	availability.Store
	runner   *spyRunner
	confirms int
	inTx     bool
}

func (s *txSubjects) Confirm(ctx context.Context, id, orderID uuid.UUID, now time.Time) (availability.Reservation, error) {
	s.confirms++
	s.inTx = s.runner.active && (s.confirms == 1 || s.inTx)
	return s.Store.Confirm(ctx, id, orderID, now)
}

func TestPlaceOrderWritesInsideOneTransaction(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	runner := &spyRunner{}
	subjects := &txSubjects{Store: f.subjects, runner: runner}
	orders := &txOrders{Store: f.orders, runner: runner}
	f.ledger.Store = subjects
	f.svc.Orders = orders
	f.svc.Tx = runner

	c := f.newCart(t)
	f.addLine(t, c.ID, "Bike", 1, 2, time.Hour)
	f.addLine(t, c.ID, "Tent", 1, 5, time.Hour)

	_, err := f.svc.PlaceOrder(ctx, Input{CartID: c.ID, Settlement: pricing.SettleFull})
	require.NoError(t, err)
	require.Equal(t, 1, runner.runs)
	require.Equal(t, 2, subjects.confirms)
	require.True(t, subjects.inTx, "confirmations must run inside the transaction")
	require.True(t, orders.inTx, "order insert must run inside the transaction")
}

func TestPlaceOrderFailedInsertAbortsTransaction(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	runner := &spyRunner{}
	boom := errors.New("insert rejected")
	f.svc.Orders = &txOrders{Store: f.orders, runner: runner, failure: boom}
	f.svc.Tx = runner

	c := f.newCart(t)
	item := f.addLine(t, c.ID, "Bike", 1, 2, time.Hour)

	_, err := f.svc.PlaceOrder(ctx, Input{CartID: c.ID, Settlement: pricing.SettleFull})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, runner.runs)

	// No half-placed order, and the hold does not stay CONFIRMED against
	// an order id that was never persisted.
	list, _, err := f.orders.ListByAnon(ctx, c.AnonID, 1, 10)
	require.NoError(t, err)
	require.Empty(t, list)
	res, err := f.subjects.Get(ctx, item.ReservationID)
	require.NoError(t, err)
	require.NotEqual(t, availability.StateConfirmed, res.State)

	items, err := f.carts.ListItems(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, items, 1, "cart must keep its line when checkout fails")
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := setup(t)
	c := f.newCart(t)
	_, err := f.svc.PlaceOrder(context.Background(), Input{CartID: c.ID})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceOrderDepositSettlement(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.newCart(t)
	f.addLine(t, c.ID, "Kayak", 1, 2, time.Hour)

	o, err := f.svc.PlaceOrder(ctx, Input{CartID: c.ID, Settlement: pricing.SettleDeposit, DeliveryCharge: 5000})
	require.NoError(t, err)
	require.Equal(t, pricing.Money(25000), o.Pricing.AmountDueNow)
	require.Equal(t, o.Pricing.Total-o.Pricing.AmountDueNow, o.Pricing.OutstandingBalance)
}
