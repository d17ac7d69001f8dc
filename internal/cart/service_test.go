package cart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-sewa/internal/availability"
	"github.com/noah-isme/backend-sewa/internal/catalog"
	"github.com/noah-isme/backend-sewa/internal/pricing"
)

type fixture struct {
	svc     *Service
	ledger  *availability.Ledger
	catalog *catalog.Service
	cart    Cart
	product catalog.Product
}

func setup(t *testing.T, qtyOnHand int) *fixture {
	t.Helper()
	subjects := availability.NewMemStore()
	ledger := &availability.Ledger{Store: subjects, DefaultTTL: time.Hour}
	catalogSvc := &catalog.Service{Store: catalog.NewMemStore(), Subjects: subjects}

	product, err := catalogSvc.CreateProduct(context.Background(), catalog.CreateProductInput{
		Slug:  "bike",
		Title: "City bike",
		Rates: pricing.RateTable{
			pricing.UnitDaily: {Unit: pricing.UnitDaily, Price: 15000},
		},
		SecurityDeposit: 50000,
		QtyOnHand:       qtyOnHand,
		Active:          true,
	})
	require.NoError(t, err)

	svc := &Service{
		Store:  NewMemStore(),
		Terms:  catalogSvc,
		Ledger: ledger,
		TTL:    time.Hour,
		TaxBps: 0,
	}
	c, err := svc.EnsureCart(context.Background(), "anon-1")
	require.NoError(t, err)

	return &fixture{svc: svc, ledger: ledger, catalog: catalogSvc, cart: c, product: product}
}

func rentalWindow(days int) pricing.Window {
	start := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	return pricing.Window{Start: start, End: start.AddDate(0, 0, days)}
}

func TestAddItemPlacesHold(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	item, err := f.svc.AddItem(ctx, f.cart.ID, f.product.ID, 1, rentalWindow(2), pricing.UnitDaily)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(30000), item.Line.Subtotal)
	require.Equal(t, pricing.Money(50000), item.Line.Deposit)

	avail, err := f.ledger.Check(ctx, f.product.ID, 1, rentalWindow(2))
	require.NoError(t, err)
	require.False(t, avail.Available)
}

func TestAddItemRejectsWhenOutOfStock(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.cart.ID, f.product.ID, 1, rentalWindow(2), pricing.UnitDaily)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, f.cart.ID, f.product.ID, 1, rentalWindow(2), pricing.UnitDaily)
	require.ErrorIs(t, err, availability.ErrInsufficientAvailability)

	items, err := f.svc.Store.ListItems(ctx, f.cart.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestUpdateItemSwapsHold(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	item, err := f.svc.AddItem(ctx, f.cart.ID, f.product.ID, 1, rentalWindow(2), pricing.UnitDaily)
	require.NoError(t, err)

	// Extending the same line must not collide with its own hold.
	updated, err := f.svc.UpdateItem(ctx, f.cart.ID, item.ID, 1, rentalWindow(4), pricing.UnitDaily)
	require.NoError(t, err)
	require.NotEqual(t, item.ReservationID, updated.ReservationID)
	require.Equal(t, pricing.Money(60000), updated.Line.Subtotal)

	avail, err := f.ledger.Check(ctx, f.product.ID, 1, rentalWindow(4))
	require.NoError(t, err)
	require.False(t, avail.Available)
}

func TestUpdateItemRestoresHoldOnFailure(t *testing.T) {
	f := setup(t, 2)
	ctx := context.Background()

	item, err := f.svc.AddItem(ctx, f.cart.ID, f.product.ID, 1, rentalWindow(2), pricing.UnitDaily)
	require.NoError(t, err)
	// Second cart takes the remaining unit.
	other, err := f.svc.EnsureCart(ctx, "anon-2")
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, other.ID, f.product.ID, 1, rentalWindow(2), pricing.UnitDaily)
	require.NoError(t, err)

	_, err = f.svc.UpdateItem(ctx, f.cart.ID, item.ID, 2, rentalWindow(2), pricing.UnitDaily)
	require.ErrorIs(t, err, availability.ErrInsufficientAvailability)

	// The original single-unit hold is back in place.
	restored, err := f.svc.Store.GetItem(ctx, f.cart.ID, item.ID)
	require.NoError(t, err)
	require.Equal(t, 1, restored.Line.Qty)
	avail, err := f.ledger.Check(ctx, f.product.ID, 1, rentalWindow(2))
	require.NoError(t, err)
	require.False(t, avail.Available)
}

func TestRemoveItemReleasesHold(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	item, err := f.svc.AddItem(ctx, f.cart.ID, f.product.ID, 1, rentalWindow(2), pricing.UnitDaily)
	require.NoError(t, err)
	require.NoError(t, f.svc.RemoveItem(ctx, f.cart.ID, item.ID))

	avail, err := f.ledger.Check(ctx, f.product.ID, 1, rentalWindow(2))
	require.NoError(t, err)
	require.True(t, avail.Available)
}

func TestSummarizeDepositSettlement(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.cart.ID, f.product.ID, 1, rentalWindow(2), pricing.UnitDaily)
	require.NoError(t, err)

	summary, err := f.svc.Summarize(ctx, f.cart.ID, pricing.SettleDeposit)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(30000), summary.Pricing.Subtotal)
	require.Equal(t, pricing.Money(50000), summary.Pricing.Deposit)
	require.Equal(t, pricing.Money(50000), summary.Pricing.AmountDueNow)
	require.Equal(t, pricing.Money(30000), summary.Pricing.OutstandingBalance)
}

func TestExpiredCartIsGone(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	f.svc.Now = func() time.Time { return now }
	c, err := f.svc.EnsureCart(ctx, "anon-ttl")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = f.svc.Summarize(ctx, c.ID, pricing.SettleFull)
	require.ErrorIs(t, err, ErrExpired)
}
