package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-sewa/internal/availability"
	"github.com/noah-isme/backend-sewa/internal/cart"
	"github.com/noah-isme/backend-sewa/internal/events"
	"github.com/noah-isme/backend-sewa/internal/obs"
	"github.com/noah-isme/backend-sewa/internal/order"
	"github.com/noah-isme/backend-sewa/internal/pricing"
)

// ErrEmptyCart is returned when checkout is attempted on a cart with no lines.
var ErrEmptyCart = errors.New("cart is empty")

// TxRunner executes fn as one atomic unit of store writes. Satisfied by
// repo.TxRunner; a nil runner executes fn directly, leaving atomicity to
// the compensating releases (the in-memory path used in tests).
type TxRunner interface {
	InTx(ctx context.Context, fn func(context.Context) error) error
}

// Service converts a cart of holds into a confirmed order. Every hold must
// still be live at checkout; a single lapsed hold fails the whole order. The
// confirmations, the order row, and the cart cleanup run inside one
// transaction, so a crash mid-checkout can never strand CONFIRMED
// reservations without an order.
type Service struct {
	Carts  cart.Store
	Orders order.Store
	Ledger *availability.Ledger
	Events *events.Bus
	Tx     TxRunner
	TaxBps int
	Now    func() time.Time
}

func (s *Service) inTx(ctx context.Context, fn func(context.Context) error) error {
	if s == nil || s.Tx == nil {
		return fn(ctx)
	}
	return s.Tx.InTx(ctx, fn)
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Input captures checkout parameters.
type Input struct {
	CartID         uuid.UUID
	Settlement     pricing.SettlementMode
	DeliveryCharge pricing.Money
	Discount       pricing.Money
}

// PlaceOrder confirms every hold in the cart under a fresh order id,
// freezes pricing, and empties the cart.
func (s *Service) PlaceOrder(ctx context.Context, in Input) (order.Order, error) {
	if s == nil || s.Carts == nil || s.Orders == nil || s.Ledger == nil {
		return order.Order{}, errors.New("checkout service not configured")
	}
	if !in.Settlement.Valid() {
		in.Settlement = pricing.SettleFull
	}
	c, err := s.Carts.GetCart(ctx, in.CartID)
	if err != nil {
		return order.Order{}, err
	}
	now := s.now()
	if !c.ExpiresAt.IsZero() && !c.ExpiresAt.After(now) {
		return order.Order{}, cart.ErrExpired
	}
	items, err := s.Carts.ListItems(ctx, c.ID)
	if err != nil {
		return order.Order{}, err
	}
	if len(items) == 0 {
		return order.Order{}, ErrEmptyCart
	}

	orderID := uuid.New()
	lines := make([]pricing.Line, 0, len(items))
	orderLines := make([]order.Line, 0, len(items))
	var expectedReturn time.Time
	for _, it := range items {
		lines = append(lines, it.Line)
		orderLines = append(orderLines, order.Line{
			ID:            uuid.New(),
			ReservationID: it.ReservationID,
			Title:         it.Title,
			Slug:          it.Slug,
			Line:          it.Line,
		})
		if it.Line.Window.End.After(expectedReturn) {
			expectedReturn = it.Line.Window.End
		}
	}

	o := order.Order{
		ID:               orderID,
		AnonID:           c.AnonID,
		Status:           order.StatusConfirmed,
		PaymentStatus:    order.PayUnpaid,
		Settlement:       in.Settlement,
		Lines:            orderLines,
		Pricing:          pricing.ComputeOrder(lines, in.DeliveryCharge, s.TaxBps, in.Discount, 0, in.Settlement),
		ExpectedReturnAt: expectedReturn,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err = s.inTx(ctx, func(ctx context.Context) error {
		confirmed := make([]uuid.UUID, 0, len(items))
		for _, it := range items {
			if _, err := s.Ledger.Confirm(ctx, it.ReservationID, orderID); err != nil {
				for _, id := range confirmed {
					_, _ = s.Ledger.Release(ctx, id)
				}
				return fmt.Errorf("confirm hold for %q: %w", it.Title, err)
			}
			confirmed = append(confirmed, it.ReservationID)
		}
		if err := s.Orders.Create(ctx, o); err != nil {
			for _, id := range confirmed {
				_, _ = s.Ledger.Release(ctx, id)
			}
			return fmt.Errorf("create order: %w", err)
		}
		return s.Carts.DeleteItems(ctx, c.ID)
	})
	if err != nil {
		return order.Order{}, err
	}

	obs.IncCounter(obs.OrdersPlacedTotal)
	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicOrderPlaced, o.ID, map[string]any{
			"orderId":      o.ID.String(),
			"anonId":       o.AnonID,
			"settlement":   string(o.Settlement),
			"total":        o.Pricing.Total,
			"amountDueNow": o.Pricing.AmountDueNow,
		})
	}
	return o, nil
}
