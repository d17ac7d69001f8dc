package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-sewa/internal/availability"
	"github.com/noah-isme/backend-sewa/internal/events"
	"github.com/noah-isme/backend-sewa/internal/latefee"
	"github.com/noah-isme/backend-sewa/internal/obs"
	"github.com/noah-isme/backend-sewa/internal/pricing"
)

// Service owns the order lifecycle after checkout: pickup, return with late
// fee assessment, cancellation, and payment tracking.
type Service struct {
	Store   Store
	Ledger  *availability.Ledger
	LateFee latefee.Policy
	Events  *events.Bus
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Get loads an order.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	if s == nil || s.Store == nil {
		return Order{}, errors.New("order service not configured")
	}
	return s.Store.Get(ctx, id)
}

// List returns orders for an anonymous renter, newest first.
func (s *Service) List(ctx context.Context, anonID string, page, limit int) ([]Order, int64, error) {
	if s == nil || s.Store == nil {
		return nil, 0, errors.New("order service not configured")
	}
	return s.Store.ListByAnon(ctx, anonID, page, limit)
}

// Cancel calls off an order before pickup and releases its stock.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (Order, error) {
	if s == nil || s.Store == nil || s.Ledger == nil {
		return Order{}, errors.New("order service not configured")
	}
	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.Status != StatusConfirmed {
		return Order{}, fmt.Errorf("cancel from %s: %w", o.Status, ErrIllegalTransition)
	}
	if err := s.Ledger.ReleaseForOrder(ctx, o.ID); err != nil {
		return Order{}, fmt.Errorf("release reservations: %w", err)
	}
	now := s.now()
	o.Status = StatusCancelled
	o.CancelledAt = &now
	o.UpdatedAt = now
	if err := s.Store.Update(ctx, o); err != nil {
		return Order{}, err
	}
	obs.IncCounter(obs.OrdersCancelledTotal)
	s.emit(ctx, events.TopicOrderCancelled, o)
	return o, nil
}

// Pickup marks the items as collected by the renter.
func (s *Service) Pickup(ctx context.Context, id uuid.UUID) (Order, error) {
	if s == nil || s.Store == nil {
		return Order{}, errors.New("order service not configured")
	}
	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.Status != StatusConfirmed {
		return Order{}, fmt.Errorf("pickup from %s: %w", o.Status, ErrIllegalTransition)
	}
	now := s.now()
	o.Status = StatusPickedUp
	o.PickedUpAt = &now
	o.UpdatedAt = now
	if err := s.Store.Update(ctx, o); err != nil {
		return Order{}, err
	}
	s.emit(ctx, events.TopicOrderPickedUp, o)
	return o, nil
}

// Return completes the rental. The late fee policy is assessed against the
// expected return instant; any fee is added to the order total and falls
// into the outstanding balance.
func (s *Service) Return(ctx context.Context, id uuid.UUID, returnedAt time.Time) (Order, error) {
	if s == nil || s.Store == nil || s.Ledger == nil {
		return Order{}, errors.New("order service not configured")
	}
	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.Status != StatusPickedUp {
		return Order{}, fmt.Errorf("return from %s: %w", o.Status, ErrIllegalTransition)
	}
	if returnedAt.IsZero() {
		returnedAt = s.now()
	}

	fee := latefee.Assess(o.ExpectedReturnAt, returnedAt, o.Pricing.Subtotal, s.LateFee)
	if fee > 0 {
		o.Pricing.LateFee = fee
		o.Pricing.Total += fee
		obs.IncCounter(obs.LateFeesAppliedTotal)
	}

	if err := s.Ledger.ReleaseForOrder(ctx, o.ID); err != nil {
		return Order{}, fmt.Errorf("release reservations: %w", err)
	}

	now := s.now()
	o.Status = StatusReturned
	o.ReturnedAt = &returnedAt
	o.UpdatedAt = now
	o.refreshPayment()
	if err := s.Store.Update(ctx, o); err != nil {
		return Order{}, err
	}
	obs.IncCounter(obs.OrdersReturnedTotal)
	if fee > 0 {
		s.emit(ctx, events.TopicLateFeeApplied, o)
	}
	s.emit(ctx, events.TopicOrderReturned, o)
	return o, nil
}

// RecordPayment credits a collected amount against the order.
func (s *Service) RecordPayment(ctx context.Context, id uuid.UUID, amount pricing.Money) (Order, error) {
	if s == nil || s.Store == nil {
		return Order{}, errors.New("order service not configured")
	}
	if amount <= 0 {
		return Order{}, fmt.Errorf("payment amount must be positive: %w", pricing.ErrInvalidQuantity)
	}
	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.Status == StatusCancelled {
		return Order{}, fmt.Errorf("payment on cancelled order: %w", ErrIllegalTransition)
	}
	o.AmountPaid += amount
	o.UpdatedAt = s.now()
	o.refreshPayment()
	if err := s.Store.Update(ctx, o); err != nil {
		return Order{}, err
	}
	return o, nil
}

// refreshPayment derives the payment status from amount paid versus total.
func (o *Order) refreshPayment() {
	o.Pricing.OutstandingBalance = o.Pricing.Total - o.AmountPaid
	if o.Pricing.OutstandingBalance < 0 {
		o.Pricing.OutstandingBalance = 0
	}
	switch {
	case o.AmountPaid >= o.Pricing.Total:
		o.PaymentStatus = PayPaid
	case o.AmountPaid >= o.Pricing.Deposit+o.Pricing.DeliveryCharge && o.AmountPaid > 0:
		o.PaymentStatus = PayDepositPaid
	default:
		o.PaymentStatus = PayUnpaid
	}
}

func (s *Service) emit(ctx context.Context, topic string, o Order) {
	if s.Events == nil {
		return
	}
	_, _ = s.Events.Emit(ctx, topic, o.ID, map[string]any{
		"orderId":       o.ID.String(),
		"status":        string(o.Status),
		"paymentStatus": string(o.PaymentStatus),
		"total":         o.Pricing.Total,
		"lateFee":       o.Pricing.LateFee,
	})
}
