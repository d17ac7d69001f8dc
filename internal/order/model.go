package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-sewa/internal/pricing"
)

// ErrNotFound indicates the requested order could not be located.
var ErrNotFound = errors.New("order not found")

// ErrIllegalTransition is returned when an operation is not valid for the
// order's current status.
var ErrIllegalTransition = errors.New("illegal order transition")

// Status is the rental lifecycle state of an order.
type Status string

const (
	// StatusConfirmed means checkout completed and stock is committed.
	StatusConfirmed Status = "CONFIRMED"
	// StatusPickedUp means the renter collected the items.
	StatusPickedUp Status = "PICKED_UP"
	// StatusReturned means the rental is complete.
	StatusReturned Status = "RETURNED"
	// StatusCancelled means the order was called off before pickup.
	StatusCancelled Status = "CANCELLED"
)

// PaymentStatus tracks how much of the order total has been collected.
type PaymentStatus string

const (
	PayUnpaid      PaymentStatus = "UNPAID"
	PayDepositPaid PaymentStatus = "DEPOSIT_PAID"
	PayPaid        PaymentStatus = "PAID"
)

// Line is an immutable copy of a cart line taken at checkout.
type Line struct {
	ID            uuid.UUID    `json:"id"`
	ReservationID uuid.UUID    `json:"reservationId"`
	Title         string       `json:"title"`
	Slug          string       `json:"slug"`
	Line          pricing.Line `json:"line"`
}

// Order is a confirmed rental. Pricing components are frozen at checkout;
// only the late fee may change them afterwards, at return time.
type Order struct {
	ID               uuid.UUID              `json:"id"`
	AnonID           string                 `json:"anonId"`
	Status           Status                 `json:"status"`
	PaymentStatus    PaymentStatus          `json:"paymentStatus"`
	Settlement       pricing.SettlementMode `json:"settlement"`
	Lines            []Line                 `json:"lines"`
	Pricing          pricing.OrderPricing   `json:"pricing"`
	AmountPaid       pricing.Money          `json:"amountPaid"`
	ExpectedReturnAt time.Time              `json:"expectedReturnAt"`
	PickedUpAt       *time.Time             `json:"pickedUpAt,omitempty"`
	ReturnedAt       *time.Time             `json:"returnedAt,omitempty"`
	CancelledAt      *time.Time             `json:"cancelledAt,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}

// Store persists orders.
type Store interface {
	Create(ctx context.Context, o Order) error
	Update(ctx context.Context, o Order) error
	Get(ctx context.Context, id uuid.UUID) (Order, error)
	ListByAnon(ctx context.Context, anonID string, page, limit int) ([]Order, int64, error)
}
