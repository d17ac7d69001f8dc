package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-sewa/internal/pricing"
)

// State enumerates the reservation lifecycle.
type State string

const (
	// StateHeld is a provisional, TTL-bound reservation created when a line
	// enters a cart.
	StateHeld State = "HELD"
	// StateConfirmed pins the quantity for the order until the rental ends
	// or is released early by a return.
	StateConfirmed State = "CONFIRMED"
	// StateReleased frees the quantity for future windows.
	StateReleased State = "RELEASED"
)

// Reservation pins quantity of a subject over a window.
type Reservation struct {
	ID        uuid.UUID      `json:"id"`
	SubjectID uuid.UUID      `json:"subjectId"`
	OrderID   uuid.UUID      `json:"orderId,omitempty"`
	Qty       int            `json:"qty"`
	Window    pricing.Window `json:"window"`
	State     State          `json:"state"`
	ExpiresAt time.Time      `json:"expiresAt,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// blocks reports whether the reservation counts against capacity at now.
func (r Reservation) blocks(now time.Time) bool {
	switch r.State {
	case StateConfirmed:
		return true
	case StateHeld:
		return r.ExpiresAt.After(now)
	}
	return false
}

// Subject is the pool availability is tracked against: a product, or one of
// its variants when the product carries per-variant quantity pools.
type Subject struct {
	ID       uuid.UUID
	TotalQty int
}

// Store persists subjects and reservations. Implementations must make the
// conditional state transitions atomic per reservation record.
type Store interface {
	// GetSubject resolves a subject's total quantity. Returns
	// ErrSubjectNotFound for unknown identifiers.
	GetSubject(ctx context.Context, id uuid.UUID) (Subject, error)
	// ActiveOverlapping lists HELD (unexpired at now) and CONFIRMED
	// reservations of the subject overlapping the window.
	ActiveOverlapping(ctx context.Context, subjectID uuid.UUID, w pricing.Window, now time.Time) ([]Reservation, error)
	// Insert stores a new reservation.
	Insert(ctx context.Context, r Reservation) error
	// Get loads a reservation by id. Returns ErrReservationNotFound.
	Get(ctx context.Context, id uuid.UUID) (Reservation, error)
	// Delete removes a reservation record (used to roll back a hold that
	// lost an optimistic admission race).
	Delete(ctx context.Context, id uuid.UUID) error
	// Confirm transitions HELD -> CONFIRMED and attaches the order, but
	// only while the hold has not expired at now. Returns
	// ErrReservationExpired for lapsed holds and ErrIllegalTransition for
	// any other state.
	Confirm(ctx context.Context, id, orderID uuid.UUID, now time.Time) (Reservation, error)
	// Release transitions HELD or CONFIRMED -> RELEASED. Releasing an
	// already released reservation is a no-op.
	Release(ctx context.Context, id uuid.UUID, now time.Time) (Reservation, error)
	// ExpiredHolds lists HELD reservations whose TTL lapsed at now.
	ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]Reservation, error)
	// ByOrder lists reservations confirmed for the order.
	ByOrder(ctx context.Context, orderID uuid.UUID) ([]Reservation, error)
}
