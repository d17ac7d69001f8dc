package availability

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrSubjectNotFound indicates the product or variant is unknown.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrInsufficientAvailability indicates the requested quantity does not
	// fit the window. The wrapping CapacityError carries the detail.
	ErrInsufficientAvailability = errors.New("insufficient availability")
	// ErrReservationNotFound indicates the reservation is unknown.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrReservationExpired indicates a hold lapsed before it was confirmed.
	ErrReservationExpired = errors.New("reservation expired")
	// ErrIllegalTransition indicates a reservation state change that the
	// lifecycle does not permit.
	ErrIllegalTransition = errors.New("illegal reservation state transition")
)

// CapacityError reports exactly how much quantity would still fit, so the
// caller can surface an actionable message instead of a generic failure.
type CapacityError struct {
	SubjectID uuid.UUID
	Requested int
	Available int
	Total     int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("insufficient availability for subject %s: requested %d, available %d of %d", e.SubjectID, e.Requested, e.Available, e.Total)
}

// Unwrap lets errors.Is match ErrInsufficientAvailability.
func (e *CapacityError) Unwrap() error {
	return ErrInsufficientAvailability
}
