package pricing

import (
	"errors"

	"github.com/google/uuid"
)

// ErrInvalidQuantity is returned when the requested quantity is not a
// positive integer. Stock-for-window checks belong to the availability
// ledger, not the pricer.
var ErrInvalidQuantity = errors.New("invalid quantity")

// Line is a priced rental line. It is derived data: recomputed whenever
// window, quantity or unit changes, and copied verbatim into an immutable
// order line at checkout.
type Line struct {
	SubjectID     uuid.UUID `json:"subjectId"`
	Qty           int       `json:"qty"`
	Window        Window    `json:"window"`
	Unit          UnitKind  `json:"unit"`
	UnitPrice     Money     `json:"unitPrice"`
	DurationUnits int64     `json:"durationUnits"`
	Subtotal      Money     `json:"subtotal"`
	Deposit       Money     `json:"deposit"`
}

// PriceLine prices a rental request against a product's rate table.
// subtotal = unitPrice * durationUnits * qty; deposit = securityDeposit * qty.
// Both are exact in minor units, so no re-rounding happens downstream.
func PriceLine(subjectID uuid.UUID, qty int, w Window, unit UnitKind, table RateTable, securityDeposit Money, opts DurationOptions) (Line, error) {
	if qty <= 0 {
		return Line{}, ErrInvalidQuantity
	}
	rate, err := ResolveRate(table, unit)
	if err != nil {
		return Line{}, err
	}
	if unit == UnitCustom {
		opts.PeriodDays = rate.PeriodDays
	}
	units, err := NormalizeDuration(w, unit, opts)
	if err != nil {
		return Line{}, err
	}
	if securityDeposit < 0 {
		securityDeposit = 0
	}
	return Line{
		SubjectID:     subjectID,
		Qty:           qty,
		Window:        w,
		Unit:          unit,
		UnitPrice:     rate.Price,
		DurationUnits: units,
		Subtotal:      rate.Price * units * Money(qty),
		Deposit:       securityDeposit * Money(qty),
	}, nil
}
