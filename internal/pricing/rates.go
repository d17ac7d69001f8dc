package pricing

import "errors"

// ErrRateNotConfigured is returned when a product has no explicit rate for
// the requested billing unit. Prices are never derived from another unit
// (e.g. hourly/24 for daily); a convenience estimate is a caller concern.
var ErrRateNotConfigured = errors.New("rate not configured for unit")

// Rate is one configured price in a product's rate table.
type Rate struct {
	Unit       UnitKind `json:"unit"`
	Price      Money    `json:"price"`
	PeriodDays int      `json:"periodDays,omitempty"`
}

// RateTable maps billing units to explicitly configured prices.
type RateTable map[UnitKind]Rate

// Validate checks every configured rate for internal consistency.
func (t RateTable) Validate() error {
	for unit, rate := range t {
		if !unit.Valid() {
			return ErrUnsupportedUnit
		}
		if rate.Price < 0 {
			return errors.New("rate price must be non-negative")
		}
		if unit == UnitCustom && rate.PeriodDays < 1 {
			return errors.New("custom rate requires a period length in days")
		}
	}
	return nil
}

// ResolveRate returns the configured rate for the requested unit.
func ResolveRate(table RateTable, unit UnitKind) (Rate, error) {
	if !unit.Valid() {
		return Rate{}, ErrUnsupportedUnit
	}
	rate, ok := table[unit]
	if !ok {
		return Rate{}, ErrRateNotConfigured
	}
	return rate, nil
}
