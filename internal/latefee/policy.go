// Package latefee computes late return penalties.
package latefee

import (
	"time"

	"github.com/noah-isme/backend-sewa/internal/pricing"
)

// FeeType selects the penalty model.
type FeeType string

const (
	// FeePercentage charges a percentage of the rental subtotal.
	FeePercentage FeeType = "percentage"
	// FeeFlat charges a fixed amount.
	FeeFlat FeeType = "flat"
)

// Valid reports whether the fee type is supported.
func (t FeeType) Valid() bool {
	return t == FeePercentage || t == FeeFlat
}

// Policy is the tenant-wide late fee configuration. It is read-only to the
// engine and passed into each assessment explicitly.
type Policy struct {
	Enabled     bool
	GracePeriod time.Duration
	Type        FeeType
	PercentBps  int32
	FlatAmount  pricing.Money
}

// Assess computes the late fee for a return. Returns 0 when the return falls
// on or before expected + grace. The fee is a single two-tier penalty: it is
// not prorated by how far past grace the return lands.
func Assess(expected, actual time.Time, rentalSubtotal pricing.Money, p Policy) pricing.Money {
	if !p.Enabled {
		return 0
	}
	deadline := expected.Add(p.GracePeriod)
	if !actual.After(deadline) {
		return 0
	}
	switch p.Type {
	case FeePercentage:
		if p.PercentBps <= 0 || rentalSubtotal <= 0 {
			return 0
		}
		return pricing.RoundHalfEven(rentalSubtotal*pricing.Money(p.PercentBps), 10000)
	case FeeFlat:
		if p.FlatAmount < 0 {
			return 0
		}
		return p.FlatAmount
	}
	return 0
}
