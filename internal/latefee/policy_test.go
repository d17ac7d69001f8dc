package latefee

import (
	"testing"
	"time"

	"github.com/noah-isme/backend-sewa/internal/pricing"
)

var percentPolicy = Policy{
	Enabled:     true,
	GracePeriod: 2 * time.Hour,
	Type:        FeePercentage,
	PercentBps:  1000, // 10%
}

func TestAssessGraceBoundaryInclusive(t *testing.T) {
	expected := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	onBoundary := expected.Add(2 * time.Hour)
	if fee := Assess(expected, onBoundary, 100000, percentPolicy); fee != 0 {
		t.Fatalf("fee at grace boundary must be 0, got %d", fee)
	}
	justPast := onBoundary.Add(time.Second)
	if fee := Assess(expected, justPast, 100000, percentPolicy); fee <= 0 {
		t.Fatalf("fee one second past grace must be positive, got %d", fee)
	}
}

func TestAssessPercentageExample(t *testing.T) {
	// 10% of a 1000.00 subtotal, returned 3 hours late with a 2 hour grace.
	expected := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	actual := expected.Add(3 * time.Hour)
	fee := Assess(expected, actual, 100000, percentPolicy)
	if fee != 10000 {
		t.Fatalf("expected fee 10000, got %d", fee)
	}
}

func TestAssessFlatNotProrated(t *testing.T) {
	policy := Policy{Enabled: true, GracePeriod: time.Hour, Type: FeeFlat, FlatAmount: 5000}
	expected := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	barelyLate := Assess(expected, expected.Add(time.Hour+time.Minute), 100000, policy)
	veryLate := Assess(expected, expected.Add(72*time.Hour), 100000, policy)
	if barelyLate != 5000 || veryLate != 5000 {
		t.Fatalf("flat fee must not scale with lateness: got %d and %d", barelyLate, veryLate)
	}
}

func TestAssessDisabledPolicy(t *testing.T) {
	policy := Policy{Enabled: false, Type: FeeFlat, FlatAmount: 5000}
	expected := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	if fee := Assess(expected, expected.Add(48*time.Hour), 100000, policy); fee != 0 {
		t.Fatalf("disabled policy must not charge, got %d", fee)
	}
}

func TestAssessPercentageRounding(t *testing.T) {
	policy := Policy{Enabled: true, Type: FeePercentage, PercentBps: 333}
	expected := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	fee := Assess(expected, expected.Add(time.Hour), 1001, policy)
	// 1001 * 333 / 10000 = 33.3333 -> 33
	if fee != pricing.Money(33) {
		t.Fatalf("expected fee 33, got %d", fee)
	}
}
