package pricing

// Money represents a monetary value stored in minor units.
type Money = int64

// RoundHalfEven collapses the rational num/den into minor units using
// banker's rounding. Line subtotals are exact integer products and never
// pass through here; only derived amounts (tax, percentage fees) do.
// den must be positive.
func RoundHalfEven(num, den int64) Money {
	if den <= 0 {
		return 0
	}
	neg := num < 0
	if neg {
		num = -num
	}
	q := num / den
	r := num % den
	switch {
	case 2*r > den:
		q++
	case 2*r == den && q%2 == 1:
		q++
	}
	if neg {
		return -q
	}
	return q
}
