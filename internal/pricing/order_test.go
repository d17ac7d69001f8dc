package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeOrderFullSettlement(t *testing.T) {
	lines := []Line{
		{Qty: 1, Subtotal: 30000, Deposit: 50000},
		{Qty: 2, Subtotal: 12000, Deposit: 4000},
	}
	p := ComputeOrder(lines, 2500, 1000, 0, 0, SettleFull)
	require.Equal(t, Money(42000), p.Subtotal)
	require.Equal(t, Money(54000), p.Deposit)
	// tax applies to the rental subtotal only, never to the deposit.
	require.Equal(t, Money(4200), p.Tax)
	require.Equal(t, p.Subtotal+p.Deposit+p.Tax+p.DeliveryCharge+p.LateFee-p.Discount, p.Total)
	require.Equal(t, p.Total, p.AmountDueNow)
	require.Equal(t, Money(0), p.OutstandingBalance)
}

func TestComputeOrderDepositSettlement(t *testing.T) {
	lines := []Line{{Qty: 1, Subtotal: 30000, Deposit: 50000}}
	p := ComputeOrder(lines, 2500, 1100, 0, 0, SettleDeposit)
	require.Equal(t, Money(52500), p.AmountDueNow)
	require.Equal(t, p.Total-p.AmountDueNow, p.OutstandingBalance)
	require.Equal(t, p.Subtotal+p.Tax, p.OutstandingBalance)
}

func TestComputeOrderIdempotent(t *testing.T) {
	lines := []Line{{Qty: 1, Subtotal: 777, Deposit: 55}}
	first := ComputeOrder(lines, 10, 825, 5, 100, SettleDeposit)
	second := ComputeOrder(lines, 10, 825, 5, 100, SettleDeposit)
	require.Equal(t, first, second)
}

func TestComputeOrderTotalIdentity(t *testing.T) {
	cases := []struct {
		subtotal, deposit, delivery, discount, lateFee Money
		taxBps                                         int
	}{
		{0, 0, 0, 0, 0, 0},
		{100, 50, 25, 10, 0, 1000},
		{99999, 12345, 0, 99999, 500, 825},
		{1, 1, 1, 0, 1, 10000},
	}
	for _, tc := range cases {
		lines := []Line{{Qty: 1, Subtotal: tc.subtotal, Deposit: tc.deposit}}
		p := ComputeOrder(lines, tc.delivery, tc.taxBps, tc.discount, tc.lateFee, SettleFull)
		require.Equal(t, p.Subtotal+p.Deposit+p.Tax+p.DeliveryCharge+p.LateFee-p.Discount, p.Total)
		require.GreaterOrEqual(t, p.OutstandingBalance, Money(0))
	}
}

func TestComputeOrderClampsDiscountAndSkipsEmptyLines(t *testing.T) {
	lines := []Line{
		{Qty: 0, Subtotal: 999, Deposit: 999},
		{Qty: 1, Subtotal: 100, Deposit: 0},
	}
	p := ComputeOrder(lines, 0, 0, 500, 0, SettleFull)
	require.Equal(t, Money(100), p.Subtotal)
	require.Equal(t, Money(100), p.Discount)
	require.Equal(t, Money(0), p.Total)
}

func TestRoundHalfEven(t *testing.T) {
	cases := []struct {
		num, den, want int64
	}{
		{5, 10, 0},   // 0.5 -> 0 (even)
		{15, 10, 2},  // 1.5 -> 2 (even)
		{25, 10, 2},  // 2.5 -> 2 (even)
		{26, 10, 3},  // 2.6 -> 3
		{24, 10, 2},  // 2.4 -> 2
		{-15, 10, -2},
		{0, 10, 0},
	}
	for _, tc := range cases {
		if got := RoundHalfEven(tc.num, tc.den); got != tc.want {
			t.Fatalf("RoundHalfEven(%d, %d) = %d, want %d", tc.num, tc.den, got, tc.want)
		}
	}
}
