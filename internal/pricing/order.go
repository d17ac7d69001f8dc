package pricing

// SettlementMode selects how much of the order total is collected at checkout.
type SettlementMode string

const (
	// SettleFull collects the entire order total up front.
	SettleFull SettlementMode = "FULL"
	// SettleDeposit collects only deposit + delivery charge; subtotal and
	// tax remain as an outstanding balance on the order.
	SettleDeposit SettlementMode = "DEPOSIT"
)

// Valid reports whether the settlement mode is supported.
func (m SettlementMode) Valid() bool {
	return m == SettleFull || m == SettleDeposit
}

// OrderPricing aggregates computed pricing components for an order.
type OrderPricing struct {
	Subtotal           Money `json:"subtotal"`
	Deposit            Money `json:"deposit"`
	Tax                Money `json:"tax"`
	DeliveryCharge     Money `json:"deliveryCharge"`
	Discount           Money `json:"discount"`
	LateFee            Money `json:"lateFee"`
	Total              Money `json:"total"`
	AmountDueNow       Money `json:"amountDueNow"`
	OutstandingBalance Money `json:"outstandingBalance"`
}

// ComputeOrder sums priced lines into order totals. Tax applies to the
// rental subtotal only, never to the refundable deposit. The function is
// pure: calling it twice on the same inputs yields identical output.
func ComputeOrder(lines []Line, delivery Money, taxBps int, discount, lateFee Money, mode SettlementMode) OrderPricing {
	var subtotal, deposit Money
	for _, ln := range lines {
		if ln.Qty <= 0 {
			continue
		}
		subtotal += ln.Subtotal
		deposit += ln.Deposit
	}
	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}
	if delivery < 0 {
		delivery = 0
	}
	if lateFee < 0 {
		lateFee = 0
	}
	tax := RoundHalfEven(subtotal*Money(taxBps), 10000)
	total := subtotal + deposit + tax + delivery + lateFee - discount

	p := OrderPricing{
		Subtotal:       subtotal,
		Deposit:        deposit,
		Tax:            tax,
		DeliveryCharge: delivery,
		Discount:       discount,
		LateFee:        lateFee,
		Total:          total,
	}
	switch mode {
	case SettleDeposit:
		p.AmountDueNow = deposit + delivery
	default:
		p.AmountDueNow = total
	}
	p.OutstandingBalance = total - p.AmountDueNow
	if p.OutstandingBalance < 0 {
		p.OutstandingBalance = 0
	}
	return p
}
