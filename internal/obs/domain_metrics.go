package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// ReservationsTotal counts reservation lifecycle outcomes
	// (held, rejected, confirmed, released, expired).
	ReservationsTotal *prometheus.CounterVec
	// OrdersPlacedTotal counts orders created at checkout.
	OrdersPlacedTotal prometheus.Counter
	// OrdersReturnedTotal counts completed returns.
	OrdersReturnedTotal prometheus.Counter
	// OrdersCancelledTotal counts cancellations before pickup.
	OrdersCancelledTotal prometheus.Counter
	// LateFeesAppliedTotal counts returns that incurred a late fee.
	LateFeesAppliedTotal prometheus.Counter
	// HoldSweepReleased counts holds released by the background sweep.
	HoldSweepReleased prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers rental domain collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ReservationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Reservation lifecycle outcomes.",
		}, []string{"outcome"})
		OrdersPlacedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders created at checkout.",
		})
		OrdersReturnedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_returned_total",
			Help:      "Orders completed by a return.",
		})
		OrdersCancelledTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_cancelled_total",
			Help:      "Orders cancelled before pickup.",
		})
		LateFeesAppliedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "late_fees_applied_total",
			Help:      "Returns that incurred a late fee.",
		})
		HoldSweepReleased = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hold_sweep_released_total",
			Help:      "Expired holds released by the background sweep.",
		})
		reg.MustRegister(ReservationsTotal, OrdersPlacedTotal, OrdersReturnedTotal, OrdersCancelledTotal, LateFeesAppliedTotal, HoldSweepReleased)
	})
}

// IncReservation bumps the reservation outcome counter when metrics are
// registered. Safe to call from code paths exercised by tests without a
// registry.
func IncReservation(outcome string) {
	if ReservationsTotal == nil {
		return
	}
	ReservationsTotal.WithLabelValues(outcome).Inc()
}

// IncCounter bumps an optional counter.
func IncCounter(c prometheus.Counter) {
	if c == nil {
		return
	}
	c.Inc()
}
