// Package metrics holds the Prometheus collectors of the engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shopcore"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics groups every collector the services record into.
type Metrics struct {
	StockAdjustments      *prometheus.CounterVec
	OrdersCreated         prometheus.Counter
	CheckoutFailures      *prometheus.CounterVec
	OrderTransitions      *prometheus.CounterVec
	CheckoutDuration      prometheus.Histogram
	PromotionRedemptions  *prometheus.CounterVec
	PurchaseOrdersApplied *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StockAdjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustments_total",
			Help:      "Stock adjustments by reference type and outcome.",
		}, []string{"reference_type", "outcome"}),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders committed by checkout.",
		}),
		CheckoutFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_failures_total",
			Help:      "Rejected checkouts by error kind.",
		}, []string{"kind"}),
		OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Committed order status transitions.",
		}, []string{"from", "to"}),
		CheckoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_seconds",
			Help:      "Time spent assembling an order from a cart.",
			Buckets:   prometheus.DefBuckets,
		}),
		PromotionRedemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_redemptions_total",
			Help:      "Recorded coupon and deal redemptions.",
		}, []string{"kind"}),
		PurchaseOrdersApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_orders_total",
			Help:      "Purchase order imports by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.StockAdjustments,
		m.OrdersCreated,
		m.CheckoutFailures,
		m.OrderTransitions,
		m.CheckoutDuration,
		m.PromotionRedemptions,
		m.PurchaseOrdersApplied,
	)
	return m
}

// NewNop returns collectors registered with a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObserveStockAdjustment counts one adjustment attempt.
func (m *Metrics) ObserveStockAdjustment(referenceType string, err error) {
	m.StockAdjustments.WithLabelValues(referenceType, outcome(err)).Inc()
}

// ObserveCheckout records the duration since start.
func (m *Metrics) ObserveCheckout(start time.Time) {
	m.CheckoutDuration.Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
