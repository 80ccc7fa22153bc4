package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics tracks the cart-to-order pipeline.
type CheckoutMetrics struct {
	ordersPlaced     *prometheus.CounterVec
	orderFailures    *prometheus.CounterVec
	couponRejections *prometheus.CounterVec
	cartMutations    *prometheus.CounterVec
	checkoutDuration *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on reg. A nil registerer
// yields a recorder that drops every observation.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	m := &CheckoutMetrics{
		ordersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_orders_placed_total",
			Help: "Orders committed, by payment method.",
		}, []string{"payment_method"}),
		orderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_failures_total",
			Help: "Order placements that failed, by error code.",
		}, []string{"code"}),
		couponRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_coupon_rejections_total",
			Help: "Coupon validations that failed, by reason.",
		}, []string{"reason"}),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Cart mutations, by operation and outcome.",
		}, []string{"op", "outcome"}),
		checkoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_checkout_duration_seconds",
			Help:    "PlaceOrder latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.ordersPlaced, m.orderFailures, m.couponRejections, m.cartMutations, m.checkoutDuration)
	return m
}

func (m *CheckoutMetrics) OrderPlaced(paymentMethod string) {
	if m == nil || m.ordersPlaced == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
}

func (m *CheckoutMetrics) OrderFailed(code string) {
	if m == nil || m.orderFailures == nil {
		return
	}
	m.orderFailures.WithLabelValues(normalizeLabel(code)).Inc()
}

func (m *CheckoutMetrics) CouponRejected(reason string) {
	if m == nil || m.couponRejections == nil {
		return
	}
	m.couponRejections.WithLabelValues(normalizeLabel(reason)).Inc()
}

// CartMutation counts one cart operation; ok=false records a rejected mutation.
func (m *CheckoutMetrics) CartMutation(op string, ok bool) {
	if m == nil || m.cartMutations == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "rejected"
	}
	m.cartMutations.WithLabelValues(normalizeLabel(op), outcome).Inc()
}

func (m *CheckoutMetrics) ObserveCheckout(outcome string, duration time.Duration) {
	if m == nil || m.checkoutDuration == nil {
		return
	}
	m.checkoutDuration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}
