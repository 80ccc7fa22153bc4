package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestWorkerMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewWorkerMetrics(reg)
	worker := "outbox-publisher"
	metrics.ObserveDuration(worker, 250*time.Millisecond)
	metrics.AddSuccess(worker, 3)
	metrics.AddFailure(worker, 1)
	metrics.AddFailure(worker, 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "worker_items_success_total", "worker", worker); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 3 {
		t.Fatalf("expected success=3, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "worker_items_failure_total", "worker", worker); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "worker_batch_duration_seconds", "worker", worker); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestCheckoutMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCheckoutMetrics(reg)
	metrics.OrderPlaced("cod")
	metrics.OrderPlaced("cod")
	metrics.OrderFailed("insufficient_stock")
	metrics.CouponRejected("expired")
	metrics.CartMutation("add_item", false)
	metrics.ObserveCheckout("ok", 40*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	checks := []struct {
		name, label, value string
		want               float64
	}{
		{"storefront_orders_placed_total", "payment_method", "cod", 2},
		{"storefront_order_failures_total", "code", "insufficient_stock", 1},
		{"storefront_coupon_rejections_total", "reason", "expired", 1},
		{"storefront_cart_mutations_total", "outcome", "rejected", 1},
	}
	for _, c := range checks {
		got, err := fetchCounterValue(mfs, c.name, c.label, c.value)
		if err != nil {
			t.Fatalf("fetch %s: %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("expected %s=%v, got %f", c.name, c.want, got)
		}
	}

	if got, err := fetchHistogramSum(mfs, "storefront_checkout_duration_seconds", "outcome", "ok"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestNilRecordersAreSafe(t *testing.T) {
	var checkout *CheckoutMetrics
	checkout.OrderPlaced("card")
	checkout.CartMutation("clear", true)

	unregistered := NewCheckoutMetrics(nil)
	unregistered.OrderFailed("internal_error")
	NewWorkerMetrics(nil).AddSuccess("w", 1)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
