package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestOrderMetrics_RecordOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetricsWithRegisterer(reg)

	m.RecordOperation("create", ResultOK, 20*time.Millisecond)
	m.RecordOperation("create", ResultOK, 30*time.Millisecond)
	m.RecordOperation("create", "invalid_request", time.Millisecond)
	m.RecordRetry("update_status")
	m.RecordTimelineEvent()
	m.RecordOutboxEvent()

	if got := testutil.ToFloat64(m.operations.WithLabelValues("create", ResultOK)); got != 2 {
		t.Fatalf("expected 2 successful creates, got %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("create", "invalid_request")); got != 1 {
		t.Fatalf("expected 1 rejected create, got %v", got)
	}
	if got := testutil.ToFloat64(m.retries.WithLabelValues("update_status")); got != 1 {
		t.Fatalf("expected 1 retry, got %v", got)
	}

	metric := &dto.Metric{}
	if err := m.timelineEvents.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 1 {
		t.Errorf("expected timeline counter 1, got %f", metric.Counter.GetValue())
	}

	if n := testutil.CollectAndCount(m.duration); n != 1 {
		t.Fatalf("expected one duration series, got %d", n)
	}
}

func TestHubMetrics_Connections(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHubMetricsWithRegisterer(reg)

	m.ConnectionRegistered(true)
	m.ConnectionRegistered(false)
	m.ConnectionRegistered(true)

	if got := testutil.ToFloat64(m.connections); got != 3 {
		t.Fatalf("expected 3 connections, got %v", got)
	}
	if got := testutil.ToFloat64(m.identities); got != 2 {
		t.Fatalf("expected 2 identities, got %v", got)
	}

	m.ConnectionDeregistered(false)
	m.ConnectionDeregistered(true)
	if got := testutil.ToFloat64(m.identities); got != 1 {
		t.Fatalf("expected 1 identity, got %v", got)
	}

	m.Reset()
	if got := testutil.ToFloat64(m.connections); got != 0 {
		t.Fatalf("expected connections reset, got %v", got)
	}

	m.RecordDelivery(nil)
	m.RecordDelivery(errors.New("closed"))
	m.RecordDelivery(errors.New("closed"))
	m.RecordRelay("skipped")

	if got := testutil.ToFloat64(m.deliveries.WithLabelValues(ResultFailed)); got != 2 {
		t.Fatalf("expected 2 failed deliveries, got %v", got)
	}
	if got := testutil.ToFloat64(m.relayed.WithLabelValues("skipped")); got != 1 {
		t.Fatalf("expected 1 skipped relay, got %v", got)
	}
}

func TestHTTPMetrics_ObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetricsWithRegisterer(reg)

	m.ObserveRequest("POST", "/api/customer/orders", 201, 15*time.Millisecond)
	m.ObserveRequest("POST", "/api/customer/orders", 400, time.Millisecond)
	m.RecordRateLimited()

	if got := testutil.ToFloat64(m.requests.WithLabelValues("POST", "/api/customer/orders", "201")); got != 1 {
		t.Fatalf("expected 1 created request, got %v", got)
	}
	if got := testutil.ToFloat64(m.rateLimited); got != 1 {
		t.Fatalf("expected 1 rate limited request, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	names := make(map[string]bool)
	for _, family := range families {
		names[family.GetName()] = true
	}
	for _, name := range []string{
		"marketplace_http_requests_total",
		"marketplace_http_request_duration_seconds",
		"marketplace_http_rate_limited_total",
	} {
		if !names[name] {
			t.Errorf("metric %s is not registered", name)
		}
	}
}

func TestRegister_ReusesExistingCollector(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := NewOrderMetricsWithRegisterer(reg)
	second := NewOrderMetricsWithRegisterer(reg)

	first.RecordOutboxEvent()
	if got := testutil.ToFloat64(second.outboxEvents); got != 1 {
		t.Fatalf("expected shared collector, got %v", got)
	}
}

func TestRegister_PanicsOnConflictingDescriptor(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "marketplace_timeline_events_total",
		Help: "Conflicting collector",
	}))

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for conflicting collector type")
		}
	}()
	NewOrderMetricsWithRegisterer(reg)
}

func TestNilMetricsAreNoop(t *testing.T) {
	var orders *OrderMetrics
	var hub *HubMetrics
	var http *HTTPMetrics

	orders.RecordOperation("create", ResultOK, time.Second)
	orders.RecordRetry("create")
	orders.RecordTimelineEvent()
	orders.RecordOutboxEvent()
	hub.ConnectionRegistered(true)
	hub.ConnectionDeregistered(true)
	hub.RecordDelivery(nil)
	hub.RecordRelay("delivered")
	hub.Reset()
	http.ObserveRequest("GET", "/", 200, time.Second)
	http.RecordRateLimited()
}
