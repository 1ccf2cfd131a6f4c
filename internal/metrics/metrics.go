package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций для label "result".
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0}

// OrderMetrics содержит метрики движка заказов.
// Методы безопасны для nil-получателя, поэтому метрики можно не подключать в тестах.
type OrderMetrics struct {
	operations *prometheus.CounterVec
	retries    *prometheus.CounterVec
	duration   *prometheus.HistogramVec

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// NewOrderMetrics регистрирует метрики заказов в DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики заказов в указанном registerer.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		operations: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_order_operations_total",
			Help: "Total number of order operations by result",
		}, []string{"operation", "result"})),
		retries: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_order_retries_total",
			Help: "Total number of order write retries after a storage conflict",
		}, []string{"operation"})),
		duration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketplace_order_operation_duration_seconds",
			Help:    "Duration of order operations in seconds",
			Buckets: latencyBuckets,
		}, []string{"operation"})),
		timelineEvents: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_timeline_events_total",
			Help: "Total number of timeline events recorded",
		})),
		outboxEvents: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_outbox_enqueued_total",
			Help: "Total number of order events enqueued into the outbox",
		})),
	}
}

// RecordOperation учитывает завершённую операцию и её длительность.
func (m *OrderMetrics) RecordOperation(operation, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRetry увеличивает счётчик повторов записи.
func (m *OrderMetrics) RecordRetry(operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(operation).Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *OrderMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OrderMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}

// HubMetrics: состояние реестра живых соединений и доставки уведомлений.
type HubMetrics struct {
	identities  prometheus.Gauge
	connections prometheus.Gauge
	deliveries  *prometheus.CounterVec
	relayed     *prometheus.CounterVec
}

// NewHubMetrics регистрирует метрики hub в DefaultRegisterer.
func NewHubMetrics() *HubMetrics {
	return NewHubMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewHubMetricsWithRegisterer регистрирует метрики hub в указанном registerer.
func NewHubMetricsWithRegisterer(registerer prometheus.Registerer) *HubMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &HubMetrics{
		identities: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketplace_hub_identities",
			Help: "Number of identities with at least one live connection",
		})),
		connections: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketplace_hub_connections",
			Help: "Number of live connections registered in the hub",
		})),
		deliveries: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_hub_deliveries_total",
			Help: "Total number of per-connection deliveries by result",
		}, []string{"result"})),
		relayed: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_hub_relayed_events_total",
			Help: "Total number of order events received from other instances by result",
		}, []string{"result"})),
	}
}

// ConnectionRegistered учитывает новое соединение; newIdentity: первое соединение пользователя.
func (m *HubMetrics) ConnectionRegistered(newIdentity bool) {
	if m == nil {
		return
	}
	m.connections.Inc()
	if newIdentity {
		m.identities.Inc()
	}
}

// ConnectionDeregistered учитывает снятое соединение; identityGone: ушло последнее соединение пользователя.
func (m *HubMetrics) ConnectionDeregistered(identityGone bool) {
	if m == nil {
		return
	}
	m.connections.Dec()
	if identityGone {
		m.identities.Dec()
	}
}

// Reset обнуляет gauges после закрытия hub.
func (m *HubMetrics) Reset() {
	if m == nil {
		return
	}
	m.connections.Set(0)
	m.identities.Set(0)
}

// RecordDelivery учитывает попытку доставки в одно соединение.
func (m *HubMetrics) RecordDelivery(err error) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(resultOf(err)).Inc()
}

// RecordRelay учитывает событие, пришедшее через Kafka; result: delivered, skipped или failed.
func (m *HubMetrics) RecordRelay(result string) {
	if m == nil {
		return
	}
	m.relayed.WithLabelValues(result).Inc()
}

// HTTPMetrics: метрики HTTP API.
type HTTPMetrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	rateLimited prometheus.Counter
}

// NewHTTPMetrics регистрирует метрики HTTP в DefaultRegisterer.
func NewHTTPMetrics() *HTTPMetrics {
	return NewHTTPMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewHTTPMetricsWithRegisterer регистрирует метрики HTTP в указанном registerer.
func NewHTTPMetricsWithRegisterer(registerer prometheus.Registerer) *HTTPMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &HTTPMetrics{
		requests: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"method", "route", "status"})),
		duration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketplace_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: latencyBuckets,
		}, []string{"method", "route"})),
		rateLimited: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_http_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		})),
	}
}

// ObserveRequest учитывает обработанный HTTP-запрос.
func (m *HTTPMetrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRateLimited увеличивает счётчик отклонённых лимитером запросов.
func (m *HTTPMetrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func resultOf(err error) string {
	if err != nil {
		return ResultFailed
	}
	return ResultOK
}

// register регистрирует collector; при повторной регистрации возвращает уже существующий.
func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(T)
			if !ok {
				panic(fmt.Sprintf("collector %T already registered with unexpected type", collector))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector %T: %v", collector, err))
	}
	return collector
}
