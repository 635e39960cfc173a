package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики жизненного цикла заказов.
type OrderMetrics struct {
	// Счётчики операций
	ordersCreated   prometheus.Counter
	ordersCanceled  prometheus.Counter
	ordersRefunded  prometheus.Counter
	statusRefreshes prometheus.Counter
	operationFailed *prometheus.CounterVec

	// Гистограммы времени выполнения
	operationDuration *prometheus.HistogramVec

	// Счётчики событий timeline
	timelineEvents prometheus.Counter

	// Gauge для активных (нетерминальных) заказов, обновляется сверкой
	activeOrders prometheus.Gauge
}

// NewOrderMetrics создаёт новый экземпляр метрик заказов.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vizinhos_orders_created_total",
			Help: "Total number of orders created with an issued payment",
		}),
		ordersCanceled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vizinhos_orders_canceled_total",
			Help: "Total number of orders canceled",
		}),
		ordersRefunded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vizinhos_orders_refunded_total",
			Help: "Total number of orders refunded",
		}),
		statusRefreshes: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vizinhos_order_status_refreshes_total",
			Help: "Total number of order status refreshes against the payment gateway",
		}),
		operationFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "vizinhos_order_operation_failures_total",
			Help: "Total number of failed order operations",
		}, []string{"operation"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "vizinhos_order_operation_duration_seconds",
			Help:    "Duration of order operations in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"operation"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vizinhos_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		activeOrders: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "vizinhos_active_orders",
			Help: "Number of orders currently in a non-terminal status",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderCanceled увеличивает счётчик отменённых заказов.
func (m *OrderMetrics) RecordOrderCanceled() {
	m.ordersCanceled.Inc()
}

// RecordOrderRefunded увеличивает счётчик возвращённых заказов.
func (m *OrderMetrics) RecordOrderRefunded() {
	m.ordersRefunded.Inc()
}

// RecordStatusRefresh увеличивает счётчик сверок статуса с платёжным шлюзом.
func (m *OrderMetrics) RecordStatusRefresh() {
	m.statusRefreshes.Inc()
}

// RecordOperationFailed увеличивает счётчик неудачных операций.
func (m *OrderMetrics) RecordOperationFailed(operation string) {
	m.operationFailed.WithLabelValues(operation).Inc()
}

// RecordOperationDuration записывает время выполнения операции.
func (m *OrderMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *OrderMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// SetActiveOrders обновляет gauge активных заказов.
func (m *OrderMetrics) SetActiveOrders(count int) {
	m.activeOrders.Set(float64(count))
}
