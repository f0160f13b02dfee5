package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики жизненного цикла заказа.
type OrderMetrics struct {
	// Счётчики операций
	ordersCreated   prometheus.Counter
	ordersCompleted prometheus.Counter
	ordersCancelled prometheus.Counter
	ordersFailed    prometheus.Counter
	lockTimeouts    prometheus.Counter

	// Гистограммы времени выполнения
	createDuration prometheus.Histogram
	stageDuration  *prometheus.HistogramVec

	// Счётчики событий timeline и outbox
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	// Gauge для заказов в обработке
	inFlightOrders prometheus.Gauge
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
			Name: "orders_created_total",
			Help: "Total number of orders created",
		}),
		ordersCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_completed_total",
			Help: "Total number of orders completed with payment",
		}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_cancelled_total",
			Help: "Total number of orders cancelled",
		}),
		ordersFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_failed_total",
			Help: "Total number of order operations failed",
		}),
		lockTimeouts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_lock_wait_timeouts_total",
			Help: "Total number of stock lock wait timeouts",
		}),
		createDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "orders_create_duration_seconds",
			Help:    "Duration of order creation in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stageDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orders_stage_duration_seconds",
			Help:    "Duration of individual order workflow stages in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"stage"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		inFlightOrders: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orders_in_flight",
			Help: "Number of order operations currently in flight",
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

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
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

// RecordOrderCompleted увеличивает счётчик оплаченных заказов.
func (m *OrderMetrics) RecordOrderCompleted() {
	m.ordersCompleted.Inc()
}

// RecordOrderCancelled увеличивает счётчик отменённых заказов.
func (m *OrderMetrics) RecordOrderCancelled() {
	m.ordersCancelled.Inc()
}

// RecordOrderFailed увеличивает счётчик неудачных операций.
func (m *OrderMetrics) RecordOrderFailed() {
	m.ordersFailed.Inc()
}

// RecordLockWaitTimeout увеличивает счётчик таймаутов ожидания блокировки.
func (m *OrderMetrics) RecordLockWaitTimeout() {
	m.lockTimeouts.Inc()
}

// RecordInFlightStarted увеличивает количество операций в обработке.
func (m *OrderMetrics) RecordInFlightStarted() {
	m.inFlightOrders.Inc()
}

// RecordInFlightFinished уменьшает количество операций в обработке.
func (m *OrderMetrics) RecordInFlightFinished() {
	m.inFlightOrders.Dec()
}

// RecordCreateDuration записывает время создания заказа.
func (m *OrderMetrics) RecordCreateDuration(duration time.Duration) {
	m.createDuration.Observe(duration.Seconds())
}

// RecordStageDuration записывает время выполнения этапа workflow.
func (m *OrderMetrics) RecordStageDuration(stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *OrderMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OrderMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
