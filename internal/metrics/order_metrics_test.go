package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewOrderMetrics(t *testing.T) {
	metrics := NewOrderMetrics()

	if metrics == nil {
		t.Fatal("NewOrderMetrics should not return nil")
	}

	if metrics.ordersCreated == nil {
		t.Error("ordersCreated counter should not be nil")
	}

	if metrics.ordersCompleted == nil {
		t.Error("ordersCompleted counter should not be nil")
	}

	if metrics.ordersCancelled == nil {
		t.Error("ordersCancelled counter should not be nil")
	}

	if metrics.ordersFailed == nil {
		t.Error("ordersFailed counter should not be nil")
	}

	if metrics.lockTimeouts == nil {
		t.Error("lockTimeouts counter should not be nil")
	}

	if metrics.createDuration == nil {
		t.Error("createDuration histogram should not be nil")
	}

	if metrics.stageDuration == nil {
		t.Error("stageDuration histogram vec should not be nil")
	}

	if metrics.timelineEvents == nil {
		t.Error("timelineEvents counter should not be nil")
	}

	if metrics.outboxEvents == nil {
		t.Error("outboxEvents counter should not be nil")
	}

	if metrics.inFlightOrders == nil {
		t.Error("inFlightOrders gauge should not be nil")
	}
}

func TestNewOrderMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := newOrderMetricsWithRegisterer(reg)
	second := newOrderMetricsWithRegisterer(reg)

	if first.ordersCreated != second.ordersCreated {
		t.Error("expected second registration to reuse existing counter")
	}
	if first.stageDuration != second.stageDuration {
		t.Error("expected second registration to reuse existing histogram vec")
	}
}

func TestRecordOrderCreated(t *testing.T) {
	reg := prometheus.NewRegistry()

	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_orders_created_total",
		Help: "Test counter",
	})
	reg.MustRegister(ordersCreated)

	metrics := &OrderMetrics{
		ordersCreated: ordersCreated,
	}

	metrics.RecordOrderCreated()

	metric := &dto.Metric{}
	if err := ordersCreated.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 1.0 {
		t.Errorf("expected counter value 1.0, got %f", metric.Counter.GetValue())
	}
}

func TestRecordLockWaitTimeout(t *testing.T) {
	reg := prometheus.NewRegistry()

	lockTimeouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_lock_wait_timeouts_total",
		Help: "Test counter",
	})
	reg.MustRegister(lockTimeouts)

	metrics := &OrderMetrics{
		lockTimeouts: lockTimeouts,
	}

	metrics.RecordLockWaitTimeout()
	metrics.RecordLockWaitTimeout()

	metric := &dto.Metric{}
	if err := lockTimeouts.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected counter value 2.0, got %f", metric.Counter.GetValue())
	}
}

func TestRecordCreateDuration(t *testing.T) {
	reg := prometheus.NewRegistry()

	createDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_create_duration_seconds",
		Help:    "Test histogram",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(createDuration)

	metrics := &OrderMetrics{
		createDuration: createDuration,
	}

	metrics.RecordCreateDuration(100 * time.Millisecond)
	metrics.RecordCreateDuration(500 * time.Millisecond)
	metrics.RecordCreateDuration(1 * time.Second)

	metric := &dto.Metric{}
	if err := createDuration.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Histogram.GetSampleCount() != 3 {
		t.Errorf("expected 3 samples, got %d", metric.Histogram.GetSampleCount())
	}

	sum := metric.Histogram.GetSampleSum()
	if sum < 1.5 || sum > 1.7 {
		t.Errorf("expected sum around 1.6, got %f", sum)
	}
}

func TestRecordStageDuration(t *testing.T) {
	reg := prometheus.NewRegistry()

	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "test_stage_duration_seconds",
		Help:    "Test histogram vec",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"stage"})
	reg.MustRegister(stageDuration)

	metrics := &OrderMetrics{
		stageDuration: stageDuration,
	}

	metrics.RecordStageDuration("acquire_stock", 50*time.Millisecond)
	metrics.RecordStageDuration("persist", 100*time.Millisecond)

	acquireMetric := &dto.Metric{}
	observer := stageDuration.WithLabelValues("acquire_stock")
	if err := observer.(prometheus.Histogram).Write(acquireMetric); err != nil {
		t.Fatalf("failed to write acquire metric: %v", err)
	}

	if acquireMetric.Histogram.GetSampleCount() != 1 {
		t.Errorf("expected 1 sample for acquire_stock, got %d", acquireMetric.Histogram.GetSampleCount())
	}
}

func TestOrderLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()

	inFlightOrders := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_lifecycle_in_flight",
		Help: "Test gauge",
	})
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_lifecycle_created",
		Help: "Test counter",
	})
	ordersCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_lifecycle_completed",
		Help: "Test counter",
	})

	reg.MustRegister(inFlightOrders, ordersCreated, ordersCompleted)

	metrics := &OrderMetrics{
		inFlightOrders:  inFlightOrders,
		ordersCreated:   ordersCreated,
		ordersCompleted: ordersCompleted,
	}

	metrics.RecordInFlightStarted()
	metrics.RecordOrderCreated()
	metrics.RecordInFlightFinished()

	metrics.RecordInFlightStarted()
	metrics.RecordOrderCompleted()
	metrics.RecordInFlightFinished()

	gaugeMetric := &dto.Metric{}
	if err := inFlightOrders.Write(gaugeMetric); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}
	if gaugeMetric.Gauge.GetValue() != 0.0 {
		t.Errorf("expected 0 in-flight orders, got %f", gaugeMetric.Gauge.GetValue())
	}

	createdMetric := &dto.Metric{}
	if err := ordersCreated.Write(createdMetric); err != nil {
		t.Fatalf("failed to write created metric: %v", err)
	}
	if createdMetric.Counter.GetValue() != 1.0 {
		t.Errorf("expected 1 created order, got %f", createdMetric.Counter.GetValue())
	}

	completedMetric := &dto.Metric{}
	if err := ordersCompleted.Write(completedMetric); err != nil {
		t.Fatalf("failed to write completed metric: %v", err)
	}
	if completedMetric.Counter.GetValue() != 1.0 {
		t.Errorf("expected 1 completed order, got %f", completedMetric.Counter.GetValue())
	}
}

func TestRecordTimelineAndOutboxEvents(t *testing.T) {
	reg := prometheus.NewRegistry()

	timelineEvents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_timeline_events_total",
		Help: "Test counter",
	})
	outboxEvents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_outbox_events_total",
		Help: "Test counter",
	})
	reg.MustRegister(timelineEvents, outboxEvents)

	metrics := &OrderMetrics{
		timelineEvents: timelineEvents,
		outboxEvents:   outboxEvents,
	}

	metrics.RecordTimelineEvent()
	metrics.RecordTimelineEvent()
	metrics.RecordOutboxEvent()

	timelineMetric := &dto.Metric{}
	if err := timelineEvents.Write(timelineMetric); err != nil {
		t.Fatalf("failed to write timeline metric: %v", err)
	}
	if timelineMetric.Counter.GetValue() != 2.0 {
		t.Errorf("expected 2 timeline events, got %f", timelineMetric.Counter.GetValue())
	}

	outboxMetric := &dto.Metric{}
	if err := outboxEvents.Write(outboxMetric); err != nil {
		t.Fatalf("failed to write outbox metric: %v", err)
	}
	if outboxMetric.Counter.GetValue() != 1.0 {
		t.Errorf("expected 1 outbox event, got %f", outboxMetric.Counter.GetValue())
	}
}
